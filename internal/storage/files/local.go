// Package files keeps uploaded drone images on local disk.
package files

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const imageDir = "drone_images"

type LocalStore struct {
	root string
}

func NewLocalStore(root string) (*LocalStore, error) {
	if err := os.MkdirAll(filepath.Join(root, imageDir), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &LocalStore{root: root}, nil
}

// Save writes data under a fresh name and returns its path relative to root.
// Only the original extension is kept.
func (s *LocalStore) Save(originalName string, data []byte) (string, error) {
	rel := path.Join(imageDir, uuid.NewString()+cleanExt(originalName))
	if err := os.WriteFile(filepath.Join(s.root, filepath.FromSlash(rel)), data, 0o644); err != nil {
		return "", fmt.Errorf("failed to store image: %w", err)
	}
	return rel, nil
}

func (s *LocalStore) Remove(rel string) error {
	if strings.Contains(rel, "..") {
		return fmt.Errorf("invalid image path %q", rel)
	}
	err := os.Remove(filepath.Join(s.root, filepath.FromSlash(rel)))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove image: %w", err)
	}
	return nil
}

func cleanExt(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if len(ext) < 2 || len(ext) > 6 {
		return ""
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}
