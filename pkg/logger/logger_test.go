package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestInitRejectsUnknownLevel(t *testing.T) {
	if err := Init("chatty", "json", "stdout"); err == nil {
		t.Fatal("expected invalid level error")
	}
}

func TestInitWritesJSONToFile(t *testing.T) {
	prev := Log
	t.Cleanup(func() { Log = prev })

	path := filepath.Join(t.TempDir(), "app.log")
	if err := Init("info", "json", path); err != nil {
		t.Fatalf("Init: %v", err)
	}

	Debug("dropped below level")
	Info("session closed")
	Named("ratelimit.chat").Warn("limited")
	Sync()

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 entries, got %d: %s", len(lines), raw)
	}

	var first, second map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal([]byte(lines[1]), &second); err != nil {
		t.Fatal(err)
	}
	if first["message"] != "session closed" || first["level"] != "info" {
		t.Fatalf("unexpected entry %v", first)
	}
	if second["logger"] != "ratelimit.chat" {
		t.Fatalf("expected named logger, got %v", second)
	}
	// Both helpers report this file, not logger.go.
	for _, e := range []map[string]any{first, second} {
		if caller, _ := e["caller"].(string); !strings.HasPrefix(caller, "logger/logger_test.go") {
			t.Fatalf("unexpected caller %q", caller)
		}
	}
}
