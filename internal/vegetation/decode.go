package vegetation

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"

	// Registered codecs for drone uploads.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrImageDecode matches every DecodeError via errors.Is.
var ErrImageDecode = errors.New("image decode failed")

// DecodeError reports an upload that could not be turned into a pixel grid.
type DecodeError struct {
	Name string
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("decode image: %v", e.Err)
	}
	return fmt.Sprintf("decode image %q: %v", e.Name, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func (e *DecodeError) Is(target error) bool { return target == ErrImageDecode }

// PixelGrid is a decoded image as interleaved 8-bit RGB, row-major.
type PixelGrid struct {
	Width  int
	Height int
	Pix    []uint8
}

func NewPixelGrid(width, height int) *PixelGrid {
	return &PixelGrid{Width: width, Height: height, Pix: make([]uint8, width*height*3)}
}

func (g *PixelGrid) Len() int { return g.Width * g.Height }

func (g *PixelGrid) Set(x, y int, r, gr, b uint8) {
	i := (y*g.Width + x) * 3
	g.Pix[i], g.Pix[i+1], g.Pix[i+2] = r, gr, b
}

func (g *PixelGrid) At(x, y int) (r, gr, b uint8) {
	i := (y*g.Width + x) * 3
	return g.Pix[i], g.Pix[i+1], g.Pix[i+2]
}

// Decoder turns an uploaded file into a PixelGrid.
type Decoder interface {
	Decode(name string, r io.Reader) (*PixelGrid, error)
}

// DefaultMaxPixels bounds decoded image area when ImageDecoder.MaxPixels is zero.
const DefaultMaxPixels = 40_000_000

// ImageDecoder decodes any format registered with the image package.
// Alpha is dropped without premultiplication. Images whose header declares
// more than MaxPixels pixels are rejected before any pixel data is decoded.
type ImageDecoder struct {
	MaxPixels int
}

func (d ImageDecoder) Decode(name string, r io.Reader) (*PixelGrid, error) {
	limit := d.MaxPixels
	if limit <= 0 {
		limit = DefaultMaxPixels
	}

	var header bytes.Buffer
	cfg, _, err := image.DecodeConfig(io.TeeReader(r, &header))
	if err != nil {
		return nil, &DecodeError{Name: name, Err: err}
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, &DecodeError{Name: name, Err: errors.New("image has no pixels")}
	}
	if int64(cfg.Width)*int64(cfg.Height) > int64(limit) {
		return nil, &DecodeError{
			Name: name,
			Err:  fmt.Errorf("image is %dx%d, exceeds %d pixel limit", cfg.Width, cfg.Height, limit),
		}
	}

	img, _, err := image.Decode(io.MultiReader(&header, r))
	if err != nil {
		return nil, &DecodeError{Name: name, Err: err}
	}

	bounds := img.Bounds()
	if bounds.Empty() {
		return nil, &DecodeError{Name: name, Err: errors.New("image has no pixels")}
	}

	grid := NewPixelGrid(bounds.Dx(), bounds.Dy())
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			grid.Set(x-bounds.Min.X, y-bounds.Min.Y, c.R, c.G, c.B)
		}
	}
	return grid, nil
}
