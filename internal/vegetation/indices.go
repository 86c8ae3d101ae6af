// Package vegetation derives color-based crop health indices from drone imagery,
// projects yield from them and aggregates per-image results into a session summary.
package vegetation

import (
	"errors"
	"math"
)

const epsilon = 1e-6

// Brown/senescent band in 8-bit HSV (hue 0..179).
const (
	stressHueMin = 10
	stressHueMax = 30
	stressSatMin = 50
	stressValMin = 20
	stressValMax = 200
)

// Indices are the per-image vegetation metrics. Indices carry 3 decimals,
// percentages 2.
type Indices struct {
	VARI      float64 `json:"vari"`
	EXG       float64 `json:"exg"`
	GLI       float64 `json:"gli"`
	CanopyPct float64 `json:"canopy_pct"`
	StressPct float64 `json:"stress_pct"`
}

// Extract computes VARI, EXG, GLI, canopy cover and stress cover over every pixel.
func Extract(grid *PixelGrid) (Indices, error) {
	if grid == nil || grid.Len() == 0 || len(grid.Pix) < grid.Len()*3 {
		return Indices{}, &DecodeError{Err: errors.New("empty pixel grid")}
	}

	var (
		sumVARI, sumEXG, sumGLI float64
		green, brown            int
	)

	n := grid.Len()
	for i := 0; i < n; i++ {
		r8, g8, b8 := grid.Pix[i*3], grid.Pix[i*3+1], grid.Pix[i*3+2]
		r, g, b := float64(r8), float64(g8), float64(b8)

		sumVARI += (g - r) / (g + r - b + epsilon)
		exg := 2*g - r - b
		sumEXG += exg
		sumGLI += exg / (2*g + r + b + epsilon)

		if g8 > r8 {
			green++
		}

		h, s, v := rgbToHSV(r8, g8, b8)
		if h >= stressHueMin && h <= stressHueMax && s >= stressSatMin && v >= stressValMin && v <= stressValMax {
			brown++
		}
	}

	total := float64(n)
	return Indices{
		VARI:      Round(sumVARI/total, 3),
		EXG:       Round(sumEXG/total, 3),
		GLI:       Round(sumGLI/total, 3),
		CanopyPct: Round(float64(green)/total*100, 2),
		StressPct: Round(float64(brown)/total*100, 2),
	}, nil
}

// rgbToHSV follows the 8-bit OpenCV convention: H in [0,180), S and V in [0,255].
func rgbToHSV(r, g, b uint8) (h, s, v int) {
	maxC := max(r, g, b)
	minC := min(r, g, b)
	v = int(maxC)
	diff := float64(maxC) - float64(minC)

	if maxC == 0 {
		return 0, 0, v
	}
	s = int(math.Round(diff * 255 / float64(maxC)))
	if diff == 0 {
		return 0, s, v
	}

	rf, gf, bf := float64(r), float64(g), float64(b)
	var deg float64
	switch maxC {
	case r:
		deg = 60 * (gf - bf) / diff
	case g:
		deg = 120 + 60*(bf-rf)/diff
	default:
		deg = 240 + 60*(rf-gf)/diff
	}
	if deg < 0 {
		deg += 360
	}

	h = int(math.Round(deg / 2))
	if h >= 180 {
		h -= 180
	}
	return h, s, v
}

// Round rounds x to the given number of decimal places.
func Round(x float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(x*p) / p
}
