// Package grid builds the logarithmic body-size grids shared by the
// consumer spectra and the background resource spectrum.
package grid

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidGrid indicates size-grid bounds that cannot produce a valid grid.
var ErrInvalidGrid = errors.New("grid: invalid size grid bounds")

// maxSizeTol is the relative tolerance allowed when a species' maximum
// size is compared against the grid's upper bound.
const maxSizeTol = 1e-6

// Grid holds the consumer size grid W and the extended resource grid
// WFull. WFull shares its upper tail with W: the last len(W) entries of
// WFull and DwFull are identical to W and Dw.
type Grid struct {
	W  []float64
	Dw []float64

	WFull  []float64
	DwFull []float64

	// Dx is the log10 spacing between adjacent grid points.
	Dx float64

	MinW   float64
	MaxW   float64
	MinWPP float64
}

// New constructs the consumer grid with noW points log-spaced from minW
// to maxW, and extends it downward with the same spacing until the
// resource grid reaches minWPP.
func New(noW int, minW, maxW, minWPP float64) (*Grid, error) {
	if noW <= 10 {
		return nil, fmt.Errorf("%w: no_w must exceed 10, got %d", ErrInvalidGrid, noW)
	}
	if minW <= 0 || maxW <= minW {
		return nil, fmt.Errorf("%w: need 0 < min_w < max_w, got min_w=%g max_w=%g", ErrInvalidGrid, minW, maxW)
	}
	if minWPP >= minW {
		return nil, fmt.Errorf("%w: min_w_pp (%g) must be below min_w (%g)", ErrInvalidGrid, minWPP, minW)
	}

	dx := math.Log10(maxW/minW) / float64(noW-1)
	ratio := math.Pow(10, dx) - 1

	w := make([]float64, noW)
	dw := make([]float64, noW)
	for j := 0; j < noW; j++ {
		w[j] = minW * math.Pow(10, float64(j)*dx)
		dw[j] = w[j] * ratio
	}

	// Extend below min_w with the same log step: the points are
	// strictly decreasing, and the first one at or below min_w_pp
	// becomes the bottom of the grid (an exact hit included).
	ext := make([]float64, 0)
	for k := 1; ; k++ {
		v := minW * math.Pow(10, -float64(k)*dx)
		ext = append(ext, v)
		if v <= minWPP {
			break
		}
	}

	noWFull := len(ext) + noW
	wFull := make([]float64, noWFull)
	dwFull := make([]float64, noWFull)
	for k, v := range ext {
		j := len(ext) - 1 - k
		wFull[j] = v
		dwFull[j] = v * ratio
	}
	// The upper tail is copied verbatim so the two grids stay equal
	// bit for bit.
	copy(wFull[len(ext):], w)
	copy(dwFull[len(ext):], dw)

	return &Grid{
		W:      w,
		Dw:     dw,
		WFull:  wFull,
		DwFull: dwFull,
		Dx:     dx,
		MinW:   minW,
		MaxW:   maxW,
		MinWPP: minWPP,
	}, nil
}

// NoW returns the number of consumer grid points.
func (g *Grid) NoW() int { return len(g.W) }

// NoWFull returns the number of resource grid points.
func (g *Grid) NoWFull() int { return len(g.WFull) }

// FullOffset is the index in WFull at which the consumer grid begins.
func (g *Grid) FullOffset() int { return len(g.WFull) - len(g.W) }

// EggBin returns the consumer bin containing the egg size wMin, the
// largest j with W[j] <= wMin (within floating-point tolerance).
func (g *Grid) EggBin(wMin float64) (int, error) {
	if wMin < g.W[0]*(1-maxSizeTol) || wMin > g.W[len(g.W)-1] {
		return 0, fmt.Errorf("%w: egg size %g outside consumer grid [%g, %g]",
			ErrInvalidGrid, wMin, g.W[0], g.W[len(g.W)-1])
	}
	idx := 0
	for j, wj := range g.W {
		if wj <= wMin*(1+maxSizeTol) {
			idx = j
		} else {
			break
		}
	}
	return idx, nil
}

// MaxBin returns the largest consumer bin whose weight does not exceed
// wMax.
func (g *Grid) MaxBin(wMax float64) int {
	idx := 0
	for j, wj := range g.W {
		if wj <= wMax*(1+maxSizeTol) {
			idx = j
		}
	}
	return idx
}

// CheckMaxSize verifies that a species' maximum size fits on the grid.
func (g *Grid) CheckMaxSize(wMax float64) error {
	if wMax > g.MaxW*(1+maxSizeTol) {
		return fmt.Errorf("%w: species max size %g exceeds grid max %g", ErrInvalidGrid, wMax, g.MaxW)
	}
	return nil
}

// LogStep is the spacing of the grid in natural-log weight, the lag
// unit of translation-invariant predation kernels.
func (g *Grid) LogStep() float64 { return g.Dx * math.Ln10 }
