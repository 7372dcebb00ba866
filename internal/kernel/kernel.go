// Package kernel computes predator-prey size-overlap integrals on the
// full size grid, either by direct quadrature or by frequency-domain
// convolution for translation-invariant kernels.
package kernel

import (
	"fmt"
	"math"

	"github.com/okeanid/sizespec/internal/grid"
)

// Kernel is a predation preference evaluated at a predator and prey
// weight.
type Kernel interface {
	Phi(wPred, wPrey float64) float64
}

// LogRatioKernel marks kernels that depend only on ln(wPred/wPrey).
// Only this translation-invariant family is eligible for the spectral
// convolution strategy.
type LogRatioKernel interface {
	Kernel
	PhiLogRatio(x float64) float64
}

// Indexed marks kernels defined pointwise on the full grid.
type Indexed interface {
	Kernel
	PhiBins(predBin, preyBin int) float64
}

// LogNormal is the standard lognormal predation kernel: preference
// peaks at a predator/prey mass ratio of Beta and decays with log-ratio
// width Sigma.
type LogNormal struct {
	Beta  float64
	Sigma float64
}

func (k LogNormal) PhiLogRatio(x float64) float64 {
	d := x - math.Log(k.Beta)
	return math.Exp(-d * d / (2 * k.Sigma * k.Sigma))
}

func (k LogNormal) Phi(wPred, wPrey float64) float64 {
	if wPred <= 0 || wPrey <= 0 {
		return 0
	}
	return k.PhiLogRatio(math.Log(wPred / wPrey))
}

// Table is an explicit kernel given pointwise on the full grid, for
// preferences that are not a pure function of the size ratio. A Table
// always takes the direct quadrature path.
type Table struct {
	g    *grid.Grid
	vals [][]float64 // predator bin x prey bin
}

// NewTable wraps an explicit (noWFull x noWFull) kernel table.
func NewTable(g *grid.Grid, vals [][]float64) (*Table, error) {
	n := g.NoWFull()
	if len(vals) != n {
		return nil, fmt.Errorf("kernel table has %d predator rows, want %d", len(vals), n)
	}
	for i := range vals {
		if len(vals[i]) != n {
			return nil, fmt.Errorf("kernel table row %d has %d prey columns, want %d", i, len(vals[i]), n)
		}
	}
	return &Table{g: g, vals: vals}, nil
}

func (t *Table) PhiBins(predBin, preyBin int) float64 {
	return t.vals[predBin][preyBin]
}

func (t *Table) Phi(wPred, wPrey float64) float64 {
	return t.vals[t.bin(wPred)][t.bin(wPrey)]
}

// bin maps a weight to its full-grid index; valid because the grid is
// uniform in log weight.
func (t *Table) bin(w float64) int {
	j := int(math.Round(math.Log10(w/t.g.WFull[0]) / t.g.Dx))
	if j < 0 {
		j = 0
	}
	if max := t.g.NoWFull() - 1; j > max {
		j = max
	}
	return j
}
