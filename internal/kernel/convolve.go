package kernel

import (
	"math/cmplx"
	"runtime"
	"sync"

	"github.com/mjibson/go-dsp/fft"

	"github.com/okeanid/sizespec/internal/grid"
)

// Convolver computes the two size-overlap integrals of the model on the
// full grid.
//
// Availability is the prey integral seen from the predator side:
//
//	A[i] = sum_j phi(w[i], w[j]) * q[j] * dw[j]
//
// with q the prey biomass density; output entries above maxBin are
// zeroed, the predator does not exist there.
//
// Exposure is the transposed integral seen from the prey side:
//
//	E[j] = sum_i phi(w[i], w[j]) * p[i] * dw[i]
//
// with p the predation intensity of one predator species over its own
// sizes.
type Convolver interface {
	Availability(k Kernel, q []float64, maxBin int) []float64
	Exposure(k Kernel, p []float64) []float64
}

// Direct is the quadrature baseline: exact, O(n^2) per species, and the
// only strategy valid for kernels that are not translation-invariant.
// Rows are independent and computed concurrently.
type Direct struct {
	g *grid.Grid
}

func NewDirect(g *grid.Grid) *Direct { return &Direct{g: g} }

func (d *Direct) Availability(k Kernel, q []float64, maxBin int) []float64 {
	n := d.g.NoWFull()
	out := make([]float64, n)
	phi := d.phiAt(k)

	parallelRows(n, func(i int) {
		if i > maxBin {
			return
		}
		sum := 0.0
		for j := 0; j < n; j++ {
			if q[j] == 0 {
				continue
			}
			sum += phi(i, j) * q[j] * d.g.DwFull[j]
		}
		out[i] = sum
	})
	return out
}

func (d *Direct) Exposure(k Kernel, p []float64) []float64 {
	n := d.g.NoWFull()
	out := make([]float64, n)
	phi := d.phiAt(k)

	parallelRows(n, func(j int) {
		sum := 0.0
		for i := 0; i < n; i++ {
			if p[i] == 0 {
				continue
			}
			sum += phi(i, j) * p[i] * d.g.DwFull[i]
		}
		out[j] = sum
	})
	return out
}

// phiAt returns a bin-indexed evaluator for the kernel. Log-ratio
// kernels are evaluated at the exact bin lag, which is the true log
// ratio of the geometric grid and keeps the quadrature free of the
// rounding noise in the stored weights.
func (d *Direct) phiAt(k Kernel) func(i, j int) float64 {
	switch kk := k.(type) {
	case LogRatioKernel:
		step := d.g.LogStep()
		return func(i, j int) float64 {
			return kk.PhiLogRatio(float64(i-j) * step)
		}
	case Indexed:
		return kk.PhiBins
	default:
		return func(i, j int) float64 {
			return k.Phi(d.g.WFull[i], d.g.WFull[j])
		}
	}
}

// parallelRows runs fn over [0, n) split across GOMAXPROCS workers.
// Each row writes a disjoint output entry, so no locking is needed and
// the result is deterministic.
func parallelRows(n int, fn func(i int)) {
	workers := runtime.GOMAXPROCS(0)
	if workers > n {
		workers = n
	}
	if workers <= 1 {
		for i := 0; i < n; i++ {
			fn(i)
		}
		return
	}
	var wg sync.WaitGroup
	chunk := (n + workers - 1) / workers
	for w := 0; w < workers; w++ {
		lo := w * chunk
		hi := lo + chunk
		if hi > n {
			hi = n
		}
		if lo >= hi {
			break
		}
		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			for i := lo; i < hi; i++ {
				fn(i)
			}
		}(lo, hi)
	}
	wg.Wait()
}

// Spectral computes both integrals with FFTs, valid because the grid is
// uniform in log weight so a log-ratio kernel becomes a convolution
// kernel over bin lag. Both transforms are zero-padded to at least
// 2*noWFull-1 points, which makes the circular product equal to the
// linear convolution bin for bin: no wrap-around contribution can reach
// an in-range output. Kernels that are not translation-invariant fall
// back to the direct strategy.
type Spectral struct {
	g      *grid.Grid
	direct *Direct
	pad    int

	mu    sync.Mutex
	cache map[LogRatioKernel][]complex128
}

func NewSpectral(g *grid.Grid) *Spectral {
	n := g.NoWFull()
	pad := 1
	for pad < 2*n-1 {
		pad <<= 1
	}
	return &Spectral{
		g:      g,
		direct: NewDirect(g),
		pad:    pad,
		cache:  make(map[LogRatioKernel][]complex128),
	}
}

// kernelFFT samples the kernel at every signed bin lag of the grid,
// negative lags stored at the top of the padded buffer, and transforms
// it once per distinct kernel. The zero gap between the two lag blocks
// is what keeps the padded convolution linear.
func (s *Spectral) kernelFFT(k LogRatioKernel) []complex128 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fk, ok := s.cache[k]; ok {
		return fk
	}

	n := s.g.NoWFull()
	step := s.g.LogStep()
	kv := make([]float64, s.pad)
	for m := 0; m < n; m++ {
		kv[m] = k.PhiLogRatio(float64(m) * step)
	}
	for m := 1; m < n; m++ {
		kv[s.pad-m] = k.PhiLogRatio(-float64(m) * step)
	}
	fk := fft.FFTReal(kv)
	s.cache[k] = fk
	return fk
}

func (s *Spectral) Availability(k Kernel, q []float64, maxBin int) []float64 {
	lr, ok := k.(LogRatioKernel)
	if !ok {
		return s.direct.Availability(k, q, maxBin)
	}

	n := s.g.NoWFull()
	h := make([]float64, s.pad)
	for j := 0; j < n; j++ {
		h[j] = q[j] * s.g.DwFull[j]
	}

	fk := s.kernelFFT(lr)
	fh := fft.FFTReal(h)
	prod := make([]complex128, s.pad)
	for i := range prod {
		prod[i] = fh[i] * fk[i]
	}
	conv := fft.IFFT(prod)

	out := make([]float64, n)
	for i := 0; i <= maxBin && i < n; i++ {
		out[i] = real(conv[i])
	}
	return out
}

func (s *Spectral) Exposure(k Kernel, p []float64) []float64 {
	lr, ok := k.(LogRatioKernel)
	if !ok {
		return s.direct.Exposure(k, p)
	}

	n := s.g.NoWFull()
	h := make([]float64, s.pad)
	for i := 0; i < n; i++ {
		h[i] = p[i] * s.g.DwFull[i]
	}

	fk := s.kernelFFT(lr)
	fh := fft.FFTReal(h)
	// Cross-correlation: conjugate the kernel spectrum.
	prod := make([]complex128, s.pad)
	for i := range prod {
		prod[i] = fh[i] * cmplx.Conj(fk[i])
	}
	corr := fft.IFFT(prod)

	out := make([]float64, n)
	for j := range out {
		out[j] = real(corr[j])
	}
	return out
}
