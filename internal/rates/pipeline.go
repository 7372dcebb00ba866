package rates

import (
	"fmt"

	"github.com/okeanid/sizespec/internal/kernel"
	"github.com/okeanid/sizespec/internal/params"
)

// Model ties a validated parameter store to a stage registry and a
// convolution strategy. The per-species predation kernels default to
// lognormal with the species' beta and sigma; SetKernel installs an
// explicit kernel, which automatically demotes that species to the
// direct quadrature path.
type Model struct {
	Store   *params.Store
	Reg     *Registry
	Conv    kernel.Convolver
	Kernels []kernel.Kernel
}

// NewModel builds a model with default kernels, the default registry
// and the spectral convolution strategy.
func NewModel(store *params.Store) *Model {
	kernels := make([]kernel.Kernel, len(store.Species))
	for i, sp := range store.Species {
		kernels[i] = kernel.LogNormal{Beta: sp.Beta, Sigma: sp.Sigma}
	}
	return &Model{
		Store:   store,
		Reg:     NewRegistry(),
		Conv:    kernel.NewSpectral(store.Grid),
		Kernels: kernels,
	}
}

// SetKernel replaces the predation kernel of one species.
func (m *Model) SetKernel(species string, k kernel.Kernel) error {
	i := m.Store.SpeciesIndex(species)
	if i < 0 {
		return fmt.Errorf("rates: unknown species %q", species)
	}
	m.Kernels[i] = k
	return nil
}

// Rates evaluates the full pipeline for one state snapshot at time t
// under a canonical per-gear effort vector. The snapshot is never
// mutated; each stage reads the previous stages' outputs only.
func (m *Model) Rates(st *params.State, t float64, effort []float64) (*Bundle, error) {
	if err := m.checkState(st); err != nil {
		return nil, err
	}

	b := &Bundle{}
	var err error

	if fn, rerr := resolveStage[EncounterFunc](m.Reg, StageEncounter); rerr != nil {
		return nil, rerr
	} else if b.Encounter, err = fn(m, st, t); err != nil {
		return nil, err
	}

	if fn, rerr := resolveStage[FeedingFunc](m.Reg, StageFeedingLevel); rerr != nil {
		return nil, rerr
	} else if b.FeedingLevel, err = fn(m, b.Encounter); err != nil {
		return nil, err
	}

	if fn, rerr := resolveStage[EnergyFunc](m.Reg, StageEnergy); rerr != nil {
		return nil, rerr
	} else if b.EReproAndGrowth, err = fn(m, b.Encounter, b.FeedingLevel); err != nil {
		return nil, err
	}

	if fn, rerr := resolveStage[ReproSplitFunc](m.Reg, StageReproSplit); rerr != nil {
		return nil, rerr
	} else if b.ERepro, b.EGrowth, err = fn(m, b.EReproAndGrowth); err != nil {
		return nil, err
	}

	if fn, rerr := resolveStage[PredRateFunc](m.Reg, StagePredRate); rerr != nil {
		return nil, rerr
	} else if b.PredRate, err = fn(m, st, b.FeedingLevel); err != nil {
		return nil, err
	}

	if fn, rerr := resolveStage[PredMortFunc](m.Reg, StagePredMort); rerr != nil {
		return nil, rerr
	} else if b.PredMort, err = fn(m, b.PredRate); err != nil {
		return nil, err
	}

	if fn, rerr := resolveStage[FMortFunc](m.Reg, StageFMort); rerr != nil {
		return nil, rerr
	} else if b.FMortGear, b.FMort, err = fn(m, effort); err != nil {
		return nil, err
	}

	if fn, rerr := resolveStage[MortFunc](m.Reg, StageMort); rerr != nil {
		return nil, rerr
	} else if b.Mort, err = fn(m, st, b.PredMort, b.FMort, t); err != nil {
		return nil, err
	}

	if fn, rerr := resolveStage[ResourceMortFunc](m.Reg, StageResourceMort); rerr != nil {
		return nil, rerr
	} else if b.ResourceMort, err = fn(m, b.PredRate); err != nil {
		return nil, err
	}

	if fn, rerr := resolveStage[RDIFunc](m.Reg, StageRDI); rerr != nil {
		return nil, rerr
	} else if b.RDI, err = fn(m, st, b.ERepro); err != nil {
		return nil, err
	}

	if fn, rerr := resolveStage[RDDFunc](m.Reg, StageRDD); rerr != nil {
		return nil, rerr
	} else if b.RDD, err = fn(m, b.RDI); err != nil {
		return nil, err
	}

	return b, nil
}

// RatesDefault evaluates the pipeline at the store's configured initial
// state, time 0 and initial effort. This is the pure diagnostic mode.
func (m *Model) RatesDefault() (*Bundle, error) {
	return m.Rates(m.Store.InitialState(), 0, m.Store.InitialEffort)
}

func (m *Model) checkState(st *params.State) error {
	nSp := len(m.Store.Species)
	noW := m.Store.Grid.NoW()
	if len(st.N) != nSp {
		return fmt.Errorf("%w: encounter: consumer density has %d species rows, want %d",
			ErrShapeMismatch, len(st.N), nSp)
	}
	for i := range st.N {
		if len(st.N[i]) != noW {
			return fmt.Errorf("%w: encounter: consumer density species %s has %d bins, want %d",
				ErrShapeMismatch, m.Store.Species[i].Name, len(st.N[i]), noW)
		}
	}
	if len(st.NResource) != m.Store.Grid.NoWFull() {
		return fmt.Errorf("%w: encounter: resource density has %d bins, want %d",
			ErrShapeMismatch, len(st.NResource), m.Store.Grid.NoWFull())
	}
	return nil
}

// resolveStage fetches a stage implementation and asserts its contract
// type; a badly-typed replacement surfaces here, on first invocation.
func resolveStage[T any](r *Registry, name string) (T, error) {
	var zero T
	v, err := r.stage(name)
	if err != nil {
		return zero, err
	}
	fn, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("rates: stage %s: implementation is %T, want %T", name, v, zero)
	}
	return fn, nil
}
