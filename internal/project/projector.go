// Package project advances a size-spectrum community through time with
// an explicit upwind finite-volume scheme, driven by the rate pipeline
// and a time-varying multi-gear effort input.
package project

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/okeanid/sizespec/internal/params"
	"github.com/okeanid/sizespec/internal/rates"
)

// ErrBadSaveCadence indicates a save interval that is not an integer
// multiple of the timestep.
var ErrBadSaveCadence = errors.New("project: t_save is not an integer multiple of dt")

// Config holds the run settings of one projection call.
type Config struct {
	TMax  float64 // horizon, in model time units
	Dt    float64
	TSave float64 // snapshot cadence; zero means every step
}

// Observer is notified after every rate evaluation, before the state is
// advanced. Observers must not mutate the snapshot or the bundle.
type Observer interface {
	OnStep(st *params.State, b *rates.Bundle, t float64)
}

// Result is the appendable history of a projection: one entry per saved
// snapshot, plus the exact final state so a follow-up projection can
// continue where this one stopped.
type Result struct {
	Times     []float64
	N         [][][]float64 // snapshot x species x size
	NResource [][]float64   // snapshot x full grid
	Effort    [][]float64   // snapshot x gear

	FinalState *params.State
	FinalTime  float64
}

// Projector owns the state during a run; it is the only code that
// mutates it, one timestep at a time.
type Projector struct {
	model     *rates.Model
	observers []Observer
}

func New(m *rates.Model) *Projector {
	return &Projector{model: m}
}

func (p *Projector) AddObserver(o Observer) { p.observers = append(p.observers, o) }

// Project advances the community by cfg.TMax. With prev == nil the run
// starts from the store's initial state at time zero; otherwise it
// continues from prev's final state and appends snapshots to it,
// keeping the time axis continuous. Given identical inputs the output
// is bit-reproducible.
func (p *Projector) Project(ctx context.Context, prev *Result, cfg Config, effort Effort) (*Result, error) {
	steps, saveEvery, err := p.validate(cfg)
	if err != nil {
		return nil, err
	}
	effortAt, err := effort.compile(p.model.Store.GearNames())
	if err != nil {
		return nil, err
	}

	res := prev
	var st *params.State
	var t0 float64
	if res == nil {
		res = &Result{}
		st = p.model.Store.InitialState()
		p.seedComponents(st)
		res.record(st, effortAt(0), 0)
	} else {
		st = res.FinalState.Clone()
		t0 = res.FinalTime
	}

	t := t0
	for i := 0; i < steps; i++ {
		select {
		case <-ctx.Done():
			return res, ctx.Err()
		default:
		}

		ev := effortAt(t)
		b, err := p.model.Rates(st, t, ev)
		if err != nil {
			return nil, err
		}
		for _, o := range p.observers {
			o.OnStep(st, b, t)
		}

		st = p.step(st, b, t, cfg.Dt)
		t = t0 + float64(i+1)*cfg.Dt

		if (i+1)%saveEvery == 0 {
			res.record(st, effortAt(t), t)
		}
	}

	res.FinalState = st
	res.FinalTime = t
	return res, nil
}

func (p *Projector) validate(cfg Config) (steps, saveEvery int, err error) {
	if cfg.Dt <= 0 {
		return 0, 0, fmt.Errorf("project: dt must be positive, got %g", cfg.Dt)
	}
	if cfg.TMax <= 0 {
		return 0, 0, fmt.Errorf("project: t_max must be positive, got %g", cfg.TMax)
	}
	tSave := cfg.TSave
	if tSave == 0 {
		tSave = cfg.Dt
	}
	ratio := tSave / cfg.Dt
	if math.Abs(ratio-math.Round(ratio)) > 1e-9 || math.Round(ratio) < 1 {
		return 0, 0, fmt.Errorf("%w: t_save=%g, dt=%g", ErrBadSaveCadence, tSave, cfg.Dt)
	}
	return int(math.Round(cfg.TMax / cfg.Dt)), int(math.Round(ratio)), nil
}

func (p *Projector) seedComponents(st *params.State) {
	for _, name := range p.model.Reg.Components() {
		comp, _ := p.model.Reg.Component(name)
		st.Other[name] = comp.Initial
	}
}

// step applies one explicit upwind finite-volume update. Flux across a
// bin boundary is growth*N of the upwind (lower) neighbor; the inflow
// at the egg bin is the density-dependent recruitment divided by that
// bin's width. The mortality term uses the bin's own rate and density,
// mort(w)*N(w,t), the convention adopted for non-uniform bin widths.
func (p *Projector) step(st *params.State, b *rates.Bundle, t, dt float64) *params.State {
	s := p.model.Store
	g := s.Grid

	next := &params.State{
		N:         make([][]float64, len(st.N)),
		NResource: make([]float64, len(st.NResource)),
		Other:     make(map[string]any, len(st.Other)),
	}

	for i := range st.N {
		n := len(st.N[i])
		row := make([]float64, n)
		gr := b.EGrowth[i]
		mort := b.Mort[i]
		idx0 := s.WMinIdx[i]
		// Bins above the asymptotic size stay empty; the growth flux
		// out of the top bin leaves the domain.
		top := s.MaxIdx[i]
		for j := idx0; j <= top; j++ {
			fluxIn := b.RDD[i]
			if j > idx0 {
				fluxIn = gr[j-1] * st.N[i][j-1]
			}
			fluxOut := gr[j] * st.N[i][j]
			v := st.N[i][j] - dt*(fluxOut-fluxIn)/g.Dw[j] - dt*mort[j]*st.N[i][j]
			if v < 0 {
				v = 0
			}
			row[j] = v
		}
		next.N[i] = row
	}

	// Semi-chemostat resource: exact relaxation toward the effective
	// equilibrium under the current predation mortality, which keeps
	// the update stable for any dt.
	for j := range st.NResource {
		r := s.RRPP[j]
		mu := b.ResourceMort[j]
		tot := r + mu
		if tot <= 0 {
			next.NResource[j] = st.NResource[j]
			continue
		}
		eq := r * s.CCPP[j] / tot
		next.NResource[j] = eq + (st.NResource[j]-eq)*math.Exp(-tot*dt)
	}

	for _, name := range p.model.Reg.Components() {
		comp, _ := p.model.Reg.Component(name)
		if comp.Dynamics != nil {
			next.Other[name] = comp.Dynamics(p.model, st, b, t, dt)
		} else {
			next.Other[name] = st.Other[name]
		}
	}

	return next
}

func (r *Result) record(st *params.State, effort []float64, t float64) {
	n := make([][]float64, len(st.N))
	for i := range st.N {
		n[i] = append([]float64(nil), st.N[i]...)
	}
	r.Times = append(r.Times, t)
	r.N = append(r.N, n)
	r.NResource = append(r.NResource, append([]float64(nil), st.NResource...))
	r.Effort = append(r.Effort, append([]float64(nil), effort...))
}

// Snapshots returns the number of saved states.
func (r *Result) Snapshots() int { return len(r.Times) }
