package project

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/okeanid/sizespec/internal/grid"
	"github.com/okeanid/sizespec/internal/params"
	"github.com/okeanid/sizespec/internal/rates"
)

// tameModel builds a single-species community whose growth rates keep
// the explicit scheme comfortably inside its stability limit at
// dt=0.1, with recruitment pinned by a hard Beverton-Holt cap.
// Maturation is placed close to the asymptotic size so growth stays
// brisk at the top bin: the flux of fish growing past w_max is the
// community's only sink in the unfished case, and it sets the
// equilibration timescale.
func tameModel(t *testing.T, nSpecies int) *rates.Model {
	t.Helper()
	g, err := grid.New(100, 0.01, 10, 1e-6)
	if err != nil {
		t.Fatalf("grid: %v", err)
	}
	species := make([]params.Species, nSpecies)
	for i := range species {
		species[i] = params.Species{
			Name: string(rune('a' + i)),
			WMin: 0.01,
			WMax: 10,
			WMat: 9,
			H:    0.3,
			RMax: 10,
		}
	}
	gears := []params.Gear{
		{Name: "trawl", Species: "a", Sel: params.SelKnifeEdge, W50: 1, Catchability: 1},
		{Name: "seine", Sel: params.SelKnifeEdge, W50: 0.1, Catchability: 0.5},
	}
	s, err := params.New(g, species, gears, params.Resource{Kappa: 1e5})
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	return rates.NewModel(s)
}

func totalBiomass(s *params.Store, st *params.State) float64 {
	sum := 0.0
	for _, b := range s.Biomass(st) {
		sum += b
	}
	return sum
}

func TestProjectSnapshotCadence(t *testing.T) {
	m := tameModel(t, 1)
	p := New(m)

	res, err := p.Project(context.Background(), nil, Config{TMax: 2, Dt: 0.1, TSave: 0.5}, Constant(0))
	if err != nil {
		t.Fatalf("project: %v", err)
	}

	// Initial snapshot plus one every 0.5 units.
	if res.Snapshots() != 5 {
		t.Fatalf("expected 5 snapshots, got %d", res.Snapshots())
	}
	if res.Times[0] != 0 {
		t.Errorf("first snapshot at t=%g, want 0", res.Times[0])
	}
	if math.Abs(res.Times[4]-2.0) > 1e-12 {
		t.Errorf("last snapshot at t=%g, want 2", res.Times[4])
	}
	if res.FinalState == nil {
		t.Fatal("final state not retained")
	}
}

func TestProjectBadSaveCadence(t *testing.T) {
	m := tameModel(t, 1)
	p := New(m)

	_, err := p.Project(context.Background(), nil, Config{TMax: 1, Dt: 0.1, TSave: 0.25}, Constant(0))
	if !errors.Is(err, ErrBadSaveCadence) {
		t.Fatalf("expected ErrBadSaveCadence, got %v", err)
	}

	if _, err := p.Project(context.Background(), nil, Config{TMax: 1, Dt: 0}, Constant(0)); err == nil {
		t.Fatal("expected error for zero dt")
	}
}

func TestProjectDeterminism(t *testing.T) {
	cfg := Config{TMax: 3, Dt: 0.1, TSave: 1}

	run := func() *Result {
		m := tameModel(t, 2)
		res, err := New(m).Project(context.Background(), nil, cfg, Constant(0.5))
		if err != nil {
			t.Fatalf("project: %v", err)
		}
		return res
	}

	a, b := run(), run()
	for s := range a.N {
		for i := range a.N[s] {
			for j := range a.N[s][i] {
				if a.N[s][i][j] != b.N[s][i][j] {
					t.Fatalf("runs differ at snapshot %d species %d bin %d", s, i, j)
				}
			}
		}
	}
}

func TestProjectAppendContinues(t *testing.T) {
	cfg := Config{TMax: 2, Dt: 0.1, TSave: 1}

	m1 := tameModel(t, 1)
	p1 := New(m1)
	res, err := p1.Project(context.Background(), nil, cfg, Constant(0))
	if err != nil {
		t.Fatalf("first leg: %v", err)
	}
	firstSnaps := res.Snapshots()

	res, err = p1.Project(context.Background(), res, cfg, Constant(0))
	if err != nil {
		t.Fatalf("second leg: %v", err)
	}
	if res.Snapshots() != firstSnaps+2 {
		t.Fatalf("append added %d snapshots, want 2", res.Snapshots()-firstSnaps)
	}
	for i := 1; i < len(res.Times); i++ {
		if res.Times[i] <= res.Times[i-1] {
			t.Fatalf("time axis not increasing at %d: %v", i, res.Times)
		}
	}
	if math.Abs(res.FinalTime-4.0) > 1e-9 {
		t.Errorf("final time %g, want 4", res.FinalTime)
	}

	// The stitched run must reproduce one uninterrupted projection:
	// the state sequence does not depend on the clock under constant
	// effort, so densities agree exactly.
	m2 := tameModel(t, 1)
	whole, err := New(m2).Project(context.Background(), nil, Config{TMax: 4, Dt: 0.1, TSave: 1}, Constant(0))
	if err != nil {
		t.Fatalf("whole run: %v", err)
	}
	if whole.Snapshots() != res.Snapshots() {
		t.Fatalf("snapshot counts differ: %d vs %d", whole.Snapshots(), res.Snapshots())
	}
	last := res.Snapshots() - 1
	for j := range whole.N[last][0] {
		if whole.N[last][0][j] != res.N[last][0][j] {
			t.Fatalf("stitched run differs from whole run at bin %d", j)
		}
	}
}

func TestProjectEffortReorderInvariance(t *testing.T) {
	cfg := Config{TMax: 2, Dt: 0.1, TSave: 1}

	canonical := Table([]float64{0, 1}, []string{"trawl", "seine"}, [][]float64{{1, 0.3}, {0.2, 0.8}})
	permuted := Table([]float64{0, 1}, []string{"SEINE", "trawl"}, [][]float64{{0.3, 1}, {0.8, 0.2}})

	run := func(e Effort) *Result {
		m := tameModel(t, 1)
		res, err := New(m).Project(context.Background(), nil, cfg, e)
		if err != nil {
			t.Fatalf("project: %v", err)
		}
		return res
	}

	a, b := run(canonical), run(permuted)
	for s := range a.N {
		for j := range a.N[s][0] {
			if a.N[s][0][j] != b.N[s][0][j] {
				t.Fatalf("permuted effort changes outcome at snapshot %d bin %d", s, j)
			}
		}
		for gi := range a.Effort[s] {
			if a.Effort[s][gi] != b.Effort[s][gi] {
				t.Fatalf("recorded effort differs at snapshot %d gear %d", s, gi)
			}
		}
	}
}

type countingObserver struct {
	calls int
	lastT float64
}

func (c *countingObserver) OnStep(st *params.State, b *rates.Bundle, t float64) {
	c.calls++
	c.lastT = t
}

func TestProjectObserver(t *testing.T) {
	m := tameModel(t, 1)
	p := New(m)
	obs := &countingObserver{}
	p.AddObserver(obs)

	if _, err := p.Project(context.Background(), nil, Config{TMax: 1, Dt: 0.1}, Constant(0)); err != nil {
		t.Fatalf("project: %v", err)
	}
	if obs.calls != 10 {
		t.Errorf("observer called %d times, want 10", obs.calls)
	}
	if math.Abs(obs.lastT-0.9) > 1e-9 {
		t.Errorf("last observed time %g, want 0.9", obs.lastT)
	}
}

func TestProjectComponentDynamics(t *testing.T) {
	m := tameModel(t, 1)
	m.Reg.RegisterComponent("detritus", rates.Component{
		Initial: 100.0,
		Dynamics: func(m *rates.Model, st *params.State, b *rates.Bundle, t, dt float64) any {
			return st.Other["detritus"].(float64) * (1 - 0.1*dt)
		},
	})

	res, err := New(m).Project(context.Background(), nil, Config{TMax: 1, Dt: 0.1}, Constant(0))
	if err != nil {
		t.Fatalf("project: %v", err)
	}

	got := res.FinalState.Other["detritus"].(float64)
	want := 100.0 * math.Pow(1-0.01, 10)
	if math.Abs(got-want)/want > 1e-12 {
		t.Errorf("component state %g, want %g", got, want)
	}
}

func TestProjectCancellation(t *testing.T) {
	m := tameModel(t, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(m).Project(ctx, nil, Config{TMax: 1, Dt: 0.1}, Constant(0))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

// TestProjectReachesSteadyState runs the unfished single-species
// community until total biomass settles: the projection is extended in
// 50-unit legs until the relative change between consecutive saved
// steps drops below 1e-6.
func TestProjectReachesSteadyState(t *testing.T) {
	if testing.Short() {
		t.Skip("long projection")
	}

	m := tameModel(t, 1)
	s := m.Store
	p := New(m)
	cfg := Config{TMax: 50, Dt: 0.1, TSave: 1}

	var res *Result
	var err error
	settled := false
	for leg := 0; leg < 20 && !settled; leg++ {
		res, err = p.Project(context.Background(), res, cfg, Constant(0))
		if err != nil {
			t.Fatalf("leg %d: %v", leg, err)
		}
		if !res.FinalState.IsValid() {
			t.Fatalf("state left the finite domain in leg %d", leg)
		}

		n := res.Snapshots()
		stA := &params.State{N: res.N[n-2], NResource: res.NResource[n-2]}
		stB := &params.State{N: res.N[n-1], NResource: res.NResource[n-1]}
		ba, bb := totalBiomass(s, stA), totalBiomass(s, stB)
		if ba > 0 && math.Abs(bb-ba)/ba < 1e-6 {
			settled = true
		}
	}

	if !settled {
		t.Fatal("biomass never settled to within 1e-6 per saved step")
	}
	if b := totalBiomass(s, res.FinalState); b <= 0 {
		t.Fatalf("steady-state biomass %g not positive", b)
	}
}

func TestProjectConfinesSpeciesBelowMaxSize(t *testing.T) {
	// A species whose asymptotic size sits in the interior of the grid:
	// fish growing through the top bin leave the domain instead of
	// piling up in bins the species cannot occupy.
	g, err := grid.New(100, 0.01, 10, 1e-6)
	if err != nil {
		t.Fatalf("grid: %v", err)
	}
	species := []params.Species{{
		Name: "a",
		WMin: 0.01,
		WMax: 1,
		WMat: 0.9,
		H:    0.3,
		RMax: 10,
	}}
	s, err := params.New(g, species, nil, params.Resource{Kappa: 1e5})
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	m := rates.NewModel(s)

	res, err := New(m).Project(context.Background(), nil, Config{TMax: 5, Dt: 0.1, TSave: 1}, Constant(0))
	if err != nil {
		t.Fatalf("project: %v", err)
	}

	top := s.MaxIdx[0]
	final := res.FinalState
	if final.N[0][top] < 0 {
		t.Fatalf("top bin density %g negative", final.N[0][top])
	}
	for j := top + 1; j < g.NoW(); j++ {
		if final.N[0][j] != 0 {
			t.Fatalf("density %g leaked above the asymptotic size at bin %d", final.N[0][j], j)
		}
	}
	if b := totalBiomass(s, final); b <= 0 {
		t.Fatalf("biomass %g not positive", b)
	}
}
