package params

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/okeanid/sizespec/internal/grid"
)

func testGrid(t *testing.T) *grid.Grid {
	t.Helper()
	g, err := grid.New(100, 0.001, 1000, 1e-10)
	if err != nil {
		t.Fatalf("grid: %v", err)
	}
	return g
}

func testSpecies() []Species {
	return []Species{
		{Name: "sprat", WMin: 0.001, WMax: 100},
		{Name: "cod", WMin: 0.01, WMax: 1000},
	}
}

func testGears() []Gear {
	return []Gear{
		{Name: "trawl", Species: "cod", Sel: SelSigmoid, W50: 50, Slope: 0.25, Catchability: 1},
		{Name: "seine", Species: "sprat", Sel: SelKnifeEdge, W50: 1, Catchability: 0.5},
	}
}

func TestNewStoreShapes(t *testing.T) {
	g := testGrid(t)
	s, err := New(g, testSpecies(), testGears(), Resource{})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	grids := map[string][][]float64{
		"maturity":   s.Maturity,
		"psi":        s.Psi,
		"intake_max": s.IntakeMax,
		"search_vol": s.SearchVol,
		"metab":      s.Metab,
		"mort_ext":   s.MortExt,
		"enc_ext":    s.EncExt,
	}
	for name, m := range grids {
		if len(m) != 2 {
			t.Errorf("%s: %d species rows, want 2", name, len(m))
		}
		for i := range m {
			if len(m[i]) != g.NoW() {
				t.Errorf("%s species %d: %d bins, want %d", name, i, len(m[i]), g.NoW())
			}
		}
	}

	if len(s.Selectivity) != 2 || len(s.Catchability) != 2 {
		t.Fatalf("gear axis length wrong: sel %d catch %d", len(s.Selectivity), len(s.Catchability))
	}
	if len(s.RRPP) != g.NoWFull() || len(s.CCPP) != g.NoWFull() {
		t.Errorf("resource coefficients not on full grid")
	}
}

func TestNewStoreDefaults(t *testing.T) {
	g := testGrid(t)
	s, err := New(g, testSpecies(), nil, Resource{})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	sp := s.Species[0]
	if sp.Beta != DefaultBeta || sp.Sigma != DefaultSigma {
		t.Errorf("kernel defaults not filled: beta=%g sigma=%g", sp.Beta, sp.Sigma)
	}
	if sp.WMat != DefaultMaturity*sp.WMax {
		t.Errorf("w_mat default wrong: %g", sp.WMat)
	}
	if sp.Gamma <= 0 {
		t.Errorf("gamma default not computed: %g", sp.Gamma)
	}
	if !math.IsInf(sp.RMax, 1) {
		t.Errorf("r_max should default to unbounded, got %g", sp.RMax)
	}

	// Egg bracket invariant.
	for i := range s.Species {
		idx := s.WMinIdx[i]
		wMin := s.Species[i].WMin
		if g.W[idx] > wMin*(1+1e-6) {
			t.Errorf("species %d: w[%d]=%g above egg size %g", i, idx, g.W[idx], wMin)
		}
		if idx+1 < g.NoW() && g.W[idx+1] <= wMin*(1-1e-6) {
			t.Errorf("species %d: next bin %g below egg size %g", i, g.W[idx+1], wMin)
		}
	}
}

func TestGearTargeting(t *testing.T) {
	g := testGrid(t)
	s, err := New(g, testSpecies(), testGears(), Resource{})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	// trawl targets cod only: sprat row must stay zero.
	spratIdx := s.SpeciesIndex("sprat")
	for j, v := range s.Selectivity[0][spratIdx] {
		if v != 0 {
			t.Fatalf("trawl selects sprat at bin %d", j)
		}
	}
	if s.Catchability[0][spratIdx] != 0 {
		t.Errorf("trawl catchability on sprat should be zero")
	}

	codIdx := s.SpeciesIndex("cod")
	if s.Catchability[0][codIdx] != 1 {
		t.Errorf("trawl catchability on cod = %g, want 1", s.Catchability[0][codIdx])
	}
}

func TestValidateAggregatesProblems(t *testing.T) {
	g := testGrid(t)
	s, err := New(g, testSpecies(), testGears(), Resource{})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	// Break several invariants at once.
	s.Interaction[0][1] = 2.5
	s.Psi[1] = s.Psi[1][:10]
	s.RRPP = s.RRPP[:5]

	err = s.Validate()
	if err == nil {
		t.Fatal("expected validation failure")
	}
	if !errors.Is(err, ErrParamsInconsistent) {
		t.Errorf("expected ErrParamsInconsistent, got %v", err)
	}

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	if len(verr.Problems) < 3 {
		t.Errorf("expected at least 3 aggregated problems, got %d: %v", len(verr.Problems), verr.Problems)
	}
	if !strings.Contains(err.Error(), "interaction") {
		t.Errorf("diagnostic does not name the interaction matrix: %s", err)
	}
}

func TestModifyTransaction(t *testing.T) {
	g := testGrid(t)
	s, err := New(g, testSpecies(), testGears(), Resource{})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	before := s.Interaction[0][1]

	// A rejected candidate must leave the store untouched.
	err = s.Modify(func(c *Store) {
		c.Interaction[0][1] = -1
		c.Metab[0] = nil
	})
	if !errors.Is(err, ErrParamsInconsistent) {
		t.Fatalf("expected ErrParamsInconsistent, got %v", err)
	}
	if s.Interaction[0][1] != before {
		t.Errorf("rejected mutation leaked into the store")
	}
	if s.Metab[0] == nil {
		t.Errorf("rejected mutation leaked into metab")
	}

	// A valid candidate swaps in atomically.
	if err := s.Modify(func(c *Store) { c.Interaction[0][1] = 0.5 }); err != nil {
		t.Fatalf("valid modify rejected: %v", err)
	}
	if s.Interaction[0][1] != 0.5 {
		t.Errorf("valid mutation not applied")
	}
}

func TestBiomass(t *testing.T) {
	g := testGrid(t)
	s, err := New(g, testSpecies(), nil, Resource{})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	st := s.InitialState()
	b := s.Biomass(st)
	for i, v := range b {
		if v <= 0 || math.IsNaN(v) {
			t.Errorf("species %d: biomass %g not positive", i, v)
		}
	}

	// Doubling density doubles biomass.
	for i := range st.N {
		for j := range st.N[i] {
			st.N[i][j] *= 2
		}
	}
	b2 := s.Biomass(st)
	for i := range b {
		if math.Abs(b2[i]-2*b[i])/b[i] > 1e-12 {
			t.Errorf("species %d: biomass not linear in density", i)
		}
	}
}

func TestPsiAtAsymptoticSize(t *testing.T) {
	g := testGrid(t)
	s, err := New(g, testSpecies(), nil, Resource{})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	for i := range s.Species {
		top := s.MaxIdx[i]
		// Above the asymptotic size every joule goes to reproduction.
		for j := top + 1; j < g.NoW(); j++ {
			if s.Psi[i][j] != 1 {
				t.Fatalf("species %d: psi[%d] = %g above w_max, want 1", i, j, s.Psi[i][j])
			}
		}
		// At the top bin itself psi stays below 1: the growth flux
		// through w_max is the spectrum's boundary sink, and it must
		// not vanish.
		if s.Psi[i][top] >= 1 {
			t.Errorf("species %d: psi at the top bin is %g, want < 1", i, s.Psi[i][top])
		}
		if s.Psi[i][top] <= s.Psi[i][top-1] {
			t.Errorf("species %d: psi not increasing toward w_max", i)
		}
	}
}

func TestEggSizeOffGridAggregates(t *testing.T) {
	g := testGrid(t)
	species := []Species{
		{Name: "sprat", WMin: 0.001, WMax: 100},
		{Name: "", WMin: 1e-12, WMax: 100}, // egg below the grid, and unnamed
	}

	_, err := New(g, species, nil, Resource{})
	if err == nil {
		t.Fatal("expected validation failure")
	}
	if !errors.Is(err, ErrParamsInconsistent) {
		t.Fatalf("expected ErrParamsInconsistent, got %v", err)
	}

	// Both violations surface in one pass.
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	if len(verr.Problems) < 2 {
		t.Errorf("expected at least 2 aggregated problems, got %d: %v", len(verr.Problems), verr.Problems)
	}
	if !strings.Contains(err.Error(), "egg size") {
		t.Errorf("diagnostic does not name the egg size: %s", err)
	}
	if !strings.Contains(err.Error(), "no name") {
		t.Errorf("diagnostic does not name the missing species name: %s", err)
	}
}
