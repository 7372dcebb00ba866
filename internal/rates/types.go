package rates

import (
	"errors"

	"github.com/okeanid/sizespec/internal/params"
)

// ErrShapeMismatch indicates an array whose dimensions or labels do not
// match the parameter store, discovered mid-pipeline. It always aborts
// the evaluation; a structural inconsistency is not recoverable.
var ErrShapeMismatch = errors.New("rates: array shape mismatch")

// Bundle carries every output of one pipeline evaluation. Consumer-grid
// arrays are species x size; PredRate and ResourceMort live on the full
// grid.
type Bundle struct {
	Encounter       [][]float64
	FeedingLevel    [][]float64
	EReproAndGrowth [][]float64
	ERepro          [][]float64
	EGrowth         [][]float64
	PredRate        [][]float64 // species x full grid
	PredMort        [][]float64
	FMortGear       [][][]float64 // gear x species x size
	FMort           [][]float64
	Mort            [][]float64
	ResourceMort    []float64 // full grid
	RDI             []float64
	RDD             []float64
}

// Stage function contracts, one per pipeline slot. A replacement
// registered under a stage name must satisfy the matching type; the
// mismatch is only discovered when the pipeline first invokes it.
type (
	EncounterFunc    func(m *Model, st *params.State, t float64) ([][]float64, error)
	FeedingFunc      func(m *Model, encounter [][]float64) ([][]float64, error)
	EnergyFunc       func(m *Model, encounter, feeding [][]float64) ([][]float64, error)
	ReproSplitFunc   func(m *Model, energy [][]float64) (repro, growth [][]float64, err error)
	PredRateFunc     func(m *Model, st *params.State, feeding [][]float64) ([][]float64, error)
	PredMortFunc     func(m *Model, predRate [][]float64) ([][]float64, error)
	FMortFunc        func(m *Model, effort []float64) (gear [][][]float64, total [][]float64, err error)
	MortFunc         func(m *Model, st *params.State, predMort, fMort [][]float64, t float64) ([][]float64, error)
	ResourceMortFunc func(m *Model, predRate [][]float64) ([]float64, error)
	RDIFunc          func(m *Model, st *params.State, eRepro [][]float64) ([]float64, error)
	RDDFunc          func(m *Model, rdi []float64) ([]float64, error)
)

// Component is an extra ecosystem component with its own state and
// dynamics. Encounter and Mortality, when non-nil, contribute
// species x size terms to the matching pipeline stages; Dynamics
// returns the component's next state and is invoked by the projector
// once per step.
type Component struct {
	Initial   any
	Dynamics  func(m *Model, st *params.State, b *Bundle, t, dt float64) any
	Encounter func(m *Model, st *params.State, t float64) [][]float64
	Mortality func(m *Model, st *params.State, t float64) [][]float64
}
