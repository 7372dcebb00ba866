package rates

import (
	"fmt"
	"sort"
)

// Stage names, the keys of the pipeline's dispatch table.
const (
	StageEncounter    = "encounter"
	StageFeedingLevel = "feeding_level"
	StageEnergy       = "e_repro_and_growth"
	StageReproSplit   = "repro_split"
	StagePredRate     = "pred_rate"
	StagePredMort     = "pred_mort"
	StageFMort        = "f_mort"
	StageMort         = "mort"
	StageResourceMort = "resource_mort"
	StageRDI          = "rdi"
	StageRDD          = "rdd"
)

// Registry maps stage names to implementations and holds any extra
// ecosystem components. The pipeline resolves stages at call time, so a
// replacement takes effect on the next evaluation.
type Registry struct {
	stages     map[string]any
	components map[string]Component
	compOrder  []string
}

// NewRegistry returns a registry with every stage bound to its default
// implementation and no extra components.
func NewRegistry() *Registry {
	r := &Registry{
		stages:     make(map[string]any),
		components: make(map[string]Component),
	}
	r.stages[StageEncounter] = EncounterFunc(DefaultEncounter)
	r.stages[StageFeedingLevel] = FeedingFunc(DefaultFeedingLevel)
	r.stages[StageEnergy] = EnergyFunc(DefaultEReproAndGrowth)
	r.stages[StageReproSplit] = ReproSplitFunc(DefaultReproSplit)
	r.stages[StagePredRate] = PredRateFunc(DefaultPredRate)
	r.stages[StagePredMort] = PredMortFunc(DefaultPredMort)
	r.stages[StageFMort] = FMortFunc(DefaultFMort)
	r.stages[StageMort] = MortFunc(DefaultMort)
	r.stages[StageResourceMort] = ResourceMortFunc(DefaultResourceMort)
	r.stages[StageRDI] = RDIFunc(DefaultRDI)
	r.stages[StageRDD] = RDDFunc(DefaultBevertonHolt)
	return r
}

// Replace swaps the implementation of a named stage. Only the presence
// of the name is validated here; a replacement of the wrong type fails
// lazily, at its first invocation.
func (r *Registry) Replace(stage string, impl any) error {
	if _, ok := r.stages[stage]; !ok {
		return fmt.Errorf("unknown stage: %s", stage)
	}
	r.stages[stage] = impl
	return nil
}

// Stages lists the stage names in sorted order.
func (r *Registry) Stages() []string {
	names := make([]string, 0, len(r.stages))
	for name := range r.stages {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) stage(name string) (any, error) {
	v, ok := r.stages[name]
	if !ok {
		return nil, fmt.Errorf("unknown stage: %s", name)
	}
	return v, nil
}

// RegisterComponent adds (or replaces) an extra ecosystem component.
// Registration order is preserved so projections remain deterministic.
func (r *Registry) RegisterComponent(name string, c Component) {
	if _, ok := r.components[name]; !ok {
		r.compOrder = append(r.compOrder, name)
	}
	r.components[name] = c
}

// Components returns component names in registration order.
func (r *Registry) Components() []string {
	return append([]string(nil), r.compOrder...)
}

// Component looks up a registered component.
func (r *Registry) Component(name string) (Component, bool) {
	c, ok := r.components[name]
	return c, ok
}
