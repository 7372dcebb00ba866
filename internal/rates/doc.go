// Package rates turns a community state snapshot into the full bundle
// of instantaneous rates driving the size-spectrum dynamics.
//
// The pipeline is a fixed sequence of named stages:
//
//	encounter -> feeding_level -> e_repro_and_growth -> repro_split
//	-> pred_rate -> pred_mort -> f_mort -> mort -> resource_mort
//	-> rdi -> rdd
//
// Every stage is a pure function of the state snapshot and earlier
// stage outputs, resolved by name through a [Registry] at each
// invocation, so any single stage can be replaced without touching the
// others. Extra ecosystem components registered on the Registry
// contribute encounter and mortality terms and carry their own
// dynamics.
//
// A [Model] ties a validated parameter store to a registry and a
// convolution strategy; [Model.Rates] evaluates the bundle for an
// arbitrary snapshot and [Model.RatesDefault] for the store's
// configured initial state.
package rates
