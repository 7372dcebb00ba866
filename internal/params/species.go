package params

import "math"

// Biological defaults used to fill optional columns of the species
// attribute table. Exponents follow the standard allometric scalings
// for intake, metabolism and search volume.
const (
	DefaultN      = 0.75 // max intake exponent
	DefaultP      = 0.7  // metabolic exponent
	DefaultQ      = 0.8  // search volume exponent
	DefaultBeta   = 100.0
	DefaultSigma  = 1.3
	DefaultAlpha  = 0.6 // assimilation efficiency
	DefaultH      = 30.0
	DefaultERepro = 1.0
	DefaultF0     = 0.6 // initial feeding level used for the gamma default

	DefaultLambda   = 2.05
	DefaultKappa    = 1e11
	DefaultR0       = 10.0
	DefaultMaturity = 0.25 // w_mat as a fraction of w_max
)

// Species is one row of the species attribute table. Name, WMin and
// WMax are required; zero-valued optional fields are filled by
// ApplyDefaults before the coefficient grids are allocated.
type Species struct {
	Name string  `yaml:"name"`
	WMin float64 `yaml:"w_min"`
	WMax float64 `yaml:"w_max"`

	WMat  float64 `yaml:"w_mat,omitempty"`
	Beta  float64 `yaml:"beta,omitempty"`
	Sigma float64 `yaml:"sigma,omitempty"`

	H      float64 `yaml:"h,omitempty"`      // max intake coefficient
	Gamma  float64 `yaml:"gamma,omitempty"`  // search volume coefficient
	Ks     float64 `yaml:"ks,omitempty"`     // metabolic coefficient
	Alpha  float64 `yaml:"alpha,omitempty"`  // assimilation efficiency
	ERepro float64 `yaml:"erepro,omitempty"` // reproductive efficiency
	RMax   float64 `yaml:"r_max,omitempty"`  // max recruitment, 0 means unbounded
	Z0     float64 `yaml:"z0,omitempty"`     // background mortality
	N0     float64 `yaml:"n0,omitempty"`     // initial abundance coefficient
}

// Resource holds the coefficients of the background spectrum: a
// carrying capacity power law kappa*w^-lambda cut off above Cutoff, and
// a regeneration rate r0*w^(n-1).
type Resource struct {
	Kappa  float64 `yaml:"kappa,omitempty"`
	Lambda float64 `yaml:"lambda,omitempty"`
	R0     float64 `yaml:"r0,omitempty"`
	Cutoff float64 `yaml:"cutoff,omitempty"`
}

// ApplyDefaults fills the zero-valued optional resource coefficients.
func (r *Resource) ApplyDefaults() {
	if r.Kappa == 0 {
		r.Kappa = DefaultKappa
	}
	if r.Lambda == 0 {
		r.Lambda = DefaultLambda
	}
	if r.R0 == 0 {
		r.R0 = DefaultR0
	}
	if r.Cutoff == 0 {
		r.Cutoff = math.Inf(1)
	}
}

// ApplyDefaults fills the zero-valued optional columns of a species
// row. The search volume default is calibrated so that a feeding level
// of DefaultF0 results when the species feeds on a resource spectrum at
// carrying capacity.
func (s *Species) ApplyDefaults(res Resource) {
	if s.WMat == 0 {
		s.WMat = DefaultMaturity * s.WMax
	}
	if s.Beta == 0 {
		s.Beta = DefaultBeta
	}
	if s.Sigma == 0 {
		s.Sigma = DefaultSigma
	}
	if s.H == 0 {
		s.H = DefaultH
	}
	if s.Alpha == 0 {
		s.Alpha = DefaultAlpha
	}
	if s.Ks == 0 {
		s.Ks = 0.2 * s.Alpha * s.H
	}
	if s.ERepro == 0 {
		s.ERepro = DefaultERepro
	}
	if s.RMax == 0 {
		s.RMax = math.Inf(1)
	}
	if s.Gamma == 0 {
		lam := res.Lambda
		ae := math.Sqrt(2*math.Pi) * s.Sigma * math.Pow(s.Beta, lam-2) *
			math.Exp((lam-2)*(lam-2)*s.Sigma*s.Sigma/2)
		s.Gamma = DefaultF0 * s.H / ((1 - DefaultF0) * res.Kappa * ae)
	}
	if s.N0 == 0 {
		s.N0 = 1e-3 * res.Kappa
	}
}

// SelKnifeEdge and SelSigmoid name the built-in gear selectivity shapes.
const (
	SelKnifeEdge = "knife_edge"
	SelSigmoid   = "sigmoid"
)

// Gear is one row of the gear attribute table. Species names the
// single target species; empty means the gear selects every species.
type Gear struct {
	Name         string  `yaml:"name"`
	Species      string  `yaml:"species,omitempty"`
	Sel          string  `yaml:"sel,omitempty"` // knife_edge or sigmoid
	W50          float64 `yaml:"w50,omitempty"`
	Slope        float64 `yaml:"slope,omitempty"`
	Catchability float64 `yaml:"catchability,omitempty"`
}

// selectivity evaluates the gear's size selectivity at weight w.
func (g Gear) selectivity(w float64) float64 {
	switch g.Sel {
	case SelSigmoid:
		slope := g.Slope
		if slope == 0 {
			slope = 0.25
		}
		return 1 / (1 + math.Exp(-(math.Log(w)-math.Log(g.W50))/slope))
	case SelKnifeEdge, "":
		if w >= g.W50 {
			return 1
		}
		return 0
	default:
		return 0
	}
}
