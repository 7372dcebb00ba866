package params

import (
	"errors"
	"fmt"
	"strings"
)

// ErrParamsInconsistent indicates a cross-array invariant violation in
// the parameter store.
var ErrParamsInconsistent = errors.New("params: inconsistent parameter arrays")

// ValidationError aggregates every violated invariant found in one
// validation pass, so a single corrective pass can fix them all.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%d problems):", ErrParamsInconsistent, len(e.Problems))
	for _, p := range e.Problems {
		b.WriteString("\n  - ")
		b.WriteString(p)
	}
	return b.String()
}

func (e *ValidationError) Unwrap() error { return ErrParamsInconsistent }

// Validate checks every cross-consistency invariant of the store and
// reports all violations at once. It never mutates the store.
func (s *Store) Validate() error {
	var problems []string
	addf := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	noW := s.Grid.NoW()
	noWFull := s.Grid.NoWFull()
	nSp := len(s.Species)
	nGear := len(s.Gears)

	if nSp == 0 {
		addf("species table is empty")
	}

	for i, sp := range s.Species {
		if sp.Name == "" {
			addf("species %d has no name", i)
		}
		if sp.WMin <= 0 || sp.WMax <= sp.WMin {
			addf("species %s: need 0 < w_min < w_max, got w_min=%g w_max=%g", sp.Name, sp.WMin, sp.WMax)
		}
		if err := s.Grid.CheckMaxSize(sp.WMax); err != nil {
			addf("species %s: %v", sp.Name, err)
		}
	}

	if len(s.WMinIdx) != nSp {
		addf("w_min_idx has %d entries, want %d", len(s.WMinIdx), nSp)
	} else {
		for i, idx := range s.WMinIdx {
			if idx < 0 {
				addf("species %s: egg size %g has no consumer grid bin", s.Species[i].Name, s.Species[i].WMin)
				continue
			}
			if idx >= noW {
				addf("species %s: w_min_idx %d outside grid", s.Species[i].Name, idx)
				continue
			}
			wMin := s.Species[i].WMin
			if s.Grid.W[idx] > wMin*(1+1e-6) || (idx+1 < noW && s.Grid.W[idx+1] <= wMin*(1-1e-6)) {
				addf("species %s: egg size %g not bracketed by bin %d", s.Species[i].Name, wMin, idx)
			}
		}
	}

	checkGrid := func(name string, m [][]float64) {
		if len(m) != nSp {
			addf("%s has %d species rows, want %d", name, len(m), nSp)
			return
		}
		for i := range m {
			if len(m[i]) != noW {
				addf("%s species %s has %d size bins, want %d", name, s.Species[i].Name, len(m[i]), noW)
			}
		}
	}
	checkGrid("maturity", s.Maturity)
	checkGrid("psi", s.Psi)
	checkGrid("intake_max", s.IntakeMax)
	checkGrid("search_vol", s.SearchVol)
	checkGrid("metab", s.Metab)
	checkGrid("mort_ext", s.MortExt)
	checkGrid("enc_ext", s.EncExt)

	if len(s.Selectivity) != nGear {
		addf("selectivity has %d gear slabs, want %d", len(s.Selectivity), nGear)
	} else {
		for gi := range s.Selectivity {
			checkGrid(fmt.Sprintf("selectivity[%s]", s.Gears[gi].Name), s.Selectivity[gi])
		}
	}
	if len(s.Catchability) != nGear {
		addf("catchability has %d gear rows, want %d", len(s.Catchability), nGear)
	} else {
		for gi := range s.Catchability {
			if len(s.Catchability[gi]) != nSp {
				addf("catchability gear %s has %d species, want %d", s.Gears[gi].Name, len(s.Catchability[gi]), nSp)
			}
		}
	}

	if len(s.Interaction) != nSp {
		addf("interaction matrix has %d rows, want %d", len(s.Interaction), nSp)
	} else {
		for i := range s.Interaction {
			if len(s.Interaction[i]) != nSp {
				addf("interaction row %s has %d columns, want %d", s.Species[i].Name, len(s.Interaction[i]), nSp)
				continue
			}
			for j, v := range s.Interaction[i] {
				if v < 0 || v > 1 {
					addf("interaction[%d][%d] = %g outside [0, 1]", i, j, v)
				}
			}
		}
	}

	if len(s.RRPP) != noWFull {
		addf("rr_pp has %d entries, want %d", len(s.RRPP), noWFull)
	}
	if len(s.CCPP) != noWFull {
		addf("cc_pp has %d entries, want %d", len(s.CCPP), noWFull)
	}

	checkGrid("initial_n", s.InitialN)
	if len(s.InitialNResource) != noWFull {
		addf("initial resource density has %d entries, want %d", len(s.InitialNResource), noWFull)
	}
	if len(s.InitialEffort) != nGear {
		addf("initial effort has %d entries, want %d gears", len(s.InitialEffort), nGear)
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}
