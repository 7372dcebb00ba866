// Package storage persists projection runs as a directory of
// metadata.json, biomass.csv (per-species biomass over saved steps) and
// spectra.csv (final size spectra). It is a collaborator of the
// numerical core, not part of it.
package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/okeanid/sizespec/internal/params"
	"github.com/okeanid/sizespec/internal/project"
)

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID        string    `json:"id"`
	Scenario  string    `json:"scenario"`
	Timestamp time.Time `json:"timestamp"`
	Species   []string  `json:"species"`
	Gears     []string  `json:"gears"`
	Dt        float64   `json:"dt"`
	TMax      float64   `json:"t_max"`
	TSave     float64   `json:"t_save"`
	Snapshots int       `json:"snapshots"`
}

// Save writes one run directory and returns its id.
func (s *Store) Save(scenario string, store *params.Store, cfg project.Config, res *project.Result) (string, error) {
	runID := fmt.Sprintf("%s_%d", scenario, time.Now().Unix())
	runDir := filepath.Join(s.baseDir, runID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta := RunMetadata{
		ID:        runID,
		Scenario:  scenario,
		Timestamp: time.Now(),
		Species:   store.SpeciesNames(),
		Gears:     store.GearNames(),
		Dt:        cfg.Dt,
		TMax:      cfg.TMax,
		TSave:     cfg.TSave,
		Snapshots: res.Snapshots(),
	}
	if err := writeJSON(filepath.Join(runDir, "metadata.json"), meta); err != nil {
		return "", err
	}
	if err := s.writeBiomass(filepath.Join(runDir, "biomass.csv"), store, res); err != nil {
		return "", err
	}
	if err := s.writeSpectra(filepath.Join(runDir, "spectra.csv"), store, res); err != nil {
		return "", err
	}
	return runID, nil
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (s *Store) writeBiomass(path string, store *params.Store, res *project.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	header := append([]string{"time"}, store.SpeciesNames()...)
	for _, g := range store.GearNames() {
		header = append(header, "effort_"+g)
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for snap := 0; snap < res.Snapshots(); snap++ {
		st := &params.State{N: res.N[snap], NResource: res.NResource[snap]}
		row := []string{fmtF(res.Times[snap])}
		for _, b := range store.Biomass(st) {
			row = append(row, fmtF(b))
		}
		for _, e := range res.Effort[snap] {
			row = append(row, fmtF(e))
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) writeSpectra(path string, store *params.Store, res *project.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	header := append([]string{"w"}, store.SpeciesNames()...)
	header = append(header, "resource")
	if err := w.Write(header); err != nil {
		return err
	}

	g := store.Grid
	off := g.FullOffset()
	final := res.FinalState
	for j := 0; j < g.NoWFull(); j++ {
		row := []string{fmtF(g.WFull[j])}
		for i := range store.Species {
			if j >= off {
				row = append(row, fmtF(final.N[i][j-off]))
			} else {
				row = append(row, "0")
			}
		}
		row = append(row, fmtF(final.NResource[j]))
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

func fmtF(v float64) string {
	return strconv.FormatFloat(v, 'g', 10, 64)
}

// List returns the metadata of every stored run.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}
	return runs, nil
}

// Load reads one run's metadata.
func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, "metadata.json"))
	if err != nil {
		return nil, err
	}
	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// LoadBiomass reads back the biomass trajectories: times plus one
// series per species column.
func (s *Store) LoadBiomass(runID string) (times []float64, series map[string][]float64, err error) {
	f, err := os.Open(filepath.Join(s.baseDir, runID, "biomass.csv"))
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	if len(records) < 2 {
		return []float64{}, map[string][]float64{}, nil
	}

	header := records[0]
	series = make(map[string][]float64)
	for _, rec := range records[1:] {
		t, err := strconv.ParseFloat(rec[0], 64)
		if err != nil {
			continue
		}
		times = append(times, t)
		for col := 1; col < len(rec) && col < len(header); col++ {
			v, err := strconv.ParseFloat(rec[col], 64)
			if err != nil {
				continue
			}
			series[header[col]] = append(series[header[col]], v)
		}
	}
	return times, series, nil
}
