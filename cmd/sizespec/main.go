package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
	"github.com/okeanid/sizespec/internal/config"
	"github.com/okeanid/sizespec/internal/project"
	"github.com/okeanid/sizespec/internal/rates"
	"github.com/okeanid/sizespec/internal/storage"
	"github.com/spf13/cobra"
)

var (
	dataDir    string
	configFile string
	scenario   string
	tMax       float64
	dt         float64
	tSave      float64
	effortVal  float64
	species    string
)

var (
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true)
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "sizespec",
		Short: "multispecies size-spectrum community simulator",
	}
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".sizespec", "data directory")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "project a scenario forward in time",
		RunE:  runScenario,
	}
	runCmd.Flags().StringVar(&configFile, "config", "", "scenario file (yaml)")
	runCmd.Flags().StringVar(&scenario, "name", "scenario", "scenario name for the run id")
	runCmd.Flags().Float64Var(&tMax, "time", 0, "projection length (overrides scenario)")
	runCmd.Flags().Float64Var(&dt, "dt", 0, "timestep (overrides scenario)")
	runCmd.Flags().Float64Var(&tSave, "tsave", 0, "save interval (overrides scenario)")
	runCmd.Flags().Float64Var(&effortVal, "effort", -1, "constant fishing effort for all gears")

	ratesCmd := &cobra.Command{
		Use:   "rates",
		Short: "evaluate the rate pipeline on the initial state",
		RunE:  showRates,
	}
	ratesCmd.Flags().StringVar(&configFile, "config", "", "scenario file (yaml)")

	initCmd := &cobra.Command{
		Use:   "init [file]",
		Short: "write a scenario template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Save(args[0], config.DefaultConfig()); err != nil {
				return err
			}
			fmt.Printf("wrote %s\n", args[0])
			return nil
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot biomass trajectories of a run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringVar(&species, "species", "", "plot only this species")

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "print run metadata as json",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st := storage.New(dataDir)
			meta, err := st.Load(args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(meta)
		},
	}

	rootCmd.AddCommand(runCmd, ratesCmd, initCmd, listCmd, plotCmd, exportCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadScenario() (*config.Config, error) {
	if configFile == "" {
		return config.DefaultConfig(), nil
	}
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load scenario: %w", err)
	}
	return cfg, nil
}

func runScenario(cmd *cobra.Command, args []string) error {
	cfg, err := loadScenario()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("time") {
		cfg.Sim.TMax = tMax
	}
	if cmd.Flags().Changed("dt") {
		cfg.Sim.Dt = dt
		if !cmd.Flags().Changed("tsave") && cfg.Sim.TSave < dt {
			cfg.Sim.TSave = dt
		}
	}
	if cmd.Flags().Changed("tsave") {
		cfg.Sim.TSave = tSave
	}

	store, err := cfg.BuildStore()
	if err != nil {
		return err
	}

	effort := cfg.BuildEffort()
	if cmd.Flags().Changed("effort") {
		effort = project.Constant(effortVal)
	}

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	model := rates.NewModel(store)
	proj := project.New(model)

	fmt.Printf("projecting %d species over %g time units...\n",
		len(store.Species), cfg.Sim.TMax)
	start := time.Now()

	res, err := proj.Project(context.Background(), nil, cfg.RunConfig(), effort)
	if err != nil {
		return err
	}

	elapsed := time.Since(start)

	runID, err := st.Save(scenario, store, cfg.RunConfig(), res)
	if err != nil {
		return err
	}

	fmt.Println(headerStyle.Render("projection complete"))
	printKV("elapsed", elapsed.String())
	printKV("run id", runID)
	printKV("snapshots", fmt.Sprintf("%d", res.Snapshots()))

	fmt.Println()
	fmt.Println(headerStyle.Render("final biomass"))
	for i, b := range store.Biomass(res.FinalState) {
		printKV(store.Species[i].Name, fmt.Sprintf("%.4g", b))
	}
	return nil
}

func printKV(label, value string) {
	fmt.Printf("  %s %s\n", labelStyle.Render(label+":"), valueStyle.Render(value))
}

func showRates(cmd *cobra.Command, args []string) error {
	cfg, err := loadScenario()
	if err != nil {
		return err
	}
	store, err := cfg.BuildStore()
	if err != nil {
		return err
	}

	model := rates.NewModel(store)
	b, err := model.RatesDefault()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SPECIES\tMAX FEEDING\tMAX GROWTH\tMAX MORT\tRDI\tRDD")
	for i, sp := range store.Species {
		fmt.Fprintf(w, "%s\t%.4g\t%.4g\t%.4g\t%.4g\t%.4g\n",
			sp.Name,
			maxOf(b.FeedingLevel[i]),
			maxOf(b.EGrowth[i]),
			maxOf(b.Mort[i]),
			b.RDI[i],
			b.RDD[i],
		)
	}
	return w.Flush()
}

func maxOf(v []float64) float64 {
	m := 0.0
	for _, x := range v {
		if x > m {
			m = x
		}
	}
	return m
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSCENARIO\tTIME\tT_MAX\tDT\tSPECIES\tSNAPSHOTS")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\t%.4f\t%d\t%d\n",
			run.ID,
			run.Scenario,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.TMax,
			run.Dt,
			len(run.Species),
			run.Snapshots,
		)
	}
	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	times, series, err := st.LoadBiomass(runID)
	if err != nil {
		return err
	}
	if len(times) == 0 {
		return fmt.Errorf("no data to plot")
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("scenario: %s\n", meta.Scenario)
	fmt.Printf("samples: %d\n\n", len(times))

	names := meta.Species
	if species != "" {
		names = []string{species}
	}
	for _, name := range names {
		data, ok := series[name]
		if !ok {
			return fmt.Errorf("no biomass series for species: %s", name)
		}
		graph := asciigraph.Plot(data,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(fmt.Sprintf("%s biomass", name)),
		)
		fmt.Println(graph)
		fmt.Println()
	}
	return nil
}
