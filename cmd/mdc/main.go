package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/watershedtools/mdc/internal/constants"
	"github.com/watershedtools/mdc/internal/database"
	"github.com/watershedtools/mdc/internal/loader"
	"github.com/watershedtools/mdc/internal/log"
	"github.com/watershedtools/mdc/internal/store"
	"github.com/watershedtools/mdc/internal/trend"
	"github.com/watershedtools/mdc/pkg/config"
)

// sourceFlags collects the data-source command line options.
type sourceFlags struct {
	csvPath   string
	dsn       string
	parameter string
	start     string
	end       string
}

func main() {
	var (
		cfgFile     = flag.String("config", "", "Path to YAML configuration file (optional)")
		csvPath     = flag.String("csv", "", "CSV file of samples to analyze")
		dsn         = flag.String("db", "", "Postgres connection string for the sample database")
		parameter   = flag.String("parameter", "", "Parameter to analyze when reading from a database")
		startStr    = flag.String("start", "", "Start of the sample window (YYYY-MM-DD)")
		endStr      = flag.String("end", "", "End of the sample window (YYYY-MM-DD)")
		confidence  = flag.Float64("confidence", trend.DefaultConfidenceLevel, "Two-tailed confidence level for the t critical value")
		resamples   = flag.Int("resamples", trend.DefaultResampleCount, "Bootstrap resamples per station")
		scale       = flag.Float64("duration-scale", trend.DefaultDurationScale, "Days of trend duration the MDC covers")
		seed        = flag.Int64("seed", trend.DefaultSeed, "Base seed for bootstrap resampling")
		workers     = flag.Int("workers", 0, "Worker goroutines (0 = one per CPU)")
		policySpec  = flag.String("policy", "", "Reconciliation policy: prefer-se, prefer-bootstrap-for:<id,...>, bootstrap-within:<pct>")
		outCSV      = flag.String("out", "", "CSV file for the MDC table")
		artifacts   = flag.String("artifacts", "", "SQLite file to save the run and its artifacts into")
		showStats   = flag.Bool("stats", false, "Print per-station descriptive statistics and regression fits")
		debug       = flag.Bool("debug", false, "Turn on debugging output")
		showVersion = flag.Bool("version", false, "Show version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("mdc %s\n", constants.Version)
		os.Exit(0)
	}

	// Set up logging
	if err := log.Init(*debug); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Load configuration
	var fileCfg *config.ConfigData
	if *cfgFile != "" {
		var err error
		fileCfg, err = loadConfig(*cfgFile)
		if err != nil {
			log.Errorf("Failed to load configuration: %v", err)
			os.Exit(1)
		}
	}

	// Defaults, then the config file, then explicit flags.
	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	cfg := trend.DefaultConfig()
	policyName := "prefer-se"
	if fileCfg != nil {
		applyAnalysisConfig(&cfg, &policyName, fileCfg.Analysis)
	}
	if set["confidence"] {
		cfg.ConfidenceLevel = *confidence
	}
	if set["resamples"] {
		cfg.ResampleCount = *resamples
	}
	if set["duration-scale"] {
		cfg.DurationScale = *scale
	}
	if set["seed"] {
		cfg.Seed = *seed
	}
	if set["workers"] {
		cfg.Workers = *workers
	}
	if set["policy"] {
		policyName = *policySpec
	}
	if policyName == "" {
		policyName = "prefer-se"
	}

	policy, err := parsePolicy(policyName)
	if err != nil {
		log.Errorf("Invalid policy: %v", err)
		os.Exit(1)
	}
	cfg.Policy = policy

	// Cancel the analysis between resamples on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		log.Info("shutdown signal received, cancelling analysis...")
		cancel()
	}()

	observations, dataset, err := loadObservations(ctx, fileCfg, sourceFlags{
		csvPath:   *csvPath,
		dsn:       *dsn,
		parameter: *parameter,
		start:     *startStr,
		end:       *endStr,
	})
	if err != nil {
		log.Errorf("Failed to load samples: %v", err)
		os.Exit(1)
	}
	if len(observations) == 0 {
		log.Errorf("No samples to analyze")
		os.Exit(1)
	}
	log.Infof("loaded %d samples from %s", len(observations), dataset)

	pipeline, err := trend.NewPipeline(cfg, log.GetSugaredLogger())
	if err != nil {
		log.Errorf("Invalid analysis configuration: %v", err)
		os.Exit(1)
	}

	result, err := pipeline.Run(ctx, observations)
	if err != nil {
		log.Errorf("Analysis aborted: %v", err)
		os.Exit(1)
	}

	displayResults(result, *showStats)

	outPath := *outCSV
	if outPath == "" && fileCfg != nil {
		outPath = fileCfg.Output.ResultsCSV
	}
	if outPath != "" {
		if err := exportMDCTable(outPath, result); err != nil {
			log.Errorf("Failed to write results CSV: %v", err)
			os.Exit(1)
		}
		fmt.Printf("Results exported to: %s\n", outPath)
	}

	storePath := *artifacts
	if storePath == "" && fileCfg != nil {
		storePath = fileCfg.Output.StorePath
	}
	if storePath != "" {
		id, err := saveArtifacts(storePath, dataset, policyName, cfg, result)
		if err != nil {
			log.Errorf("Failed to save run artifacts: %v", err)
			os.Exit(1)
		}
		fmt.Printf("Run saved to %s as %s\n", storePath, id)
	}

	if result.Summary().Succeeded == 0 {
		os.Exit(1)
	}
}

func loadConfig(cfgFile string) (*config.ConfigData, error) {
	filename, _ := filepath.Abs(cfgFile)

	provider := config.NewYAMLProvider(filename)
	cfgData, err := provider.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("error reading config file. Did you pass the -config flag? Run with -h for help: %w", err)
	}

	return cfgData, nil
}

// applyAnalysisConfig copies the set fields of a config file's analysis
// section over the built-in defaults.
func applyAnalysisConfig(cfg *trend.Config, policyName *string, a config.AnalysisData) {
	if a.ConfidenceLevel != 0 {
		cfg.ConfidenceLevel = a.ConfidenceLevel
	}
	if a.ResampleCount != 0 {
		cfg.ResampleCount = a.ResampleCount
	}
	if a.DurationScale != 0 {
		cfg.DurationScale = a.DurationScale
	}
	if a.Seed != 0 {
		cfg.Seed = a.Seed
	}
	if a.Workers != 0 {
		cfg.Workers = a.Workers
	}
	if a.Policy != "" {
		*policyName = a.Policy
	}
}

// parsePolicy turns a policy spec string into a reconciliation policy.
func parsePolicy(spec string) (trend.Policy, error) {
	switch {
	case spec == "" || spec == "prefer-se":
		return trend.PreferStandardError(), nil

	case strings.HasPrefix(spec, "prefer-bootstrap-for:"):
		var ids []string
		for _, id := range strings.Split(strings.TrimPrefix(spec, "prefer-bootstrap-for:"), ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
		if len(ids) == 0 {
			return nil, fmt.Errorf("prefer-bootstrap-for needs at least one station ID")
		}
		return trend.PreferBootstrapFor(ids...), nil

	case strings.HasPrefix(spec, "bootstrap-within:"):
		pct, err := strconv.ParseFloat(strings.TrimPrefix(spec, "bootstrap-within:"), 64)
		if err != nil || pct <= 0 {
			return nil, fmt.Errorf("bootstrap-within needs a positive percent, got %q", spec)
		}
		return trend.BootstrapWithinTolerance(pct), nil

	default:
		return nil, fmt.Errorf("unknown policy %q", spec)
	}
}

// loadObservations resolves the data source, with flags taking priority
// over the config file. It returns the observations and a dataset label
// for reporting.
func loadObservations(ctx context.Context, fileCfg *config.ConfigData, f sourceFlags) ([]trend.Observation, string, error) {
	if f.csvPath != "" && f.dsn != "" {
		return nil, "", fmt.Errorf("specify either -csv or -db, not both")
	}

	if f.csvPath != "" {
		obs, err := loader.LoadCSV(f.csvPath, nil)
		return obs, filepath.Base(f.csvPath), err
	}

	if f.dsn != "" {
		if f.parameter == "" {
			return nil, "", fmt.Errorf("-parameter is required with -db")
		}
		start, end, err := parseWindow(f.start, f.end)
		if err != nil {
			return nil, "", err
		}
		obs, err := fetchFromDatabase(ctx, f.dsn, f.parameter, start, end)
		return obs, "postgres:" + f.parameter, err
	}

	if fileCfg != nil && fileCfg.Source.CSV != nil {
		src := fileCfg.Source.CSV
		opts := &loader.Options{
			StationColumn: src.StationColumn,
			DateColumn:    src.DateColumn,
			ValueColumn:   src.ValueColumn,
			DateFormat:    src.DateFormat,
			Delimiter:     ',',
		}
		obs, err := loader.LoadCSV(src.Path, opts)
		return obs, filepath.Base(src.Path), err
	}

	if fileCfg != nil && fileCfg.Source.Database != nil {
		src := fileCfg.Source.Database
		if src.Parameter == "" {
			return nil, "", fmt.Errorf("database source needs a parameter")
		}
		start, end, err := parseWindow(src.Start, src.End)
		if err != nil {
			return nil, "", err
		}
		obs, err := fetchFromDatabase(ctx, src.ConnectionString, src.Parameter, start, end)
		return obs, "postgres:" + src.Parameter, err
	}

	return nil, "", fmt.Errorf("no data source: pass -csv or -db, or configure one in the config file")
}

func fetchFromDatabase(ctx context.Context, dsn, parameter string, start, end time.Time) ([]trend.Observation, error) {
	client := database.NewClient(dsn, log.GetSugaredLogger())
	if err := client.Connect(); err != nil {
		return nil, err
	}
	defer client.Close()

	return client.FetchSamples(ctx, parameter, start, end)
}

func parseWindow(startStr, endStr string) (time.Time, time.Time, error) {
	var start, end time.Time
	var err error
	if startStr != "" {
		start, err = time.Parse("2006-01-02", startStr)
		if err != nil {
			return start, end, fmt.Errorf("invalid start date %q, want YYYY-MM-DD", startStr)
		}
	}
	if endStr != "" {
		end, err = time.Parse("2006-01-02", endStr)
		if err != nil {
			return start, end, fmt.Errorf("invalid end date %q, want YYYY-MM-DD", endStr)
		}
	}
	return start, end, nil
}

func displayResults(result *trend.RunResult, showStats bool) {
	summary := result.Summary()

	fmt.Printf("Minimum Detectable Change Analysis\n")
	fmt.Printf("==================================\n\n")
	fmt.Printf("Analyzed %d stations: %d succeeded, %d excluded\n\n",
		summary.Stations, summary.Succeeded, summary.Failed)

	if showStats {
		if stats := result.DescriptiveTable(); len(stats) > 0 {
			fmt.Printf("Station Statistics\n")
			fmt.Printf("------------------\n\n")
			fmt.Printf("%-12s | %5s | %9s | %9s | %9s | %9s | %9s\n",
				"Station", "N", "Min", "Median", "Mean", "Max", "Std Dev")
			fmt.Printf("-------------+-------+-----------+-----------+-----------+-----------+-----------\n")
			for _, d := range stats {
				fmt.Printf("%-12s | %5d | %9.3f | %9.3f | %9.3f | %9.3f | %9.3f\n",
					d.StationID, d.N, d.Min, d.Median, d.Mean, d.Max, d.StdDev)
			}
			fmt.Println()
		}

		if fits := result.RegressionTable(); len(fits) > 0 {
			fmt.Printf("Regression Fits\n")
			fmt.Printf("---------------\n\n")
			fmt.Printf("%-12s | %5s | %14s | %14s\n", "Station", "N", "Slope (log10/d)", "SE (slope)")
			fmt.Printf("-------------+-------+----------------+----------------\n")
			for _, r := range fits {
				fmt.Printf("%-12s | %5d | %14.6e | %14.6e\n", r.StationID, r.N, r.Slope, r.SlopeStdError)
			}
			fmt.Println()
		}
	}

	if mdc := result.MDCTable(); len(mdc) > 0 {
		fmt.Printf("Minimum Detectable Change\n")
		fmt.Printf("-------------------------\n\n")
		fmt.Printf("%-12s | %5s | %3s | %10s | %12s | %12s | %s\n",
			"Station", "N", "DF", "t-crit", "MDC (log10)", "MDC (%)", "Source")
		fmt.Printf("-------------+-------+-----+------------+--------------+--------------+-------------------\n")
		for _, m := range mdc {
			fmt.Printf("%-12s | %5d | %3d | %10.4f | %12.6f | %12.2f | %s\n",
				m.StationID, m.N, m.DegreesFreedom, m.TCritical, m.MDCLog10, m.MDCPercent, m.Source)
		}
		fmt.Println()
	}

	if comparison := result.ComparisonTable(); len(comparison) > 0 {
		fmt.Printf("Uncertainty Reconciliation\n")
		fmt.Printf("--------------------------\n\n")
		fmt.Printf("%-12s | %14s | %10s | %s\n", "Station", "Chosen Std", "Diff (%)", "Source")
		fmt.Printf("-------------+----------------+------------+-------------------\n")
		for _, c := range comparison {
			fmt.Printf("%-12s | %14.6e | %10.2f | %s\n",
				c.StationID, c.ChosenStd, c.PercentDifference, c.Source)
		}
		fmt.Println()
	}

	if failures := result.Failures(); len(failures) > 0 {
		fmt.Printf("Excluded Stations\n")
		fmt.Printf("-----------------\n\n")
		for _, f := range failures {
			fmt.Printf("  %-12s %s\n", f.StationID, f.Reason)
		}
		fmt.Println()
	}
}

func exportMDCTable(filename string, result *trend.RunResult) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write header
	header := []string{"station_id", "n", "degrees_freedom", "t_critical", "chosen_std_source", "mdc_log10", "mdc_percent"}
	if err := writer.Write(header); err != nil {
		return err
	}

	// Write data
	for _, m := range result.MDCTable() {
		record := []string{
			m.StationID,
			strconv.Itoa(m.N),
			strconv.Itoa(m.DegreesFreedom),
			fmt.Sprintf("%.6f", m.TCritical),
			string(m.Source),
			fmt.Sprintf("%.8f", m.MDCLog10),
			fmt.Sprintf("%.4f", m.MDCPercent),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return nil
}

func saveArtifacts(path, dataset, policyName string, cfg trend.Config, result *trend.RunResult) (string, error) {
	s, err := store.Open(path)
	if err != nil {
		return "", err
	}
	defer s.Close()

	return s.SaveRun(dataset, policyName, cfg, result)
}
