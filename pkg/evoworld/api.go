// Package evoworld is the public entry point for running evolution
// experiments and reading back what they recorded.
package evoworld

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"evoworld/internal/config"
	"evoworld/internal/experiment"
	"evoworld/internal/stats"
	"evoworld/internal/storage"
)

const (
	defaultDBPath     = "evoworld.db"
	defaultExportsDir = "exports"
)

var ErrNoRuns = errors.New("no runs available")

type Options struct {
	StoreKind  string
	DBPath     string
	ExportsDir string
	Logger     *slog.Logger
	// MetricsNamespace enables Prometheus metrics for every run started by
	// the client.
	MetricsNamespace string
}

type Client struct {
	store   storage.Store
	logger  *slog.Logger
	metrics *stats.Metrics

	exportsDir string
}

type RunRequest struct {
	// ConfigPath is a YAML file layered over the built-in defaults.
	ConfigPath string
	// Zero values keep the configured setting.
	Seed        int64
	Generations int
	Population  int
	Strategy    string
	Tracker     string
	Selection   string
	OutputDir   string
	RunID       string
}

type RunSummary struct {
	RunID        string
	Name         string
	Strategy     string
	Tracker      string
	Generations  int
	BestFitness  float64
	MeanFitness  float64
	Coalescence  int
	LineageDepth int
	OEETicks     int
	Extinct      bool
	Duration     time.Duration
}

type RunsRequest struct {
	Limit int
}

type RunItem struct {
	RunID        string
	Name         string
	StartedAtUTC time.Time
	Strategy     string
	Tracker      string
	Selection    string
	Seed         int64
	Population   int
	Generations  int
	BestFitness  float64
	Coalescence  int
	Extinct      bool
}

// RecordsRequest selects a run either by id or as the most recent one.
type RecordsRequest struct {
	RunID  string
	Latest bool
	// Limit of zero returns every record.
	Limit int
}

type LineageItem struct {
	ID       int
	ParentID int
	Depth    int
	Genome   string
}

type GenerationItem struct {
	Generation   int
	Size         int
	BestFitness  float64
	MeanFitness  float64
	StdFitness   float64
	MinFitness   float64
	Births       int
	Injections   int
	LineageNodes int
	Genomes      int
	Coalescence  int
}

type OEEItem struct {
	Generation int
	Change     int
	Novelty    int
	Ecology    float64
	Complexity int
}

// CompareRequest aggregates one generation column across runs. An empty
// RunIDs compares every stored run.
type CompareRequest struct {
	RunIDs []string
	Column string
}

type ComparePoint struct {
	Generation int
	Runs       int
	Mean       float64
	Std        float64
	Min        float64
	Max        float64
}

type ExportRequest struct {
	RunID  string
	Latest bool
	OutDir string
}

type ExportSummary struct {
	RunID     string
	Directory string
	Files     []string
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.KindMemory
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}
	c := &Client{
		store:      store,
		logger:     logger,
		exportsDir: exportsDir,
	}
	if opts.MetricsNamespace != "" {
		c.metrics = stats.NewMetrics(opts.MetricsNamespace)
	}
	return c, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	return c.store.Init(ctx)
}

// MetricsHandler serves the client's metrics registry, or nil when metrics
// are disabled.
func (c *Client) MetricsHandler() http.Handler {
	if c.metrics == nil {
		return nil
	}
	return c.metrics.Handler()
}

func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	cfg, err := config.Load(req.ConfigPath)
	if err != nil {
		return RunSummary{}, err
	}
	if req.Seed != 0 {
		cfg.Seed = req.Seed
	}
	if req.Generations > 0 {
		cfg.Generations = req.Generations
	}
	if req.Population > 0 {
		cfg.Population.Size = req.Population
	}
	if req.Strategy != "" {
		cfg.Population.Strategy = req.Strategy
	}
	if req.Tracker != "" {
		cfg.Lineage.Tracker = req.Tracker
		if req.Tracker == config.TrackerNone {
			cfg.OEE.Enabled = false
		}
	}
	if req.Selection != "" {
		cfg.Selection.Method = req.Selection
	}
	if req.OutputDir != "" {
		cfg.Output.Dir = req.OutputDir
	}

	runner, err := experiment.New(cfg, experiment.Options{
		RunID:   req.RunID,
		Store:   c.store,
		Logger:  c.logger,
		Metrics: c.metrics,
	})
	if err != nil {
		return RunSummary{}, err
	}
	res, err := runner.Run(ctx)
	if err != nil {
		return RunSummary{}, err
	}

	summary := RunSummary{
		RunID:        res.Run.ID,
		Name:         res.Run.Name,
		Strategy:     res.Run.Strategy,
		Tracker:      res.Run.Tracker,
		Generations:  res.Run.Generations,
		BestFitness:  res.Run.BestFitness,
		Coalescence:  res.Run.Coalescence,
		LineageDepth: len(res.Lineage),
		OEETicks:     len(res.OEE),
		Extinct:      res.Run.Extinct,
		Duration:     res.Run.FinishedAt.Sub(res.Run.StartedAt),
	}
	if n := len(res.Generations); n > 0 {
		summary.MeanFitness = res.Generations[n-1].MeanFitness
	}
	return summary, nil
}

// Runs lists stored runs, most recent first.
func (c *Client) Runs(ctx context.Context, req RunsRequest) ([]RunItem, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}
	runs, err := c.store.ListRuns(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]RunItem, 0, min(len(runs), req.Limit))
	for i := len(runs) - 1; i >= 0 && len(out) < req.Limit; i-- {
		r := runs[i]
		out = append(out, RunItem{
			RunID:        r.ID,
			Name:         r.Name,
			StartedAtUTC: r.StartedAt,
			Strategy:     r.Strategy,
			Tracker:      r.Tracker,
			Selection:    r.Selection,
			Seed:         r.Seed,
			Population:   r.PopulationSize,
			Generations:  r.Generations,
			BestFitness:  r.BestFitness,
			Coalescence:  r.Coalescence,
			Extinct:      r.Extinct,
		})
	}
	return out, nil
}

func (c *Client) Lineage(ctx context.Context, req RecordsRequest) ([]LineageItem, error) {
	runID, err := c.resolveRunID(ctx, req.RunID, req.Latest, req.Limit)
	if err != nil {
		return nil, err
	}
	lineage, ok, err := c.store.GetLineage(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("lineage not found for run id: %s", runID)
	}
	lineage = limit(lineage, req.Limit)

	out := make([]LineageItem, 0, len(lineage))
	for _, rec := range lineage {
		out = append(out, LineageItem{
			ID:       rec.ID,
			ParentID: rec.ParentID,
			Depth:    rec.Depth,
			Genome:   rec.Genome,
		})
	}
	return out, nil
}

func (c *Client) Generations(ctx context.Context, req RecordsRequest) ([]GenerationItem, error) {
	runID, err := c.resolveRunID(ctx, req.RunID, req.Latest, req.Limit)
	if err != nil {
		return nil, err
	}
	records, ok, err := c.store.GetGenerations(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("generations not found for run id: %s", runID)
	}
	records = limit(records, req.Limit)

	out := make([]GenerationItem, 0, len(records))
	for _, rec := range records {
		// GenerationItem mirrors the stored record field for field.
		out = append(out, GenerationItem(rec))
	}
	return out, nil
}

func (c *Client) OEE(ctx context.Context, req RecordsRequest) ([]OEEItem, error) {
	runID, err := c.resolveRunID(ctx, req.RunID, req.Latest, req.Limit)
	if err != nil {
		return nil, err
	}
	records, ok, err := c.store.GetOEE(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("oee records not found for run id: %s", runID)
	}
	records = limit(records, req.Limit)

	out := make([]OEEItem, 0, len(records))
	for _, rec := range records {
		out = append(out, OEEItem(rec))
	}
	return out, nil
}

// Compare lines up the generation records of several runs and summarizes
// the chosen column at each generation.
func (c *Client) Compare(ctx context.Context, req CompareRequest) ([]ComparePoint, error) {
	if req.Column == "" {
		req.Column = "best"
	}
	runIDs := req.RunIDs
	if len(runIDs) == 0 {
		runs, err := c.store.ListRuns(ctx)
		if err != nil {
			return nil, err
		}
		if len(runs) == 0 {
			return nil, ErrNoRuns
		}
		for _, r := range runs {
			runIDs = append(runIDs, r.ID)
		}
	}

	series := make([][]float64, 0, len(runIDs))
	for _, id := range runIDs {
		records, ok, err := c.store.GetGenerations(ctx, id)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("generations not found for run id: %s", id)
		}
		values, err := stats.GenerationSeries(records, req.Column)
		if err != nil {
			return nil, err
		}
		series = append(series, values)
	}

	points := stats.AggregateSeries(series, 1, 1)
	out := make([]ComparePoint, 0, len(points))
	for _, p := range points {
		out = append(out, ComparePoint{
			Generation: p.Index,
			Runs:       p.Runs,
			Mean:       p.Mean,
			Std:        p.Std,
			Min:        p.Min,
			Max:        p.Max,
		})
	}
	return out, nil
}

// Export writes the run description and its records as files under
// OutDir/<run id>.
func (c *Client) Export(ctx context.Context, req ExportRequest) (ExportSummary, error) {
	runID, err := c.resolveRunID(ctx, req.RunID, req.Latest, 0)
	if err != nil {
		return ExportSummary{}, err
	}
	if req.OutDir == "" {
		req.OutDir = c.exportsDir
	}
	run, ok, err := c.store.GetRun(ctx, runID)
	if err != nil {
		return ExportSummary{}, err
	}
	if !ok {
		return ExportSummary{}, fmt.Errorf("run not found: %s", runID)
	}

	dir := filepath.Join(req.OutDir, runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ExportSummary{}, fmt.Errorf("creating export directory: %w", err)
	}
	summary := ExportSummary{RunID: runID, Directory: filepath.Clean(dir)}

	data, err := storage.EncodeRun(run)
	if err != nil {
		return ExportSummary{}, err
	}
	if err := c.writeExport(&summary, "run.json", func(f *os.File) error {
		_, err := f.Write(data)
		return err
	}); err != nil {
		return ExportSummary{}, err
	}

	if gens, ok, err := c.store.GetGenerations(ctx, runID); err != nil {
		return ExportSummary{}, err
	} else if ok {
		if err := c.writeExport(&summary, "generations.csv", func(f *os.File) error {
			return stats.WriteGenerationsCSV(f, gens)
		}); err != nil {
			return ExportSummary{}, err
		}
	}
	if lineage, ok, err := c.store.GetLineage(ctx, runID); err != nil {
		return ExportSummary{}, err
	} else if ok && len(lineage) > 0 {
		if err := c.writeExport(&summary, "lineage.csv", func(f *os.File) error {
			return stats.WriteLineageCSV(f, lineage)
		}); err != nil {
			return ExportSummary{}, err
		}
	}
	if oee, ok, err := c.store.GetOEE(ctx, runID); err != nil {
		return ExportSummary{}, err
	} else if ok && len(oee) > 0 {
		if err := c.writeExport(&summary, "oee.csv", func(f *os.File) error {
			return stats.WriteOEECSV(f, oee)
		}); err != nil {
			return ExportSummary{}, err
		}
	}
	return summary, nil
}

func (c *Client) writeExport(summary *ExportSummary, name string, write func(*os.File) error) error {
	path := filepath.Join(summary.Directory, name)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", name, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	summary.Files = append(summary.Files, name)
	return nil
}

func (c *Client) resolveRunID(ctx context.Context, runID string, latest bool, limit int) (string, error) {
	if runID != "" && latest {
		return "", errors.New("use either run id or latest")
	}
	if limit < 0 {
		return "", errors.New("limit must be >= 0")
	}
	if latest {
		runs, err := c.store.ListRuns(ctx)
		if err != nil {
			return "", err
		}
		if len(runs) == 0 {
			return "", ErrNoRuns
		}
		return runs[len(runs)-1].ID, nil
	}
	if runID == "" {
		return "", errors.New("run id or latest is required")
	}
	return runID, nil
}

func limit[T any](records []T, n int) []T {
	if n > 0 && len(records) > n {
		return records[:n]
	}
	return records
}
