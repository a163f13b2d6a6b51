// Package experiment assembles a world, its population strategy, a lineage
// tracker and the statistics collectors from a configuration, then drives
// generations and persists the run.
package experiment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"evoworld/internal/bitorg"
	"evoworld/internal/config"
	"evoworld/internal/lineage"
	"evoworld/internal/model"
	"evoworld/internal/population"
	"evoworld/internal/stats"
	"evoworld/internal/storage"
	"evoworld/internal/world"
)

var ErrNoConfig = errors.New("experiment config is required")

type Options struct {
	// RunID overrides the generated run identifier.
	RunID   string
	Store   storage.Store
	Logger  *slog.Logger
	Metrics *stats.Metrics
	// OnGeneration is called after each generation is summarized.
	OnGeneration func(model.GenerationRecord)
}

type Result struct {
	Run         model.Run
	Generations []model.GenerationRecord
	OEE         []model.OEERecord
	Lineage     []model.LineageRecord
}

// Runner owns one experiment. It is not safe for concurrent use.
type Runner struct {
	cfg  *config.Config
	opts Options
	log  *slog.Logger

	world    *world.World[*bitorg.Organism]
	strategy population.Strategy[*bitorg.Organism]
	tracker  lineage.LineageTracker[string]
	oee      *stats.OEE[string]
	output   *stats.Output

	records []model.GenerationRecord
	hookErr error
}

func New(cfg *config.Config, opts Options) (*Runner, error) {
	if cfg == nil {
		return nil, ErrNoConfig
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}

	strategy, err := population.New[*bitorg.Organism](cfg.PopulationStrategy())
	if err != nil {
		return nil, err
	}
	w, err := world.New(strategy, world.Config[*bitorg.Organism]{
		Name: cfg.Name,
		Seed: cfg.Seed,
		Hooks: world.Hooks[*bitorg.Organism]{
			Mutate: bitorg.Mutator{Rate: cfg.Organism.MutationRate}.Mutate,
		},
		MutateOnBirth: cfg.Organism.MutateOnBirth,
	})
	if err != nil {
		return nil, err
	}

	r := &Runner{
		cfg:      cfg,
		opts:     opts,
		log:      opts.Logger.With("run_id", opts.RunID, "name", cfg.Name),
		world:    w,
		strategy: strategy,
	}

	// The tracker subscribes first so collectors observe reconciled tables.
	switch cfg.Lineage.Tracker {
	case config.TrackerPlain:
		r.tracker = lineage.NewTracker[string]()
	case config.TrackerPruned:
		r.tracker = lineage.NewPrunedTracker[string]()
	}
	if r.tracker != nil {
		lineage.Attach(w.Hub(), strategy, r.tracker, bitorg.Genome)
	}

	if cfg.OEE.Enabled {
		r.oee, err = stats.NewOEE[string](r.tracker, cfg.OEEStats(), bitorg.Skeleton, bitorg.Complexity)
		if err != nil {
			return nil, err
		}
		w.Hub().Update.AddAction(r.updateOEE)
	}
	if opts.Metrics != nil {
		stats.AttachMetrics(opts.Metrics, w.Hub())
	}
	return r, nil
}

func (r *Runner) World() *world.World[*bitorg.Organism] { return r.world }

// Tracker is nil when lineage tracking is disabled.
func (r *Runner) Tracker() lineage.LineageTracker[string] { return r.tracker }

// Run seeds the population and advances the configured number of
// generations. Cancelling ctx stops the run between generations and nothing
// is persisted.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	output, err := stats.NewOutput(r.cfg.Output.Dir)
	if err != nil {
		return Result{}, err
	}
	r.output = output
	defer r.output.Close()

	started := time.Now().UTC()
	r.log.Info("run started",
		"strategy", r.strategy.Name(),
		"tracker", r.cfg.Lineage.Tracker,
		"selection", r.cfg.Selection.Method,
		"size", r.cfg.Population.Size,
		"generations", r.cfg.Generations,
	)

	r.seed()
	extinct := false
	for gen := 0; gen < r.cfg.Generations; gen++ {
		if err := ctx.Err(); err != nil {
			return Result{}, fmt.Errorf("run %s cancelled at generation %d: %w", r.opts.RunID, r.world.Generation(), err)
		}
		if r.world.Size() == 0 {
			extinct = true
			r.log.Warn("population extinct", "generation", r.world.Generation())
			break
		}
		if err := r.step(); err != nil {
			return Result{}, err
		}
		if r.hookErr != nil {
			return Result{}, r.hookErr
		}
		if err := r.summarize(); err != nil {
			return Result{}, err
		}
	}

	result := Result{Generations: r.records}
	if r.oee != nil {
		result.OEE = r.oee.Records()
	}
	result.Lineage, err = r.bestLineage()
	if err != nil {
		return Result{}, err
	}
	result.Run = r.describe(started, extinct)

	if err := r.persist(ctx, result); err != nil {
		return Result{}, err
	}
	r.log.Info("run finished",
		"best", result.Run.BestFitness,
		"coalescence", result.Run.Coalescence,
		"lineage_depth", len(result.Lineage),
	)
	return result, nil
}

// seed injects random organisms until the configured size is reached.
func (r *Runner) seed() {
	rng := r.world.Random()
	for i := 0; i < r.cfg.Population.Size; i++ {
		r.world.InsertExternal(bitorg.Random(rng, r.cfg.Organism.GenomeLength, r.cfg.Organism.InitialDensity))
	}
}

// step runs one round of selection sized to the configured population, then
// advances the generation.
func (r *Runner) step() error {
	s := r.cfg.Selection
	size := r.world.Size()
	rounds := r.cfg.Population.Size
	var err error
	switch s.Method {
	case config.SelectionElite:
		_, err = r.world.SelectElite(nil, min(s.EliteCount, size), r.cfg.EliteCopies())
	case config.SelectionTournament:
		_, err = r.world.SelectTournament(nil, min(s.TournamentSize, size), rounds, false)
	case config.SelectionFitnessSharing:
		_, err = r.world.SelectFitnessSharingTournament(nil, bitorg.Hamming, s.NicheRadius, s.SharingExponent, min(s.TournamentSize, size), rounds)
	default:
		err = fmt.Errorf("%w: unknown selection method %q", config.ErrInvalid, s.Method)
	}
	if err != nil {
		return fmt.Errorf("generation %d selection: %w", r.world.Generation(), err)
	}
	r.world.AdvanceGeneration()
	return nil
}

func (r *Runner) summarize() error {
	var fitness []float64
	for _, org := range r.world.All() {
		fitness = append(fitness, org.Fitness())
	}
	var view stats.LineageView
	if r.tracker != nil {
		view = r.tracker
	}
	rec := stats.Summarize(r.world.Generation(), fitness, stats.Counters{
		Births:     r.world.Births(),
		Injections: r.world.Injections(),
	}, view)
	r.records = append(r.records, rec)

	if r.opts.Metrics != nil {
		r.opts.Metrics.Observe(rec)
	}
	if err := r.output.WriteGeneration(rec); err != nil {
		return err
	}
	if r.opts.OnGeneration != nil {
		r.opts.OnGeneration(rec)
	}
	r.log.Debug("generation", "summary", rec)
	return nil
}

func (r *Runner) updateOEE(generation int) {
	rec, ok := r.oee.Update(generation)
	if !ok {
		return
	}
	r.log.Debug("oee", "metrics", rec)
	if err := r.output.WriteOEE(rec); err != nil && r.hookErr == nil {
		r.hookErr = err
	}
}

// bestLineage traces the fittest living organism back to its injected
// founder. Ties go to the lowest slot.
func (r *Runner) bestLineage() ([]model.LineageRecord, error) {
	if r.tracker == nil {
		return nil, nil
	}
	snapshot := r.tracker.Snapshot()
	bestPos, best := -1, 0.0
	for pos, org := range r.world.All() {
		if f := org.Fitness(); bestPos < 0 || f > best {
			bestPos, best = pos, f
		}
	}
	if bestPos < 0 || bestPos >= len(snapshot) || snapshot[bestPos] == lineage.RootID {
		return nil, nil
	}
	ids, err := r.tracker.TraceLineageIDs(snapshot[bestPos])
	if err != nil {
		return nil, fmt.Errorf("tracing best lineage: %w", err)
	}
	out := make([]model.LineageRecord, 0, len(ids))
	for depth, id := range ids {
		genome, _ := r.tracker.Genome(id)
		parent, _ := r.tracker.Parent(id)
		out = append(out, model.LineageRecord{
			VersionedRecord: storage.Versioned(),
			ID:              id,
			ParentID:        parent,
			Depth:           depth,
			Genome:          genome,
		})
	}
	return out, nil
}

func (r *Runner) describe(started time.Time, extinct bool) model.Run {
	run := model.Run{
		VersionedRecord: storage.Versioned(),
		ID:              r.opts.RunID,
		Name:            r.cfg.Name,
		Strategy:        r.strategy.Name(),
		Tracker:         r.cfg.Lineage.Tracker,
		Selection:       r.cfg.Selection.Method,
		Seed:            r.cfg.Seed,
		Generations:     r.world.Generation(),
		PopulationSize:  r.cfg.Population.Size,
		GenomeLength:    r.cfg.Organism.GenomeLength,
		StartedAt:       started,
		FinishedAt:      time.Now().UTC(),
		Extinct:         extinct,
	}
	if n := len(r.records); n > 0 {
		run.BestFitness = r.records[n-1].BestFitness
		run.Coalescence = r.records[n-1].Coalescence
	}
	return run
}

func (r *Runner) persist(ctx context.Context, result Result) error {
	store := r.opts.Store
	if store == nil {
		return nil
	}
	if err := store.SaveRun(ctx, result.Run); err != nil {
		return err
	}
	if err := store.SaveGenerations(ctx, result.Run.ID, result.Generations); err != nil {
		return err
	}
	if err := store.SaveLineage(ctx, result.Run.ID, result.Lineage); err != nil {
		return err
	}
	if result.OEE != nil {
		if err := store.SaveOEE(ctx, result.Run.ID, result.OEE); err != nil {
			return err
		}
	}
	return nil
}
