package experiment

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evoworld/internal/config"
	"evoworld/internal/lineage"
	"evoworld/internal/model"
	"evoworld/internal/population"
	"evoworld/internal/stats"
	"evoworld/internal/storage"
)

func smallConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Generations = 20
	cfg.Population.Size = 20
	cfg.Population.SerialTransfer.MaxSize = 40
	cfg.Population.SerialTransfer.BottleneckSize = 10
	cfg.Organism.GenomeLength = 16
	cfg.Organism.MutationRate = 0.05
	cfg.Selection.EliteCount = 5
	cfg.OEE.Resolution = 2
	cfg.OEE.Persistence = 4
	require.NoError(t, cfg.Validate())
	return cfg
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func initStore(t *testing.T) storage.Store {
	t.Helper()
	store := storage.NewMemoryStore()
	require.NoError(t, store.Init(context.Background()))
	return store
}

func TestRunPersistsArtifacts(t *testing.T) {
	cfg := smallConfig(t)
	store := initStore(t)
	var seen []int
	r, err := New(cfg, Options{
		RunID:        "run-1",
		Store:        store,
		Logger:       quietLogger(),
		OnGeneration: func(rec model.GenerationRecord) { seen = append(seen, rec.Generation) },
	})
	require.NoError(t, err)

	res, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "run-1", res.Run.ID)
	assert.Equal(t, population.KindSynchronous, res.Run.Strategy)
	assert.Equal(t, 20, res.Run.Generations)
	assert.False(t, res.Run.Extinct)
	require.Len(t, res.Generations, 20)
	assert.Equal(t, 1, seen[0])
	assert.Equal(t, 20, seen[len(seen)-1])
	assert.Equal(t, 20*20, res.Generations[19].Births)
	assert.Equal(t, 20, res.Generations[19].Injections)
	assert.Len(t, res.OEE, 10)

	require.NotEmpty(t, res.Lineage)
	founder := res.Lineage[len(res.Lineage)-1]
	assert.Equal(t, lineage.RootID, founder.ParentID)
	for i, rec := range res.Lineage {
		assert.Equal(t, i, rec.Depth)
		assert.Len(t, rec.Genome, 16)
		if i > 0 {
			assert.Equal(t, rec.ID, res.Lineage[i-1].ParentID)
		}
	}

	ctx := context.Background()
	run, ok, err := store.GetRun(ctx, "run-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, res.Run.BestFitness, run.BestFitness)
	gens, ok, err := store.GetGenerations(ctx, "run-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, res.Generations, gens)
	lin, ok, err := store.GetLineage(ctx, "run-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, lin, len(res.Lineage))
	oee, ok, err := store.GetOEE(ctx, "run-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, res.OEE, oee)
}

func TestRunEveryStrategyAndSelection(t *testing.T) {
	for _, kind := range population.Kinds() {
		for _, method := range []string{config.SelectionElite, config.SelectionTournament, config.SelectionFitnessSharing} {
			t.Run(kind+"/"+method, func(t *testing.T) {
				cfg := smallConfig(t)
				cfg.Population.Strategy = kind
				cfg.Selection.Method = method
				r, err := New(cfg, Options{Logger: quietLogger()})
				require.NoError(t, err)

				res, err := r.Run(context.Background())
				require.NoError(t, err)
				assert.Equal(t, kind, res.Run.Strategy)
				require.Len(t, res.Generations, cfg.Generations)
				last := res.Generations[len(res.Generations)-1]
				assert.Positive(t, last.Size)
				assert.GreaterOrEqual(t, last.BestFitness, last.MeanFitness)
				assert.Equal(t, r.World().Size(), last.Size)
			})
		}
	}
}

func TestRunIsDeterministicForSeed(t *testing.T) {
	run := func() Result {
		r, err := New(smallConfig(t), Options{RunID: "same", Logger: quietLogger()})
		require.NoError(t, err)
		res, err := r.Run(context.Background())
		require.NoError(t, err)
		return res
	}
	a, b := run(), run()
	assert.Equal(t, a.Generations, b.Generations)
	assert.Equal(t, a.OEE, b.OEE)
	assert.Equal(t, a.Lineage, b.Lineage)
}

func TestPlainAndPrunedTrackersAgreeOnCoalescence(t *testing.T) {
	run := func(tracker string) Result {
		cfg := smallConfig(t)
		cfg.Generations = 40
		cfg.Lineage.Tracker = tracker
		r, err := New(cfg, Options{Logger: quietLogger()})
		require.NoError(t, err)
		res, err := r.Run(context.Background())
		require.NoError(t, err)
		return res
	}
	plain, pruned := run(config.TrackerPlain), run(config.TrackerPruned)
	assert.Equal(t, plain.Run.Coalescence, pruned.Run.Coalescence)
	assert.Equal(t, plain.Lineage, pruned.Lineage)
	assert.Equal(t, plain.OEE, pruned.OEE)
	assert.Less(t, pruned.Generations[39].LineageNodes, plain.Generations[39].LineageNodes)
}

func TestRunWithoutTracker(t *testing.T) {
	cfg := smallConfig(t)
	cfg.Lineage.Tracker = config.TrackerNone
	cfg.OEE.Enabled = false
	r, err := New(cfg, Options{Logger: quietLogger()})
	require.NoError(t, err)
	assert.Nil(t, r.Tracker())

	res, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Nil(t, res.Lineage)
	assert.Nil(t, res.OEE)
	assert.Zero(t, res.Generations[0].LineageNodes)
}

func TestRunStopsOnCancel(t *testing.T) {
	store := initStore(t)
	r, err := New(smallConfig(t), Options{RunID: "cancelled", Store: store, Logger: quietLogger()})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	runs, err := store.ListRuns(context.Background())
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestRunWritesOutputAndMetrics(t *testing.T) {
	cfg := smallConfig(t)
	cfg.Output.Dir = filepath.Join(t.TempDir(), "out")
	m := stats.NewMetrics("evoworld")
	r, err := New(cfg, Options{Logger: quietLogger(), Metrics: m})
	require.NoError(t, err)

	res, err := r.Run(context.Background())
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(cfg.Output.Dir, "generations.csv"))
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(string(data)), "\n"), cfg.Generations+1)
	data, err = os.ReadFile(filepath.Join(cfg.Output.Dir, "oee.csv"))
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(string(data)), "\n"), len(res.OEE)+1)

	families, err := m.Registry().Gather()
	require.NoError(t, err)
	values := map[string]float64{}
	for _, f := range families {
		for _, metric := range f.GetMetric() {
			switch {
			case metric.GetCounter() != nil:
				values[f.GetName()] = metric.GetCounter().GetValue()
			case metric.GetGauge() != nil:
				values[f.GetName()] = metric.GetGauge().GetValue()
			}
		}
	}
	last := res.Generations[len(res.Generations)-1]
	assert.Equal(t, float64(last.Births), values["evoworld_world_births_total"])
	assert.Equal(t, float64(cfg.Population.Size), values["evoworld_world_injections_total"])
	assert.Equal(t, float64(cfg.Generations), values["evoworld_world_generation"])
	assert.Equal(t, last.BestFitness, values["evoworld_world_best_fitness"])
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	_, err := New(nil, Options{})
	require.ErrorIs(t, err, ErrNoConfig)

	cfg := smallConfig(t)
	cfg.Selection.Method = "roulette"
	_, err = New(cfg, Options{})
	require.ErrorIs(t, err, config.ErrInvalid)
}
