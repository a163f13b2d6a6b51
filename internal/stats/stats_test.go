package stats

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evoworld/internal/bitorg"
	"evoworld/internal/lineage"
	"evoworld/internal/model"
	"evoworld/internal/signal"
)

func TestOEEConfigValidate(t *testing.T) {
	assert.NoError(t, OEEConfig{Resolution: 10, Persistence: 50}.Validate())
	assert.Error(t, OEEConfig{Resolution: 0, Persistence: 50}.Validate())
	assert.Error(t, OEEConfig{Resolution: 10, Persistence: 0}.Validate())
	assert.Error(t, OEEConfig{Resolution: 20, Persistence: 50}.Validate())
}

func TestOEEReportsOnlyOnResolutionTicks(t *testing.T) {
	tr := lineage.NewTracker[string]()
	oee, err := NewOEE[string](tr, OEEConfig{Resolution: 2, Persistence: 4}, bitorg.Skeleton, bitorg.Complexity)
	require.NoError(t, err)

	_, ok := oee.Update(1)
	assert.False(t, ok)
	rec, ok := oee.Update(2)
	require.True(t, ok)
	assert.Equal(t, model.OEERecord{Generation: 2, Change: -1, Novelty: -1, Ecology: -1, Complexity: -1}, rec)
}

func TestOEEMetricsFollowPersistentLineages(t *testing.T) {
	tr := lineage.NewPrunedTracker[string]()
	oee, err := NewOEE[string](tr, OEEConfig{Resolution: 1, Persistence: 1}, bitorg.Skeleton, bitorg.Complexity)
	require.NoError(t, err)

	tr.TrackInjected("11")
	tr.TrackPlacement(0)
	tr.TrackInjected("10")
	tr.TrackPlacement(1)
	oee.Update(0)

	// Slot 0 copies itself over slot 1.
	tr.RecordParent(0)
	tr.TrackOffspring("11")
	tr.TrackPlacement(1)
	oee.Update(1)

	// Slot 1 produces a mutant over slot 0.
	tr.RecordParent(1)
	tr.TrackOffspring("01")
	tr.TrackPlacement(0)
	oee.Update(2)
	oee.Update(3)

	assert.Equal(t, []model.OEERecord{
		{Generation: 0, Change: -1, Novelty: -1, Ecology: -1, Complexity: -1},
		{Generation: 1, Change: -1, Novelty: 1, Ecology: 0, Complexity: 2},
		{Generation: 2, Change: 0, Novelty: 0, Ecology: 0, Complexity: 2},
		{Generation: 3, Change: 1, Novelty: 1, Ecology: 1, Complexity: 2},
	}, oee.Records())
}

func TestEntropyInBits(t *testing.T) {
	assert.Equal(t, 0.0, Entropy([]string{}))
	assert.InDelta(t, 0.0, Entropy([]string{"a", "a"}), 1e-12)
	assert.InDelta(t, 1.0, Entropy([]string{"a", "b", "a", "b"}), 1e-12)
	assert.InDelta(t, 2.0, Entropy([]int{1, 2, 3, 4}), 1e-12)
}

type fakeView struct{ nodes, genomes, mrca int }

func (f fakeView) NodeCount() int                        { return f.nodes }
func (f fakeView) GenomeCount() int                      { return f.genomes }
func (f fakeView) MostRecentCommonAncestor() (int, bool) { return f.mrca, true }

func TestSummarize(t *testing.T) {
	rec := Summarize(3, []float64{1, 2, 3, 4}, Counters{Births: 7, Injections: 4}, fakeView{nodes: 9, genomes: 5, mrca: 2})
	assert.Equal(t, 3, rec.Generation)
	assert.Equal(t, 4, rec.Size)
	assert.Equal(t, 4.0, rec.BestFitness)
	assert.Equal(t, 1.0, rec.MinFitness)
	assert.InDelta(t, 2.5, rec.MeanFitness, 1e-12)
	assert.InDelta(t, 1.118034, rec.StdFitness, 1e-6)
	assert.Equal(t, 7, rec.Births)
	assert.Equal(t, 9, rec.LineageNodes)
	assert.Equal(t, 2, rec.Coalescence)

	empty := Summarize(0, nil, Counters{}, nil)
	assert.Equal(t, 0, empty.Size)
	assert.Equal(t, 0.0, empty.BestFitness)
}

func TestMetricsCountHubEvents(t *testing.T) {
	m := NewMetrics("evoworld")
	hub := signal.NewHub[string]("")
	AttachMetrics(m, hub)

	hub.InjectReady.Trigger("a")
	hub.OffspringReady.Trigger("b")
	hub.OffspringReady.Trigger("c")
	hub.OrgRemoved.Trigger(0)
	hub.OrgsRelocated.Trigger([]int{1})
	hub.Update.Trigger(4)
	m.Observe(model.GenerationRecord{Size: 10, BestFitness: 8, LineageNodes: 30, Genomes: 12, Coalescence: 5})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.births))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.injections))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.removals))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.relocations))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.generation))
	assert.Equal(t, 8.0, testutil.ToFloat64(m.bestFitness))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.coalescence))
	assert.Equal(t, 11, testutil.CollectAndCount(m.Registry()))
}

func TestWriteOEECSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteOEECSV(&buf, []model.OEERecord{{Generation: 5, Change: 1, Novelty: 2, Ecology: 0.5, Complexity: 3}}))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "generation,change,novelty,ecology,complexity", lines[0])
	assert.Equal(t, "5,1,2,0.5,3", lines[1])
}

func TestOutputWritesHeaderOnce(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	out, err := NewOutput(dir)
	require.NoError(t, err)
	require.NoError(t, out.WriteGeneration(model.GenerationRecord{Generation: 1}))
	require.NoError(t, out.WriteGeneration(model.GenerationRecord{Generation: 2}))
	require.NoError(t, out.WriteOEE(model.OEERecord{Generation: 2}))
	require.NoError(t, out.Close())

	data, err := os.ReadFile(filepath.Join(dir, "generations.csv"))
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(string(data)), "\n"), 3)
	data, err = os.ReadFile(filepath.Join(dir, "oee.csv"))
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(string(data)), "\n"), 2)

	var none *Output
	none, err = NewOutput("")
	require.NoError(t, err)
	assert.Nil(t, none)
	assert.NoError(t, none.WriteGeneration(model.GenerationRecord{}))
	assert.NoError(t, none.Close())
}
