package population

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type observed struct {
	removed   []int
	relocated [][]int
	discarded []int
}

func (o *observed) observer() Observer {
	return Observer{
		Removed:   func(pos int) { o.removed = append(o.removed, pos) },
		Relocated: func(mapping []int) { o.relocated = append(o.relocated, mapping) },
		Discarded: func(count int) { o.discarded = append(o.discarded, count) },
	}
}

func TestUnboundedBirthReplacesExistingSlot(t *testing.T) {
	p := NewUnbounded[string]()
	p.SetRandom(rand.New(rand.NewSource(1)))
	for _, org := range []string{"a", "b", "c"} {
		p.AddExternal(org)
	}

	for i := 0; i < 50; i++ {
		pos := p.AddBirth("x", 0)
		require.GreaterOrEqual(t, pos, 0)
		require.Less(t, pos, 3)
		org, ok := p.At(pos)
		require.True(t, ok)
		require.Equal(t, "x", org)
	}
	assert.Equal(t, 3, p.Size())
	assert.Equal(t, 3, p.Occupied())
	assert.Equal(t, -1, p.Capacity())
	assert.False(t, p.SeparateGenerations())
}

func TestUnboundedBirthIntoEmptyPopulationPanics(t *testing.T) {
	p := NewUnbounded[string]()
	p.SetRandom(rand.New(rand.NewSource(1)))
	assert.Panics(t, func() { p.AddBirth("x", 0) })
}

func TestMissingRandomSourcePanics(t *testing.T) {
	p := NewUnbounded[string]()
	p.AddExternal("a")
	assert.PanicsWithValue(t, "population: no random source configured", func() { p.AddBirth("x", 0) })
}

func TestSynchronousBuffersBirthsUntilAdvance(t *testing.T) {
	p := NewSynchronous[int]()
	p.AddExternal(1)
	p.AddExternal(2)

	assert.Equal(t, 0, p.AddBirth(10, 0))
	assert.Equal(t, 1, p.AddBirth(20, 1))
	assert.Equal(t, 2, p.AddBirth(30, 1))
	assert.Equal(t, 2, p.Size())
	assert.Equal(t, 3, p.NextSize())
	assert.True(t, p.SeparateGenerations())

	p.Advance()

	var got []int
	for _, org := range p.All() {
		got = append(got, org)
	}
	assert.Equal(t, []int{10, 20, 30}, got)
	assert.Equal(t, 0, p.NextSize())
	assert.Equal(t, 3, p.Occupied())
}

func TestSynchronousClearReportsBufferedBirths(t *testing.T) {
	p := NewSynchronous[int]()
	obs := &observed{}
	p.SetObserver(obs.observer())
	p.AddExternal(1)
	p.AddBirth(10, 0)
	p.AddBirth(11, 0)

	p.Clear()

	assert.Equal(t, []int{0}, obs.removed)
	assert.Equal(t, []int{2}, obs.discarded)
	assert.Equal(t, 0, p.NextSize())
	p.Advance()
	assert.Equal(t, 0, p.Occupied())

	p.Clear()
	assert.Equal(t, []int{2}, obs.discarded, "nothing buffered, nothing reported")
}

func TestSerialTransferSingleBottleneck(t *testing.T) {
	p, err := NewSerialTransfer[int](SerialTransferConfig{MaxSize: 10, BottleneckSize: 4})
	require.NoError(t, err)
	p.SetRandom(rand.New(rand.NewSource(3)))
	obs := &observed{}
	p.SetObserver(obs.observer())

	for i := 0; i < 10; i++ {
		p.AddBirth(i, 0)
	}
	require.Equal(t, 0, p.Bottlenecks())
	require.Equal(t, 10, p.Size())

	pos := p.AddBirth(10, 0)

	assert.Equal(t, 1, p.Bottlenecks())
	assert.Len(t, obs.removed, 6)
	assert.Equal(t, 4, pos, "newborn is appended after the four survivors")
	assert.Equal(t, 5, p.Size())
	org, ok := p.At(pos)
	require.True(t, ok)
	assert.Equal(t, 10, org)
}

func TestSerialTransferTruncatingBottleneckKeepsPrefix(t *testing.T) {
	p, err := NewSerialTransfer[int](SerialTransferConfig{MaxSize: 5, BottleneckSize: 2, TruncateBottleneck: true})
	require.NoError(t, err)
	obs := &observed{}
	p.SetObserver(obs.observer())
	for i := 0; i < 5; i++ {
		p.AddExternal(i)
	}

	p.AddBirth(99, 0)

	assert.Equal(t, []int{2, 3, 4}, obs.removed)
	assert.Equal(t, [][]int{{0, 1}}, obs.relocated)
	var got []int
	for _, org := range p.All() {
		got = append(got, org)
	}
	assert.Equal(t, []int{0, 1, 99}, got)
}

func TestSerialTransferRandomBottleneckReportsRelocation(t *testing.T) {
	p, err := NewSerialTransfer[int](SerialTransferConfig{MaxSize: 20, BottleneckSize: 5})
	require.NoError(t, err)
	p.SetRandom(rand.New(rand.NewSource(9)))
	obs := &observed{}
	p.SetObserver(obs.observer())
	for i := 0; i < 20; i++ {
		p.AddExternal(i * 100)
	}

	p.Bottleneck(5, true)

	require.Equal(t, 5, p.Size())
	require.Len(t, obs.removed, 15)
	kept := map[int]bool{}
	for newPos := 0; newPos < 5; newPos++ {
		org, ok := p.At(newPos)
		require.True(t, ok)
		kept[org/100] = true
	}
	for _, pos := range obs.removed {
		assert.False(t, kept[pos], "removed position %d survived", pos)
	}
	require.Len(t, obs.relocated, 1)
	for newPos, oldPos := range obs.relocated[0] {
		org, _ := p.At(newPos)
		assert.Equal(t, oldPos*100, org)
	}
}

func TestSerialTransferRejectsInvalidSizes(t *testing.T) {
	_, err := NewSerialTransfer[int](SerialTransferConfig{MaxSize: 4, BottleneckSize: 4})
	assert.Error(t, err)
}

func TestGridBirthStaysInMooreNeighborhood(t *testing.T) {
	g, err := NewGrid[string](5, 4)
	require.NoError(t, err)
	g.SetRandom(rand.New(rand.NewSource(5)))
	parent := g.Pos(0, 0)

	seen := map[int]bool{}
	for i := 0; i < 500; i++ {
		pos := g.AddBirth("o", parent)
		x, y := g.XY(pos)
		dx := min(abs(x-0), 5-abs(x-0))
		dy := min(abs(y-0), 4-abs(y-0))
		require.LessOrEqual(t, dx, 1)
		require.LessOrEqual(t, dy, 1)
		seen[pos] = true
	}
	assert.Len(t, seen, 9, "all nine wrapped neighbors are reachable")
	assert.True(t, seen[g.Pos(4, 3)], "wraps to the opposite corner")
}

func TestGridExternalFillsEmptyCellsFirst(t *testing.T) {
	g, err := NewGrid[int](3, 3)
	require.NoError(t, err)
	g.SetRandom(rand.New(rand.NewSource(2)))

	seen := map[int]bool{}
	for i := 0; i < 9; i++ {
		seen[g.AddExternal(i)] = true
	}
	assert.Len(t, seen, 9)
	assert.Equal(t, 9, g.Occupied())

	pos := g.AddExternal(100)
	assert.GreaterOrEqual(t, pos, 0)
	assert.Equal(t, 9, g.Occupied())
}

func TestGridString(t *testing.T) {
	g, err := NewGrid[int](2, 2)
	require.NoError(t, err)
	g.SetRandom(rand.New(rand.NewSource(1)))
	g.put(g.Pos(1, 0), 7)
	assert.Equal(t, "- 7\n- -\n", g.String())
}

func TestPoolsSeedEachPoolBeforeReuse(t *testing.T) {
	p, err := NewPools[int](PoolsConfig{Size: 12, PoolCount: 3})
	require.NoError(t, err)
	p.SetRandom(rand.New(rand.NewSource(4)))

	for pool := 0; pool < 3; pool++ {
		pos := p.AddExternal(pool)
		assert.Equal(t, pool, p.PoolOf(pos))
	}
	pos := p.AddExternal(3)
	assert.GreaterOrEqual(t, pos, 0)
	assert.Less(t, pos, 12)
}

func TestPoolsBirthWithoutConnectionsStaysHome(t *testing.T) {
	p, err := NewPools[int](PoolsConfig{Size: 9, PoolCount: 3, MigrationRate: 1})
	require.NoError(t, err)
	p.SetRandom(rand.New(rand.NewSource(8)))

	for i := 0; i < 100; i++ {
		pos := p.AddBirth(i, 4)
		require.Equal(t, 1, p.PoolOf(pos))
	}
}

func TestPoolsMigrationFollowsConnections(t *testing.T) {
	p, err := NewPools[int](PoolsConfig{
		Size:          9,
		PoolCount:     3,
		PoolSizes:     []int{3},
		Connections:   map[int][]int{0: {2}},
		MigrationRate: 1,
	})
	require.NoError(t, err)
	p.SetRandom(rand.New(rand.NewSource(8)))

	for i := 0; i < 100; i++ {
		pos := p.AddBirth(i, 0)
		require.Equal(t, 2, p.PoolOf(pos))
	}
	assert.Equal(t, []int{2}, p.Connections(0))
}

func TestPoolsPartialMigrationRate(t *testing.T) {
	p, err := NewPools[int](PoolsConfig{
		Size:          20,
		PoolCount:     2,
		Connections:   map[int][]int{0: {1}},
		MigrationRate: 0.25,
	})
	require.NoError(t, err)
	p.SetRandom(rand.New(rand.NewSource(11)))

	migrated := 0
	const trials = 4000
	for i := 0; i < trials; i++ {
		if p.PoolOf(p.AddBirth(i, 0)) == 1 {
			migrated++
		}
	}
	assert.InDelta(t, 0.25, float64(migrated)/trials, 0.03)
}

func TestResolvePoolSizes(t *testing.T) {
	sizes, err := resolvePoolSizes(10, 3, nil)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 3, 4}, sizes)

	_, err = resolvePoolSizes(10, 3, []int{3, 3})
	assert.Error(t, err)

	_, err = resolvePoolSizes(10, 2, []int{3, 3})
	assert.Error(t, err, "sizes must sum to the population size")

	sizes, err = resolvePoolSizes(8, 4, []int{2})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 2, 2, 2}, sizes)
}

func TestNewStrategyByKind(t *testing.T) {
	for _, kind := range Kinds() {
		cfg := Config{
			Kind:           kind,
			SerialTransfer: SerialTransferConfig{MaxSize: 10, BottleneckSize: 4},
			GridWidth:      3,
			GridHeight:     3,
			Pools:          PoolsConfig{Size: 6, PoolCount: 2},
		}
		s, err := New[int](cfg)
		require.NoError(t, err, kind)
		assert.Equal(t, kind, s.Name())
	}

	_, err := New[int](Config{Kind: "ring"})
	assert.ErrorIs(t, err, ErrUnknownStrategy)
}

func TestClearReportsEveryOccupant(t *testing.T) {
	g, err := NewGrid[int](2, 2)
	require.NoError(t, err)
	g.SetRandom(rand.New(rand.NewSource(1)))
	obs := &observed{}
	g.SetObserver(obs.observer())
	g.AddExternal(1)
	g.AddExternal(2)

	g.Clear()

	assert.Len(t, obs.removed, 2)
	assert.Equal(t, 4, g.Size())
	assert.Equal(t, 0, g.Occupied())
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
