package population

import (
	"fmt"
	"sort"
)

type PoolsConfig struct {
	Size      int
	PoolCount int
	// PoolSizes lists one size per pool, a single size shared by every pool,
	// or nothing for an even split with the remainder in the last pool.
	PoolSizes []int
	// Connections maps a pool index to the pools its offspring may migrate to.
	Connections   map[int][]int
	MigrationRate float64
}

// Pools partitions the population into contiguous index ranges with directed
// migration links between them.
type Pools[O any] struct {
	slots[O]
	cfg      PoolsConfig
	poolEnd  []int
	poolOf   []int
	injected int
}

func NewPools[O any](cfg PoolsConfig) (*Pools[O], error) {
	if cfg.Size <= 0 {
		return nil, fmt.Errorf("pool population size must be > 0")
	}
	if cfg.PoolCount <= 0 {
		return nil, fmt.Errorf("pool count must be > 0")
	}
	if cfg.MigrationRate < 0 || cfg.MigrationRate > 1 {
		return nil, fmt.Errorf("migration rate must be in [0, 1]: %v", cfg.MigrationRate)
	}

	sizes, err := resolvePoolSizes(cfg.Size, cfg.PoolCount, cfg.PoolSizes)
	if err != nil {
		return nil, err
	}
	for from, targets := range cfg.Connections {
		if from < 0 || from >= cfg.PoolCount {
			return nil, fmt.Errorf("connection source pool %d out of range", from)
		}
		for _, to := range targets {
			if to < 0 || to >= cfg.PoolCount {
				return nil, fmt.Errorf("connection target pool %d out of range", to)
			}
		}
	}
	cfg.PoolSizes = sizes

	p := &Pools[O]{
		cfg:     cfg,
		poolEnd: make([]int, 0, len(sizes)),
		poolOf:  make([]int, cfg.Size),
	}
	p.resize(cfg.Size)
	end := 0
	for pool, size := range sizes {
		for pos := end; pos < end+size; pos++ {
			p.poolOf[pos] = pool
		}
		end += size
		p.poolEnd = append(p.poolEnd, end)
	}
	return p, nil
}

func resolvePoolSizes(total, count int, sizes []int) ([]int, error) {
	switch len(sizes) {
	case 0:
		if total < count {
			return nil, fmt.Errorf("population size %d cannot hold %d pools", total, count)
		}
		out := make([]int, count)
		for i := range out {
			out[i] = total / count
		}
		out[count-1] += total % count
		return out, nil
	case 1:
		out := make([]int, count)
		for i := range out {
			out[i] = sizes[0]
		}
		sizes = out
	default:
		if len(sizes) != count {
			return nil, fmt.Errorf("pool sizes mismatch: got %d sizes for %d pools", len(sizes), count)
		}
		sizes = append([]int(nil), sizes...)
	}

	sum := 0
	for i, size := range sizes {
		if size <= 0 {
			return nil, fmt.Errorf("pool %d size must be > 0", i)
		}
		sum += size
	}
	if sum != total {
		return nil, fmt.Errorf("pool sizes sum to %d, population size is %d", sum, total)
	}
	return sizes, nil
}

func (*Pools[O]) Name() string {
	return KindPools
}

func (p *Pools[O]) PoolCount() int {
	return p.cfg.PoolCount
}

func (p *Pools[O]) PoolSizes() []int {
	return append([]int(nil), p.cfg.PoolSizes...)
}

// PoolOf returns the pool index that owns pos.
func (p *Pools[O]) PoolOf(pos int) int {
	return p.poolOf[pos]
}

// PoolRange returns the half-open position range [lo, hi) of pool.
func (p *Pools[O]) PoolRange(pool int) (int, int) {
	lo := 0
	if pool > 0 {
		lo = p.poolEnd[pool-1]
	}
	return lo, p.poolEnd[pool]
}

// Connections returns the migration targets of pool in ascending order.
func (p *Pools[O]) Connections(pool int) []int {
	out := append([]int(nil), p.cfg.Connections[pool]...)
	sort.Ints(out)
	return out
}

// AddExternal seeds each pool once, in order, before inserting anywhere in
// the population.
func (p *Pools[O]) AddExternal(org O) int {
	lo, hi := 0, len(p.orgs)
	if p.injected < p.cfg.PoolCount {
		lo, hi = p.PoolRange(p.injected)
	}
	pos := lo + p.random().Intn(hi-lo)
	p.put(pos, org)
	p.injected++
	return pos
}

// AddBirth keeps the offspring in the parent's pool unless a migration draw
// succeeds and the parent's pool has outgoing connections.
func (p *Pools[O]) AddBirth(org O, parentPos int) int {
	rng := p.random()
	pool := p.poolOf[parentPos]
	migrate := rng.Float64() < p.cfg.MigrationRate
	if targets := p.cfg.Connections[pool]; migrate && len(targets) > 0 {
		pool = targets[rng.Intn(len(targets))]
	}
	lo, hi := p.PoolRange(pool)
	pos := lo + rng.Intn(hi-lo)
	p.put(pos, org)
	return pos
}

func (*Pools[O]) Advance() {}

func (p *Pools[O]) Capacity() int {
	return p.cfg.Size
}

func (*Pools[O]) SeparateGenerations() bool {
	return false
}

// Clear empties every slot and restarts pool seeding.
func (p *Pools[O]) Clear() {
	p.slots.Clear()
	p.resize(p.cfg.Size)
	p.injected = 0
}
