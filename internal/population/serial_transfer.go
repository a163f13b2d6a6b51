package population

import "fmt"

const (
	defaultMaxSize        = 1000
	defaultBottleneckSize = 100
)

type SerialTransferConfig struct {
	MaxSize        int
	BottleneckSize int
	// TruncateBottleneck keeps the lowest positions instead of a random
	// subset when shrinking.
	TruncateBottleneck bool
}

// SerialTransfer appends every birth until MaxSize is reached, then shrinks
// the population to BottleneckSize before inserting.
type SerialTransfer[O any] struct {
	slots[O]
	cfg         SerialTransferConfig
	bottlenecks int
}

func NewSerialTransfer[O any](cfg SerialTransferConfig) (*SerialTransfer[O], error) {
	if cfg.MaxSize == 0 {
		cfg.MaxSize = defaultMaxSize
	}
	if cfg.BottleneckSize == 0 {
		cfg.BottleneckSize = defaultBottleneckSize
	}
	if cfg.MaxSize < 0 || cfg.BottleneckSize < 0 {
		return nil, fmt.Errorf("serial transfer sizes must be positive: max=%d bottleneck=%d", cfg.MaxSize, cfg.BottleneckSize)
	}
	if cfg.BottleneckSize >= cfg.MaxSize {
		return nil, fmt.Errorf("bottleneck size %d must be below max size %d", cfg.BottleneckSize, cfg.MaxSize)
	}
	return &SerialTransfer[O]{cfg: cfg}, nil
}

func (*SerialTransfer[O]) Name() string {
	return KindSerialTransfer
}

func (p *SerialTransfer[O]) MaxSize() int {
	return p.cfg.MaxSize
}

func (p *SerialTransfer[O]) BottleneckSize() int {
	return p.cfg.BottleneckSize
}

func (p *SerialTransfer[O]) Bottlenecks() int {
	return p.bottlenecks
}

func (p *SerialTransfer[O]) AddExternal(org O) int {
	return p.push(org)
}

func (p *SerialTransfer[O]) AddBirth(org O, _ int) int {
	if len(p.orgs) >= p.cfg.MaxSize {
		p.Bottleneck(p.cfg.BottleneckSize, !p.cfg.TruncateBottleneck)
	}
	return p.push(org)
}

// Bottleneck shrinks the population to newSize, keeping either a uniformly
// random subset or the first newSize slots. Deleted occupants are reported
// before survivors are compacted, then the compaction mapping is reported.
func (p *SerialTransfer[O]) Bottleneck(newSize int, chooseRandom bool) {
	n := len(p.orgs)
	if newSize >= n {
		return
	}
	if newSize < 0 {
		newSize = 0
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	if chooseRandom {
		rng := p.random()
		for i := 0; i < newSize; i++ {
			j := i + rng.Intn(n-i)
			order[i], order[j] = order[j], order[i]
		}
	}

	for _, pos := range order[newSize:] {
		if p.live[pos] {
			p.notifyRemoved(pos)
		}
	}

	kept := order[:newSize]
	orgs := make([]O, newSize)
	live := make([]bool, newSize)
	occupied := 0
	for newPos, oldPos := range kept {
		orgs[newPos] = p.orgs[oldPos]
		live[newPos] = p.live[oldPos]
		if live[newPos] {
			occupied++
		}
	}
	p.orgs, p.live, p.occupied = orgs, live, occupied
	p.bottlenecks++

	// The slot range shrank even when no survivor moved.
	p.notifyRelocated(append([]int(nil), kept...))
}

func (*SerialTransfer[O]) Advance() {}

func (p *SerialTransfer[O]) Capacity() int {
	return p.cfg.MaxSize
}

func (*SerialTransfer[O]) SeparateGenerations() bool {
	return false
}
