package lineage

// GenomePool deduplicates genomes by value and counts how many ancestry
// nodes reference each one.
type GenomePool[G comparable] struct {
	counts map[G]int
}

func NewGenomePool[G comparable]() *GenomePool[G] {
	return &GenomePool[G]{counts: make(map[G]int)}
}

// Acquire adds a reference to g and reports whether g was new to the pool.
func (p *GenomePool[G]) Acquire(g G) bool {
	n := p.counts[g]
	p.counts[g] = n + 1
	return n == 0
}

// Release drops a reference to g and reports whether g left the pool.
func (p *GenomePool[G]) Release(g G) bool {
	n, ok := p.counts[g]
	if !ok {
		panic("lineage: release of genome absent from pool")
	}
	if n <= 1 {
		delete(p.counts, g)
		return true
	}
	p.counts[g] = n - 1
	return false
}

func (p *GenomePool[G]) Count(g G) int {
	return p.counts[g]
}

func (p *GenomePool[G]) Contains(g G) bool {
	_, ok := p.counts[g]
	return ok
}

func (p *GenomePool[G]) Len() int {
	return len(p.counts)
}
