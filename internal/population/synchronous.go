package population

// Synchronous buffers every birth into the next generation; Advance discards
// the current generation and swaps the buffer in. Lineage trackers reconcile
// the turnover on the world's update signal rather than per-slot removals.
type Synchronous[O any] struct {
	slots[O]
	next []O
}

func NewSynchronous[O any]() *Synchronous[O] {
	return &Synchronous[O]{}
}

func (*Synchronous[O]) Name() string {
	return KindSynchronous
}

func (p *Synchronous[O]) AddExternal(org O) int {
	return p.push(org)
}

func (p *Synchronous[O]) AddBirth(org O, _ int) int {
	p.next = append(p.next, org)
	return len(p.next) - 1
}

// NextSize is the number of births buffered for the next generation.
func (p *Synchronous[O]) NextSize() int {
	return len(p.next)
}

func (p *Synchronous[O]) Advance() {
	p.resize(len(p.next))
	copy(p.orgs, p.next)
	for pos := range p.live {
		p.live[pos] = true
	}
	p.occupied = len(p.next)
	p.next = nil
}

func (*Synchronous[O]) Capacity() int {
	return -1
}

func (*Synchronous[O]) SeparateGenerations() bool {
	return true
}

// Clear drops both the current generation and any buffered births. The
// buffered births are reported as one discard after the removals.
func (p *Synchronous[O]) Clear() {
	p.slots.Clear()
	dropped := len(p.next)
	p.next = nil
	p.notifyDiscarded(dropped)
}
