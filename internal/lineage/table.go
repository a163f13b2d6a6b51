package lineage

type pendingPlacement struct {
	id       int
	injected bool
}

// slotTable translates population positions to ancestry ids. Births into a
// strategy with separate generations are buffered in next until Update.
type slotTable struct {
	separate   bool
	current    []int
	next       []int
	pending    []pendingPlacement
	nextParent int
}

func (t *slotTable) idAt(pos int) int {
	if pos < 0 || pos >= len(t.current) {
		return 0
	}
	return t.current[pos]
}

func (t *slotTable) push(id int, injected bool) {
	t.pending = append(t.pending, pendingPlacement{id: id, injected: injected})
}

func (t *slotTable) pop() pendingPlacement {
	if len(t.pending) == 0 {
		panic("lineage: placement without a preceding offspring or injection")
	}
	p := t.pending[0]
	t.pending = t.pending[1:]
	if len(t.pending) == 0 {
		t.pending = nil
	}
	return p
}

// buffered reports whether a placement belongs in the next-generation table.
func (t *slotTable) buffered(p pendingPlacement) bool {
	return t.separate && !p.injected
}

func (t *slotTable) setCurrent(pos, id int) {
	t.current = setAt(t.current, pos, id)
}

func (t *slotTable) setNext(pos, id int) {
	t.next = setAt(t.next, pos, id)
}

func (t *slotTable) relocate(mapping []int) {
	moved := make([]int, len(mapping))
	for newPos, oldPos := range mapping {
		moved[newPos] = t.idAt(oldPos)
	}
	t.current = moved
}

// swap installs the buffered generation and returns the outgoing one.
func (t *slotTable) swap() []int {
	old := t.current
	t.current = t.next
	t.next = nil
	return old
}

// discardNext drops the buffered generation and returns its ids.
func (t *slotTable) discardNext() []int {
	dropped := t.next
	t.next = nil
	return dropped
}

func (t *slotTable) snapshot() []int {
	return append([]int(nil), t.current...)
}

func setAt(ids []int, pos, id int) []int {
	if pos >= len(ids) {
		grown := make([]int, pos+1)
		copy(grown, ids)
		ids = grown
	}
	ids[pos] = id
	return ids
}
