package lineage

import (
	"fmt"
	"sort"
)

type node[G comparable] struct {
	id       int
	parent   int
	alive    bool
	genome   G
	children map[int]struct{}
}

// PrunedTracker retains an ancestry node only while it is alive or has a
// retained child. Nodes live in an arena keyed by ancestry id and link to
// each other by id. It also maintains the coalescence point: the deepest
// node every living lineage passes through.
type PrunedTracker[G comparable] struct {
	table   slotTable
	nodes   map[int]*node[G]
	genomes *GenomePool[G]
	nextID  int

	coalescence int
	// reproduced is set by the first death caused by reproduction; the
	// coalescence point stays at the root while the population is seeded.
	reproduced bool
	pruned     int
}

func NewPrunedTracker[G comparable]() *PrunedTracker[G] {
	root := &node[G]{id: RootID, parent: RootID, children: map[int]struct{}{}}
	return &PrunedTracker[G]{
		nodes:   map[int]*node[G]{RootID: root},
		genomes: NewGenomePool[G](),
		nextID:  RootID + 1,
	}
}

func (t *PrunedTracker[G]) SetSeparateGenerations(separate bool) {
	t.table.separate = separate
}

func (t *PrunedTracker[G]) RecordParent(pos int) {
	t.table.nextParent = t.table.idAt(pos)
}

func (t *PrunedTracker[G]) TrackOffspring(genome G) int {
	id := t.AddOrganism(genome, t.table.nextParent)
	t.table.push(id, false)
	return id
}

func (t *PrunedTracker[G]) TrackInjected(genome G) int {
	id := t.AddOrganism(genome, RootID)
	t.table.push(id, true)
	return id
}

// TrackPlacement kills the occupant the new organism replaces, prunes every
// ancestor left without living descendants, advances the coalescence point,
// and records the new occupant. Injected organisms never move the
// coalescence point.
func (t *PrunedTracker[G]) TrackPlacement(pos int) {
	p := t.table.pop()
	if t.table.buffered(p) {
		t.table.setNext(pos, p.id)
		t.advanceCoalescence()
		return
	}

	replaced := t.table.idAt(pos)
	t.table.setCurrent(pos, p.id)
	if replaced != RootID {
		t.kill(replaced)
		if !p.injected {
			t.reproduced = true
		}
	}
	if !p.injected {
		t.advanceCoalescence()
	}
}

func (t *PrunedTracker[G]) TrackRemoval(pos int) {
	id := t.table.idAt(pos)
	if id == RootID {
		return
	}
	t.table.setCurrent(pos, RootID)
	t.kill(id)
	t.reproduced = true
	t.advanceCoalescence()
}

func (t *PrunedTracker[G]) TrackRelocation(mapping []int) {
	t.table.relocate(mapping)
}

// TrackDiscard kills every buffered birth; none of them will ever occupy a
// slot.
func (t *PrunedTracker[G]) TrackDiscard() {
	for _, id := range t.table.discardNext() {
		if id == RootID {
			continue
		}
		t.kill(id)
		t.reproduced = true
	}
	t.advanceCoalescence()
}

// Update retires the outgoing generation when births are buffered.
func (t *PrunedTracker[G]) Update(_ int) {
	if !t.table.separate {
		return
	}
	for _, id := range t.table.swap() {
		if id == RootID {
			continue
		}
		t.kill(id)
		t.reproduced = true
	}
	t.advanceCoalescence()
}

// AddOrganism creates a living node under parent. Parent must be retained.
func (t *PrunedTracker[G]) AddOrganism(genome G, parent int) int {
	p, ok := t.nodes[parent]
	if !ok {
		panic(fmt.Sprintf("lineage: parent %d is not retained", parent))
	}
	id := t.nextID
	t.nextID++
	t.genomes.Acquire(genome)
	t.nodes[id] = &node[G]{
		id:       id,
		parent:   parent,
		alive:    true,
		genome:   genome,
		children: map[int]struct{}{},
	}
	p.children[id] = struct{}{}
	return id
}

func (t *PrunedTracker[G]) kill(id int) {
	n, ok := t.nodes[id]
	if !ok {
		return
	}
	n.alive = false
	t.prune(id)
}

// prune walks from id toward the root removing dead, childless nodes.
func (t *PrunedTracker[G]) prune(id int) {
	for id != RootID {
		n := t.nodes[id]
		if n.alive || len(n.children) > 0 {
			return
		}
		parent := t.nodes[n.parent]
		delete(parent.children, id)
		t.genomes.Release(n.genome)
		delete(t.nodes, id)
		t.pruned++
		id = parent.id
	}
}

func (t *PrunedTracker[G]) advanceCoalescence() {
	if !t.reproduced {
		return
	}
	from := t.coalescence
	if _, ok := t.nodes[from]; !ok {
		// The point's lineage died out beside an injected one. Restart from
		// the root once a single lineage remains.
		if len(t.nodes[RootID].children) != 1 {
			return
		}
		from = RootID
	}
	if next := t.descend(from); next > t.coalescence {
		t.coalescence = next
	}
}

func (t *PrunedTracker[G]) Snapshot() []int {
	return t.table.snapshot()
}

// TraceLineageIDs walks from id to the root, excluding the root. Tracing an
// id that has been pruned is an error.
func (t *PrunedTracker[G]) TraceLineageIDs(id int) ([]int, error) {
	n, ok := t.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownAncestor, id)
	}
	var out []int
	for n.id != RootID {
		out = append(out, n.id)
		n = t.nodes[n.parent]
	}
	return out, nil
}

func (t *PrunedTracker[G]) TraceLineage(id int) ([]G, error) {
	n, ok := t.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownAncestor, id)
	}
	var out []G
	for n.id != RootID {
		out = append(out, n.genome)
		n = t.nodes[n.parent]
	}
	return out, nil
}

func (t *PrunedTracker[G]) Genome(id int) (G, bool) {
	n, ok := t.nodes[id]
	if !ok || id == RootID {
		var zero G
		return zero, false
	}
	return n.genome, true
}

func (t *PrunedTracker[G]) Parent(id int) (int, bool) {
	n, ok := t.nodes[id]
	if !ok || id == RootID {
		return 0, false
	}
	return n.parent, true
}

// Alive reports whether id is retained and still occupies a slot.
func (t *PrunedTracker[G]) Alive(id int) bool {
	n, ok := t.nodes[id]
	return ok && n.alive
}

// Children returns the retained children of id in ascending order.
func (t *PrunedTracker[G]) Children(id int) []int {
	n, ok := t.nodes[id]
	if !ok {
		return nil
	}
	out := make([]int, 0, len(n.children))
	for child := range n.children {
		out = append(out, child)
	}
	sort.Ints(out)
	return out
}

// CoalescenceID is the id of the current coalescence point. It never
// decreases. When injections alone retire the point's lineage, the id stays
// behind on a pruned node until the next death lets it advance; use
// MostRecentCommonAncestor for the ancestor of the living population.
func (t *PrunedTracker[G]) CoalescenceID() int {
	return t.coalescence
}

// MostRecentCommonAncestor returns the deepest node every living organism
// descends from, or false once the population is extinct. It is the
// coalescence point unless a later injection started a lineage beside it.
func (t *PrunedTracker[G]) MostRecentCommonAncestor() (int, bool) {
	if !t.populated() {
		return t.coalescence, false
	}
	if _, ok := t.nodes[t.coalescence]; ok && (t.coalescence == RootID || len(t.nodes[RootID].children) == 1) {
		return t.coalescence, true
	}
	return t.descend(RootID), true
}

func (t *PrunedTracker[G]) populated() bool {
	for _, id := range t.table.current {
		if id != RootID {
			return true
		}
	}
	for _, id := range t.table.next {
		if id != RootID {
			return true
		}
	}
	return false
}

// descend follows dead nodes with a single retained child down from id.
func (t *PrunedTracker[G]) descend(id int) int {
	for {
		n := t.nodes[id]
		if n.alive || len(n.children) != 1 {
			return id
		}
		for child := range n.children {
			id = child
		}
	}
}

// NodeCount excludes the root.
func (t *PrunedTracker[G]) NodeCount() int {
	return len(t.nodes) - 1
}

func (t *PrunedTracker[G]) GenomeCount() int {
	return t.genomes.Len()
}

func (t *PrunedTracker[G]) GenomeRefs(genome G) int {
	return t.genomes.Count(genome)
}

// PrunedCount is the number of nodes removed so far.
func (t *PrunedTracker[G]) PrunedCount() int {
	return t.pruned
}
