package lineage

import "fmt"

type record[G comparable] struct {
	parent int
	genome G
}

// Tracker keeps every ancestry id ever assigned along with its parent and
// genome.
type Tracker[G comparable] struct {
	table   slotTable
	records []record[G]
	genomes *GenomePool[G]
}

func NewTracker[G comparable]() *Tracker[G] {
	return &Tracker[G]{
		records: make([]record[G], 1),
		genomes: NewGenomePool[G](),
	}
}

func (t *Tracker[G]) SetSeparateGenerations(separate bool) {
	t.table.separate = separate
}

// RecordParent remembers the ancestry id at pos as the parent of the next
// offspring.
func (t *Tracker[G]) RecordParent(pos int) {
	t.table.nextParent = t.table.idAt(pos)
}

func (t *Tracker[G]) TrackOffspring(genome G) int {
	id := t.AddOrganism(genome, t.table.nextParent)
	t.table.push(id, false)
	return id
}

func (t *Tracker[G]) TrackInjected(genome G) int {
	id := t.AddOrganism(genome, RootID)
	t.table.push(id, true)
	return id
}

func (t *Tracker[G]) TrackPlacement(pos int) {
	p := t.table.pop()
	if t.table.buffered(p) {
		t.table.setNext(pos, p.id)
		return
	}
	t.table.setCurrent(pos, p.id)
}

func (t *Tracker[G]) TrackRemoval(pos int) {
	if t.table.idAt(pos) != 0 {
		t.table.setCurrent(pos, 0)
	}
}

func (t *Tracker[G]) TrackRelocation(mapping []int) {
	t.table.relocate(mapping)
}

func (t *Tracker[G]) TrackDiscard() {
	t.table.discardNext()
}

func (t *Tracker[G]) Update(_ int) {
	if t.table.separate {
		t.table.swap()
	}
}

// AddOrganism assigns the next ancestry id to genome with the given parent.
func (t *Tracker[G]) AddOrganism(genome G, parent int) int {
	if parent < 0 || parent >= len(t.records) {
		panic(fmt.Sprintf("lineage: parent %d was never recorded", parent))
	}
	t.genomes.Acquire(genome)
	t.records = append(t.records, record[G]{parent: parent, genome: genome})
	return len(t.records) - 1
}

func (t *Tracker[G]) Snapshot() []int {
	return t.table.snapshot()
}

func (t *Tracker[G]) TraceLineageIDs(id int) ([]int, error) {
	if id < 0 || id >= len(t.records) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownAncestor, id)
	}
	var out []int
	for id != RootID {
		out = append(out, id)
		id = t.records[id].parent
	}
	return out, nil
}

func (t *Tracker[G]) TraceLineage(id int) ([]G, error) {
	ids, err := t.TraceLineageIDs(id)
	if err != nil {
		return nil, err
	}
	out := make([]G, len(ids))
	for i, anc := range ids {
		out[i] = t.records[anc].genome
	}
	return out, nil
}

func (t *Tracker[G]) Genome(id int) (G, bool) {
	if id <= RootID || id >= len(t.records) {
		var zero G
		return zero, false
	}
	return t.records[id].genome, true
}

func (t *Tracker[G]) Parent(id int) (int, bool) {
	if id <= RootID || id >= len(t.records) {
		return 0, false
	}
	return t.records[id].parent, true
}

// MostRecentCommonAncestor intersects the lineages of every occupied slot.
func (t *Tracker[G]) MostRecentCommonAncestor() (int, bool) {
	var lineages [][]int
	for _, id := range t.table.current {
		if id == 0 {
			continue
		}
		lin, err := t.TraceLineageIDs(id)
		if err != nil {
			return RootID, false
		}
		lineages = append(lineages, lin)
	}
	return commonAncestor(lineages)
}

func (t *Tracker[G]) NodeCount() int {
	return len(t.records) - 1
}

func (t *Tracker[G]) GenomeCount() int {
	return t.genomes.Len()
}
