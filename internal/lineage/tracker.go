// Package lineage records the ancestry of every organism a world accepts and
// answers lineage queries against it. Tracker keeps the full history;
// PrunedTracker keeps only what living organisms descend from.
package lineage

import (
	"errors"

	"evoworld/internal/signal"
)

// RootID is the synthetic ancestor of every injected organism.
const RootID = 0

var ErrUnknownAncestor = errors.New("unknown ancestry id")

// Listener is the event side of a tracker, driven by a world's signal hub.
type Listener[G comparable] interface {
	SetSeparateGenerations(separate bool)
	RecordParent(pos int)
	TrackOffspring(genome G) int
	TrackInjected(genome G) int
	TrackPlacement(pos int)
	TrackRemoval(pos int)
	TrackRelocation(mapping []int)
	// TrackDiscard drops births buffered for the next generation.
	TrackDiscard()
	Update(generation int)
}

// Source is the read-only side statistics collectors poll.
type Source[G comparable] interface {
	// Snapshot returns the ancestry id occupying each slot, 0 when empty.
	Snapshot() []int
	TraceLineageIDs(id int) ([]int, error)
	TraceLineage(id int) ([]G, error)
	Genome(id int) (G, bool)
	Parent(id int) (int, bool)
	MostRecentCommonAncestor() (int, bool)
	NodeCount() int
	GenomeCount() int
}

type LineageTracker[G comparable] interface {
	Listener[G]
	Source[G]
	AddOrganism(genome G, parent int) int
}

// Generational is satisfied by population strategies.
type Generational interface {
	SeparateGenerations() bool
}

// Attach subscribes t to every lifecycle signal of hub. The strategy is
// queried once to decide how slot tables reconcile across generations.
func Attach[O any, G comparable](hub *signal.Hub[O], strategy Generational, t Listener[G], genomeOf func(O) G) {
	t.SetSeparateGenerations(strategy.SeparateGenerations())
	hub.BeforeRepro.AddAction(t.RecordParent)
	hub.OffspringReady.AddAction(func(org O) { t.TrackOffspring(genomeOf(org)) })
	hub.InjectReady.AddAction(func(org O) { t.TrackInjected(genomeOf(org)) })
	hub.OrgPlacement.AddAction(t.TrackPlacement)
	hub.OrgRemoved.AddAction(t.TrackRemoval)
	hub.OrgsRelocated.AddAction(t.TrackRelocation)
	hub.NextDiscarded.AddAction(func(int) { t.TrackDiscard() })
	hub.Update.AddAction(t.Update)
}

// commonAncestor returns the deepest id shared by every lineage, each
// ordered from descendant to ancestor.
func commonAncestor(lineages [][]int) (int, bool) {
	if len(lineages) == 0 {
		return RootID, false
	}
	shared := RootID
	for depth := 1; ; depth++ {
		var candidate int
		for i, lin := range lineages {
			if depth > len(lin) {
				return shared, true
			}
			id := lin[len(lin)-depth]
			if i == 0 {
				candidate = id
			} else if id != candidate {
				return shared, true
			}
		}
		shared = candidate
	}
}
