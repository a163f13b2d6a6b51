package signal

import "sort"

const (
	NameRepro          = "repro"
	NameSymbiontRepro  = "symbiont-repro"
	NameBeforeRepro    = "before-repro"
	NameOffspringReady = "offspring-ready"
	NameInjectReady    = "inject-ready"
	NameOrgPlacement   = "org-placement"
	NameOrgRemoved     = "org-removed"
	NameOrgsRelocated  = "orgs-relocated"
	NameNextDiscarded  = "next-discarded"
	NameUpdate         = "update"
)

// Hub owns the lifecycle signals for one world. Organisms of type O are
// passed by value to the ready signals; positions are population slot
// indices.
type Hub[O any] struct {
	prefix string

	// Repro is triggered by an organism that satisfied its own reproduction
	// condition, with the organism's slot position.
	Repro *Signal[int]
	// SymbiontRepro is triggered by an organism whose symbiont is ready to
	// transmit horizontally.
	SymbiontRepro *Signal[int]
	// BeforeRepro carries the parent slot position of the next birth.
	BeforeRepro *Signal[int]
	// OffspringReady carries a newborn before it is placed.
	OffspringReady *Signal[O]
	// InjectReady carries an externally inserted organism before it is placed.
	InjectReady *Signal[O]
	// OrgPlacement carries the slot position the last ready organism landed in.
	OrgPlacement *Signal[int]
	// OrgRemoved carries a slot position whose occupant was deleted without
	// being replaced.
	OrgRemoved *Signal[int]
	// OrgsRelocated carries a compaction mapping: mapping[newPos] = oldPos.
	OrgsRelocated *Signal[[]int]
	// NextDiscarded carries the number of buffered births dropped before
	// they reached the current generation.
	NextDiscarded *Signal[int]
	// Update carries the generation number after the strategy advanced.
	Update *Signal[int]
}

// NewHub builds a hub whose signal names are prefixed with prefix.
func NewHub[O any](prefix string) *Hub[O] {
	name := func(n string) string {
		if prefix == "" {
			return n
		}
		return prefix + "::" + n
	}
	return &Hub[O]{
		prefix:         prefix,
		Repro:          NewSignal[int](name(NameRepro)),
		SymbiontRepro:  NewSignal[int](name(NameSymbiontRepro)),
		BeforeRepro:    NewSignal[int](name(NameBeforeRepro)),
		OffspringReady: NewSignal[O](name(NameOffspringReady)),
		InjectReady:    NewSignal[O](name(NameInjectReady)),
		OrgPlacement:   NewSignal[int](name(NameOrgPlacement)),
		OrgRemoved:     NewSignal[int](name(NameOrgRemoved)),
		OrgsRelocated:  NewSignal[[]int](name(NameOrgsRelocated)),
		NextDiscarded:  NewSignal[int](name(NameNextDiscarded)),
		Update:         NewSignal[int](name(NameUpdate)),
	}
}

func (h *Hub[O]) Prefix() string {
	return h.prefix
}

// Subscribers reports the number of actions per signal name, sorted by name.
func (h *Hub[O]) Subscribers() []NamedCount {
	counts := []NamedCount{
		{Name: h.Repro.Name(), Count: h.Repro.NumActions()},
		{Name: h.SymbiontRepro.Name(), Count: h.SymbiontRepro.NumActions()},
		{Name: h.BeforeRepro.Name(), Count: h.BeforeRepro.NumActions()},
		{Name: h.OffspringReady.Name(), Count: h.OffspringReady.NumActions()},
		{Name: h.InjectReady.Name(), Count: h.InjectReady.NumActions()},
		{Name: h.OrgPlacement.Name(), Count: h.OrgPlacement.NumActions()},
		{Name: h.OrgRemoved.Name(), Count: h.OrgRemoved.NumActions()},
		{Name: h.OrgsRelocated.Name(), Count: h.OrgsRelocated.NumActions()},
		{Name: h.NextDiscarded.Name(), Count: h.NextDiscarded.NumActions()},
		{Name: h.Update.Name(), Count: h.Update.NumActions()},
	}
	sort.Slice(counts, func(i, j int) bool { return counts[i].Name < counts[j].Name })
	return counts
}

type NamedCount struct {
	Name  string
	Count int
}
