package stats

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"evoworld/internal/lineage"
	"evoworld/internal/model"
)

// OEEConfig controls how often metrics are reported and how many generations
// a lineage must survive to count as persistent.
type OEEConfig struct {
	Resolution  int `yaml:"resolution"`
	Persistence int `yaml:"persistence"`
}

func (c OEEConfig) Validate() error {
	if c.Resolution <= 0 {
		return fmt.Errorf("oee resolution must be positive: %d", c.Resolution)
	}
	if c.Persistence <= 0 {
		return fmt.Errorf("oee persistence must be positive: %d", c.Persistence)
	}
	if c.Persistence%c.Resolution != 0 {
		return fmt.Errorf("oee persistence %d must be a multiple of resolution %d", c.Persistence, c.Resolution)
	}
	return nil
}

// persistSet is the skeletons of persistent lineage ancestors at one tick.
type persistSet struct {
	valid     bool
	skeletons []string
}

// OEE computes change, novelty, ecology and complexity of persistent
// lineages. A persistent lineage ancestor is an organism present
// Persistence generations ago that still has descendants now. Earlier
// persistent sets are kept as skeletons, so only ids from the current
// population are ever traced.
type OEE[G comparable] struct {
	cfg        OEEConfig
	src        lineage.Source[G]
	skeleton   func(G) string
	complexity func(string) int

	steps     int
	snapshots [][]int
	history   []persistSet
	seen      map[string]struct{}
	records   []model.OEERecord
}

func NewOEE[G comparable](src lineage.Source[G], cfg OEEConfig, skeleton func(G) string, complexity func(string) int) (*OEE[G], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if src == nil || skeleton == nil || complexity == nil {
		return nil, fmt.Errorf("oee requires a lineage source, skeleton and complexity function")
	}
	return &OEE[G]{
		cfg:        cfg,
		src:        src,
		skeleton:   skeleton,
		complexity: complexity,
		steps:      cfg.Persistence / cfg.Resolution,
		seen:       map[string]struct{}{},
	}, nil
}

// Update records a tick on every generation that is a multiple of the
// resolution and reports whether it did.
func (o *OEE[G]) Update(generation int) (model.OEERecord, bool) {
	if generation%o.cfg.Resolution != 0 {
		return model.OEERecord{}, false
	}

	o.snapshots = pushFront(o.snapshots, occupied(o.src.Snapshot()), o.steps+1)
	current := persistSet{}
	if len(o.snapshots) > o.steps {
		current = persistSet{valid: true, skeletons: o.persistent(o.snapshots[0], o.snapshots[o.steps])}
	}
	o.history = pushFront(o.history, current, o.steps+1)

	rec := model.OEERecord{Generation: generation, Change: -1, Novelty: -1, Ecology: -1, Complexity: -1}
	if current.valid {
		rec.Novelty = o.novelty(current.skeletons)
		rec.Ecology = Entropy(current.skeletons)
		rec.Complexity = o.maxComplexity(current.skeletons)
		if len(o.history) > o.steps && o.history[o.steps].valid {
			rec.Change = change(current.skeletons, o.history[o.steps].skeletons)
		}
	}
	o.records = append(o.records, rec)
	return rec, true
}

func (o *OEE[G]) Records() []model.OEERecord {
	return append([]model.OEERecord(nil), o.records...)
}

// persistent walks each current id toward the root and keeps the skeleton of
// the first ancestor that was present in the earlier snapshot.
func (o *OEE[G]) persistent(current, earlier []int) []string {
	present := make(map[int]struct{}, len(earlier))
	for _, id := range earlier {
		present[id] = struct{}{}
	}
	var out []string
	for _, id := range current {
		for id != lineage.RootID {
			if _, ok := present[id]; ok {
				genome, _ := o.src.Genome(id)
				out = append(out, o.skeleton(genome))
				break
			}
			parent, ok := o.src.Parent(id)
			if !ok {
				break
			}
			id = parent
		}
	}
	return out
}

func (o *OEE[G]) novelty(skeletons []string) int {
	n := 0
	for _, s := range skeletons {
		if _, ok := o.seen[s]; ok {
			continue
		}
		o.seen[s] = struct{}{}
		n++
	}
	return n
}

func (o *OEE[G]) maxComplexity(skeletons []string) int {
	best := 0
	for _, s := range skeletons {
		best = max(best, o.complexity(s))
	}
	return best
}

// change counts distinct skeletons in current that are absent from previous.
func change(current, previous []string) int {
	prev := make(map[string]struct{}, len(previous))
	for _, s := range previous {
		prev[s] = struct{}{}
	}
	diff := map[string]struct{}{}
	for _, s := range current {
		if _, ok := prev[s]; !ok {
			diff[s] = struct{}{}
		}
	}
	return len(diff)
}

// Entropy is the Shannon entropy in bits of the value frequencies in xs.
func Entropy[T comparable](xs []T) float64 {
	if len(xs) == 0 {
		return 0
	}
	counts := map[T]int{}
	var order []T
	for _, x := range xs {
		if counts[x] == 0 {
			order = append(order, x)
		}
		counts[x]++
	}
	p := make([]float64, len(order))
	for i, x := range order {
		p[i] = float64(counts[x]) / float64(len(xs))
	}
	return stat.Entropy(p) / math.Ln2
}

func occupied(snapshot []int) []int {
	out := make([]int, 0, len(snapshot))
	for _, id := range snapshot {
		if id != lineage.RootID {
			out = append(out, id)
		}
	}
	return out
}

func pushFront[T any](q []T, v T, limit int) []T {
	q = append([]T{v}, q...)
	if len(q) > limit {
		q = q[:limit]
	}
	return q
}
