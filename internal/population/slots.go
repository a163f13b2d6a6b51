package population

import (
	"fmt"
	"iter"
	"math/rand"
)

// slots is the shared slot storage behind every strategy.
type slots[O any] struct {
	rng      *rand.Rand
	observer Observer
	orgs     []O
	live     []bool
	occupied int
}

func (s *slots[O]) SetRandom(rng *rand.Rand) {
	s.rng = rng
}

func (s *slots[O]) SetObserver(obs Observer) {
	s.observer = obs
}

func (s *slots[O]) Size() int {
	return len(s.orgs)
}

func (s *slots[O]) Occupied() int {
	return s.occupied
}

func (s *slots[O]) At(pos int) (O, bool) {
	if pos < 0 || pos >= len(s.orgs) || !s.live[pos] {
		var zero O
		return zero, false
	}
	return s.orgs[pos], true
}

func (s *slots[O]) All() iter.Seq2[int, O] {
	return func(yield func(int, O) bool) {
		for pos := 0; pos < len(s.orgs); pos++ {
			if !s.live[pos] {
				continue
			}
			if !yield(pos, s.orgs[pos]) {
				return
			}
		}
	}
}

// Clear deletes every occupant and reports each deletion.
func (s *slots[O]) Clear() {
	for pos := range s.orgs {
		if s.live[pos] {
			s.notifyRemoved(pos)
		}
	}
	s.orgs = nil
	s.live = nil
	s.occupied = 0
}

func (s *slots[O]) random() *rand.Rand {
	if s.rng == nil {
		panic("population: no random source configured")
	}
	return s.rng
}

func (s *slots[O]) resize(n int) {
	s.orgs = make([]O, n)
	s.live = make([]bool, n)
	s.occupied = 0
}

func (s *slots[O]) push(org O) int {
	s.orgs = append(s.orgs, org)
	s.live = append(s.live, true)
	s.occupied++
	return len(s.orgs) - 1
}

func (s *slots[O]) put(pos int, org O) {
	if pos < 0 || pos >= len(s.orgs) {
		panic(fmt.Sprintf("population: slot %d out of range [0,%d)", pos, len(s.orgs)))
	}
	if !s.live[pos] {
		s.occupied++
	}
	s.orgs[pos] = org
	s.live[pos] = true
}

func (s *slots[O]) emptyPositions() []int {
	empty := make([]int, 0, len(s.orgs)-s.occupied)
	for pos, ok := range s.live {
		if !ok {
			empty = append(empty, pos)
		}
	}
	return empty
}

func (s *slots[O]) notifyRemoved(pos int) {
	if s.observer.Removed != nil {
		s.observer.Removed(pos)
	}
}

func (s *slots[O]) notifyRelocated(mapping []int) {
	if s.observer.Relocated != nil {
		s.observer.Relocated(mapping)
	}
}

func (s *slots[O]) notifyDiscarded(count int) {
	if count > 0 && s.observer.Discarded != nil {
		s.observer.Discarded(count)
	}
}
