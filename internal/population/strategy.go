// Package population implements the placement and replacement policies that
// own a world's organism slots.
package population

import (
	"iter"
	"math/rand"
)

// Observer receives slot bookkeeping that is not a placement: deletions that
// leave a slot empty, compactions that move survivors to new positions, and
// buffered births dropped before they were installed.
type Observer struct {
	Removed   func(pos int)
	Relocated func(mapping []int)
	Discarded func(count int)
}

// Strategy owns the organism slots of a population and decides where new
// organisms land. Replacing an occupied slot discards the previous occupant.
type Strategy[O any] interface {
	Name() string
	SetRandom(rng *rand.Rand)
	SetObserver(obs Observer)

	// AddExternal inserts an organism from outside the population.
	AddExternal(org O) int
	// AddBirth inserts an organism born from the occupant of parentPos.
	AddBirth(org O, parentPos int) int
	// Advance is the generation hook.
	Advance()

	// Size is the number of addressable slots, occupied or not.
	Size() int
	// Capacity is the largest number of slots the strategy will hold, or -1
	// when unbounded.
	Capacity() int
	Occupied() int
	At(pos int) (O, bool)
	All() iter.Seq2[int, O]
	// SeparateGenerations reports whether births are buffered until Advance.
	SeparateGenerations() bool
	Clear()
}

// Unbounded grows on external insertion and replaces a uniformly random slot
// on every birth.
type Unbounded[O any] struct {
	slots[O]
}

func NewUnbounded[O any]() *Unbounded[O] {
	return &Unbounded[O]{}
}

func (*Unbounded[O]) Name() string {
	return KindUnbounded
}

func (p *Unbounded[O]) AddExternal(org O) int {
	return p.push(org)
}

func (p *Unbounded[O]) AddBirth(org O, _ int) int {
	if len(p.orgs) == 0 {
		panic("population: birth into empty population")
	}
	pos := p.random().Intn(len(p.orgs))
	p.put(pos, org)
	return pos
}

func (*Unbounded[O]) Advance() {}

func (*Unbounded[O]) Capacity() int {
	return -1
}

func (*Unbounded[O]) SeparateGenerations() bool {
	return false
}
