// Package world drives a population of organisms: insertion, reproduction,
// mutation sweeps, selection and generation turnover. Every change to the
// population is announced on the world's signal hub so lineage trackers and
// statistics collectors can follow along.
package world

import (
	"errors"
	"fmt"
	"iter"
	"math/rand"

	"evoworld/internal/population"
	"evoworld/internal/signal"
)

var (
	ErrNoStrategy   = errors.New("population strategy is required")
	ErrEmptySlot    = errors.New("slot is not occupied")
	ErrNoFitness    = errors.New("fitness function is required")
	ErrInvalidCount = errors.New("invalid count")
)

type Config[O any] struct {
	// Name prefixes the hub's signal names.
	Name string
	Seed int64
	// Rand overrides the source built from Seed.
	Rand *rand.Rand
	// Hooks overlay DefaultHooks.
	Hooks Hooks[O]
	// MutateOnBirth mutates each offspring before it is announced, so
	// trackers record the genome that is actually placed.
	MutateOnBirth bool
}

type World[O any] struct {
	name          string
	rng           *rand.Rand
	strategy      population.Strategy[O]
	hub           *signal.Hub[O]
	hooks         Hooks[O]
	mutateOnBirth bool

	generation    int
	births        int
	injections    int
	transmissions int
}

// New builds a world around strategy. The strategy receives the world's
// random source and reports removals, relocations and discards through the hub.
func New[O any](strategy population.Strategy[O], cfg Config[O]) (*World[O], error) {
	if strategy == nil {
		return nil, ErrNoStrategy
	}
	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(cfg.Seed))
	}
	w := &World[O]{
		name:          cfg.Name,
		rng:           rng,
		strategy:      strategy,
		hub:           signal.NewHub[O](cfg.Name),
		hooks:         DefaultHooks[O]().merge(cfg.Hooks),
		mutateOnBirth: cfg.MutateOnBirth,
	}
	strategy.SetRandom(rng)
	strategy.SetObserver(population.Observer{
		Removed:   w.hub.OrgRemoved.Trigger,
		Relocated: w.hub.OrgsRelocated.Trigger,
		Discarded: w.hub.NextDiscarded.Trigger,
	})
	w.hub.Repro.AddAction(func(pos int) {
		if _, ok := w.strategy.At(pos); ok {
			w.reproduce(pos)
		}
	})
	w.hub.SymbiontRepro.AddAction(w.transmit)
	return w, nil
}

func (w *World[O]) Name() string                     { return w.name }
func (w *World[O]) Random() *rand.Rand               { return w.rng }
func (w *World[O]) Strategy() population.Strategy[O] { return w.strategy }
func (w *World[O]) Hub() *signal.Hub[O]              { return w.hub }
func (w *World[O]) Generation() int                  { return w.generation }

// Size is the number of occupied slots.
func (w *World[O]) Size() int {
	return w.strategy.Occupied()
}

// Births counts offspring placed since the world was built.
func (w *World[O]) Births() int        { return w.births }
func (w *World[O]) Injections() int    { return w.injections }
func (w *World[O]) Transmissions() int { return w.transmissions }

func (w *World[O]) At(pos int) (O, bool) {
	return w.strategy.At(pos)
}

func (w *World[O]) All() iter.Seq2[int, O] {
	return w.strategy.All()
}

// InsertExternal places org with no parent and returns its slot.
func (w *World[O]) InsertExternal(org O) int {
	w.hub.InjectReady.Trigger(org)
	pos := w.strategy.AddExternal(org)
	w.hub.OrgPlacement.Trigger(pos)
	w.injections++
	w.hooks.Setup(org, w.hub, pos)
	return pos
}

// Insert places org followed by copies-1 clones of it.
func (w *World[O]) Insert(org O, copies int) ([]int, error) {
	if copies <= 0 {
		return nil, fmt.Errorf("%w: copies %d", ErrInvalidCount, copies)
	}
	positions := make([]int, 0, copies)
	positions = append(positions, w.InsertExternal(org))
	for i := 1; i < copies; i++ {
		positions = append(positions, w.InsertExternal(w.hooks.Clone(org)))
	}
	return positions, nil
}

// InsertOffspring places org as a birth from the occupant of parentPos.
func (w *World[O]) InsertOffspring(org O, parentPos int) (int, error) {
	if _, ok := w.strategy.At(parentPos); !ok {
		return -1, fmt.Errorf("%w: %d", ErrEmptySlot, parentPos)
	}
	org = w.announceOffspring(org, parentPos)
	return w.placeOffspring(org, parentPos), nil
}

// TriggerReproduction clones the occupant of pos and inserts the copy as its
// offspring.
func (w *World[O]) TriggerReproduction(pos int) (int, error) {
	if _, ok := w.strategy.At(pos); !ok {
		return -1, fmt.Errorf("%w: %d", ErrEmptySlot, pos)
	}
	return w.reproduce(pos), nil
}

func (w *World[O]) reproduce(pos int) int {
	parent, _ := w.strategy.At(pos)
	child := w.announceOffspring(w.hooks.Clone(parent), pos)
	return w.placeOffspring(child, pos)
}

// announceOffspring is the first half of a birth: the parent is recorded and
// the offspring exists, but nothing in the population has changed yet.
func (w *World[O]) announceOffspring(org O, parentPos int) O {
	w.hub.BeforeRepro.Trigger(parentPos)
	if w.mutateOnBirth {
		w.hooks.Mutate(org, w.rng)
	}
	w.hub.OffspringReady.Trigger(org)
	return org
}

func (w *World[O]) placeOffspring(org O, parentPos int) int {
	pos := w.strategy.AddBirth(org, parentPos)
	w.hub.OrgPlacement.Trigger(pos)
	w.births++
	w.hooks.Setup(org, w.hub, pos)
	return pos
}

// birthBatch clones each parent and announces every offspring before placing
// any, so no placement can evict a parent that is still waiting to be copied.
func (w *World[O]) birthBatch(parents []int) []int {
	children := make([]O, len(parents))
	for i, pos := range parents {
		parent, _ := w.strategy.At(pos)
		children[i] = w.announceOffspring(w.hooks.Clone(parent), pos)
	}
	placed := make([]int, len(parents))
	for i, pos := range parents {
		placed[i] = w.placeOffspring(children[i], pos)
	}
	return placed
}

func (w *World[O]) transmit(pos int) {
	host, ok := w.strategy.At(pos)
	if !ok || w.hooks.Transmit == nil || w.strategy.Size() == 0 {
		return
	}
	target, ok := w.strategy.At(w.rng.Intn(w.strategy.Size()))
	if !ok {
		return
	}
	if w.hooks.Transmit(host, target, w.rng) {
		w.transmissions++
	}
}

// MutatePopulation mutates every occupant at or after firstMut and returns
// how many changed.
func (w *World[O]) MutatePopulation(firstMut int) (int, error) {
	if firstMut < 0 {
		return 0, fmt.Errorf("%w: first mutation slot %d", ErrInvalidCount, firstMut)
	}
	changed := 0
	for pos, org := range w.strategy.All() {
		if pos < firstMut {
			continue
		}
		if w.hooks.Mutate(org, w.rng) {
			changed++
		}
	}
	return changed, nil
}

// Execute calls fn for every slot occupied when Execute starts. Slots
// vacated along the way are skipped.
func (w *World[O]) Execute(fn func(pos int, org O)) {
	var positions []int
	for pos := range w.strategy.All() {
		positions = append(positions, pos)
	}
	for _, pos := range positions {
		if org, ok := w.strategy.At(pos); ok {
			fn(pos, org)
		}
	}
}

// AdvanceGeneration runs the strategy's generation hook and announces the
// new generation number.
func (w *World[O]) AdvanceGeneration() {
	w.strategy.Advance()
	w.generation++
	w.hub.Update.Trigger(w.generation)
}

// Clear empties the population. Each deletion is announced as a removal;
// births buffered for the next generation are announced as one discard.
func (w *World[O]) Clear() {
	w.strategy.Clear()
}
