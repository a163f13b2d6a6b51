package world

import (
	"fmt"
	"math"
	"sort"
)

type FitnessFunc[O any] func(O) float64

type DistanceFunc[O any] func(a, b O) float64

// scored pairs an occupied slot with its fitness.
type scored struct {
	pos     int
	fitness float64
}

func (w *World[O]) fitnessFunc(fn FitnessFunc[O]) (FitnessFunc[O], error) {
	if fn != nil {
		return fn, nil
	}
	if w.hooks.Fitness != nil {
		return w.hooks.Fitness, nil
	}
	return nil, ErrNoFitness
}

func (w *World[O]) occupiedPositions() ([]int, []O) {
	var positions []int
	var orgs []O
	for pos, org := range w.strategy.All() {
		positions = append(positions, pos)
		orgs = append(orgs, org)
	}
	return positions, orgs
}

// SelectElite births copies offspring from each of the keep fittest
// occupants. Ties are broken by slot order. It returns the slots the
// offspring landed in. Every parent of the call is recorded before any
// offspring is placed.
func (w *World[O]) SelectElite(fitness FitnessFunc[O], keep, copies int) ([]int, error) {
	fn, err := w.fitnessFunc(fitness)
	if err != nil {
		return nil, err
	}
	positions, orgs := w.occupiedPositions()
	if keep <= 0 || keep > len(positions) {
		return nil, fmt.Errorf("%w: elite count %d with population %d", ErrInvalidCount, keep, len(positions))
	}
	if copies <= 0 {
		return nil, fmt.Errorf("%w: elite copies %d", ErrInvalidCount, copies)
	}

	ranked := make([]scored, len(positions))
	for i, pos := range positions {
		ranked[i] = scored{pos: pos, fitness: fn(orgs[i])}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].fitness > ranked[j].fitness
	})

	parents := make([]int, 0, keep*copies)
	for _, s := range ranked[:keep] {
		for c := 0; c < copies; c++ {
			parents = append(parents, s.pos)
		}
	}
	return w.birthBatch(parents), nil
}

// SelectTournament runs rounds tournaments of size competitors drawn without
// replacement and births one offspring from each winner. precompute scores
// the whole population up front; it is chosen automatically when the
// tournaments would touch most of the population anyway. Every winner of the
// call is recorded as a parent before any offspring is placed.
func (w *World[O]) SelectTournament(fitness FitnessFunc[O], size, rounds int, precompute bool) ([]int, error) {
	fn, err := w.fitnessFunc(fitness)
	if err != nil {
		return nil, err
	}
	positions, orgs := w.occupiedPositions()
	if err := checkTournament(size, rounds, len(positions)); err != nil {
		return nil, err
	}

	var score func(i int) float64
	if precompute || size*rounds*2 >= len(positions) {
		cache := make([]float64, len(orgs))
		for i, org := range orgs {
			cache[i] = fn(org)
		}
		score = func(i int) float64 { return cache[i] }
	} else {
		cache := make(map[int]float64, size*rounds)
		score = func(i int) float64 {
			if f, ok := cache[i]; ok {
				return f
			}
			f := fn(orgs[i])
			cache[i] = f
			return f
		}
	}
	return w.birthBatch(w.tournaments(positions, score, size, rounds)), nil
}

// SelectFitnessSharingTournament derates each occupant's fitness by its
// niche count and runs tournament selection on the derated values. The niche
// count of i sums max(1 - (d(i,j)/radius)^alpha, 0) over the population.
func (w *World[O]) SelectFitnessSharingTournament(fitness FitnessFunc[O], distance DistanceFunc[O], radius, alpha float64, size, rounds int) ([]int, error) {
	fn, err := w.fitnessFunc(fitness)
	if err != nil {
		return nil, err
	}
	if distance == nil {
		return nil, fmt.Errorf("distance function is required")
	}
	if radius <= 0 {
		return nil, fmt.Errorf("invalid niche radius: %v", radius)
	}
	positions, orgs := w.occupiedPositions()
	if err := checkTournament(size, rounds, len(positions)); err != nil {
		return nil, err
	}

	shared := SharedFitness(orgs, fn, distance, radius, alpha)
	score := func(i int) float64 { return shared[i] }
	return w.birthBatch(w.tournaments(positions, score, size, rounds)), nil
}

// SharedFitness returns the derated fitness of every organism in orgs.
func SharedFitness[O any](orgs []O, fitness FitnessFunc[O], distance DistanceFunc[O], radius, alpha float64) []float64 {
	out := make([]float64, len(orgs))
	for i, a := range orgs {
		niche := 0.0
		for _, b := range orgs {
			d := distance(a, b)
			niche += math.Max(1-math.Pow(d/radius, alpha), 0)
		}
		f := fitness(a)
		if niche > 0 {
			f /= niche
		}
		out[i] = f
	}
	return out
}

func checkTournament(size, rounds, population int) error {
	if size <= 0 || size > population {
		return fmt.Errorf("%w: tournament size %d with population %d", ErrInvalidCount, size, population)
	}
	if rounds <= 0 {
		return fmt.Errorf("%w: tournament rounds %d", ErrInvalidCount, rounds)
	}
	return nil
}

// tournaments returns the winning slot of each round. Competitors are drawn
// with a partial shuffle of the population indices; the first competitor
// drawn wins ties.
func (w *World[O]) tournaments(positions []int, score func(int) float64, size, rounds int) []int {
	n := len(positions)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	winners := make([]int, 0, rounds)
	for r := 0; r < rounds; r++ {
		for k := 0; k < size; k++ {
			j := k + w.rng.Intn(n-k)
			idx[k], idx[j] = idx[j], idx[k]
		}
		best := idx[0]
		bestFit := score(best)
		for _, c := range idx[1:size] {
			if f := score(c); f > bestFit {
				best, bestFit = c, f
			}
		}
		winners = append(winners, positions[best])
	}
	return winners
}
