package stats

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"evoworld/internal/model"
)

// LineageView is the part of a lineage tracker a summary reads.
type LineageView interface {
	NodeCount() int
	GenomeCount() int
	MostRecentCommonAncestor() (int, bool)
}

// Counters are the running totals a world keeps.
type Counters struct {
	Births     int
	Injections int
}

// Summarize builds the generation record for the fitness values of the
// current population. An empty population yields zero fitness statistics.
func Summarize(generation int, fitness []float64, counters Counters, view LineageView) model.GenerationRecord {
	rec := model.GenerationRecord{
		Generation: generation,
		Size:       len(fitness),
		Births:     counters.Births,
		Injections: counters.Injections,
	}
	if len(fitness) > 0 {
		rec.BestFitness = floats.Max(fitness)
		rec.MinFitness = floats.Min(fitness)
		rec.MeanFitness, rec.StdFitness = stat.PopMeanStdDev(fitness, nil)
		if math.IsNaN(rec.StdFitness) {
			rec.StdFitness = 0
		}
	}
	if view != nil {
		rec.LineageNodes = view.NodeCount()
		rec.Genomes = view.GenomeCount()
		if id, ok := view.MostRecentCommonAncestor(); ok {
			rec.Coalescence = id
		}
	}
	return rec
}
