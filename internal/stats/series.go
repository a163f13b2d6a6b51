package stats

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"evoworld/internal/model"
)

// SeriesPoint aggregates one position across several per-run series.
type SeriesPoint struct {
	Index int     `json:"index" csv:"index"`
	Runs  int     `json:"runs" csv:"runs"`
	Mean  float64 `json:"mean" csv:"mean"`
	Std   float64 `json:"std" csv:"std"`
	Min   float64 `json:"min" csv:"min"`
	Max   float64 `json:"max" csv:"max"`
}

// AggregateSeries walks the series in lockstep and summarizes the values
// present at each position. Shorter series drop out once exhausted, so Runs
// shrinks toward the tail. Point i is labelled start + i*step.
func AggregateSeries(series [][]float64, start, step int) []SeriesPoint {
	if step <= 0 {
		step = 1
	}
	longest := 0
	for _, s := range series {
		longest = max(longest, len(s))
	}
	points := make([]SeriesPoint, 0, longest)
	values := make([]float64, 0, len(series))
	for i := 0; i < longest; i++ {
		values = values[:0]
		for _, s := range series {
			if i < len(s) {
				values = append(values, s[i])
			}
		}
		p := SeriesPoint{Index: start + i*step, Runs: len(values)}
		p.Min = floats.Min(values)
		p.Max = floats.Max(values)
		p.Mean, p.Std = stat.PopMeanStdDev(values, nil)
		if math.IsNaN(p.Std) {
			p.Std = 0
		}
		points = append(points, p)
	}
	return points
}

// GenerationSeries extracts one column of generation records by name: best,
// mean, min, std, size, lineage_nodes, genomes or coalescence.
func GenerationSeries(records []model.GenerationRecord, column string) ([]float64, error) {
	pick, ok := generationColumns[column]
	if !ok {
		return nil, fmt.Errorf("unknown generation column %q", column)
	}
	out := make([]float64, len(records))
	for i, rec := range records {
		out[i] = pick(rec)
	}
	return out, nil
}

var generationColumns = map[string]func(model.GenerationRecord) float64{
	"best":          func(r model.GenerationRecord) float64 { return r.BestFitness },
	"mean":          func(r model.GenerationRecord) float64 { return r.MeanFitness },
	"min":           func(r model.GenerationRecord) float64 { return r.MinFitness },
	"std":           func(r model.GenerationRecord) float64 { return r.StdFitness },
	"size":          func(r model.GenerationRecord) float64 { return float64(r.Size) },
	"lineage_nodes": func(r model.GenerationRecord) float64 { return float64(r.LineageNodes) },
	"genomes":       func(r model.GenerationRecord) float64 { return float64(r.Genomes) },
	"coalescence":   func(r model.GenerationRecord) float64 { return float64(r.Coalescence) },
}
