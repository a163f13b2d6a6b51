package stats

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"evoworld/internal/model"
	"evoworld/internal/signal"
)

// Metrics exposes world activity as Prometheus metrics on a private
// registry, so several runs in one process do not collide.
type Metrics struct {
	registry *prometheus.Registry

	births      prometheus.Counter
	injections  prometheus.Counter
	removals    prometheus.Counter
	relocations prometheus.Counter

	generation   prometheus.Gauge
	population   prometheus.Gauge
	bestFitness  prometheus.Gauge
	meanFitness  prometheus.Gauge
	lineageNodes prometheus.Gauge
	genomes      prometheus.Gauge
	coalescence  prometheus.Gauge
}

func NewMetrics(namespace string) *Metrics {
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Subsystem: "world", Name: name, Help: help})
	}
	gauge := func(subsystem, name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Subsystem: subsystem, Name: name, Help: help})
	}
	m := &Metrics{
		registry:     prometheus.NewRegistry(),
		births:       counter("births_total", "Offspring placed into the population"),
		injections:   counter("injections_total", "Organisms inserted from outside the population"),
		removals:     counter("removals_total", "Organisms deleted without replacement"),
		relocations:  counter("relocations_total", "Population compactions"),
		generation:   gauge("world", "generation", "Current generation number"),
		population:   gauge("world", "population_size", "Occupied population slots"),
		bestFitness:  gauge("world", "best_fitness", "Best fitness in the population"),
		meanFitness:  gauge("world", "mean_fitness", "Mean fitness of the population"),
		lineageNodes: gauge("lineage", "nodes", "Ancestry nodes retained by the lineage tracker"),
		genomes:      gauge("lineage", "genomes", "Distinct genomes in the genome pool"),
		coalescence:  gauge("lineage", "coalescence_id", "Ancestry id of the most recent common ancestor"),
	}
	m.registry.MustRegister(
		m.births, m.injections, m.removals, m.relocations,
		m.generation, m.population, m.bestFitness, m.meanFitness,
		m.lineageNodes, m.genomes, m.coalescence,
	)
	return m
}

// AttachMetrics counts lifecycle events fired on hub.
func AttachMetrics[O any](m *Metrics, hub *signal.Hub[O]) {
	hub.OffspringReady.AddAction(func(O) { m.births.Inc() })
	hub.InjectReady.AddAction(func(O) { m.injections.Inc() })
	hub.OrgRemoved.AddAction(func(int) { m.removals.Inc() })
	hub.OrgsRelocated.AddAction(func([]int) { m.relocations.Inc() })
	hub.Update.AddAction(func(gen int) { m.generation.Set(float64(gen)) })
}

// Observe records a generation summary.
func (m *Metrics) Observe(rec model.GenerationRecord) {
	m.population.Set(float64(rec.Size))
	m.bestFitness.Set(rec.BestFitness)
	m.meanFitness.Set(rec.MeanFitness)
	m.lineageNodes.Set(float64(rec.LineageNodes))
	m.genomes.Set(float64(rec.Genomes))
	m.coalescence.Set(float64(rec.Coalescence))
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
