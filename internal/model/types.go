package model

import (
	"log/slog"
	"time"
)

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version" csv:"-"`
	CodecVersion  int `json:"codec_version" csv:"-"`
}

// Run describes one experiment and how it ended.
type Run struct {
	VersionedRecord
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Strategy       string    `json:"strategy"`
	Tracker        string    `json:"tracker"`
	Selection      string    `json:"selection"`
	Seed           int64     `json:"seed"`
	Generations    int       `json:"generations"`
	PopulationSize int       `json:"population_size"`
	GenomeLength   int       `json:"genome_length"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
	BestFitness    float64   `json:"best_fitness"`
	Coalescence    int       `json:"coalescence"`
	Extinct        bool      `json:"extinct,omitempty"`
}

// GenerationRecord summarizes the population after one generation.
type GenerationRecord struct {
	Generation   int     `json:"generation" csv:"generation"`
	Size         int     `json:"size" csv:"size"`
	BestFitness  float64 `json:"best_fitness" csv:"best_fitness"`
	MeanFitness  float64 `json:"mean_fitness" csv:"mean_fitness"`
	StdFitness   float64 `json:"std_fitness" csv:"std_fitness"`
	MinFitness   float64 `json:"min_fitness" csv:"min_fitness"`
	Births       int     `json:"births" csv:"births"`
	Injections   int     `json:"injections" csv:"injections"`
	LineageNodes int     `json:"lineage_nodes" csv:"lineage_nodes"`
	Genomes      int     `json:"genomes" csv:"genomes"`
	Coalescence  int     `json:"coalescence" csv:"coalescence"`
}

// LogValue implements slog.LogValuer for structured logging.
func (r GenerationRecord) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("generation", r.Generation),
		slog.Int("size", r.Size),
		slog.Float64("best", r.BestFitness),
		slog.Float64("mean", r.MeanFitness),
		slog.Float64("std", r.StdFitness),
		slog.Float64("min", r.MinFitness),
		slog.Int("births", r.Births),
		slog.Int("lineage_nodes", r.LineageNodes),
		slog.Int("genomes", r.Genomes),
		slog.Int("coalescence", r.Coalescence),
	)
}

// LineageRecord is one ancestor on a traced lineage, descendant first.
type LineageRecord struct {
	VersionedRecord
	ID       int    `json:"id" csv:"id"`
	ParentID int    `json:"parent_id" csv:"parent_id"`
	Depth    int    `json:"depth" csv:"depth"`
	Genome   string `json:"genome" csv:"genome"`
}

// OEERecord holds open-ended evolution metrics for one reporting tick. A
// value of -1 means there was not yet enough history to compute it.
type OEERecord struct {
	Generation int     `json:"generation" csv:"generation"`
	Change     int     `json:"change" csv:"change"`
	Novelty    int     `json:"novelty" csv:"novelty"`
	Ecology    float64 `json:"ecology" csv:"ecology"`
	Complexity int     `json:"complexity" csv:"complexity"`
}

func (r OEERecord) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("generation", r.Generation),
		slog.Int("change", r.Change),
		slog.Int("novelty", r.Novelty),
		slog.Float64("ecology", r.Ecology),
		slog.Int("complexity", r.Complexity),
	)
}
