package storage

import (
	"context"

	"evoworld/internal/model"
)

// Store persists run artifacts: the run description, per-generation
// summaries, the traced lineage of the final coalescence point, and OEE rows.
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, run model.Run) error
	GetRun(ctx context.Context, id string) (model.Run, bool, error)
	ListRuns(ctx context.Context) ([]model.Run, error)
	SaveGenerations(ctx context.Context, runID string, records []model.GenerationRecord) error
	GetGenerations(ctx context.Context, runID string) ([]model.GenerationRecord, bool, error)
	SaveLineage(ctx context.Context, runID string, lineage []model.LineageRecord) error
	GetLineage(ctx context.Context, runID string) ([]model.LineageRecord, bool, error)
	SaveOEE(ctx context.Context, runID string, records []model.OEERecord) error
	GetOEE(ctx context.Context, runID string) ([]model.OEERecord, bool, error)
}
