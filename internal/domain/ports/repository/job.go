package repository

import (
	"context"

	"tttranscribe/internal/domain/model"
)

// JobRepository stores job snapshots. Get returns a copy; callers mutate it and Put it back.
type JobRepository interface {
	Get(ctx context.Context, id string) (*model.Job, error)
	Put(ctx context.Context, job *model.Job) error
	Delete(ctx context.Context, id string) error
	// Recent returns up to limit jobs, newest first.
	Recent(ctx context.Context, limit int) ([]*model.Job, error)
	// ListByPhase returns up to limit jobs in phase, newest first.
	ListByPhase(ctx context.Context, phase model.JobPhase, limit int) ([]*model.Job, error)
	CountByPhase(ctx context.Context) (map[model.JobPhase]int, error)
}
