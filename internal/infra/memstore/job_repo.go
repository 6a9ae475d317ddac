package memstore

import (
	"context"
	"sort"

	"tttranscribe/internal/domain"
	"tttranscribe/internal/domain/model"
	"tttranscribe/internal/domain/ports/repository"
)

var _ repository.JobRepository = (*JobRepo)(nil)

type JobRepo struct {
	store *Store[*model.Job]
}

func NewJobRepo() *JobRepo {
	return &JobRepo{store: NewStore[*model.Job]()}
}

func (r *JobRepo) Get(_ context.Context, id string) (*model.Job, error) {
	j, ok := r.store.Get(id)
	if !ok {
		return nil, domain.ErrNotFound
	}
	return j.Clone(), nil
}

func (r *JobRepo) Put(_ context.Context, job *model.Job) error {
	if job == nil || job.ID == "" {
		return domain.ErrInvalidInput
	}
	r.store.Put(job.ID, job.Clone())
	return nil
}

func (r *JobRepo) Delete(_ context.Context, id string) error {
	if !r.store.Delete(id) {
		return domain.ErrNotFound
	}
	return nil
}

func (r *JobRepo) Recent(_ context.Context, limit int) ([]*model.Job, error) {
	return r.collect(limit, func(*model.Job) bool { return true }), nil
}

func (r *JobRepo) ListByPhase(_ context.Context, phase model.JobPhase, limit int) ([]*model.Job, error) {
	return r.collect(limit, func(j *model.Job) bool { return j.Phase == phase }), nil
}

func (r *JobRepo) collect(limit int, keep func(*model.Job) bool) []*model.Job {
	out := make([]*model.Job, 0)
	r.store.Range(func(_ string, j *model.Job) bool {
		if keep(j) {
			out = append(out, j.Clone())
		}
		return true
	})
	sort.Slice(out, func(a, b int) bool {
		if out[a].CreatedAt.Equal(out[b].CreatedAt) {
			return out[a].ID > out[b].ID
		}
		return out[a].CreatedAt.After(out[b].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (r *JobRepo) CountByPhase(_ context.Context) (map[model.JobPhase]int, error) {
	counts := make(map[model.JobPhase]int)
	r.store.Range(func(_ string, j *model.Job) bool {
		counts[j.Phase]++
		return true
	})
	return counts, nil
}
