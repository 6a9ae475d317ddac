package memstore

import (
	"context"
	"sort"

	"tttranscribe/internal/domain"
	"tttranscribe/internal/domain/model"
	"tttranscribe/internal/domain/ports/repository"
)

var _ repository.DeadLetterRepository = (*DeadLetterRepo)(nil)

type DeadLetterRepo struct {
	store *Store[*model.DeliveryRecord]
}

func NewDeadLetterRepo() *DeadLetterRepo {
	return &DeadLetterRepo{store: NewStore[*model.DeliveryRecord]()}
}

func (r *DeadLetterRepo) Get(_ context.Context, jobID string) (*model.DeliveryRecord, error) {
	rec, ok := r.store.Get(jobID)
	if !ok {
		return nil, domain.ErrDeadLetterNotFound
	}
	return rec.Clone(), nil
}

func (r *DeadLetterRepo) Put(_ context.Context, rec *model.DeliveryRecord) error {
	if rec == nil || rec.JobID == "" {
		return domain.ErrInvalidInput
	}
	r.store.Put(rec.JobID, rec.Clone())
	return nil
}

func (r *DeadLetterRepo) Delete(_ context.Context, jobID string) error {
	if !r.store.Delete(jobID) {
		return domain.ErrDeadLetterNotFound
	}
	return nil
}

// List returns records oldest first.
func (r *DeadLetterRepo) List(_ context.Context) ([]*model.DeliveryRecord, error) {
	out := make([]*model.DeliveryRecord, 0, r.store.Len())
	r.store.Range(func(_ string, rec *model.DeliveryRecord) bool {
		out = append(out, rec.Clone())
		return true
	})
	sort.Slice(out, func(a, b int) bool {
		if out[a].CreatedAt.Equal(out[b].CreatedAt) {
			return out[a].JobID < out[b].JobID
		}
		return out[a].CreatedAt.Before(out[b].CreatedAt)
	})
	return out, nil
}
