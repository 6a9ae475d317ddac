package repository

import (
	"context"

	"tttranscribe/internal/domain/model"
)

// DeadLetterRepository holds failed webhook deliveries keyed by job id.
// Get returns domain.ErrDeadLetterNotFound when absent.
type DeadLetterRepository interface {
	Get(ctx context.Context, jobID string) (*model.DeliveryRecord, error)
	Put(ctx context.Context, rec *model.DeliveryRecord) error
	Delete(ctx context.Context, jobID string) error
	List(ctx context.Context) ([]*model.DeliveryRecord, error)
}
