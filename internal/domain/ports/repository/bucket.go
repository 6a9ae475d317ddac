package repository

import "tttranscribe/internal/domain/model"

// BucketStore holds token buckets per client identity. Callers serialize
// read-modify-write cycles themselves.
type BucketStore interface {
	Get(clientID string) (model.Bucket, bool)
	Put(clientID string, b model.Bucket)
}
