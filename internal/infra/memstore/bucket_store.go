package memstore

import (
	"tttranscribe/internal/domain/model"
	"tttranscribe/internal/domain/ports/repository"
)

var _ repository.BucketStore = (*BucketStore)(nil)

type BucketStore struct {
	store *Store[model.Bucket]
}

func NewBucketStore() *BucketStore {
	return &BucketStore{store: NewStore[model.Bucket]()}
}

func (b *BucketStore) Get(clientID string) (model.Bucket, bool) { return b.store.Get(clientID) }

func (b *BucketStore) Put(clientID string, bucket model.Bucket) { b.store.Put(clientID, bucket) }
