package docstore

import (
	"context"
	"fmt"
	"slices"
	"time"

	log "github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"
)

// BoltStore keeps each collection in its own bbolt bucket
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens or creates the database file and the given buckets
func NewBoltStore(path string, collections ...string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening bbolt db at %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, c := range collections {
			if _, err := tx.CreateBucketIfNotExists([]byte(c)); err != nil {
				return fmt.Errorf("creating %s bucket: %w", c, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	log.WithField("path", path).Info("Opened bbolt document store")
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Get(ctx context.Context, collection, id string) ([]byte, error) {
	var out []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		out, err = (&boltTx{tx: tx}).Get(ctx, collection, id)
		return err
	})
	return out, err
}

func (s *BoltStore) List(ctx context.Context, collection string) ([]Document, error) {
	var out []Document
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		out, err = (&boltTx{tx: tx}).List(ctx, collection)
		return err
	})
	return out, err
}

func (s *BoltStore) Put(ctx context.Context, collection, id string, data []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return (&boltTx{tx: tx}).Put(ctx, collection, id, data)
	})
}

func (s *BoltStore) Delete(ctx context.Context, collection, id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return (&boltTx{tx: tx}).Delete(ctx, collection, id)
	})
}

func (s *BoltStore) Update(_ context.Context, fn func(tx Tx) error) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return fn(&boltTx{tx: tx})
	})
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

type boltTx struct {
	tx *bolt.Tx
}

func (t *boltTx) Get(_ context.Context, collection, id string) ([]byte, error) {
	b := t.tx.Bucket([]byte(collection))
	if b == nil {
		return nil, ErrNotFound
	}
	data := b.Get([]byte(id))
	if data == nil {
		return nil, ErrNotFound
	}
	// bbolt memory is only valid for the life of the transaction
	return slices.Clone(data), nil
}

func (t *boltTx) List(_ context.Context, collection string) ([]Document, error) {
	b := t.tx.Bucket([]byte(collection))
	if b == nil {
		return []Document{}, nil
	}
	out := []Document{}
	err := b.ForEach(func(k, v []byte) error {
		out = append(out, Document{Collection: collection, ID: string(k), Data: slices.Clone(v)})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", collection, err)
	}
	return out, nil
}

func (t *boltTx) Put(_ context.Context, collection, id string, data []byte) error {
	b, err := t.tx.CreateBucketIfNotExists([]byte(collection))
	if err != nil {
		return fmt.Errorf("creating %s bucket: %w", collection, err)
	}
	if err := b.Put([]byte(id), data); err != nil {
		return fmt.Errorf("writing %s/%s: %w", collection, id, err)
	}
	return nil
}

func (t *boltTx) Delete(_ context.Context, collection, id string) error {
	b := t.tx.Bucket([]byte(collection))
	if b == nil {
		return nil
	}
	if err := b.Delete([]byte(id)); err != nil {
		return fmt.Errorf("deleting %s/%s: %w", collection, id, err)
	}
	return nil
}
