package artifact

import (
	"context"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/cognicore/attrmatch/pkg/attrmatch/internalerr"
)

var (
	bucketArtifacts = []byte("artifacts")
	keyLatest       = []byte("latest")
)

// BoltStore keeps bundles in a bbolt file.
type BoltStore struct {
	db *bbolt.DB
}

// OpenBolt opens (or creates) the bundle file at path.
func OpenBolt(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open artifact file: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketArtifacts)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &BoltStore{db: db}, nil
}

func bundleKey(runID string) []byte {
	return []byte("bundle/" + runID)
}

// Save implements Store.
func (s *BoltStore) Save(ctx context.Context, b *Bundle) error {
	data, err := b.Encode()
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketArtifacts)
		if err := bucket.Put(bundleKey(b.RunID), data); err != nil {
			return err
		}
		return bucket.Put(keyLatest, []byte(b.RunID))
	})
}

// Latest implements Store.
func (s *BoltStore) Latest(ctx context.Context) (*Bundle, error) {
	var runID string
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketArtifacts).Get(keyLatest)
		if v == nil {
			return fmt.Errorf("latest bundle: %w", internalerr.ErrNotFound)
		}
		runID = string(v)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, runID)
}

// Get implements Store.
func (s *BoltStore) Get(ctx context.Context, runID string) (*Bundle, error) {
	var data []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketArtifacts).Get(bundleKey(runID))
		if v == nil {
			return fmt.Errorf("bundle %s: %w", runID, internalerr.ErrNotFound)
		}
		// Values are only valid inside the transaction.
		data = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return Decode(data)
}

// Close implements Store.
func (s *BoltStore) Close() error {
	return s.db.Close()
}
