package services

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/MegaGrindStone/askstream/internal/models"
	bolt "go.etcd.io/bbolt"
)

// BoltJournal records finished exchanges in a BoltDB file, one record per exchange, keyed by insertion
// order.
type BoltJournal struct {
	db *bolt.DB
}

var exchangesBucket = []byte("exchanges")

// NewBoltJournal opens, or creates with 0600 permissions, the journal file at path.
func NewBoltJournal(path string) (BoltJournal, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return BoltJournal{}, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(exchangesBucket)
		return err
	})
	if err != nil {
		db.Close()
		return BoltJournal{}, fmt.Errorf("failed to create bucket: %w", err)
	}

	return BoltJournal{db: db}, nil
}

// Record stores ex. An exchange is expected to be recorded once, when it reaches a terminal state.
func (b BoltJournal) Record(_ context.Context, ex models.Exchange) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(exchangesBucket)

		seq, err := bucket.NextSequence()
		if err != nil {
			return fmt.Errorf("failed to get next sequence: %w", err)
		}

		v, err := json.Marshal(ex)
		if err != nil {
			return fmt.Errorf("failed to marshal exchange: %w", err)
		}

		// Zero padding keeps the byte order of the keys equal to the insertion order.
		return bucket.Put([]byte(fmt.Sprintf("%020d-%s", seq, ex.ID)), v)
	})
}

// Exchanges returns every recorded exchange, most recent first.
func (b BoltJournal) Exchanges(context.Context) ([]models.Exchange, error) {
	var exchanges []models.Exchange
	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(exchangesBucket).ForEach(func(_, v []byte) error {
			var ex models.Exchange
			if err := json.Unmarshal(v, &ex); err != nil {
				return fmt.Errorf("failed to unmarshal exchange: %w", err)
			}
			exchanges = append(exchanges, ex)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	slices.Reverse(exchanges)
	return exchanges, nil
}

// Close closes the journal file.
func (b BoltJournal) Close() error {
	return b.db.Close()
}
