package storage

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	bolt "go.etcd.io/bbolt"
)

var (
	// Bucket names
	bucketMoves = []byte("moves")
)

// DBFile is the journal file name inside the data directory
const DBFile = "whisker.db"

// BoltJournal implements Journal using BoltDB.
//
// Entries live in one nested bucket per mouse under "moves", keyed by the
// bucket's big-endian sequence so iteration order is append order.
type BoltJournal struct {
	db *bolt.DB
}

// NewBoltJournal opens (or creates) the journal in dataDir
func NewBoltJournal(dataDir string) (*BoltJournal, error) {
	dbPath := filepath.Join(dataDir, DBFile)

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketMoves); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", bucketMoves, err)
		}
		return nil
	})

	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltJournal{db: db}, nil
}

// Close closes the database
func (s *BoltJournal) Close() error {
	return s.db.Close()
}

func (s *BoltJournal) Append(entry MoveEntry) (MoveEntry, error) {
	if entry.MouseID == "" {
		return entry, fmt.Errorf("mouse id is required")
	}

	err := s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.Bucket(bucketMoves).CreateBucketIfNotExists([]byte(entry.MouseID))
		if err != nil {
			return fmt.Errorf("failed to create bucket for %s: %w", entry.MouseID, err)
		}

		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		entry.Seq = seq

		data, err := json.Marshal(entry)
		if err != nil {
			return err
		}
		return b.Put(seqKey(seq), data)
	})
	return entry, err
}

func (s *BoltJournal) List(mouseID string, limit int) ([]MoveEntry, error) {
	var entries []MoveEntry
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketMoves).Bucket([]byte(mouseID))
		if b == nil {
			return fmt.Errorf("%w: %s", ErrMouseNotFound, mouseID)
		}

		// Walk backwards from the newest entry, then restore order
		c := b.Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(entries) >= limit {
				break
			}
			var entry MoveEntry
			if err := json.Unmarshal(v, &entry); err != nil {
				return err
			}
			entries = append(entries, entry)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

func (s *BoltJournal) Mice() ([]string, error) {
	var mice []string
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketMoves).ForEach(func(k, v []byte) error {
			// Nested buckets have a nil value
			if v == nil {
				mice = append(mice, string(k))
			}
			return nil
		})
	})
	return mice, err
}

func (s *BoltJournal) Delete(mouseID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		err := tx.Bucket(bucketMoves).DeleteBucket([]byte(mouseID))
		if errors.Is(err, bolt.ErrBucketNotFound) {
			return fmt.Errorf("%w: %s", ErrMouseNotFound, mouseID)
		}
		return err
	})
}

func seqKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}
