package emulator

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

// ErrNotFound is returned when a run is not found.
var ErrNotFound = errors.New("run not found")

// BucketRuns holds one record per validation request, keyed by sequence.
const BucketRuns = "runs"

// Run is the record of one validation request.
type Run struct {
	ID           string    `json:"id"`
	RequestID    string    `json:"request_id,omitempty"`
	Status       int       `json:"status"`
	Valid        bool      `json:"valid"`
	Injected     bool      `json:"injected,omitempty"`
	FactCount    int       `json:"fact_count"`
	ErrorCount   int       `json:"error_count"`
	WarningCount int       `json:"warning_count"`
	Identifier   string    `json:"identifier,omitempty"`
	ReceivedAt   time.Time `json:"received_at"`
}

// Store keeps the run history in a bbolt database.
type Store struct {
	db *bolt.DB
}

// NewStore opens the database and initializes buckets.
func NewStore(dbPath string) (*Store, error) {
	db, err := bolt.Open(dbPath, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(BucketRuns)); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", BucketRuns, err)
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// PutRun appends a run.
func (s *Store) PutRun(run Run) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(BucketRuns))

		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		data, err := json.Marshal(run)
		if err != nil {
			return fmt.Errorf("failed to marshal run: %w", err)
		}
		return b.Put(itob(seq), data)
	})
}

// GetRun retrieves a run by its ID.
func (s *Store) GetRun(id string) (*Run, error) {
	var found *Run
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket([]byte(BucketRuns)).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var run Run
			if err := json.Unmarshal(v, &run); err != nil {
				return fmt.Errorf("failed to unmarshal run: %w", err)
			}
			if run.ID == id {
				found = &run
				return nil
			}
		}
		return ErrNotFound
	})
	return found, err
}

// ListRuns returns the most recent runs first. A limit of zero returns all of them.
func (s *Store) ListRuns(limit int) ([]Run, error) {
	runs := []Run{}
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket([]byte(BucketRuns)).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(runs) >= limit {
				break
			}
			var run Run
			if err := json.Unmarshal(v, &run); err != nil {
				return fmt.Errorf("failed to unmarshal run: %w", err)
			}
			runs = append(runs, run)
		}
		return nil
	})
	return runs, err
}

// itob converts a sequence to a byte slice for use as a bbolt key.
func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}
