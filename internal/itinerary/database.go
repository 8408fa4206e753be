package itinerary

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

const (
	resultsBucketName    = "ocr_results"
	tripsBucketName      = "trips"
	activitiesBucketName = "activities"
	expensesBucketName   = "expenses"
	tripKey              = "trip"
)

var (
	// ErrResultNotFound is returned when no extraction result matches a file name
	ErrResultNotFound = errors.New("extraction result not found")

	// ErrTripNotFound is returned when a trip does not exist
	ErrTripNotFound = errors.New("trip not found")
)

// ResultStore is the append-only store of extraction results
type ResultStore interface {
	// SaveResult appends a result
	SaveResult(result *ExtractionResult) error

	// RecentResults returns up to limit results, newest first
	RecentResults(limit int) ([]*ExtractionResult, error)

	// FindResult returns the newest result for file among the latest window results
	FindResult(file string, window int) (*ExtractionResult, error)
}

// TripStore persists trips with their activities and expenses
type TripStore interface {
	SaveTrip(trip *Trip) error
	GetTrip(id string) (*Trip, error)
	ListTrips(owner string) ([]*Trip, error)

	// DeleteTrip removes a trip together with its activities and expenses
	DeleteTrip(id string) error

	AddActivity(activity *TripActivity) error
	ListActivities(tripID string) ([]*TripActivity, error)
	AddExpense(expense *TripExpense) error
	ListExpenses(tripID string) ([]*TripExpense, error)
}

// DB defines the interface for database operations
type DB interface {
	ResultStore
	TripStore

	// Close closes the database connection
	Close() error
}

// BoltDB implements the DB interface using BoltDB
type BoltDB struct {
	db *bbolt.DB
}

// NewBoltDB creates a new BoltDB instance
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	// Create buckets if they don't exist
	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(resultsBucketName)); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(tripsBucketName)); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltDB{db: db}, nil
}

// seqKey encodes a bucket sequence so that byte order equals insertion order
func seqKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}

// putSequenced stores value under the bucket's next sequence number
func putSequenced(bucket *bbolt.Bucket, value any) error {
	seq, err := bucket.NextSequence()
	if err != nil {
		return fmt.Errorf("allocating key: %w", err)
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshaling: %w", err)
	}
	return bucket.Put(seqKey(seq), data)
}

// SaveResult appends an extraction result
func (b *BoltDB) SaveResult(result *ExtractionResult) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		if err := putSequenced(tx.Bucket([]byte(resultsBucketName)), result); err != nil {
			return fmt.Errorf("saving extraction result: %w", err)
		}
		return nil
	})
}

// RecentResults returns up to limit results, newest first. A limit <= 0 returns all.
func (b *BoltDB) RecentResults(limit int) ([]*ExtractionResult, error) {
	results := make([]*ExtractionResult, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(resultsBucketName)).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(results) >= limit {
				break
			}
			var result ExtractionResult
			if err := json.Unmarshal(v, &result); err != nil {
				return fmt.Errorf("unmarshaling extraction result: %w", err)
			}
			results = append(results, &result)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// FindResult returns the newest result for file among the latest window results
func (b *BoltDB) FindResult(file string, window int) (*ExtractionResult, error) {
	results, err := b.RecentResults(window)
	if err != nil {
		return nil, err
	}
	if match := NewestMatch(results, file); match != nil {
		return match, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrResultNotFound, file)
}

// NewestMatch picks the result for file with the latest timestamp, or nil
func NewestMatch(results []*ExtractionResult, file string) *ExtractionResult {
	var match *ExtractionResult
	for _, r := range results {
		if r.File != file {
			continue
		}
		if match == nil || r.Timestamp.After(match.Timestamp) {
			match = r
		}
	}
	return match
}

// SaveTrip creates or replaces a trip, keeping its activities and expenses
func (b *BoltDB) SaveTrip(trip *Trip) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		tb, err := tx.Bucket([]byte(tripsBucketName)).CreateBucketIfNotExists([]byte(trip.ID))
		if err != nil {
			return fmt.Errorf("creating trip bucket: %w", err)
		}
		if _, err := tb.CreateBucketIfNotExists([]byte(activitiesBucketName)); err != nil {
			return err
		}
		if _, err := tb.CreateBucketIfNotExists([]byte(expensesBucketName)); err != nil {
			return err
		}
		data, err := json.Marshal(trip)
		if err != nil {
			return fmt.Errorf("marshaling trip: %w", err)
		}
		return tb.Put([]byte(tripKey), data)
	})
}

// GetTrip retrieves a trip by ID
func (b *BoltDB) GetTrip(id string) (*Trip, error) {
	var trip *Trip
	err := b.db.View(func(tx *bbolt.Tx) error {
		tb := tx.Bucket([]byte(tripsBucketName)).Bucket([]byte(id))
		if tb == nil {
			return fmt.Errorf("%w: %s", ErrTripNotFound, id)
		}
		return json.Unmarshal(tb.Get([]byte(tripKey)), &trip)
	})
	if err != nil {
		return nil, err
	}
	return trip, nil
}

// ListTrips returns the trips created by owner. An empty owner returns every trip.
func (b *BoltDB) ListTrips(owner string) ([]*Trip, error) {
	trips := make([]*Trip, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		root := tx.Bucket([]byte(tripsBucketName))
		return root.ForEach(func(k, v []byte) error {
			// trips are nested buckets, which have no value
			if v != nil {
				return nil
			}
			var trip Trip
			if err := json.Unmarshal(root.Bucket(k).Get([]byte(tripKey)), &trip); err != nil {
				return fmt.Errorf("unmarshaling trip: %w", err)
			}
			if owner == "" || trip.CreatedBy == owner {
				trips = append(trips, &trip)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return trips, nil
}

// DeleteTrip removes a trip together with its activities and expenses
func (b *BoltDB) DeleteTrip(id string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		err := tx.Bucket([]byte(tripsBucketName)).DeleteBucket([]byte(id))
		if errors.Is(err, bbolt.ErrBucketNotFound) {
			return fmt.Errorf("%w: %s", ErrTripNotFound, id)
		}
		return err
	})
}

// tripChild returns a child bucket of an existing trip
func tripChild(tx *bbolt.Tx, tripID string, name string) (*bbolt.Bucket, error) {
	tb := tx.Bucket([]byte(tripsBucketName)).Bucket([]byte(tripID))
	if tb == nil {
		return nil, fmt.Errorf("%w: %s", ErrTripNotFound, tripID)
	}
	return tb.Bucket([]byte(name)), nil
}

// AddActivity appends an activity to its trip
func (b *BoltDB) AddActivity(activity *TripActivity) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket, err := tripChild(tx, activity.TripID, activitiesBucketName)
		if err != nil {
			return err
		}
		return putSequenced(bucket, activity)
	})
}

// ListActivities returns the activities of a trip in insertion order
func (b *BoltDB) ListActivities(tripID string) ([]*TripActivity, error) {
	activities := make([]*TripActivity, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket, err := tripChild(tx, tripID, activitiesBucketName)
		if err != nil {
			return err
		}
		return bucket.ForEach(func(k, v []byte) error {
			var activity TripActivity
			if err := json.Unmarshal(v, &activity); err != nil {
				return fmt.Errorf("unmarshaling activity: %w", err)
			}
			activities = append(activities, &activity)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return activities, nil
}

// AddExpense appends an expense to its trip
func (b *BoltDB) AddExpense(expense *TripExpense) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket, err := tripChild(tx, expense.TripID, expensesBucketName)
		if err != nil {
			return err
		}
		return putSequenced(bucket, expense)
	})
}

// ListExpenses returns the expenses of a trip in insertion order
func (b *BoltDB) ListExpenses(tripID string) ([]*TripExpense, error) {
	expenses := make([]*TripExpense, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket, err := tripChild(tx, tripID, expensesBucketName)
		if err != nil {
			return err
		}
		return bucket.ForEach(func(k, v []byte) error {
			var expense TripExpense
			if err := json.Unmarshal(v, &expense); err != nil {
				return fmt.Errorf("unmarshaling expense: %w", err)
			}
			expenses = append(expenses, &expense)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return expenses, nil
}

// Close closes the database connection
func (b *BoltDB) Close() error {
	return b.db.Close()
}
