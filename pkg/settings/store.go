// Package settings persists operator settings, such as the pressure
// threshold chosen on the settings screen, across restarts. It never stores
// sensor samples.
package settings

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	bbolt "go.etcd.io/bbolt"
)

var (
	bucketSettings = []byte("settings")
	keyThreshold   = []byte("pressure_threshold")
)

// Store wraps a bbolt database holding the settings bucket.
type Store struct {
	bolt *bbolt.DB
}

// Open opens or creates a bbolt database file and ensures the bucket exists.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("settings: open %s: %w", path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketSettings)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("settings: create bucket: %w", err)
	}

	return &Store{bolt: db}, nil
}

// Close closes the underlying bbolt database.
func (s *Store) Close() error {
	if s.bolt != nil {
		return s.bolt.Close()
	}
	return nil
}

// Path returns the filesystem path of the underlying bbolt database.
func (s *Store) Path() string {
	if s.bolt != nil {
		return s.bolt.Path()
	}
	return ""
}

// Threshold returns the saved pressure threshold. ok is false when none has
// been saved yet.
func (s *Store) Threshold() (v float64, ok bool, err error) {
	err = s.bolt.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketSettings).Get(keyThreshold)
		if data == nil {
			return nil
		}
		if len(data) != 8 {
			return errors.New("corrupt pressure_threshold value")
		}
		v, ok = math.Float64frombits(binary.BigEndian.Uint64(data)), true
		return nil
	})
	if err != nil {
		return 0, false, fmt.Errorf("settings: load threshold: %w", err)
	}
	return v, ok, nil
}

// SaveThreshold persists the pressure threshold.
func (s *Store) SaveThreshold(v float64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], math.Float64bits(v))
	err := s.bolt.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSettings).Put(keyThreshold, buf[:])
	})
	if err != nil {
		return fmt.Errorf("settings: save threshold: %w", err)
	}
	return nil
}
