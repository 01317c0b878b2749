// Package storage provides persistent data storage for the SAT analysis tool.
// It uses BoltDB as the underlying storage engine to keep imported score rows
// keyed by year, plus the summaries produced by each analysis run.
package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

const (
	scoresBucket    = "sat_scores"    // Bucket name for yearly score rows
	summariesBucket = "sat_summaries" // Bucket name for analysis run summaries
)

// DBFile is the database file created inside the data directory.
const DBFile = "sat-data.db"

// SATRecord is one year of average SAT scores, split by section and gender.
type SATRecord struct {
	Year          int      `json:"year"`
	MaleVerbal    float64  `json:"m_verbal"`
	FemaleVerbal  float64  `json:"f_verbal"`
	AllVerbal     float64  `json:"all_verbal"`
	MaleMath      float64  `json:"m_math"`
	FemaleMath    float64  `json:"f_math"`
	AllMath       float64  `json:"all_math"`
	MaleAverage   float64  `json:"m_vm_averages"`
	FemaleAverage float64  `json:"f_vm_averages"`
	AllAverage    float64  `json:"all_vm_averages"`
	Missing       []string `json:"missing,omitempty"` // Columns with no usable value in the source row
}

// Store provides persistent storage for SAT data using BoltDB.
type Store struct {
	db *bbolt.DB // BoltDB database instance
}

// New creates a new storage instance with the specified data path.
// It creates dataPath if needed, opens the BoltDB database and creates the buckets.
func New(dataPath string) (*Store, error) {
	if err := os.MkdirAll(dataPath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	dbPath := filepath.Join(dataPath, DBFile)

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Create buckets
	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(scoresBucket)); err != nil {
			return fmt.Errorf("create scores bucket: %w", err)
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(summariesBucket)); err != nil {
			return fmt.Errorf("create summaries bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database connection gracefully.
func (s *Store) Close() error {
	if s.db != nil {
		err := s.db.Close()
		s.db = nil
		return err
	}
	return nil
}

// yearKey zero-pads the year so byte order matches numeric order.
func yearKey(year int) []byte {
	return []byte(fmt.Sprintf("%04d", year))
}

// StoreRecords writes the records in one transaction, replacing any row
// already stored for the same year.
func (s *Store) StoreRecords(records []SATRecord) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(scoresBucket))
		for _, rec := range records {
			if rec.Year < 0 || rec.Year > 9999 {
				return fmt.Errorf("year %d out of range", rec.Year)
			}
			data, err := json.Marshal(rec)
			if err != nil {
				return fmt.Errorf("marshal record %d: %w", rec.Year, err)
			}
			if err := b.Put(yearKey(rec.Year), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetRecord returns the row for year. The bool is false when none is stored.
func (s *Store) GetRecord(year int) (SATRecord, bool, error) {
	var (
		rec   SATRecord
		found bool
	)
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket([]byte(scoresBucket)).Get(yearKey(year))
		if v == nil {
			return nil
		}
		found = true
		return json.Unmarshal(v, &rec)
	})
	return rec, found, err
}

// GetRecordsInRange returns rows with from <= year <= to in year order.
// A zero bound is open.
func (s *Store) GetRecordsInRange(from, to int) ([]SATRecord, error) {
	var records []SATRecord

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(scoresBucket)).Cursor()

		var k, v []byte
		if from > 0 {
			k, v = c.Seek(yearKey(from))
		} else {
			k, v = c.First()
		}
		var endKey []byte
		if to > 0 {
			endKey = yearKey(to)
		}

		for ; k != nil && (endKey == nil || bytes.Compare(k, endKey) <= 0); k, v = c.Next() {
			var rec SATRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				continue // Skip malformed records
			}
			records = append(records, rec)
		}
		return nil
	})

	return records, err
}

// Count returns the number of stored years.
func (s *Store) Count() (int, error) {
	var n int
	err := s.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket([]byte(scoresBucket)).Stats().KeyN
		return nil
	})
	return n, err
}
