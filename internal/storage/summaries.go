package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

// ColumnSummary holds the descriptive statistics of one score column.
type ColumnSummary struct {
	Column string  `json:"column"`
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	StdDev float64 `json:"std_dev"`
}

// SummaryRecord is the result of one analysis run.
type SummaryRecord struct {
	RunAt    time.Time       `json:"run_at"`
	FromYear int             `json:"from_year"`
	ToYear   int             `json:"to_year"`
	Rows     int             `json:"rows"`
	Columns  []ColumnSummary `json:"columns"`
}

// StoreSummary stores an analysis summary keyed by its run time.
func (s *Store) StoreSummary(record SummaryRecord) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(summariesBucket))

		data, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshal summary record: %w", err)
		}

		key := fmt.Sprintf("%020d", record.RunAt.UnixNano())
		return b.Put([]byte(key), data)
	})
}

// LatestSummary returns the most recent summary, if any.
func (s *Store) LatestSummary() (SummaryRecord, bool, error) {
	var (
		rec   SummaryRecord
		found bool
	)
	err := s.db.View(func(tx *bbolt.Tx) error {
		_, v := tx.Bucket([]byte(summariesBucket)).Cursor().Last()
		if v == nil {
			return nil
		}
		found = true
		return json.Unmarshal(v, &rec)
	})
	return rec, found, err
}
