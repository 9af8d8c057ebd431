// Package metrics records every backend call in SQLite and reports usage.
package metrics

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"cookify/internal/database"
)

// CallMetric records metadata for a single backend request. Status 0 means the
// request never got a response.
type CallMetric struct {
	Endpoint  string
	Method    string
	Status    int
	LatencyMS int64
	Timestamp time.Time
}

// Failed reports whether the call ended in a transport error or a 4xx/5xx.
func (m CallMetric) Failed() bool {
	return m.Status == 0 || m.Status >= 400
}

// Store handles persistence of metrics to SQLite.
type Store struct {
	db *sql.DB
}

// NewStore initializes the Store with an existing database connection.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Record saves a metric to the database.
func (s *Store) Record(m CallMetric) error {
	ts := m.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	_, err := s.db.ExecContext(context.Background(),
		`INSERT INTO api_calls (endpoint, method, status, latency_ms, timestamp) VALUES (?, ?, ?, ?, ?)`,
		m.Endpoint, m.Method, m.Status, m.LatencyMS, ts.UTC().Format(database.TimeLayout))
	if err != nil {
		return fmt.Errorf("failed to insert call metric: %w", err)
	}
	return nil
}

// RecordCall satisfies api.Recorder.
func (s *Store) RecordCall(endpoint, method string, status int, latency time.Duration) error {
	return s.Record(CallMetric{
		Endpoint:  endpoint,
		Method:    method,
		Status:    status,
		LatencyMS: latency.Milliseconds(),
	})
}

// DailyUsage represents call totals for a single day.
type DailyUsage struct {
	Date         string
	Calls        int
	Failures     int
	AvgLatencyMS int64
}

// GetDailyUsage retrieves usage for the last N days, most recent first.
func (s *Store) GetDailyUsage(days int) ([]DailyUsage, error) {
	rows, err := s.db.QueryContext(context.Background(), `
		SELECT substr(timestamp, 1, 10) AS day,
		       COUNT(*),
		       SUM(CASE WHEN status = 0 OR status >= 400 THEN 1 ELSE 0 END),
		       CAST(AVG(latency_ms) AS INTEGER)
		FROM api_calls
		WHERE timestamp >= ?
		GROUP BY day
		ORDER BY day DESC`, since(days))
	if err != nil {
		return nil, fmt.Errorf("failed to query daily usage: %w", err)
	}
	defer rows.Close()

	var results []DailyUsage
	for rows.Next() {
		var u DailyUsage
		if err := rows.Scan(&u.Date, &u.Calls, &u.Failures, &u.AvgLatencyMS); err != nil {
			return nil, fmt.Errorf("failed to scan daily usage: %w", err)
		}
		results = append(results, u)
	}
	return results, rows.Err()
}

// EndpointUsage represents call totals for one endpoint.
type EndpointUsage struct {
	Endpoint     string
	Calls        int
	Failures     int
	AvgLatencyMS int64
}

// GetEndpointUsage retrieves per-endpoint usage for the last N days, busiest first.
func (s *Store) GetEndpointUsage(days int) ([]EndpointUsage, error) {
	rows, err := s.db.QueryContext(context.Background(), `
		SELECT endpoint,
		       COUNT(*) AS calls,
		       SUM(CASE WHEN status = 0 OR status >= 400 THEN 1 ELSE 0 END),
		       CAST(AVG(latency_ms) AS INTEGER)
		FROM api_calls
		WHERE timestamp >= ?
		GROUP BY endpoint
		ORDER BY calls DESC, endpoint`, since(days))
	if err != nil {
		return nil, fmt.Errorf("failed to query endpoint usage: %w", err)
	}
	defer rows.Close()

	var results []EndpointUsage
	for rows.Next() {
		var u EndpointUsage
		if err := rows.Scan(&u.Endpoint, &u.Calls, &u.Failures, &u.AvgLatencyMS); err != nil {
			return nil, fmt.Errorf("failed to scan endpoint usage: %w", err)
		}
		results = append(results, u)
	}
	return results, rows.Err()
}

// Cleanup removes records older than the specified number of days.
func (s *Store) Cleanup(olderThanDays int) (int64, error) {
	res, err := s.db.ExecContext(context.Background(),
		`DELETE FROM api_calls WHERE timestamp < ?`, since(olderThanDays))
	if err != nil {
		return 0, fmt.Errorf("failed to clean up call metrics: %w", err)
	}
	return res.RowsAffected()
}

func since(days int) string {
	return time.Now().UTC().AddDate(0, 0, -days).Format(database.TimeLayout)
}
