package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"Pace/internal/domain/models"
	domrepo "Pace/internal/domain/repository"
)

const sampleChunkSize = 2000

// SampleSchema returns the DDL for the samples table, safe to run on every start.
func SampleSchema(database, table string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
            ts DateTime64(3, 'UTC'),
            steps UInt32,
            distance_m Float64,
            source LowCardinality(String)
        ) ENGINE = ReplacingMergeTree
        PARTITION BY toYYYYMM(ts)
        ORDER BY (ts, source)`, database, table),
	}
}

// CHSampleStore writes raw step samples to ClickHouse.
type CHSampleStore struct {
	db    *sql.DB
	table string
}

func NewCHSampleStore(db *sql.DB, table string) *CHSampleStore {
	return &CHSampleStore{db: db, table: table}
}

// StoreBatch inserts samples with multi-row VALUES, sampleChunkSize rows per statement.
func (s *CHSampleStore) StoreBatch(ctx context.Context, samples []models.StepSample) error {
	for start := 0; start < len(samples); start += sampleChunkSize {
		end := min(start+sampleChunkSize, len(samples))
		q, args := s.insertStatement(samples[start:end])
		if len(args) == 0 {
			continue
		}
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("insert samples: %w", err)
		}
	}
	return nil
}

func (s *CHSampleStore) insertStatement(samples []models.StepSample) (string, []interface{}) {
	values := make([]string, 0, len(samples))
	args := make([]interface{}, 0, len(samples)*4)
	for _, smp := range samples {
		if !smp.Valid() {
			continue
		}
		values = append(values, "(?, ?, ?, ?)")
		args = append(args, smp.Timestamp.UTC(), uint32(smp.Steps), smp.DistanceMeters, smp.Source)
	}
	q := fmt.Sprintf("INSERT INTO %s (ts, steps, distance_m, source) VALUES %s", s.table, strings.Join(values, ","))
	return q, args
}

func (s *CHSampleStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close is a no-op; the connection belongs to the ClickHouse client.
func (s *CHSampleStore) Close() error { return nil }

var _ domrepo.SampleStore = (*CHSampleStore)(nil)
