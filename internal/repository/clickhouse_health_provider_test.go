package repository

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Pace/internal/domain/models"
	domrepo "Pace/internal/domain/repository"
)

func TestBucketQuery(t *testing.T) {
	q, err := bucketQuery("pace.step_samples", domrepo.BucketHour)
	require.NoError(t, err)
	assert.Contains(t, q, "toStartOfHour(ts, ?)")
	assert.Contains(t, q, "FROM pace.step_samples")

	q, err = bucketQuery("pace.step_samples", domrepo.BucketDay)
	require.NoError(t, err)
	assert.Contains(t, q, "toStartOfDay(ts, ?)")

	_, err = bucketQuery("pace.step_samples", domrepo.Bucket("week"))
	assert.Error(t, err)
}

func TestClassifyCHError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want models.ProviderErrorKind
	}{
		{"auth failed", &clickhouse.Exception{Code: chAuthFailed, Message: "wrong password"}, models.KindUnauthorized},
		{"access denied", fmt.Errorf("query: %w", &clickhouse.Exception{Code: chAccessDenied}), models.KindUnauthorized},
		{"timeout", &clickhouse.Exception{Code: chTimeoutExceeded}, models.KindUnavailable},
		{"syntax", &clickhouse.Exception{Code: 62, Message: "syntax error"}, models.KindQueryFailed},
		{"deadline", context.DeadlineExceeded, models.KindUnavailable},
		{"bad conn", driver.ErrBadConn, models.KindUnavailable},
		{"other", errors.New("converting NULL to int64"), models.KindQueryFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyCHError(tt.err))
		})
	}
}

func TestCHHealthProviderClassifiesAsProviderError(t *testing.T) {
	p := NewCHHealthProvider(nil, "t", time.UTC)
	err := p.classify("total_steps", &clickhouse.Exception{Code: chUnknownUser})
	assert.ErrorIs(t, err, models.ErrUnauthorized)
	assert.Equal(t, models.KindUnauthorized, models.ProviderKind(err))
}

func TestSampleInsertStatementSkipsInvalid(t *testing.T) {
	s := NewCHSampleStore(nil, "pace.step_samples")
	ts := time.Date(2026, 10, 18, 9, 0, 0, 0, time.FixedZone("X", 3600))
	q, args := s.insertStatement([]models.StepSample{
		{Timestamp: ts, Steps: 10, DistanceMeters: 7.5, Source: "watch"},
		{Steps: 5},
	})
	assert.Equal(t, "INSERT INTO pace.step_samples (ts, steps, distance_m, source) VALUES (?, ?, ?, ?)", q)
	require.Len(t, args, 4)
	assert.Equal(t, ts.UTC(), args[0])
	assert.Equal(t, uint32(10), args[1])
}

func TestSampleSchema(t *testing.T) {
	stmts := SampleSchema("pace", "step_samples")
	require.Len(t, stmts, 2)
	assert.Contains(t, stmts[1], "CREATE TABLE IF NOT EXISTS pace.step_samples")
}
