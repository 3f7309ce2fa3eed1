package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"

	"Pace/internal/domain/models"
	domrepo "Pace/internal/domain/repository"
	applogger "Pace/pkg/logger"
)

// ClickHouse server error codes that mean the configured user may not read samples.
const (
	chUnknownUser      = 192
	chAccessDenied     = 497
	chAuthFailed       = 516
	chTimeoutExceeded  = 159
	chNetworkError     = 210
	chTooManyQueries   = 202
	chMemoryLimitError = 241
)

// CHHealthProvider answers dashboard queries from raw step samples in ClickHouse.
// Bucketing happens server-side in the dashboard time zone.
type CHHealthProvider struct {
	db    *sql.DB
	table string
	loc   *time.Location
	l     *applogger.Logger
}

func NewCHHealthProvider(db *sql.DB, table string, loc *time.Location) *CHHealthProvider {
	if loc == nil {
		loc = time.Local
	}
	return &CHHealthProvider{db: db, table: table, loc: loc, l: applogger.Nop()}
}

// SetLogger injects a structured logger.
func (p *CHHealthProvider) SetLogger(l *applogger.Logger) {
	if l != nil {
		p.l = l
	}
}

func (p *CHHealthProvider) TotalSteps(ctx context.Context, r models.TimeRange) (int, error) {
	q := fmt.Sprintf("SELECT toInt64(sum(steps)) FROM %s WHERE ts >= ? AND ts < ?", p.table)
	var total int64
	if err := p.db.QueryRowContext(ctx, q, r.Start, r.End).Scan(&total); err != nil {
		return 0, p.classify("total_steps", err)
	}
	return int(total), nil
}

func (p *CHHealthProvider) TotalDistanceMeters(ctx context.Context, r models.TimeRange) (float64, error) {
	q := fmt.Sprintf("SELECT sum(distance_m) FROM %s WHERE ts >= ? AND ts < ?", p.table)
	var total float64
	if err := p.db.QueryRowContext(ctx, q, r.Start, r.End).Scan(&total); err != nil {
		return 0, p.classify("total_distance", err)
	}
	return total, nil
}

func (p *CHHealthProvider) HourlyStepBuckets(ctx context.Context, day models.TimeRange) ([]models.StepPoint, error) {
	return p.buckets(ctx, "hourly_buckets", domrepo.BucketHour, day)
}

func (p *CHHealthProvider) DailyStepTotals(ctx context.Context, window models.TimeRange) ([]models.StepPoint, error) {
	return p.buckets(ctx, "daily_totals", domrepo.BucketDay, window)
}

func (p *CHHealthProvider) buckets(ctx context.Context, op string, b domrepo.Bucket, r models.TimeRange) ([]models.StepPoint, error) {
	start := time.Now()
	q, err := bucketQuery(p.table, b)
	if err != nil {
		return nil, models.NewProviderError(models.KindQueryFailed, op, err)
	}
	rows, err := p.db.QueryContext(ctx, q, p.loc.String(), r.Start, r.End)
	if err != nil {
		return nil, p.classify(op, err)
	}
	defer rows.Close()

	var out []models.StepPoint
	for rows.Next() {
		var (
			ts    time.Time
			steps int64
		)
		if err := rows.Scan(&ts, &steps); err != nil {
			return nil, p.classify(op, fmt.Errorf("scan bucket: %w", err))
		}
		out = append(out, models.StepPoint{Start: ts.In(p.loc), Steps: int(steps)})
	}
	if err := rows.Err(); err != nil {
		return nil, p.classify(op, err)
	}
	p.l.Debug("clickhouse bucket query ok",
		applogger.String("op", op),
		applogger.String("bucket", string(b)),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return out, nil
}

func bucketQuery(table string, b domrepo.Bucket) (string, error) {
	var fn string
	switch b {
	case domrepo.BucketHour:
		fn = "toStartOfHour"
	case domrepo.BucketDay:
		fn = "toStartOfDay"
	default:
		return "", fmt.Errorf("unsupported bucket: %s", b)
	}
	const qtpl = `
        SELECT %s(ts, ?) AS bucket, toInt64(sum(steps)) AS steps
        FROM %s
        WHERE ts >= ? AND ts < ?
        GROUP BY bucket
        ORDER BY bucket ASC
    `
	return fmt.Sprintf(qtpl, fn, table), nil
}

// IsAuthorized probes read access to the samples table.
func (p *CHHealthProvider) IsAuthorized(ctx context.Context) bool {
	return p.probe(ctx) == nil
}

// RequestAuthorization cannot grant anything for a database; it reports
// whether the configured credentials can read the samples table.
func (p *CHHealthProvider) RequestAuthorization(ctx context.Context) error {
	if err := p.probe(ctx); err != nil {
		p.l.Warn("clickhouse read access check failed",
			applogger.String("table", p.table),
			applogger.Error(err),
		)
		return err
	}
	return nil
}

func (p *CHHealthProvider) probe(ctx context.Context) error {
	if err := p.db.PingContext(ctx); err != nil {
		return p.classify("ping", err)
	}
	var n uint64
	q := fmt.Sprintf("SELECT count() FROM %s WHERE 0", p.table)
	if err := p.db.QueryRowContext(ctx, q).Scan(&n); err != nil {
		return p.classify("probe", err)
	}
	return nil
}

func (p *CHHealthProvider) classify(op string, err error) error {
	return models.NewProviderError(classifyCHError(err), op, err)
}

func classifyCHError(err error) models.ProviderErrorKind {
	var ex *clickhouse.Exception
	if errors.As(err, &ex) {
		switch ex.Code {
		case chUnknownUser, chAccessDenied, chAuthFailed:
			return models.KindUnauthorized
		case chTimeoutExceeded, chNetworkError, chTooManyQueries, chMemoryLimitError:
			return models.KindUnavailable
		default:
			return models.KindQueryFailed
		}
	}
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return models.KindUnavailable
	case errors.Is(err, driver.ErrBadConn), errors.Is(err, sql.ErrConnDone):
		return models.KindUnavailable
	case errors.As(err, &netErr):
		return models.KindUnavailable
	}
	return models.KindQueryFailed
}

var _ domrepo.HealthDataProvider = (*CHHealthProvider)(nil)
