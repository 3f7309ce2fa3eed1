package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type ProviderErrorKind string

const (
	KindUnauthorized ProviderErrorKind = "unauthorized"
	KindUnavailable  ProviderErrorKind = "unavailable"
	KindQueryFailed  ProviderErrorKind = "query-failed"
)

// Sentinels for errors.Is; they match any ProviderError of the same kind.
var (
	ErrUnauthorized = &ProviderError{Kind: KindUnauthorized}
	ErrUnavailable  = &ProviderError{Kind: KindUnavailable}
	ErrQueryFailed  = &ProviderError{Kind: KindQueryFailed}
)

// ProviderError is returned by every HealthDataProvider query.
type ProviderError struct {
	Kind ProviderErrorKind
	Op   string
	Err  error
}

func NewProviderError(kind ProviderErrorKind, op string, err error) *ProviderError {
	return &ProviderError{Kind: kind, Op: op, Err: err}
}

func (e *ProviderError) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(string(e.Kind))
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ProviderError) Unwrap() error { return e.Err }

func (e *ProviderError) Is(target error) bool {
	t, ok := target.(*ProviderError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Err == nil
}

// ProviderKind extracts the provider error kind from err, defaulting to query-failed.
func ProviderKind(err error) ProviderErrorKind {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindQueryFailed
}

// Metric names one of the four dashboard queries.
type Metric string

const (
	MetricSteps    Metric = "steps"
	MetricDistance Metric = "distance"
	MetricHourly   Metric = "hourly"
	MetricDaily    Metric = "daily"
)

var AllMetrics = []Metric{MetricSteps, MetricDistance, MetricHourly, MetricDaily}

// FetchError reports that at least one query of a refresh failed. The whole refresh is void.
type FetchError struct {
	Date   time.Time
	Failed map[Metric]error
}

func (e *FetchError) Kind() string { return "partial" }

// FailedMetrics lists failed metrics in query order.
func (e *FetchError) FailedMetrics() []Metric {
	out := make([]Metric, 0, len(e.Failed))
	for _, m := range AllMetrics {
		if _, ok := e.Failed[m]; ok {
			out = append(out, m)
		}
	}
	return out
}

func (e *FetchError) Error() string {
	parts := make([]string, 0, len(e.Failed))
	for _, m := range e.FailedMetrics() {
		parts = append(parts, fmt.Sprintf("%s: %v", m, e.Failed[m]))
	}
	return fmt.Sprintf("fetch %s: partial failure (%d/%d): %s",
		e.Date.Format("2006-01-02"), len(parts), len(AllMetrics), strings.Join(parts, "; "))
}

func (e *FetchError) Unwrap() []error {
	out := make([]error, 0, len(e.Failed))
	for _, m := range e.FailedMetrics() {
		out = append(out, e.Failed[m])
	}
	return out
}
