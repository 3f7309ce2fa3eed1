package healthapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"Pace/internal/domain/models"
	domrepo "Pace/internal/domain/repository"
	xhttp "Pace/pkg/http"
	applogger "Pace/pkg/logger"
)

// Client reads activity data from a health-data bridge over HTTP.
//
// Endpoints, all times RFC 3339:
//
//	GET  /v1/steps/total?start=&end=             {"steps": 123}
//	GET  /v1/distance/total?start=&end=          {"meters": 45.6}
//	GET  /v1/steps/buckets?start=&end=&bucket=&tz= {"buckets": [{"start": "...", "steps": 1}]}
//	GET  /v1/authorization                       {"authorized": true}
//	POST /v1/authorization                       {"authorized": true}
type Client struct {
	http       *xhttp.Client
	loc        *time.Location
	authorized atomic.Bool
	l          *applogger.Logger
}

type Option func(*options)

type options struct {
	token      string
	timeout    time.Duration
	httpClient *http.Client
	loc        *time.Location
	l          *applogger.Logger
}

func WithToken(token string) Option { return func(o *options) { o.token = token } }

func WithTimeout(d time.Duration) Option { return func(o *options) { o.timeout = d } }

func WithHTTPClient(hc *http.Client) Option { return func(o *options) { o.httpClient = hc } }

// WithLocation sets the zone used for bucketing and for returned bucket starts.
func WithLocation(loc *time.Location) Option { return func(o *options) { o.loc = loc } }

func WithLogger(l *applogger.Logger) Option { return func(o *options) { o.l = l } }

func New(baseURL string, opts ...Option) *Client {
	o := &options{timeout: 5 * time.Second, loc: time.Local, l: applogger.Nop()}
	for _, opt := range opts {
		opt(o)
	}

	copts := []xhttp.ClientOption{xhttp.WithBaseURL(baseURL), xhttp.WithTimeout(o.timeout)}
	if o.token != "" {
		copts = append(copts, xhttp.WithHeader("Authorization", "Bearer "+o.token))
	}
	if o.httpClient != nil {
		copts = append(copts, xhttp.WithHTTPClient(o.httpClient))
	}
	return &Client{http: xhttp.NewClient(copts...), loc: o.loc, l: o.l}
}

type totalStepsResponse struct {
	Steps int `json:"steps"`
}

type totalDistanceResponse struct {
	Meters float64 `json:"meters"`
}

type bucketsResponse struct {
	Buckets []struct {
		Start time.Time `json:"start"`
		Steps int       `json:"steps"`
	} `json:"buckets"`
}

type authorizationResponse struct {
	Authorized bool `json:"authorized"`
}

func rangeParams(r models.TimeRange) map[string][]string {
	return map[string][]string{
		"start": {r.Start.Format(time.RFC3339)},
		"end":   {r.End.Format(time.RFC3339)},
	}
}

func (c *Client) TotalSteps(ctx context.Context, r models.TimeRange) (int, error) {
	var resp totalStepsResponse
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         "/v1/steps/total",
		QueryParams: rangeParams(r),
	}, &resp)
	if err != nil {
		return 0, classify("total_steps", err)
	}
	return resp.Steps, nil
}

func (c *Client) TotalDistanceMeters(ctx context.Context, r models.TimeRange) (float64, error) {
	var resp totalDistanceResponse
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         "/v1/distance/total",
		QueryParams: rangeParams(r),
	}, &resp)
	if err != nil {
		return 0, classify("total_distance", err)
	}
	return resp.Meters, nil
}

func (c *Client) HourlyStepBuckets(ctx context.Context, day models.TimeRange) ([]models.StepPoint, error) {
	return c.buckets(ctx, "hourly_buckets", domrepo.BucketHour, day)
}

func (c *Client) DailyStepTotals(ctx context.Context, window models.TimeRange) ([]models.StepPoint, error) {
	return c.buckets(ctx, "daily_totals", domrepo.BucketDay, window)
}

func (c *Client) buckets(ctx context.Context, op string, b domrepo.Bucket, r models.TimeRange) ([]models.StepPoint, error) {
	params := rangeParams(r)
	params["bucket"] = []string{string(b)}
	params["tz"] = []string{c.loc.String()}

	var resp bucketsResponse
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         "/v1/steps/buckets",
		QueryParams: params,
	}, &resp)
	if err != nil {
		return nil, classify(op, err)
	}

	out := make([]models.StepPoint, 0, len(resp.Buckets))
	for _, bk := range resp.Buckets {
		out = append(out, models.StepPoint{Start: bk.Start.In(c.loc), Steps: bk.Steps})
	}
	return out, nil
}

// IsAuthorized asks the bridge once and remembers a positive answer.
func (c *Client) IsAuthorized(ctx context.Context) bool {
	if c.authorized.Load() {
		return true
	}
	var resp authorizationResponse
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{Method: xhttp.MethodGet, URL: "/v1/authorization"}, &resp)
	if err != nil {
		c.l.Debug("authorization status check failed", applogger.Error(err))
		return false
	}
	c.authorized.Store(resp.Authorized)
	return resp.Authorized
}

// RequestAuthorization asks the bridge to prompt for read access.
func (c *Client) RequestAuthorization(ctx context.Context) error {
	var resp authorizationResponse
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{Method: xhttp.MethodPost, URL: "/v1/authorization"}, &resp)
	if err != nil {
		return classify("request_authorization", err)
	}
	if !resp.Authorized {
		return models.NewProviderError(models.KindUnauthorized, "request_authorization", errors.New("read access not granted"))
	}
	c.authorized.Store(true)
	return nil
}

func classify(op string, err error) error {
	return models.NewProviderError(kindOf(err), op, err)
}

func kindOf(err error) models.ProviderErrorKind {
	var se *xhttp.StatusError
	if errors.As(err, &se) {
		switch {
		case se.StatusCode == http.StatusUnauthorized, se.StatusCode == http.StatusForbidden:
			return models.KindUnauthorized
		case se.StatusCode == http.StatusTooManyRequests, se.StatusCode >= 500:
			return models.KindUnavailable
		default:
			return models.KindQueryFailed
		}
	}
	var (
		urlErr *url.Error
		netErr net.Error
	)
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return models.KindUnavailable
	case errors.As(err, &urlErr), errors.As(err, &netErr):
		return models.KindUnavailable
	}
	return models.KindQueryFailed
}

var _ domrepo.HealthDataProvider = (*Client)(nil)
