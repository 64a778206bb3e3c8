package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	appLog "plancal/internal/log"
	"plancal/internal/metrics"
	"plancal/internal/model"
)

var errBodyTooLarge = errors.New("response body exceeds limit")

// TTLs holds the freshness window per document kind.
type TTLs struct {
	Groupings time.Duration
	Headers   time.Duration
	Schedule  time.Duration
}

func (t TTLs) For(k Kind) time.Duration {
	switch k {
	case KindGroupings:
		return t.Groupings
	case KindHeaders:
		return t.Headers
	default:
		return t.Schedule
	}
}

// DefaultTTLs are the freshness windows used when none are configured.
var DefaultTTLs = TTLs{
	Groupings: 30 * time.Minute,
	Headers:   30 * time.Minute,
	Schedule:  10 * time.Minute,
}

// Options configures a Fetcher. Zero fields take defaults.
type Options struct {
	BaseURL       string
	UserAgent     string
	Timeout       time.Duration
	MaxBodyBytes  int64
	RatePerSecond float64
	Burst         int
	TTLs          TTLs
	// Client overrides the HTTP client, mainly for tests.
	Client *http.Client
}

// Fetcher retrieves raw upstream documents. It consults the cache first,
// then performs a single GET. Failures are never retried.
type Fetcher struct {
	client    *http.Client
	baseURL   string
	userAgent string
	maxBody   int64
	ttls      TTLs
	limiter   *rate.Limiter
	cache     Cache
	metrics   metrics.Recorder
}

// NewFetcher creates a Fetcher. cache and rec may be nil.
func NewFetcher(opts Options, cache Cache, rec metrics.Recorder) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 8 << 20
	}
	if opts.TTLs == (TTLs{}) {
		opts.TTLs = DefaultTTLs
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	limit := rate.Inf
	if opts.RatePerSecond > 0 {
		limit = rate.Limit(opts.RatePerSecond)
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &Fetcher{
		client:    client,
		baseURL:   opts.BaseURL,
		userAgent: opts.UserAgent,
		maxBody:   opts.MaxBodyBytes,
		ttls:      opts.TTLs,
		limiter:   rate.NewLimiter(limit, burst),
		cache:     cache,
		metrics:   rec,
	}
}

// Fetch returns the raw body for req. dayMarker, when non-empty, becomes part
// of the cache key so entries do not outlive the civil day they were fetched
// on.
func (f *Fetcher) Fetch(ctx context.Context, req Request, dayMarker string) ([]byte, error) {
	u, err := req.URL(f.baseURL)
	if err != nil {
		return nil, err
	}
	kind := req.Kind.String()
	key := CacheKey(u, dayMarker)

	if f.cache != nil {
		body, ok, err := f.cache.Match(ctx, key)
		if err != nil {
			appLog.Error("upstream cache read failed", err, "kind", kind)
		}
		f.metrics.RecordCacheLookup(kind, ok)
		if ok {
			appLog.Debug("upstream cache hit", "kind", kind, "url", u)
			return body, nil
		}
	}

	body, err := f.get(ctx, u)
	f.metrics.RecordFetch(kind, err)
	if err != nil {
		appLog.Error("upstream fetch failed", err, "kind", kind, "url", u)
		return nil, err
	}

	if f.cache != nil {
		if err := f.cache.Put(ctx, key, body, f.ttls.For(req.Kind)); err != nil {
			// Log but still return the freshly fetched body.
			appLog.Error("upstream cache save failed", err, "kind", kind)
		}
	}
	return body, nil
}

func (f *Fetcher) get(ctx context.Context, u string) ([]byte, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, &model.UpstreamFetchError{URL: u, Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &model.UpstreamFetchError{URL: u, Err: err}
	}
	if f.userAgent != "" {
		httpReq.Header.Set("User-Agent", f.userAgent)
	}

	appLog.Info("upstream fetch start", "url", u)
	started := time.Now()
	resp, err := f.client.Do(httpReq)
	if err != nil {
		return nil, &model.UpstreamFetchError{URL: u, Err: err}
	}
	defer resp.Body.Close()
	f.metrics.RecordHTTPStatus(resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain a little so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return nil, &model.UpstreamFetchError{URL: u, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBody+1))
	if err != nil {
		return nil, &model.UpstreamFetchError{URL: u, Err: err}
	}
	if int64(len(body)) > f.maxBody {
		return nil, &model.UpstreamFetchError{URL: u, Err: fmt.Errorf("%w (%d bytes)", errBodyTooLarge, f.maxBody)}
	}

	elapsed := time.Since(started)
	f.metrics.RecordFetchLatency(elapsed)
	appLog.Info("upstream fetch success", "url", u, "status", resp.StatusCode, "bytes", len(body), "elapsed", elapsed.String())
	return body, nil
}
