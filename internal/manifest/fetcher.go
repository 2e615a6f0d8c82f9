package manifest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/tphakala/quack-go/internal/conf"
	"github.com/tphakala/quack-go/internal/errors"
	"github.com/tphakala/quack-go/internal/httpclient"
	"github.com/tphakala/quack-go/internal/logger"
	"github.com/tphakala/quack-go/internal/observability/metrics"
)

// maxManifestBytes caps the manifest body read from one candidate.
const maxManifestBytes = 8 << 20

// ErrExhausted means no candidate location produced a decodable manifest.
// Callers treat it as an empty catalog, not as a failure.
var ErrExhausted = errors.NewStd("manifest candidates exhausted")

// Result is a successful lookup.
type Result struct {
	// Records are the non-noise records in manifest order
	Records []Record
	// Path is the candidate path that succeeded
	Path string
	// URL is the absolute manifest location
	URL string
	// Discarded counts noise records removed by Filter
	Discarded int
}

// Fetcher runs the candidate loop. It holds no mutable state and is safe
// for concurrent use.
type Fetcher struct {
	client  *httpclient.Client
	paths   []string
	timeout time.Duration
	logger  logger.Logger
	metrics metrics.Recorder
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithMetrics sets the metrics recorder.
func WithMetrics(r metrics.Recorder) Option {
	return func(f *Fetcher) { f.metrics = metrics.OrNoOp(r) }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(f *Fetcher) {
		if l != nil {
			f.logger = l
		}
	}
}

// NewFetcher creates a fetcher for the candidate paths and request timeout
// in network.
func NewFetcher(client *httpclient.Client, network conf.NetworkSettings, opts ...Option) *Fetcher {
	paths := make([]string, len(network.ManifestPaths))
	copy(paths, network.ManifestPaths)

	timeout := network.RequestTimeout
	if timeout <= 0 {
		timeout = conf.DefaultRequestTimeout
	}

	f := &Fetcher{
		client:  client,
		paths:   paths,
		timeout: timeout,
		logger:  logger.Global().Module("manifest"),
		metrics: metrics.NoOpRecorder{},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Paths returns the candidate paths in the order they are tried.
func (f *Fetcher) Paths() []string {
	out := make([]string, len(f.paths))
	copy(out, f.paths)
	return out
}

// Fetch tries each candidate under base in order and returns the filtered
// records of the first one that decodes, even when no record survives the
// filter. Candidates are attempted one at a time. When every candidate
// fails the error wraps ErrExhausted. A cancelled ctx stops the loop and
// returns the context error.
func (f *Fetcher) Fetch(ctx context.Context, base *url.URL) (Result, error) {
	if base == nil {
		return Result{}, errors.New(ErrExhausted).
			Component("manifest").
			Category(errors.CategoryValidation).
			Context("reason", "nil base address").
			Build()
	}

	var lastErr error
	for i, candidate := range f.paths {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		target, err := ResolvePath(base, candidate)
		if err != nil {
			lastErr = err
			f.metrics.RecordOperation(metrics.OpManifestFetch, metrics.StatusTransportError)
			f.logger.Debug("skipping unresolvable manifest candidate",
				logger.String("candidate", candidate),
				logger.Error(err))
			continue
		}

		records, status, err := f.tryCandidate(ctx, target)
		f.metrics.RecordOperation(metrics.OpManifestFetch, status)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Result{}, ctxErr
			}
			lastErr = err
			f.logger.Debug("manifest candidate failed",
				logger.Int("attempt", i+1),
				logger.String("url", target.String()),
				logger.String("outcome", status),
				logger.Error(err))
			continue
		}

		kept := Filter(records)
		f.logger.Debug("manifest decoded",
			logger.String("url", target.String()),
			logger.Int("records", len(records)),
			logger.Int("kept", len(kept)))

		return Result{
			Records:   kept,
			Path:      candidate,
			URL:       target.String(),
			Discarded: len(records) - len(kept),
		}, nil
	}

	builder := errors.New(ErrExhausted).
		Component("manifest").
		Category(errors.CategoryNetwork).
		Context("base_url", base.String()).
		Context("candidates", len(f.paths))
	if lastErr != nil {
		builder = builder.Context("last_error", lastErr.Error())
	}
	return Result{}, builder.Build()
}

// tryCandidate performs one bounded GET that bypasses caches and decodes
// the body. The returned status is the metrics outcome.
func (f *Fetcher) tryCandidate(ctx context.Context, target *url.URL) ([]Record, string, error) {
	reqCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	start := time.Now()
	resp, err := f.client.GetNoCache(reqCtx, target.String())
	if err != nil {
		return nil, metrics.StatusTransportError, errors.New(err).
			Component("manifest").
			Category(errors.CategoryNetwork).
			NetworkContext(target.String(), f.timeout).
			Timing("manifest_request", time.Since(start)).
			Build()
	}
	defer func() {
		// Drain so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxManifestBytes))
		_ = resp.Body.Close()
	}()

	// Error pages count as "no body": a 5xx that happens to return [] must
	// not settle the catalog as empty while a later candidate is valid.
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, metrics.StatusHTTPError, errors.Newf("unexpected status %d", resp.StatusCode).
			Component("manifest").
			Category(errors.CategoryHTTP).
			Context("url", target.String()).
			Context("status_code", resp.StatusCode).
			Build()
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxManifestBytes+1))
	if err != nil {
		return nil, metrics.StatusTransportError, errors.New(err).
			Component("manifest").
			Category(errors.CategoryNetwork).
			Context("url", target.String()).
			Context("operation", "read_body").
			Build()
	}
	if len(body) > maxManifestBytes {
		return nil, metrics.StatusDecodeError, errors.New(fmt.Errorf("manifest exceeds %d bytes", maxManifestBytes)).
			Component("manifest").
			Category(errors.CategoryFileParsing).
			Context("url", target.String()).
			Build()
	}

	records, err := Decode(body)
	if err != nil {
		return nil, metrics.StatusDecodeError, err
	}
	return records, metrics.StatusSuccess, nil
}
