package enrichment

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/k3a/html2text"
	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
	"golang.org/x/time/rate"

	"github.com/tphakala/quack-go/internal/conf"
	"github.com/tphakala/quack-go/internal/errors"
	"github.com/tphakala/quack-go/internal/httpclient"
	"github.com/tphakala/quack-go/internal/logger"
	"github.com/tphakala/quack-go/internal/observability/metrics"
)

// maxTextBytes caps an auxiliary text body. Longer bodies are truncated.
const maxTextBytes = 1 << 20

// TextSource fetches auxiliary text resources.
type TextSource interface {
	// Text returns the cleaned text at u or an error. It never returns a
	// partially cleaned value.
	Text(ctx context.Context, u *url.URL) (string, error)
	// Flush drops every cached text.
	Flush()
}

// TextFetcher is the HTTP TextSource. Successful texts are cached per
// absolute URL and concurrent requests for the same URL share one fetch.
// Failures are never cached.
type TextFetcher struct {
	client  *httpclient.Client
	timeout time.Duration
	cache   *cache.Cache
	group   singleflight.Group
	limiter *rate.Limiter
	logger  logger.Logger
	metrics metrics.Recorder
}

// NewTextFetcher creates a fetcher tuned by settings. A zero rate limit
// means unlimited.
func NewTextFetcher(client *httpclient.Client, settings conf.EnrichmentSettings, log logger.Logger, rec metrics.Recorder) *TextFetcher {
	if log == nil {
		log = logger.Global().Module("enrichment")
	}

	timeout := settings.TextTimeout
	if timeout <= 0 {
		timeout = conf.DefaultRequestTimeout
	}
	ttl := settings.TextCacheTTL
	if ttl <= 0 {
		ttl = cache.NoExpiration
	}

	tf := &TextFetcher{
		client:  client,
		timeout: timeout,
		cache:   cache.New(ttl, 2*ttl),
		logger:  log.Module("text"),
		metrics: metrics.OrNoOp(rec),
	}

	if settings.RateLimit > 0 {
		burst := max(1, int(settings.RateLimit))
		tf.limiter = rate.NewLimiter(rate.Limit(settings.RateLimit), burst)
	}

	return tf
}

// Text implements TextSource. The shared fetch is detached from the
// caller's cancellation so a later caller joining it is not failed by an
// earlier caller giving up; it stays bounded by the text timeout.
func (tf *TextFetcher) Text(ctx context.Context, u *url.URL) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	key := u.String()

	if cached, found := tf.cache.Get(key); found {
		if text, ok := cached.(string); ok {
			tf.metrics.RecordOperation(metrics.OpTextCache, metrics.StatusHit)
			return text, nil
		}
	}
	tf.metrics.RecordOperation(metrics.OpTextCache, metrics.StatusMiss)

	ch := tf.group.DoChan(key, func() (any, error) {
		sharedCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), tf.timeout)
		defer cancel()

		text, err := tf.fetch(sharedCtx, u)
		if err != nil {
			return "", err
		}
		tf.cache.Set(key, text, cache.DefaultExpiration)
		return text, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// fetch performs one bounded GET and cleans the body.
func (tf *TextFetcher) fetch(ctx context.Context, u *url.URL) (string, error) {
	if tf.limiter != nil {
		if err := tf.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}

	reqCtx, cancel := context.WithTimeout(ctx, tf.timeout)
	defer cancel()

	start := time.Now()
	resp, err := tf.client.Get(reqCtx, u.String())
	if err != nil {
		tf.metrics.RecordOperation(metrics.OpTextFetch, metrics.StatusTransportError)
		return "", textError(err, u).
			NetworkContext(u.String(), tf.timeout).
			Timing("text_request", time.Since(start)).
			Build()
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		tf.metrics.RecordOperation(metrics.OpTextFetch, metrics.StatusHTTPError)
		return "", textError(fmt.Errorf("unexpected status %d", resp.StatusCode), u).
			Context("status_code", resp.StatusCode).
			Build()
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTextBytes))
	if err != nil {
		tf.metrics.RecordOperation(metrics.OpTextFetch, metrics.StatusTransportError)
		return "", textError(err, u).Context("operation", "read_body").Build()
	}

	text, err := CleanText(body, resp.Header.Get("Content-Type"))
	if err != nil {
		tf.metrics.RecordOperation(metrics.OpTextFetch, metrics.StatusDecodeError)
		return "", textError(err, u).Context("operation", "decode").Build()
	}

	tf.metrics.RecordOperation(metrics.OpTextFetch, metrics.StatusSuccess)
	tf.logger.Trace("text fetched",
		logger.String("url", u.String()),
		logger.Int("bytes", len(body)),
		logger.Duration("duration", time.Since(start)))

	return text, nil
}

func textError(err error, u *url.URL) *errors.ErrorBuilder {
	return errors.New(err).
		Component("enrichment").
		Category(errors.CategoryTextFetch).
		Context("url", u.String())
}

// Flush implements TextSource.
func (tf *TextFetcher) Flush() {
	tf.cache.Flush()
}

// CachedCount returns the number of cached texts.
func (tf *TextFetcher) CachedCount() int {
	return tf.cache.ItemCount()
}

// CleanText decodes body as UTF-8 text. A byte order mark selects the
// encoding and is removed; invalid sequences become U+FFFD. Bodies served
// as HTML are flattened to plain text. The result is trimmed.
func CleanText(body []byte, contentType string) (string, error) {
	decoder := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	decoded, _, err := transform.Bytes(decoder, body)
	if err != nil {
		return "", err
	}

	text := string(bytes.ToValidUTF8(decoded, []byte("�")))
	if isHTML(contentType) {
		text = html2text.HTML2Text(text)
	}
	return strings.TrimSpace(text), nil
}

func isHTML(contentType string) bool {
	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}
