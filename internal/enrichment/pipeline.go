// Package enrichment turns validated manifest records into catalog
// entities. Records are processed concurrently; auxiliary texts are fetched
// under the base address and media paths are made absolute. The result
// keeps manifest order and is returned only once every record is done.
package enrichment

import (
	"context"
	"net/url"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tphakala/quack-go/internal/conf"
	"github.com/tphakala/quack-go/internal/logger"
	"github.com/tphakala/quack-go/internal/manifest"
	"github.com/tphakala/quack-go/internal/model"
)

// NoDescription replaces an empty long description.
const NoDescription = conf.NoDescriptionText

const defaultShortDescriptionLength = 140

// Pipeline enriches manifest records. It is safe for concurrent use.
type Pipeline struct {
	text        TextSource
	concurrency int
	shortLen    int
	logger      logger.Logger
}

// NewPipeline creates a pipeline that fetches texts through text.
func NewPipeline(text TextSource, settings conf.EnrichmentSettings, log logger.Logger) *Pipeline {
	if log == nil {
		log = logger.Global().Module("enrichment")
	}

	concurrency := settings.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	shortLen := settings.ShortDescriptionLength
	if shortLen <= 0 {
		shortLen = defaultShortDescriptionLength
	}

	return &Pipeline{
		text:        text,
		concurrency: concurrency,
		shortLen:    shortLen,
		logger:      log,
	}
}

// Enrich builds exactly one entity per record, in record order. Per record
// failures only blank the affected text fields. Cancelling ctx makes the
// pending text fetches fail fast; Enrich still returns one entity per
// record.
func (p *Pipeline) Enrich(ctx context.Context, base *url.URL, records []manifest.Record) []*model.Entity {
	entities := make([]*model.Entity, len(records))
	if len(records) == 0 {
		return entities
	}

	start := time.Now()

	// Workers never return an error so one record cannot cancel the others
	var g errgroup.Group
	g.SetLimit(p.concurrency)

	for i := range records {
		g.Go(func() error {
			entities[i] = p.enrichRecord(ctx, base, records[i])
			return nil
		})
	}
	_ = g.Wait()

	p.logger.Debug("records enriched",
		logger.Int("records", len(records)),
		logger.Int("concurrency", p.concurrency),
		logger.Duration("duration", time.Since(start)))

	return entities
}

// enrichRecord resolves one record. Its three text lookups run
// concurrently.
func (p *Pipeline) enrichRecord(ctx context.Context, base *url.URL, r manifest.Record) *model.Entity {
	var (
		wg          sync.WaitGroup
		description string
		coolFacts   *string
		findThis    *string
	)

	if r.BasicDescription != nil {
		wg.Go(func() {
			if text, ok := p.fetchText(ctx, base, *r.BasicDescription); ok {
				description = text
			}
		})
	}
	if r.CoolFacts != nil {
		wg.Go(func() {
			if text, ok := p.fetchText(ctx, base, *r.CoolFacts); ok {
				coolFacts = &text
			}
		})
	}
	if r.FindThisBird != nil {
		wg.Go(func() {
			if text, ok := p.fetchText(ctx, base, *r.FindThisBird); ok {
				findThis = &text
			}
		})
	}

	params := model.EntityParams{
		ScientificName: r.ScientificName,
		Regions:        model.ParseRegions(r.Regions),
		Images:         p.resolveMedia(base, r.Images),
		Videos:         p.resolveMedia(base, r.Videos),
		Sounds:         p.resolveMedia(base, r.Sounds),
	}
	if r.SpeciesName != nil {
		params.Name = *r.SpeciesName
	}

	wg.Wait()

	params.ShortDescription = Truncate(description, p.shortLen)
	params.Description = description
	if description == "" {
		params.Description = NoDescription
	}
	params.CoolFacts = coolFacts
	params.FindThisBird = findThis

	return model.NewEntity(params)
}

// fetchText resolves rel under base and fetches it. ok is false on any
// failure.
func (p *Pipeline) fetchText(ctx context.Context, base *url.URL, rel string) (string, bool) {
	target, err := manifest.ResolvePath(base, rel)
	if err != nil {
		p.logger.Debug("unresolvable text path",
			logger.String("path", rel),
			logger.Error(err))
		return "", false
	}

	text, err := p.text.Text(ctx, target)
	if err != nil {
		p.logger.Debug("text fetch failed",
			logger.String("url", target.String()),
			logger.Error(err))
		return "", false
	}
	return text, true
}

// resolveMedia makes every path absolute, keeping order and dropping the
// ones that do not resolve.
func (p *Pipeline) resolveMedia(base *url.URL, paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, rel := range paths {
		u, err := manifest.ResolvePath(base, rel)
		if err != nil {
			p.logger.Debug("dropping unresolvable media path",
				logger.String("path", rel),
				logger.Error(err))
			continue
		}
		out = append(out, u.String())
	}
	return out
}

// FlushCache drops every cached auxiliary text.
func (p *Pipeline) FlushCache() {
	p.text.Flush()
}

// Truncate returns the first n characters of s. It counts runes, not bytes.
func Truncate(s string, n int) string {
	if n <= 0 || s == "" {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
