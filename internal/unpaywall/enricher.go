package unpaywall

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/itsbakr/minerva-library/internal/domain"
)

const (
	// DefaultBatchSize is how many DOI lookups run concurrently per batch.
	DefaultBatchSize = 10

	// DefaultBatchPause is the pause between batches.
	DefaultBatchPause = 100 * time.Millisecond
)

// Looker resolves the open access status of a single DOI.
type Looker interface {
	Lookup(ctx context.Context, doi string) (*OAStatus, error)
}

// EnricherConfig configures the batch enrichment pass.
type EnricherConfig struct {
	// BatchSize is how many lookups run concurrently. Defaults to 10.
	BatchSize int

	// BatchPause is the pause between batches. Defaults to 100ms.
	BatchPause time.Duration
}

// applyDefaults sets default values for unset configuration fields.
func (c *EnricherConfig) applyDefaults() {
	if c.BatchSize == 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.BatchPause == 0 {
		c.BatchPause = DefaultBatchPause
	}
}

// Enricher upgrades closed records with open access copies found on
// Unpaywall. Records that are already open, or carry no DOI, are left alone.
type Enricher struct {
	client Looker
	config EnricherConfig
	logger zerolog.Logger
}

// NewEnricher creates an enricher around the given lookup client.
func NewEnricher(client Looker, cfg EnricherConfig, logger zerolog.Logger) *Enricher {
	cfg.applyDefaults()

	return &Enricher{
		client: client,
		config: cfg,
		logger: logger.With().Str("component", "unpaywall_enricher").Logger(),
	}
}

// Enrich looks up every closed record with a DOI and rewrites its open access
// fields in place when a copy is found. Lookups run in batches; individual
// failures are logged and skipped, they never fail the pass. Enrich returns
// early when the context is canceled.
func (e *Enricher) Enrich(ctx context.Context, records []domain.Record) {
	var candidates []*domain.Record
	for i := range records {
		if records[i].HasDOI() && !records[i].IsOpenAccess {
			candidates = append(candidates, &records[i])
		}
	}
	if len(candidates) == 0 {
		return
	}

	for start := 0; start < len(candidates); start += e.config.BatchSize {
		if ctx.Err() != nil {
			return
		}

		end := start + e.config.BatchSize
		if end > len(candidates) {
			end = len(candidates)
		}

		var wg sync.WaitGroup
		for _, rec := range candidates[start:end] {
			wg.Add(1)
			go func(rec *domain.Record) {
				defer wg.Done()
				e.enrichOne(ctx, rec)
			}(rec)
		}
		wg.Wait()

		if end < len(candidates) {
			select {
			case <-ctx.Done():
				return
			case <-time.After(e.config.BatchPause):
			}
		}
	}
}

// enrichOne looks up one record and applies the verdict.
func (e *Enricher) enrichOne(ctx context.Context, rec *domain.Record) {
	status, err := e.client.Lookup(ctx, rec.DOI)
	if err != nil {
		// Unknown DOIs are routine; anything else is worth a warning.
		if errors.Is(err, domain.ErrNotFound) {
			e.logger.Debug().Str("doi", rec.DOI).Msg("doi not indexed by unpaywall")
		} else {
			e.logger.Warn().Err(err).Str("doi", rec.DOI).Msg("unpaywall lookup failed")
		}
		return
	}

	if !status.IsOA {
		return
	}

	rec.IsOpenAccess = true
	if status.URL != "" {
		rec.OpenAccessURL = status.URL
	}
}
