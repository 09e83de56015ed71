// Package aggregator contains the search aggregation core: the dispatcher
// that fans a query out to every provider concurrently, the reconciler that
// collapses duplicate records across providers, the ranker that orders the
// merged set by heuristic relevance, and the engine that orchestrates the
// whole pipeline.
package aggregator

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/itsbakr/minerva-library/internal/domain"
	"github.com/itsbakr/minerva-library/internal/observability"
	"github.com/itsbakr/minerva-library/internal/providers"
)

// Enricher is the open access enrichment pass run between dispatch and
// reconciliation. Implemented by unpaywall.Enricher.
type Enricher interface {
	Enrich(ctx context.Context, records []domain.Record)
}

// Result is the outcome of one aggregated search.
type Result struct {
	// Records are the merged, ranked records. Never nil.
	Records []domain.Record

	// TotalCount is len(Records).
	TotalCount int

	// ProviderNames lists the providers that completed and contributed at
	// least one record. Never nil.
	ProviderNames []string

	// ProviderStatuses holds one outcome per enabled provider, in
	// declaration order. Never nil.
	ProviderStatuses []domain.ProviderOutcome
}

// emptyResult is what a degraded aggregation call returns.
func emptyResult() *Result {
	return &Result{
		Records:          []domain.Record{},
		ProviderNames:    []string{},
		ProviderStatuses: []domain.ProviderOutcome{},
	}
}

// Engine runs the full aggregation pipeline: dispatch, enrich, reconcile,
// open-access filter, rank. The engine never fails an aggregation call; total
// provider failure yields an empty result with the per-provider status
// breakdown, and an orchestration fault degrades to a fully empty result.
type Engine struct {
	dispatcher *Dispatcher
	enricher   Enricher
	reconciler *Reconciler
	ranker     *Ranker
	logger     zerolog.Logger
	metrics    *observability.Metrics
}

// NewEngine wires the pipeline stages together. The enricher may be nil when
// enrichment is disabled; metrics may be nil.
func NewEngine(dispatcher *Dispatcher, enricher Enricher, reconciler *Reconciler, ranker *Ranker, logger zerolog.Logger, metrics *observability.Metrics) *Engine {
	return &Engine{
		dispatcher: dispatcher,
		enricher:   enricher,
		reconciler: reconciler,
		ranker:     ranker,
		logger:     logger.With().Str("component", "aggregation_engine").Logger(),
		metrics:    metrics,
	}
}

// Search runs one aggregated search. It always returns a structurally valid
// result; the per-provider statuses explain any shortfall.
func (e *Engine) Search(ctx context.Context, params providers.SearchParams) (res *Result) {
	start := time.Now()

	// Partial results are preferred to total failure, but a broken
	// orchestration layer cannot safely return partial data.
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error().Any("panic", r).Str("query", params.Query).Msg("aggregation fault, degrading to empty result")
			if e.metrics != nil {
				e.metrics.RecordSearchFailed(time.Since(start).Seconds())
			}
			res = emptyResult()
		}
	}()

	records, outcomes := e.dispatcher.Dispatch(ctx, params)

	if e.enricher != nil {
		enriched := e.enrich(ctx, records)
		if e.metrics != nil && enriched > 0 {
			e.metrics.RecordRecordsEnriched(enriched)
		}
	}

	merged := e.reconciler.Reconcile(records)
	duplicates := len(records) - len(merged)
	if e.metrics != nil {
		e.metrics.RecordDuplicatesMerged(duplicates)
	}

	// The filter runs after merging so that a record open through any one
	// of its constituent sources survives.
	if params.OpenAccessOnly {
		open := merged[:0]
		for _, rec := range merged {
			if rec.IsOpenAccess {
				open = append(open, rec)
			}
		}
		merged = open
	}

	ranked := e.ranker.Rank(merged, params.Query)
	if ranked == nil {
		ranked = []domain.Record{}
	}

	names := make([]string, 0, len(outcomes))
	for _, o := range outcomes {
		if o.Succeeded() && o.ResultCount > 0 {
			names = append(names, o.Name)
		}
	}
	if outcomes == nil {
		outcomes = []domain.ProviderOutcome{}
	}

	elapsed := time.Since(start).Seconds()
	e.logger.Info().
		Str("query", params.Query).
		Int("results", len(ranked)).
		Int("merged", duplicates).
		Int("providers", len(names)).
		Float64("elapsed_seconds", elapsed).
		Msg("search aggregated")
	if e.metrics != nil {
		e.metrics.RecordSearchCompleted(len(ranked), elapsed)
	}

	return &Result{
		Records:          ranked,
		TotalCount:       len(ranked),
		ProviderNames:    names,
		ProviderStatuses: outcomes,
	}
}

// enrich runs the enrichment pass and reports how many closed records it
// upgraded to open access.
func (e *Engine) enrich(ctx context.Context, records []domain.Record) int {
	closed := make([]int, 0, len(records))
	for i := range records {
		if !records[i].IsOpenAccess {
			closed = append(closed, i)
		}
	}

	e.enricher.Enrich(ctx, records)

	upgraded := 0
	for _, i := range closed {
		if records[i].IsOpenAccess {
			upgraded++
		}
	}
	return upgraded
}
