package aggregator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/itsbakr/minerva-library/internal/domain"
	"github.com/itsbakr/minerva-library/internal/observability"
	"github.com/itsbakr/minerva-library/internal/providers"
)

// DefaultProviderTimeout bounds each individual provider call. A provider
// exceeding it reports a timeout outcome and contributes no records.
const DefaultProviderTimeout = 30 * time.Second

// DispatcherConfig configures the provider fan-out.
type DispatcherConfig struct {
	// ProviderTimeout is the per-provider deadline. Defaults to 30s.
	ProviderTimeout time.Duration
}

// applyDefaults sets default values for unset configuration fields.
func (c *DispatcherConfig) applyDefaults() {
	if c.ProviderTimeout == 0 {
		c.ProviderTimeout = DefaultProviderTimeout
	}
}

// providerResult pairs one provider's outcome with its records and its slot in
// the declaration order.
type providerResult struct {
	index   int
	outcome domain.ProviderOutcome
	records []domain.Record
}

// Dispatcher fans one logical search out to every enabled provider
// concurrently and collects whatever subset completes. Each call is
// independently time-bounded and failure-isolated: a provider that errors,
// times out, or panics is downgraded to a failed ProviderOutcome and never
// aborts the aggregation.
type Dispatcher struct {
	providers []providers.Provider
	config    DispatcherConfig
	logger    zerolog.Logger
	metrics   *observability.Metrics
}

// NewDispatcher creates a dispatcher over the given providers. The slice order
// is the declaration order used for outcome reporting. Metrics may be nil.
func NewDispatcher(provs []providers.Provider, cfg DispatcherConfig, logger zerolog.Logger, metrics *observability.Metrics) *Dispatcher {
	cfg.applyDefaults()

	return &Dispatcher{
		providers: provs,
		config:    cfg,
		logger:    logger.With().Str("component", "dispatcher").Logger(),
		metrics:   metrics,
	}
}

// Dispatch runs the search against every enabled provider at once and returns
// the union of all successful providers' records together with one outcome per
// enabled provider, in declaration order. Records keep provider order too, so
// repeated dispatches of the same inputs produce the same sequence.
func (d *Dispatcher) Dispatch(ctx context.Context, params providers.SearchParams) ([]domain.Record, []domain.ProviderOutcome) {
	active := make([]providers.Provider, 0, len(d.providers))
	for _, p := range d.providers {
		if p.IsEnabled() {
			active = append(active, p)
		}
	}

	resultChan := make(chan providerResult, len(active))

	var wg sync.WaitGroup
	for i, p := range active {
		wg.Add(1)
		go func(idx int, p providers.Provider) {
			defer wg.Done()
			resultChan <- d.searchOne(ctx, idx, p, params)
		}(i, p)
	}

	wg.Wait()
	close(resultChan)

	results := make([]providerResult, 0, len(active))
	for res := range resultChan {
		results = append(results, res)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].index < results[j].index })

	var records []domain.Record
	outcomes := make([]domain.ProviderOutcome, 0, len(results))
	for _, res := range results {
		outcomes = append(outcomes, res.outcome)
		records = append(records, res.records...)
	}
	return records, outcomes
}

// searchOne runs a single provider call under its own deadline, translating
// every failure mode into an outcome. A panicking provider is recovered here
// so one misbehaving adapter cannot take down the fan-out.
func (d *Dispatcher) searchOne(ctx context.Context, idx int, p providers.Provider, params providers.SearchParams) (res providerResult) {
	pctx, cancel := context.WithTimeout(ctx, d.config.ProviderTimeout)
	defer cancel()

	source := p.Name()
	start := time.Now()

	res = providerResult{index: idx}

	defer func() {
		if r := recover(); r != nil {
			elapsed := time.Since(start).Seconds()
			d.logger.Error().Str("provider", source).Any("panic", r).Msg("provider panicked")
			if d.metrics != nil {
				d.metrics.RecordProviderSearchFailed(source, string(domain.StatusError), elapsed)
			}
			res = providerResult{
				index: idx,
				outcome: domain.ProviderOutcome{
					Name:            source,
					Status:          domain.StatusError,
					ResponseSeconds: elapsed,
					ErrorMessage:    fmt.Sprintf("panic: %v", r),
				},
			}
		}
	}()

	if d.metrics != nil {
		d.metrics.RecordProviderSearchStarted(source)
	}

	result, err := p.Search(pctx, params)
	elapsed := time.Since(start).Seconds()

	if err != nil {
		status := domain.StatusError
		if errors.Is(pctx.Err(), context.DeadlineExceeded) {
			status = domain.StatusTimeout
		}
		d.logger.Warn().
			Err(err).
			Str("provider", source).
			Str("status", string(status)).
			Float64("elapsed_seconds", elapsed).
			Msg("provider search failed")
		if d.metrics != nil {
			d.metrics.RecordProviderSearchFailed(source, string(status), elapsed)
		}
		res.outcome = domain.ProviderOutcome{
			Name:            source,
			Status:          status,
			ResponseSeconds: elapsed,
			ErrorMessage:    err.Error(),
		}
		return res
	}

	status := domain.StatusOK
	if result.Skipped > 0 {
		status = domain.StatusPartial
	}

	d.logger.Debug().
		Str("provider", source).
		Int("records", len(result.Records)).
		Int("skipped", result.Skipped).
		Float64("elapsed_seconds", elapsed).
		Msg("provider search completed")
	if d.metrics != nil {
		d.metrics.RecordProviderSearchCompleted(source, len(result.Records), elapsed)
	}

	res.records = result.Records
	res.outcome = domain.ProviderOutcome{
		Name:            source,
		Status:          status,
		ResultCount:     len(result.Records),
		ResponseSeconds: elapsed,
	}
	return res
}
