package aggregator

import (
	"github.com/rs/zerolog"

	"github.com/itsbakr/minerva-library/internal/domain"
)

// DefaultTitleSimilarityThreshold is the minimum normalized-title similarity
// ratio at which two DOI-less records are considered the same work.
const DefaultTitleSimilarityThreshold = 0.92

// ReconcilerConfig configures deduplication.
type ReconcilerConfig struct {
	// TitleSimilarityThreshold is the fuzzy-title merge cutoff in (0,1].
	// Defaults to 0.92.
	TitleSimilarityThreshold float64
}

// applyDefaults sets default values for unset configuration fields.
func (c *ReconcilerConfig) applyDefaults() {
	if c.TitleSimilarityThreshold == 0 {
		c.TitleSimilarityThreshold = DefaultTitleSimilarityThreshold
	}
}

// Reconciler collapses records describing the same work into one merged
// record. DOI is the primary dedup key; DOI-less records fall back to
// normalized-title matching, exact first and then fuzzy against every
// previously seen title. Records with neither a usable DOI nor a usable title
// pass through unmerged.
//
// The fuzzy scan is O(n^2) in record count, which is fine at per-query result
// volumes of tens to low hundreds.
type Reconciler struct {
	config ReconcilerConfig
	logger zerolog.Logger
}

// NewReconciler creates a reconciler with the given configuration.
func NewReconciler(cfg ReconcilerConfig, logger zerolog.Logger) *Reconciler {
	cfg.applyDefaults()

	return &Reconciler{
		config: cfg,
		logger: logger.With().Str("component", "reconciler").Logger(),
	}
}

// titleEntry remembers one title group's normalized key and output slot for
// the fuzzy scan.
type titleEntry struct {
	norm string
	idx  int
}

// Reconcile merges duplicate records, strictly reducing or preserving
// cardinality. Merging is a left fold in first-seen order, so the output is
// deterministic for a given input sequence. Reconciling an already-reconciled
// set is a no-op.
func (r *Reconciler) Reconcile(records []domain.Record) []domain.Record {
	if len(records) <= 1 {
		return records
	}

	out := make([]domain.Record, 0, len(records))
	doiIndex := make(map[string]int)
	titleIndex := make(map[string]int)
	var titles []titleEntry

	for _, rec := range records {
		if doi := domain.NormalizeDOI(rec.DOI); doi != "" {
			if idx, ok := doiIndex[doi]; ok {
				out[idx] = mergeRecords(out[idx], rec)
				continue
			}
			doiIndex[doi] = len(out)
			out = append(out, rec)
			continue
		}

		norm := domain.NormalizeTitle(rec.Title)
		if norm == "" {
			// No DOI and no usable title, cannot be confidently
			// deduplicated.
			out = append(out, rec)
			continue
		}

		if idx, ok := titleIndex[norm]; ok {
			out[idx] = mergeRecords(out[idx], rec)
			continue
		}

		if idx, ok := r.bestTitleMatch(norm, titles); ok {
			out[idx] = mergeRecords(out[idx], rec)
			continue
		}

		titleIndex[norm] = len(out)
		titles = append(titles, titleEntry{norm: norm, idx: len(out)})
		out = append(out, rec)
	}

	if merged := len(records) - len(out); merged > 0 {
		r.logger.Debug().
			Int("input", len(records)).
			Int("output", len(out)).
			Int("merged", merged).
			Msg("records deduplicated")
	}
	return out
}

// bestTitleMatch scans every previously seen title group and returns the slot
// of the most similar one, if any clears the threshold.
func (r *Reconciler) bestTitleMatch(norm string, titles []titleEntry) (int, bool) {
	bestIdx := -1
	bestRatio := 0.0
	for _, t := range titles {
		if ratio := similarityRatio(norm, t.norm); ratio >= r.config.TitleSimilarityThreshold && ratio > bestRatio {
			bestIdx = t.idx
			bestRatio = ratio
		}
	}
	return bestIdx, bestIdx >= 0
}
