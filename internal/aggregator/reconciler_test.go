package aggregator

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itsbakr/minerva-library/internal/domain"
)

func newTestReconciler() *Reconciler {
	return NewReconciler(ReconcilerConfig{}, zerolog.Nop())
}

func TestReconciler_Reconcile(t *testing.T) {
	t.Run("merges doi variants into one record", func(t *testing.T) {
		r := newTestReconciler()
		records := []domain.Record{
			{ID: "a", Title: "CRISPR Screens", Source: domain.SourceCrossRef, DOI: "10.1/X"},
			{ID: "b", Title: "CRISPR Screens", Source: domain.SourceOpenAlex, DOI: "https://doi.org/10.1/X"},
			{ID: "c", Title: "CRISPR Screens", Source: domain.SourcePMC, DOI: "HTTPS://DX.DOI.ORG/10.1/x"},
		}

		merged := r.Reconcile(records)

		require.Len(t, merged, 1)
		assert.Equal(t, "10.1/x", merged[0].DOI)
		assert.Equal(t, "OpenAlex+CrossRef+PMC", merged[0].Source)
	})

	t.Run("distinct dois stay separate", func(t *testing.T) {
		r := newTestReconciler()
		records := []domain.Record{
			{ID: "a", Title: "Same Title", Source: domain.SourceCrossRef, DOI: "10.1/a"},
			{ID: "b", Title: "Same Title", Source: domain.SourceOpenAlex, DOI: "10.1/b"},
		}

		merged := r.Reconcile(records)
		assert.Len(t, merged, 2)
	})

	t.Run("trailing punctuation merges via exact normalized title", func(t *testing.T) {
		r := newTestReconciler()
		records := []domain.Record{
			{ID: "a", Title: "Climate Change and Agriculture", Source: domain.SourceDOAJ},
			{ID: "b", Title: "Climate Change and Agriculture.", Source: domain.SourceArXiv},
		}

		merged := r.Reconcile(records)

		require.Len(t, merged, 1)
		assert.Equal(t, "arXiv+DOAJ", merged[0].Source)
	})

	t.Run("small typo merges via fuzzy title match", func(t *testing.T) {
		r := newTestReconciler()
		records := []domain.Record{
			{ID: "a", Title: "Climate Change Adaptation", Source: domain.SourceDOAJ},
			{ID: "b", Title: "Climate Change Adaptatio", Source: domain.SourceBioRxiv},
		}

		merged := r.Reconcile(records)
		assert.Len(t, merged, 1)
	})

	t.Run("dissimilar titles do not merge", func(t *testing.T) {
		r := newTestReconciler()
		records := []domain.Record{
			{ID: "a", Title: "Climate Change and Agriculture", Source: domain.SourceDOAJ},
			{ID: "b", Title: "Climate Variability and Agriculture", Source: domain.SourceBioRxiv},
		}

		merged := r.Reconcile(records)
		assert.Len(t, merged, 2)
	})

	t.Run("title grouping never crosses the doi boundary", func(t *testing.T) {
		// A DOI-bearing record and a DOI-less record with the same title
		// stay separate; only DOI-less records join title groups.
		r := newTestReconciler()
		records := []domain.Record{
			{ID: "a", Title: "Soil Microbiomes", Source: domain.SourceCrossRef, DOI: "10.1/soil"},
			{ID: "b", Title: "Soil Microbiomes", Source: domain.SourceDOAJ},
		}

		merged := r.Reconcile(records)
		assert.Len(t, merged, 2)
	})

	t.Run("records without doi or usable title pass through", func(t *testing.T) {
		r := newTestReconciler()
		records := []domain.Record{
			{ID: "a", Title: domain.PlaceholderTitle, Source: domain.SourceCrossRef},
			{ID: "b", Title: domain.PlaceholderTitle, Source: domain.SourceOpenAlex},
			{ID: "c", Title: "", Source: domain.SourceDOAJ},
		}

		merged := r.Reconcile(records)
		assert.Len(t, merged, 3)
	})

	t.Run("reconcile is idempotent", func(t *testing.T) {
		r := newTestReconciler()
		records := []domain.Record{
			{ID: "a", Title: "Quantum Error Correction", Source: domain.SourceOpenAlex, DOI: "10.2/qec"},
			{ID: "b", Title: "Quantum Error Correction", Source: domain.SourceCrossRef, DOI: "doi:10.2/qec"},
			{ID: "c", Title: "Tensor Network Methods", Source: domain.SourceArXiv},
			{ID: "d", Title: "Tensor Network Methods.", Source: domain.SourceBioRxiv},
			{ID: "e", Title: domain.PlaceholderTitle, Source: domain.SourceDOAJ},
		}

		once := r.Reconcile(records)
		require.Len(t, once, 3)

		twice := r.Reconcile(once)
		assert.Equal(t, once, twice)
	})

	t.Run("custom similarity threshold is honored", func(t *testing.T) {
		strict := NewReconciler(ReconcilerConfig{TitleSimilarityThreshold: 0.999}, zerolog.Nop())
		records := []domain.Record{
			{ID: "a", Title: "Climate Change Adaptation", Source: domain.SourceDOAJ},
			{ID: "b", Title: "Climate Change Adaptatio", Source: domain.SourceBioRxiv},
		}

		merged := strict.Reconcile(records)
		assert.Len(t, merged, 2)
	})
}
