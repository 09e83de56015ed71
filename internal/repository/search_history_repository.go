package repository

import (
	"context"
	"time"

	"github.com/itsbakr/minerva-library/internal/domain"
)

// SearchHistoryRepository handles persistence of completed searches.
// Every API search is recorded after the response is assembled; the history
// and stats endpoints read the records back.
type SearchHistoryRepository interface {
	// Record persists one completed search.
	// Missing ID and CreatedAt fields are filled in before the insert.
	Record(ctx context.Context, entry *domain.SearchHistory) error

	// Recent retrieves history entries matching the filter criteria,
	// most recent first. Returns the matching entries and total count
	// for pagination.
	Recent(ctx context.Context, filter HistoryFilter) ([]*domain.SearchHistory, int64, error)

	// Stats computes the aggregate over all persisted searches.
	// An empty table yields zero-valued stats with a nil LastSearchAt.
	Stats(ctx context.Context) (*domain.SearchStats, error)
}

// HistoryFilter specifies criteria for listing history entries via
// SearchHistoryRepository.Recent.
type HistoryFilter struct {
	// QueryContains filters to entries whose query contains this substring (optional).
	// The match is case-insensitive.
	QueryContains string

	// Since filters to entries created after this timestamp (optional).
	Since *time.Time

	// Limit specifies maximum number of results (default: 100, max: 1000).
	Limit int

	// Offset specifies the starting position for pagination.
	Offset int
}

// Validate checks if the filter has valid values and sets defaults.
func (f *HistoryFilter) Validate() error {
	applyPaginationDefaults(&f.Limit, &f.Offset)
	return nil
}
