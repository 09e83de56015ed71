package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/itsbakr/minerva-library/internal/domain"
)

// Compile-time interface verification.
var _ SearchHistoryRepository = (*PgSearchHistoryRepository)(nil)

// PgSearchHistoryRepository is a PostgreSQL implementation of SearchHistoryRepository.
type PgSearchHistoryRepository struct {
	db DBTX
}

// NewPgSearchHistoryRepository creates a new PostgreSQL search history repository.
func NewPgSearchHistoryRepository(db DBTX) *PgSearchHistoryRepository {
	return &PgSearchHistoryRepository{db: db}
}

// Record persists one completed search.
func (r *PgSearchHistoryRepository) Record(ctx context.Context, entry *domain.SearchHistory) error {
	if entry == nil {
		return domain.NewValidationError("entry", "entry cannot be nil")
	}
	if strings.TrimSpace(entry.Query) == "" {
		return domain.NewValidationError("query", "query cannot be empty")
	}

	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	filtersJSON, err := json.Marshal(entry.Filters)
	if err != nil {
		return fmt.Errorf("failed to marshal filters: %w", err)
	}

	databases := entry.DatabasesSearched
	if databases == nil {
		databases = []string{}
	}
	databasesJSON, err := json.Marshal(databases)
	if err != nil {
		return fmt.Errorf("failed to marshal databases searched: %w", err)
	}

	query := `
		INSERT INTO search_history (
			id, query, filters, results_count, search_time_ms,
			databases_searched, client_ip, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err = r.db.Exec(ctx, query,
		entry.ID,
		entry.Query,
		filtersJSON,
		entry.ResultsCount,
		entry.SearchTime.Milliseconds(),
		databasesJSON,
		entry.ClientIP,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record search history: %w", err)
	}

	return nil
}

// Recent retrieves history entries matching the filter criteria.
func (r *PgSearchHistoryRepository) Recent(ctx context.Context, filter HistoryFilter) ([]*domain.SearchHistory, int64, error) {
	if err := filter.Validate(); err != nil {
		return nil, 0, err
	}

	// Build dynamic WHERE clause
	var conditions []string
	var args []interface{}
	argIndex := 1

	if filter.QueryContains != "" {
		conditions = append(conditions, fmt.Sprintf("query ILIKE $%d", argIndex))
		// Escape LIKE special characters to prevent pattern injection.
		escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(filter.QueryContains)
		args = append(args, "%"+escaped+"%")
		argIndex++
	}

	if filter.Since != nil {
		conditions = append(conditions, fmt.Sprintf("created_at > $%d", argIndex))
		args = append(args, *filter.Since)
		argIndex++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	// Count total matching records
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM search_history %s", whereClause)
	var totalCount int64
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("failed to count history entries: %w", err)
	}

	// Query with pagination
	selectQuery := fmt.Sprintf(`
		SELECT id, query, filters, results_count, search_time_ms,
			databases_searched, client_ip, created_at
		FROM search_history
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`,
		whereClause, argIndex, argIndex+1)

	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.Query(ctx, selectQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list history entries: %w", err)
	}
	defer rows.Close()

	entries := make([]*domain.SearchHistory, 0, filter.Limit)
	for rows.Next() {
		entry, err := scanSearchHistoryFromRows(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan history entry: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating history entries: %w", err)
	}

	return entries, totalCount, nil
}

// Stats computes the aggregate over all persisted searches.
func (r *PgSearchHistoryRepository) Stats(ctx context.Context) (*domain.SearchStats, error) {
	query := `
		SELECT COUNT(*),
			COALESCE(AVG(results_count), 0),
			COALESCE(AVG(search_time_ms), 0),
			COUNT(DISTINCT query),
			MAX(created_at)
		FROM search_history`

	var stats domain.SearchStats
	var avgSearchTimeMs float64
	var lastSearchAt *time.Time

	err := r.db.QueryRow(ctx, query).Scan(
		&stats.TotalSearches,
		&stats.AverageResults,
		&avgSearchTimeMs,
		&stats.DistinctQueries,
		&lastSearchAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &domain.SearchStats{}, nil
		}
		return nil, fmt.Errorf("failed to compute search stats: %w", err)
	}

	stats.AverageSearchTime = time.Duration(avgSearchTimeMs * float64(time.Millisecond))
	stats.LastSearchAt = lastSearchAt

	return &stats, nil
}

// searchHistoryScanDest holds the destination pointers for scanning a SearchHistory row.
type searchHistoryScanDest struct {
	entry         domain.SearchHistory
	filtersJSON   []byte
	databasesJSON []byte
	searchTimeMs  int64
}

// destinations returns the slice of pointers for Scan operations.
func (d *searchHistoryScanDest) destinations() []interface{} {
	return []interface{}{
		&d.entry.ID, &d.entry.Query, &d.filtersJSON, &d.entry.ResultsCount,
		&d.searchTimeMs, &d.databasesJSON, &d.entry.ClientIP, &d.entry.CreatedAt,
	}
}

// finalize unmarshals the JSON columns and converts stored milliseconds.
func (d *searchHistoryScanDest) finalize() (*domain.SearchHistory, error) {
	if len(d.filtersJSON) > 0 {
		if err := json.Unmarshal(d.filtersJSON, &d.entry.Filters); err != nil {
			return nil, fmt.Errorf("failed to unmarshal filters: %w", err)
		}
	}
	if len(d.databasesJSON) > 0 {
		if err := json.Unmarshal(d.databasesJSON, &d.entry.DatabasesSearched); err != nil {
			return nil, fmt.Errorf("failed to unmarshal databases searched: %w", err)
		}
	}
	d.entry.SearchTime = time.Duration(d.searchTimeMs) * time.Millisecond
	return &d.entry, nil
}

// scanSearchHistoryFromRows scans the current row from pgx.Rows into a SearchHistory.
func scanSearchHistoryFromRows(rows pgx.Rows) (*domain.SearchHistory, error) {
	var dest searchHistoryScanDest
	if err := rows.Scan(dest.destinations()...); err != nil {
		return nil, err
	}
	return dest.finalize()
}
