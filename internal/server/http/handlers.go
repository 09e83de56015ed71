package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/itsbakr/minerva-library/internal/domain"
	"github.com/itsbakr/minerva-library/internal/providers"
	"github.com/itsbakr/minerva-library/internal/repository"
)

// Parameter defaults and bounds.
const (
	defaultPage         = 1
	defaultPerPage      = 20
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100

	// historyWriteTimeout bounds the detached best-effort history insert.
	historyWriteTimeout = 5 * time.Second
)

// searchRequest holds the parsed and validated search query parameters.
type searchRequest struct {
	Query          string `validate:"required,max=500"`
	Page           int    `validate:"gte=1"`
	PerPage        int    `validate:"gte=1,lte=100"`
	YearMin        int    `validate:"omitempty,gte=1000,lte=2100"`
	YearMax        int    `validate:"omitempty,gte=1000,lte=2100,gtefield=YearMin"`
	OpenAccessOnly bool
}

// searchHandler handles GET /api/search.
// It runs the aggregation pipeline and records the search to history
// (best effort, failures are logged only).
func (s *Server) searchHandler(w http.ResponseWriter, r *http.Request) {
	req, ok := s.parseSearchRequest(w, r)
	if !ok {
		return
	}

	params := providers.SearchParams{
		Query:          req.Query,
		Page:           req.Page,
		PerPage:        req.PerPage,
		YearMin:        req.YearMin,
		YearMax:        req.YearMax,
		OpenAccessOnly: req.OpenAccessOnly,
	}

	start := time.Now()
	result := s.engine.Search(r.Context(), params)
	elapsed := time.Since(start)

	if s.historyRepo != nil {
		entry := domain.NewSearchHistory(req.Query, domain.SearchFilters{
			Page:           req.Page,
			PerPage:        req.PerPage,
			YearMin:        req.YearMin,
			YearMax:        req.YearMax,
			OpenAccessOnly: req.OpenAccessOnly,
		})
		entry.ResultsCount = result.TotalCount
		entry.SearchTime = elapsed
		entry.DatabasesSearched = result.ProviderNames
		entry.ClientIP = clientIP(r)

		// Detached from the request context so a client disconnect does not
		// lose the record.
		go s.recordSearchHistory(entry)
	}

	writeJSON(w, http.StatusOK, aggregatorResultToResponse(req.Query, result, elapsed))
}

// parseSearchRequest extracts and validates search parameters, writing a 400
// response on any violation.
func (s *Server) parseSearchRequest(w http.ResponseWriter, r *http.Request) (searchRequest, bool) {
	q := r.URL.Query()

	req := searchRequest{
		Query:   q.Get("q"),
		Page:    defaultPage,
		PerPage: defaultPerPage,
	}

	var ok bool
	if req.Page, ok = parseIntParam(w, q.Get("page"), "page", defaultPage); !ok {
		return req, false
	}
	if req.PerPage, ok = parseIntParam(w, q.Get("per_page"), "per_page", defaultPerPage); !ok {
		return req, false
	}
	if req.YearMin, ok = parseIntParam(w, q.Get("year_min"), "year_min", 0); !ok {
		return req, false
	}
	if req.YearMax, ok = parseIntParam(w, q.Get("year_max"), "year_max", 0); !ok {
		return req, false
	}
	if oa := q.Get("open_access_only"); oa != "" {
		parsed, err := strconv.ParseBool(oa)
		if err != nil {
			writeError(w, http.StatusBadRequest, "open_access_only must be a boolean")
			return req, false
		}
		req.OpenAccessOnly = parsed
	}

	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return req, false
	}

	return req, true
}

// historyHandler handles GET /api/history.
// It returns the most recent searches, newest first.
func (s *Server) historyHandler(w http.ResponseWriter, r *http.Request) {
	if s.historyRepo == nil {
		writeError(w, http.StatusServiceUnavailable, "search history unavailable")
		return
	}

	limit, ok := parseIntParam(w, r.URL.Query().Get("limit"), "limit", defaultHistoryLimit)
	if !ok {
		return
	}
	if limit < 1 {
		writeError(w, http.StatusBadRequest, "limit must be at least 1")
		return
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	filter := repository.HistoryFilter{
		QueryContains: r.URL.Query().Get("q"),
		Limit:         limit,
	}

	entries, total, err := s.historyRepo.Recent(r.Context(), filter)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	searches := make([]historyEntryResponse, len(entries))
	for i, entry := range entries {
		searches[i] = domainHistoryToResponse(entry)
	}

	writeJSON(w, http.StatusOK, historyResponse{
		Searches:   searches,
		TotalCount: int(total),
	})
}

// statsHandler handles GET /api/stats.
// It returns aggregate counters over all persisted searches.
func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	if s.historyRepo == nil {
		writeError(w, http.StatusServiceUnavailable, "search history unavailable")
		return
	}

	stats, err := s.historyRepo.Stats(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, domainStatsToResponse(stats))
}

// recordSearchHistory persists one history entry with its own bounded context.
func (s *Server) recordSearchHistory(entry *domain.SearchHistory) {
	ctx, cancel := context.WithTimeout(context.Background(), historyWriteTimeout)
	defer cancel()

	if err := s.historyRepo.Record(ctx, entry); err != nil {
		s.logger.Warn().Err(err).Str("query", entry.Query).Msg("failed to record search history")
		if s.metrics != nil {
			s.metrics.RecordHistoryWriteFailed()
		}
		return
	}
	if s.metrics != nil {
		s.metrics.RecordHistoryWrite()
	}
}

// writeDomainError maps domain errors to appropriate HTTP status codes and
// writes a JSON error response. Internal error details are not leaked to clients.
func writeDomainError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "resource not found")
	case errors.Is(err, domain.ErrInvalidInput):
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			writeError(w, http.StatusBadRequest, ve.Error())
		} else {
			writeError(w, http.StatusBadRequest, "invalid input")
		}
	case errors.Is(err, domain.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "rate limited")
	case errors.Is(err, domain.ErrServiceUnavailable):
		writeError(w, http.StatusServiceUnavailable, "service unavailable")
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// parseIntParam parses an optional integer query parameter, writing a 400
// error response if the value is present but malformed.
func parseIntParam(w http.ResponseWriter, value, name string, fallback int) (int, bool) {
	if value == "" {
		return fallback, true
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("%s must be an integer", name))
		return 0, false
	}
	return parsed, true
}

// validationMessage renders the first validation failure as a client-facing message.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		switch fe.Field() {
		case "Query":
			if fe.Tag() == "required" {
				return "q is required"
			}
			return "q is too long"
		case "Page":
			return "page must be at least 1"
		case "PerPage":
			return "per_page must be between 1 and 100"
		case "YearMin", "YearMax":
			return "year bounds must be sane (1000..2100, year_max >= year_min)"
		}
	}
	return "invalid search parameters"
}
