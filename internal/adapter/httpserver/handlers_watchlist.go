package httpserver

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/stockanalysis/job-engine/internal/domain"
	"github.com/stockanalysis/job-engine/internal/textsan"
)

const maxWatchlistNoteLen = 500

// WatchlistListHandler returns a paged watchlist.
func (s *Server) WatchlistListHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := parsePageParams(r)
		if err != nil {
			writeError(w, err, nil, "VALIDATION_ERROR")
			return
		}

		items, total, err := s.Watchlist.List(r.Context(), page.offset(), page.PerPage)
		if err != nil {
			writeInternalError(w, "WATCHLIST_NOT_FOUND")
			return
		}

		out := make([]map[string]any, 0, len(items))
		for _, item := range items {
			out = append(out, map[string]any{
				"id":         item.ID,
				"ticker":     item.Ticker,
				"symbol":     item.Symbol,
				"notes":      item.Notes,
				"created_at": item.CreatedAt.Format(isoFormat),
			})
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"watchlist":  out,
			"count":      total,
			"pagination": buildPagination(page, total),
		})
	}
}

// WatchlistAddHandler adds a ticker to the watchlist. Notes are sanitized
// before persistence (internal/textsan).
func (s *Server) WatchlistAddHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req watchlistAddRequest
		if err := decodeStrict(r, &req); err != nil {
			writeError(w, err, nil, "INVALID_REQUEST")
			return
		}
		if err := getValidator().Struct(req); err != nil {
			writeError(w, fmt.Errorf("%w: request failed validation", domain.ErrValidation), validationDetails(err), "VALIDATION_ERROR")
			return
		}
		if err := validateTickers([]string{req.Ticker}); err != nil {
			writeError(w, err, nil, "INVALID_TICKER")
			return
		}

		item := domain.WatchlistItem{
			Ticker: req.Ticker,
			Symbol: req.Symbol,
			Notes:  textsan.SanitizeNotes(req.Notes, maxWatchlistNoteLen),
		}
		id, err := s.Watchlist.Add(r.Context(), item)
		if err != nil {
			writeError(w, err, map[string]string{"ticker": req.Ticker}, "WATCHLIST_DUPLICATE")
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"id": id, "ticker": req.Ticker})
	}
}

// WatchlistRemoveHandler removes a ticker from the watchlist.
func (s *Server) WatchlistRemoveHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ticker := chi.URLParam(r, "ticker")
		if err := s.Watchlist.Remove(r.Context(), ticker); err != nil {
			writeError(w, err, map[string]string{"ticker": ticker}, "WATCHLIST_NOT_FOUND")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
