package httpserver

import "net/http"

// StocksAllHandler returns the paged read-only ticker catalogue (spec
// §4.8: GET /api/stocks/all).
func (s *Server) StocksAllHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := parsePageParams(r)
		if err != nil {
			writeError(w, err, nil, "VALIDATION_ERROR")
			return
		}

		stocks, total, err := s.Stocks.List(r.Context(), page.offset(), page.PerPage)
		if err != nil {
			writeError(w, err, nil, "STOCK_LOOKUP_ERROR")
			return
		}

		out := make([]map[string]any, 0, len(stocks))
		for _, st := range stocks {
			out = append(out, map[string]any{
				"ticker": st.Ticker,
				"symbol": st.Symbol,
				"name":   st.Name,
				"sector": st.Sector,
			})
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"stocks":     out,
			"pagination": buildPagination(page, total),
			"meta":       map[string]any{"sort": "ticker", "order": "asc"},
		})
	}
}
