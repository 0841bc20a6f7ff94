package httpserver

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/stockanalysis/job-engine/internal/analysis"
	"github.com/stockanalysis/job-engine/internal/domain"
)

func toAnalysisConfig(req analyzeRequest) analysis.Config {
	cfg := analysis.DefaultConfig()
	if req.DataPeriod != "" {
		cfg.DataPeriod = req.DataPeriod
	}
	if req.RiskRewardRatio > 0 {
		cfg.RiskRewardRatio = req.RiskRewardRatio
	}
	if len(req.EnabledIndicators) > 0 {
		cfg.EnabledIndicators = req.EnabledIndicators
	}
	if w, ok := req.CategoryWeights["trend"]; ok {
		cfg.CategoryWeights.Trend = w
	}
	if w, ok := req.CategoryWeights["momentum"]; ok {
		cfg.CategoryWeights.Momentum = w
	}
	if w, ok := req.CategoryWeights["volatility"]; ok {
		cfg.CategoryWeights.Volatility = w
	}
	if w, ok := req.CategoryWeights["volume"]; ok {
		cfg.CategoryWeights.Volume = w
	}
	return cfg
}

// AnalyzeHandler creates a job for an explicit ticker list.
func (s *Server) AnalyzeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req analyzeRequest
		if err := decodeStrict(r, &req); err != nil {
			writeError(w, err, nil, "INVALID_REQUEST")
			return
		}
		if err := getValidator().Struct(req); err != nil {
			writeError(w, fmt.Errorf("%w: request failed validation", domain.ErrValidation), validationDetails(err), "VALIDATION_ERROR")
			return
		}
		if err := validateTickers(req.Tickers); err != nil {
			writeError(w, err, nil, "INVALID_TICKER")
			return
		}

		jobID, err := s.Controller.Submit(r.Context(), req.Tickers, domain.SourceWatchlist, toAnalysisConfig(req), req.Description)
		if err != nil {
			s.writeSubmitError(w, r, err, "ANALYSIS_ERROR")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"job_id": jobID, "status": string(domain.JobQueued), "total": len(req.Tickers)})
	}
}

// AnalyzeAllHandler creates a bulk job, resolving the universe when symbols
// is empty.
func (s *Server) AnalyzeAllHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req analyzeAllRequest
		if r.ContentLength > 0 {
			if err := decodeStrict(r, &req); err != nil {
				writeError(w, err, nil, "INVALID_REQUEST")
				return
			}
		}
		if err := getValidator().Struct(req); err != nil {
			writeError(w, fmt.Errorf("%w: request failed validation", domain.ErrValidation), validationDetails(err), "VALIDATION_ERROR")
			return
		}
		if err := validateTickers(req.Symbols); err != nil {
			writeError(w, err, nil, "INVALID_TICKER")
			return
		}

		jobID, err := s.Controller.Submit(r.Context(), req.Symbols, domain.SourceBulk, analysis.DefaultConfig(), "")
		if err != nil {
			s.writeSubmitError(w, r, err, "BULK_ANALYSIS_ERROR")
			return
		}
		total, err := s.Jobs.Status(r.Context(), jobID)
		if err != nil {
			writeInternalError(w, "BULK_ANALYSIS_ERROR")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"job_id": jobID, "status": string(domain.JobQueued), "total": total.Total})
	}
}

func (s *Server) writeSubmitError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	if fallbackCode, ok := submitErrorCode(err); ok {
		writeError(w, err, nil, fallbackCode)
		return
	}
	LoggerFrom(r).Error("submit failed", slog.Any("error", err))
	writeInternalError(w, fallback)
}

func submitErrorCode(err error) (string, bool) {
	status, code := classify(err, "")
	if status == http.StatusInternalServerError {
		return "", false
	}
	return code, true
}

// jobStatusView is the wire shape of a job status response.
type jobStatusView struct {
	JobID         string  `json:"job_id"`
	Status        string  `json:"status"`
	Progress      int     `json:"progress"`
	Completed     int     `json:"completed"`
	Total         int     `json:"total"`
	Successful    int     `json:"successful"`
	Errors        string  `json:"errors"`
	CurrentIndex  *int    `json:"current_index"`
	CurrentTicker *string `json:"current_ticker"`
	Message       string  `json:"message"`
	CreatedAt     string  `json:"created_at"`
	UpdatedAt     string  `json:"updated_at"`
	StartedAt     *string `json:"started_at"`
	CompletedAt   *string `json:"completed_at"`
}

func toJobStatusView(j domain.Job) jobStatusView {
	errsJSON, _ := json.Marshal(j.Errors)
	v := jobStatusView{
		JobID:         j.ID,
		Status:        string(j.Status),
		Progress:      j.Progress(),
		Completed:     j.Completed,
		Total:         j.Total,
		Successful:    j.Successful,
		Errors:        string(errsJSON),
		CurrentIndex:  j.CurrentIndex,
		CurrentTicker: j.CurrentTicker,
		Message:       j.Message,
		CreatedAt:     j.CreatedAt.Format(isoFormat),
		UpdatedAt:     j.UpdatedAt.Format(isoFormat),
	}
	if j.StartedAt != nil {
		s := j.StartedAt.Format(isoFormat)
		v.StartedAt = &s
	}
	if j.CompletedAt != nil {
		s := j.CompletedAt.Format(isoFormat)
		v.CompletedAt = &s
	}
	return v
}

const isoFormat = "2006-01-02T15:04:05Z07:00"

// StatusHandler returns the enriched job record.
func (s *Server) StatusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID := chi.URLParam(r, "jobID")
		job, err := s.Jobs.Status(r.Context(), jobID)
		if err != nil {
			writeError(w, err, map[string]string{"job_id": jobID}, "STATUS_ERROR")
			return
		}
		writeJSON(w, http.StatusOK, toJobStatusView(job))
	}
}

// CancelHandler requests cancellation of a job.
func (s *Server) CancelHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID := chi.URLParam(r, "jobID")
		if err := s.Controller.Cancel(r.Context(), jobID); err != nil {
			writeError(w, err, map[string]string{"job_id": jobID}, "STATUS_ERROR")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"job_id": jobID, "cancel_requested": true})
	}
}

// HistoryHandler returns paged results for one ticker.
func (s *Server) HistoryHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ticker := chi.URLParam(r, "ticker")
		page, err := parsePageParams(r)
		if err != nil {
			writeError(w, err, nil, "VALIDATION_ERROR")
			return
		}

		results, total, err := s.Results.HistoryPaged(r.Context(), ticker, page.offset(), page.PerPage, true)
		if err != nil {
			writeError(w, err, nil, "HISTORY_ERROR")
			return
		}

		history := make([]map[string]any, 0, len(results))
		for _, res := range results {
			var raw map[string]any
			_ = json.Unmarshal(res.RawData, &raw)
			history = append(history, map[string]any{
				"id":            res.ID,
				"ticker":        res.Ticker,
				"symbol":        res.Symbol,
				"analysis_data": raw,
				"created_at":    res.CreatedAt.Format(isoFormat),
				"job_id":        res.JobID,
			})
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"ticker":     ticker,
			"history":    history,
			"pagination": buildPagination(page, total),
			"meta":       map[string]any{"sort": "created_at", "order": "desc"},
		})
	}
}
