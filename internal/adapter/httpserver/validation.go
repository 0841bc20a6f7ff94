package httpserver

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/stockanalysis/job-engine/internal/domain"
)

// analyzeRequest mirrors the recognized analysis-request fields.
// Unknown fields are rejected via DisallowUnknownFields.
type analyzeRequest struct {
	Tickers            []string           `json:"tickers" validate:"required,min=1,max=100,dive,required"`
	Capital            float64            `json:"capital" validate:"omitempty,gt=0,lte=10000000"`
	StrategyID         int                `json:"strategy_id" validate:"omitempty"`
	RiskPercent        float64            `json:"risk_percent" validate:"omitempty,gte=0.5,lte=5"`
	PositionSizeLimit  float64            `json:"position_size_limit" validate:"omitempty,gte=5,lte=50"`
	RiskRewardRatio    float64            `json:"risk_reward_ratio" validate:"omitempty,gte=1,lte=3"`
	DataPeriod         string             `json:"data_period" validate:"omitempty,oneof=1mo 3mo 6mo 1y 2y 5y"`
	UseDemoData        bool               `json:"use_demo_data"`
	EnabledIndicators  map[string]bool    `json:"enabled_indicators" validate:"omitempty"`
	CategoryWeights    map[string]float64 `json:"category_weights" validate:"omitempty"`
	Description        string             `json:"description" validate:"omitempty,max=500"`
}

// analyzeAllRequest is the bulk variant ("Bulk job with optional
// symbols (empty => universe)").
type analyzeAllRequest struct {
	Symbols []string `json:"symbols" validate:"omitempty,dive,required"`
}

// watchlistAddRequest is the watchlist-create body.
type watchlistAddRequest struct {
	Ticker string `json:"ticker" validate:"required"`
	Symbol string `json:"symbol" validate:"omitempty"`
	Notes  string `json:"notes" validate:"omitempty,max=2000"`
}

// decodeStrict decodes JSON into dst, rejecting unknown fields. Malformed
// JSON, an empty body, or an unrecognized field is a distinct failure mode
// from struct-tag validation (ErrInvalidRequest, not ErrValidation): the
// request never reached the point of having well-typed fields to validate.
func decodeStrict(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if err == io.EOF {
			return fmt.Errorf("%w: empty request body", domain.ErrInvalidRequest)
		}
		return fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err)
	}
	return nil
}

// tickerPattern accepts the uppercase-alnum symbols this catalogue uses,
// optionally suffixed with a dot-separated exchange code (e.g. "RELIANCE.NS").
var tickerPattern = regexp.MustCompile(`^[A-Z0-9]{1,15}(\.[A-Z]{1,4})?$`)

// validateTickers rejects a ticker list containing anything that isn't a
// plausible symbol, distinct from (and checked after) the struct-tag
// required/min/max rules: a present-but-malformed ticker like "aapl!!" or
// "123-456" passes those and needs its own error code.
func validateTickers(tickers []string) error {
	for _, t := range tickers {
		if !tickerPattern.MatchString(t) {
			return fmt.Errorf("%w: %q", domain.ErrInvalidTicker, t)
		}
	}
	return nil
}

// validationDetails converts go-playground/validator errors into the
// details.validation_errors shape used for VALIDATION_ERROR responses.
func validationDetails(err error) map[string]any {
	ve, ok := err.(validator.ValidationErrors)
	if !ok {
		return nil
	}
	out := make([]map[string]string, 0, len(ve))
	for _, fe := range ve {
		out = append(out, map[string]string{
			"field": strings.ToLower(fe.Field()),
			"rule":  fe.Tag(),
		})
	}
	return map[string]any{"validation_errors": out}
}
