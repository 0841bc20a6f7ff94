package httpserver

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/stockanalysis/job-engine/internal/domain"
)

// pageParams is the parsed page/per_page pair ("per_page range
// 1..100, default 20; page >= 1, default 1; invalid values yield
// VALIDATION_ERROR").
type pageParams struct {
	Page    int
	PerPage int
}

func parsePageParams(r *http.Request) (pageParams, error) {
	page := 1
	perPage := 20

	if v := r.URL.Query().Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return pageParams{}, fmt.Errorf("%w: page must be a positive integer", domain.ErrValidation)
		}
		page = n
	}
	if v := r.URL.Query().Get("per_page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 100 {
			return pageParams{}, fmt.Errorf("%w: per_page must be between 1 and 100", domain.ErrValidation)
		}
		perPage = n
	}
	return pageParams{Page: page, PerPage: perPage}, nil
}

func (p pageParams) offset() int { return (p.Page - 1) * p.PerPage }

type paginationEnvelope struct {
	Page       int  `json:"page"`
	PerPage    int  `json:"per_page"`
	Total      int64 `json:"total"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
	HasPrev    bool `json:"has_prev"`
}

func buildPagination(p pageParams, total int64) paginationEnvelope {
	totalPages := int(total) / p.PerPage
	if int(total)%p.PerPage != 0 {
		totalPages++
	}
	if totalPages == 0 {
		totalPages = 1
	}
	return paginationEnvelope{
		Page:       p.Page,
		PerPage:    p.PerPage,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    p.Page < totalPages,
		HasPrev:    p.Page > 1,
	}
}
