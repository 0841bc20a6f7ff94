package jobstore

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/stockanalysis/job-engine/internal/domain"
)

func translateNotFound(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) || errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrJobNotFound
	}
	return err
}

// isUniqueViolation detects a unique-constraint violation across both
// backends: pgx surfaces a structured PgError, the SQLite driver reports it
// via the error message.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}
