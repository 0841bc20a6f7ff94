// Package stockstore implements the stocks catalogue: a read-only universe
// of recognized tickers, seeded at startup from a YAML fixture.
package stockstore

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/stockanalysis/job-engine/internal/domain"
	"github.com/stockanalysis/job-engine/internal/platform/storage"
	"github.com/stockanalysis/job-engine/internal/sqlrewrite"
)

type Store struct {
	db storage.DB
}

func New(db storage.DB) *Store { return &Store{db: db} }

var _ domain.StockRepository = (*Store)(nil)

func (s *Store) rewrite(template string, args []any) (string, []any, error) {
	return sqlrewrite.Rewrite(template, args, storage.RewriteDialect(s.db.Dialect()))
}

// List returns a page of the catalogue plus the total count.
func (s *Store) List(ctx context.Context, offset, limit int) ([]domain.Stock, int64, error) {
	sql, args, err := s.rewrite(
		`SELECT ticker, symbol, name, sector FROM stocks ORDER BY ticker ASC LIMIT ? OFFSET ?`,
		[]any{limit, offset},
	)
	if err != nil {
		return nil, 0, err
	}
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("op=stockstore.List: %w", err)
	}
	defer rows.Close()

	var out []domain.Stock
	for rows.Next() {
		var st domain.Stock
		if err := rows.Scan(&st.Ticker, &st.Symbol, &st.Name, &st.Sector); err != nil {
			return nil, 0, fmt.Errorf("op=stockstore.List: scan: %w", err)
		}
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	row := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM stocks`)
	var total int64
	if err := row.Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("op=stockstore.List: count: %w", err)
	}
	return out, total, nil
}

// AllTickers returns every recognized ticker, used by the controller to
// resolve "analyze all".
func (s *Store) AllTickers(ctx context.Context) ([]string, error) {
	rows, err := s.db.Query(ctx, `SELECT ticker FROM stocks ORDER BY ticker ASC`)
	if err != nil {
		return nil, fmt.Errorf("op=stockstore.AllTickers: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("op=stockstore.AllTickers: scan: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

type seedYAML struct {
	Stocks []seedYAMLItem `yaml:"stocks"`
}

type seedYAMLItem struct {
	Ticker string `yaml:"ticker"`
	Symbol string `yaml:"symbol"`
	Name   string `yaml:"name"`
	Sector string `yaml:"sector"`
}

// SeedFromYAML loads the catalogue from a YAML fixture and upserts each
// row. Safe to call on every startup; existing rows are replaced.
func SeedFromYAML(ctx context.Context, db storage.DB, path string) (int, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("op=stockstore.SeedFromYAML: read %s: %w", path, err)
	}
	var doc seedYAML
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return 0, fmt.Errorf("op=stockstore.SeedFromYAML: parse: %w", err)
	}

	store := New(db)
	n := 0
	for _, item := range doc.Stocks {
		if item.Ticker == "" {
			continue
		}
		if err := store.upsert(ctx, domain.Stock{Ticker: item.Ticker, Symbol: item.Symbol, Name: item.Name, Sector: item.Sector}); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func (s *Store) upsert(ctx context.Context, st domain.Stock) error {
	if s.db.Dialect() == storage.DialectServer {
		sql, args, err := s.rewrite(
			`INSERT INTO stocks (ticker, symbol, name, sector) VALUES (?, ?, ?, ?)
			 ON CONFLICT (ticker) DO UPDATE SET symbol = EXCLUDED.symbol, name = EXCLUDED.name, sector = EXCLUDED.sector`,
			[]any{st.Ticker, st.Symbol, st.Name, st.Sector},
		)
		if err != nil {
			return err
		}
		_, err = s.db.Exec(ctx, sql, args...)
		return err
	}

	sql, args, err := s.rewrite(
		`INSERT INTO stocks (ticker, symbol, name, sector) VALUES (?, ?, ?, ?)
		 ON CONFLICT (ticker) DO UPDATE SET symbol = excluded.symbol, name = excluded.name, sector = excluded.sector`,
		[]any{st.Ticker, st.Symbol, st.Name, st.Sector},
	)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, sql, args...)
	return err
}
