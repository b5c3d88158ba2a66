package model

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/zeromicro/go-zero/core/stores/sqlx"
)

var _ TargetSymbolsModel = (*defaultTargetSymbolsModel)(nil)

// TargetSymbols mirrors a row of the public.target_symbols table.
type TargetSymbols struct {
	Id          int64          `db:"id"`
	Symbol      string         `db:"symbol"`
	CompanyName sql.NullString `db:"company_name"`
	Active      bool           `db:"active"`
	CreatedAt   time.Time      `db:"created_at"`
}

type (
	// TargetSymbolsModel manages the watchlist the collector iterates over.
	TargetSymbolsModel interface {
		ListActive(ctx context.Context) ([]TargetSymbols, error)
		Upsert(ctx context.Context, symbol, companyName string) error
	}

	defaultTargetSymbolsModel struct {
		conn sqlx.SqlConn
	}
)

// NewTargetSymbolsModel returns a model for the target_symbols table.
func NewTargetSymbolsModel(conn sqlx.SqlConn) TargetSymbolsModel {
	return &defaultTargetSymbolsModel{conn: conn}
}

// ListActive returns active watchlist entries in insertion order, which also
// fixes the processing order of collection runs.
func (m *defaultTargetSymbolsModel) ListActive(ctx context.Context) ([]TargetSymbols, error) {
	const query = `
SELECT id, symbol, company_name, active, created_at
FROM public.target_symbols
WHERE active
ORDER BY id`

	var rows []TargetSymbols
	if err := m.conn.QueryRowsCtx(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("target_symbols.ListActive: %w", err)
	}
	return rows, nil
}

func (m *defaultTargetSymbolsModel) Upsert(ctx context.Context, symbol, companyName string) error {
	const query = `
INSERT INTO public.target_symbols (symbol, company_name, active)
VALUES ($1, NULLIF($2, ''), TRUE)
ON CONFLICT (symbol) DO UPDATE
SET company_name = COALESCE(NULLIF(EXCLUDED.company_name, ''), target_symbols.company_name),
    active = TRUE`

	if _, err := m.conn.ExecCtx(ctx, query, symbol, companyName); err != nil {
		return fmt.Errorf("target_symbols.Upsert: %w", err)
	}
	return nil
}
