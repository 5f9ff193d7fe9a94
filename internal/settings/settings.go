// Package settings stores the markup rates and regional tax table that feed the calculator.
package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/Simplici0/estimator/internal/apperr"
	"github.com/Simplici0/estimator/internal/pricing"
)

// Rates used when the markup singleton has not been saved yet.
const (
	DefaultOverheadRate = 0.15
	DefaultProfitRate   = 0.20
)

// Markup is the company-wide overhead and profit configuration.
type Markup struct {
	OverheadRate float64   `db:"overhead_rate" json:"overheadRate"`
	ProfitRate   float64   `db:"profit_rate" json:"profitRate"`
	UpdatedAt    time.Time `db:"updated_at" json:"updatedAt"`
}

// Validate checks both rates are fractions in [0, 1).
func (m Markup) Validate() error {
	return pricing.MarkupConfig{OverheadRate: m.OverheadRate, ProfitRate: m.ProfitRate}.Validate()
}

// TaxRegion is the sales tax applied to projects in a state.
type TaxRegion struct {
	State     string    `db:"state" json:"state"`
	TaxRate   float64   `db:"tax_rate" json:"taxRate"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// Store reads and writes markup settings.
type Store struct {
	db         *sqlx.DB
	defaultTax float64
}

// NewStore returns a Store; defaultTaxRate applies to states without a region row.
func NewStore(db *sqlx.DB, defaultTaxRate float64) *Store {
	return &Store{db: db, defaultTax: defaultTaxRate}
}

// NormalizeState upper-cases a state code.
func NormalizeState(state string) string {
	return strings.ToUpper(strings.TrimSpace(state))
}

// GetMarkup returns the singleton, or the defaults when none is stored.
func (s *Store) GetMarkup(ctx context.Context) (Markup, error) {
	var m Markup
	err := s.db.GetContext(ctx, &m, `SELECT overhead_rate, profit_rate, updated_at FROM markup_settings WHERE id = 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return Markup{OverheadRate: DefaultOverheadRate, ProfitRate: DefaultProfitRate}, nil
	}
	if err != nil {
		return Markup{}, fmt.Errorf("query markup settings: %w", err)
	}
	return m, nil
}

// UpdateMarkup validates and stores the singleton.
func (s *Store) UpdateMarkup(ctx context.Context, m Markup) (Markup, error) {
	if err := m.Validate(); err != nil {
		return Markup{}, err
	}
	m.UpdatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO markup_settings (id, overhead_rate, profit_rate, updated_at)
		VALUES (1, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			overhead_rate = excluded.overhead_rate,
			profit_rate = excluded.profit_rate,
			updated_at = excluded.updated_at
	`), m.OverheadRate, m.ProfitRate, m.UpdatedAt)
	if err != nil {
		return Markup{}, fmt.Errorf("update markup settings: %w", err)
	}
	return m, nil
}

// ListTaxRegions returns every region ordered by state.
func (s *Store) ListTaxRegions(ctx context.Context) ([]TaxRegion, error) {
	regions := make([]TaxRegion, 0)
	if err := s.db.SelectContext(ctx, &regions, `SELECT state, tax_rate, updated_at FROM tax_regions ORDER BY state`); err != nil {
		return nil, fmt.Errorf("list tax regions: %w", err)
	}
	return regions, nil
}

// UpsertTaxRegion stores the tax rate for a state.
func (s *Store) UpsertTaxRegion(ctx context.Context, state string, rate float64) (TaxRegion, error) {
	state = NormalizeState(state)
	if len(state) != 2 {
		return TaxRegion{}, apperr.InvalidInput("state", "must be a two-letter state code (got %q)", state)
	}
	if err := (pricing.MarkupConfig{TaxRate: rate}).Validate(); err != nil {
		return TaxRegion{}, err
	}

	r := TaxRegion{State: state, TaxRate: rate, UpdatedAt: time.Now().UTC()}
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO tax_regions (state, tax_rate, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (state) DO UPDATE SET
			tax_rate = excluded.tax_rate,
			updated_at = excluded.updated_at
	`), r.State, r.TaxRate, r.UpdatedAt)
	if err != nil {
		return TaxRegion{}, fmt.Errorf("upsert tax region %s: %w", state, err)
	}
	return r, nil
}

// TaxRate returns the state's rate, or the default when the state has no row.
func (s *Store) TaxRate(ctx context.Context, state string) (float64, error) {
	state = NormalizeState(state)
	if state == "" {
		return s.defaultTax, nil
	}

	var rate float64
	err := s.db.GetContext(ctx, &rate, s.db.Rebind(`SELECT tax_rate FROM tax_regions WHERE state = ?`), state)
	if errors.Is(err, sql.ErrNoRows) {
		return s.defaultTax, nil
	}
	if err != nil {
		return 0, fmt.Errorf("query tax rate for %s: %w", state, err)
	}
	return rate, nil
}

// Markup assembles the calculator configuration for a project in state.
func (s *Store) Markup(ctx context.Context, state string) (pricing.MarkupConfig, error) {
	m, err := s.GetMarkup(ctx)
	if err != nil {
		return pricing.MarkupConfig{}, err
	}
	tax, err := s.TaxRate(ctx, state)
	if err != nil {
		return pricing.MarkupConfig{}, err
	}
	return pricing.MarkupConfig{
		OverheadRate: m.OverheadRate,
		ProfitRate:   m.ProfitRate,
		TaxRate:      tax,
	}, nil
}
