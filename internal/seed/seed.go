package seed

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"

	"github.com/Simplici0/estimator/internal/settings"
)

// Config contains the values required by startup seed.
type Config struct {
	AdminEmail    string
	AdminPassword string
}

// Stats contains seed operation counters.
type Stats struct {
	Inserts int
	Updates int
}

// Regional sales tax seeded on first run.
var defaultTaxRegions = []settings.TaxRegion{
	{State: "OH", TaxRate: 0.0875},
	{State: "TX", TaxRate: 0.0825},
}

// Run executes the startup seed in an idempotent way. Existing rows are never modified.
func Run(ctx context.Context, db *sqlx.DB, cfg Config) (Stats, error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return Stats{}, fmt.Errorf("begin seed transaction: %w", err)
	}

	stats := Stats{}

	if err := seedAdmin(ctx, tx, cfg.AdminEmail, cfg.AdminPassword, &stats); err != nil {
		_ = tx.Rollback()
		return Stats{}, err
	}
	if err := ensureMarkupSettings(ctx, tx, &stats); err != nil {
		_ = tx.Rollback()
		return Stats{}, err
	}
	for _, region := range defaultTaxRegions {
		if err := ensureTaxRegion(ctx, tx, region, &stats); err != nil {
			_ = tx.Rollback()
			return Stats{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return Stats{}, fmt.Errorf("commit seed transaction: %w", err)
	}

	return stats, nil
}

func seedAdmin(ctx context.Context, tx *sqlx.Tx, email, password string, stats *Stats) error {
	if email == "" || password == "" {
		return nil
	}

	var exists bool
	if err := tx.GetContext(ctx, &exists, tx.Rebind(`SELECT EXISTS(SELECT 1 FROM users WHERE email = ? LIMIT 1)`), email); err != nil {
		return fmt.Errorf("check admin user existence: %w", err)
	}
	if exists {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	if _, err := tx.ExecContext(ctx, tx.Rebind(`INSERT INTO users (email, password_hash) VALUES (?, ?)`), email, string(hash)); err != nil {
		return fmt.Errorf("insert admin user: %w", err)
	}
	stats.Inserts++
	return nil
}

func ensureMarkupSettings(ctx context.Context, tx *sqlx.Tx, stats *Stats) error {
	var exists bool
	if err := tx.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM markup_settings WHERE id = 1)`); err != nil {
		return fmt.Errorf("check markup settings existence: %w", err)
	}
	if exists {
		return nil
	}

	if _, err := tx.ExecContext(ctx, tx.Rebind(`
		INSERT INTO markup_settings (id, overhead_rate, profit_rate)
		VALUES (1, ?, ?)
	`), settings.DefaultOverheadRate, settings.DefaultProfitRate); err != nil {
		return fmt.Errorf("insert markup settings singleton: %w", err)
	}
	stats.Inserts++
	return nil
}

func ensureTaxRegion(ctx context.Context, tx *sqlx.Tx, region settings.TaxRegion, stats *Stats) error {
	var exists bool
	if err := tx.GetContext(ctx, &exists, tx.Rebind(`SELECT EXISTS(SELECT 1 FROM tax_regions WHERE state = ? LIMIT 1)`), region.State); err != nil {
		return fmt.Errorf("check tax region %s existence: %w", region.State, err)
	}
	if exists {
		return nil
	}

	if _, err := tx.ExecContext(ctx, tx.Rebind(`INSERT INTO tax_regions (state, tax_rate) VALUES (?, ?)`), region.State, region.TaxRate); err != nil {
		return fmt.Errorf("insert tax region %s: %w", region.State, err)
	}
	stats.Inserts++
	return nil
}
