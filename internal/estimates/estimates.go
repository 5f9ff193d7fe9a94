// Package estimates persists computed estimates and reads them back as snapshots.
package estimates

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/Simplici0/estimator/internal/apperr"
	"github.com/Simplici0/estimator/internal/pricing"
)

// Status of a saved estimate.
type Status string

const (
	StatusDraft Status = "draft"
	StatusSent  Status = "sent"
)

// ProjectData is what the user entered about the job and client.
type ProjectData struct {
	Owner       string `json:"-"`
	ClientName  string `json:"clientName"`
	ClientEmail string `json:"clientEmail"`
	TradeType   string `json:"tradeType"`
	County      string `json:"county"`
	State       string `json:"state"`
	ProjectSize string `json:"projectSize"`
	Description string `json:"description"`
}

// Record is a saved estimate. Result is the stored snapshot, never recalculated.
type Record struct {
	ID          string                 `json:"id"`
	Number      string                 `json:"estimateNumber"`
	Project     ProjectData            `json:"project"`
	Result      pricing.EstimateResult `json:"result"`
	Source      pricing.Source         `json:"source"`
	Status      Status                 `json:"status"`
	DocumentURL string                 `json:"documentUrl,omitempty"`
	CreatedAt   time.Time              `json:"createdAt"`
	UpdatedAt   time.Time              `json:"updatedAt"`
}

// Summary is one row of the estimate list.
type Summary struct {
	ID         string    `db:"id" json:"id"`
	Number     string    `db:"estimate_number" json:"estimateNumber"`
	ClientName string    `db:"client_name" json:"clientName"`
	TradeType  string    `db:"trade_type" json:"tradeType"`
	Total      float64   `db:"total" json:"total"`
	Status     Status    `db:"status" json:"status"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}

type row struct {
	ID          string    `db:"id"`
	Number      string    `db:"estimate_number"`
	Owner       string    `db:"user_email"`
	ClientName  string    `db:"client_name"`
	ClientEmail string    `db:"client_email"`
	TradeType   string    `db:"trade_type"`
	County      string    `db:"county"`
	State       string    `db:"state"`
	ProjectSize string    `db:"project_size"`
	Description string    `db:"description"`
	Source      string    `db:"source"`
	Status      string    `db:"status"`
	DocumentURL string    `db:"document_url"`
	ResultJSON  string    `db:"result_json"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// Store persists estimates with sqlx.
type Store struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewStore returns a Store backed by db.
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// NewNumber returns a human-facing estimate number such as EST-4F09A1.
func NewNumber(id uuid.UUID) string {
	return "EST-" + strings.ToUpper(strings.ReplaceAll(id.String(), "-", "")[:6])
}

// Save stores the estimate with rounded amounts, its line items and a snapshot of the unrounded result.
func (s *Store) Save(ctx context.Context, project ProjectData, result pricing.EstimateResult, source pricing.Source) (Record, error) {
	if project.Owner == "" {
		return Record{}, apperr.InvalidInput("owner", "is required")
	}
	if !source.Valid() {
		return Record{}, apperr.InvalidInput("source", "unknown source %q", source)
	}

	snapshot, err := json.Marshal(result)
	if err != nil {
		return Record{}, fmt.Errorf("marshal estimate snapshot: %w", err)
	}

	id := uuid.New()
	now := s.now()
	rec := Record{
		ID:        id.String(),
		Number:    NewNumber(id),
		Project:   project,
		Result:    result,
		Source:    source,
		Status:    StatusDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return Record{}, fmt.Errorf("begin save estimate transaction: %w", err)
	}

	_, err = tx.ExecContext(ctx, tx.Rebind(`
		INSERT INTO estimates (
			id, estimate_number, user_email, client_name, client_email,
			trade_type, county, state, project_size, description,
			base_cost, overhead, profit, subtotal, tax, total,
			market_position, source, status, result_json, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`),
		rec.ID, rec.Number, project.Owner, project.ClientName, project.ClientEmail,
		project.TradeType, project.County, project.State, project.ProjectSize, project.Description,
		pricing.Round2(result.BaseCost), pricing.Round2(result.Overhead), pricing.Round2(result.Profit),
		pricing.Round2(result.Subtotal), pricing.Round2(result.Tax), pricing.Round2(result.Total),
		string(result.MarketPosition), string(source), string(rec.Status), string(snapshot), now, now,
	)
	if err != nil {
		_ = tx.Rollback()
		return Record{}, fmt.Errorf("insert estimate: %w", err)
	}

	for i, item := range result.LineItems {
		_, err := tx.ExecContext(ctx, tx.Rebind(`
			INSERT INTO estimate_line_items (
				estimate_id, display_order, category, description, quantity, unit, unit_price, total
			)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`), rec.ID, i, string(item.Category), item.Description, item.Quantity, item.Unit,
			pricing.Round2(item.UnitPrice), pricing.Round2(item.LineTotal))
		if err != nil {
			_ = tx.Rollback()
			return Record{}, fmt.Errorf("insert estimate line item %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Record{}, fmt.Errorf("commit save estimate transaction: %w", err)
	}
	return rec, nil
}

// Get reads an estimate back from its snapshot.
func (s *Store) Get(ctx context.Context, id string) (Record, error) {
	var r row
	err := s.db.GetContext(ctx, &r, s.db.Rebind(`
		SELECT
			id, estimate_number, user_email, client_name, client_email,
			trade_type, county, state, project_size, description,
			source, status, document_url, result_json, created_at, updated_at
		FROM estimates
		WHERE id = ?
	`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, apperr.NotFound("estimate", id)
	}
	if err != nil {
		return Record{}, fmt.Errorf("query estimate %s: %w", id, err)
	}

	var result pricing.EstimateResult
	if err := json.Unmarshal([]byte(r.ResultJSON), &result); err != nil {
		return Record{}, fmt.Errorf("decode estimate snapshot %s: %w", id, err)
	}

	return Record{
		ID:     r.ID,
		Number: r.Number,
		Project: ProjectData{
			Owner:       r.Owner,
			ClientName:  r.ClientName,
			ClientEmail: r.ClientEmail,
			TradeType:   r.TradeType,
			County:      r.County,
			State:       r.State,
			ProjectSize: r.ProjectSize,
			Description: r.Description,
		},
		Result:      result,
		Source:      pricing.Source(r.Source),
		Status:      Status(r.Status),
		DocumentURL: r.DocumentURL,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}, nil
}

// List returns the owner's estimates newest first. A non-empty query filters on
// client name, description and estimate number, case-insensitively.
func (s *Store) List(ctx context.Context, owner, query string) ([]Summary, error) {
	query = strings.TrimSpace(query)
	search := "%" + strings.ToLower(query) + "%"

	out := make([]Summary, 0)
	err := s.db.SelectContext(ctx, &out, s.db.Rebind(`
		SELECT id, estimate_number, client_name, trade_type, total, status, created_at
		FROM estimates
		WHERE user_email = ?
			AND (? = '' OR LOWER(client_name) LIKE ? OR LOWER(description) LIKE ? OR LOWER(estimate_number) LIKE ?)
		ORDER BY created_at DESC, estimate_number DESC
	`), owner, query, search, search, search)
	if err != nil {
		return nil, fmt.Errorf("list estimates: %w", err)
	}
	return out, nil
}

// MarkSent flags the estimate as sent and records the delivered document location.
func (s *Store) MarkSent(ctx context.Context, id, documentURL string) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`
		UPDATE estimates SET status = ?, document_url = ?, updated_at = ? WHERE id = ?
	`), string(StatusSent), documentURL, s.now(), id)
	if err != nil {
		return fmt.Errorf("mark estimate %s sent: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark estimate %s sent: %w", id, err)
	}
	if n == 0 {
		return apperr.NotFound("estimate", id)
	}
	return nil
}
