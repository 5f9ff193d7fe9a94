package estimates

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Simplici0/estimator/internal/apperr"
	"github.com/Simplici0/estimator/internal/pricing"
	"github.com/Simplici0/estimator/internal/testutil"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store := NewStore(testutil.NewDB(t))
	clock := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	store.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}
	return store
}

func computeEstimate(t *testing.T, trade, size string) pricing.EstimateResult {
	t.Helper()
	result, err := pricing.DefaultRateTable().Estimate(trade, size, pricing.MarkupConfig{OverheadRate: 0.15, ProfitRate: 0.2, TaxRate: 0.0875})
	require.NoError(t, err)
	return result
}

func project(owner, client, trade string) ProjectData {
	return ProjectData{
		Owner:       owner,
		ClientName:  client,
		ClientEmail: "client@example.com",
		TradeType:   trade,
		County:      "Franklin",
		State:       "OH",
		ProjectSize: "medium",
		Description: "Replace " + trade + " system",
	}
}

func TestSaveAndGetReturnsSnapshot(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	result := computeEstimate(t, "plumbing", "medium")

	saved, err := store.Save(ctx, project("owner@example.com", "Jane Doe", "plumbing"), result, pricing.SourceFallback)
	require.NoError(t, err)
	assert.Regexp(t, `^EST-[0-9A-F]{6}$`, saved.Number)
	assert.Equal(t, StatusDraft, saved.Status)

	got, err := store.Get(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, result, got.Result)
	assert.Equal(t, "Jane Doe", got.Project.ClientName)
	assert.Equal(t, "owner@example.com", got.Project.Owner)
	assert.Equal(t, pricing.SourceFallback, got.Source)
	assert.True(t, got.CreatedAt.Equal(saved.CreatedAt))
}

func TestGetDoesNotRecalculate(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	saved, err := store.Save(ctx, project("owner@example.com", "Jane", "hvac"), computeEstimate(t, "hvac", "small"), pricing.SourceLive)
	require.NoError(t, err)

	_, err = store.db.Exec(`UPDATE estimates SET result_json = ? WHERE id = ?`, `{"total": 999.99, "lineItems": []}`, saved.ID)
	require.NoError(t, err)

	got, err := store.Get(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, 999.99, got.Result.Total)
}

func TestSaveStoresRoundedAmountsAndLineItems(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	result := computeEstimate(t, "plumbing", "medium")

	saved, err := store.Save(ctx, project("owner@example.com", "Jane", "plumbing"), result, pricing.SourceFallback)
	require.NoError(t, err)

	var tax, total float64
	require.NoError(t, store.db.QueryRow(`SELECT tax, total FROM estimates WHERE id = ?`, saved.ID).Scan(&tax, &total))
	assert.Equal(t, pricing.Round2(result.Tax), tax)
	assert.Equal(t, pricing.Round2(result.Total), total)

	var categories []string
	require.NoError(t, store.db.Select(&categories,
		`SELECT category FROM estimate_line_items WHERE estimate_id = ? ORDER BY display_order`, saved.ID))
	assert.Equal(t, []string{"material", "labor", "overhead", "profit"}, categories)
}

func TestListOrdersNewestFirstAndFilters(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	for _, p := range []ProjectData{
		project("owner@example.com", "Alice Smith", "roofing"),
		project("owner@example.com", "Bob Jones", "painting"),
		project("owner@example.com", "Carol Smith", "drywall"),
		project("other@example.com", "Dave Smith", "hvac"),
	} {
		_, err := store.Save(ctx, p, computeEstimate(t, p.TradeType, "small"), pricing.SourceFallback)
		require.NoError(t, err)
	}

	all, err := store.List(ctx, "owner@example.com", "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "Carol Smith", all[0].ClientName)
	assert.Equal(t, "Bob Jones", all[1].ClientName)
	assert.Equal(t, "Alice Smith", all[2].ClientName)

	smiths, err := store.List(ctx, "owner@example.com", "SMITH")
	require.NoError(t, err)
	require.Len(t, smiths, 2)

	byDescription, err := store.List(ctx, "owner@example.com", "painting system")
	require.NoError(t, err)
	require.Len(t, byDescription, 1)
	assert.Equal(t, "Bob Jones", byDescription[0].ClientName)

	byNumber, err := store.List(ctx, "owner@example.com", all[2].Number)
	require.NoError(t, err)
	require.Len(t, byNumber, 1)
}

func TestMarkSent(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	saved, err := store.Save(ctx, project("owner@example.com", "Jane", "electrical"), computeEstimate(t, "electrical", "large"), pricing.SourceCache)
	require.NoError(t, err)

	require.NoError(t, store.MarkSent(ctx, saved.ID, "s3://bucket/EST.xlsx"))

	got, err := store.Get(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusSent, got.Status)
	assert.Equal(t, "s3://bucket/EST.xlsx", got.DocumentURL)
	assert.True(t, got.UpdatedAt.After(got.CreatedAt))

	err = store.MarkSent(ctx, "missing", "")
	assert.True(t, apperr.Is(err, apperr.TypeNotFound))
}

func TestGetMissing(t *testing.T) {
	_, err := newTestStore(t).Get(context.Background(), "nope")
	assert.True(t, apperr.Is(err, apperr.TypeNotFound))
}

func TestSaveValidates(t *testing.T) {
	store := newTestStore(t)
	result := computeEstimate(t, "hvac", "small")

	_, err := store.Save(context.Background(), project("", "Jane", "hvac"), result, pricing.SourceLive)
	assert.True(t, apperr.Is(err, apperr.TypeInvalidInput))

	_, err = store.Save(context.Background(), project("o@example.com", "Jane", "hvac"), result, "scraped")
	assert.True(t, apperr.Is(err, apperr.TypeInvalidInput))
}

func TestNewNumber(t *testing.T) {
	id := uuid.MustParse("4f09a1c2-0000-4000-8000-000000000000")
	assert.Equal(t, "EST-4F09A1", NewNumber(id))
}
