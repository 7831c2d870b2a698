package postgres_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-asset-lifecycle/internal/assets"
	"github.com/ariefcatur/go-asset-lifecycle/internal/lifecycle"
	"github.com/ariefcatur/go-asset-lifecycle/internal/logging"
	"github.com/ariefcatur/go-asset-lifecycle/internal/postgres"
)

func getPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_DSN not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	pool, err := postgres.Connect(ctx, dsn, 8)
	if err != nil {
		t.Skipf("postgres unavailable: %v", err)
	}
	require.NoError(t, postgres.ApplySchema(ctx, pool))
	t.Cleanup(pool.Close)
	return pool
}

func newEngine(t *testing.T) (*lifecycle.Engine, *postgres.Store, string, string) {
	t.Helper()
	st := postgres.NewStore(getPool(t))
	u1, u2 := "u-"+uuid.NewString(), "u-"+uuid.NewString()
	require.NoError(t, st.UpsertUser(context.Background(), u1, "Ana"))
	require.NoError(t, st.UpsertUser(context.Background(), u2, "Budi"))
	coord := lifecycle.NewCoordinator(st, lifecycle.Options{MaxWait: 2 * time.Second, Timeout: 5 * time.Second}, logging.Discard(), nil)
	return lifecycle.NewEngine(coord, lifecycle.DefaultPolicy()), st, u1, u2
}

func TestEngineOnPostgres(t *testing.T) {
	ctx := context.Background()
	e, _, u1, u2 := newEngine(t)

	cost := decimal.RequireFromString("1234.50")
	asset, err := e.RegisterAsset(ctx, lifecycle.RegisterAssetInput{
		Name: "Pallet jack", Category: "equipment", StoreID: ptr("s1"), PurchaseCost: &cost,
	})
	require.NoError(t, err)

	got, err := e.Asset(ctx, asset.ID)
	require.NoError(t, err)
	require.NotNil(t, got.PurchaseCost)
	assert.True(t, cost.Equal(*got.PurchaseCost))

	first, err := e.CreateAssignment(ctx, lifecycle.CreateAssignmentInput{AssetID: asset.ID, UserID: u1, Activate: true})
	require.NoError(t, err)
	second, err := e.CreateAssignment(ctx, lifecycle.CreateAssignmentInput{AssetID: asset.ID, UserID: u2, Activate: true})
	require.NoError(t, err)

	assert.Equal(t, assets.StatusInUse, second.Asset.Status)
	require.NotNil(t, second.Asset.AssignedToUserID)
	assert.Equal(t, u2, *second.Asset.AssignedToUserID)

	old, err := e.Assignment(ctx, first.Assignment.ID)
	require.NoError(t, err)
	assert.Equal(t, assets.AssignmentReturned, old.Assignment.Status)
	assert.NotNil(t, old.Assignment.ReturnedAt)

	closed, err := e.CloseAssignment(ctx, second.Assignment.ID, assets.AssignmentReturned)
	require.NoError(t, err)
	assert.Equal(t, assets.StatusAvailable, closed.Asset.Status)
	assert.Nil(t, closed.Asset.AssignedToUserID)
	assert.Greater(t, closed.Asset.Version, asset.Version)
}

func TestLockAssetTimesOutAsConflict(t *testing.T) {
	ctx := context.Background()
	e, st, _, _ := newEngine(t)
	asset, err := e.RegisterAsset(ctx, lifecycle.RegisterAssetInput{Name: "Ladder"})
	require.NoError(t, err)

	holder, err := st.Begin(ctx, lifecycle.TxOptions{MaxWait: time.Second})
	require.NoError(t, err)
	defer holder.Rollback(ctx)
	_, err = holder.LockAsset(ctx, asset.ID)
	require.NoError(t, err)

	waiter, err := st.Begin(ctx, lifecycle.TxOptions{MaxWait: 100 * time.Millisecond})
	require.NoError(t, err)
	defer waiter.Rollback(ctx)
	_, err = waiter.LockAsset(ctx, asset.ID)
	require.ErrorIs(t, err, assets.ErrConflict)
	assert.True(t, assets.IsRetryable(err))
}

func TestOneActiveIndex(t *testing.T) {
	ctx := context.Background()
	e, st, u1, u2 := newEngine(t)
	asset, err := e.RegisterAsset(ctx, lifecycle.RegisterAssetInput{Name: "Drill"})
	require.NoError(t, err)

	tx, err := st.Begin(ctx, lifecycle.TxOptions{})
	require.NoError(t, err)
	defer tx.Rollback(ctx)

	now := time.Now().UTC()
	row := func(user string) assets.Assignment {
		return assets.Assignment{ID: uuid.NewString(), AssetID: asset.ID, UserID: user, Status: assets.AssignmentActive,
			AssignedDate: now, CreatedAt: now, UpdatedAt: now}
	}
	require.NoError(t, tx.InsertAssignment(ctx, row(u1)))
	err = tx.InsertAssignment(ctx, row(u2))
	require.ErrorIs(t, err, assets.ErrConflict)
}

func TestMissingRowsAreNotFound(t *testing.T) {
	ctx := context.Background()
	_, st, _, _ := newEngine(t)
	tx, err := st.Begin(ctx, lifecycle.TxOptions{})
	require.NoError(t, err)
	defer tx.Rollback(ctx)

	_, err = tx.GetAsset(ctx, uuid.NewString())
	require.ErrorIs(t, err, assets.ErrNotFound)
	_, err = tx.GetDisposal(ctx, uuid.NewString())
	require.ErrorIs(t, err, assets.ErrNotFound)
	require.ErrorIs(t, st.MarkDispatched(ctx, uuid.NewString()), assets.ErrNotFound)
}

func TestOutboxRoundTrip(t *testing.T) {
	ctx := context.Background()
	_, st, u1, _ := newEngine(t)

	id := uuid.NewString()
	tx, err := st.Begin(ctx, lifecycle.TxOptions{})
	require.NoError(t, err)
	require.NoError(t, tx.AppendOutbox(ctx, assets.OutboxEntry{
		ID:           id,
		Envelope:     assets.Envelope{EventID: id, EventType: assets.EventAssetRegistered, EventVersion: 1, Payload: []byte(`{}`)},
		Notification: &assets.Notification{UserID: u1, Title: "Asset assigned", Kind: assets.NotifyAssignment},
		Status:       assets.OutboxPending,
		CreatedAt:    time.Now().UTC(),
	}))
	require.NoError(t, tx.Commit(ctx))

	pending, err := st.Pending(ctx, 10000)
	require.NoError(t, err)
	var found *assets.OutboxEntry
	for i := range pending {
		if pending[i].ID == id {
			found = &pending[i]
		}
	}
	require.NotNil(t, found)
	assert.Equal(t, assets.EventAssetRegistered, found.Envelope.EventType)
	require.NotNil(t, found.Notification)
	assert.Equal(t, u1, found.Notification.UserID)

	require.NoError(t, st.MarkFailed(ctx, id, "broker down", 2))
	require.NoError(t, st.MarkFailed(ctx, id, "broker down", 2))
	pending, err = st.Pending(ctx, 10000)
	require.NoError(t, err)
	for _, e := range pending {
		assert.NotEqual(t, id, e.ID)
	}
}

func ptr(s string) *string { return &s }
