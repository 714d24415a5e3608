package history

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toybank/toybank/internal/ledger"
)

func seedTransactions(t *testing.T, store ledger.Store, n int) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		sender, receiver := "alice", "bob"
		if i%2 == 1 {
			sender, receiver = "bob", "alice"
		}
		err := store.Atomically(ctx, func(tx ledger.Tx) error {
			return tx.InsertTransaction(ctx, ledger.Transaction{
				ID:         fmt.Sprintf("tx-%02d", i),
				SenderID:   sender,
				ReceiverID: receiver,
				Amount:     decimal.NewFromInt(int64(100 + i)),
				Type:       ledger.TypeWalletTransfer,
				Status:     ledger.StatusCompleted,
				CreatedAt:  base.Add(time.Duration(i) * time.Minute),
			})
		})
		require.NoError(t, err)
	}
}

func TestNewPageNormalises(t *testing.T) {
	assert.Equal(t, Page{Number: 1, Size: DefaultPageSize}, NewPage(0, 0))
	assert.Equal(t, Page{Number: 1, Size: 5}, NewPage(-3, 5))
	assert.Equal(t, Page{Number: 2, Size: MaxPageSize}, NewPage(2, 1000))
	assert.Equal(t, 20, NewPage(3, 10).Offset())
}

func TestListForAccountPagination(t *testing.T) {
	store := ledger.NewInMemory()
	seedTransactions(t, store, 25)
	svc := NewService(store)
	ctx := context.Background()

	sizes := map[int]int{1: 10, 2: 10, 3: 5, 4: 0}
	for page, want := range sizes {
		got, err := svc.ListForAccount(ctx, "alice", NewPage(page, 10))
		require.NoError(t, err)
		assert.Len(t, got, want, "page %d", page)
	}

	first, err := svc.ListForAccount(ctx, "bob", NewPage(1, 10))
	require.NoError(t, err)
	assert.Equal(t, "tx-24", first[0].ID, "newest first")
	for i := 1; i < len(first); i++ {
		assert.False(t, first[i].CreatedAt.After(first[i-1].CreatedAt))
	}

	none, err := svc.ListForAccount(ctx, "carol", NewPage(1, 10))
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestGetByIDAuthorisation(t *testing.T) {
	store := ledger.NewInMemory()
	seedTransactions(t, store, 2)
	svc := NewService(store)
	ctx := context.Background()

	txn, err := svc.GetByID(ctx, "alice", "tx-00")
	require.NoError(t, err)
	assert.Equal(t, "bob", txn.ReceiverID)

	_, err = svc.GetByID(ctx, "bob", "tx-00")
	require.NoError(t, err)

	_, err = svc.GetByID(ctx, "mallory", "tx-00")
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.GetByID(ctx, "alice", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListScheduledSoonestFirst(t *testing.T) {
	store := ledger.NewInMemory()
	ctx := context.Background()
	ledger.SeedBalance(store, "alice", decimal.NewFromInt(1000))
	ledger.SeedBalance(store, "bob", decimal.Zero)

	now := time.Now().UTC()
	for i, offset := range []time.Duration{3 * time.Hour, time.Hour, 2 * time.Hour} {
		require.NoError(t, store.ScheduleTransaction(ctx, ledger.ScheduledTransaction{
			ID: fmt.Sprintf("s%d", i), SenderID: "alice", ReceiverID: "bob",
			Amount: decimal.NewFromInt(100), Status: ledger.StatusPending, SendAt: now.Add(offset),
		}))
	}

	items, err := NewService(store).ListScheduled(ctx, "alice", NewPage(1, 10))
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "s1", items[0].ID)
	assert.Equal(t, "s0", items[2].ID)

	others, err := NewService(store).ListScheduled(ctx, "bob", NewPage(1, 10))
	require.NoError(t, err)
	assert.Empty(t, others)
}

func TestHandlerDownloadForbidden(t *testing.T) {
	store := ledger.NewInMemory()
	seedTransactions(t, store, 1)
	h := NewHandler(NewService(store))

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("user_id", c.Get("X-User"))
		return c.Next()
	})
	app.Get("/download/:transactionId", h.Download)

	cases := map[string]int{"alice": http.StatusOK, "mallory": http.StatusForbidden}
	for user, want := range cases {
		req := httptest.NewRequest(http.MethodGet, "/download/tx-00", nil)
		req.Header.Set("X-User", user)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, want, resp.StatusCode, user)
	}

	req := httptest.NewRequest(http.MethodGet, "/download/nope", nil)
	req.Header.Set("X-User", "alice")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
