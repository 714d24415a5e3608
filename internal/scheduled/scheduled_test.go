package scheduled

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toybank/toybank/internal/accounts"
	"github.com/toybank/toybank/internal/ledger"
	"github.com/toybank/toybank/internal/logging"
	"github.com/toybank/toybank/internal/notification"
	"github.com/toybank/toybank/internal/payments"
)

type fixture struct {
	store    ledger.Store
	service  *Service
	executor *Executor
	rec      *notification.Recorder
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := ledger.NewInMemory()
	rec := &notification.Recorder{}
	transfers := payments.NewService(store, accounts.NewService(store), rec)

	f := &fixture{store: store, rec: rec, now: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
	clock := func() time.Time { return f.now }

	f.service = NewService(store, transfers)
	f.service.now = clock
	f.executor = NewExecutor(store, transfers, rec, logging.Discard(), time.Millisecond)
	f.executor.now = clock
	return f
}

func (f *fixture) balance(t *testing.T, id string) decimal.Decimal {
	t.Helper()
	acct, err := f.store.Account(context.Background(), id)
	require.NoError(t, err)
	return acct.Balance
}

func TestScheduleValidates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ledger.SeedBalance(f.store, "alice", decimal.NewFromInt(1000))
	ledger.SeedBalance(f.store, "bob", decimal.Zero)

	_, err := f.service.Schedule(ctx, Input{SenderID: "alice", ReceiverID: "bob", Amount: decimal.NewFromInt(100), SendAt: f.now})
	assert.ErrorIs(t, err, ErrSendAtNotInFuture)

	_, err = f.service.Schedule(ctx, Input{SenderID: "alice", ReceiverID: "alice", Amount: decimal.NewFromInt(100), SendAt: f.now.Add(time.Hour)})
	assert.ErrorIs(t, err, payments.ErrInvalidReceiver)

	_, err = f.service.Schedule(ctx, Input{SenderID: "alice", ReceiverID: "bob", Amount: decimal.NewFromInt(50), SendAt: f.now.Add(time.Hour)})
	assert.ErrorIs(t, err, payments.ErrAmountTooSmall)

	st, err := f.service.Schedule(ctx, Input{SenderID: "alice", ReceiverID: "bob", Amount: decimal.NewFromInt(20000), SendAt: f.now.Add(time.Hour)})
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusPending, st.Status)
	assert.Equal(t, ledger.TypeBankTransfer, st.Type)
	assert.True(t, st.Fee.Equal(decimal.NewFromInt(2)))
	assert.True(t, f.balance(t, "alice").Equal(decimal.NewFromInt(1000)), "scheduling must not move funds")
}

func TestRunOnceExecutesDuePayments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ledger.SeedBalance(f.store, "alice", decimal.NewFromInt(1000))
	ledger.SeedBalance(f.store, "bob", decimal.Zero)

	_, err := f.service.Schedule(ctx, Input{SenderID: "alice", ReceiverID: "bob", Amount: decimal.NewFromInt(300), SendAt: f.now.Add(time.Minute)})
	require.NoError(t, err)
	_, err = f.service.Schedule(ctx, Input{SenderID: "alice", ReceiverID: "bob", Amount: decimal.NewFromInt(200), SendAt: f.now.Add(time.Hour)})
	require.NoError(t, err)

	res, err := f.executor.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, Result{}, res, "nothing is due yet")

	f.now = f.now.Add(2 * time.Minute)
	res, err = f.executor.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Completed)
	assert.True(t, f.balance(t, "alice").Equal(decimal.NewFromInt(700)))

	res, err = f.executor.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Completed, "a completed payment never runs twice")

	list, err := f.store.ScheduledTransactions(ctx, "alice", 0, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, ledger.StatusCompleted, list[0].Status)
	assert.NotEmpty(t, list[0].TransactionID)
	assert.Equal(t, ledger.StatusPending, list[1].Status)
}

func TestRunOnceFailsRejectedPayments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ledger.SeedBalance(f.store, "alice", decimal.NewFromInt(150))
	ledger.SeedBalance(f.store, "bob", decimal.Zero)

	_, err := f.service.Schedule(ctx, Input{SenderID: "alice", ReceiverID: "bob", Amount: decimal.NewFromInt(500), SendAt: f.now.Add(time.Minute)})
	require.NoError(t, err)

	f.now = f.now.Add(time.Hour)
	res, err := f.executor.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)

	list, err := f.store.ScheduledTransactions(ctx, "alice", 0, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, ledger.StatusFailed, list[0].Status)
	assert.Contains(t, list[0].FailureReason, "insufficient")

	msg, ok := f.rec.Last(notification.KindScheduledFailed)
	require.True(t, ok)
	assert.Equal(t, "alice", msg.Destination)
	assert.True(t, f.balance(t, "alice").Equal(decimal.NewFromInt(150)))
}

func TestRunOnceDefersWriteFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ledger.SeedBalance(f.store, "alice", decimal.NewFromInt(1000))
	ledger.SeedBalance(f.store, "bob", decimal.Zero)

	_, err := f.service.Schedule(ctx, Input{SenderID: "alice", ReceiverID: "bob", Amount: decimal.NewFromInt(100), SendAt: f.now.Add(time.Minute)})
	require.NoError(t, err)
	f.now = f.now.Add(time.Hour)

	ledger.FailNextCommit(f.store, errors.New("connection reset"))
	res, err := f.executor.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Deferred)

	res, err = f.executor.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Completed)
	assert.True(t, f.balance(t, "alice").Equal(decimal.NewFromInt(900)))
}

func TestRunStopsOnCancel(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.executor.Run(ctx)
		close(done)
	}()
	time.Sleep(5 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("executor did not stop")
	}
}
