package scheduled

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/toybank/toybank/internal/ledger"
	"github.com/toybank/toybank/internal/notification"
	"github.com/toybank/toybank/internal/payments"
)

const (
	defaultBatchSize = 50
	defaultInterval  = 30 * time.Second
)

// Executor runs due scheduled payments through the transfer engine.
type Executor struct {
	store     ledger.Store
	transfers *payments.Service
	notifier  notification.Notifier
	logger    *slog.Logger
	interval  time.Duration
	batchSize int
	now       func() time.Time
}

// NewExecutor constructs an executor polling every interval. A non-positive
// interval falls back to defaultInterval.
func NewExecutor(store ledger.Store, transfers *payments.Service, notifier notification.Notifier, logger *slog.Logger, interval time.Duration) *Executor {
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Executor{
		store:     store,
		transfers: transfers,
		notifier:  notifier,
		logger:    logger,
		interval:  interval,
		batchSize: defaultBatchSize,
		now:       time.Now,
	}
}

// Result summarises one pass over due payments.
type Result struct {
	Completed int
	Failed    int
	Deferred  int
}

// Run polls until ctx is cancelled.
func (e *Executor) Run(ctx context.Context) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			res, err := e.RunOnce(ctx)
			if err != nil {
				e.logger.ErrorContext(ctx, "scheduled payments pass failed", "error", err)
				continue
			}
			if res != (Result{}) {
				e.logger.InfoContext(ctx, "scheduled payments pass",
					"completed", res.Completed, "failed", res.Failed, "deferred", res.Deferred)
			}
		}
	}
}

// RunOnce executes every payment due now. Rejected payments are marked FAILED;
// any other failure leaves the payment PENDING for the next pass.
func (e *Executor) RunOnce(ctx context.Context) (Result, error) {
	var res Result
	due, err := e.store.DueScheduled(ctx, e.now().UTC(), e.batchSize)
	if err != nil {
		return res, fmt.Errorf("load due payments: %w", err)
	}

	for _, st := range due {
		_, err := e.transfers.TransferScheduled(ctx, st)
		switch {
		case err == nil:
			res.Completed++
		case errors.Is(err, ledger.ErrScheduledNotPending):
			// Another executor got there first.
		case payments.IsRejection(err):
			if ferr := e.store.FailScheduled(ctx, st.ID, err.Error()); ferr != nil {
				if errors.Is(ferr, ledger.ErrScheduledNotPending) {
					continue
				}
				return res, fmt.Errorf("mark scheduled payment %s failed: %w", st.ID, ferr)
			}
			res.Failed++
			e.notifyFailure(ctx, st, err)
		default:
			res.Deferred++
			e.logger.WarnContext(ctx, "scheduled payment deferred", "scheduled_id", st.ID, "error", err)
		}
	}
	return res, nil
}

func (e *Executor) notifyFailure(ctx context.Context, st ledger.ScheduledTransaction, cause error) {
	if e.notifier == nil {
		return
	}
	err := e.notifier.Send(ctx, notification.Message{
		Kind:        notification.KindScheduledFailed,
		Destination: st.SenderID,
		Body:        fmt.Sprintf("Scheduled payment of %s to %s failed: %s", st.Amount.StringFixed(2), st.ReceiverID, cause),
	})
	if err != nil {
		e.logger.WarnContext(ctx, "scheduled failure notification failed", "scheduled_id", st.ID, "error", err)
	}
}
