package redelivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"

	"github.com/shinyyama/community-backend/internal/lifecycle"
	"github.com/shinyyama/community-backend/internal/service"
)

var (
	_ service.Redeliverer = (*Temporal)(nil)
	_ service.Redeliverer = (*Inline)(nil)
)

// Temporal starts one durable workflow per failed notification.
type Temporal struct {
	client   client.Client
	attempts int32
	interval time.Duration
}

func NewTemporal(c client.Client, attempts int, interval time.Duration) *Temporal {
	return &Temporal{client: c, attempts: int32(attempts), interval: interval}
}

// Enqueue is idempotent per delivery: a run that already delivered the same
// notification is not started again.
func (r *Temporal) Enqueue(ctx context.Context, d service.Delivery) error {
	opts := client.StartWorkflowOptions{
		ID:                    workflowID(d),
		TaskQueue:             TaskQueue,
		WorkflowIDReusePolicy: enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE_FAILED_ONLY,
	}
	_, err := r.client.ExecuteWorkflow(ctx, opts, WorkflowName, WorkflowInput{
		Delivery:    d,
		MaxAttempts: r.attempts,
		Interval:    r.interval,
	})
	var started *serviceerror.WorkflowExecutionAlreadyStarted
	if errors.As(err, &started) {
		return nil
	}
	return err
}

func workflowID(d service.Delivery) string {
	return fmt.Sprintf("notification-%s-%s-%s", d.TransactionID, d.Type, d.UserUID)
}

// Inline retries in a goroutine of the API process. Pending retries are lost
// on restart; it is used when Temporal is not configured.
type Inline struct {
	notifications notifier
	attempts      int
	interval      time.Duration
	logger        *slog.Logger

	wg   sync.WaitGroup
	stop chan struct{}
	once sync.Once
}

func NewInline(n notifier, attempts int, interval time.Duration, logger *slog.Logger) *Inline {
	if attempts <= 0 {
		attempts = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Inline{
		notifications: n,
		attempts:      attempts,
		interval:      interval,
		logger:        logger,
		stop:          make(chan struct{}),
	}
}

func (r *Inline) Enqueue(_ context.Context, d service.Delivery) error {
	select {
	case <-r.stop:
		return errors.New("redelivery stopped")
	default:
	}
	r.wg.Add(1)
	go r.run(d)
	return nil
}

func (r *Inline) run(d service.Delivery) {
	defer r.wg.Done()
	wait := r.interval
	for attempt := 1; attempt <= r.attempts; attempt++ {
		select {
		case <-r.stop:
			return
		case <-time.After(wait):
		}
		n, err := deliver(context.Background(), r.notifications, d)
		if err == nil {
			r.logger.Info("notification redelivered",
				slog.String("transaction.id", d.TransactionID),
				slog.Uint64("notification.id", n.ID),
				slog.Int("attempt", attempt))
			return
		}
		r.logger.Warn("notification redelivery attempt failed",
			slog.String("transaction.id", d.TransactionID),
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()))
		if errors.Is(err, lifecycle.ErrUnknownRecipient) {
			return
		}
		wait *= 2
	}
	r.logger.Error("notification redelivery exhausted",
		slog.String("transaction.id", d.TransactionID),
		slog.String("recipient", d.UserUID),
		slog.String("notification.type", d.Type))
}

// Wait blocks until every pending retry has finished.
func (r *Inline) Wait() {
	r.wg.Wait()
}

// Close abandons pending retries and waits for their goroutines.
func (r *Inline) Close() {
	r.once.Do(func() { close(r.stop) })
	r.wg.Wait()
}
