// Package redelivery retries notifications whose first dispatch failed after
// the ledger change had already been committed.
package redelivery

import (
	"context"
	"errors"
	"time"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/shinyyama/community-backend/internal/lifecycle"
	"github.com/shinyyama/community-backend/internal/model"
	"github.com/shinyyama/community-backend/internal/service"
)

const (
	// WorkflowName is the registered name of Workflow.
	WorkflowName = "notifications.workflows.Redeliver"
	// ActivityName is the registered name of Activities.Deliver.
	ActivityName = "notifications.activities.Deliver"
	// TaskQueue is consumed by cmd/worker.
	TaskQueue = "NOTIFICATION_REDELIVERY"

	unknownRecipientType = "UnknownRecipient"
)

type WorkflowInput struct {
	Delivery    service.Delivery
	MaxAttempts int32
	Interval    time.Duration
}

type notifier interface {
	Notify(ctx context.Context, userUID, typ, message string, transactionID *string) (*model.Notification, error)
}

// Activities holds the notification dispatcher used by Deliver.
type Activities struct {
	notifications notifier
}

func NewActivities(n notifier) *Activities {
	return &Activities{notifications: n}
}

// Deliver stores the notification. An unknown recipient is not retried.
func (a *Activities) Deliver(ctx context.Context, d service.Delivery) (uint64, error) {
	logger := activity.GetLogger(ctx)
	if a == nil || a.notifications == nil {
		return 0, errors.New("redelivery activity not initialized")
	}
	n, err := deliver(ctx, a.notifications, d)
	if err != nil {
		logger.Warn("Deliver activity failed", "transactionId", d.TransactionID, "recipient", d.UserUID, "error", err)
		if errors.Is(err, lifecycle.ErrUnknownRecipient) {
			return 0, temporal.NewNonRetryableApplicationError(err.Error(), unknownRecipientType, err)
		}
		return 0, err
	}
	logger.Info("Deliver activity completed", "transactionId", d.TransactionID, "notificationId", n.ID)
	return n.ID, nil
}

func deliver(ctx context.Context, n notifier, d service.Delivery) (*model.Notification, error) {
	var txnID *string
	if d.TransactionID != "" {
		id := d.TransactionID
		txnID = &id
	}
	return n.Notify(ctx, d.UserUID, d.Type, d.Message, txnID)
}

// Workflow runs Deliver until it succeeds or the retry policy gives up.
func Workflow(ctx workflow.Context, in WorkflowInput) (uint64, error) {
	logger := workflow.GetLogger(ctx)
	attempts := in.MaxAttempts
	if attempts <= 0 {
		attempts = 5
	}
	interval := in.Interval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:        interval,
			BackoffCoefficient:     2.0,
			MaximumInterval:        10 * interval,
			MaximumAttempts:        attempts,
			NonRetryableErrorTypes: []string{unknownRecipientType},
		},
	})

	var id uint64
	if err := workflow.ExecuteActivity(ctx, ActivityName, in.Delivery).Get(ctx, &id); err != nil {
		logger.Error("notification redelivery failed", "transactionId", in.Delivery.TransactionID, "error", err)
		return 0, err
	}
	logger.Info("notification redelivered", "transactionId", in.Delivery.TransactionID, "notificationId", id)
	return id, nil
}
