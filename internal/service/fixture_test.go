package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/shinyyama/community-backend/internal/lifecycle"
	"github.com/shinyyama/community-backend/internal/model"
	"github.com/shinyyama/community-backend/internal/repository"
	"github.com/shinyyama/community-backend/internal/repository/memory"
	"github.com/stretchr/testify/require"
)

const (
	buyerUID      = "buyer-b"
	sellerUID     = "seller-s"
	adminUID      = "admin-a"
	instructorUID = "instructor-t"
	strangerID    = "stranger-x"

	itemID       uint64 = 1
	freeItemID   uint64 = 3
	courseID     uint64 = 10
	freeCourseID uint64 = 12
)

type recordingRedeliverer struct {
	mu         sync.Mutex
	deliveries []Delivery
}

func (r *recordingRedeliverer) Enqueue(_ context.Context, d Delivery) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deliveries = append(r.deliveries, d)
	return nil
}

func (r *recordingRedeliverer) all() []Delivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Delivery(nil), r.deliveries...)
}

type failingNotifier struct{ err error }

func (f failingNotifier) Notify(context.Context, string, string, string, *string) (*model.Notification, error) {
	return nil, f.err
}

type fixture struct {
	ledger    *memory.Ledger
	notes     *memory.Notifications
	proofs    *MemoryProofStorage
	redeliver *recordingRedeliverer

	machine *StateMachine
	txns    TransactionService
	verify  VerificationService
	fulfil  FulfillmentService
	notify  NotificationService
}

type fixtureOption func(*fixtureConfig)

type fixtureConfig struct {
	ledger   repository.Ledger
	notifier notifier
}

func withLedger(l repository.Ledger) fixtureOption {
	return func(c *fixtureConfig) { c.ledger = l }
}

func withNotifier(n notifier) fixtureOption {
	return func(c *fixtureConfig) { c.notifier = n }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()
	ctx := context.Background()

	items := memory.NewItems()
	require.NoError(t, items.Create(ctx, &model.Item{ID: itemID, SellerUID: sellerUID, Title: "camera", Description: "film camera", Price: 250000}))
	require.NoError(t, items.Create(ctx, &model.Item{ID: 2, SellerUID: sellerUID, Title: "lens", Description: "50mm", Price: 30000, Status: model.ItemStatusHidden}))
	require.NoError(t, items.Create(ctx, &model.Item{ID: freeItemID, SellerUID: sellerUID, Title: "strap", Description: "giveaway"}))
	courses := memory.NewCourses()
	require.NoError(t, courses.Create(ctx, &model.Course{ID: courseID, OwnerUID: instructorUID, Title: "darkroom basics", Price: 12000, Published: true}))
	require.NoError(t, courses.Create(ctx, &model.Course{ID: 11, OwnerUID: instructorUID, Title: "draft", Price: 5000}))
	require.NoError(t, courses.Create(ctx, &model.Course{ID: freeCourseID, OwnerUID: instructorUID, Title: "open day", Published: true}))

	f := &fixture{
		ledger:    memory.NewLedger(),
		notes:     memory.NewNotifications(),
		proofs:    NewMemoryProofStorage(),
		redeliver: &recordingRedeliverer{},
	}
	f.notify = NewNotificationService(f.notes)

	cfg := fixtureConfig{ledger: f.ledger, notifier: f.notify}
	for _, opt := range opts {
		opt(&cfg)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.machine = NewStateMachine(cfg.ledger, NewStaticAuthorizer([]string{adminUID}), cfg.notifier,
		WithLogger(logger),
		WithRedeliverer(f.redeliver),
	)
	f.txns = NewTransactionService(f.machine, NewCatalog(items, courses), f.proofs, 1<<20)
	f.verify = NewVerificationService(f.machine, f.proofs)
	f.fulfil = NewFulfillmentService(f.machine)
	return f
}

func (f *fixture) order(t *testing.T) *model.Transaction {
	t.Helper()
	txn, err := f.txns.Create(context.Background(), lifecycle.KindOrder, buyerUID, itemID, 1)
	require.NoError(t, err)
	return txn
}

func (f *fixture) enrollment(t *testing.T) *model.Transaction {
	t.Helper()
	txn, err := f.txns.Create(context.Background(), lifecycle.KindEnrollment, buyerUID, courseID, 1)
	require.NoError(t, err)
	return txn
}

// paidOrder returns an order that has been approved.
func (f *fixture) paidOrder(t *testing.T) *model.Transaction {
	t.Helper()
	ctx := context.Background()
	txn := f.order(t)
	_, err := f.txns.SubmitPaymentProof(ctx, txn.ID, buyerUID, "proofs/"+txn.ID+"/a.png")
	require.NoError(t, err)
	txn, err = f.verify.ApplyVerification(ctx, txn.ID, adminUID, lifecycle.DecisionApprove, "")
	require.NoError(t, err)
	return txn
}

func (f *fixture) deliveredOrder(t *testing.T) *model.Transaction {
	t.Helper()
	ctx := context.Background()
	txn := f.paidOrder(t)
	_, err := f.txns.MarkShipped(ctx, txn.ID, sellerUID, "TRK-1")
	require.NoError(t, err)
	txn, err = f.txns.ConfirmDelivery(ctx, txn.ID, buyerUID)
	require.NoError(t, err)
	return txn
}

func (f *fixture) inbox(t *testing.T, uid string) []model.Notification {
	t.Helper()
	list, _, err := f.notify.List(context.Background(), uid, false, 50)
	require.NoError(t, err)
	return list
}

func (f *fixture) history(t *testing.T, id string) []model.TransactionHistory {
	t.Helper()
	list, err := f.ledger.History().ListByTransaction(context.Background(), id)
	require.NoError(t, err)
	return list
}

// failingReviews makes every review insert fail while leaving the rest of the
// ledger untouched.
type failingReviews struct {
	repository.Ledger
}

var errReviewInsert = errors.New("review insert failed")

func (f failingReviews) Reviews() repository.ReviewRepository {
	return brokenReviewRepo{f.Ledger.Reviews()}
}

func (f failingReviews) Atomic(ctx context.Context, fn func(repository.Ledger) error) error {
	return f.Ledger.Atomic(ctx, func(l repository.Ledger) error {
		return fn(failingReviews{l})
	})
}

type brokenReviewRepo struct {
	repository.ReviewRepository
}

func (brokenReviewRepo) Create(context.Context, *model.Review) error {
	return errReviewInsert
}
