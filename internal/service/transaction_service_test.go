package service

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/shinyyama/community-backend/internal/lifecycle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenario_OrderApproved(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	txn := f.order(t)
	assert.Equal(t, lifecycle.StatusPending, txn.Status)
	assert.Equal(t, lifecycle.PaymentUnpaid, txn.PaymentStatus)
	assert.EqualValues(t, 250000, txn.TotalAmount)
	assert.Equal(t, sellerUID, txn.Seller())

	txn, err := f.txns.SubmitPaymentProof(ctx, txn.ID, buyerUID, "proofs/a.png")
	require.NoError(t, err)
	require.True(t, txn.HasProof())
	assert.Equal(t, lifecycle.StatusPending, txn.Status)

	txn, err = f.verify.ApplyVerification(ctx, txn.ID, adminUID, lifecycle.DecisionApprove, "transfer matches")
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StatusPaymentConfirmed, txn.Status)
	assert.Equal(t, lifecycle.PaymentPaid, txn.PaymentStatus)

	inbox := f.inbox(t, buyerUID)
	require.Len(t, inbox, 1)
	assert.Equal(t, string(lifecycle.NotifyPaymentConfirmed), inbox[0].Type)
	require.NotNil(t, inbox[0].TransactionID)
	assert.Equal(t, txn.ID, *inbox[0].TransactionID)

	sellerInbox := f.inbox(t, sellerUID)
	require.Len(t, sellerInbox, 1)
	assert.Equal(t, string(lifecycle.NotifyPaymentSubmitted), sellerInbox[0].Type)
}

func TestScenario_OrderRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	txn := f.order(t)

	_, err := f.txns.SubmitPaymentProof(ctx, txn.ID, buyerUID, "proofs/a.png")
	require.NoError(t, err)
	txn, err = f.verify.ApplyVerification(ctx, txn.ID, adminUID, lifecycle.DecisionReject, "amount mismatch")
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StatusCancelled, txn.Status)
	assert.Equal(t, lifecycle.PaymentRejected, txn.PaymentStatus)

	inbox := f.inbox(t, buyerUID)
	require.Len(t, inbox, 1)
	assert.Equal(t, string(lifecycle.NotifyPaymentRejected), inbox[0].Type)

	_, err = f.txns.MarkShipped(ctx, txn.ID, sellerUID, "TRK-1")
	require.ErrorIs(t, err, lifecycle.ErrInvalidTransition)
}

func TestScenario_ConfirmDeliveryTwice(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	txn := f.paidOrder(t)

	txn, err := f.txns.MarkShipped(ctx, txn.ID, sellerUID, "TRK-1")
	require.NoError(t, err)
	require.Equal(t, lifecycle.StatusShipped, txn.Status)
	require.NotNil(t, txn.TrackingRef)
	assert.Equal(t, "TRK-1", *txn.TrackingRef)

	txn, err = f.txns.ConfirmDelivery(ctx, txn.ID, buyerUID)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StatusDelivered, txn.Status)

	_, err = f.txns.ConfirmDelivery(ctx, txn.ID, buyerUID)
	require.ErrorIs(t, err, lifecycle.ErrInvalidTransition)
}

func TestScenario_EnrollmentProofTwice(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	txn := f.enrollment(t)
	assert.Equal(t, lifecycle.StatusActive, txn.Status)
	assert.Nil(t, txn.CounterpartyUID)

	_, err := f.txns.SubmitPaymentProof(ctx, txn.ID, buyerUID, "proofs/one.png")
	require.NoError(t, err)
	_, err = f.txns.SubmitPaymentProof(ctx, txn.ID, buyerUID, "proofs/two.png")
	require.ErrorIs(t, err, lifecycle.ErrAlreadySubmitted)

	got, err := f.txns.Get(ctx, txn.ID, buyerUID)
	require.NoError(t, err)
	assert.Equal(t, "proofs/one.png", *got.PaymentProofRef)
}

func TestCreate_Guards(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	tests := []struct {
		name    string
		kind    lifecycle.Kind
		buyer   string
		subject uint64
		qty     int64
		want    error
	}{
		{"zero quantity", lifecycle.KindOrder, buyerUID, itemID, 0, lifecycle.ErrInvalidInput},
		{"unknown kind", lifecycle.Kind("gift"), buyerUID, itemID, 1, lifecycle.ErrInvalidInput},
		{"missing item", lifecycle.KindOrder, buyerUID, 99, 1, lifecycle.ErrSubjectUnavailable},
		{"hidden item", lifecycle.KindOrder, buyerUID, 2, 1, lifecycle.ErrSubjectUnavailable},
		{"own item", lifecycle.KindOrder, sellerUID, itemID, 1, lifecycle.ErrSubjectUnavailable},
		{"unpublished course", lifecycle.KindEnrollment, buyerUID, 11, 1, lifecycle.ErrSubjectUnavailable},
		{"enrollment quantity", lifecycle.KindEnrollment, buyerUID, courseID, 3, lifecycle.ErrInvalidInput},
		{"anonymous", lifecycle.KindOrder, "", itemID, 1, lifecycle.ErrUnauthorized},
		{"zero price item", lifecycle.KindOrder, buyerUID, freeItemID, 1, lifecycle.ErrSubjectUnavailable},
		{"zero price course", lifecycle.KindEnrollment, buyerUID, freeCourseID, 1, lifecycle.ErrSubjectUnavailable},
		{"total overflows", lifecycle.KindOrder, buyerUID, itemID, math.MaxInt64/250000 + 1, lifecycle.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.txns.Create(ctx, tt.kind, tt.buyer, tt.subject, tt.qty)
			require.ErrorIs(t, err, tt.want)
		})
	}

	mine, err := f.txns.ListMine(ctx, buyerUID, "", 0, 0)
	require.NoError(t, err)
	assert.Empty(t, mine)
}

func TestCreate_OrderTotalAndHistory(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	txn, err := f.txns.Create(ctx, lifecycle.KindOrder, buyerUID, itemID, 3)
	require.NoError(t, err)
	assert.EqualValues(t, 750000, txn.TotalAmount)
	assert.NotEmpty(t, txn.ID)

	hist := f.history(t, txn.ID)
	require.Len(t, hist, 1)
	assert.Equal(t, lifecycle.OpCreate, hist[0].Op)
	assert.Equal(t, lifecycle.StatusPending, hist[0].NewStatus)
}

func TestCreate_EnrollmentOncePerCourseUntilRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	first := f.enrollment(t)

	_, err := f.txns.Create(ctx, lifecycle.KindEnrollment, buyerUID, courseID, 1)
	require.ErrorIs(t, err, lifecycle.ErrSubjectUnavailable)

	_, err = f.verify.ApplyVerification(ctx, first.ID, adminUID, lifecycle.DecisionReject, "no transfer found")
	require.NoError(t, err)

	second, err := f.txns.Create(ctx, lifecycle.KindEnrollment, buyerUID, courseID, 1)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestMarkShipped_Guards(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	txn := f.paidOrder(t)

	_, err := f.txns.MarkShipped(ctx, txn.ID, buyerUID, "TRK-1")
	require.ErrorIs(t, err, lifecycle.ErrUnauthorized)

	_, err = f.txns.MarkShipped(ctx, txn.ID, sellerUID, "  ")
	require.ErrorIs(t, err, lifecycle.ErrInvalidInput)

	_, err = f.txns.MarkShipped(ctx, txn.ID, sellerUID, "TRK-1")
	require.NoError(t, err)
	_, err = f.txns.MarkShipped(ctx, txn.ID, sellerUID, "TRK-2")
	require.ErrorIs(t, err, lifecycle.ErrInvalidTransition)
}

func TestSubmitPaymentProof_Guards(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	txn := f.order(t)

	_, err := f.txns.SubmitPaymentProof(ctx, txn.ID, strangerID, "proofs/a.png")
	require.ErrorIs(t, err, lifecycle.ErrUnauthorized)

	_, err = f.txns.SubmitPaymentProof(ctx, txn.ID, buyerUID, "")
	require.ErrorIs(t, err, lifecycle.ErrInvalidInput)

	_, err = f.txns.SubmitPaymentProof(ctx, "missing", buyerUID, "proofs/a.png")
	require.ErrorIs(t, err, lifecycle.ErrNotFound)
}

func TestComplete_OrderCreditsSeller(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	txn := f.deliveredOrder(t)

	txn, err := f.txns.Complete(ctx, txn.ID, sellerUID)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StatusCompleted, txn.Status)

	rev, err := f.ledger.Revenues().Get(ctx, sellerUID)
	require.NoError(t, err)
	assert.EqualValues(t, 250000, rev.Amount)
	assert.EqualValues(t, 1, rev.Orders)

	_, err = f.txns.Complete(ctx, txn.ID, buyerUID)
	require.ErrorIs(t, err, lifecycle.ErrInvalidTransition)
}

func TestComplete_Enrollment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	txn := f.enrollment(t)

	_, err := f.txns.Complete(ctx, txn.ID, buyerUID)
	require.ErrorIs(t, err, lifecycle.ErrInvalidTransition)

	_, err = f.txns.SubmitPaymentProof(ctx, txn.ID, buyerUID, "proofs/e.pdf")
	require.NoError(t, err)
	txn, err = f.verify.ApplyVerification(ctx, txn.ID, adminUID, lifecycle.DecisionApprove, "")
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StatusApproved, txn.Status)

	txn, err = f.txns.Complete(ctx, txn.ID, buyerUID)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StatusCompleted, txn.Status)

	rev, err := f.ledger.Revenues().Get(ctx, instructorUID)
	require.NoError(t, err)
	assert.Zero(t, rev.Amount)
}

func TestUploadProof(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	txn := f.order(t)

	_, err := f.txns.UploadProof(ctx, txn.ID, buyerUID, []byte("gif"), "image/gif")
	require.ErrorIs(t, err, lifecycle.ErrInvalidInput)

	_, err = f.txns.UploadProof(ctx, txn.ID, buyerUID, make([]byte, 2<<20), "image/png")
	require.ErrorIs(t, err, lifecycle.ErrInvalidInput)

	f.proofs.Err = errors.New("bucket unavailable")
	_, err = f.txns.UploadProof(ctx, txn.ID, buyerUID, []byte("png"), "image/png")
	require.ErrorIs(t, err, lifecycle.ErrStorageFailure)
	got, err := f.txns.Get(ctx, txn.ID, buyerUID)
	require.NoError(t, err)
	assert.False(t, got.HasProof())

	f.proofs.Err = nil
	got, err = f.txns.UploadProof(ctx, txn.ID, buyerUID, []byte("png"), "image/png; charset=binary")
	require.NoError(t, err)
	require.True(t, got.HasProof())
	assert.Equal(t, 1, f.proofs.Len())

	_, err = f.txns.UploadProof(ctx, txn.ID, buyerUID, []byte("png"), "image/png")
	require.ErrorIs(t, err, lifecycle.ErrAlreadySubmitted)
	assert.Equal(t, 1, f.proofs.Len(), "rejected upload must not leave an object behind")

	url, err := f.verify.ProofURL(ctx, txn.ID, adminUID)
	require.NoError(t, err)
	assert.Contains(t, url, *got.PaymentProofRef)
}

func TestGet_OnlyParties(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	txn := f.order(t)

	for _, uid := range []string{buyerUID, sellerUID, adminUID} {
		_, err := f.txns.Get(ctx, txn.ID, uid)
		require.NoError(t, err, uid)
	}
	_, err := f.txns.Get(ctx, txn.ID, strangerID)
	require.ErrorIs(t, err, lifecycle.ErrUnauthorized)
}

func TestListMineAndSales(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.order(t)
	f.enrollment(t)

	mine, err := f.txns.ListMine(ctx, buyerUID, "", 0, 0)
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	orders, err := f.txns.ListMine(ctx, buyerUID, lifecycle.KindOrder, 0, 0)
	require.NoError(t, err)
	assert.Len(t, orders, 1)

	sales, err := f.txns.ListSales(ctx, sellerUID, 0, 0)
	require.NoError(t, err)
	assert.Len(t, sales, 1)

	_, err = f.txns.ListMine(ctx, buyerUID, lifecycle.Kind("gift"), 0, 0)
	require.ErrorIs(t, err, lifecycle.ErrInvalidInput)
}

func TestNotificationFailure_KeepsLedgerAndQueuesRetry(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, withNotifier(failingNotifier{err: lifecycle.ErrNotificationDispatch}))
	txn := f.order(t)

	_, err := f.txns.SubmitPaymentProof(ctx, txn.ID, buyerUID, "proofs/a.png")
	require.NoError(t, err)
	txn, err = f.verify.ApplyVerification(ctx, txn.ID, adminUID, lifecycle.DecisionApprove, "")
	require.NoError(t, err)
	assert.Equal(t, lifecycle.PaymentPaid, txn.PaymentStatus)

	stored, err := f.ledger.Transactions().FindByID(ctx, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StatusPaymentConfirmed, stored.Status)

	queued := f.redeliver.all()
	require.Len(t, queued, 2)
	assert.Equal(t, sellerUID, queued[0].UserUID)
	assert.Equal(t, Delivery{
		UserUID:       buyerUID,
		Type:          string(lifecycle.NotifyPaymentConfirmed),
		Message:       queued[1].Message,
		TransactionID: txn.ID,
	}, queued[1])
}

func TestUnknownRecipient_IsNotRetried(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, withNotifier(failingNotifier{err: lifecycle.ErrUnknownRecipient}))
	txn := f.order(t)

	_, err := f.txns.SubmitPaymentProof(ctx, txn.ID, buyerUID, "proofs/a.png")
	require.NoError(t, err)
	assert.Empty(t, f.redeliver.all())
}
