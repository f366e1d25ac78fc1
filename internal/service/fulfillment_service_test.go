package service

import (
	"context"
	"testing"

	"github.com/shinyyama/community-backend/internal/lifecycle"
	"github.com/shinyyama/community-backend/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitReview_CompletesOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	txn := f.deliveredOrder(t)

	done, review, err := f.fulfil.SubmitReview(ctx, txn.ID, buyerUID, 5, "great camera")
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StatusCompleted, done.Status)
	assert.Equal(t, 5, review.Rating)
	assert.NotZero(t, review.ID)

	rev, err := f.ledger.Revenues().Get(ctx, sellerUID)
	require.NoError(t, err)
	assert.EqualValues(t, txn.TotalAmount, rev.Amount)

	_, _, err = f.fulfil.SubmitReview(ctx, txn.ID, buyerUID, 4, "again")
	require.ErrorIs(t, err, lifecycle.ErrAlreadySubmitted)
}

func TestSubmitReview_Guards(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	txn := f.paidOrder(t)

	_, _, err := f.fulfil.SubmitReview(ctx, txn.ID, buyerUID, 0, "")
	require.ErrorIs(t, err, lifecycle.ErrInvalidInput)

	_, _, err = f.fulfil.SubmitReview(ctx, txn.ID, sellerUID, 5, "")
	require.ErrorIs(t, err, lifecycle.ErrUnauthorized)

	_, _, err = f.fulfil.SubmitReview(ctx, txn.ID, buyerUID, 5, "")
	require.ErrorIs(t, err, lifecycle.ErrInvalidTransition, "not delivered yet")
}

func TestSubmitReview_FollowsTransitionTable(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	pending := f.enrollment(t)
	_, _, err := f.fulfil.SubmitReview(ctx, pending.ID, buyerUID, 5, "")
	require.ErrorIs(t, err, lifecycle.ErrInvalidTransition, "enrollment not approved")

	completed := f.deliveredOrder(t)
	_, err = f.txns.Complete(ctx, completed.ID, sellerUID)
	require.NoError(t, err)
	_, _, err = f.fulfil.SubmitReview(ctx, completed.ID, buyerUID, 5, "late")
	require.ErrorIs(t, err, lifecycle.ErrInvalidTransition, "already completed")
}

func TestSubmitReview_CompletesEnrollment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	txn := f.enrollment(t)
	_, err := f.txns.SubmitPaymentProof(ctx, txn.ID, buyerUID, "proofs/e.png")
	require.NoError(t, err)
	_, err = f.verify.ApplyVerification(ctx, txn.ID, adminUID, lifecycle.DecisionApprove, "")
	require.NoError(t, err)

	done, _, err := f.fulfil.SubmitReview(ctx, txn.ID, buyerUID, 4, "clear lessons")
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StatusCompleted, done.Status)
}

func TestSubmitReview_RollsBackCompletionWhenReviewFails(t *testing.T) {
	ctx := context.Background()
	base := newFixture(t)
	f := newFixture(t, withLedger(failingReviews{base.ledger}))
	f.ledger = base.ledger
	txn := f.deliveredOrder(t)

	_, _, err := f.fulfil.SubmitReview(ctx, txn.ID, buyerUID, 5, "")
	require.ErrorIs(t, err, errReviewInsert)

	stored, err := base.ledger.Transactions().FindByID(ctx, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StatusDelivered, stored.Status)

	for _, h := range f.history(t, txn.ID) {
		assert.NotEqual(t, lifecycle.OpComplete, h.Op)
	}
	_, err = base.ledger.Reviews().FindByTransaction(ctx, txn.ID)
	require.ErrorIs(t, err, repository.ErrNotFound)

	rev, err := base.ledger.Revenues().Get(ctx, sellerUID)
	require.NoError(t, err)
	assert.Zero(t, rev.Amount)
}
