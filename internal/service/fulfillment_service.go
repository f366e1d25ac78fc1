package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shinyyama/community-backend/internal/lifecycle"
	"github.com/shinyyama/community-backend/internal/model"
	"github.com/shinyyama/community-backend/internal/repository"
)

const maxReviewComment = 2000

type FulfillmentService interface {
	// SubmitReview files the buyer's review and completes the transaction in
	// one atomic step.
	SubmitReview(ctx context.Context, id, actorUID string, rating int, comment string) (*model.Transaction, *model.Review, error)
}

type fulfillmentService struct {
	machine *StateMachine
}

func NewFulfillmentService(machine *StateMachine) FulfillmentService {
	return &fulfillmentService{machine: machine}
}

func (s *fulfillmentService) SubmitReview(ctx context.Context, id, actorUID string, rating int, comment string) (*model.Transaction, *model.Review, error) {
	if rating < 1 || rating > 5 {
		return nil, nil, fmt.Errorf("%w: rating must be between 1 and 5", lifecycle.ErrInvalidInput)
	}
	comment = strings.TrimSpace(comment)
	if len(comment) > maxReviewComment {
		return nil, nil, fmt.Errorf("%w: comment is too long", lifecycle.ErrInvalidInput)
	}

	txn, err := s.machine.Load(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if txn.Relation(actorUID)&lifecycle.PartyBuyer == 0 {
		return nil, nil, fmt.Errorf("%w: only the buyer can review", lifecycle.ErrUnauthorized)
	}
	if _, err := s.machine.ledger.Reviews().FindByTransaction(ctx, id); err == nil {
		return nil, nil, fmt.Errorf("%w: transaction %s already reviewed", lifecycle.ErrAlreadySubmitted, id)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, nil, err
	}
	if _, err := lifecycle.Evaluate(txn.Facts(lifecycle.PartyBuyer, false), lifecycle.OpComplete); err != nil {
		return nil, nil, err
	}

	review := &model.Review{
		TransactionID: id,
		AuthorUID:     actorUID,
		Rating:        rating,
		Comment:       comment,
	}
	updated, err := s.machine.Apply(ctx, Transition{
		ID:       id,
		ActorUID: actorUID,
		Op:       lifecycle.OpComplete,
		Note:     "review submitted",
		Within: func(ctx context.Context, l repository.Ledger, _ *model.Transaction) error {
			if err := l.Reviews().Create(ctx, review); err != nil {
				if errors.Is(err, repository.ErrDuplicate) {
					return fmt.Errorf("%w: transaction %s already reviewed", lifecycle.ErrAlreadySubmitted, id)
				}
				return err
			}
			return nil
		},
	})
	if err != nil {
		return nil, nil, err
	}
	return updated, review, nil
}
