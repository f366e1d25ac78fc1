package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/shinyyama/community-backend/internal/lifecycle"
	"github.com/shinyyama/community-backend/internal/model"
	"github.com/shinyyama/community-backend/internal/repository"
)

// ReviewQuery filters the administrator review queue.
type ReviewQuery struct {
	Kind          lifecycle.Kind
	PaymentStatus lifecycle.PaymentStatus
	Status        lifecycle.Status
	Text          string
	Limit         int
	Offset        int
}

type VerificationService interface {
	ApplyVerification(ctx context.Context, id, actorUID string, decision lifecycle.Decision, note string) (*model.Transaction, error)
	ListForReview(ctx context.Context, actorUID string, q ReviewQuery) ([]model.Transaction, error)
	History(ctx context.Context, id, actorUID string) ([]model.TransactionHistory, error)
	ProofURL(ctx context.Context, id, actorUID string) (string, error)
}

type verificationService struct {
	machine *StateMachine
	proofs  ProofStorage
}

func NewVerificationService(machine *StateMachine, proofs ProofStorage) VerificationService {
	return &verificationService{machine: machine, proofs: proofs}
}

func (s *verificationService) ApplyVerification(ctx context.Context, id, actorUID string, decision lifecycle.Decision, note string) (*model.Transaction, error) {
	op, err := decision.Op()
	if err != nil {
		return nil, err
	}
	return s.machine.Apply(ctx, Transition{
		ID:       id,
		ActorUID: actorUID,
		Op:       op,
		Note:     strings.TrimSpace(note),
	})
}

func (s *verificationService) requireAdmin(ctx context.Context, uid string) error {
	ok, err := s.machine.IsAdmin(ctx, uid)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: administrator role required", lifecycle.ErrUnauthorized)
	}
	return nil
}

func (s *verificationService) ListForReview(ctx context.Context, actorUID string, q ReviewQuery) ([]model.Transaction, error) {
	if err := s.requireAdmin(ctx, actorUID); err != nil {
		return nil, err
	}
	if q.Kind != "" && !q.Kind.Valid() {
		return nil, fmt.Errorf("%w: unknown kind %q", lifecycle.ErrInvalidInput, q.Kind)
	}
	if q.PaymentStatus != "" && !q.PaymentStatus.Valid() {
		return nil, fmt.Errorf("%w: unknown payment status %q", lifecycle.ErrInvalidInput, q.PaymentStatus)
	}
	if q.Status != "" && !q.Status.Valid(lifecycle.KindOrder) && !q.Status.Valid(lifecycle.KindEnrollment) {
		return nil, fmt.Errorf("%w: unknown status %q", lifecycle.ErrInvalidInput, q.Status)
	}
	limit, offset := page(q.Limit, q.Offset)
	return s.machine.ledger.Transactions().List(ctx, repository.TransactionFilter{
		Kind:          q.Kind,
		Status:        q.Status,
		PaymentStatus: q.PaymentStatus,
		Query:         q.Text,
		Limit:         limit,
		Offset:        offset,
	})
}

func (s *verificationService) History(ctx context.Context, id, actorUID string) ([]model.TransactionHistory, error) {
	if err := s.requireAdmin(ctx, actorUID); err != nil {
		return nil, err
	}
	if _, err := s.machine.Load(ctx, id); err != nil {
		return nil, err
	}
	return s.machine.ledger.History().ListByTransaction(ctx, id)
}

func (s *verificationService) ProofURL(ctx context.Context, id, actorUID string) (string, error) {
	if err := s.requireAdmin(ctx, actorUID); err != nil {
		return "", err
	}
	txn, err := s.machine.Load(ctx, id)
	if err != nil {
		return "", err
	}
	if !txn.HasProof() {
		return "", fmt.Errorf("%w: transaction %s has no payment proof", lifecycle.ErrNotFound, id)
	}
	return s.proofs.Resolve(ctx, *txn.PaymentProofRef)
}
