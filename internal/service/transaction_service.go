package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/shinyyama/community-backend/internal/lifecycle"
	"github.com/shinyyama/community-backend/internal/model"
	"github.com/shinyyama/community-backend/internal/repository"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

type TransactionService interface {
	Create(ctx context.Context, kind lifecycle.Kind, buyerUID string, subjectID uint64, quantity int64) (*model.Transaction, error)
	SubmitPaymentProof(ctx context.Context, id, actorUID, proofRef string) (*model.Transaction, error)
	// UploadProof stores the file and then submits its reference.
	UploadProof(ctx context.Context, id, actorUID string, data []byte, contentType string) (*model.Transaction, error)
	MarkShipped(ctx context.Context, id, actorUID, trackingRef string) (*model.Transaction, error)
	ConfirmDelivery(ctx context.Context, id, actorUID string) (*model.Transaction, error)
	Complete(ctx context.Context, id, actorUID string) (*model.Transaction, error)
	Get(ctx context.Context, id, actorUID string) (*model.Transaction, error)
	ListMine(ctx context.Context, buyerUID string, kind lifecycle.Kind, limit, offset int) ([]model.Transaction, error)
	ListSales(ctx context.Context, sellerUID string, limit, offset int) ([]model.Transaction, error)
}

type transactionService struct {
	machine       *StateMachine
	catalog       Catalog
	proofs        ProofStorage
	proofMaxBytes int64
	logger        *slog.Logger
}

func NewTransactionService(machine *StateMachine, catalog Catalog, proofs ProofStorage, proofMaxBytes int64) TransactionService {
	return &transactionService{
		machine:       machine,
		catalog:       catalog,
		proofs:        proofs,
		proofMaxBytes: proofMaxBytes,
		logger:        machine.logger,
	}
}

func (s *transactionService) Create(ctx context.Context, kind lifecycle.Kind, buyerUID string, subjectID uint64, quantity int64) (*model.Transaction, error) {
	if buyerUID == "" {
		return nil, fmt.Errorf("%w: buyer is required", lifecycle.ErrUnauthorized)
	}
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown kind %q", lifecycle.ErrInvalidInput, kind)
	}
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", lifecycle.ErrInvalidInput)
	}
	if kind == lifecycle.KindEnrollment && quantity != 1 {
		return nil, fmt.Errorf("%w: an enrollment has quantity 1", lifecycle.ErrInvalidInput)
	}
	subject, err := s.catalog.Lookup(ctx, kind, subjectID)
	if err != nil {
		return nil, err
	}
	if subject.OwnerUID == buyerUID {
		return nil, fmt.Errorf("%w: cannot buy your own %s", lifecycle.ErrSubjectUnavailable, kind)
	}
	if subject.Price <= 0 {
		return nil, fmt.Errorf("%w: subject %d has no price", lifecycle.ErrSubjectUnavailable, subjectID)
	}
	if quantity > math.MaxInt64/subject.Price {
		return nil, fmt.Errorf("%w: quantity %d overflows the total", lifecycle.ErrInvalidInput, quantity)
	}

	txn := &model.Transaction{
		ID:            uuid.NewString(),
		Kind:          kind,
		BuyerUID:      buyerUID,
		SubjectID:     subject.ID,
		Quantity:      quantity,
		TotalAmount:   subject.Price * quantity,
		Status:        lifecycle.InitialStatus(kind),
		PaymentStatus: lifecycle.PaymentUnpaid,
	}
	if kind == lifecycle.KindOrder {
		seller := subject.OwnerUID
		txn.CounterpartyUID = &seller
	}

	err = s.machine.ledger.Atomic(ctx, func(l repository.Ledger) error {
		if kind == lifecycle.KindEnrollment {
			open, err := l.Transactions().CountOpen(ctx, kind, buyerUID, subject.ID)
			if err != nil {
				return err
			}
			if open > 0 {
				return fmt.Errorf("%w: already enrolled in course %d", lifecycle.ErrSubjectUnavailable, subject.ID)
			}
		}
		if err := l.Transactions().Create(ctx, txn); err != nil {
			return err
		}
		return l.History().Append(ctx, &model.TransactionHistory{
			TransactionID: txn.ID,
			ActorUID:      buyerUID,
			Op:            lifecycle.OpCreate,
			NewStatus:     txn.Status,
		})
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

func (s *transactionService) SubmitPaymentProof(ctx context.Context, id, actorUID, proofRef string) (*model.Transaction, error) {
	return s.machine.Apply(ctx, Transition{
		ID:       id,
		ActorUID: actorUID,
		Op:       lifecycle.OpSubmitProof,
		ProofRef: strings.TrimSpace(proofRef),
	})
}

func (s *transactionService) UploadProof(ctx context.Context, id, actorUID string, data []byte, contentType string) (*model.Transaction, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: proof file is empty", lifecycle.ErrInvalidInput)
	}
	if s.proofMaxBytes > 0 && int64(len(data)) > s.proofMaxBytes {
		return nil, fmt.Errorf("%w: proof exceeds %d bytes", lifecycle.ErrInvalidInput, s.proofMaxBytes)
	}
	if !AllowedProofType(contentType) {
		return nil, fmt.Errorf("%w: unsupported proof type %q", lifecycle.ErrInvalidInput, contentType)
	}

	// Reject early so a transaction that cannot take a proof leaves no object behind.
	txn, err := s.machine.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	actor, err := s.machine.Party(ctx, txn, actorUID)
	if err != nil {
		return nil, err
	}
	if _, err := lifecycle.Evaluate(txn.Facts(actor, false), lifecycle.OpSubmitProof); err != nil {
		return nil, err
	}

	ref, err := s.proofs.Store(ctx, txn.ID, data, contentType)
	if err != nil {
		return nil, err
	}
	updated, err := s.SubmitPaymentProof(ctx, id, actorUID, ref)
	if err != nil {
		if derr := s.proofs.Delete(context.WithoutCancel(ctx), ref); derr != nil {
			s.logger.Warn("orphaned payment proof", slog.String("ref", ref), slog.String("error", derr.Error()))
		}
		return nil, err
	}
	return updated, nil
}

func (s *transactionService) MarkShipped(ctx context.Context, id, actorUID, trackingRef string) (*model.Transaction, error) {
	return s.machine.Apply(ctx, Transition{
		ID:          id,
		ActorUID:    actorUID,
		Op:          lifecycle.OpShip,
		TrackingRef: strings.TrimSpace(trackingRef),
	})
}

func (s *transactionService) ConfirmDelivery(ctx context.Context, id, actorUID string) (*model.Transaction, error) {
	return s.machine.Apply(ctx, Transition{ID: id, ActorUID: actorUID, Op: lifecycle.OpConfirmDelivery})
}

func (s *transactionService) Complete(ctx context.Context, id, actorUID string) (*model.Transaction, error) {
	return s.machine.Apply(ctx, Transition{ID: id, ActorUID: actorUID, Op: lifecycle.OpComplete})
}

func (s *transactionService) Get(ctx context.Context, id, actorUID string) (*model.Transaction, error) {
	txn, err := s.machine.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	actor, err := s.machine.Party(ctx, txn, actorUID)
	if err != nil {
		return nil, err
	}
	if actor == 0 {
		return nil, fmt.Errorf("%w: not a party to transaction %s", lifecycle.ErrUnauthorized, id)
	}
	return txn, nil
}

func (s *transactionService) ListMine(ctx context.Context, buyerUID string, kind lifecycle.Kind, limit, offset int) ([]model.Transaction, error) {
	if buyerUID == "" {
		return nil, lifecycle.ErrUnauthorized
	}
	if kind != "" && !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown kind %q", lifecycle.ErrInvalidInput, kind)
	}
	limit, offset = page(limit, offset)
	return s.machine.ledger.Transactions().List(ctx, repository.TransactionFilter{
		Kind:     kind,
		BuyerUID: buyerUID,
		Limit:    limit,
		Offset:   offset,
	})
}

func (s *transactionService) ListSales(ctx context.Context, sellerUID string, limit, offset int) ([]model.Transaction, error) {
	if sellerUID == "" {
		return nil, lifecycle.ErrUnauthorized
	}
	limit, offset = page(limit, offset)
	return s.machine.ledger.Transactions().List(ctx, repository.TransactionFilter{
		Kind:            lifecycle.KindOrder,
		CounterpartyUID: sellerUID,
		Limit:           limit,
		Offset:          offset,
	})
}

func page(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
