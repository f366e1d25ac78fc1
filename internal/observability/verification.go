package observability

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/shinyyama/community-backend/internal/lifecycle"
	"github.com/shinyyama/community-backend/internal/model"
	"github.com/shinyyama/community-backend/internal/service"
)

// VerificationService records every administrator decision as a span, a log
// line carrying the actor, and a counter increment.
type VerificationService struct {
	instrumented
	inner service.VerificationService
}

func NewVerificationService(inner service.VerificationService, opts ...Option) service.VerificationService {
	return &VerificationService{instrumented: newInstrumented(opts), inner: inner}
}

func (s *VerificationService) ApplyVerification(ctx context.Context, id, actorUID string, decision lifecycle.Decision, note string) (*model.Transaction, error) {
	ctx, span := s.start(ctx, "VerificationService.ApplyVerification", id)
	defer span.End()
	span.SetAttributes(
		attribute.String("verification.decision", string(decision)),
		attribute.String("verification.actor", actorUID))

	op := "verify"
	if o, err := decision.Op(); err == nil {
		op = string(o)
	}
	txn, err := s.inner.ApplyVerification(ctx, id, actorUID, decision, note)
	if err == nil {
		s.logger.LogAttrs(ctx, slog.LevelInfo, "verification decision",
			slog.String("transaction.id", id),
			slog.String("actor", actorUID),
			slog.String("decision", string(decision)))
	}
	return s.finish(ctx, span, op, txn, err)
}

func (s *VerificationService) ListForReview(ctx context.Context, actorUID string, q service.ReviewQuery) ([]model.Transaction, error) {
	ctx, span := s.tracer.Start(ctx, "VerificationService.ListForReview", trace.WithAttributes(
		attribute.String("transaction.kind", string(q.Kind)),
		attribute.String("transaction.payment_status", string(q.PaymentStatus))))
	defer span.End()
	list, err := s.inner.ListForReview(ctx, actorUID, q)
	if err != nil {
		return nil, s.handleError(ctx, span, err, "failed to list review queue")
	}
	span.SetAttributes(attribute.Int("result.count", len(list)))
	return list, nil
}

func (s *VerificationService) History(ctx context.Context, id, actorUID string) ([]model.TransactionHistory, error) {
	ctx, span := s.start(ctx, "VerificationService.History", id)
	defer span.End()
	hist, err := s.inner.History(ctx, id, actorUID)
	if err != nil {
		return nil, s.handleError(ctx, span, err, "failed to load history", slog.String("transaction.id", id))
	}
	span.SetAttributes(attribute.Int("result.count", len(hist)))
	return hist, nil
}

func (s *VerificationService) ProofURL(ctx context.Context, id, actorUID string) (string, error) {
	ctx, span := s.start(ctx, "VerificationService.ProofURL", id)
	defer span.End()
	url, err := s.inner.ProofURL(ctx, id, actorUID)
	if err != nil {
		return "", s.handleError(ctx, span, err, "failed to resolve proof", slog.String("transaction.id", id))
	}
	return url, nil
}

var _ service.VerificationService = (*VerificationService)(nil)
