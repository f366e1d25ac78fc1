package observability

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	"github.com/shinyyama/community-backend/internal/lifecycle"
	"github.com/shinyyama/community-backend/internal/model"
	"github.com/shinyyama/community-backend/internal/service"
)

const tracerName = "github.com/shinyyama/community-backend/internal/observability"

// instrumented carries the tracer, logger and counter shared by the service
// decorators.
type instrumented struct {
	tracer  trace.Tracer
	logger  *slog.Logger
	applied metric.Int64Counter
}

type Option func(*instrumented)

func WithLogger(l *slog.Logger) Option {
	return func(s *instrumented) { s.logger = l }
}

func WithTracer(tr trace.Tracer) Option {
	return func(s *instrumented) { s.tracer = tr }
}

func WithMeter(m metric.Meter) Option {
	return func(s *instrumented) {
		if m != nil {
			s.applied, _ = m.Int64Counter("transactions.service.operations",
				metric.WithDescription("Transaction operations by name and outcome"))
		}
	}
}

func newInstrumented(opts []Option) instrumented {
	var s instrumented
	for _, opt := range opts {
		if opt != nil {
			opt(&s)
		}
	}
	if s.tracer == nil {
		s.tracer = nooptrace.NewTracerProvider().Tracer(tracerName)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// TransactionService decorates the transaction service with spans, logs and
// an otel counter of applied operations.
type TransactionService struct {
	instrumented
	inner service.TransactionService
}

func NewTransactionService(inner service.TransactionService, opts ...Option) service.TransactionService {
	return &TransactionService{instrumented: newInstrumented(opts), inner: inner}
}

func (s *TransactionService) Create(ctx context.Context, kind lifecycle.Kind, buyerUID string, subjectID uint64, quantity int64) (*model.Transaction, error) {
	ctx, span := s.tracer.Start(ctx, "TransactionService.Create", trace.WithAttributes(
		attribute.String("transaction.kind", string(kind)),
		attribute.Int64("transaction.subject_id", int64(subjectID)),
		attribute.Int64("transaction.quantity", quantity)))
	defer span.End()

	txn, err := s.inner.Create(ctx, kind, buyerUID, subjectID, quantity)
	return s.finish(ctx, span, "create", txn, err)
}

func (s *TransactionService) SubmitPaymentProof(ctx context.Context, id, actorUID, proofRef string) (*model.Transaction, error) {
	ctx, span := s.start(ctx, "TransactionService.SubmitPaymentProof", id)
	defer span.End()
	txn, err := s.inner.SubmitPaymentProof(ctx, id, actorUID, proofRef)
	return s.finish(ctx, span, string(lifecycle.OpSubmitProof), txn, err)
}

func (s *TransactionService) UploadProof(ctx context.Context, id, actorUID string, data []byte, contentType string) (*model.Transaction, error) {
	ctx, span := s.start(ctx, "TransactionService.UploadProof", id)
	defer span.End()
	span.SetAttributes(attribute.Int("proof.bytes", len(data)), attribute.String("proof.content_type", contentType))
	txn, err := s.inner.UploadProof(ctx, id, actorUID, data, contentType)
	return s.finish(ctx, span, "upload_proof", txn, err)
}

func (s *TransactionService) MarkShipped(ctx context.Context, id, actorUID, trackingRef string) (*model.Transaction, error) {
	ctx, span := s.start(ctx, "TransactionService.MarkShipped", id)
	defer span.End()
	txn, err := s.inner.MarkShipped(ctx, id, actorUID, trackingRef)
	return s.finish(ctx, span, string(lifecycle.OpShip), txn, err)
}

func (s *TransactionService) ConfirmDelivery(ctx context.Context, id, actorUID string) (*model.Transaction, error) {
	ctx, span := s.start(ctx, "TransactionService.ConfirmDelivery", id)
	defer span.End()
	txn, err := s.inner.ConfirmDelivery(ctx, id, actorUID)
	return s.finish(ctx, span, string(lifecycle.OpConfirmDelivery), txn, err)
}

func (s *TransactionService) Complete(ctx context.Context, id, actorUID string) (*model.Transaction, error) {
	ctx, span := s.start(ctx, "TransactionService.Complete", id)
	defer span.End()
	txn, err := s.inner.Complete(ctx, id, actorUID)
	return s.finish(ctx, span, string(lifecycle.OpComplete), txn, err)
}

func (s *TransactionService) Get(ctx context.Context, id, actorUID string) (*model.Transaction, error) {
	ctx, span := s.start(ctx, "TransactionService.Get", id)
	defer span.End()
	txn, err := s.inner.Get(ctx, id, actorUID)
	if err != nil {
		return nil, s.handleError(ctx, span, err, "failed to load transaction", slog.String("transaction.id", id))
	}
	return txn, nil
}

func (s *TransactionService) ListMine(ctx context.Context, buyerUID string, kind lifecycle.Kind, limit, offset int) ([]model.Transaction, error) {
	ctx, span := s.tracer.Start(ctx, "TransactionService.ListMine", trace.WithAttributes(attribute.String("transaction.kind", string(kind))))
	defer span.End()
	list, err := s.inner.ListMine(ctx, buyerUID, kind, limit, offset)
	if err != nil {
		return nil, s.handleError(ctx, span, err, "failed to list transactions")
	}
	span.SetAttributes(attribute.Int("result.count", len(list)))
	return list, nil
}

func (s *TransactionService) ListSales(ctx context.Context, sellerUID string, limit, offset int) ([]model.Transaction, error) {
	ctx, span := s.tracer.Start(ctx, "TransactionService.ListSales")
	defer span.End()
	list, err := s.inner.ListSales(ctx, sellerUID, limit, offset)
	if err != nil {
		return nil, s.handleError(ctx, span, err, "failed to list sales")
	}
	span.SetAttributes(attribute.Int("result.count", len(list)))
	return list, nil
}

func (s *instrumented) start(ctx context.Context, name, id string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(attribute.String("transaction.id", id)))
}

func (s *instrumented) finish(ctx context.Context, span trace.Span, op string, txn *model.Transaction, err error) (*model.Transaction, error) {
	s.record(ctx, op, err)
	if err != nil {
		return nil, s.handleError(ctx, span, err, "transaction "+op+" failed", slog.String("code", lifecycle.Code(err)))
	}
	span.SetAttributes(
		attribute.String("transaction.id", txn.ID),
		attribute.String("transaction.status", string(txn.Status)),
		attribute.String("transaction.payment_status", string(txn.PaymentStatus)))
	s.logger.LogAttrs(ctx, slog.LevelInfo, "transaction "+op,
		slog.String("transaction.id", txn.ID),
		slog.String("transaction.kind", string(txn.Kind)),
		slog.String("status", string(txn.Status)),
		slog.String("payment_status", string(txn.PaymentStatus)))
	return txn, nil
}

func (s *instrumented) record(ctx context.Context, op string, err error) {
	if s.applied == nil {
		return
	}
	s.applied.Add(ctx, 1, metric.WithAttributes(
		attribute.String("op", op),
		attribute.String("outcome", outcome(err))))
}

func (s *instrumented) handleError(ctx context.Context, span trace.Span, err error, msg string, attrs ...slog.Attr) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	attrs = append(attrs, slog.String("error", err.Error()))
	s.logger.LogAttrs(ctx, levelFor(err), msg, attrs...)
	return err
}

// levelFor logs caller mistakes at info and everything else at error.
func levelFor(err error) slog.Level {
	if lifecycle.Code(err) == "internal_error" {
		return slog.LevelError
	}
	return slog.LevelInfo
}

var _ service.TransactionService = (*TransactionService)(nil)
