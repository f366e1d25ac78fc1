package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shinyyama/community-backend/internal/lifecycle"
	"github.com/shinyyama/community-backend/internal/model"
	"github.com/shinyyama/community-backend/internal/repository"
	"gorm.io/datatypes"
)

// Transition is one request to move a transaction along the table.
type Transition struct {
	ID          string
	ActorUID    string
	Op          lifecycle.Op
	ProofRef    string
	TrackingRef string
	Note        string
	// Within runs in the same atomic scope, after the row and history entry
	// are written. An error rolls all of it back.
	Within func(ctx context.Context, l repository.Ledger, t *model.Transaction) error
}

type notifier interface {
	Notify(ctx context.Context, userUID, typ, message string, transactionID *string) (*model.Notification, error)
}

// StateMachine applies lifecycle edges to stored transactions. Every write is
// a conditional update keyed on the status and payment status that were read,
// so two racing callers can never both win.
type StateMachine struct {
	ledger    repository.Ledger
	roles     Authorizer
	notifier  notifier
	redeliver Redeliverer
	logger    *slog.Logger
	metrics   Metrics
}

type MachineOption func(*StateMachine)

func WithLogger(l *slog.Logger) MachineOption {
	return func(m *StateMachine) {
		if l != nil {
			m.logger = l
		}
	}
}

func WithMetrics(mt Metrics) MachineOption {
	return func(m *StateMachine) {
		if mt != nil {
			m.metrics = mt
		}
	}
}

func WithRedeliverer(r Redeliverer) MachineOption {
	return func(m *StateMachine) {
		m.redeliver = r
	}
}

func NewStateMachine(ledger repository.Ledger, roles Authorizer, n notifier, opts ...MachineOption) *StateMachine {
	m := &StateMachine{
		ledger:   ledger,
		roles:    roles,
		notifier: n,
		logger:   slog.Default(),
		metrics:  nopMetrics{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Ledger exposes the store the machine writes to.
func (m *StateMachine) Ledger() repository.Ledger {
	return m.ledger
}

// Party combines ownership of t with the platform role of uid.
func (m *StateMachine) Party(ctx context.Context, t *model.Transaction, uid string) (lifecycle.Party, error) {
	p := t.Relation(uid)
	if uid == "" || m.roles == nil {
		return p, nil
	}
	role, err := m.roles.RoleOf(ctx, uid)
	if err != nil {
		return 0, err
	}
	return p | role&lifecycle.PartyAdmin, nil
}

// IsAdmin reports whether uid holds the administrator role.
func (m *StateMachine) IsAdmin(ctx context.Context, uid string) (bool, error) {
	if uid == "" || m.roles == nil {
		return false, nil
	}
	role, err := m.roles.RoleOf(ctx, uid)
	if err != nil {
		return false, err
	}
	return role.Has(lifecycle.PartyAdmin), nil
}

func (m *StateMachine) Load(ctx context.Context, id string) (*model.Transaction, error) {
	return load(ctx, m.ledger, id)
}

func load(ctx context.Context, l repository.Ledger, id string) (*model.Transaction, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: transaction id is required", lifecycle.ErrInvalidInput)
	}
	t, err := l.Transactions().FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: transaction %s", lifecycle.ErrNotFound, id)
		}
		return nil, err
	}
	return t, nil
}

// Apply evaluates tr against the table and, when legal, writes the new state
// and the history entry atomically. The notification goes out afterwards; a
// failure there is logged and queued for redelivery, never returned.
func (m *StateMachine) Apply(ctx context.Context, tr Transition) (*model.Transaction, error) {
	txn, err := m.Load(ctx, tr.ID)
	if err != nil {
		return nil, err
	}
	updated, edge, err := m.apply(ctx, txn, tr)
	m.metrics.Transition(txn.Kind, tr.Op, err)
	if err != nil {
		return nil, err
	}
	m.dispatch(ctx, updated, edge)
	return updated, nil
}

func (m *StateMachine) apply(ctx context.Context, txn *model.Transaction, tr Transition) (*model.Transaction, lifecycle.Edge, error) {
	actor, err := m.Party(ctx, txn, tr.ActorUID)
	if err != nil {
		return nil, lifecycle.Edge{}, err
	}
	edge, err := lifecycle.Evaluate(txn.Facts(actor, tr.TrackingRef != ""), tr.Op)
	if err != nil {
		return nil, edge, err
	}
	if tr.Op == lifecycle.OpSubmitProof && tr.ProofRef == "" {
		return nil, edge, fmt.Errorf("%w: proof reference is required", lifecycle.ErrInvalidInput)
	}

	update := repository.TransitionUpdate{
		ID:            txn.ID,
		ExpectStatus:  txn.Status,
		ExpectPayment: txn.PaymentStatus,
		ExpectNoProof: tr.Op == lifecycle.OpSubmitProof,
		Status:        edge.To,
		PaymentStatus: edge.NextPayment,
	}
	if tr.Op == lifecycle.OpSubmitProof {
		update.ProofRef = &tr.ProofRef
	}
	if edge.Requires&lifecycle.NeedTracking != 0 {
		update.TrackingRef = &tr.TrackingRef
	}

	var updated *model.Transaction
	err = m.ledger.Atomic(ctx, func(l repository.Ledger) error {
		n, err := l.Transactions().ApplyTransition(ctx, update)
		if err != nil {
			return err
		}
		if n == 0 {
			return conflict(ctx, l, tr, actor)
		}
		if err := l.History().Append(ctx, historyEntry(txn, edge, tr)); err != nil {
			return err
		}
		cur, err := load(ctx, l, txn.ID)
		if err != nil {
			return err
		}
		if tr.Within != nil {
			if err := tr.Within(ctx, l, cur); err != nil {
				return err
			}
		}
		if cur.Kind == lifecycle.KindOrder && edge.To == lifecycle.StatusCompleted && cur.Seller() != "" {
			if err := l.Revenues().Credit(ctx, cur.Seller(), cur.TotalAmount); err != nil {
				return err
			}
		}
		updated = cur
		return nil
	})
	if err != nil {
		return nil, edge, err
	}
	return updated, edge, nil
}

// conflict explains a conditional update that matched no row: the row moved
// after it was read, so evaluate again against what is stored now.
func conflict(ctx context.Context, l repository.Ledger, tr Transition, actor lifecycle.Party) error {
	cur, err := load(ctx, l, tr.ID)
	if err != nil {
		return err
	}
	if _, err := lifecycle.Evaluate(cur.Facts(actor, tr.TrackingRef != ""), tr.Op); err != nil {
		return err
	}
	return fmt.Errorf("%w: transaction %s changed concurrently", lifecycle.ErrInvalidTransition, tr.ID)
}

func historyEntry(txn *model.Transaction, edge lifecycle.Edge, tr Transition) *model.TransactionHistory {
	meta := map[string]string{
		"paymentStatus": string(edge.NextPayment),
	}
	if txn.PaymentStatus != edge.NextPayment {
		meta["previousPaymentStatus"] = string(txn.PaymentStatus)
	}
	if tr.Op == lifecycle.OpSubmitProof {
		meta["proofRef"] = tr.ProofRef
	}
	if tr.TrackingRef != "" && edge.Requires&lifecycle.NeedTracking != 0 {
		meta["trackingRef"] = tr.TrackingRef
	}
	raw, _ := json.Marshal(meta)
	return &model.TransactionHistory{
		TransactionID:  txn.ID,
		ActorUID:       tr.ActorUID,
		Op:             tr.Op,
		PreviousStatus: txn.Status,
		NewStatus:      edge.To,
		Note:           tr.Note,
		Metadata:       datatypes.JSON(raw),
	}
}

func (m *StateMachine) dispatch(ctx context.Context, t *model.Transaction, edge lifecycle.Edge) {
	if edge.Notify == lifecycle.NotifyNone || m.notifier == nil {
		return
	}
	recipient := t.BuyerUID
	if edge.Recipient == lifecycle.PartySeller {
		recipient = t.Seller()
	}
	if recipient == "" {
		return
	}
	id := t.ID
	if _, err := m.notifier.Notify(ctx, recipient, string(edge.Notify), edge.Message, &id); err != nil {
		attrs := []slog.Attr{
			slog.String("transaction.id", t.ID),
			slog.String("recipient", recipient),
			slog.String("notification.type", string(edge.Notify)),
			slog.String("error", err.Error()),
		}
		m.logger.LogAttrs(ctx, slog.LevelWarn, "notification dispatch failed", attrs...)
		if errors.Is(err, lifecycle.ErrUnknownRecipient) || m.redeliver == nil {
			return
		}
		d := Delivery{UserUID: recipient, Type: string(edge.Notify), Message: edge.Message, TransactionID: t.ID}
		if qerr := m.redeliver.Enqueue(context.WithoutCancel(ctx), d); qerr != nil {
			m.logger.LogAttrs(ctx, slog.LevelError, "notification redelivery enqueue failed",
				append(attrs[:3:3], slog.String("error", qerr.Error()))...)
		}
	}
}
