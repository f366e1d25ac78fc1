// Package memory provides in-process implementations of the repository
// interfaces for tests and local development without a database.
package memory

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shinyyama/community-backend/internal/lifecycle"
	"github.com/shinyyama/community-backend/internal/model"
	"github.com/shinyyama/community-backend/internal/repository"
)

var _ repository.Ledger = (*Ledger)(nil)

type state struct {
	txns     map[string]model.Transaction
	history  []model.TransactionHistory
	reviews  map[string]model.Review
	revenues map[string]model.UserRevenue
	nextID   uint64
}

func (s *state) clone() *state {
	c := &state{
		txns:     make(map[string]model.Transaction, len(s.txns)),
		history:  append([]model.TransactionHistory(nil), s.history...),
		reviews:  make(map[string]model.Review, len(s.reviews)),
		revenues: make(map[string]model.UserRevenue, len(s.revenues)),
		nextID:   s.nextID,
	}
	for k, v := range s.txns {
		c.txns[k] = v
	}
	for k, v := range s.reviews {
		c.reviews[k] = v
	}
	for k, v := range s.revenues {
		c.revenues[k] = v
	}
	return c
}

// Ledger keeps every ledger table behind one mutex. Atomic holds the mutex for
// the whole callback and restores a snapshot when it fails.
type Ledger struct {
	mu  sync.Mutex
	st  *state
	now func() time.Time

	locked bool
	root   *Ledger
}

func NewLedger() *Ledger {
	l := &Ledger{
		st: &state{
			txns:     map[string]model.Transaction{},
			reviews:  map[string]model.Review{},
			revenues: map[string]model.UserRevenue{},
		},
		now: time.Now,
	}
	l.root = l
	return l
}

// WithClock overrides the time source for deterministic testing.
func (l *Ledger) WithClock(now func() time.Time) {
	if now != nil {
		l.root.now = now
	}
}

func (l *Ledger) guard() func() {
	if l.locked {
		return func() {}
	}
	l.root.mu.Lock()
	return l.root.mu.Unlock
}

func (l *Ledger) Transactions() repository.TransactionRepository { return &txRepo{l} }
func (l *Ledger) History() repository.HistoryRepository          { return &historyRepo{l} }
func (l *Ledger) Reviews() repository.ReviewRepository           { return &reviewRepo{l} }
func (l *Ledger) Revenues() repository.UserRevenueRepository     { return &revenueRepo{l} }

func (l *Ledger) Atomic(ctx context.Context, fn func(repository.Ledger) error) error {
	if l.locked {
		return fn(l)
	}
	root := l.root
	root.mu.Lock()
	defer root.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	snapshot := root.st.clone()
	err := fn(&Ledger{locked: true, root: root})
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		root.st = snapshot
		return err
	}
	return nil
}

func (l *Ledger) seq() uint64 {
	l.root.st.nextID++
	return l.root.st.nextID
}

type txRepo struct{ l *Ledger }

func (r *txRepo) Create(_ context.Context, t *model.Transaction) error {
	defer r.l.guard()()
	st := r.l.root.st
	if _, ok := st.txns[t.ID]; ok {
		return repository.ErrDuplicate
	}
	now := r.l.root.now()
	t.CreatedAt, t.UpdatedAt = now, now
	st.txns[t.ID] = cloneTxn(*t)
	return nil
}

func (r *txRepo) FindByID(_ context.Context, id string) (*model.Transaction, error) {
	defer r.l.guard()()
	t, ok := r.l.root.st.txns[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := cloneTxn(t)
	return &c, nil
}

func (r *txRepo) List(_ context.Context, f repository.TransactionFilter) ([]model.Transaction, error) {
	defer r.l.guard()()
	var out []model.Transaction
	for _, t := range r.l.root.st.txns {
		if !matches(t, f) {
			continue
		}
		out = append(out, cloneTxn(t))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return nil, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func matches(t model.Transaction, f repository.TransactionFilter) bool {
	if f.Kind != "" && t.Kind != f.Kind {
		return false
	}
	if f.BuyerUID != "" && t.BuyerUID != f.BuyerUID {
		return false
	}
	if f.CounterpartyUID != "" && t.Seller() != f.CounterpartyUID {
		return false
	}
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if f.PaymentStatus != "" && t.PaymentStatus != f.PaymentStatus {
		return false
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		if strings.Contains(t.ID, q) || strings.Contains(t.BuyerUID, q) {
			return true
		}
		n, err := strconv.ParseUint(q, 10, 64)
		return err == nil && n == t.SubjectID
	}
	return true
}

func (r *txRepo) CountOpen(_ context.Context, kind lifecycle.Kind, buyerUID string, subjectID uint64) (int64, error) {
	defer r.l.guard()()
	var n int64
	for _, t := range r.l.root.st.txns {
		if t.Kind != kind || t.BuyerUID != buyerUID || t.SubjectID != subjectID {
			continue
		}
		if t.Status == lifecycle.StatusCancelled || t.Status == lifecycle.StatusRejected {
			continue
		}
		n++
	}
	return n, nil
}

func (r *txRepo) ApplyTransition(_ context.Context, u repository.TransitionUpdate) (int64, error) {
	defer r.l.guard()()
	st := r.l.root.st
	t, ok := st.txns[u.ID]
	if !ok || t.Status != u.ExpectStatus || t.PaymentStatus != u.ExpectPayment {
		return 0, nil
	}
	if u.ExpectNoProof && t.PaymentProofRef != nil {
		return 0, nil
	}
	t.Status = u.Status
	t.PaymentStatus = u.PaymentStatus
	if u.ProofRef != nil {
		ref := *u.ProofRef
		t.PaymentProofRef = &ref
	}
	if u.TrackingRef != nil {
		ref := *u.TrackingRef
		t.TrackingRef = &ref
	}
	t.UpdatedAt = r.l.root.now()
	st.txns[u.ID] = t
	return 1, nil
}

func cloneTxn(t model.Transaction) model.Transaction {
	t.CounterpartyUID = cloneStr(t.CounterpartyUID)
	t.PaymentProofRef = cloneStr(t.PaymentProofRef)
	t.TrackingRef = cloneStr(t.TrackingRef)
	return t
}

func cloneStr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

type historyRepo struct{ l *Ledger }

func (r *historyRepo) Append(_ context.Context, h *model.TransactionHistory) error {
	defer r.l.guard()()
	h.ID = r.l.seq()
	h.CreatedAt = r.l.root.now()
	r.l.root.st.history = append(r.l.root.st.history, *h)
	return nil
}

func (r *historyRepo) ListByTransaction(_ context.Context, transactionID string) ([]model.TransactionHistory, error) {
	defer r.l.guard()()
	var out []model.TransactionHistory
	for _, h := range r.l.root.st.history {
		if h.TransactionID == transactionID {
			out = append(out, h)
		}
	}
	return out, nil
}

type reviewRepo struct{ l *Ledger }

func (r *reviewRepo) Create(_ context.Context, rv *model.Review) error {
	defer r.l.guard()()
	st := r.l.root.st
	if _, ok := st.reviews[rv.TransactionID]; ok {
		return repository.ErrDuplicate
	}
	rv.ID = r.l.seq()
	rv.CreatedAt = r.l.root.now()
	st.reviews[rv.TransactionID] = *rv
	return nil
}

func (r *reviewRepo) FindByTransaction(_ context.Context, transactionID string) (*model.Review, error) {
	defer r.l.guard()()
	rv, ok := r.l.root.st.reviews[transactionID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &rv, nil
}

type revenueRepo struct{ l *Ledger }

func (r *revenueRepo) Credit(_ context.Context, uid string, amount int64) error {
	defer r.l.guard()()
	st := r.l.root.st
	now := r.l.root.now()
	rev, ok := st.revenues[uid]
	if !ok {
		rev = model.UserRevenue{UID: uid, CreatedAt: now}
	}
	rev.Amount += amount
	rev.Orders++
	rev.UpdatedAt = now
	st.revenues[uid] = rev
	return nil
}

func (r *revenueRepo) Get(_ context.Context, uid string) (*model.UserRevenue, error) {
	defer r.l.guard()()
	rev, ok := r.l.root.st.revenues[uid]
	if !ok {
		rev = model.UserRevenue{UID: uid}
	}
	return &rev, nil
}
