package repository

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/shinyyama/community-backend/internal/lifecycle"
	"github.com/shinyyama/community-backend/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type TransactionFilter struct {
	Kind            lifecycle.Kind
	BuyerUID        string
	CounterpartyUID string
	Status          lifecycle.Status
	PaymentStatus   lifecycle.PaymentStatus
	// Query matches a substring of the id or buyer uid, or an exact subject id.
	Query  string
	Limit  int
	Offset int
}

// TransitionUpdate is a conditional write: it only lands when the row still
// has ExpectStatus/ExpectPayment (and no proof, when ExpectNoProof is set).
type TransitionUpdate struct {
	ID            string
	ExpectStatus  lifecycle.Status
	ExpectPayment lifecycle.PaymentStatus
	ExpectNoProof bool
	Status        lifecycle.Status
	PaymentStatus lifecycle.PaymentStatus
	ProofRef      *string
	TrackingRef   *string
}

type TransactionRepository interface {
	Create(ctx context.Context, t *model.Transaction) error
	FindByID(ctx context.Context, id string) (*model.Transaction, error)
	List(ctx context.Context, f TransactionFilter) ([]model.Transaction, error)
	// CountOpen locks the subject row until the enclosing Atomic scope ends.
	CountOpen(ctx context.Context, kind lifecycle.Kind, buyerUID string, subjectID uint64) (int64, error)
	// ApplyTransition returns the number of rows changed: 0 means the
	// expectation did not hold and nothing was written.
	ApplyTransition(ctx context.Context, u TransitionUpdate) (int64, error)
}

type transactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) TransactionRepository {
	return &transactionRepository{db: db}
}

func (r *transactionRepository) Create(ctx context.Context, t *model.Transaction) error {
	if r.db == nil {
		return ErrDBNotReady
	}
	return translate(r.db.WithContext(ctx).Create(t).Error)
}

func (r *transactionRepository) FindByID(ctx context.Context, id string) (*model.Transaction, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	var t model.Transaction
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&t).Error; err != nil {
		return nil, translate(err)
	}
	return &t, nil
}

func (r *transactionRepository) List(ctx context.Context, f TransactionFilter) ([]model.Transaction, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	q := r.db.WithContext(ctx).Model(&model.Transaction{})
	if f.Kind != "" {
		q = q.Where("kind = ?", f.Kind)
	}
	if f.BuyerUID != "" {
		q = q.Where("buyer_uid = ?", f.BuyerUID)
	}
	if f.CounterpartyUID != "" {
		q = q.Where("counterparty_uid = ?", f.CounterpartyUID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.PaymentStatus != "" {
		q = q.Where("payment_status = ?", f.PaymentStatus)
	}
	if text := strings.TrimSpace(f.Query); text != "" {
		like := "%" + text + "%"
		if n, err := strconv.ParseUint(text, 10, 64); err == nil {
			q = q.Where("id LIKE ? OR buyer_uid LIKE ? OR subject_id = ?", like, like, n)
		} else {
			q = q.Where("id LIKE ? OR buyer_uid LIKE ?", like, like)
		}
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	if f.Offset > 0 {
		q = q.Offset(f.Offset)
	}
	var list []model.Transaction
	if err := q.Order("created_at DESC").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *transactionRepository) CountOpen(ctx context.Context, kind lifecycle.Kind, buyerUID string, subjectID uint64) (int64, error) {
	if r.db == nil {
		return 0, ErrDBNotReady
	}
	db := r.db.WithContext(ctx)
	if err := lockSubject(db, kind, subjectID); err != nil {
		return 0, err
	}
	var cnt int64
	err := db.
		Model(&model.Transaction{}).
		Where("kind = ? AND buyer_uid = ? AND subject_id = ?", kind, buyerUID, subjectID).
		Where("status NOT IN ?", []lifecycle.Status{lifecycle.StatusCancelled, lifecycle.StatusRejected}).
		Count(&cnt).Error
	return cnt, err
}

// lockSubject takes a row lock on the item or course so that concurrent
// check-then-create scopes for the same subject run one after another.
func lockSubject(db *gorm.DB, kind lifecycle.Kind, subjectID uint64) error {
	var subject any
	switch kind {
	case lifecycle.KindOrder:
		subject = &model.Item{}
	case lifecycle.KindEnrollment:
		subject = &model.Course{}
	default:
		return nil
	}
	var ids []uint64
	return db.Model(subject).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", subjectID).
		Limit(1).
		Pluck("id", &ids).Error
}

func (r *transactionRepository) ApplyTransition(ctx context.Context, u TransitionUpdate) (int64, error) {
	if r.db == nil {
		return 0, ErrDBNotReady
	}
	q := r.db.WithContext(ctx).
		Model(&model.Transaction{}).
		Where("id = ? AND status = ? AND payment_status = ?", u.ID, u.ExpectStatus, u.ExpectPayment)
	if u.ExpectNoProof {
		q = q.Where("payment_proof_ref IS NULL")
	}
	updates := map[string]interface{}{
		"status":         u.Status,
		"payment_status": u.PaymentStatus,
		"updated_at":     time.Now(),
	}
	if u.ProofRef != nil {
		updates["payment_proof_ref"] = *u.ProofRef
	}
	if u.TrackingRef != nil {
		updates["tracking_ref"] = *u.TrackingRef
	}
	res := q.Updates(updates)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
