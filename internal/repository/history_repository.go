package repository

import (
	"context"

	"github.com/shinyyama/community-backend/internal/model"
	"gorm.io/gorm"
)

// HistoryRepository is insert-only.
type HistoryRepository interface {
	Append(ctx context.Context, h *model.TransactionHistory) error
	ListByTransaction(ctx context.Context, transactionID string) ([]model.TransactionHistory, error)
}

type historyRepository struct {
	db *gorm.DB
}

func NewHistoryRepository(db *gorm.DB) HistoryRepository {
	return &historyRepository{db: db}
}

func (r *historyRepository) Append(ctx context.Context, h *model.TransactionHistory) error {
	if r.db == nil {
		return ErrDBNotReady
	}
	return translate(r.db.WithContext(ctx).Create(h).Error)
}

func (r *historyRepository) ListByTransaction(ctx context.Context, transactionID string) ([]model.TransactionHistory, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	var list []model.TransactionHistory
	if err := r.db.WithContext(ctx).
		Where("transaction_id = ?", transactionID).
		Order("id ASC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}
