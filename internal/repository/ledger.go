package repository

import (
	"context"

	"gorm.io/gorm"
)

// Ledger groups the repositories that must change together when a
// transaction moves. Atomic runs fn against a ledger bound to one database
// transaction; any error rolls every write back.
type Ledger interface {
	Transactions() TransactionRepository
	History() HistoryRepository
	Reviews() ReviewRepository
	Revenues() UserRevenueRepository
	Atomic(ctx context.Context, fn func(Ledger) error) error
}

type ledger struct {
	db *gorm.DB
}

func NewLedger(db *gorm.DB) Ledger {
	return &ledger{db: db}
}

func (l *ledger) Transactions() TransactionRepository { return NewTransactionRepository(l.db) }
func (l *ledger) History() HistoryRepository          { return NewHistoryRepository(l.db) }
func (l *ledger) Reviews() ReviewRepository           { return NewReviewRepository(l.db) }
func (l *ledger) Revenues() UserRevenueRepository     { return NewUserRevenueRepository(l.db) }

func (l *ledger) Atomic(ctx context.Context, fn func(Ledger) error) error {
	if l.db == nil {
		return ErrDBNotReady
	}
	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewLedger(tx))
	})
}
