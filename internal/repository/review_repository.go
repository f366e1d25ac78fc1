package repository

import (
	"context"

	"github.com/shinyyama/community-backend/internal/model"
	"gorm.io/gorm"
)

type ReviewRepository interface {
	// Create returns ErrDuplicate when the transaction already has a review.
	Create(ctx context.Context, rv *model.Review) error
	FindByTransaction(ctx context.Context, transactionID string) (*model.Review, error)
}

type reviewRepository struct {
	db *gorm.DB
}

func NewReviewRepository(db *gorm.DB) ReviewRepository {
	return &reviewRepository{db: db}
}

func (r *reviewRepository) Create(ctx context.Context, rv *model.Review) error {
	if r.db == nil {
		return ErrDBNotReady
	}
	return translate(r.db.WithContext(ctx).Create(rv).Error)
}

func (r *reviewRepository) FindByTransaction(ctx context.Context, transactionID string) (*model.Review, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	var rv model.Review
	if err := r.db.WithContext(ctx).Where("transaction_id = ?", transactionID).First(&rv).Error; err != nil {
		return nil, translate(err)
	}
	return &rv, nil
}
