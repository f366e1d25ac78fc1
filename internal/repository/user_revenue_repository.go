package repository

import (
	"context"

	"github.com/shinyyama/community-backend/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type UserRevenueRepository interface {
	// Credit adds one completed order worth amount to uid's earnings.
	Credit(ctx context.Context, uid string, amount int64) error
	Get(ctx context.Context, uid string) (*model.UserRevenue, error)
}

type userRevenueRepository struct {
	db *gorm.DB
}

func NewUserRevenueRepository(db *gorm.DB) UserRevenueRepository {
	return &userRevenueRepository{db: db}
}

func (r *userRevenueRepository) Credit(ctx context.Context, uid string, amount int64) error {
	if r.db == nil {
		return ErrDBNotReady
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "uid"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"amount": gorm.Expr("amount + ?", amount),
			"orders": gorm.Expr("orders + 1"),
		}),
	}).Create(&model.UserRevenue{UID: uid, Amount: amount, Orders: 1}).Error
}

func (r *userRevenueRepository) Get(ctx context.Context, uid string) (*model.UserRevenue, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	var ur model.UserRevenue
	if err := r.db.WithContext(ctx).Where("uid = ?", uid).FirstOrCreate(&ur, &model.UserRevenue{UID: uid}).Error; err != nil {
		return nil, err
	}
	return &ur, nil
}
