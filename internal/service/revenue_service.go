package service

import (
	"context"

	"github.com/shinyyama/community-backend/internal/lifecycle"
	"github.com/shinyyama/community-backend/internal/model"
	"github.com/shinyyama/community-backend/internal/repository"
)

// RevenueService reads seller earnings credited by completed orders.
type RevenueService interface {
	Get(ctx context.Context, uid string) (*model.UserRevenue, error)
}

type revenueService struct {
	repo repository.UserRevenueRepository
}

func NewRevenueService(repo repository.UserRevenueRepository) RevenueService {
	return &revenueService{repo: repo}
}

func (s *revenueService) Get(ctx context.Context, uid string) (*model.UserRevenue, error) {
	if uid == "" {
		return nil, lifecycle.ErrUnauthorized
	}
	return s.repo.Get(ctx, uid)
}
