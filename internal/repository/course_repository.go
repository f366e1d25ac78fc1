package repository

import (
	"context"

	"github.com/shinyyama/community-backend/internal/model"
	"gorm.io/gorm"
)

type CourseRepository interface {
	Create(ctx context.Context, c *model.Course) error
	FindByID(ctx context.Context, id uint64) (*model.Course, error)
}

type courseRepository struct {
	db *gorm.DB
}

func NewCourseRepository(db *gorm.DB) CourseRepository {
	return &courseRepository{db: db}
}

func (r *courseRepository) Create(ctx context.Context, c *model.Course) error {
	if r.db == nil {
		return ErrDBNotReady
	}
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *courseRepository) FindByID(ctx context.Context, id uint64) (*model.Course, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	var c model.Course
	if err := r.db.WithContext(ctx).First(&c, id).Error; err != nil {
		return nil, translate(err)
	}
	return &c, nil
}
