package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shinyyama/community-backend/internal/lifecycle"
	"github.com/shinyyama/community-backend/internal/model"
	"github.com/shinyyama/community-backend/internal/repository"
)

type catalog struct {
	items   repository.ItemRepository
	courses repository.CourseRepository
}

func NewCatalog(items repository.ItemRepository, courses repository.CourseRepository) Catalog {
	return &catalog{items: items, courses: courses}
}

func (c *catalog) Lookup(ctx context.Context, kind lifecycle.Kind, subjectID uint64) (*Subject, error) {
	switch kind {
	case lifecycle.KindOrder:
		item, err := c.items.FindByID(ctx, subjectID)
		if err != nil {
			return nil, unavailable(err, "item", subjectID)
		}
		if item.Status != model.ItemStatusAvailable || item.SellerUID == "" {
			return nil, fmt.Errorf("%w: item %d is not for sale", lifecycle.ErrSubjectUnavailable, subjectID)
		}
		return &Subject{ID: item.ID, OwnerUID: item.SellerUID, Price: int64(item.Price)}, nil
	case lifecycle.KindEnrollment:
		course, err := c.courses.FindByID(ctx, subjectID)
		if err != nil {
			return nil, unavailable(err, "course", subjectID)
		}
		if !course.Published {
			return nil, fmt.Errorf("%w: course %d is not published", lifecycle.ErrSubjectUnavailable, subjectID)
		}
		return &Subject{ID: course.ID, OwnerUID: course.OwnerUID, Price: int64(course.Price)}, nil
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", lifecycle.ErrInvalidInput, kind)
	}
}

func unavailable(err error, what string, id uint64) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: %s %d does not exist", lifecycle.ErrSubjectUnavailable, what, id)
	}
	return err
}
