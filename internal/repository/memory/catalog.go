package memory

import (
	"context"
	"sync"
	"time"

	"github.com/shinyyama/community-backend/internal/model"
	"github.com/shinyyama/community-backend/internal/repository"
)

var (
	_ repository.ItemRepository   = (*Items)(nil)
	_ repository.CourseRepository = (*Courses)(nil)
)

type Items struct {
	mu     sync.Mutex
	rows   map[uint64]model.Item
	nextID uint64
}

func NewItems() *Items {
	return &Items{rows: map[uint64]model.Item{}}
}

func (s *Items) Create(_ context.Context, item *model.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if item.ID == 0 {
		s.nextID++
		item.ID = s.nextID
	} else if item.ID > s.nextID {
		s.nextID = item.ID
	}
	if item.Status == "" {
		item.Status = model.ItemStatusAvailable
	}
	now := time.Now()
	item.CreatedAt, item.UpdatedAt = now, now
	s.rows[item.ID] = *item
	return nil
}

func (s *Items) FindByID(_ context.Context, id uint64) (*model.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &item, nil
}

type Courses struct {
	mu     sync.Mutex
	rows   map[uint64]model.Course
	nextID uint64
}

func NewCourses() *Courses {
	return &Courses{rows: map[uint64]model.Course{}}
}

func (s *Courses) Create(_ context.Context, c *model.Course) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == 0 {
		s.nextID++
		c.ID = s.nextID
	} else if c.ID > s.nextID {
		s.nextID = c.ID
	}
	now := time.Now()
	c.CreatedAt, c.UpdatedAt = now, now
	s.rows[c.ID] = *c
	return nil
}

func (s *Courses) FindByID(_ context.Context, id uint64) (*model.Course, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &c, nil
}
