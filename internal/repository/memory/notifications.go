package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shinyyama/community-backend/internal/model"
	"github.com/shinyyama/community-backend/internal/repository"
)

var _ repository.NotificationRepository = (*Notifications)(nil)

type Notifications struct {
	mu     sync.Mutex
	rows   map[uint64]model.Notification
	nextID uint64
	now    func() time.Time
}

func NewNotifications() *Notifications {
	return &Notifications{rows: map[uint64]model.Notification{}, now: time.Now}
}

func (s *Notifications) Create(_ context.Context, n *model.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	n.ID = s.nextID
	n.CreatedAt = s.now()
	s.rows[n.ID] = *n
	return nil
}

func (s *Notifications) FindByID(_ context.Context, id uint64) (*model.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &n, nil
}

func (s *Notifications) ListByUser(_ context.Context, userUID string, unreadOnly bool, limit int) ([]model.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 || limit > 50 {
		limit = 20
	}
	var out []model.Notification
	for _, n := range s.rows {
		if n.UserUID != userUID || (unreadOnly && n.IsRead()) {
			continue
		}
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Notifications) MarkRead(_ context.Context, userUID string, id uint64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.rows[id]
	if !ok || n.UserUID != userUID || n.IsRead() {
		return 0, nil
	}
	now := s.now()
	n.ReadAt = &now
	s.rows[id] = n
	return 1, nil
}

func (s *Notifications) MarkAllRead(_ context.Context, userUID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for id, n := range s.rows {
		if n.UserUID == userUID && !n.IsRead() {
			n.ReadAt = &now
			s.rows[id] = n
		}
	}
	return nil
}

func (s *Notifications) CountUnread(_ context.Context, userUID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var cnt int64
	for _, n := range s.rows {
		if n.UserUID == userUID && !n.IsRead() {
			cnt++
		}
	}
	return cnt, nil
}
