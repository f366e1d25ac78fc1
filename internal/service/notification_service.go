package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shinyyama/community-backend/internal/lifecycle"
	"github.com/shinyyama/community-backend/internal/model"
	"github.com/shinyyama/community-backend/internal/repository"
)

type NotificationService interface {
	Notify(ctx context.Context, userUID, typ, message string, transactionID *string) (*model.Notification, error)
	List(ctx context.Context, userUID string, unreadOnly bool, limit int) ([]model.Notification, int64, error)
	// MarkRead is a no-op on a notification that is already read.
	MarkRead(ctx context.Context, userUID string, id uint64) (*model.Notification, error)
	MarkAllRead(ctx context.Context, userUID string) error
}

type notificationService struct {
	repo      repository.NotificationRepository
	directory Directory
	publisher Publisher
	metrics   Metrics
}

type NotificationOption func(*notificationService)

func WithPublisher(p Publisher) NotificationOption {
	return func(s *notificationService) {
		if p != nil {
			s.publisher = p
		}
	}
}

func WithDirectory(d Directory) NotificationOption {
	return func(s *notificationService) {
		if d != nil {
			s.directory = d
		}
	}
}

func WithNotificationMetrics(m Metrics) NotificationOption {
	return func(s *notificationService) {
		if m != nil {
			s.metrics = m
		}
	}
}

func NewNotificationService(repo repository.NotificationRepository, opts ...NotificationOption) NotificationService {
	s := &notificationService{
		repo:      repo,
		directory: AllowAllDirectory(),
		publisher: nopPublisher{},
		metrics:   nopMetrics{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Notify stores the notification first; the live push happens only after the
// row exists so a client that misses it can still poll.
func (s *notificationService) Notify(ctx context.Context, userUID, typ, message string, transactionID *string) (n *model.Notification, err error) {
	defer func() { s.metrics.Notification(typ, err) }()

	if typ == "" {
		return nil, fmt.Errorf("%w: notification type is required", lifecycle.ErrInvalidInput)
	}
	ok, err := s.directory.Exists(ctx, userUID)
	if err != nil {
		return nil, fmt.Errorf("%w: recipient lookup: %v", lifecycle.ErrNotificationDispatch, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %q", lifecycle.ErrUnknownRecipient, userUID)
	}
	n = &model.Notification{
		UserUID:       userUID,
		Type:          typ,
		Message:       message,
		TransactionID: transactionID,
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("%w: %v", lifecycle.ErrNotificationDispatch, err)
	}
	s.publisher.Publish(userUID, *n)
	return n, nil
}

func (s *notificationService) List(ctx context.Context, userUID string, unreadOnly bool, limit int) ([]model.Notification, int64, error) {
	if userUID == "" {
		return nil, 0, nil
	}
	list, err := s.repo.ListByUser(ctx, userUID, unreadOnly, limit)
	if err != nil {
		return nil, 0, err
	}
	cnt, err := s.repo.CountUnread(ctx, userUID)
	if err != nil {
		return list, 0, err
	}
	return list, cnt, nil
}

func (s *notificationService) MarkRead(ctx context.Context, userUID string, id uint64) (*model.Notification, error) {
	if userUID == "" {
		return nil, lifecycle.ErrUnauthorized
	}
	if _, err := s.repo.MarkRead(ctx, userUID, id); err != nil {
		return nil, err
	}
	n, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: notification %d", lifecycle.ErrNotFound, id)
		}
		return nil, err
	}
	if n.UserUID != userUID {
		return nil, fmt.Errorf("%w: notification %d", lifecycle.ErrNotFound, id)
	}
	return n, nil
}

func (s *notificationService) MarkAllRead(ctx context.Context, userUID string) error {
	if userUID == "" {
		return nil
	}
	return s.repo.MarkAllRead(ctx, userUID)
}
