package service

import (
	"context"

	"github.com/shinyyama/community-backend/internal/lifecycle"
	"github.com/shinyyama/community-backend/internal/model"
)

// Subject is whatever a transaction buys: a marketplace item or a course.
type Subject struct {
	ID       uint64
	OwnerUID string
	Price    int64
}

// Catalog resolves the subject of a new transaction. Lookup returns
// lifecycle.ErrSubjectUnavailable when the subject does not exist or is not
// accepting purchases.
type Catalog interface {
	Lookup(ctx context.Context, kind lifecycle.Kind, subjectID uint64) (*Subject, error)
}

// Authorizer reports the platform-wide roles of a user. Only PartyAdmin is
// meaningful here; buyer and seller are derived from ownership of the row.
type Authorizer interface {
	RoleOf(ctx context.Context, uid string) (lifecycle.Party, error)
}

// ProofStorage keeps payment evidence files.
type ProofStorage interface {
	Store(ctx context.Context, transactionID string, data []byte, contentType string) (string, error)
	Resolve(ctx context.Context, ref string) (string, error)
	Delete(ctx context.Context, ref string) error
}

// Directory answers whether a notification recipient exists.
type Directory interface {
	Exists(ctx context.Context, uid string) (bool, error)
}

// Publisher pushes a stored notification to connected clients. Delivery is
// best-effort.
type Publisher interface {
	Publish(userUID string, n model.Notification)
}

// Delivery is a notification whose first dispatch failed.
type Delivery struct {
	UserUID       string `json:"userUid"`
	Type          string `json:"type"`
	Message       string `json:"message"`
	TransactionID string `json:"transactionId,omitempty"`
}

// Redeliverer retries a failed notification outside the request.
type Redeliverer interface {
	Enqueue(ctx context.Context, d Delivery) error
}

// Metrics receives the outcome of every transition and notification.
type Metrics interface {
	Transition(kind lifecycle.Kind, op lifecycle.Op, err error)
	Notification(typ string, err error)
}

type nopMetrics struct{}

func (nopMetrics) Transition(lifecycle.Kind, lifecycle.Op, error) {}
func (nopMetrics) Notification(string, error)                     {}

type nopPublisher struct{}

func (nopPublisher) Publish(string, model.Notification) {}

type allowAllDirectory struct{}

func (allowAllDirectory) Exists(_ context.Context, uid string) (bool, error) {
	return uid != "", nil
}

// AllowAllDirectory accepts every non-empty uid.
func AllowAllDirectory() Directory { return allowAllDirectory{} }
