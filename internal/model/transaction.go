package model

import (
	"time"

	"github.com/shinyyama/community-backend/internal/lifecycle"
)

// Transaction is the shared row for marketplace orders and course enrollments.
// CounterpartyUID and TrackingRef are only used by orders.
type Transaction struct {
	ID              string                  `gorm:"primaryKey;size:36"`
	Kind            lifecycle.Kind          `gorm:"column:kind;size:16;not null;index:idx_transactions_kind_status"`
	BuyerUID        string                  `gorm:"column:buyer_uid;size:128;not null;index"`
	CounterpartyUID *string                 `gorm:"column:counterparty_uid;size:128;index"`
	SubjectID       uint64                  `gorm:"column:subject_id;not null;index"`
	Quantity        int64                   `gorm:"column:quantity;not null"`
	TotalAmount     int64                   `gorm:"column:total_amount;not null"`
	Status          lifecycle.Status        `gorm:"column:status;size:32;not null;index:idx_transactions_kind_status"`
	PaymentStatus   lifecycle.PaymentStatus `gorm:"column:payment_status;size:16;not null;index"`
	PaymentProofRef *string                 `gorm:"column:payment_proof_ref;size:512"`
	TrackingRef     *string                 `gorm:"column:tracking_ref;size:255"`
	CreatedAt       time.Time               `gorm:"autoCreateTime"`
	UpdatedAt       time.Time               `gorm:"autoUpdateTime"`
}

func (Transaction) TableName() string {
	return "transactions"
}

// Relation reports how uid relates to the transaction by ownership alone.
func (t *Transaction) Relation(uid string) lifecycle.Party {
	var p lifecycle.Party
	if uid == "" {
		return p
	}
	if uid == t.BuyerUID {
		p |= lifecycle.PartyBuyer
	}
	if t.CounterpartyUID != nil && uid == *t.CounterpartyUID {
		p |= lifecycle.PartySeller
	}
	return p
}

func (t *Transaction) HasProof() bool {
	return t.PaymentProofRef != nil && *t.PaymentProofRef != ""
}

// Facts projects the row onto the inputs of the transition table.
func (t *Transaction) Facts(actor lifecycle.Party, tracking bool) lifecycle.Facts {
	return lifecycle.Facts{
		Kind:     t.Kind,
		Status:   t.Status,
		Payment:  t.PaymentStatus,
		HasProof: t.HasProof(),
		Tracking: tracking,
		Actor:    actor,
	}
}

// Seller returns the counterparty uid or "" for enrollments.
func (t *Transaction) Seller() string {
	if t.CounterpartyUID == nil {
		return ""
	}
	return *t.CounterpartyUID
}
