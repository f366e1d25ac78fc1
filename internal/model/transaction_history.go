package model

import (
	"time"

	"github.com/shinyyama/community-backend/internal/lifecycle"
	"gorm.io/datatypes"
)

// TransactionHistory is the append-only audit trail. Rows are never updated.
type TransactionHistory struct {
	ID             uint64           `gorm:"primaryKey;autoIncrement"`
	TransactionID  string           `gorm:"column:transaction_id;size:36;not null;index"`
	ActorUID       string           `gorm:"column:actor_uid;size:128;not null"`
	Op             lifecycle.Op     `gorm:"column:op;size:32;not null"`
	PreviousStatus lifecycle.Status `gorm:"column:previous_status;size:32;not null"`
	NewStatus      lifecycle.Status `gorm:"column:new_status;size:32;not null"`
	Note           string           `gorm:"column:note;type:text"`
	Metadata       datatypes.JSON   `gorm:"column:metadata"`
	CreatedAt      time.Time        `gorm:"autoCreateTime"`
}

func (TransactionHistory) TableName() string {
	return "transaction_histories"
}
