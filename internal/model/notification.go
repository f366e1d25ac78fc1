package model

import "time"

type Notification struct {
	ID            uint64     `gorm:"primaryKey;autoIncrement"`
	UserUID       string     `gorm:"column:user_uid;size:128;index;not null"`
	Type          string     `gorm:"column:type;size:64;not null"`
	Message       string     `gorm:"column:message;type:text"`
	TransactionID *string    `gorm:"column:transaction_id;size:36;index"`
	ReadAt        *time.Time `gorm:"column:read_at"`
	CreatedAt     time.Time  `gorm:"autoCreateTime"`
}

func (Notification) TableName() string {
	return "notifications"
}

func (n *Notification) IsRead() bool {
	return n.ReadAt != nil
}
