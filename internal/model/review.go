package model

import "time"

type Review struct {
	ID            uint64    `gorm:"primaryKey;autoIncrement"`
	TransactionID string    `gorm:"column:transaction_id;size:36;not null;uniqueIndex:uk_reviews_transaction"`
	AuthorUID     string    `gorm:"column:author_uid;size:128;not null;index"`
	Rating        int       `gorm:"column:rating;not null"`
	Comment       string    `gorm:"column:comment;type:text"`
	CreatedAt     time.Time `gorm:"autoCreateTime"`
}

func (Review) TableName() string {
	return "reviews"
}
