package model

import "time"

type ItemStatus string

const (
	ItemStatusAvailable ItemStatus = "available"
	ItemStatusHidden    ItemStatus = "hidden"
)

// Item is a marketplace product.
type Item struct {
	ID          uint64     `gorm:"primaryKey;autoIncrement"`
	SellerUID   string     `gorm:"column:seller_uid;size:128;not null;index"`
	Title       string     `gorm:"size:120;not null"`
	Description string     `gorm:"type:text;not null"`
	Price       uint       `gorm:"not null"`
	ImageURL    *string    `gorm:"size:512"`
	Status      ItemStatus `gorm:"column:status;size:16;not null;default:available"`
	CreatedAt   time.Time  `gorm:"autoCreateTime"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime"`
}

func (Item) TableName() string {
	return "items"
}
