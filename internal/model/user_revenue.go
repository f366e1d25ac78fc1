package model

import "time"

// UserRevenue accumulates what a seller has earned from completed orders.
type UserRevenue struct {
	UID       string    `gorm:"column:uid;primaryKey;size:128"`
	Amount    int64     `gorm:"column:amount;not null;default:0"`
	Orders    int64     `gorm:"column:orders;not null;default:0"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (UserRevenue) TableName() string {
	return "user_revenues"
}
