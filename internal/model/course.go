package model

import "time"

type Course struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	OwnerUID  string    `gorm:"column:owner_uid;size:128;not null;index"`
	Title     string    `gorm:"size:160;not null"`
	Price     uint      `gorm:"not null"`
	Published bool      `gorm:"not null;default:false"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (Course) TableName() string {
	return "courses"
}
