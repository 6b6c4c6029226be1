package model

import (
	"time"
)

// User 用户（密码散列由外部认证层生成，这里只存储）
type User struct {
	ID           int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Fullname     string    `gorm:"type:varchar(64);not null" json:"fullname"`
	Email        string    `gorm:"type:varchar(128);uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"type:varchar(128);not null" json:"-"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (User) TableName() string {
	return "users"
}
