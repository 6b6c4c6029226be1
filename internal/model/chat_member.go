package model

import (
	"time"
)

// ChatMember 聊天室成员
type ChatMember struct {
	ChatID   int64     `gorm:"primaryKey;autoIncrement:false" json:"chat_id"`
	UserID   int64     `gorm:"primaryKey;autoIncrement:false;index" json:"user_id"`
	JoinedAt time.Time `gorm:"autoCreateTime" json:"joined_at"`
}

func (ChatMember) TableName() string {
	return "chat_members"
}
