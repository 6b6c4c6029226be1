package model

import (
	"fmt"
	"time"
)

const (
	ChatTypeSingle  = "single"
	ChatTypeGroup   = "group"
	ChatTypePublic  = "public"
	ChatTypePrivate = "private"
)

// ValidateChatType 校验聊天室类型
func ValidateChatType(t string) error {
	switch t {
	case ChatTypeSingle, ChatTypeGroup, ChatTypePublic, ChatTypePrivate:
		return nil
	default:
		return fmt.Errorf("未知的聊天室类型: %q", t)
	}
}

// Chat 聊天室
type Chat struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	WorkspaceID int64     `gorm:"index;not null" json:"workspace_id"`
	Title       string    `gorm:"type:varchar(128);not null" json:"title"`
	Type        string    `gorm:"type:varchar(20);not null" json:"type"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Chat) TableName() string {
	return "chats"
}

// ChatDetails 聊天室详情（含成员列表）
type ChatDetails struct {
	Chat
	Members []int64 `json:"members"`
}
