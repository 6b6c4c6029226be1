package model

import (
	"time"
)

// 出站消息状态机：
//
//	pending -> success / failed
//	failed  -> success / failed（失败后只能重试，不会回到 pending）
//	success 为终态
//
// sending 由表结构保留，调度器不使用（单实例持锁期间无需中间态）。
const (
	OutboxStatusPending = "pending"
	OutboxStatusSending = "sending"
	OutboxStatusSuccess = "success"
	OutboxStatusFailed  = "failed"
)

// OutboxMessage 出站消息表，与业务变更同事务写入
type OutboxMessage struct {
	ID              int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	ChatID          int64      `gorm:"index;not null" json:"chat_id"`
	SenderID        int64      `gorm:"not null;default:0" json:"sender_id"` // 0 表示系统事件
	Payload         string     `gorm:"type:text;not null" json:"payload"`
	SendStatus      string     `gorm:"type:varchar(20);index;not null;default:pending" json:"send_status"`
	RetryCount      int        `gorm:"not null;default:0" json:"retry_count"`
	LastRetryTime   *time.Time `json:"last_retry_time"`
	NextRetryTime   time.Time  `gorm:"index;not null" json:"next_retry_time"`
	SendFailReason  *string    `gorm:"type:varchar(512)" json:"send_fail_reason"`
	SendSuccessTime *time.Time `json:"send_success_time"`
	CreatedAt       time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
}

func (OutboxMessage) TableName() string {
	return "outbox_messages"
}

// OutboxSendSuccess 发送成功时的批量更新项
type OutboxSendSuccess struct {
	ID              int64
	SendSuccessTime time.Time
}

// OutboxSendFail 发送失败时的批量更新项
type OutboxSendFail struct {
	ID             int64
	LastRetryTime  time.Time
	SendFailReason string
	NextRetryTime  time.Time
}
