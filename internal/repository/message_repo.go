package repository

import (
	"context"

	"chatnotify/internal/model"

	"gorm.io/gorm"
)

type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) Create(ctx context.Context, tx *gorm.DB, msg *model.Message) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(msg).Error
}

// Recent 游标式查询最近消息：start_message_id 为 0 时取最新一页，
// 否则取比该ID更早的一页（慢订阅者掉队后的补偿读取路径）
func (r *MessageRepository) Recent(ctx context.Context, chatID, startMessageID int64, limit int) ([]*model.Message, error) {
	query := r.db.WithContext(ctx).Where("chat_id = ?", chatID)
	if startMessageID > 0 {
		query = query.Where("id < ?", startMessageID)
	}

	var messages []*model.Message
	err := query.Order("id DESC").Limit(limit).Find(&messages).Error
	return messages, err
}
