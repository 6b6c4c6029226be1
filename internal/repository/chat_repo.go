package repository

import (
	"context"
	"errors"

	"chatnotify/internal/model"

	"gorm.io/gorm"
)

var ErrChatNotFound = errors.New("聊天室不存在")

type ChatRepository struct {
	db *gorm.DB
}

func NewChatRepository(db *gorm.DB) *ChatRepository {
	return &ChatRepository{db: db}
}

func (r *ChatRepository) Create(ctx context.Context, tx *gorm.DB, chat *model.Chat) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(chat).Error
}

func (r *ChatRepository) GetByID(ctx context.Context, id int64) (*model.Chat, error) {
	var chat model.Chat
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&chat).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrChatNotFound
	}
	if err != nil {
		return nil, err
	}
	return &chat, nil
}

// GetByIDForUpdate 事务内按聊天室ID加行锁，串行化同一聊天室的成员变更
func (r *ChatRepository) GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id int64) (*model.Chat, error) {
	var chat model.Chat
	err := withForUpdate(tx.WithContext(ctx)).
		Where("id = ?", id).
		First(&chat).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrChatNotFound
	}
	if err != nil {
		return nil, err
	}
	return &chat, nil
}

func (r *ChatRepository) Delete(ctx context.Context, tx *gorm.DB, id int64) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Where("id = ?", id).Delete(&model.Chat{}).Error
}

// ListByUserID 查询用户加入的所有聊天室
func (r *ChatRepository) ListByUserID(ctx context.Context, userID int64) ([]*model.Chat, error) {
	var chats []*model.Chat
	err := r.db.WithContext(ctx).
		Joins("JOIN chat_members ON chat_members.chat_id = chats.id").
		Where("chat_members.user_id = ?", userID).
		Order("chats.updated_at DESC").
		Find(&chats).Error
	return chats, err
}
