package repository

import (
	"context"

	"chatnotify/internal/model"

	"gorm.io/gorm"
)

type MemberRepository struct {
	db *gorm.DB
}

func NewMemberRepository(db *gorm.DB) *MemberRepository {
	return &MemberRepository{db: db}
}

// ListByChatID 查询聊天室全部成员ID
func (r *MemberRepository) ListByChatID(ctx context.Context, tx *gorm.DB, chatID int64) ([]int64, error) {
	if tx == nil {
		tx = r.db
	}
	var userIDs []int64
	err := tx.WithContext(ctx).
		Model(&model.ChatMember{}).
		Where("chat_id = ?", chatID).
		Order("user_id ASC").
		Pluck("user_id", &userIDs).Error
	return userIDs, err
}

func (r *MemberRepository) AddMembers(ctx context.Context, tx *gorm.DB, chatID int64, userIDs []int64) error {
	if tx == nil {
		tx = r.db
	}
	members := make([]model.ChatMember, 0, len(userIDs))
	for _, userID := range userIDs {
		members = append(members, model.ChatMember{ChatID: chatID, UserID: userID})
	}
	return tx.WithContext(ctx).Create(&members).Error
}

func (r *MemberRepository) RemoveMembers(ctx context.Context, tx *gorm.DB, chatID int64, userIDs []int64) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).
		Where("chat_id = ? AND user_id IN ?", chatID, userIDs).
		Delete(&model.ChatMember{}).Error
}

// RemoveAllByChatID 解散聊天室时清空成员
func (r *MemberRepository) RemoveAllByChatID(ctx context.Context, tx *gorm.DB, chatID int64) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Delete(&model.ChatMember{}).Error
}

// IsMember 校验用户是聊天室成员
func (r *MemberRepository) IsMember(ctx context.Context, chatID, userID int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.ChatMember{}).
		Where("chat_id = ? AND user_id = ?", chatID, userID).
		Count(&count).Error
	return count > 0, err
}
