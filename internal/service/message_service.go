package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"chatnotify/internal/event"
	"chatnotify/internal/model"
	"chatnotify/internal/repository"

	"gorm.io/gorm"
)

var ErrNotChatMember = errors.New("用户不是聊天室成员")

// MessageService 消息业务
type MessageService struct {
	db          *gorm.DB
	messageRepo *repository.MessageRepository
	memberRepo  *repository.MemberRepository
	outboxRepo  *repository.OutboxRepository
}

func NewMessageService(db *gorm.DB) *MessageService {
	return &MessageService{
		db:          db,
		messageRepo: repository.NewMessageRepository(db),
		memberRepo:  repository.NewMemberRepository(db),
		outboxRepo:  repository.NewOutboxRepository(db),
	}
}

// Send 发送消息：消息行和 MessageSend 出站事件同事务落库。
// 事件名单取发送时刻的聊天室成员
func (s *MessageService) Send(ctx context.Context, chatID, senderID int64, content string, attachments []string) (int64, error) {
	isMember, err := s.memberRepo.IsMember(ctx, chatID, senderID)
	if err != nil {
		return 0, fmt.Errorf("校验聊天室成员失败: %w", err)
	}
	if !isMember {
		return 0, ErrNotChatMember
	}

	files := ""
	if len(attachments) > 0 {
		filesBytes, err := json.Marshal(attachments)
		if err != nil {
			return 0, fmt.Errorf("序列化附件列表失败: %w", err)
		}
		files = string(filesBytes)
	}

	msg := &model.Message{
		ChatID:   chatID,
		SenderID: senderID,
		Content:  content,
		Files:    files,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		members, err := s.memberRepo.ListByChatID(ctx, tx, chatID)
		if err != nil {
			return fmt.Errorf("查询聊天室成员失败: %w", err)
		}
		if err := s.messageRepo.Create(ctx, tx, msg); err != nil {
			return fmt.Errorf("创建消息失败: %w", err)
		}

		evt := event.MessageSend{
			MessageID:   msg.ID,
			ChatID:      chatID,
			SenderID:    senderID,
			Content:     content,
			Members:     members,
			Attachments: attachments,
		}
		payload, err := event.Marshal(evt)
		if err != nil {
			return fmt.Errorf("序列化事件失败: %w", err)
		}
		outboxMsg := &model.OutboxMessage{
			ChatID:   chatID,
			SenderID: senderID,
			Payload:  string(payload),
		}
		if err := s.outboxRepo.Create(ctx, tx, outboxMsg); err != nil {
			return fmt.Errorf("写入出站消息失败: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return msg.ID, nil
}

// Recent 查询最近消息（实时流掉队后的补偿读取路径）
func (s *MessageService) Recent(ctx context.Context, chatID, userID, startMessageID int64, limit int) ([]*model.Message, error) {
	isMember, err := s.memberRepo.IsMember(ctx, chatID, userID)
	if err != nil {
		return nil, fmt.Errorf("校验聊天室成员失败: %w", err)
	}
	if !isMember {
		return nil, ErrNotChatMember
	}

	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.messageRepo.Recent(ctx, chatID, startMessageID, limit)
}
