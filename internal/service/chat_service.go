package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"chatnotify/internal/event"
	"chatnotify/internal/model"
	"chatnotify/internal/repository"

	"gorm.io/gorm"
)

var (
	ErrChatMemberEmpty = errors.New("聊天室成员不能为空")
	ErrUserIDInvalid   = errors.New("存在无效的用户ID")
)

// ChatService 聊天室业务。所有会产生通知的变更都在同一个事务内
// 写业务表和出站消息表：事务回滚则出站消息一并消失，不会出现
// 数据库与通知不一致的双写问题。
type ChatService struct {
	db         *gorm.DB
	chatRepo   *repository.ChatRepository
	memberRepo *repository.MemberRepository
	outboxRepo *repository.OutboxRepository
	userRepo   *repository.UserRepository
}

func NewChatService(db *gorm.DB) *ChatService {
	return &ChatService{
		db:         db,
		chatRepo:   repository.NewChatRepository(db),
		memberRepo: repository.NewMemberRepository(db),
		outboxRepo: repository.NewOutboxRepository(db),
		userRepo:   repository.NewUserRepository(db),
	}
}

// Create 创建聊天室
func (s *ChatService) Create(ctx context.Context, workspaceID int64, title, chatType string, members []int64) (int64, error) {
	if len(members) == 0 {
		return 0, ErrChatMemberEmpty
	}
	if err := model.ValidateChatType(chatType); err != nil {
		return 0, err
	}
	if err := s.validateUserIDs(ctx, members); err != nil {
		return 0, err
	}

	chat := &model.Chat{
		WorkspaceID: workspaceID,
		Title:       title,
		Type:        chatType,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.chatRepo.Create(ctx, tx, chat); err != nil {
			return fmt.Errorf("创建聊天室失败: %w", err)
		}
		if err := s.memberRepo.AddMembers(ctx, tx, chat.ID, members); err != nil {
			return fmt.Errorf("添加聊天室成员失败: %w", err)
		}

		evt := event.ChatCreate{
			ChatID:  chat.ID,
			Title:   title,
			Type:    chatType,
			Members: members,
		}
		return s.appendOutbox(ctx, tx, chat.ID, 0, evt)
	})
	if err != nil {
		return 0, err
	}

	log.Printf("创建聊天室成功: chatID=%d, title=%s, members=%d", chat.ID, title, len(members))
	return chat.ID, nil
}

// Delete 解散聊天室。事件携带解散前的成员名单——成员行已删除后
// 才发通知，名单必须在删除前取好
func (s *ChatService) Delete(ctx context.Context, chatID int64) error {
	chat, err := s.chatRepo.GetByID(ctx, chatID)
	if err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		members, err := s.memberRepo.ListByChatID(ctx, tx, chatID)
		if err != nil {
			return fmt.Errorf("查询聊天室成员失败: %w", err)
		}
		if err := s.chatRepo.Delete(ctx, tx, chatID); err != nil {
			return fmt.Errorf("删除聊天室失败: %w", err)
		}
		if err := s.memberRepo.RemoveAllByChatID(ctx, tx, chatID); err != nil {
			return fmt.Errorf("删除聊天室成员失败: %w", err)
		}

		evt := event.ChatDrop{
			ChatID:  chatID,
			Title:   chat.Title,
			Type:    chat.Type,
			Members: members,
		}
		return s.appendOutbox(ctx, tx, chatID, 0, evt)
	})
}

// AddMembers 添加成员，已在聊天室中的ID会被过滤掉。
// 每个新成员一条 UserJoin 事件，名单为加入前成员加上加入者本人
func (s *ChatService) AddMembers(ctx context.Context, chatID int64, userIDs []int64) error {
	if len(userIDs) == 0 {
		return ErrChatMemberEmpty
	}
	if err := s.validateUserIDs(ctx, userIDs); err != nil {
		return err
	}
	if _, err := s.chatRepo.GetByID(ctx, chatID); err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		// 行锁串行化同一聊天室的成员变更
		chat, err := s.chatRepo.GetByIDForUpdate(ctx, tx, chatID)
		if err != nil {
			return err
		}

		existing, err := s.memberRepo.ListByChatID(ctx, tx, chatID)
		if err != nil {
			return fmt.Errorf("查询聊天室成员失败: %w", err)
		}

		joiners := filterNewMembers(existing, userIDs)
		if len(joiners) == 0 {
			log.Printf("传入的成员已经在聊天室中: chatID=%d", chatID)
			return nil
		}

		for _, userID := range joiners {
			evt := event.UserJoin{
				ChatID:  chatID,
				Title:   chat.Title,
				Members: append(append([]int64{}, existing...), userID),
				UserID:  userID,
			}
			if err := s.appendOutbox(ctx, tx, chatID, 0, evt); err != nil {
				return err
			}
		}

		return s.memberRepo.AddMembers(ctx, tx, chatID, joiners)
	})
}

// RemoveMembers 移除成员。每个退出者一条 UserLeave 事件，名单为
// 移除前的成员（退出者本人和剩余成员都要看到通知）；
// 聊天室被清空时改发一条 ChatDrop，同样带移除前的名单
func (s *ChatService) RemoveMembers(ctx context.Context, chatID int64, userIDs []int64) error {
	if len(userIDs) == 0 {
		return ErrChatMemberEmpty
	}
	if _, err := s.chatRepo.GetByID(ctx, chatID); err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		chat, err := s.chatRepo.GetByIDForUpdate(ctx, tx, chatID)
		if err != nil {
			return err
		}

		existing, err := s.memberRepo.ListByChatID(ctx, tx, chatID)
		if err != nil {
			return fmt.Errorf("查询聊天室成员失败: %w", err)
		}

		leavers := filterPresentMembers(existing, userIDs)
		if len(leavers) == 0 {
			return nil
		}

		if err := s.memberRepo.RemoveMembers(ctx, tx, chatID, leavers); err != nil {
			return fmt.Errorf("移除聊天室成员失败: %w", err)
		}

		if len(leavers) == len(existing) {
			// 最后一批成员退出，解散聊天室
			if err := s.chatRepo.Delete(ctx, tx, chatID); err != nil {
				return fmt.Errorf("删除聊天室失败: %w", err)
			}
			evt := event.ChatDrop{
				ChatID:  chatID,
				Title:   chat.Title,
				Type:    chat.Type,
				Members: existing,
			}
			return s.appendOutbox(ctx, tx, chatID, 0, evt)
		}

		for _, userID := range leavers {
			evt := event.UserLeave{
				ChatID:  chatID,
				Title:   chat.Title,
				Members: existing,
				UserID:  userID,
			}
			if err := s.appendOutbox(ctx, tx, chatID, 0, evt); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetMembers 获取聊天室成员
func (s *ChatService) GetMembers(ctx context.Context, chatID int64) ([]int64, error) {
	if _, err := s.chatRepo.GetByID(ctx, chatID); err != nil {
		return nil, err
	}
	return s.memberRepo.ListByChatID(ctx, nil, chatID)
}

// IsMember 校验用户是聊天室成员
func (s *ChatService) IsMember(ctx context.Context, chatID, userID int64) (bool, error) {
	return s.memberRepo.IsMember(ctx, chatID, userID)
}

// ListByUserID 查询用户加入的聊天室列表
func (s *ChatService) ListByUserID(ctx context.Context, userID int64) ([]*model.Chat, error) {
	return s.chatRepo.ListByUserID(ctx, userID)
}

// Details 聊天室详情（含成员）
func (s *ChatService) Details(ctx context.Context, chatID int64) (*model.ChatDetails, error) {
	chat, err := s.chatRepo.GetByID(ctx, chatID)
	if err != nil {
		return nil, err
	}
	members, err := s.memberRepo.ListByChatID(ctx, nil, chatID)
	if err != nil {
		return nil, err
	}
	return &model.ChatDetails{Chat: *chat, Members: members}, nil
}

// appendOutbox 把事件序列化后写入出站表，必须在业务事务内调用
func (s *ChatService) appendOutbox(ctx context.Context, tx *gorm.DB, chatID, senderID int64, evt event.ChatEvent) error {
	payload, err := event.Marshal(evt)
	if err != nil {
		return fmt.Errorf("序列化事件失败: %w", err)
	}
	msg := &model.OutboxMessage{
		ChatID:   chatID,
		SenderID: senderID,
		Payload:  string(payload),
	}
	if err := s.outboxRepo.Create(ctx, tx, msg); err != nil {
		return fmt.Errorf("写入出站消息失败: %w", err)
	}
	return nil
}

func (s *ChatService) validateUserIDs(ctx context.Context, ids []int64) error {
	unique := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		unique[id] = struct{}{}
	}
	deduped := make([]int64, 0, len(unique))
	for id := range unique {
		deduped = append(deduped, id)
	}

	count, err := s.userRepo.CountByIDs(ctx, deduped)
	if err != nil {
		return fmt.Errorf("校验用户ID失败: %w", err)
	}
	if count != int64(len(deduped)) {
		return ErrUserIDInvalid
	}
	return nil
}

// filterNewMembers 过滤出还不在聊天室中的ID
func filterNewMembers(existing, candidates []int64) []int64 {
	present := make(map[int64]struct{}, len(existing))
	for _, id := range existing {
		present[id] = struct{}{}
	}

	var joiners []int64
	seen := make(map[int64]struct{}, len(candidates))
	for _, id := range candidates {
		if _, ok := present[id]; ok {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		joiners = append(joiners, id)
	}
	return joiners
}

// filterPresentMembers 过滤出确实在聊天室中的ID
func filterPresentMembers(existing, candidates []int64) []int64 {
	present := make(map[int64]struct{}, len(existing))
	for _, id := range existing {
		present[id] = struct{}{}
	}

	var leavers []int64
	seen := make(map[int64]struct{}, len(candidates))
	for _, id := range candidates {
		if _, ok := present[id]; !ok {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		leavers = append(leavers, id)
	}
	return leavers
}
