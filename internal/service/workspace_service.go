package service

import (
	"context"
	"fmt"

	"chatnotify/internal/model"
	"chatnotify/internal/repository"

	"gorm.io/gorm"
)

// WorkspaceService 工作空间业务
type WorkspaceService struct {
	db            *gorm.DB
	workspaceRepo *repository.WorkspaceRepository
}

func NewWorkspaceService(db *gorm.DB) *WorkspaceService {
	return &WorkspaceService{
		db:            db,
		workspaceRepo: repository.NewWorkspaceRepository(db),
	}
}

func (s *WorkspaceService) Create(ctx context.Context, name string, ownerID int64) (*model.Workspace, error) {
	ws := &model.Workspace{
		Name:    name,
		OwnerID: ownerID,
	}
	if err := s.workspaceRepo.Create(ctx, ws); err != nil {
		return nil, fmt.Errorf("创建工作空间失败: %w", err)
	}
	return ws, nil
}

func (s *WorkspaceService) ListByOwner(ctx context.Context, ownerID int64) ([]*model.Workspace, error) {
	return s.workspaceRepo.ListByOwnerID(ctx, ownerID)
}
