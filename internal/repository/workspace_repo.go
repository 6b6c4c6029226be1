package repository

import (
	"context"
	"errors"

	"chatnotify/internal/model"

	"gorm.io/gorm"
)

var ErrWorkspaceNotFound = errors.New("工作空间不存在")

type WorkspaceRepository struct {
	db *gorm.DB
}

func NewWorkspaceRepository(db *gorm.DB) *WorkspaceRepository {
	return &WorkspaceRepository{db: db}
}

func (r *WorkspaceRepository) Create(ctx context.Context, ws *model.Workspace) error {
	return r.db.WithContext(ctx).Create(ws).Error
}

func (r *WorkspaceRepository) GetByID(ctx context.Context, id int64) (*model.Workspace, error) {
	var ws model.Workspace
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&ws).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrWorkspaceNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ws, nil
}

func (r *WorkspaceRepository) ListByOwnerID(ctx context.Context, ownerID int64) ([]*model.Workspace, error) {
	var workspaces []*model.Workspace
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("id ASC").
		Find(&workspaces).Error
	return workspaces, err
}
