package repository

import (
	"context"
	"time"

	"chatnotify/internal/model"

	"gorm.io/gorm"
)

type OutboxRepository struct {
	db *gorm.DB
}

func NewOutboxRepository(db *gorm.DB) *OutboxRepository {
	return &OutboxRepository{db: db}
}

// Create 写入出站消息，必须传入业务事务 tx，保证与业务变更同一提交点
func (r *OutboxRepository) Create(ctx context.Context, tx *gorm.DB, msg *model.OutboxMessage) error {
	if tx == nil {
		tx = r.db
	}
	if msg.SendStatus == "" {
		msg.SendStatus = model.OutboxStatusPending
	}
	if msg.NextRetryTime.IsZero() {
		// 新消息立即到期，下一次调度即可发送
		msg.NextRetryTime = time.Now()
	}
	return tx.WithContext(ctx).Create(msg).Error
}

// GetDue 查询所有到期待发送的消息：状态为 pending 或 failed 且 next_retry_time 已过
func (r *OutboxRepository) GetDue(ctx context.Context, now time.Time) ([]*model.OutboxMessage, error) {
	var messages []*model.OutboxMessage
	err := r.db.WithContext(ctx).
		Where("send_status IN ? AND next_retry_time < ?",
			[]string{model.OutboxStatusPending, model.OutboxStatusFailed}, now).
		Find(&messages).Error
	return messages, err
}

// MarkSuccess 批量标记发送成功（一个事务内完成，消息不存在时静默跳过）
func (r *OutboxRepository) MarkSuccess(ctx context.Context, results []model.OutboxSendSuccess) error {
	if len(results) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, res := range results {
			if err := tx.Model(&model.OutboxMessage{}).
				Where("id = ?", res.ID).
				Updates(map[string]interface{}{
					"send_status":       model.OutboxStatusSuccess,
					"send_success_time": res.SendSuccessTime,
				}).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// MarkFailed 批量标记发送失败：记录失败原因、下次重试时间，并累加重试次数
func (r *OutboxRepository) MarkFailed(ctx context.Context, results []model.OutboxSendFail) error {
	if len(results) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, res := range results {
			if err := tx.Model(&model.OutboxMessage{}).
				Where("id = ?", res.ID).
				Updates(map[string]interface{}{
					"send_status":      model.OutboxStatusFailed,
					"send_fail_reason": res.SendFailReason,
					"next_retry_time":  res.NextRetryTime,
					"last_retry_time":  res.LastRetryTime,
					"retry_count":      gorm.Expr("retry_count + 1"),
				}).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// MinSuccessID 查询发送成功消息的最小ID（清理任务的起点）
func (r *OutboxRepository) MinSuccessID(ctx context.Context) (int64, error) {
	var minID *int64
	err := r.db.WithContext(ctx).
		Model(&model.OutboxMessage{}).
		Where("send_status = ?", model.OutboxStatusSuccess).
		Select("MIN(id)").
		Scan(&minID).Error
	if err != nil {
		return 0, err
	}
	if minID == nil {
		return 0, nil
	}
	return *minID, nil
}

// DeleteSuccessBefore 按ID范围和时间界限批量删除发送成功的历史消息，
// 先取一批候选ID再删除，避免单条 DELETE 扫描过大
func (r *OutboxRepository) DeleteSuccessBefore(ctx context.Context, startID int64, before time.Time, limit int) (int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).
		Model(&model.OutboxMessage{}).
		Where("id >= ? AND send_status = ? AND send_success_time <= ?",
			startID, model.OutboxStatusSuccess, before).
		Order("id ASC").
		Limit(limit).
		Pluck("id", &ids).Error
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	res := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Delete(&model.OutboxMessage{})
	return res.RowsAffected, res.Error
}
