package job

import (
	"context"
	"log"
	"time"

	"chatnotify/internal/config"
	"chatnotify/internal/repository"

	"gorm.io/gorm"
)

// OutboxCleaner 出站消息清理任务：
// 定期删除发送成功且超过保留期的历史消息，控制表的体积
type OutboxCleaner struct {
	outboxRepo *repository.OutboxRepository
	cfg        *config.Config
	stopCh     chan struct{}
	interval   time.Duration
	maxAge     time.Duration
	batchLimit int
}

func NewOutboxCleaner(db *gorm.DB, cfg *config.Config) *OutboxCleaner {
	return &OutboxCleaner{
		outboxRepo: repository.NewOutboxRepository(db),
		cfg:        cfg,
		stopCh:     make(chan struct{}),
		interval:   cfg.Retention.Interval(),
		maxAge:     cfg.Retention.MaxAge(),
		batchLimit: cfg.Retention.BatchLimit,
	}
}

func (c *OutboxCleaner) Start(ctx context.Context) {
	log.Println("[OutboxCleaner] 出站消息清理任务启动")

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[OutboxCleaner] 收到停止信号，任务退出")
			return
		case <-c.stopCh:
			log.Println("[OutboxCleaner] 任务停止")
			return
		case <-ticker.C:
			c.cleanOnce(ctx)
		}
	}
}

func (c *OutboxCleaner) Stop() {
	close(c.stopCh)
}

// cleanOnce 清理一批：从成功消息的最小ID开始，删除保留期之前的记录
func (c *OutboxCleaner) cleanOnce(ctx context.Context) {
	minID, err := c.outboxRepo.MinSuccessID(ctx)
	if err != nil {
		log.Printf("[OutboxCleaner] 查询最小成功ID失败: %v", err)
		return
	}
	if minID == 0 {
		return
	}

	before := time.Now().Add(-c.maxAge)
	deleted, err := c.outboxRepo.DeleteSuccessBefore(ctx, minID, before, c.batchLimit)
	if err != nil {
		log.Printf("[OutboxCleaner] 删除历史消息失败: %v", err)
		return
	}
	if deleted > 0 {
		log.Printf("[OutboxCleaner] 已清理 %d 条历史消息", deleted)
	}
}
