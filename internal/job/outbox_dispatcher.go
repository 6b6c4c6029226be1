package job

import (
	"context"
	"log"
	"time"

	"chatnotify/internal/config"
	"chatnotify/internal/infrastructure/lock"
	"chatnotify/internal/infrastructure/mq"
	"chatnotify/internal/model"
	"chatnotify/internal/repository"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// 失败原因入库前截断到列宽以内
const maxFailReasonLen = 512

// OutboxDispatcher 出站消息调度器。
//
// 每个周期：抢分布式锁 -> 拉取到期消息 -> 逐条发布 -> 批量落库发送结果。
// 进程内由 ticker 串行触发，周期之间不会重叠；跨进程互斥靠分布式锁。
// 发布失败是常态（broker 抖动），记录原因后等 next_retry_time 重试；
// 只有读写出站表失败才放弃本周期，等下一个 tick。
type OutboxDispatcher struct {
	outboxRepo  *repository.OutboxRepository
	publisher   *mq.Publisher
	redisClient *redis.Client
	cfg         *config.Config
	stopCh      chan struct{}
	interval    time.Duration
	lockTTL     time.Duration
	retryDelay  time.Duration
}

func NewOutboxDispatcher(db *gorm.DB, redisClient *redis.Client, publisher *mq.Publisher, cfg *config.Config) *OutboxDispatcher {
	return &OutboxDispatcher{
		outboxRepo:  repository.NewOutboxRepository(db),
		publisher:   publisher,
		redisClient: redisClient,
		cfg:         cfg,
		stopCh:      make(chan struct{}),
		interval:    cfg.Dispatcher.Interval(),
		lockTTL:     cfg.Dispatcher.LockTTL(),
		retryDelay:  cfg.Dispatcher.RetryDelay(),
	}
}

func (d *OutboxDispatcher) Start(ctx context.Context) {
	log.Println("[OutboxDispatcher] 出站消息调度任务启动")

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[OutboxDispatcher] 收到停止信号，任务退出")
			return
		case <-d.stopCh:
			log.Println("[OutboxDispatcher] 任务停止")
			return
		case <-ticker.C:
			d.dispatchCycle(ctx)
		}
	}
}

func (d *OutboxDispatcher) Stop() {
	close(d.stopCh)
}

// dispatchCycle 一个调度周期
func (d *OutboxDispatcher) dispatchCycle(ctx context.Context) {
	// 抢锁，锁的 TTL 远大于一个周期的预期耗时；
	// 锁服务不可达等同于没抢到，跳过本轮等自愈
	sendLock := lock.NewOutboxSendLock(d.redisClient, d.lockTTL)
	acquired, err := sendLock.TryLock(ctx)
	if err != nil {
		log.Printf("[OutboxDispatcher] 获取锁出错（视为未获取）: %v", err)
		return
	}
	if !acquired {
		// 其他副本正在调度，本轮跳过
		return
	}
	defer func() {
		if _, err := sendLock.Unlock(ctx); err != nil {
			// 释放失败不影响正确性，锁到期自动过期
			log.Printf("[OutboxDispatcher] 释放锁失败: %v", err)
		}
	}()

	messages, err := d.outboxRepo.GetDue(ctx, time.Now())
	if err != nil {
		log.Printf("[OutboxDispatcher] 查询待发送消息失败: %v", err)
		return
	}
	if len(messages) == 0 {
		return
	}

	log.Printf("[OutboxDispatcher] 开始发送 %d 条消息", len(messages))

	// 逐条发布，单条失败不影响其余消息
	var successes []model.OutboxSendSuccess
	var fails []model.OutboxSendFail
	for _, msg := range messages {
		if err := d.publisher.Publish(ctx, msg.Payload); err != nil {
			now := time.Now()
			log.Printf("[OutboxDispatcher] 消息发送失败: id=%d, err=%v", msg.ID, err)
			fails = append(fails, model.OutboxSendFail{
				ID:             msg.ID,
				LastRetryTime:  now,
				SendFailReason: truncateReason(err.Error()),
				NextRetryTime:  now.Add(d.retryDelay),
			})
			continue
		}
		successes = append(successes, model.OutboxSendSuccess{
			ID:              msg.ID,
			SendSuccessTime: time.Now(),
		})
	}

	if err := d.outboxRepo.MarkSuccess(ctx, successes); err != nil {
		log.Printf("[OutboxDispatcher] 更新成功状态失败: %v", err)
	}
	if err := d.outboxRepo.MarkFailed(ctx, fails); err != nil {
		log.Printf("[OutboxDispatcher] 更新失败状态失败: %v", err)
	}

	if len(fails) == 0 {
		log.Printf("[OutboxDispatcher] 本轮发送完成: 成功 %d 条", len(successes))
	} else {
		log.Printf("[OutboxDispatcher] 本轮发送完成: 成功 %d 条, 失败 %d 条", len(successes), len(fails))
	}
}

func truncateReason(reason string) string {
	if len(reason) > maxFailReasonLen {
		return reason[:maxFailReasonLen]
	}
	return reason
}
