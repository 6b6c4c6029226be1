package lock

import (
	"context"
	"fmt"
	"time"

	"chatnotify/pkg/idgen"

	"github.com/go-redis/redis/v8"
)

// ============================================================================
// 分布式锁
// ============================================================================
//
// 【为什么需要分布式锁？】
//
// 出站消息调度器可能部署多个副本，如果两个副本同时拉取同一批待发送消息，
// 同一条事件就会被发布两次。调度周期开始前先抢锁，抢不到直接跳过本轮。
//
// 【加锁】SET key token NX PX ttl
//   - NX: 只有 key 不存在时才设置（保证互斥）
//   - PX: 设置过期时间（持有者崩溃时锁自动释放，系统自愈）
//   - token: 锁持有者标识，每次抢锁重新生成
//
// 【释放】Lua 脚本保证"比较 + 删除"原子执行
//   锁过期后被其他副本抢走时，原持有者迟到的释放操作会因为 token
//   不匹配而变成空操作，不会误删新持有者的锁。
//
// ============================================================================

// OutboxSendLockKey 出站消息发送锁的固定 key
const OutboxSendLockKey = "lock:outbox_message_send"

const releaseScript = `
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	else
		return 0
	end
`

// DistributedLock 分布式锁
type DistributedLock struct {
	client     *redis.Client
	key        string
	token      string        // 锁持有者标识（释放时验证，防止误删别人的锁）
	expiration time.Duration // 锁的过期时间
}

// NewDistributedLock 创建分布式锁
func NewDistributedLock(client *redis.Client, key, token string, expiration time.Duration) *DistributedLock {
	return &DistributedLock{
		client:     client,
		key:        key,
		token:      token,
		expiration: expiration,
	}
}

// NewOutboxSendLock 创建出站消息发送锁，token 每次生成，保证持有者唯一
func NewOutboxSendLock(client *redis.Client, ttl time.Duration) *DistributedLock {
	token := fmt.Sprintf("%d", idgen.NextID())
	return NewDistributedLock(client, OutboxSendLockKey, token, ttl)
}

// TryLock 尝试获取锁（非阻塞）。锁已被占用时返回 false 而不是错误
func (l *DistributedLock) TryLock(ctx context.Context) (bool, error) {
	success, err := l.client.SetNX(ctx, l.key, l.token, l.expiration).Result()
	if err != nil {
		return false, err
	}
	return success, nil
}

// Unlock 释放锁，token 不匹配时不删除（返回 false）
func (l *DistributedLock) Unlock(ctx context.Context) (bool, error) {
	res, err := l.client.Eval(ctx, releaseScript, []string{l.key}, l.token).Result()
	if err != nil {
		return false, err
	}
	deleted, ok := res.(int64)
	return ok && deleted == 1, nil
}

// Token 当前持有者标识
func (l *DistributedLock) Token() string {
	return l.token
}
