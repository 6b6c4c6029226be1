package mq

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

// Publisher 单次发布：把事件负载推到 Redis 广播频道。
// 不做内部重试——重试是调度器的职责，只有调度器能把重试状态落库。
type Publisher struct {
	client  *redis.Client
	channel string
	timeout time.Duration
}

func NewPublisher(client *redis.Client, channel string, timeout time.Duration) *Publisher {
	return &Publisher{
		client:  client,
		channel: channel,
		timeout: timeout,
	}
}

// Publish 发布一次，超时由连接级 timeout 兜底，不会无限阻塞
func (p *Publisher) Publish(ctx context.Context, payload string) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	return p.client.Publish(ctx, p.channel, payload).Err()
}

// Channel 发布频道名
func (p *Publisher) Channel() string {
	return p.channel
}
