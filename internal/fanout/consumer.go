package fanout

import (
	"context"
	"log"

	"chatnotify/internal/event"

	"github.com/go-redis/redis/v8"
)

// Consumer 整个进程唯一的广播订阅者：订阅 Redis 频道，
// 把每条事件按其携带的接收者名单分发到注册表
type Consumer struct {
	client   *redis.Client
	registry *Registry
	channel  string
}

func NewConsumer(client *redis.Client, registry *Registry, channel string) *Consumer {
	return &Consumer{
		client:   client,
		registry: registry,
		channel:  channel,
	}
}

// Start 订阅循环，阻塞运行直到 ctx 取消。调用方负责放到独立 goroutine
func (c *Consumer) Start(ctx context.Context) {
	pubsub := c.client.Subscribe(ctx, c.channel)
	defer pubsub.Close()

	log.Printf("[FanoutConsumer] 开始订阅频道: %s", c.channel)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			log.Println("[FanoutConsumer] 收到停止信号，订阅退出")
			return
		case msg, ok := <-ch:
			if !ok {
				log.Println("[FanoutConsumer] 订阅通道已关闭")
				return
			}
			c.dispatch(msg)
		}
	}
}

// dispatch 解码并分发一条事件，坏消息只记日志不影响后续
func (c *Consumer) dispatch(msg *redis.Message) {
	evt, err := event.Unmarshal([]byte(msg.Payload))
	if err != nil {
		log.Printf("[FanoutConsumer] 解析事件失败: channel=%s, err=%v", msg.Channel, err)
		return
	}

	c.registry.Broadcast(evt.Recipients(), evt)
}
