package mq

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishDeliversToChannel(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	ctx := context.Background()

	subClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { subClient.Close() })
	pubsub := subClient.Subscribe(ctx, "chat")
	defer pubsub.Close()
	_, err := pubsub.Receive(ctx)
	require.NoError(t, err)

	p := NewPublisher(client, "chat", time.Second)
	assert.Equal(t, "chat", p.Channel())

	require.NoError(t, p.Publish(ctx, `{"ChatCreate":{"chat_id":1}}`))

	select {
	case msg := <-pubsub.Channel():
		assert.Equal(t, `{"ChatCreate":{"chat_id":1}}`, msg.Payload)
	case <-time.After(2 * time.Second):
		t.Fatal("订阅端未收到消息")
	}
}

func TestPublishBrokerDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	mr.Close()

	p := NewPublisher(client, "chat", time.Second)
	assert.Error(t, p.Publish(context.Background(), "payload"))
}
