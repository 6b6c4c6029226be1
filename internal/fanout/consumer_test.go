package fanout

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatnotify/internal/event"
)

func TestConsumerDispatchesToRecipients(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	registry := NewRegistry(16)
	consumer := NewConsumer(client, registry, "chat")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go consumer.Start(ctx)

	// 7 在线，8 不在线；9 在线但不在名单里
	sub7 := registry.GetOrCreate(7).Subscribe()
	defer sub7.Close()
	sub9 := registry.GetOrCreate(9).Subscribe()
	defer sub9.Close()

	evt := event.MessageSend{
		MessageID: 1,
		ChatID:    3,
		SenderID:  8,
		Content:   "hello",
		Members:   []int64{7, 8},
	}
	payload, err := event.Marshal(evt)
	require.NoError(t, err)

	// 订阅建立与发布之间存在竞态，收到之前反复发布
	var got event.ChatEvent
	deadline := time.After(3 * time.Second)
loop:
	for {
		require.NoError(t, client.Publish(ctx, "chat", string(payload)).Err())
		select {
		case got = <-sub7.Events():
			break loop
		case <-deadline:
			t.Fatal("名单内的在线接收者未收到事件")
		case <-time.After(50 * time.Millisecond):
		}
	}
	assert.Equal(t, evt, got)

	// 名单之外的在线接收者收不到
	assert.Len(t, sub9.Events(), 0)
}

func TestConsumerSkipsMalformedPayload(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	registry := NewRegistry(16)
	consumer := NewConsumer(client, registry, "chat")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go consumer.Start(ctx)

	sub := registry.GetOrCreate(1).Subscribe()
	defer sub.Close()

	evt := event.ChatCreate{ChatID: 2, Title: "新群", Type: "group", Members: []int64{1}}
	payload, err := event.Marshal(evt)
	require.NoError(t, err)

	// 坏消息只被跳过，后续的正常事件照常分发
	var got event.ChatEvent
	deadline := time.After(3 * time.Second)
loop:
	for {
		require.NoError(t, client.Publish(ctx, "chat", "不是JSON").Err())
		require.NoError(t, client.Publish(ctx, "chat", `{"UnknownKind":{}}`).Err())
		require.NoError(t, client.Publish(ctx, "chat", string(payload)).Err())
		select {
		case got = <-sub.Events():
			break loop
		case <-deadline:
			t.Fatal("正常事件未被分发")
		case <-time.After(50 * time.Millisecond):
		}
	}
	assert.Equal(t, evt, got)
}
