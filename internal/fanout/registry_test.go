package fanout

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatnotify/internal/event"
)

func TestGetOrCreateConcurrent(t *testing.T) {
	r := NewRegistry(16)

	// 并发抢建同一个接收者的通道，所有人必须拿到同一个实例
	const n = 32
	results := make([]*Broadcaster, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			results[idx] = r.GetOrCreate(42)
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		assert.Same(t, results[0], results[i])
	}
	assert.Equal(t, 1, r.Len())
}

func TestBroadcastDelivery(t *testing.T) {
	r := NewRegistry(16)

	sub := r.GetOrCreate(1).Subscribe()
	defer sub.Close()

	evt := event.MessageSend{
		MessageID: 100,
		ChatID:    10,
		SenderID:  2,
		Content:   "hello",
		Members:   []int64{1, 2},
	}

	// 名单里没建过通道的接收者（2、3）直接跳过，不会阻塞也不会报错
	r.Broadcast([]int64{1, 2, 3}, evt)

	select {
	case got := <-sub.Events():
		assert.Equal(t, evt, got)
	case <-time.After(time.Second):
		t.Fatal("订阅者未收到事件")
	}

	// 只有 1 建了通道
	assert.Equal(t, 1, r.Len())
}

func TestSlowSubscriberLag(t *testing.T) {
	b := NewBroadcaster(2)
	sub := b.Subscribe()
	defer sub.Close()

	evt := event.ChatCreate{ChatID: 1, Members: []int64{1}}

	// 缓冲 2，投 5 条：前 2 条进缓冲，后 3 条被丢弃且不阻塞
	for i := 0; i < 5; i++ {
		b.Send(evt)
	}

	assert.Equal(t, int64(3), sub.TakeLag())
	// 取过之后清零
	assert.Equal(t, int64(0), sub.TakeLag())

	// 缓冲里的 2 条还在
	assert.Len(t, sub.Events(), 2)
}

func TestCloseIsolation(t *testing.T) {
	b := NewBroadcaster(16)

	sub1 := b.Subscribe()
	sub2 := b.Subscribe()
	require.Equal(t, 2, b.SubscriberCount())

	// 关掉一条连接，同一接收者的另一条不受影响
	sub1.Close()
	assert.Equal(t, 1, b.SubscriberCount())

	evt := event.UserLeave{ChatID: 5, UserID: 9, Members: []int64{1, 9}}
	b.Send(evt)

	select {
	case got := <-sub2.Events():
		assert.Equal(t, evt, got)
	case <-time.After(time.Second):
		t.Fatal("存活的订阅者未收到事件")
	}
	assert.Len(t, sub1.Events(), 0)

	// 重复 Close 是空操作
	sub1.Close()
	sub2.Close()
	assert.Equal(t, 0, b.SubscriberCount())
}
