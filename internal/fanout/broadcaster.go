package fanout

import (
	"sync"
	"sync/atomic"

	"chatnotify/internal/event"
)

// Broadcaster 单个接收者的多播通道：一个接收者可能有多条在线连接，
// 每条连接一个有界缓冲。广播永不阻塞——缓冲写满时丢弃并累计滞后数，
// 由会话把滞后信号推给客户端，客户端走非实时读取路径补偿。
type Broadcaster struct {
	mu      sync.RWMutex
	subs    map[*Subscription]struct{}
	bufSize int
}

// Subscription 一条在线连接持有的订阅
type Subscription struct {
	ch      chan event.ChatEvent
	dropped int64 // 缓冲写满时丢弃的事件数
	owner   *Broadcaster
	once    sync.Once
}

func NewBroadcaster(bufSize int) *Broadcaster {
	if bufSize <= 0 {
		bufSize = 256
	}
	return &Broadcaster{
		subs:    make(map[*Subscription]struct{}),
		bufSize: bufSize,
	}
}

// Subscribe 新建一条订阅
func (b *Broadcaster) Subscribe() *Subscription {
	sub := &Subscription{
		ch:    make(chan event.ChatEvent, b.bufSize),
		owner: b,
	}

	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	return sub
}

// Send 向所有订阅者投递事件，任何一个慢订阅者都不会阻塞投递
func (b *Broadcaster) Send(evt event.ChatEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subs {
		select {
		case sub.ch <- evt:
		default:
			// 缓冲写满：丢弃本条并记账，订阅者随后会收到滞后信号
			atomic.AddInt64(&sub.dropped, 1)
		}
	}
}

// SubscriberCount 当前订阅数
func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (b *Broadcaster) unsubscribe(sub *Subscription) {
	b.mu.Lock()
	delete(b.subs, sub)
	b.mu.Unlock()
}

// Events 订阅的事件通道
func (s *Subscription) Events() <-chan event.ChatEvent {
	return s.ch
}

// TakeLag 取出并清零滞后计数，大于 0 说明订阅者掉队过
func (s *Subscription) TakeLag() int64 {
	return atomic.SwapInt64(&s.dropped, 0)
}

// Close 关闭订阅，只影响自己，同一接收者的其他连接不受影响
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.owner.unsubscribe(s)
	})
}
