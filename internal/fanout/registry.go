package fanout

import (
	"sync"

	"chatnotify/internal/event"
)

const shardCount = 32

// Registry 接收者ID -> 多播通道的并发映射。
// 按ID分片加锁，订阅端大量并发连接和广播端单一消费流互不拖累，
// 不同接收者之间不共享任何一把锁。
//
// 通道建立后不回收（订阅数归零也保留），与源系统行为一致；
// 长期运行的部署可通过 Len() 观察增长。
type Registry struct {
	shards  [shardCount]registryShard
	bufSize int
}

type registryShard struct {
	mu       sync.RWMutex
	channels map[int64]*Broadcaster
}

func NewRegistry(bufSize int) *Registry {
	r := &Registry{bufSize: bufSize}
	for i := range r.shards {
		r.shards[i].channels = make(map[int64]*Broadcaster)
	}
	return r
}

func (r *Registry) shardFor(userID int64) *registryShard {
	return &r.shards[uint64(userID)%shardCount]
}

// GetOrCreate 返回接收者的多播通道，不存在则原子创建；
// 并发调用同一ID只会创建一个，后到者拿到先建好的
func (r *Registry) GetOrCreate(userID int64) *Broadcaster {
	shard := r.shardFor(userID)

	shard.mu.RLock()
	b, ok := shard.channels[userID]
	shard.mu.RUnlock()
	if ok {
		return b
	}

	shard.mu.Lock()
	defer shard.mu.Unlock()
	// 双重检查：抢写锁期间可能已被并发创建
	if b, ok := shard.channels[userID]; ok {
		return b
	}
	b = NewBroadcaster(r.bufSize)
	shard.channels[userID] = b
	return b
}

// Lookup 只查不建
func (r *Registry) Lookup(userID int64) (*Broadcaster, bool) {
	shard := r.shardFor(userID)
	shard.mu.RLock()
	defer shard.mu.RUnlock()
	b, ok := shard.channels[userID]
	return b, ok
}

// Broadcast 把事件投递给名单中所有在线的接收者。
// 没有通道的接收者直接跳过——实时层是尽力投递，持久层才是事实来源
func (r *Registry) Broadcast(userIDs []int64, evt event.ChatEvent) {
	for _, userID := range userIDs {
		if b, ok := r.Lookup(userID); ok {
			b.Send(evt)
		}
	}
}

// Len 已创建的通道总数
func (r *Registry) Len() int {
	total := 0
	for i := range r.shards {
		r.shards[i].mu.RLock()
		total += len(r.shards[i].channels)
		r.shards[i].mu.RUnlock()
	}
	return total
}
