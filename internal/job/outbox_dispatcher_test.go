package job

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"chatnotify/internal/config"
	"chatnotify/internal/infrastructure/lock"
	"chatnotify/internal/infrastructure/mq"
	"chatnotify/internal/model"
	"chatnotify/internal/repository"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&model.OutboxMessage{}))
	return db
}

func newTestConfig() *config.Config {
	return &config.Config{
		Dispatcher: config.DispatcherConfig{
			IntervalMs:            1000,
			LockTTLSeconds:        30,
			RetryDelayMinutes:     5,
			PublishChannel:        "chat",
			PublishTimeoutSeconds: 1,
		},
		Retention: config.RetentionConfig{
			IntervalMinutes: 60,
			MaxAgeHours:     72,
			BatchLimit:      1000,
		},
	}
}

func newRedisClient(t *testing.T, addr string) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { client.Close() })
	return client
}

func TestDispatchCycleSuccess(t *testing.T) {
	db := newTestDB(t)
	mr := miniredis.RunT(t)
	client := newRedisClient(t, mr.Addr())
	cfg := newTestConfig()
	ctx := context.Background()

	// 先建好订阅，确认发布的内容真的到了频道上
	subClient := newRedisClient(t, mr.Addr())
	pubsub := subClient.Subscribe(ctx, cfg.Dispatcher.PublishChannel)
	defer pubsub.Close()
	_, err := pubsub.Receive(ctx)
	require.NoError(t, err)

	outboxRepo := repository.NewOutboxRepository(db)
	msg := &model.OutboxMessage{ChatID: 1, Payload: `{"ChatCreate":{"chat_id":1,"members":[1,2]}}`}
	require.NoError(t, outboxRepo.Create(ctx, nil, msg))

	publisher := mq.NewPublisher(client, cfg.Dispatcher.PublishChannel, cfg.Dispatcher.PublishTimeout())
	d := NewOutboxDispatcher(db, client, publisher, cfg)
	d.dispatchCycle(ctx)

	var got model.OutboxMessage
	require.NoError(t, db.First(&got, msg.ID).Error)
	assert.Equal(t, model.OutboxStatusSuccess, got.SendStatus)
	require.NotNil(t, got.SendSuccessTime)
	assert.Equal(t, 0, got.RetryCount)

	// 锁在周期结束后被释放
	assert.False(t, mr.Exists(lock.OutboxSendLockKey))

	select {
	case m := <-pubsub.Channel():
		assert.Equal(t, msg.Payload, m.Payload)
	case <-time.After(2 * time.Second):
		t.Fatal("订阅端未收到发布的消息")
	}
}

func TestDispatchCycleBrokerDown(t *testing.T) {
	db := newTestDB(t)
	mr := miniredis.RunT(t)
	lockClient := newRedisClient(t, mr.Addr())
	cfg := newTestConfig()
	ctx := context.Background()

	// 发布端指向一个已经下线的 broker，抢锁仍然走存活的实例
	deadMr := miniredis.RunT(t)
	deadClient := newRedisClient(t, deadMr.Addr())
	deadMr.Close()

	outboxRepo := repository.NewOutboxRepository(db)
	msg := &model.OutboxMessage{ChatID: 1, Payload: `{"MessageSend":{"chat_id":1}}`}
	require.NoError(t, outboxRepo.Create(ctx, nil, msg))

	publisher := mq.NewPublisher(deadClient, cfg.Dispatcher.PublishChannel, cfg.Dispatcher.PublishTimeout())
	d := NewOutboxDispatcher(db, lockClient, publisher, cfg)

	before := time.Now()
	d.dispatchCycle(ctx)

	var got model.OutboxMessage
	require.NoError(t, db.First(&got, msg.ID).Error)
	assert.Equal(t, model.OutboxStatusFailed, got.SendStatus)
	assert.Equal(t, 1, got.RetryCount)
	require.NotNil(t, got.SendFailReason)
	assert.NotEmpty(t, *got.SendFailReason)
	require.NotNil(t, got.LastRetryTime)

	// 下次重试时间 = 失败时刻 + 重试延迟
	assert.WithinDuration(t, before.Add(cfg.Dispatcher.RetryDelay()), got.NextRetryTime, 5*time.Second)

	// 失败的消息在重试时间到来之前不会被再次捞出
	due, err := outboxRepo.GetDue(ctx, time.Now())
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestDispatchCycleRetryToSuccess(t *testing.T) {
	db := newTestDB(t)
	mr := miniredis.RunT(t)
	client := newRedisClient(t, mr.Addr())
	cfg := newTestConfig()
	ctx := context.Background()

	// 一条已经失败过一次、重试时间已到的消息
	outboxRepo := repository.NewOutboxRepository(db)
	reason := "连接被拒绝"
	lastRetry := time.Now().Add(-5 * time.Minute)
	msg := &model.OutboxMessage{
		ChatID:         1,
		Payload:        `{"UserJoin":{"chat_id":1,"user_id":3}}`,
		SendStatus:     model.OutboxStatusFailed,
		RetryCount:     1,
		LastRetryTime:  &lastRetry,
		NextRetryTime:  time.Now().Add(-time.Second),
		SendFailReason: &reason,
	}
	require.NoError(t, outboxRepo.Create(ctx, nil, msg))

	publisher := mq.NewPublisher(client, cfg.Dispatcher.PublishChannel, cfg.Dispatcher.PublishTimeout())
	d := NewOutboxDispatcher(db, client, publisher, cfg)
	d.dispatchCycle(ctx)

	var got model.OutboxMessage
	require.NoError(t, db.First(&got, msg.ID).Error)
	assert.Equal(t, model.OutboxStatusSuccess, got.SendStatus)
	require.NotNil(t, got.SendSuccessTime)
	// 成功路径不碰重试计数
	assert.Equal(t, 1, got.RetryCount)
}

func TestDispatchCycleSkipsWhenLockHeld(t *testing.T) {
	db := newTestDB(t)
	mr := miniredis.RunT(t)
	client := newRedisClient(t, mr.Addr())
	cfg := newTestConfig()
	ctx := context.Background()

	// 另一个副本正持有调度锁
	other := lock.NewOutboxSendLock(client, 30*time.Second)
	acquired, err := other.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, acquired)

	outboxRepo := repository.NewOutboxRepository(db)
	msg := &model.OutboxMessage{ChatID: 1, Payload: `{"ChatDrop":{"chat_id":1}}`}
	require.NoError(t, outboxRepo.Create(ctx, nil, msg))

	publisher := mq.NewPublisher(client, cfg.Dispatcher.PublishChannel, cfg.Dispatcher.PublishTimeout())
	d := NewOutboxDispatcher(db, client, publisher, cfg)
	d.dispatchCycle(ctx)

	// 本轮什么都不做，消息原样保留，别人的锁也没被动过
	var got model.OutboxMessage
	require.NoError(t, db.First(&got, msg.ID).Error)
	assert.Equal(t, model.OutboxStatusPending, got.SendStatus)
	assert.Equal(t, 0, got.RetryCount)
	assert.True(t, mr.Exists(lock.OutboxSendLockKey))
}

func TestCleanerRemovesExpiredSuccess(t *testing.T) {
	db := newTestDB(t)
	cfg := newTestConfig()
	ctx := context.Background()

	outboxRepo := repository.NewOutboxRepository(db)

	old := time.Now().Add(-100 * time.Hour)
	expired := &model.OutboxMessage{
		ChatID:          1,
		Payload:         `{"MessageSend":{}}`,
		SendStatus:      model.OutboxStatusSuccess,
		NextRetryTime:   time.Now(),
		SendSuccessTime: &old,
	}
	require.NoError(t, outboxRepo.Create(ctx, nil, expired))

	recent := time.Now()
	fresh := &model.OutboxMessage{
		ChatID:          1,
		Payload:         `{"MessageSend":{}}`,
		SendStatus:      model.OutboxStatusSuccess,
		NextRetryTime:   time.Now(),
		SendSuccessTime: &recent,
	}
	require.NoError(t, outboxRepo.Create(ctx, nil, fresh))

	c := NewOutboxCleaner(db, cfg)
	c.cleanOnce(ctx)

	var remain []model.OutboxMessage
	require.NoError(t, db.Find(&remain).Error)
	require.Len(t, remain, 1)
	assert.Equal(t, fresh.ID, remain[0].ID)
}
