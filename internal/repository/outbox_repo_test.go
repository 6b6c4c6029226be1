package repository

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"chatnotify/internal/model"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	// 内存库每个连接各自独立，限制为单连接保证看到同一份数据
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&model.User{},
		&model.Workspace{},
		&model.Chat{},
		&model.ChatMember{},
		&model.Message{},
		&model.OutboxMessage{},
	))
	return db
}

func TestCreateAndGetDue(t *testing.T) {
	db := newTestDB(t)
	repo := NewOutboxRepository(db)
	ctx := context.Background()

	// 新消息默认 pending 且立即到期
	due := &model.OutboxMessage{ChatID: 1, Payload: `{"ChatCreate":{}}`}
	require.NoError(t, repo.Create(ctx, nil, due))
	assert.Equal(t, model.OutboxStatusPending, due.SendStatus)

	// 重试时间在未来的不到期
	future := &model.OutboxMessage{
		ChatID:        1,
		Payload:       `{"ChatDrop":{}}`,
		SendStatus:    model.OutboxStatusFailed,
		NextRetryTime: time.Now().Add(5 * time.Minute),
	}
	require.NoError(t, repo.Create(ctx, nil, future))

	// 已成功的不再参与调度
	done := &model.OutboxMessage{
		ChatID:        1,
		Payload:       `{"UserJoin":{}}`,
		SendStatus:    model.OutboxStatusSuccess,
		NextRetryTime: time.Now().Add(-time.Minute),
	}
	require.NoError(t, repo.Create(ctx, nil, done))

	got, err := repo.GetDue(ctx, time.Now())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, due.ID, got[0].ID)

	// failed 到期后同样会被捞出
	future2, err := repo.GetDue(ctx, time.Now().Add(10*time.Minute))
	require.NoError(t, err)
	assert.Len(t, future2, 2)
}

func TestMarkSuccess(t *testing.T) {
	db := newTestDB(t)
	repo := NewOutboxRepository(db)
	ctx := context.Background()

	msg := &model.OutboxMessage{ChatID: 1, Payload: `{"MessageSend":{}}`}
	require.NoError(t, repo.Create(ctx, nil, msg))

	sentAt := time.Now()
	err := repo.MarkSuccess(ctx, []model.OutboxSendSuccess{
		{ID: msg.ID, SendSuccessTime: sentAt},
		{ID: 99999, SendSuccessTime: sentAt}, // 不存在的ID静默跳过
	})
	require.NoError(t, err)

	var got model.OutboxMessage
	require.NoError(t, db.First(&got, msg.ID).Error)
	assert.Equal(t, model.OutboxStatusSuccess, got.SendStatus)
	require.NotNil(t, got.SendSuccessTime)
	assert.WithinDuration(t, sentAt, *got.SendSuccessTime, time.Second)
	assert.Equal(t, 0, got.RetryCount)
}

func TestMarkFailed(t *testing.T) {
	db := newTestDB(t)
	repo := NewOutboxRepository(db)
	ctx := context.Background()

	msg := &model.OutboxMessage{ChatID: 1, Payload: `{"MessageSend":{}}`}
	require.NoError(t, repo.Create(ctx, nil, msg))

	now := time.Now()
	fail := model.OutboxSendFail{
		ID:             msg.ID,
		LastRetryTime:  now,
		SendFailReason: "连接被拒绝",
		NextRetryTime:  now.Add(5 * time.Minute),
	}
	require.NoError(t, repo.MarkFailed(ctx, []model.OutboxSendFail{fail}))

	var got model.OutboxMessage
	require.NoError(t, db.First(&got, msg.ID).Error)
	assert.Equal(t, model.OutboxStatusFailed, got.SendStatus)
	assert.Equal(t, 1, got.RetryCount)
	require.NotNil(t, got.SendFailReason)
	assert.Equal(t, "连接被拒绝", *got.SendFailReason)
	require.NotNil(t, got.LastRetryTime)
	assert.WithinDuration(t, now.Add(5*time.Minute), got.NextRetryTime, time.Second)

	// 再次失败：重试次数累加
	require.NoError(t, repo.MarkFailed(ctx, []model.OutboxSendFail{fail}))
	require.NoError(t, db.First(&got, msg.ID).Error)
	assert.Equal(t, 2, got.RetryCount)
}

func TestMarkEmptyBatchIsNoop(t *testing.T) {
	db := newTestDB(t)
	repo := NewOutboxRepository(db)
	ctx := context.Background()

	assert.NoError(t, repo.MarkSuccess(ctx, nil))
	assert.NoError(t, repo.MarkFailed(ctx, nil))
}

func TestMinSuccessIDAndDeleteSuccessBefore(t *testing.T) {
	db := newTestDB(t)
	repo := NewOutboxRepository(db)
	ctx := context.Background()

	// 没有成功记录时返回 0
	minID, err := repo.MinSuccessID(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), minID)

	old := time.Now().Add(-72 * time.Hour)
	recent := time.Now()

	// 三条成功（两条过期、一条新）+ 一条 pending
	var ids []int64
	for _, sentAt := range []time.Time{old, old.Add(time.Hour), recent} {
		at := sentAt
		msg := &model.OutboxMessage{
			ChatID:          1,
			Payload:         `{"MessageSend":{}}`,
			SendStatus:      model.OutboxStatusSuccess,
			NextRetryTime:   time.Now(),
			SendSuccessTime: &at,
		}
		require.NoError(t, repo.Create(ctx, nil, msg))
		ids = append(ids, msg.ID)
	}
	pending := &model.OutboxMessage{ChatID: 1, Payload: `{"ChatCreate":{}}`}
	require.NoError(t, repo.Create(ctx, nil, pending))

	minID, err = repo.MinSuccessID(ctx)
	require.NoError(t, err)
	assert.Equal(t, ids[0], minID)

	// 只删过期的成功记录，pending 和新近成功的保留
	deleted, err := repo.DeleteSuccessBefore(ctx, minID, time.Now().Add(-24*time.Hour), 100)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	var remain int64
	require.NoError(t, db.Model(&model.OutboxMessage{}).Count(&remain).Error)
	assert.Equal(t, int64(2), remain)

	var kept model.OutboxMessage
	require.NoError(t, db.First(&kept, ids[2]).Error)
	assert.Equal(t, model.OutboxStatusSuccess, kept.SendStatus)
}

func TestDeleteSuccessBeforeRespectsLimit(t *testing.T) {
	db := newTestDB(t)
	repo := NewOutboxRepository(db)
	ctx := context.Background()

	old := time.Now().Add(-72 * time.Hour)
	for i := 0; i < 5; i++ {
		at := old
		msg := &model.OutboxMessage{
			ChatID:          1,
			Payload:         `{"MessageSend":{}}`,
			SendStatus:      model.OutboxStatusSuccess,
			NextRetryTime:   time.Now(),
			SendSuccessTime: &at,
		}
		require.NoError(t, repo.Create(ctx, nil, msg))
	}

	deleted, err := repo.DeleteSuccessBefore(ctx, 0, time.Now().Add(-24*time.Hour), 2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	deleted, err = repo.DeleteSuccessBefore(ctx, 0, time.Now().Add(-24*time.Hour), 100)
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)
}
