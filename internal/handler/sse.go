package handler

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"chatnotify/internal/event"
	"chatnotify/internal/fanout"

	"github.com/gin-gonic/gin"
)

// SSEHandler 订阅会话：一条长连接对应一个已认证用户，
// 订阅该用户的多播通道并把事件逐条推给客户端。
// 连接建立后只收新事件，不回放历史——历史走消息列表接口。
type SSEHandler struct {
	registry  *fanout.Registry
	heartbeat time.Duration
}

func NewSSEHandler(registry *fanout.Registry, heartbeat time.Duration) *SSEHandler {
	return &SSEHandler{
		registry:  registry,
		heartbeat: heartbeat,
	}
}

// Stream 实时事件流
// GET /events
func (h *SSEHandler) Stream(c *gin.Context) {
	userID := CurrentUserID(c)

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.String(http.StatusInternalServerError, "streaming unsupported")
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	// 订阅（或创建）该用户的多播通道；断开时只释放自己这条订阅
	sub := h.registry.GetOrCreate(userID).Subscribe()
	defer sub.Close()

	log.Printf("[SSE] 用户 %d 已订阅", userID)
	defer log.Printf("[SSE] 用户 %d 已断开", userID)

	// 心跳独立于事件流量，保证中间代理不掐断空闲连接
	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-sub.Events():
			// 掉队过就先推滞后信号，客户端据此走补偿读取路径
			if missed := sub.TakeLag(); missed > 0 {
				if err := writeFrame(c, flusher, "Lag", fmt.Sprintf(`{"missed":%d}`, missed)); err != nil {
					return
				}
			}
			payload, err := event.Marshal(evt)
			if err != nil {
				log.Printf("[SSE] 序列化事件失败: %v", err)
				continue
			}
			if err := writeFrame(c, flusher, evt.Kind(), string(payload)); err != nil {
				return
			}
		case <-heartbeat.C:
			if _, err := fmt.Fprint(c.Writer, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// writeFrame 写一个带事件名的 SSE 帧
func writeFrame(c *gin.Context, flusher http.Flusher, name, data string) error {
	if _, err := fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", name, data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
