package event

import (
	"encoding/json"
	"fmt"
)

// ============================================================================
// 聊天领域事件
// ============================================================================
//
// 事件集合是封闭的：ChatCreate / ChatDrop / UserJoin / UserLeave / MessageSend。
// 通过非导出的 isChatEvent 方法封闭接口，新增事件种类必须修改本包，
// 消费端的 type switch 对未知类型一律返回错误，而不是靠字符串分支兜底。
//
// 线上格式为外部标签包装：{"MessageSend": {...}}，与既有订阅端兼容。
//
// 每个事件携带 members 列表，这是权威的投递名单，按事件生效【之前】的
// 聊天室成员计算（例如退出事件仍要通知退出者本人和剩余成员），
// 消费端不允许再去重新加载当前成员。
// ============================================================================

const (
	KindChatCreate  = "ChatCreate"
	KindChatDrop    = "ChatDrop"
	KindUserJoin    = "UserJoin"
	KindUserLeave   = "UserLeave"
	KindMessageSend = "MessageSend"
)

// ChatEvent 封闭的事件联合类型
type ChatEvent interface {
	// Kind 事件种类标签，同时作为 SSE 的事件名
	Kind() string
	// Recipients 权威投递名单
	Recipients() []int64

	isChatEvent()
}

// ChatCreate 聊天室创建
type ChatCreate struct {
	ChatID  int64   `json:"chat_id"`
	Title   string  `json:"title"`
	Type    string  `json:"type"`
	Members []int64 `json:"members"`
}

// ChatDrop 聊天室解散（members 为解散前的成员）
type ChatDrop struct {
	ChatID  int64   `json:"chat_id"`
	Title   string  `json:"title"`
	Type    string  `json:"type"`
	Members []int64 `json:"members"`
}

// UserJoin 成员加入（members 为加入前的成员加上加入者本人）
type UserJoin struct {
	ChatID  int64   `json:"chat_id"`
	Title   string  `json:"title"`
	Members []int64 `json:"members"`
	UserID  int64   `json:"user_id"`
}

// UserLeave 成员退出（members 为退出前的成员，包含退出者本人）
type UserLeave struct {
	ChatID  int64   `json:"chat_id"`
	Title   string  `json:"title"`
	Members []int64 `json:"members"`
	UserID  int64   `json:"user_id"`
}

// MessageSend 消息发送
type MessageSend struct {
	MessageID   int64    `json:"message_id"`
	ChatID      int64    `json:"chat_id"`
	SenderID    int64    `json:"sender_id"`
	Content     string   `json:"content"`
	Members     []int64  `json:"members"`
	Attachments []string `json:"attachments,omitempty"`
}

func (ChatCreate) Kind() string  { return KindChatCreate }
func (ChatDrop) Kind() string    { return KindChatDrop }
func (UserJoin) Kind() string    { return KindUserJoin }
func (UserLeave) Kind() string   { return KindUserLeave }
func (MessageSend) Kind() string { return KindMessageSend }

func (e ChatCreate) Recipients() []int64  { return e.Members }
func (e ChatDrop) Recipients() []int64    { return e.Members }
func (e UserJoin) Recipients() []int64    { return e.Members }
func (e UserLeave) Recipients() []int64   { return e.Members }
func (e MessageSend) Recipients() []int64 { return e.Members }

func (ChatCreate) isChatEvent()  {}
func (ChatDrop) isChatEvent()    {}
func (UserJoin) isChatEvent()    {}
func (UserLeave) isChatEvent()   {}
func (MessageSend) isChatEvent() {}

// Marshal 按外部标签格式编码事件
func Marshal(e ChatEvent) ([]byte, error) {
	if e == nil {
		return nil, fmt.Errorf("事件为空")
	}
	return json.Marshal(map[string]ChatEvent{e.Kind(): e})
}

// Unmarshal 解码外部标签格式的事件，未知标签返回错误
func Unmarshal(data []byte) (ChatEvent, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("解析事件包装失败: %w", err)
	}
	if len(envelope) != 1 {
		return nil, fmt.Errorf("事件包装必须恰好包含一个标签, 实际 %d 个", len(envelope))
	}

	for kind, raw := range envelope {
		switch kind {
		case KindChatCreate:
			var e ChatCreate
			if err := json.Unmarshal(raw, &e); err != nil {
				return nil, fmt.Errorf("解析 %s 事件失败: %w", kind, err)
			}
			return e, nil
		case KindChatDrop:
			var e ChatDrop
			if err := json.Unmarshal(raw, &e); err != nil {
				return nil, fmt.Errorf("解析 %s 事件失败: %w", kind, err)
			}
			return e, nil
		case KindUserJoin:
			var e UserJoin
			if err := json.Unmarshal(raw, &e); err != nil {
				return nil, fmt.Errorf("解析 %s 事件失败: %w", kind, err)
			}
			return e, nil
		case KindUserLeave:
			var e UserLeave
			if err := json.Unmarshal(raw, &e); err != nil {
				return nil, fmt.Errorf("解析 %s 事件失败: %w", kind, err)
			}
			return e, nil
		case KindMessageSend:
			var e MessageSend
			if err := json.Unmarshal(raw, &e); err != nil {
				return nil, fmt.Errorf("解析 %s 事件失败: %w", kind, err)
			}
			return e, nil
		default:
			return nil, fmt.Errorf("未知的事件标签: %q", kind)
		}
	}

	// len(envelope) == 1 时不可达
	return nil, fmt.Errorf("空事件包装")
}
