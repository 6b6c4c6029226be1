package handler

import (
	"errors"
	"strconv"

	"chatnotify/internal/config"
	"chatnotify/internal/repository"
	"chatnotify/internal/service"
	"chatnotify/pkg/response"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Handler 统一处理器，包含所有服务依赖
type Handler struct {
	userService      *service.UserService
	workspaceService *service.WorkspaceService
	chatService      *service.ChatService
	messageService   *service.MessageService
}

// NewHandler 创建处理器实例
func NewHandler(db *gorm.DB, cfg *config.Config) *Handler {
	return &Handler{
		userService:      service.NewUserService(db, cfg),
		workspaceService: service.NewWorkspaceService(db),
		chatService:      service.NewChatService(db),
		messageService:   service.NewMessageService(db),
	}
}

// ============================================================
// 用户相关接口
// ============================================================

// SignupRequest 注册请求（password_hash 由外部认证层生成）
type SignupRequest struct {
	Fullname     string `json:"fullname" binding:"required"`
	Email        string `json:"email" binding:"required,email"`
	PasswordHash string `json:"password_hash" binding:"required"`
}

// Signup 注册
// POST /api/v1/user/signup
func (h *Handler) Signup(c *gin.Context) {
	var req SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	user, err := h.userService.Signup(c.Request.Context(), req.Fullname, req.Email, req.PasswordHash)
	if err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			response.BusinessError(c, response.CodeEmailTaken, err.Error())
			return
		}
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, gin.H{
		"id":       user.ID,
		"fullname": user.Fullname,
		"email":    user.Email,
	})
}

// SigninRequest 登录请求
type SigninRequest struct {
	Email        string `json:"email" binding:"required,email"`
	PasswordHash string `json:"password_hash" binding:"required"`
}

// Signin 登录
// POST /api/v1/user/signin
func (h *Handler) Signin(c *gin.Context) {
	var req SigninRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	token, user, err := h.userService.Signin(c.Request.Context(), req.Email, req.PasswordHash)
	if err != nil {
		if errors.Is(err, service.ErrSigninFailed) {
			response.BusinessError(c, response.CodeSigninFailed, err.Error())
			return
		}
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, gin.H{
		"token":    token,
		"id":       user.ID,
		"fullname": user.Fullname,
	})
}

// ============================================================
// 工作空间相关接口
// ============================================================

// CreateWorkspaceRequest 创建工作空间请求
type CreateWorkspaceRequest struct {
	Name string `json:"name" binding:"required"`
}

// CreateWorkspace 创建工作空间
// POST /api/v1/workspace/create
func (h *Handler) CreateWorkspace(c *gin.Context) {
	var req CreateWorkspaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	ws, err := h.workspaceService.Create(c.Request.Context(), req.Name, CurrentUserID(c))
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, ws)
}

// ListWorkspaces 查询工作空间列表
// GET /api/v1/workspace/list
func (h *Handler) ListWorkspaces(c *gin.Context) {
	workspaces, err := h.workspaceService.ListByOwner(c.Request.Context(), CurrentUserID(c))
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, workspaces)
}

// ============================================================
// 聊天室相关接口
// ============================================================

// CreateChatRequest 创建聊天室请求
type CreateChatRequest struct {
	WorkspaceID int64   `json:"workspace_id" binding:"required"`
	Title       string  `json:"title" binding:"required"`
	Type        string  `json:"type" binding:"required"`
	Members     []int64 `json:"members" binding:"required"`
}

// CreateChat 创建聊天室
// POST /api/v1/chat/create
func (h *Handler) CreateChat(c *gin.Context) {
	var req CreateChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	chatID, err := h.chatService.Create(c.Request.Context(), req.WorkspaceID, req.Title, req.Type, req.Members)
	if err != nil {
		h.chatError(c, err)
		return
	}
	response.Success(c, gin.H{"chat_id": chatID})
}

// DeleteChatRequest 解散聊天室请求
type DeleteChatRequest struct {
	ChatID int64 `json:"chat_id" binding:"required"`
}

// DeleteChat 解散聊天室
// POST /api/v1/chat/delete
func (h *Handler) DeleteChat(c *gin.Context) {
	var req DeleteChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.chatService.Delete(c.Request.Context(), req.ChatID); err != nil {
		h.chatError(c, err)
		return
	}
	response.Success(c, nil)
}

// ListChats 查询当前用户加入的聊天室
// GET /api/v1/chat/list
func (h *Handler) ListChats(c *gin.Context) {
	chats, err := h.chatService.ListByUserID(c.Request.Context(), CurrentUserID(c))
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, chats)
}

// GetChatMembers 查询聊天室成员
// GET /api/v1/chat/members?chat_id=xxx
func (h *Handler) GetChatMembers(c *gin.Context) {
	chatID, err := strconv.ParseInt(c.Query("chat_id"), 10, 64)
	if err != nil {
		response.ParamError(c, "chat_id 参数错误")
		return
	}

	members, err := h.chatService.GetMembers(c.Request.Context(), chatID)
	if err != nil {
		h.chatError(c, err)
		return
	}
	response.Success(c, gin.H{"chat_id": chatID, "members": members})
}

// ChangeMembersRequest 成员变更请求
type ChangeMembersRequest struct {
	ChatID  int64   `json:"chat_id" binding:"required"`
	Members []int64 `json:"members" binding:"required"`
}

// AddChatMembers 添加聊天室成员
// POST /api/v1/chat/members/add
func (h *Handler) AddChatMembers(c *gin.Context) {
	var req ChangeMembersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.chatService.AddMembers(c.Request.Context(), req.ChatID, req.Members); err != nil {
		h.chatError(c, err)
		return
	}
	response.Success(c, nil)
}

// RemoveChatMembers 移除聊天室成员
// POST /api/v1/chat/members/remove
func (h *Handler) RemoveChatMembers(c *gin.Context) {
	var req ChangeMembersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.chatService.RemoveMembers(c.Request.Context(), req.ChatID, req.Members); err != nil {
		h.chatError(c, err)
		return
	}
	response.Success(c, nil)
}

// ============================================================
// 消息相关接口
// ============================================================

// SendMessageRequest 发送消息请求
type SendMessageRequest struct {
	ChatID      int64    `json:"chat_id" binding:"required"`
	Content     string   `json:"content" binding:"required"`
	Attachments []string `json:"attachments"`
}

// SendMessage 发送消息
// POST /api/v1/message/send
func (h *Handler) SendMessage(c *gin.Context) {
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	messageID, err := h.messageService.Send(c.Request.Context(), req.ChatID, CurrentUserID(c), req.Content, req.Attachments)
	if err != nil {
		if errors.Is(err, service.ErrNotChatMember) {
			response.BusinessError(c, response.CodeNotChatMember, err.Error())
			return
		}
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, gin.H{"message_id": messageID})
}

// ListMessages 查询最近消息（实时流掉队后的补偿读取路径）
// GET /api/v1/message/list?chat_id=xxx&start_message_id=xxx&limit=xxx
func (h *Handler) ListMessages(c *gin.Context) {
	chatID, err := strconv.ParseInt(c.Query("chat_id"), 10, 64)
	if err != nil {
		response.ParamError(c, "chat_id 参数错误")
		return
	}
	startMessageID, _ := strconv.ParseInt(c.DefaultQuery("start_message_id", "0"), 10, 64)
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	messages, err := h.messageService.Recent(c.Request.Context(), chatID, CurrentUserID(c), startMessageID, limit)
	if err != nil {
		if errors.Is(err, service.ErrNotChatMember) {
			response.BusinessError(c, response.CodeNotChatMember, err.Error())
			return
		}
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, messages)
}

// chatError 聊天室业务错误到响应码的映射
func (h *Handler) chatError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrChatNotFound):
		response.BusinessError(c, response.CodeChatNotFound, err.Error())
	case errors.Is(err, service.ErrChatMemberEmpty):
		response.BusinessError(c, response.CodeChatMemberEmpty, err.Error())
	case errors.Is(err, service.ErrUserIDInvalid):
		response.BusinessError(c, response.CodeUserNotFound, err.Error())
	default:
		response.ServerError(c, err.Error())
	}
}
