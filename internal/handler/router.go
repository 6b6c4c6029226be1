package handler

import (
	"chatnotify/internal/config"
	"chatnotify/internal/fanout"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// SetupChatRouter 配置业务服务路由
func SetupChatRouter(db *gorm.DB, cfg *config.Config) *gin.Engine {
	// 设置 gin 为发布模式（减少日志输出）
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// 注册中间件
	r.Use(RecoveryMiddleware())
	r.Use(LoggerMiddleware())
	r.Use(CORSMiddleware())

	// 创建处理器
	h := NewHandler(db, cfg)

	// API 路由组
	api := r.Group("/api/v1")
	{
		// 用户相关（无需认证）
		user := api.Group("/user")
		{
			user.POST("/signup", h.Signup)
			user.POST("/signin", h.Signin)
		}

		// 以下接口需要认证
		authed := api.Group("")
		authed.Use(AuthMiddleware(cfg.Auth.JWTSecret))
		{
			// 工作空间相关
			workspace := authed.Group("/workspace")
			{
				workspace.POST("/create", h.CreateWorkspace)
				workspace.GET("/list", h.ListWorkspaces)
			}

			// 聊天室相关
			chat := authed.Group("/chat")
			{
				chat.POST("/create", h.CreateChat)
				chat.POST("/delete", h.DeleteChat)
				chat.GET("/list", h.ListChats)
				chat.GET("/members", h.GetChatMembers)
				chat.POST("/members/add", h.AddChatMembers)
				chat.POST("/members/remove", h.RemoveChatMembers)
			}

			// 消息相关
			message := authed.Group("/message")
			{
				message.POST("/send", h.SendMessage)
				message.GET("/list", h.ListMessages)
			}
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}

// SetupNotifyRouter 配置实时推送服务路由
func SetupNotifyRouter(registry *fanout.Registry, cfg *config.Config) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	r.Use(RecoveryMiddleware())
	r.Use(LoggerMiddleware())
	r.Use(CORSMiddleware())

	sse := NewSSEHandler(registry, cfg.Fanout.Heartbeat())

	// 实时事件流（一个认证用户一条长连接）
	r.GET("/events", AuthMiddleware(cfg.Auth.JWTSecret), sse.Stream)

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
