package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chatnotify/internal/config"
	"chatnotify/internal/fanout"
	"chatnotify/internal/handler"
	"chatnotify/internal/infrastructure/cache"
)

func main() {
	// 加载配置
	cfg := config.LoadConfig("config/config.yaml")

	// 初始化 Redis
	redisClient := cache.InitRedis(&cfg.Redis)

	// 创建上下文（用于优雅关闭）
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 接收者注册表 + 进程唯一的广播订阅者
	registry := fanout.NewRegistry(cfg.Fanout.BufferSize)

	consumer := fanout.NewConsumer(redisClient, registry, cfg.Dispatcher.PublishChannel)
	go consumer.Start(ctx)

	// 设置路由
	router := handler.SetupNotifyRouter(registry, cfg)

	// 启动 HTTP 服务
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.NotifyPort),
		Handler: router,
	}

	// 在 goroutine 中启动服务器
	go func() {
		log.Printf("推送服务启动，监听端口: %d", cfg.Server.NotifyPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("服务启动失败: %v", err)
		}
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("正在关闭服务...")

	// 取消上下文，停止广播订阅
	cancel()

	// 关闭 HTTP 服务（等待最多5秒，在线的 SSE 连接随之断开）
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("服务关闭异常: %v", err)
	}

	log.Println("服务已关闭")
}
