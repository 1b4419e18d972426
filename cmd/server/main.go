package main

import (
	"context"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/inkwell/internal/config"
	"github.com/inkwell/internal/db"
	"github.com/inkwell/internal/handler"
	"github.com/inkwell/internal/router"
	"github.com/inkwell/internal/service"
	"github.com/inkwell/internal/storage"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// .env 只在本地开发存在，线上直接用环境变量
	_ = godotenv.Load()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg := config.Load()
	gin.SetMode(cfg.GinMode)

	// 初始化数据库
	if err := db.Init(cfg.DatabasePath); err != nil {
		log.Fatal().Err(err).Msg("failed to initialize database")
	}
	if err := db.EnsureAdmin(cfg.AdminEmail, cfg.AdminPassword); err != nil {
		log.Fatal().Err(err).Msg("failed to ensure admin account")
	}

	images, err := storage.NewMinIOStorage(cfg.MinIO)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize image storage")
	}

	mailer := service.NewResendClient(cfg.ResendAPIKey, cfg.EmailFrom)

	api := handler.NewAPI(db.DB, images, mailer, cfg.SiteBaseURL)

	// 浏览去重台账没有原生 TTL，靠后台周期清理兑现保留窗口
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	api.Views().WithRetention(cfg.ViewRetention).StartSweeper(ctx, cfg.ViewSweepEvery)

	// 设置并运行 Gin 服务器
	r := router.SetupRouter(api, cfg.SessionSecret)
	if err := r.Run(cfg.ListenAddr); err != nil {
		log.Fatal().Err(err).Msg("failed to run server")
	}
}
