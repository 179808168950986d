// Package main はAPIサーバーのエントリーポイントです。
package main

import (
	"context"
	"log"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/Jaysandjay/ModernWebFinal/internal/auth"
	"github.com/Jaysandjay/ModernWebFinal/internal/config"
	"github.com/Jaysandjay/ModernWebFinal/internal/export"
	"github.com/Jaysandjay/ModernWebFinal/internal/jobs"
	"github.com/Jaysandjay/ModernWebFinal/internal/movie"
	"github.com/Jaysandjay/ModernWebFinal/internal/session"
	"github.com/Jaysandjay/ModernWebFinal/internal/storage"
)

func main() {
	// 設定の読み込み
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Ginのモードを設定
	gin.SetMode(cfg.GinMode)

	logger := log.Default()

	// データベース接続とマイグレーション
	db, err := openDatabase(cfg)
	if err != nil {
		log.Fatalf("Failed to connect database: %v", err)
	}

	userStore := auth.NewGormUserStore(db)
	if err := userStore.Migrate(); err != nil {
		log.Fatalf("Failed to migrate users: %v", err)
	}
	movieStore := movie.NewGormStore(db)
	if err := movieStore.Migrate(); err != nil {
		log.Fatalf("Failed to migrate movies: %v", err)
	}

	// セッション用Redis
	sessionOpt, err := redis.ParseURL(cfg.SessionRedisURL)
	if err != nil {
		log.Fatalf("Failed to parse SESSION_REDIS_URL: %v", err)
	}
	sessionRedis := redis.NewClient(sessionOpt)

	sessionStore, err := session.NewStore(
		sessionRedis,
		cfg.SessionSecret,
		time.Duration(cfg.SessionTTLMinutes)*time.Minute,
		cfg.GinMode == gin.ReleaseMode,
	)
	if err != nil {
		log.Fatalf("Failed to create session store: %v", err)
	}

	// 認証サービス
	authService, err := auth.NewService(userStore, auth.NewBcryptHasher(cfg.BcryptCost), logger)
	if err != nil {
		log.Fatalf("Failed to create auth service: %v", err)
	}
	authHandler := auth.NewHandler(authService, sessionStore)

	// 映画カタログ
	movieService, err := movie.NewService(movieStore, cfg.CatalogScope, logger)
	if err != nil {
		log.Fatalf("Failed to create movie service: %v", err)
	}
	posterStorage, err := storage.NewLocal(cfg.DataDir)
	if err != nil {
		log.Fatalf("Failed to create storage: %v", err)
	}

	// エクスポート
	exportService, err := export.NewService(movieService, filepath.Join(cfg.DataDir, "exports"))
	if err != nil {
		log.Fatalf("Failed to create export service: %v", err)
	}

	queueOpt, err := redis.ParseURL(cfg.QueueRedisURL)
	if err != nil {
		log.Fatalf("Failed to parse QUEUE_REDIS_URL: %v", err)
	}
	jobStore := jobs.NewStore(redis.NewClient(queueOpt), time.Duration(cfg.JobExpireMinutes)*time.Minute)

	jobManager, err := jobs.NewManager(cfg, exportService, jobStore, logger)
	if err != nil {
		log.Fatalf("Failed to create job manager: %v", err)
	}
	jobManager.StartWorkers()

	// Ginルーターの初期化（デフォルトミドルウェア: Logger, Recovery）
	router := gin.Default()

	// CORSミドルウェアの設定
	corsConfig := cors.DefaultConfig()
	// CORS許可オリジンを設定（カンマ区切りの文字列を配列に変換）
	origins := strings.Split(cfg.CORSAllowedOrigins, ",")
	corsConfig.AllowOrigins = origins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{
		"Origin",
		"Content-Type",
		"Accept",
		"Authorization",
		"X-CSRF-Token", // CSRF保護用ヘッダー
	}
	// フロントエンドがレスポンスヘッダーから CSRF トークンを読み取れるように公開
	corsConfig.ExposeHeaders = []string{"X-CSRF-Token"}
	router.Use(cors.New(corsConfig))

	// ルーティングの設定
	deps := &routeDeps{
		cfg:           cfg,
		sessions:      sessionStore,
		authHandler:   authHandler,
		movieService:  movieService,
		posterStorage: posterStorage,
		exportService: exportService,
		jobManager:    jobManager,
	}
	setupRoutes(router, deps)

	// サーバーの起動
	addr := ":" + cfg.Port
	log.Printf("Starting API server on %s (mode: %s)", addr, cfg.GinMode)
	if err := router.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// openDatabase は Postgres に接続し、コネクションプールを設定します。
func openDatabase(cfg *config.Config) (*gorm.DB, error) {
	// 一意制約違反などを gorm.ErrDuplicatedKey に正規化する
	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(cfg.DatabaseMaxConns)
	sqlDB.SetMaxIdleConns(cfg.DatabaseMaxConns / 2)
	sqlDB.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, err
	}
	return db, nil
}

// handleHealth はヘルスチェックエンドポイントのハンドラーです。
func handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "movie-catalog-api",
		"version": "0.1.0",
	})
}

type routeDeps struct {
	cfg           *config.Config
	sessions      *session.Store
	authHandler   *auth.Handler
	movieService  *movie.Service
	posterStorage storage.Storage
	exportService *export.Service
	jobManager    *jobs.Manager
}

// setupRoutes は API グループと認証周りの配線を行います。
func setupRoutes(router *gin.Engine, deps *routeDeps) {
	// まずは誰でも叩けるヘルスチェックを登録
	router.GET("/health", handleHealth)

	api := router.Group("/api")
	{
		authRoutes := api.Group("/auth")
		{
			// 登録・ログイン時はセッション未生成なので CSRF 検証は不要
			authRoutes.POST("/register", deps.authHandler.Register)
			authRoutes.POST("/login", deps.authHandler.Login)
			authRoutes.POST("/logout",
				session.RequireLogin(deps.sessions),
				session.VerifyCSRF(),
				deps.authHandler.Logout,
			)
		}

		movies := api.Group("/movies")
		// VerifyCSRF は安全なメソッド（GET等）を素通しする
		movies.Use(session.RequireLogin(deps.sessions), session.VerifyCSRF())
		{
			movies.GET("", movie.ListHandler(deps.movieService))
			movies.POST("", movie.CreateHandler(deps.movieService))
			movies.GET("/:id", movie.GetHandler(deps.movieService))
			movies.GET("/:id/poster", movie.PosterHandler(deps.movieService, deps.posterStorage))

			// 変更系は所有者のみ
			owned := movies.Group("")
			owned.Use(movie.RequireOwner(deps.movieService))
			{
				owned.PUT("/:id", movie.UpdateHandler(deps.movieService))
				owned.DELETE("/:id", movie.DeleteHandler(deps.movieService))
				owned.POST("/:id/poster", movie.UploadPosterHandler(deps.movieService, deps.posterStorage, deps.cfg.MaxPosterSize))
			}
		}

		exports := api.Group("/exports")
		exports.Use(session.RequireLogin(deps.sessions), session.VerifyCSRF())
		{
			exports.POST("", createExportHandler(deps))
			exports.GET("/:id", exportStatusHandler(deps))
			exports.GET("/:id/download", exportDownloadHandler(deps))
		}
	}
}
