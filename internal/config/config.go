// Package config は環境変数から設定を読み込み、アプリケーション全体で使用する設定を提供します。
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config はアプリケーションの設定を保持する構造体です。
type Config struct {
	// サーバー設定
	Port    string // APIサーバーのポート番号
	GinMode string // Ginの実行モード (debug, release, test)

	// CORS設定
	CORSAllowedOrigins string // CORS許可オリジン（カンマ区切り）

	// データベース設定
	DatabaseURL      string // Postgres接続文字列
	DatabaseMaxConns int    // コネクションプールの上限

	// セッション設定
	SessionRedisURL   string // セッション保存用Redis接続URL
	SessionSecret     string // セッションCookie署名用の秘密鍵
	SessionTTLMinutes int    // セッションの有効期限（分）

	// 認証設定
	BcryptCost int // bcryptのコストパラメータ（0以下でライブラリ既定値）

	// カタログ設定
	CatalogScope string // 一覧の公開範囲 ("all": 全員共有, "owner": 所有者のみ)

	// ポスター画像設定
	DataDir       string // ポスター・エクスポート成果物の保存先ディレクトリ
	MaxPosterSize int64  // ポスター画像の最大サイズ（バイト）

	// エクスポート/キュー設定
	QueueRedisURL         string // Asynq用Redis接続URL
	JobExpireMinutes      int    // エクスポートジョブの有効期限（分）
	AsyncThresholdRecords int    // 同期処理から非同期へ切り替える件数閾値
	ExportResultBaseURL   string // 成果物取得用のベースURL（署名URL等を生成する場合に使用）
}

// 一覧公開範囲の設定値です。
const (
	CatalogScopeAll   = "all"
	CatalogScopeOwner = "owner"
)

// Load は環境変数から設定を読み込みます。
// .env.local ファイルが存在する場合はそこから読み込みます。
func Load() (*Config, error) {
	// .env.local ファイルを読み込む（存在しない場合はスキップ）
	loadEnvFile()

	config := &Config{
		// サーバー設定
		Port:    getEnv("PORT", "3000"),
		GinMode: getEnv("GIN_MODE", "debug"),

		// CORS設定
		CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),

		// データベース設定
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		DatabaseMaxConns: getEnvAsInt("DATABASE_MAX_CONNS", 10),

		// セッション設定
		SessionRedisURL:   getEnv("SESSION_REDIS_URL", "redis://127.0.0.1:6379/0"),
		SessionSecret:     getEnv("SESSION_SECRET", ""),
		SessionTTLMinutes: getEnvAsInt("SESSION_TTL_MINUTES", 720), // 12時間

		// 認証設定
		BcryptCost: getEnvAsInt("BCRYPT_COST", 0),

		// カタログ設定
		CatalogScope: getEnv("CATALOG_SCOPE", CatalogScopeAll),

		// ポスター画像設定
		DataDir:       getEnv("DATA_DIR", filepath.Join(os.TempDir(), "movie-catalog")),
		MaxPosterSize: getEnvAsInt64("MAX_POSTER_SIZE", 5*1024*1024), // 5MB

		// エクスポート/キュー設定
		QueueRedisURL:         getEnv("QUEUE_REDIS_URL", "redis://127.0.0.1:6379/1"),
		JobExpireMinutes:      getEnvAsInt("JOB_EXPIRE_MINUTES", 30),
		AsyncThresholdRecords: getEnvAsInt("ASYNC_THRESHOLD_RECORDS", 500),
		ExportResultBaseURL:   getEnv("EXPORT_RESULT_BASE_URL", ""),
	}

	// 必須設定のバリデーション
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func loadEnvFile() {
	if err := godotenv.Load(".env.local"); err == nil {
		return
	}

	cwd, err := os.Getwd()
	if err != nil {
		return
	}

	parent := filepath.Dir(cwd)
	if parent == "" || parent == cwd {
		return
	}

	_ = godotenv.Load(filepath.Join(parent, ".env.local"))
}

// Validate は設定の妥当性を検証します。
func (c *Config) Validate() error {
	if c.CatalogScope != CatalogScopeAll && c.CatalogScope != CatalogScopeOwner {
		return fmt.Errorf("CATALOG_SCOPE must be %q or %q", CatalogScopeAll, CatalogScopeOwner)
	}

	// ローカル開発では一部設定は任意
	// 本番環境では厳格にチェックする想定
	if c.GinMode == "release" {
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required in release mode")
		}
		if c.SessionSecret == "" {
			return fmt.Errorf("SESSION_SECRET is required in release mode")
		}
		if c.SessionRedisURL == "" {
			return fmt.Errorf("SESSION_REDIS_URL is required in release mode")
		}
		if c.QueueRedisURL == "" {
			return fmt.Errorf("QUEUE_REDIS_URL is required in release mode")
		}
	}

	return nil
}

// getEnv は環境変数を取得し、存在しない場合はデフォルト値を返します。
func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt は環境変数を整数として取得します。
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsInt64 は環境変数を64ビット整数として取得します。
func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}
	return value
}
