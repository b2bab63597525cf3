package composite

import (
	"fmt"
	"time"

	"github.com/nao1215/productcomposite/pkg/config"
)

// Config はproduct-compositeサービスの設定。
type Config struct {
	// Port はリッスンポート。
	Port string
	// ProductURL は製品サービスのベースURL。
	ProductURL string
	// RecommendationURL はレコメンデーションサービスのベースURL。
	RecommendationURL string
	// ReviewURL はレビューサービスのベースURL。
	ReviewURL string
	// Messaging はイベント配送の設定。
	Messaging config.Messaging
	// StreamMaxLen はRedis Streamsの概算最大長。
	StreamMaxLen int
	// PublishPoolSize はイベント発行のワーカー数。
	PublishPoolSize int
	// PublishQueueSize はイベント発行の待ち行列の長さ。
	PublishQueueSize int
	// DownstreamTimeout は下流サービスへのHTTPタイムアウト。
	DownstreamTimeout time.Duration
	// JWTSecret が設定されている場合、APIはBearerトークンを要求する。
	JWTSecret string
	// AllowedOrigins はCORSで許可するオリジン。
	AllowedOrigins []string
	// Logging はログ出力の設定。
	Logging config.Logging
}

// LoadConfig は環境変数から設定を読み込む。
func LoadConfig() Config {
	return Config{
		Port:              config.GetEnv("PORT", "7000"),
		ProductURL:        config.GetEnv("PRODUCT_SERVICE_URL", "http://localhost:7001"),
		RecommendationURL: config.GetEnv("RECOMMENDATION_SERVICE_URL", "http://localhost:7002"),
		ReviewURL:         config.GetEnv("REVIEW_SERVICE_URL", "http://localhost:7003"),
		Messaging:         config.LoadMessaging(),
		StreamMaxLen:      config.GetInt("STREAM_MAX_LEN", 100000),
		PublishPoolSize:   config.GetInt("PUBLISH_POOL_SIZE", 10),
		PublishQueueSize:  config.GetInt("PUBLISH_QUEUE_SIZE", 100),
		DownstreamTimeout: config.GetDuration("DOWNSTREAM_TIMEOUT", 30*time.Second),
		JWTSecret:         config.GetEnv("JWT_SECRET", ""),
		AllowedOrigins:    config.GetList("ALLOWED_ORIGINS", nil),
		Logging:           config.LoadLogging(),
	}
}

// Validate は設定値を検証する。
func (c Config) Validate() error {
	if c.PublishPoolSize <= 0 {
		return fmt.Errorf("PUBLISH_POOL_SIZEは正の整数でなければなりません: %d", c.PublishPoolSize)
	}
	if c.PublishQueueSize <= 0 {
		return fmt.Errorf("PUBLISH_QUEUE_SIZEは正の整数でなければなりません: %d", c.PublishQueueSize)
	}
	if c.DownstreamTimeout <= 0 {
		return fmt.Errorf("DOWNSTREAM_TIMEOUTは正の値でなければなりません: %s", c.DownstreamTimeout)
	}
	return c.Messaging.Validate()
}
