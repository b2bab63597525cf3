package composite

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/productcomposite/pkg/api"
	"github.com/nao1215/productcomposite/pkg/httpclient"
	"github.com/nao1215/productcomposite/pkg/httpserver"
	"github.com/nao1215/productcomposite/pkg/logger"
	"github.com/nao1215/productcomposite/pkg/messaging"
	"github.com/nao1215/productcomposite/pkg/middleware"
	"github.com/nao1215/productcomposite/pkg/serviceaddr"
)

// Server はproduct-compositeサービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// orchestrator は集約の読み書きを調整する。
	orchestrator *Orchestrator
	// health はバックエンドサービスのヘルスチェックを行う。
	health *HealthChecker
	// dispatcher はイベント発行に使用する。停止時に閉じる。
	dispatcher *messaging.Dispatcher
	log        *logger.Logger
}

// NewServer は設定から依存関係を組み立てて新しいサーバーを生成する。
func NewServer(ctx context.Context, cfg Config, log *logger.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("設定が不正です: %w", err)
	}

	timeout := httpclient.WithTimeout(cfg.DownstreamTimeout)
	productClient := httpclient.New(cfg.ProductURL, timeout)
	recommendationClient := httpclient.New(cfg.RecommendationURL, timeout)
	reviewClient := httpclient.New(cfg.ReviewURL, timeout)

	transport, err := newTransport(ctx, cfg)
	if err != nil {
		return nil, err
	}
	dispatcher := messaging.NewDispatcher(
		transport,
		messaging.NewPool(cfg.PublishPoolSize, cfg.PublishQueueSize),
		cfg.Messaging.PartitionCount,
		log,
	)

	integration := NewIntegration(productClient, recommendationClient, reviewClient, dispatcher, log)
	orchestrator := NewOrchestrator(
		Readers{Product: integration, Recommendation: integration, Review: integration},
		Writers{Product: integration, Recommendation: integration, Review: integration},
		serviceaddr.Resolve(cfg.Port),
		log,
	)
	health := NewHealthChecker(map[string]*httpclient.Client{
		"product":        productClient,
		"recommendation": recommendationClient,
		"review":         reviewClient,
	}, 5*time.Second)

	s := newServer(cfg, orchestrator, health, log)
	s.dispatcher = dispatcher
	return s, nil
}

// newTransport は設定に応じたイベントのトランスポートを生成する。
func newTransport(ctx context.Context, cfg Config) (messaging.Transport, error) {
	switch cfg.Messaging.Transport {
	case "http":
		return messaging.NewHTTPTransport(map[string]messaging.HTTPEndpoint{
			messaging.ChannelProducts:        {BaseURL: cfg.ProductURL, Path: "/product/event"},
			messaging.ChannelRecommendations: {BaseURL: cfg.RecommendationURL, Path: "/recommendation/event"},
			messaging.ChannelReviews:         {BaseURL: cfg.ReviewURL, Path: "/review/event"},
		}, httpclient.WithTimeout(cfg.DownstreamTimeout)), nil
	default:
		rdb, err := messaging.NewRedisClient(ctx, cfg.Messaging.RedisAddr)
		if err != nil {
			return nil, fmt.Errorf("Redisへの接続に失敗: %w", err)
		}
		return messaging.NewRedisStreamTransport(rdb, int64(cfg.StreamMaxLen)), nil
	}
}

// newServer はルーティングを設定したサーバーを生成する。
func newServer(cfg Config, orchestrator *Orchestrator, health *HealthChecker, log *logger.Logger) *Server {
	router := gin.New()
	router.Use(middleware.Recovery(log))
	router.Use(middleware.RequestLogger(log))
	if len(cfg.AllowedOrigins) > 0 {
		router.Use(middleware.CORS(cfg.AllowedOrigins))
	}
	router.Use(middleware.ErrorHandler(log))

	s := &Server{
		router:       router,
		port:         cfg.Port,
		orchestrator: orchestrator,
		health:       health,
		log:          log.With("service", "product-composite"),
	}
	s.setupRoutes(cfg.JWTSecret)
	return s
}

// Run はHTTPサーバーを起動し、ctxが終了したら停止する。
// 停止後に発行待ちのイベントを送り切ってからトランスポートを閉じる。
func (s *Server) Run(ctx context.Context) error {
	defer s.close()
	return httpserver.Serve(ctx, s.port, s.router, s.log)
}

// close は発行待ちのイベントを送り切ってからトランスポートを閉じる。
func (s *Server) close() {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Close(); err != nil {
		s.log.Warn("イベント発行の停止に失敗しました", "error", err)
	}
}

// setupRoutes はAPIルーティングを設定する。
// jwtSecretが空の場合は認証なしで公開する。
func (s *Server) setupRoutes(jwtSecret string) {
	read := s.router.Group("/product-composite")
	write := s.router.Group("/product-composite")
	if jwtSecret != "" {
		read.Use(middleware.JWTAuth(jwtSecret, middleware.ScopeProductRead))
		write.Use(middleware.JWTAuth(jwtSecret, middleware.ScopeProductWrite))
	}

	// 集約の作成
	write.POST("", s.handleCreate())
	// 集約の取得
	read.GET("/:productId", s.handleGet())
	// 集約の削除
	write.DELETE("/:productId", s.handleDelete())

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "product-composite"})
	})
	// バックエンドサービスのヘルスチェック
	s.router.GET("/health/services", s.handleServicesHealth())
}

// parseProductID はパスパラメータの製品IDを数値に変換する。
// 数値でない場合は400を書き込んでfalseを返す。
func parseProductID(c *gin.Context) (int, bool) {
	raw := c.Param("productId")
	id, err := strconv.Atoi(raw)
	if err != nil {
		middleware.WriteError(c, http.StatusBadRequest, fmt.Sprintf("Type mismatch: productId must be a number, got %q", raw))
		return 0, false
	}
	return id, true
}

// requestContext は認証済みのサブジェクトを下流サービスへ伝播するコンテキストを返す。
func requestContext(c *gin.Context) context.Context {
	ctx := c.Request.Context()
	if subject := middleware.GetSubject(c); subject != "" {
		ctx = httpclient.WithUserID(ctx, subject)
	}
	return ctx
}

// handleCreate は集約の作成を受け付けるハンドラー。
// すべてのイベントが受理されたら202を返す。
func (s *Server) handleCreate() gin.HandlerFunc {
	return func(c *gin.Context) {
		var agg api.ProductAggregate
		if err := c.ShouldBindJSON(&agg); err != nil {
			middleware.WriteError(c, http.StatusBadRequest, "リクエストボディが不正です: "+err.Error())
			return
		}

		if _, err := s.orchestrator.CreateAggregate(requestContext(c), agg); err != nil {
			_ = c.Error(err)
			return
		}
		c.Status(http.StatusAccepted)
	}
}

// handleGet は集約を取得するハンドラー。
func (s *Server) handleGet() gin.HandlerFunc {
	return func(c *gin.Context) {
		productID, ok := parseProductID(c)
		if !ok {
			return
		}

		agg, err := s.orchestrator.GetAggregate(requestContext(c), productID)
		if err != nil {
			_ = c.Error(err)
			return
		}
		c.JSON(http.StatusOK, agg)
	}
}

// handleDelete は集約の削除を受け付けるハンドラー。
// 存在しない製品IDでも202を返す。
func (s *Server) handleDelete() gin.HandlerFunc {
	return func(c *gin.Context) {
		productID, ok := parseProductID(c)
		if !ok {
			return
		}

		if _, err := s.orchestrator.DeleteAggregate(requestContext(c), productID); err != nil {
			_ = c.Error(err)
			return
		}
		c.Status(http.StatusAccepted)
	}
}

// handleServicesHealth はバックエンドサービスのヘルス状態を返すハンドラー。
// いずれかがDOWNの場合は503を返す。
func (s *Server) handleServicesHealth() gin.HandlerFunc {
	return func(c *gin.Context) {
		report := s.health.Check(c.Request.Context())
		status := http.StatusOK
		if report.Status != StatusUp {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, report)
	}
}
