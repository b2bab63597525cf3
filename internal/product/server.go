package product

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/nao1215/productcomposite/pkg/api"
	"github.com/nao1215/productcomposite/pkg/apperr"
	"github.com/nao1215/productcomposite/pkg/config"
	"github.com/nao1215/productcomposite/pkg/event"
	"github.com/nao1215/productcomposite/pkg/httpserver"
	"github.com/nao1215/productcomposite/pkg/logger"
	"github.com/nao1215/productcomposite/pkg/messaging"
	"github.com/nao1215/productcomposite/pkg/middleware"
	"github.com/nao1215/productcomposite/pkg/serviceaddr"
	"github.com/nao1215/productcomposite/pkg/storage"
)

// Server は製品サービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// store は製品の永続化を担う。
	store *Store
	// db はSQLiteデータベース接続。
	db *sql.DB
	// consumer はproductsチャネルのコンシューマ。メッセージングが無効の場合はnil。
	consumer *messaging.Consumer
	// serviceAddress はレスポンスに埋め込むこのインスタンスのアドレス。
	serviceAddress string
	log            *logger.Logger
}

// NewServer は新しい製品サーバーを生成する。
// SQLiteデータベースの初期化とマイグレーションを行う。
func NewServer(ctx context.Context, cfg config.Backing, log *logger.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("設定が不正です: %w", err)
	}

	db, err := storage.OpenAndMigrate(ctx, cfg.DBPath, Migrations(), log)
	if err != nil {
		return nil, err
	}

	s := newServer(cfg.Port, NewStore(db), serviceaddr.Resolve(cfg.Port), log)
	s.db = db

	if cfg.MessagingEnabled && cfg.Messaging.Transport == "redis" {
		rdb, err := messaging.NewRedisClient(ctx, cfg.Messaging.RedisAddr)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("Redisへの接続に失敗: %w", err)
		}
		s.consumer = messaging.NewConsumer(rdb, messaging.ConsumerConfig{
			Channel:    messaging.ChannelProducts,
			Group:      cfg.ConsumerGroup,
			Name:       cfg.ConsumerName,
			Partitions: cfg.Partitions(),
		}, s.handleMessage, log)
	}
	return s, nil
}

// newServer はルーティングを設定したサーバーを生成する。
func newServer(port string, store *Store, serviceAddress string, log *logger.Logger) *Server {
	router := gin.New()
	router.Use(middleware.Recovery(log))
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.ErrorHandler(log))

	s := &Server{
		router:         router,
		port:           port,
		store:          store,
		serviceAddress: serviceAddress,
		log:            log.With("service", "product"),
	}
	s.setupRoutes()
	return s
}

// Run はHTTPサーバーとコンシューマを起動し、ctxが終了するまで実行する。
func (s *Server) Run(ctx context.Context) error {
	if s.db != nil {
		defer s.db.Close()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return httpserver.Serve(gctx, s.port, s.router, s.log)
	})
	if s.consumer != nil {
		g.Go(func() error {
			return s.consumer.Run(gctx)
		})
	}
	return g.Wait()
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	products := s.router.Group("/product")
	{
		// 製品作成
		products.POST("", s.handleCreate())
		// 製品取得
		products.GET("/:productId", s.handleGet())
		// 製品削除
		products.DELETE("/:productId", s.handleDelete())
		// イベント受信
		products.POST("/event", s.handleEvent())
	}

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "product"})
	})
}

// parseProductID はパスパラメータの製品IDを数値に変換する。
func parseProductID(c *gin.Context) (int, bool) {
	raw := c.Param("productId")
	id, err := strconv.Atoi(raw)
	if err != nil {
		middleware.WriteError(c, http.StatusBadRequest, fmt.Sprintf("Type mismatch: productId must be a number, got %q", raw))
		return 0, false
	}
	return id, true
}

// handleCreate は製品作成ハンドラー。
func (s *Server) handleCreate() gin.HandlerFunc {
	return func(c *gin.Context) {
		var body api.Product
		if err := c.ShouldBindJSON(&body); err != nil {
			middleware.WriteError(c, http.StatusBadRequest, "リクエストボディが不正です: "+err.Error())
			return
		}

		p, err := s.create(c.Request.Context(), body)
		if err != nil {
			_ = c.Error(err)
			return
		}
		c.JSON(http.StatusOK, p)
	}
}

// handleGet は製品取得ハンドラー。
func (s *Server) handleGet() gin.HandlerFunc {
	return func(c *gin.Context) {
		productID, ok := parseProductID(c)
		if !ok {
			return
		}
		if productID < 1 {
			_ = c.Error(apperr.InvalidInput("Invalid productId: %d", productID))
			return
		}

		p, err := s.store.Get(c.Request.Context(), productID)
		if err != nil {
			_ = c.Error(err)
			return
		}
		p.ServiceAddress = s.serviceAddress
		c.JSON(http.StatusOK, p)
	}
}

// handleDelete は製品削除ハンドラー。存在しない製品でも200を返す。
func (s *Server) handleDelete() gin.HandlerFunc {
	return func(c *gin.Context) {
		productID, ok := parseProductID(c)
		if !ok {
			return
		}
		if err := s.store.Delete(c.Request.Context(), productID); err != nil {
			_ = c.Error(err)
			return
		}
		c.Status(http.StatusOK)
	}
}

// handleEvent はイベントを同期的に適用するハンドラー。
func (s *Server) handleEvent() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := io.ReadAll(c.Request.Body)
		if err != nil {
			middleware.WriteError(c, http.StatusBadRequest, "リクエストボディの読み込みに失敗しました")
			return
		}
		ev, err := event.Decode[int, api.Product](raw)
		if err != nil {
			middleware.WriteError(c, http.StatusBadRequest, err.Error())
			return
		}
		if err := s.apply(c.Request.Context(), ev); err != nil {
			_ = c.Error(err)
			return
		}
		c.Status(http.StatusAccepted)
	}
}

// handleMessage はコンシューマが受信したイベントを適用する。
// 重複キーは記録して処理済みとし、それ以外の失敗はペンディングのまま残す。
func (s *Server) handleMessage(ctx context.Context, d messaging.Delivery) error {
	ev, err := event.Decode[int, api.Product](d.Payload)
	if err != nil {
		return err
	}
	if err := s.apply(ctx, ev); err != nil {
		if apperr.IsInvalidInput(err) {
			s.log.Warn("イベントを適用できませんでした", "eventId", ev.ID, "key", ev.Key, "error", err)
			return nil
		}
		return err
	}
	return nil
}

// apply はイベントの種類に応じて製品を作成または削除する。
func (s *Server) apply(ctx context.Context, ev event.Event[int, api.Product]) error {
	s.log.Info("イベントを処理します", "eventId", ev.ID, "eventType", ev.EventType, "key", ev.Key)

	switch ev.EventType {
	case event.TypeCreate:
		_, err := s.create(ctx, *ev.Data)
		return err
	case event.TypeDelete:
		return s.store.Delete(ctx, ev.Key)
	default:
		return fmt.Errorf("Incorrect event type: %s, expected a CREATE or DELETE event", ev.EventType)
	}
}

// create は製品IDを検証してから保存する。
func (s *Server) create(ctx context.Context, p api.Product) (api.Product, error) {
	if p.ProductID < 1 {
		return api.Product{}, apperr.InvalidInput("Invalid productId: %d", p.ProductID)
	}
	created, err := s.store.Create(ctx, p)
	if err != nil {
		return api.Product{}, err
	}
	created.ServiceAddress = s.serviceAddress
	return created, nil
}
