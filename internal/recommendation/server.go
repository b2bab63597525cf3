package recommendation

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

// Server はおすすめサービスのHTTPサーバー。
type Server struct {
	router         *gin.Engine
	port           string
	store          *Store
	db             *sql.DB
	consumer       *messaging.Consumer
	serviceAddress string
	log            *logger.Logger
}

// NewServer は新しいおすすめサーバーを生成する。
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
			Channel:    messaging.ChannelRecommendations,
			Group:      cfg.ConsumerGroup,
			Name:       cfg.ConsumerName,
			Partitions: cfg.Partitions(),
		}, s.handleMessage, log)
	}
	return s, nil
}

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
		log:            log.With("service", "recommendation"),
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

func (s *Server) setupRoutes() {
	recs := s.router.Group("/recommendation")
	{
		recs.POST("", s.handleCreate())
		recs.GET("", s.handleList())
		recs.DELETE("", s.handleDelete())
		recs.POST("/event", s.handleEvent())
	}

	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "recommendation"})
	})
}

// noRecommendationsProductID は常におすすめを持たないものとして扱う製品ID。
const noRecommendationsProductID = 113

// queryProductID はクエリパラメータproductIdを数値に変換する。
func queryProductID(c *gin.Context) (int, bool) {
	raw, ok := c.GetQuery("productId")
	if !ok {
		middleware.WriteError(c, http.StatusBadRequest, "Required parameter productId is not present")
		return 0, false
	}
	id, err := strconv.Atoi(raw)
	if err != nil {
		middleware.WriteError(c, http.StatusBadRequest, fmt.Sprintf("Type mismatch: productId must be a number, got %q", raw))
		return 0, false
	}
	return id, true
}

func (s *Server) handleCreate() gin.HandlerFunc {
	return func(c *gin.Context) {
		var body api.Recommendation
		if err := c.ShouldBindJSON(&body); err != nil {
			middleware.WriteError(c, http.StatusBadRequest, "リクエストボディが不正です: "+err.Error())
			return
		}

		r, err := s.create(c.Request.Context(), body)
		if err != nil {
			_ = c.Error(err)
			return
		}
		c.JSON(http.StatusOK, r)
	}
}

// handleList は製品のおすすめ一覧ハンドラー。該当がなければ空配列を返す。
func (s *Server) handleList() gin.HandlerFunc {
	return func(c *gin.Context) {
		productID, ok := queryProductID(c)
		if !ok {
			return
		}
		if productID < 1 {
			_ = c.Error(apperr.InvalidInput("Invalid productId: %d", productID))
			return
		}
		if productID == noRecommendationsProductID {
			s.log.Debug("おすすめを持たない製品IDです", "productId", productID)
			c.JSON(http.StatusOK, []api.Recommendation{})
			return
		}

		recs, err := s.store.ListByProduct(c.Request.Context(), productID)
		if err != nil {
			_ = c.Error(err)
			return
		}
		for i := range recs {
			recs[i].ServiceAddress = s.serviceAddress
		}
		s.log.Debug("おすすめを返します", "productId", productID, "count", len(recs))
		c.JSON(http.StatusOK, recs)
	}
}

func (s *Server) handleDelete() gin.HandlerFunc {
	return func(c *gin.Context) {
		productID, ok := queryProductID(c)
		if !ok {
			return
		}
		if err := s.store.DeleteByProduct(c.Request.Context(), productID); err != nil {
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
		ev, err := event.Decode[int, api.Recommendation](raw)
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
// 重複キーは記録して処理済みとする。
func (s *Server) handleMessage(ctx context.Context, d messaging.Delivery) error {
	ev, err := event.Decode[int, api.Recommendation](d.Payload)
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

func (s *Server) apply(ctx context.Context, ev event.Event[int, api.Recommendation]) error {
	s.log.Info("イベントを処理します", "eventId", ev.ID, "eventType", ev.EventType, "key", ev.Key)

	switch ev.EventType {
	case event.TypeCreate:
		_, err := s.create(ctx, *ev.Data)
		return err
	case event.TypeDelete:
		return s.store.DeleteByProduct(ctx, ev.Key)
	default:
		return fmt.Errorf("Incorrect event type: %s, expected a CREATE or DELETE event", ev.EventType)
	}
}

func (s *Server) create(ctx context.Context, r api.Recommendation) (api.Recommendation, error) {
	if r.ProductID < 1 {
		return api.Recommendation{}, apperr.InvalidInput("Invalid productId: %d", r.ProductID)
	}
	created, err := s.store.Create(ctx, r)
	if err != nil {
		return api.Recommendation{}, err
	}
	created.ServiceAddress = s.serviceAddress
	return created, nil
}
