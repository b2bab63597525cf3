package review

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"

	"github.com/nao1215/productcomposite/pkg/api"
	"github.com/nao1215/productcomposite/pkg/event"
	"github.com/nao1215/productcomposite/pkg/logger"
	"github.com/nao1215/productcomposite/pkg/messaging"
	"github.com/nao1215/productcomposite/pkg/storage"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(t *testing.T) *Server {
	t.Helper()

	db, err := storage.OpenAndMigrate(context.Background(), storage.MemoryDSN, Migrations(), logger.NewNop())
	if err != nil {
		t.Fatalf("データベースの初期化に失敗: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return newServer("7003", NewStore(db), "review-host/10.0.0.3:7003", logger.NewNop())
}

func request(s *Server, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

// TestReviewAPI はレビューAPIの各操作を検証する。
func TestReviewAPI(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	for id := 1; id <= 3; id++ {
		w := request(s, http.MethodPost, "/review", api.Review{ProductID: 1, ReviewID: id, Author: "a", Subject: "s", Content: "c"})
		if w.Code != http.StatusOK {
			t.Fatalf("作成のステータスコード = %d, want %d", w.Code, http.StatusOK)
		}
	}
	// 製品213は保存済みのレビューがあっても空配列を返す
	if w := request(s, http.MethodPost, "/review", api.Review{ProductID: 213, ReviewID: 1, Author: "a"}); w.Code != http.StatusOK {
		t.Fatalf("作成のステータスコード = %d, want %d", w.Code, http.StatusOK)
	}

	tests := []struct {
		name     string
		method   string
		path     string
		body     any
		wantCode int
		wantBody string
	}{
		{
			name:     "レビューのない製品は空配列を返すこと",
			method:   http.MethodGet,
			path:     "/review?productId=2",
			wantCode: http.StatusOK,
			wantBody: "[]",
		},
		{
			name:     "製品213は保存済みのレビューがあっても空配列を返すこと",
			method:   http.MethodGet,
			path:     "/review?productId=213",
			wantCode: http.StatusOK,
			wantBody: "[]",
		},
		{
			name:     "重複キーで422が返ること",
			method:   http.MethodPost,
			path:     "/review",
			body:     api.Review{ProductID: 1, ReviewID: 1},
			wantCode: http.StatusUnprocessableEntity,
		},
		{
			name:     "productIdがない場合に400が返ること",
			method:   http.MethodGet,
			path:     "/review",
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "数値でないproductIdで400が返ること",
			method:   http.MethodGet,
			path:     "/review?productId=no-integer",
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "負のproductIdで422が返ること",
			method:   http.MethodGet,
			path:     "/review?productId=-1",
			wantCode: http.StatusUnprocessableEntity,
		},
		{
			name:     "正でない製品IDのレビュー作成で422が返ること",
			method:   http.MethodPost,
			path:     "/review",
			body:     api.Review{ProductID: 0, ReviewID: 1},
			wantCode: http.StatusUnprocessableEntity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := request(s, tt.method, tt.path, tt.body)
			if w.Code != tt.wantCode {
				t.Errorf("ステータスコード = %d, want %d", w.Code, tt.wantCode)
			}
			if tt.wantBody != "" && w.Body.String() != tt.wantBody {
				t.Errorf("ボディ = %q, want %q", w.Body.String(), tt.wantBody)
			}
		})
	}

	t.Run("3件がレビューID順に返ること", func(t *testing.T) {
		w := request(s, http.MethodGet, "/review?productId=1", nil)
		var reviews []api.Review
		if err := json.Unmarshal(w.Body.Bytes(), &reviews); err != nil {
			t.Fatalf("レスポンスボディのパースに失敗: %v", err)
		}
		if len(reviews) != 3 {
			t.Fatalf("件数 = %d, want 3", len(reviews))
		}
		for i, r := range reviews {
			if r.ReviewID != i+1 {
				t.Errorf("reviews[%d].ReviewID = %d, want %d", i, r.ReviewID, i+1)
			}
		}
	})

	t.Run("削除後は空配列が返ること", func(t *testing.T) {
		if w := request(s, http.MethodDelete, "/review?productId=1", nil); w.Code != http.StatusOK {
			t.Fatalf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
		}
		if w := request(s, http.MethodGet, "/review?productId=1", nil); w.Body.String() != "[]" {
			t.Errorf("ボディ = %q, want %q", w.Body.String(), "[]")
		}
	})
}

// TestReviewConsumer は処理に失敗したメッセージがペンディングのまま残ることを検証する。
func TestReviewConsumer(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	ctx := context.Background()
	rdb, err := messaging.NewRedisClient(ctx, mr.Addr())
	if err != nil {
		t.Fatalf("NewRedisClient()でエラーが発生: %v", err)
	}
	t.Cleanup(func() { _ = rdb.Close() })

	s := newTestServer(t)
	consumer := messaging.NewConsumer(rdb, messaging.ConsumerConfig{
		Channel:    messaging.ChannelReviews,
		Partitions: []int{0},
		Block:      -1,
	}, s.handleMessage, logger.NewNop())
	if err := consumer.Setup(ctx); err != nil {
		t.Fatalf("Setup()でエラーが発生: %v", err)
	}

	transport := messaging.NewRedisStreamTransport(rdb, 0)
	for _, payload := range [][]byte{
		mustJSON(t, event.NewCreate(7, api.Review{ProductID: 7, ReviewID: 1, Subject: "ok"})),
		[]byte(`{"eventType":"CREATE","key":7,"data":null}`),
	} {
		msg := messaging.Message{Channel: messaging.ChannelReviews, PartitionKey: "7", Payload: payload}
		if _, err := transport.Send(ctx, msg); err != nil {
			t.Fatalf("Send()でエラーが発生: %v", err)
		}
	}

	n, err := consumer.PollOnce(ctx)
	if err != nil {
		t.Fatalf("PollOnce()でエラーが発生: %v", err)
	}
	if n != 1 {
		t.Errorf("ACK件数 = %d, want 1", n)
	}

	pending, err := rdb.XPending(ctx, messaging.StreamName(messaging.ChannelReviews, 0), "reviewsGroup").Result()
	if err != nil {
		t.Fatalf("XPending()でエラーが発生: %v", err)
	}
	if pending.Count != 1 {
		t.Errorf("ペンディング件数 = %d, want 1", pending.Count)
	}
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()

	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("json.Marshal()でエラーが発生: %v", err)
	}
	return b
}
