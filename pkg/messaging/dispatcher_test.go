package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/nao1215/productcomposite/pkg/apperr"
	"github.com/nao1215/productcomposite/pkg/event"
	"github.com/nao1215/productcomposite/pkg/logger"
)

// fakeTransport はテスト用のトランスポート。
type fakeTransport struct {
	mu   sync.Mutex
	sent []Message
	err  error
}

func (f *fakeTransport) Send(_ context.Context, msg Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.sent = append(f.sent, msg)
	return "id-" + strconv.Itoa(len(f.sent)), nil
}

func (f *fakeTransport) Close() error { return nil }

// TestDispatcherPublish はイベント発行と受理の証跡を検証する。
func TestDispatcherPublish(t *testing.T) {
	t.Parallel()

	t.Run("受理されたイベントのReceiptがAcceptedになること", func(t *testing.T) {
		t.Parallel()

		tr := &fakeTransport{}
		d := NewDispatcher(tr, NewPool(2, 4), 4, logger.NewNop())
		defer func() { _ = d.Close() }()

		ev := event.NewDelete[int, struct{}](42)
		r, err := d.Publish(context.Background(), ChannelReviews, "42", ev)
		if err != nil {
			t.Fatalf("Publish()でエラーが発生: %v", err)
		}
		if r.State != StateAccepted {
			t.Errorf("State = %v, want ACCEPTED", r.State)
		}
		if r.MessageID != "id-1" || r.Channel != ChannelReviews || r.PartitionKey != "42" {
			t.Errorf("Receipt = %+v", r)
		}
		if r.Partition != PartitionFor("42", 4) {
			t.Errorf("Partition = %d, want %d", r.Partition, PartitionFor("42", 4))
		}
		if r.AcceptedAt.IsZero() {
			t.Error("AcceptedAtが設定されていない")
		}

		var got map[string]any
		if err := json.Unmarshal(tr.sent[0].Payload, &got); err != nil {
			t.Fatalf("ペイロードのデコードに失敗: %v", err)
		}
		if got["eventType"] != "DELETE" || got["key"] != float64(42) {
			t.Errorf("payload = %v", got)
		}
	})

	t.Run("トランスポートの失敗はDispatchエラーになること", func(t *testing.T) {
		t.Parallel()

		d := NewDispatcher(&fakeTransport{err: errors.New("broker down")}, NewPool(1, 1), 1, logger.NewNop())
		defer func() { _ = d.Close() }()

		_, err := d.Publish(context.Background(), ChannelProducts, "1", event.NewDelete[int, struct{}](1))
		if !apperr.IsDispatch(err) {
			t.Errorf("IsDispatch(%v) = false, want true", err)
		}
	})

	t.Run("シリアライズできないイベントはDispatchエラーになること", func(t *testing.T) {
		t.Parallel()

		tr := &fakeTransport{}
		d := NewDispatcher(tr, NewPool(1, 1), 1, logger.NewNop())
		defer func() { _ = d.Close() }()

		_, err := d.Publish(context.Background(), ChannelProducts, "1", map[string]any{"ch": make(chan int)})
		if !apperr.IsDispatch(err) {
			t.Errorf("IsDispatch(%v) = false, want true", err)
		}
		if len(tr.sent) != 0 {
			t.Errorf("送信件数 = %d, want 0", len(tr.sent))
		}
	})

	t.Run("停止済みのプールへの発行はDispatchエラーになること", func(t *testing.T) {
		t.Parallel()

		d := NewDispatcher(&fakeTransport{}, NewPool(1, 1), 1, logger.NewNop())
		_ = d.Close()

		_, err := d.Publish(context.Background(), ChannelProducts, "1", event.NewDelete[int, struct{}](1))
		if !apperr.IsDispatch(err) || !errors.Is(err, ErrPoolClosed) {
			t.Errorf("Publish() = %v, want ErrPoolClosed", err)
		}
	})
}

// TestHTTPTransport はイベントエンドポイントへのPOSTを検証する。
func TestHTTPTransport(t *testing.T) {
	t.Parallel()

	type captured struct{ path, key, body string }
	reqs := make(chan captured, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var raw json.RawMessage
		_ = json.NewDecoder(r.Body).Decode(&raw)
		reqs <- captured{path: r.URL.Path, key: r.Header.Get(HeaderPartitionKey), body: string(raw)}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	tr := NewHTTPTransport(map[string]HTTPEndpoint{
		ChannelRecommendations: {BaseURL: srv.URL, Path: "/recommendation/event"},
	})

	id, err := tr.Send(context.Background(), Message{
		Channel:      ChannelRecommendations,
		PartitionKey: "5",
		Payload:      []byte(`{"eventType":"DELETE","key":5}`),
	})
	if err != nil {
		t.Fatalf("Send()でエラーが発生: %v", err)
	}
	if id == "" {
		t.Error("メッセージIDが空")
	}
	got := <-reqs
	if got.path != "/recommendation/event" {
		t.Errorf("パス = %q, want %q", got.path, "/recommendation/event")
	}
	if got.key != "5" {
		t.Errorf("%s = %q, want %q", HeaderPartitionKey, got.key, "5")
	}
	if got.body != `{"eventType":"DELETE","key":5}` {
		t.Errorf("ボディ = %s", got.body)
	}

	if _, err := tr.Send(context.Background(), Message{Channel: "unknown"}); err == nil {
		t.Error("未設定のチャネルがエラーにならない")
	}
}

// TestHTTPTransportRejected はイベントエンドポイントが422で拒否した場合を検証する。
func TestHTTPTransportRejected(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"timestamp":"2026-01-01T00:00:00Z","path":"/product/event","message":"Duplicate key, Product Id: 1"}`))
	}))
	defer srv.Close()

	tr := NewHTTPTransport(map[string]HTTPEndpoint{
		ChannelProducts: {BaseURL: srv.URL, Path: "/product/event"},
	})
	d := NewDispatcher(tr, NewPool(1, 1), 1, logger.NewNop())
	defer func() { _ = d.Close() }()

	_, err := d.Publish(context.Background(), ChannelProducts, "1", event.NewCreate(1, map[string]int{"productId": 1}))
	if !apperr.IsInvalidInput(err) {
		t.Fatalf("IsInvalidInput(%v) = false, want true", err)
	}
	if err.Error() != "Duplicate key, Product Id: 1" {
		t.Errorf("メッセージ = %q", err.Error())
	}
}
