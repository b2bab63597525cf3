package composite

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nao1215/productcomposite/pkg/api"
	"github.com/nao1215/productcomposite/pkg/apperr"
	"github.com/nao1215/productcomposite/pkg/logger"
	"github.com/nao1215/productcomposite/pkg/messaging"
)

// fakeStore はバックエンドサービスの振る舞いを模したテスト用の読み込み先。
// 製品113はレコメンデーションなし、製品213はレビューなし、製品13は存在しない。
type fakeStore struct {
	calls atomic.Int32
	// failRecommendations が設定されている場合、レコメンデーションの取得はこのエラーを返す。
	failRecommendations error
}

func (f *fakeStore) GetProduct(_ context.Context, productID int) (api.Product, error) {
	f.calls.Add(1)
	if productID == 13 {
		return api.Product{}, apperr.NotFound("No product found for productId: %d", productID)
	}
	return api.Product{ProductID: productID, Name: "name-" + strconv.Itoa(productID), Weight: 100, ServiceAddress: "product/10.0.0.1:7001"}, nil
}

func (f *fakeStore) GetRecommendations(_ context.Context, productID int) ([]api.Recommendation, error) {
	f.calls.Add(1)
	if f.failRecommendations != nil {
		return nil, f.failRecommendations
	}
	if productID == 113 {
		return []api.Recommendation{}, nil
	}
	return []api.Recommendation{
		{ProductID: productID, RecommendationID: 1, Author: "a1", Rate: 1, Content: "c1", ServiceAddress: "rec/10.0.0.2:7002"},
		{ProductID: productID, RecommendationID: 2, Author: "a2", Rate: 2, Content: "c2", ServiceAddress: "rec/10.0.0.2:7002"},
	}, nil
}

func (f *fakeStore) GetReviews(_ context.Context, productID int) ([]api.Review, error) {
	f.calls.Add(1)
	if productID == 213 {
		return []api.Review{}, nil
	}
	return []api.Review{
		{ProductID: productID, ReviewID: 1, Author: "a1", Subject: "s1", Content: "c1", ServiceAddress: "rev/10.0.0.3:7003"},
	}, nil
}

// fakeWriter は発行されたコマンドを記録するテスト用の書き込み先。
// 製品IDごとの集合を持ち、削除で空になる。
type fakeWriter struct {
	mu       sync.Mutex
	receipts []messaging.Receipt
	entities map[int]int
	// failChannel のチャネルへの発行は失敗する。
	failChannel string
}

func newFakeWriter() *fakeWriter {
	return &fakeWriter{entities: map[int]int{}}
}

func (f *fakeWriter) record(channel string, productID, delta int) (messaging.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if channel == f.failChannel {
		return messaging.Receipt{}, apperr.Dispatch(errors.New("broker unavailable"), "publish %s", channel)
	}
	if delta < 0 {
		delete(f.entities, productID)
	} else {
		f.entities[productID] += delta
	}
	r := messaging.Receipt{
		State:        messaging.StateAccepted,
		Channel:      channel,
		PartitionKey: strconv.Itoa(productID),
		MessageID:    strconv.Itoa(len(f.receipts) + 1),
		AcceptedAt:   time.Now(),
	}
	f.receipts = append(f.receipts, r)
	return r, nil
}

func (f *fakeWriter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.receipts)
}

func (f *fakeWriter) CreateProduct(_ context.Context, p api.Product) (messaging.Receipt, error) {
	return f.record(messaging.ChannelProducts, p.ProductID, 1)
}

func (f *fakeWriter) DeleteProduct(_ context.Context, productID int) (messaging.Receipt, error) {
	return f.record(messaging.ChannelProducts, productID, -1)
}

func (f *fakeWriter) CreateRecommendation(_ context.Context, r api.Recommendation) (messaging.Receipt, error) {
	return f.record(messaging.ChannelRecommendations, r.ProductID, 1)
}

func (f *fakeWriter) DeleteRecommendations(_ context.Context, productID int) (messaging.Receipt, error) {
	return f.record(messaging.ChannelRecommendations, productID, -1)
}

func (f *fakeWriter) CreateReview(_ context.Context, r api.Review) (messaging.Receipt, error) {
	return f.record(messaging.ChannelReviews, r.ProductID, 1)
}

func (f *fakeWriter) DeleteReviews(_ context.Context, productID int) (messaging.Receipt, error) {
	return f.record(messaging.ChannelReviews, productID, -1)
}

// newTestOrchestrator はフェイクを使ったOrchestratorを生成する。
func newTestOrchestrator(store *fakeStore, writer *fakeWriter) *Orchestrator {
	return NewOrchestrator(
		Readers{Product: store, Recommendation: store, Review: store},
		Writers{Product: writer, Recommendation: writer, Review: writer},
		"composite/10.0.0.9:7000",
		logger.NewNop(),
	)
}

// barrier は指定数のブランチが開始するまで各ブランチを待たせる。
// ブランチが直列に実行されるとそろわずにタイムアウトする。
type barrier struct {
	n       int32
	arrived atomic.Int32
	all     chan struct{}
}

// newBarrier はn個のブランチを待つbarrierを生成する。nが0の場合は待たない。
func newBarrier(n int) *barrier {
	b := &barrier{n: int32(n), all: make(chan struct{})}
	if n <= 0 {
		close(b.all)
	}
	return b
}

func (b *barrier) wait() error {
	if b.arrived.Add(1) == b.n {
		close(b.all)
	}
	select {
	case <-b.all:
		return nil
	case <-time.After(2 * time.Second):
		return errors.New("他のブランチが開始されないままタイムアウトしました")
	}
}

// barrierStore はすべての読み込みが並行に開始されるまで応答しない。
type barrierStore struct {
	store *fakeStore
	b     *barrier
}

func (s *barrierStore) GetProduct(ctx context.Context, productID int) (api.Product, error) {
	if err := s.b.wait(); err != nil {
		return api.Product{}, err
	}
	return s.store.GetProduct(ctx, productID)
}

func (s *barrierStore) GetRecommendations(ctx context.Context, productID int) ([]api.Recommendation, error) {
	if err := s.b.wait(); err != nil {
		return nil, err
	}
	return s.store.GetRecommendations(ctx, productID)
}

func (s *barrierStore) GetReviews(ctx context.Context, productID int) ([]api.Review, error) {
	if err := s.b.wait(); err != nil {
		return nil, err
	}
	return s.store.GetReviews(ctx, productID)
}

// barrierWriter はすべての発行が並行に開始されるまで受理しない。
type barrierWriter struct {
	*fakeWriter
	b *barrier
}

func (w *barrierWriter) CreateProduct(ctx context.Context, p api.Product) (messaging.Receipt, error) {
	if err := w.b.wait(); err != nil {
		return messaging.Receipt{}, err
	}
	return w.fakeWriter.CreateProduct(ctx, p)
}

func (w *barrierWriter) DeleteProduct(ctx context.Context, productID int) (messaging.Receipt, error) {
	if err := w.b.wait(); err != nil {
		return messaging.Receipt{}, err
	}
	return w.fakeWriter.DeleteProduct(ctx, productID)
}

func (w *barrierWriter) CreateRecommendation(ctx context.Context, r api.Recommendation) (messaging.Receipt, error) {
	if err := w.b.wait(); err != nil {
		return messaging.Receipt{}, err
	}
	return w.fakeWriter.CreateRecommendation(ctx, r)
}

func (w *barrierWriter) DeleteRecommendations(ctx context.Context, productID int) (messaging.Receipt, error) {
	if err := w.b.wait(); err != nil {
		return messaging.Receipt{}, err
	}
	return w.fakeWriter.DeleteRecommendations(ctx, productID)
}

func (w *barrierWriter) CreateReview(ctx context.Context, r api.Review) (messaging.Receipt, error) {
	if err := w.b.wait(); err != nil {
		return messaging.Receipt{}, err
	}
	return w.fakeWriter.CreateReview(ctx, r)
}

func (w *barrierWriter) DeleteReviews(ctx context.Context, productID int) (messaging.Receipt, error) {
	if err := w.b.wait(); err != nil {
		return messaging.Receipt{}, err
	}
	return w.fakeWriter.DeleteReviews(ctx, productID)
}

// newBarrierOrchestrator は読み込みと書き込みの両方がbarrierで待つOrchestratorを生成する。
func newBarrierOrchestrator(reads, writes *barrier, writer *fakeWriter) *Orchestrator {
	store := &barrierStore{store: &fakeStore{}, b: reads}
	w := &barrierWriter{fakeWriter: writer, b: writes}
	return NewOrchestrator(
		Readers{Product: store, Recommendation: store, Review: store},
		Writers{Product: w, Recommendation: w, Review: w},
		"composite/10.0.0.9:7000",
		logger.NewNop(),
	)
}
