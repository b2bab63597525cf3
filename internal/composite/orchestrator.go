package composite

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/productcomposite/pkg/api"
	"github.com/nao1215/productcomposite/pkg/apperr"
	"github.com/nao1215/productcomposite/pkg/logger"
	"github.com/nao1215/productcomposite/pkg/messaging"
)

// Readers は読み込みで使う下流サービスのクライアント。
type Readers struct {
	Product        ProductReader
	Recommendation RecommendationReader
	Review         ReviewReader
}

// Writers は書き込みで使うイベント発行先。
type Writers struct {
	Product        ProductWriter
	Recommendation RecommendationWriter
	Review         ReviewWriter
}

// Orchestrator は集約の読み込みと書き込みを調整する。
// リクエスト間で共有する可変状態は持たない。
type Orchestrator struct {
	readers Readers
	writers Writers
	// serviceAddress は集約に埋め込むこのインスタンスのアドレス。
	serviceAddress string
	log            *logger.Logger
}

// NewOrchestrator は新しいOrchestratorを生成する。
func NewOrchestrator(readers Readers, writers Writers, serviceAddress string, log *logger.Logger) *Orchestrator {
	return &Orchestrator{
		readers:        readers,
		writers:        writers,
		serviceAddress: serviceAddress,
		log:            log.With("component", "Orchestrator"),
	}
}

// validateProductID は製品IDが正の整数であることを確認する。
func validateProductID(productID int) error {
	if productID < 1 {
		return apperr.InvalidInput("Invalid productId: %d", productID)
	}
	return nil
}

// GetAggregate は3つのサービスへ並行に問い合わせて集約を返す。
// いずれかが失敗した場合は集約全体を失敗とする。複数が失敗した場合は
// 製品、レコメンデーション、レビューの順で最初のエラーを返す。
func (o *Orchestrator) GetAggregate(ctx context.Context, productID int) (api.ProductAggregate, error) {
	if err := validateProductID(productID); err != nil {
		return api.ProductAggregate{}, err
	}

	var (
		product                       api.Product
		recs                          []api.Recommendation
		reviews                       []api.Review
		productErr, recErr, reviewErr error
	)

	// 各ブランチのエラーは自分の枠に書き、兄弟をキャンセルしない
	var g errgroup.Group
	g.Go(func() error {
		product, productErr = o.readers.Product.GetProduct(ctx, productID)
		return nil
	})
	g.Go(func() error {
		recs, recErr = o.readers.Recommendation.GetRecommendations(ctx, productID)
		return nil
	})
	g.Go(func() error {
		reviews, reviewErr = o.readers.Review.GetReviews(ctx, productID)
		return nil
	})
	g.Wait()

	for _, err := range []error{productErr, recErr, reviewErr} {
		if err != nil {
			return api.ProductAggregate{}, err
		}
	}

	o.log.Debug("集約を取得しました", "productId", productID,
		"recommendations", len(recs), "reviews", len(reviews))
	return ComposeAggregate(product, recs, reviews, o.serviceAddress), nil
}

// command は書き込みで発行する1件のコマンド。
type command struct {
	// label は失敗時に報告するコマンドの説明。
	label string
	run   func(ctx context.Context) (messaging.Receipt, error)
}

// CreateAggregate は集約をエンティティ単位のCREATEイベントに分解して並行に発行する。
// すべての発行が受理された時点で、分解した順に受理証跡を返す。
func (o *Orchestrator) CreateAggregate(ctx context.Context, agg api.ProductAggregate) ([]messaging.Receipt, error) {
	if err := validateProductID(agg.ProductID); err != nil {
		return nil, err
	}

	product, recs, reviews := SplitAggregate(agg)

	cmds := make([]command, 0, 1+len(recs)+len(reviews))
	cmds = append(cmds, command{
		label: fmt.Sprintf("create product (productId=%d)", product.ProductID),
		run: func(ctx context.Context) (messaging.Receipt, error) {
			return o.writers.Product.CreateProduct(ctx, product)
		},
	})
	for i, r := range recs {
		cmds = append(cmds, command{
			label: fmt.Sprintf("create recommendation[%d] (productId=%d, recommendationId=%d)", i, r.ProductID, r.RecommendationID),
			run: func(ctx context.Context) (messaging.Receipt, error) {
				return o.writers.Recommendation.CreateRecommendation(ctx, r)
			},
		})
	}
	for i, r := range reviews {
		cmds = append(cmds, command{
			label: fmt.Sprintf("create review[%d] (productId=%d, reviewId=%d)", i, r.ProductID, r.ReviewID),
			run: func(ctx context.Context) (messaging.Receipt, error) {
				return o.writers.Review.CreateReview(ctx, r)
			},
		})
	}

	receipts, err := o.dispatch(ctx, cmds)
	if err != nil {
		return nil, err
	}
	o.log.Info("集約の作成イベントを発行しました", "productId", agg.ProductID, "events", len(receipts))
	return receipts, nil
}

// DeleteAggregate は3つのサービスへDELETEイベントを並行に発行する。
// 存在しない製品IDでも成功する。
func (o *Orchestrator) DeleteAggregate(ctx context.Context, productID int) ([]messaging.Receipt, error) {
	if err := validateProductID(productID); err != nil {
		return nil, err
	}

	cmds := []command{
		{
			label: fmt.Sprintf("delete product (productId=%d)", productID),
			run: func(ctx context.Context) (messaging.Receipt, error) {
				return o.writers.Product.DeleteProduct(ctx, productID)
			},
		},
		{
			label: fmt.Sprintf("delete recommendations (productId=%d)", productID),
			run: func(ctx context.Context) (messaging.Receipt, error) {
				return o.writers.Recommendation.DeleteRecommendations(ctx, productID)
			},
		},
		{
			label: fmt.Sprintf("delete reviews (productId=%d)", productID),
			run: func(ctx context.Context) (messaging.Receipt, error) {
				return o.writers.Review.DeleteReviews(ctx, productID)
			},
		},
	}

	receipts, err := o.dispatch(ctx, cmds)
	if err != nil {
		return nil, err
	}
	o.log.Info("集約の削除イベントを発行しました", "productId", productID)
	return receipts, nil
}

// dispatch はコマンドを並行に実行し、すべての受理を待つ。
// 失敗したコマンドがある場合は、分解した順で最初に失敗したものを報告する。
// 受理済みの他のコマンドは取り消さない。
func (o *Orchestrator) dispatch(ctx context.Context, cmds []command) ([]messaging.Receipt, error) {
	receipts := make([]messaging.Receipt, len(cmds))
	errs := make([]error, len(cmds))

	var g errgroup.Group
	for i, cmd := range cmds {
		g.Go(func() error {
			receipts[i], errs[i] = cmd.run(ctx)
			return nil
		})
	}
	g.Wait()

	for i, err := range errs {
		if err != nil {
			o.log.Warn("コマンドの発行に失敗しました", "command", cmds[i].label, "error", err)
			return nil, fmt.Errorf("%s: %w", cmds[i].label, err)
		}
	}
	return receipts, nil
}
