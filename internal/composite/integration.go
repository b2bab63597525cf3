package composite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/nao1215/productcomposite/pkg/api"
	"github.com/nao1215/productcomposite/pkg/apperr"
	"github.com/nao1215/productcomposite/pkg/event"
	"github.com/nao1215/productcomposite/pkg/httpclient"
	"github.com/nao1215/productcomposite/pkg/logger"
	"github.com/nao1215/productcomposite/pkg/messaging"
)

// ProductReader は製品サービスから製品を取得する。
type ProductReader interface {
	GetProduct(ctx context.Context, productID int) (api.Product, error)
}

// RecommendationReader はレコメンデーションサービスから製品のレコメンデーションを取得する。
type RecommendationReader interface {
	GetRecommendations(ctx context.Context, productID int) ([]api.Recommendation, error)
}

// ReviewReader はレビューサービスから製品のレビューを取得する。
type ReviewReader interface {
	GetReviews(ctx context.Context, productID int) ([]api.Review, error)
}

// ProductWriter は製品サービスへのコマンドを発行する。
type ProductWriter interface {
	CreateProduct(ctx context.Context, p api.Product) (messaging.Receipt, error)
	DeleteProduct(ctx context.Context, productID int) (messaging.Receipt, error)
}

// RecommendationWriter はレコメンデーションサービスへのコマンドを発行する。
type RecommendationWriter interface {
	CreateRecommendation(ctx context.Context, r api.Recommendation) (messaging.Receipt, error)
	DeleteRecommendations(ctx context.Context, productID int) (messaging.Receipt, error)
}

// ReviewWriter はレビューサービスへのコマンドを発行する。
type ReviewWriter interface {
	CreateReview(ctx context.Context, r api.Review) (messaging.Receipt, error)
	DeleteReviews(ctx context.Context, productID int) (messaging.Receipt, error)
}

// Publisher はイベントをチャネルへ発行する。messaging.Dispatcherが実装する。
type Publisher interface {
	Publish(ctx context.Context, channel, partitionKey string, ev any) (messaging.Receipt, error)
}

// Integration はバックエンドサービスとの通信を担う。
// 読み込みはHTTP、書き込みはPublisher経由のイベント発行で行う。
type Integration struct {
	product        *httpclient.Client
	recommendation *httpclient.Client
	review         *httpclient.Client
	publisher      Publisher
	log            *logger.Logger
}

// NewIntegration は新しいIntegrationを生成する。
func NewIntegration(product, recommendation, review *httpclient.Client, publisher Publisher, log *logger.Logger) *Integration {
	return &Integration{
		product:        product,
		recommendation: recommendation,
		review:         review,
		publisher:      publisher,
		log:            log.With("component", "Integration"),
	}
}

// GetProduct は製品を取得する。
func (i *Integration) GetProduct(ctx context.Context, productID int) (api.Product, error) {
	var p api.Product
	if err := i.product.GetJSON(ctx, fmt.Sprintf("/product/%d", productID), &p); err != nil {
		return api.Product{}, i.classify(err)
	}
	return p, nil
}

// GetRecommendations は製品のレコメンデーションを取得する。
func (i *Integration) GetRecommendations(ctx context.Context, productID int) ([]api.Recommendation, error) {
	var recs []api.Recommendation
	if err := i.recommendation.GetJSON(ctx, fmt.Sprintf("/recommendation?productId=%d", productID), &recs); err != nil {
		return nil, i.classify(err)
	}
	return recs, nil
}

// GetReviews は製品のレビューを取得する。
func (i *Integration) GetReviews(ctx context.Context, productID int) ([]api.Review, error) {
	var reviews []api.Review
	if err := i.review.GetJSON(ctx, fmt.Sprintf("/review?productId=%d", productID), &reviews); err != nil {
		return nil, i.classify(err)
	}
	return reviews, nil
}

// CreateProduct は製品のCREATEイベントを発行する。
func (i *Integration) CreateProduct(ctx context.Context, p api.Product) (messaging.Receipt, error) {
	return i.publish(ctx, messaging.ChannelProducts, p.ProductID, event.NewCreate(p.ProductID, p))
}

// DeleteProduct は製品のDELETEイベントを発行する。
func (i *Integration) DeleteProduct(ctx context.Context, productID int) (messaging.Receipt, error) {
	return i.publish(ctx, messaging.ChannelProducts, productID, event.NewDelete[int, api.Product](productID))
}

// CreateRecommendation はレコメンデーションのCREATEイベントを発行する。
func (i *Integration) CreateRecommendation(ctx context.Context, r api.Recommendation) (messaging.Receipt, error) {
	return i.publish(ctx, messaging.ChannelRecommendations, r.ProductID, event.NewCreate(r.ProductID, r))
}

// DeleteRecommendations は製品のすべてのレコメンデーションを削除するDELETEイベントを発行する。
func (i *Integration) DeleteRecommendations(ctx context.Context, productID int) (messaging.Receipt, error) {
	return i.publish(ctx, messaging.ChannelRecommendations, productID, event.NewDelete[int, api.Recommendation](productID))
}

// CreateReview はレビューのCREATEイベントを発行する。
func (i *Integration) CreateReview(ctx context.Context, r api.Review) (messaging.Receipt, error) {
	return i.publish(ctx, messaging.ChannelReviews, r.ProductID, event.NewCreate(r.ProductID, r))
}

// DeleteReviews は製品のすべてのレビューを削除するDELETEイベントを発行する。
func (i *Integration) DeleteReviews(ctx context.Context, productID int) (messaging.Receipt, error) {
	return i.publish(ctx, messaging.ChannelReviews, productID, event.NewDelete[int, api.Review](productID))
}

// publish は製品IDをパーティションキーとしてイベントを発行する。
func (i *Integration) publish(ctx context.Context, channel string, productID int, ev any) (messaging.Receipt, error) {
	return i.publisher.Publish(ctx, channel, strconv.Itoa(productID), ev)
}

// classify は下流サービスの応答エラーをapperrの分類に変換する。
// 404はNotFound、422はInvalidInputとし、下流のメッセージをそのまま使う。
// それ以外はwarnログに状態と本文を残してDownstreamとする。
func (i *Integration) classify(err error) error {
	var se *httpclient.StatusError
	if !errors.As(err, &se) {
		i.log.Warn("下流サービスへの接続に失敗しました", "error", err)
		return apperr.Downstream(0, "", err)
	}

	switch se.StatusCode {
	case 404:
		return apperr.NotFound("%s", remoteMessage(se))
	case 422:
		return apperr.InvalidInput("%s", remoteMessage(se))
	default:
		i.log.Warn("下流サービスが想定外のステータスを返しました",
			"status", se.StatusCode, "url", se.URL, "body", string(se.Body))
		return apperr.Downstream(se.StatusCode, string(se.Body), err)
	}
}

// remoteMessage は下流のエラーボディからメッセージを取り出す。
// ボディが api.HTTPErrorInfo として読めない場合はエラー文字列を返す。
func remoteMessage(se *httpclient.StatusError) string {
	var info api.HTTPErrorInfo
	if err := json.Unmarshal(se.Body, &info); err != nil || info.Message == "" {
		return se.Error()
	}
	return info.Message
}
