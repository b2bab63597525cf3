package composite

import "github.com/nao1215/productcomposite/pkg/api"

// ComposeAggregate は製品・レコメンデーション・レビューから集約を組み立てる。
// サービスアドレスは各リストの先頭要素のものを使い、空の場合は空文字とする。
func ComposeAggregate(product api.Product, recs []api.Recommendation, reviews []api.Review, compositeAddress string) api.ProductAggregate {
	recSummaries := make([]api.RecommendationSummary, 0, len(recs))
	for _, r := range recs {
		recSummaries = append(recSummaries, api.RecommendationSummary{
			RecommendationID: r.RecommendationID,
			Author:           r.Author,
			Rate:             r.Rate,
			Content:          r.Content,
		})
	}

	reviewSummaries := make([]api.ReviewSummary, 0, len(reviews))
	for _, r := range reviews {
		reviewSummaries = append(reviewSummaries, api.ReviewSummary{
			ReviewID: r.ReviewID,
			Author:   r.Author,
			Subject:  r.Subject,
			Content:  r.Content,
		})
	}

	addrs := &api.ServiceAddresses{
		Composite: compositeAddress,
		Product:   product.ServiceAddress,
	}
	if len(recs) > 0 {
		addrs.Recommendation = recs[0].ServiceAddress
	}
	if len(reviews) > 0 {
		addrs.Review = reviews[0].ServiceAddress
	}

	return api.ProductAggregate{
		ProductID:        product.ProductID,
		Name:             product.Name,
		Weight:           product.Weight,
		Recommendations:  recSummaries,
		Reviews:          reviewSummaries,
		ServiceAddresses: addrs,
	}
}

// SplitAggregate は集約をエンティティ単位に分解する。
// 各要素のProductIDは集約のものに揃え、サービスアドレスは設定しない。
func SplitAggregate(agg api.ProductAggregate) (api.Product, []api.Recommendation, []api.Review) {
	product := api.Product{
		ProductID: agg.ProductID,
		Name:      agg.Name,
		Weight:    agg.Weight,
	}

	recs := make([]api.Recommendation, 0, len(agg.Recommendations))
	for _, r := range agg.Recommendations {
		recs = append(recs, api.Recommendation{
			ProductID:        agg.ProductID,
			RecommendationID: r.RecommendationID,
			Author:           r.Author,
			Rate:             r.Rate,
			Content:          r.Content,
		})
	}

	reviews := make([]api.Review, 0, len(agg.Reviews))
	for _, r := range agg.Reviews {
		reviews = append(reviews, api.Review{
			ProductID: agg.ProductID,
			ReviewID:  r.ReviewID,
			Author:    r.Author,
			Subject:   r.Subject,
			Content:   r.Content,
		})
	}

	return product, recs, reviews
}
