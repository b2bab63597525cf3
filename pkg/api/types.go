package api

import "time"

// Product はproductサービスが所有する商品の基本情報。
type Product struct {
	// ProductID は商品の識別子。正の整数でなければならない。
	ProductID int `json:"productId"`
	// Name は商品名。
	Name string `json:"name"`
	// Weight は商品の重量。
	Weight int `json:"weight"`
	// ServiceAddress は応答したproductサービスインスタンスのアドレス（診断用）。
	ServiceAddress string `json:"serviceAddress,omitempty"`
}

// Recommendation はrecommendationサービスが所有するおすすめ情報。
type Recommendation struct {
	// ProductID は対象商品の識別子。
	ProductID int `json:"productId"`
	// RecommendationID は商品内でのおすすめの識別子。
	RecommendationID int `json:"recommendationId"`
	// Author は投稿者名。
	Author string `json:"author"`
	// Rate は評価値。
	Rate int `json:"rate"`
	// Content は本文。
	Content string `json:"content"`
	// ServiceAddress は応答したrecommendationサービスインスタンスのアドレス（診断用）。
	ServiceAddress string `json:"serviceAddress,omitempty"`
}

// Review はreviewサービスが所有するレビュー。
type Review struct {
	// ProductID は対象商品の識別子。
	ProductID int `json:"productId"`
	// ReviewID は商品内でのレビューの識別子。
	ReviewID int `json:"reviewId"`
	// Author は投稿者名。
	Author string `json:"author"`
	// Subject は件名。
	Subject string `json:"subject"`
	// Content は本文。
	Content string `json:"content"`
	// ServiceAddress は応答したreviewサービスインスタンスのアドレス（診断用）。
	ServiceAddress string `json:"serviceAddress,omitempty"`
}

// RecommendationSummary は集約ビューに含まれるおすすめの要約。
// RecommendationからproductIDとserviceAddressを除いたもの。
type RecommendationSummary struct {
	RecommendationID int    `json:"recommendationId"`
	Author           string `json:"author"`
	Rate             int    `json:"rate"`
	Content          string `json:"content"`
}

// ReviewSummary は集約ビューに含まれるレビューの要約。
type ReviewSummary struct {
	ReviewID int    `json:"reviewId"`
	Author   string `json:"author"`
	Subject  string `json:"subject"`
	Content  string `json:"content"`
}

// ServiceAddresses は集約ビューの生成に関わった各サービスインスタンスのアドレス。
// 該当サービスが0件を返した場合は空文字列になる。
type ServiceAddresses struct {
	// Composite はproduct-compositeサービスのアドレス。
	Composite string `json:"cmp"`
	// Product はproductサービスのアドレス。
	Product string `json:"pro"`
	// Review はreviewサービスのアドレス。
	Review string `json:"rev"`
	// Recommendation はrecommendationサービスのアドレス。
	Recommendation string `json:"rec"`
}

// ProductAggregate は商品・おすすめ・レビューを統合した読み取り専用ビュー。
// リクエストごとに生成され、永続化されることはない。
type ProductAggregate struct {
	// ProductID は商品の識別子。正の整数でなければならない。
	ProductID int `json:"productId"`
	// Name は商品名。
	Name string `json:"name"`
	// Weight は商品の重量。
	Weight int `json:"weight"`
	// Recommendations はおすすめの要約一覧。バックエンドが返した順序を保持する。
	Recommendations []RecommendationSummary `json:"recommendations"`
	// Reviews はレビューの要約一覧。バックエンドが返した順序を保持する。
	Reviews []ReviewSummary `json:"reviews"`
	// ServiceAddresses は応答した各サービスのアドレス。
	ServiceAddresses *ServiceAddresses `json:"serviceAddresses,omitempty"`
}

// HTTPErrorInfo は全サービス共通のエラーレスポンスボディ。
// HTTPステータスはステータスラインで伝え、ボディには含めない。
type HTTPErrorInfo struct {
	// Timestamp はエラーが発生した日時。
	Timestamp time.Time `json:"timestamp"`
	// Path はリクエストパス。
	Path string `json:"path"`
	// Message はエラーメッセージ。
	Message string `json:"message"`
}
