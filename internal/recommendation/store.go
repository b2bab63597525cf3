package recommendation

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"

	"github.com/nao1215/productcomposite/pkg/api"
	"github.com/nao1215/productcomposite/pkg/apperr"
	"github.com/nao1215/productcomposite/pkg/storage"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migrations はgoose形式のマイグレーションファイルを返す。
func Migrations() fs.FS {
	sub, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

// Store はおすすめの永続化を担う。
type Store struct {
	db *sql.DB
}

// NewStore は新しいStoreを生成する。
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Create はおすすめを保存する。製品IDとおすすめIDの組が重複する場合はInvalidInputを返す。
func (s *Store) Create(ctx context.Context, r api.Recommendation) (api.Recommendation, error) {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO recommendations (product_id, recommendation_id, author, rate, content) VALUES (?, ?, ?, ?, ?)",
		r.ProductID, r.RecommendationID, r.Author, r.Rate, r.Content)
	if err != nil {
		if storage.IsDuplicateKey(err) {
			return api.Recommendation{}, apperr.InvalidInput(
				"Duplicate key, Product Id: %d, Recommendation Id:%d", r.ProductID, r.RecommendationID)
		}
		return api.Recommendation{}, fmt.Errorf("おすすめの保存に失敗: %w", err)
	}
	r.ServiceAddress = ""
	return r, nil
}

// ListByProduct は製品のおすすめをおすすめID順に返す。存在しない場合は空スライス。
func (s *Store) ListByProduct(ctx context.Context, productID int) ([]api.Recommendation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT product_id, recommendation_id, author, rate, content
		 FROM recommendations WHERE product_id = ? ORDER BY recommendation_id`, productID)
	if err != nil {
		return nil, fmt.Errorf("おすすめの取得に失敗: %w", err)
	}
	defer rows.Close()

	recs := []api.Recommendation{}
	for rows.Next() {
		var r api.Recommendation
		if err := rows.Scan(&r.ProductID, &r.RecommendationID, &r.Author, &r.Rate, &r.Content); err != nil {
			return nil, fmt.Errorf("おすすめの読み込みに失敗: %w", err)
		}
		recs = append(recs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("おすすめの読み込みに失敗: %w", err)
	}
	return recs, nil
}

// DeleteByProduct は製品のおすすめをすべて削除する。存在しない場合も成功する。
func (s *Store) DeleteByProduct(ctx context.Context, productID int) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM recommendations WHERE product_id = ?", productID); err != nil {
		return fmt.Errorf("おすすめの削除に失敗: %w", err)
	}
	return nil
}
