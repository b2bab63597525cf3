package review

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

// Store はレビューの永続化を担う。
type Store struct {
	db *sql.DB
}

// NewStore は新しいStoreを生成する。
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Create はレビューを保存する。
func (s *Store) Create(ctx context.Context, r api.Review) (api.Review, error) {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO reviews (product_id, review_id, author, subject, content) VALUES (?, ?, ?, ?, ?)",
		r.ProductID, r.ReviewID, r.Author, r.Subject, r.Content)
	if err != nil {
		if storage.IsDuplicateKey(err) {
			return api.Review{}, apperr.InvalidInput(
				"Duplicate key, Product Id: %d, Review Id:%d", r.ProductID, r.ReviewID)
		}
		return api.Review{}, fmt.Errorf("レビューの保存に失敗: %w", err)
	}
	r.ServiceAddress = ""
	return r, nil
}

// ListByProduct は製品のレビューをレビューID順に返す。
func (s *Store) ListByProduct(ctx context.Context, productID int) ([]api.Review, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT product_id, review_id, author, subject, content
		 FROM reviews WHERE product_id = ? ORDER BY review_id`, productID)
	if err != nil {
		return nil, fmt.Errorf("レビューの取得に失敗: %w", err)
	}
	defer rows.Close()

	reviews := []api.Review{}
	for rows.Next() {
		var r api.Review
		if err := rows.Scan(&r.ProductID, &r.ReviewID, &r.Author, &r.Subject, &r.Content); err != nil {
			return nil, fmt.Errorf("レビューの読み込みに失敗: %w", err)
		}
		reviews = append(reviews, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("レビューの読み込みに失敗: %w", err)
	}
	return reviews, nil
}

// DeleteByProduct は製品のレビューをすべて削除する。
func (s *Store) DeleteByProduct(ctx context.Context, productID int) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM reviews WHERE product_id = ?", productID); err != nil {
		return fmt.Errorf("レビューの削除に失敗: %w", err)
	}
	return nil
}
