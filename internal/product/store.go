package product

import (
	"context"
	"database/sql"
	"embed"
	"errors"
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

// Store は製品の永続化を担う。
type Store struct {
	db *sql.DB
}

// NewStore は新しいStoreを生成する。
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Create は製品を保存する。同じ製品IDが存在する場合はInvalidInputを返す。
func (s *Store) Create(ctx context.Context, p api.Product) (api.Product, error) {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO products (product_id, name, weight) VALUES (?, ?, ?)",
		p.ProductID, p.Name, p.Weight)
	if err != nil {
		if storage.IsDuplicateKey(err) {
			return api.Product{}, apperr.InvalidInput("Duplicate key, Product Id: %d", p.ProductID)
		}
		return api.Product{}, fmt.Errorf("製品の保存に失敗: %w", err)
	}
	return api.Product{ProductID: p.ProductID, Name: p.Name, Weight: p.Weight}, nil
}

// Get は製品を取得する。存在しない場合はNotFoundを返す。
func (s *Store) Get(ctx context.Context, productID int) (api.Product, error) {
	var p api.Product
	err := s.db.QueryRowContext(ctx,
		"SELECT product_id, name, weight FROM products WHERE product_id = ?", productID).
		Scan(&p.ProductID, &p.Name, &p.Weight)
	if errors.Is(err, sql.ErrNoRows) {
		return api.Product{}, apperr.NotFound("No product found for productId: %d", productID)
	}
	if err != nil {
		return api.Product{}, fmt.Errorf("製品の取得に失敗: %w", err)
	}
	return p, nil
}

// Delete は製品を削除する。存在しない場合も成功する。
func (s *Store) Delete(ctx context.Context, productID int) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM products WHERE product_id = ?", productID); err != nil {
		return fmt.Errorf("製品の削除に失敗: %w", err)
	}
	return nil
}
