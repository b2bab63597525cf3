// Package storage はバックエンドサービスが使用するSQLiteの接続とマイグレーションを提供する。
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/pressly/goose/v3"
	"github.com/pressly/goose/v3/database"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/nao1215/productcomposite/pkg/logger"
)

// MemoryDSN はテストで使用するインメモリデータベースのパス。
const MemoryDSN = ":memory:"

// Open はSQLiteデータベースを開く。
// ファイルの場合はWALモードとビジータイムアウトを設定する。
// インメモリの場合は接続ごとに別のデータベースになるため、接続数を1に制限する。
func Open(path string) (*sql.DB, error) {
	dsn := path
	if path != MemoryDSN && !strings.HasPrefix(path, "file:") {
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}
	if path == MemoryDSN {
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("データベースへの疎通確認に失敗: %w", err)
	}
	return db, nil
}

// Migrate はfsys直下のgoose形式のSQLファイルを適用する。
// 適用済みのバージョンはスキップされる。
func Migrate(ctx context.Context, db *sql.DB, fsys fs.FS, log *logger.Logger) error {
	provider, err := goose.NewProvider(database.DialectSQLite3, db, fsys)
	if err != nil {
		return fmt.Errorf("マイグレーションの準備に失敗: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("マイグレーションの適用に失敗: %w", err)
	}
	for _, r := range results {
		log.Info("マイグレーションを適用しました", "version", r.Source.Version, "path", r.Source.Path, "duration", r.Duration)
	}
	return nil
}

// OpenAndMigrate はデータベースを開いてマイグレーションを適用する。
func OpenAndMigrate(ctx context.Context, path string, fsys fs.FS, log *logger.Logger) (*sql.DB, error) {
	db, err := Open(path)
	if err != nil {
		return nil, err
	}
	if err := Migrate(ctx, db, fsys, log); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// IsDuplicateKey は主キーまたは一意制約違反のエラーかどうかを判定する。
func IsDuplicateKey(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	switch sqliteErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
		return true
	case sqlite3.SQLITE_CONSTRAINT:
		// 拡張コードが無効な接続では基本コードのみが返る
		return strings.Contains(sqliteErr.Error(), "UNIQUE constraint failed")
	}
	return false
}
