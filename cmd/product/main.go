// 製品サービスのエントリポイント。
// 製品をSQLiteに保存し、productsチャネルのイベントを適用する。
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/nao1215/productcomposite/internal/product"
	"github.com/nao1215/productcomposite/pkg/config"
	"github.com/nao1215/productcomposite/pkg/logger"
	"github.com/nao1215/productcomposite/pkg/messaging"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		log.Fatalf(".envの読み込みに失敗: %v", err)
	}
	cfg := config.LoadBacking("product", "7001", messaging.ChannelProducts)

	lg, err := logger.New(logger.Options{Mode: cfg.Logging.Mode, Level: cfg.Logging.Level, File: cfg.Logging.File})
	if err != nil {
		log.Fatalf("ロガーの初期化に失敗: %v", err)
	}
	defer lg.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server, err := product.NewServer(ctx, cfg, lg)
	if err != nil {
		lg.Fatal("productサーバーの初期化に失敗", "error", err)
	}

	lg.Info("productサービスを起動します",
		"port", cfg.Port,
		"db", cfg.DBPath,
		"messaging", cfg.MessagingEnabled,
		"partitions", cfg.Partitions(),
	)
	if err := server.Run(ctx); err != nil {
		lg.Fatal("productサービスの実行に失敗", "error", err)
	}
}
