// product-compositeサービスのエントリポイント。
// product・recommendation・reviewの各サービスから集約ビューを組み立て、
// 集約コマンドをエンティティ単位のイベントに分解して各チャネルへ発行する。
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/nao1215/productcomposite/internal/composite"
	"github.com/nao1215/productcomposite/pkg/config"
	"github.com/nao1215/productcomposite/pkg/logger"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		log.Fatalf(".envの読み込みに失敗: %v", err)
	}
	cfg := composite.LoadConfig()

	lg, err := logger.New(logger.Options{Mode: cfg.Logging.Mode, Level: cfg.Logging.Level, File: cfg.Logging.File})
	if err != nil {
		log.Fatalf("ロガーの初期化に失敗: %v", err)
	}
	defer lg.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server, err := composite.NewServer(ctx, cfg, lg)
	if err != nil {
		lg.Fatal("product-compositeサーバーの初期化に失敗", "error", err)
	}

	lg.Info("product-compositeサービスを起動します",
		"port", cfg.Port,
		"transport", cfg.Messaging.Transport,
		"partitions", cfg.Messaging.PartitionCount,
	)
	if err := server.Run(ctx); err != nil {
		lg.Fatal("product-compositeサービスの実行に失敗", "error", err)
	}
}
