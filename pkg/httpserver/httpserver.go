// Package httpserver はGinのルーターをグレースフルシャットダウン付きで起動する。
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nao1215/productcomposite/pkg/logger"
)

// ShutdownTimeout は停止時に処理中のリクエストを待つ時間。
const ShutdownTimeout = 10 * time.Second

// Serve はポートでハンドラーを公開し、ctxが終了したら処理中のリクエストを待って停止する。
// ctxの終了による停止ではnilを返す。
func Serve(ctx context.Context, port string, handler http.Handler, log *logger.Logger) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	log.Info("HTTPサーバーを起動しました", "port", port)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("HTTPサーバーの起動に失敗: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTPサーバーの停止に失敗: %w", err)
	}
	log.Info("HTTPサーバーを停止しました", "port", port)
	return nil
}
