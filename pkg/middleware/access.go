package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/productcomposite/pkg/logger"
)

// RequestLogger はリクエストごとに1行のアクセスログを出力するGinミドルウェアを返す。
// /healthへのアクセスはdebugレベルで出力する。
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		kv := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"clientIp", c.ClientIP(),
		}
		if c.FullPath() == "/health" {
			log.Debug("request", kv...)
			return
		}
		log.Info("request", kv...)
	}
}
