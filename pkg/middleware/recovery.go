package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/productcomposite/pkg/logger"
)

// Recovery はパニックからの回復を行うGinミドルウェアを返す。
// パニック発生時に内容をログに出力し、500エラーを返す。
func Recovery(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("パニックが発生しました", "method", c.Request.Method, "path", c.Request.URL.Path, "panic", r)
				WriteError(c, http.StatusInternalServerError, "内部サーバーエラーが発生しました")
			}
		}()
		c.Next()
	}
}
