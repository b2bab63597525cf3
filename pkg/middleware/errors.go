package middleware

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/productcomposite/pkg/api"
	"github.com/nao1215/productcomposite/pkg/apperr"
	"github.com/nao1215/productcomposite/pkg/logger"
)

// WriteError は api.HTTPErrorInfo 形式のエラーレスポンスを書き込み、処理を中断する。
func WriteError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, api.HTTPErrorInfo{
		Timestamp: time.Now().UTC(),
		Path:      c.Request.URL.Path,
		Message:   message,
	})
}

// ErrorHandler はハンドラーが c.Error で登録したエラーをHTTPレスポンスに変換する。
// ステータスはapperrの分類から決まり、メッセージはエラー文字列をそのまま使う。
func ErrorHandler(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err
		status := apperr.HTTPStatus(err)

		var appErr *apperr.Error
		switch {
		case errors.As(err, &appErr) && appErr.Kind == apperr.KindDownstream:
			log.Warn("下流サービスの呼び出しに失敗しました",
				"path", c.Request.URL.Path, "status", appErr.Status, "body", appErr.Body, "error", err)
		case status >= http.StatusInternalServerError:
			log.Error("リクエストの処理に失敗しました", "path", c.Request.URL.Path, "error", err)
		default:
			log.Debug("リクエストを拒否しました", "path", c.Request.URL.Path, "status", status, "error", err)
		}

		WriteError(c, status, err.Error())
	}
}
