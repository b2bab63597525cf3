package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/nao1215/productcomposite/pkg/api"
)

// testSecret はテスト用のJWTシークレット。
const testSecret = "test-secret-key-for-unit-tests"

// newAuthRouter はproduct:writeを要求するテスト用ルーターを生成する。
func newAuthRouter(subject *string) *gin.Engine {
	router := gin.New()
	router.Use(JWTAuth(testSecret, ScopeProductWrite))
	router.POST("/product-composite", func(c *gin.Context) {
		if subject != nil {
			*subject = GetSubject(c)
		}
		c.Status(http.StatusAccepted)
	})
	return router
}

// doAuth はAuthorizationヘッダー付きでリクエストを送信する。
func doAuth(router *gin.Engine, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/product-composite", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// errorMessage はレスポンスボディからエラーメッセージを取り出す。
func errorMessage(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()

	var body api.HTTPErrorInfo
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("レスポンスボディのパースに失敗: %v", err)
	}
	return body.Message
}

// TestGenerateJWT はGenerateJWT関数を検証する。
func TestGenerateJWT(t *testing.T) {
	t.Parallel()

	before := time.Now()
	tokenStr, err := GenerateJWT(testSecret, "writer", time.Hour, ScopeProductRead, ScopeProductWrite)
	if err != nil {
		t.Fatalf("GenerateJWT()でエラーが発生: %v", err)
	}

	claims := &JWTClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(_ *jwt.Token) (any, error) {
		return []byte(testSecret), nil
	})
	if err != nil || !token.Valid {
		t.Fatalf("トークンのパースに失敗: %v", err)
	}

	if claims.Subject != "writer" {
		t.Errorf("Subject = %q, want %q", claims.Subject, "writer")
	}
	if claims.Issuer != "product-composite" {
		t.Errorf("Issuer = %q, want %q", claims.Issuer, "product-composite")
	}
	if claims.Scope != "product:read product:write" {
		t.Errorf("Scope = %q", claims.Scope)
	}
	expected := before.Add(time.Hour)
	if claims.ExpiresAt.Time.Before(expected.Add(-time.Minute)) || claims.ExpiresAt.Time.After(expected.Add(time.Minute)) {
		t.Errorf("ExpiresAt = %v, want about %v", claims.ExpiresAt.Time, expected)
	}
}

// TestJWTAuth はJWTAuthミドルウェアを検証する。
func TestJWTAuth(t *testing.T) {
	t.Parallel()

	t.Run("必要なスコープを持つトークンでリクエストが成功すること", func(t *testing.T) {
		t.Parallel()

		tokenStr, err := GenerateJWT(testSecret, "writer", time.Hour, ScopeProductWrite)
		if err != nil {
			t.Fatalf("GenerateJWT()でエラーが発生: %v", err)
		}

		var subject string
		w := doAuth(newAuthRouter(&subject), "Bearer "+tokenStr)

		if w.Code != http.StatusAccepted {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusAccepted)
		}
		if subject != "writer" {
			t.Errorf("subject = %q, want %q", subject, "writer")
		}
	})

	t.Run("スコープが不足している場合403が返ること", func(t *testing.T) {
		t.Parallel()

		tokenStr, err := GenerateJWT(testSecret, "reader", time.Hour, ScopeProductRead)
		if err != nil {
			t.Fatalf("GenerateJWT()でエラーが発生: %v", err)
		}

		w := doAuth(newAuthRouter(nil), "Bearer "+tokenStr)

		if w.Code != http.StatusForbidden {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusForbidden)
		}
		if got := errorMessage(t, w); got != "スコープ product:write が必要です" {
			t.Errorf("message = %q", got)
		}
	})

	t.Run("Authorizationヘッダーが無い場合401が返ること", func(t *testing.T) {
		t.Parallel()

		w := doAuth(newAuthRouter(nil), "")

		if w.Code != http.StatusUnauthorized {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusUnauthorized)
		}
		if got := errorMessage(t, w); got != "Authorizationヘッダーが必要です" {
			t.Errorf("message = %q, want %q", got, "Authorizationヘッダーが必要です")
		}
	})

	t.Run("Bearer接頭辞が無い場合401が返ること", func(t *testing.T) {
		t.Parallel()

		w := doAuth(newAuthRouter(nil), "Token abc")

		if w.Code != http.StatusUnauthorized {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusUnauthorized)
		}
		if got := errorMessage(t, w); got != "Bearer トークン形式が不正です" {
			t.Errorf("message = %q, want %q", got, "Bearer トークン形式が不正です")
		}
	})

	t.Run("異なるシークレットで署名されたトークンで401が返ること", func(t *testing.T) {
		t.Parallel()

		tokenStr, err := GenerateJWT("different-secret", "writer", time.Hour, ScopeProductWrite)
		if err != nil {
			t.Fatalf("GenerateJWT()でエラーが発生: %v", err)
		}

		w := doAuth(newAuthRouter(nil), "Bearer "+tokenStr)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusUnauthorized)
		}
	})

	t.Run("期限切れトークンで401が返ること", func(t *testing.T) {
		t.Parallel()

		tokenStr, err := GenerateJWT(testSecret, "writer", -time.Hour, ScopeProductWrite)
		if err != nil {
			t.Fatalf("GenerateJWT()でエラーが発生: %v", err)
		}

		w := doAuth(newAuthRouter(nil), "Bearer "+tokenStr)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusUnauthorized)
		}
	})

	t.Run("HS256以外のアルゴリズムは拒否されること", func(t *testing.T) {
		t.Parallel()

		token := jwt.NewWithClaims(jwt.SigningMethodHS512, JWTClaims{
			RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
			Scope:            ScopeProductWrite,
		})
		tokenStr, err := token.SignedString([]byte(testSecret))
		if err != nil {
			t.Fatalf("トークンの署名に失敗: %v", err)
		}

		w := doAuth(newAuthRouter(nil), "Bearer "+tokenStr)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusUnauthorized)
		}
	})
}
