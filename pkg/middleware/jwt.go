package middleware

import (
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// 製品APIのスコープ。
const (
	ScopeProductRead  = "product:read"
	ScopeProductWrite = "product:write"
)

// tokenIssuer はGenerateJWTが設定する発行者。
const tokenIssuer = "product-composite"

// JWTClaims はJWTトークンのクレーム（ペイロード）を表す。
type JWTClaims struct {
	jwt.RegisteredClaims
	// Scope は空白区切りのスコープ（OAuth2形式）。
	Scope string `json:"scope"`
}

// Scopes はスコープをスライスで返す。
func (c *JWTClaims) Scopes() []string {
	return strings.Fields(c.Scope)
}

// GenerateJWT はサブジェクトとスコープからJWTトークンを生成する。
// 開発環境やテストでトークンを払い出すために使う。
func GenerateJWT(secret, subject string, ttl time.Duration, scopes ...string) (string, error) {
	now := time.Now()
	claims := JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
		},
		Scope: strings.Join(scopes, " "),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("JWTトークンの署名に失敗: %w", err)
	}
	return signed, nil
}

// JWTAuth はBearerトークンを検証し、requiredのスコープをすべて持つか確認するGinミドルウェアを返す。
// 検証に成功した場合、コンテキストに "subject" を設定する。
func JWTAuth(secret string, required ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			WriteError(c, http.StatusUnauthorized, "Authorizationヘッダーが必要です")
			return
		}

		tokenString, found := strings.CutPrefix(authHeader, "Bearer ")
		if !found {
			WriteError(c, http.StatusUnauthorized, "Bearer トークン形式が不正です")
			return
		}

		claims := &JWTClaims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
			return []byte(secret), nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !token.Valid {
			WriteError(c, http.StatusUnauthorized, "トークンが無効です")
			return
		}

		granted := claims.Scopes()
		for _, s := range required {
			if !slices.Contains(granted, s) {
				WriteError(c, http.StatusForbidden, fmt.Sprintf("スコープ %s が必要です", s))
				return
			}
		}

		c.Set("subject", claims.Subject)
		c.Next()
	}
}

// GetSubject はGinコンテキストから認証済みのサブジェクトを取得する。
// JWTAuthミドルウェアが事前に適用されている必要がある。
func GetSubject(c *gin.Context) string {
	v, _ := c.Get("subject")
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
