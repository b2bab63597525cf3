// Package middleware はGinベースのHTTP APIで使用する共通ミドルウェアを提供する。
//
// パニックリカバリ、アクセスログ、CORS、JWTによるスコープ検証、
// apperrの分類に基づくエラーレスポンスの描画を含む。
// エラーレスポンスのボディは全サービスで api.HTTPErrorInfo に統一する。
package middleware
