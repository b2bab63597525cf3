// Package apperr はサービス全体で共有するエラー分類を提供する。
//
// 下流サービスの応答やイベント発行の失敗をKindで分類し、
// HTTPステータスへの変換規則を一箇所にまとめる。
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind はエラーの分類を表す。
type Kind int

const (
	// KindInvalidInput はクライアントが渡した値が前提条件を満たさないことを表す（422）。
	KindInvalidInput Kind = iota + 1
	// KindNotFound は参照したルートエンティティが存在しないことを表す（404）。
	KindNotFound
	// KindDownstream は下流サービスとの通信で上記以外の失敗が起きたことを表す。
	KindDownstream
	// KindDispatch は非同期イベントの発行が受理されなかったことを表す。
	KindDispatch
)

// String はKindの名前を返す。
func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "InvalidInput"
	case KindNotFound:
		return "NotFound"
	case KindDownstream:
		return "DownstreamUnavailable"
	case KindDispatch:
		return "EventDispatchFailure"
	default:
		return "Unknown"
	}
}

// Error は分類済みのアプリケーションエラー。
type Error struct {
	// Kind はエラーの分類。
	Kind Kind
	// Message は利用者に返すメッセージ。
	Message string
	// Status は下流サービスが返したHTTPステータス。不明な場合は0。
	Status int
	// Body は下流サービスが返した生のレスポンスボディ（診断用）。
	Body string
	// Err は原因となったエラー。
	Err error
}

// Error はエラーメッセージを返す。
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Kind.String()
}

// Unwrap は原因となったエラーを返す。
func (e *Error) Unwrap() error { return e.Err }

// InvalidInput は入力不正を表すエラーを生成する。
func InvalidInput(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidInput, Message: fmt.Sprintf(format, args...)}
}

// NotFound はエンティティ不在を表すエラーを生成する。
func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// Downstream は下流サービスの失敗を表すエラーを生成する。
// statusとbodyは下流の応答をそのまま保持する。
func Downstream(status int, body string, err error) *Error {
	return &Error{Kind: KindDownstream, Status: status, Body: body, Err: err}
}

// Dispatch はイベント発行の失敗を表すエラーを生成する。
func Dispatch(err error, format string, args ...any) *Error {
	msg := fmt.Sprintf(format, args...)
	if err != nil {
		msg = fmt.Sprintf("%s: %v", msg, err)
	}
	return &Error{Kind: KindDispatch, Message: msg, Err: err}
}

// KindOf はエラーチェーンからKindを取り出す。分類されていない場合は0を返す。
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// IsInvalidInput はerrが入力不正かどうかを判定する。
func IsInvalidInput(err error) bool { return KindOf(err) == KindInvalidInput }

// IsNotFound はerrがエンティティ不在かどうかを判定する。
func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }

// IsDownstream はerrが下流サービスの失敗かどうかを判定する。
func IsDownstream(err error) bool { return KindOf(err) == KindDownstream }

// IsDispatch はerrがイベント発行の失敗かどうかを判定する。
func IsDispatch(err error) bool { return KindOf(err) == KindDispatch }

// HTTPStatus はerrを返すべきHTTPステータスに変換する。
// 下流サービスの失敗は、可能な限り下流のステータスをそのまま使う。
func HTTPStatus(err error) int {
	var e *Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError
	}
	switch e.Kind {
	case KindInvalidInput:
		return http.StatusUnprocessableEntity
	case KindNotFound:
		return http.StatusNotFound
	case KindDownstream:
		if e.Status >= http.StatusBadRequest {
			return e.Status
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
