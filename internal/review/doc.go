// Package review はレビューサービスを実装する。
//
// レビューを製品IDとレビューIDの組で管理し、reviewsチャネルの
// CREATE/DELETEイベントを適用する。
package review
