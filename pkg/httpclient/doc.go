// Package httpclient はサービス間のHTTP通信を行うクライアントを提供する。
//
// product-compositeサービスが各バックエンドサービスのAPIを呼び出す際に使用する。
// 2xx以外の応答はStatusErrorとして返し、その解釈（404/422の分類など）は呼び出し側に任せる。
// このレイヤーではリトライを行わない。
package httpclient
