package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/nao1215/productcomposite/pkg/api"
	"github.com/nao1215/productcomposite/pkg/apperr"
	"github.com/nao1215/productcomposite/pkg/httpclient"
)

// HTTP経由で配送する際のヘッダー。
const (
	HeaderPartitionKey = "X-Partition-Key"
	HeaderMessageID    = "X-Message-ID"
	HeaderPartition    = "X-Partition"
)

// HTTPEndpoint はチャネルに対応するイベント受信エンドポイント。
type HTTPEndpoint struct {
	// BaseURL はバックエンドサービスのベースURL。
	BaseURL string
	// Path はイベント受信パス（例: "/product/event"）。
	Path string
}

// HTTPTransport はバックエンドサービスのイベントエンドポイントへPOSTするトランスポート。
// ブローカーを置かない構成で使用する。受理はサービスが2xxを返した時点とみなす。
// 422はイベントが入力不正で拒否されたものとしてInvalidInputに変換する。
type HTTPTransport struct {
	clients map[string]*httpclient.Client
	paths   map[string]string
}

// NewHTTPTransport はチャネルごとのエンドポイントからトランスポートを生成する。
func NewHTTPTransport(endpoints map[string]HTTPEndpoint, opts ...httpclient.Option) *HTTPTransport {
	t := &HTTPTransport{
		clients: make(map[string]*httpclient.Client, len(endpoints)),
		paths:   make(map[string]string, len(endpoints)),
	}
	for ch, ep := range endpoints {
		t.clients[ch] = httpclient.New(ep.BaseURL, opts...)
		t.paths[ch] = ep.Path
	}
	return t
}

// Send はペイロードをそのままPOSTし、発行側で採番したメッセージIDを返す。
func (t *HTTPTransport) Send(ctx context.Context, msg Message) (string, error) {
	client, ok := t.clients[msg.Channel]
	if !ok {
		return "", fmt.Errorf("チャネル %q のエンドポイントが設定されていません", msg.Channel)
	}

	id := uuid.New().String()
	headers := map[string]string{
		HeaderPartitionKey: msg.PartitionKey,
		HeaderPartition:    strconv.Itoa(msg.Partition),
		HeaderMessageID:    id,
	}
	if err := client.PostJSONWithHeaders(ctx, t.paths[msg.Channel], json.RawMessage(msg.Payload), headers); err != nil {
		// 同期的に処理するエンドポイントは重複キーを422で返す
		var se *httpclient.StatusError
		if errors.As(err, &se) && se.StatusCode == http.StatusUnprocessableEntity {
			var info api.HTTPErrorInfo
			if json.Unmarshal(se.Body, &info) == nil && info.Message != "" {
				return "", apperr.InvalidInput("%s", info.Message)
			}
		}
		return "", fmt.Errorf("イベントの送信に失敗 (%s): %w", msg.Channel, err)
	}
	return id, nil
}

// Close は何もしない。
func (t *HTTPTransport) Close() error { return nil }
