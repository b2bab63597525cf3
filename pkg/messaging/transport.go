package messaging

import (
	"context"
	"fmt"
	"hash/fnv"
)

// バックエンドサービスごとのチャネル名。
const (
	ChannelProducts        = "products"
	ChannelRecommendations = "recommendations"
	ChannelReviews         = "reviews"
)

// Message はトランスポートへ渡す1件のメッセージ。
type Message struct {
	// Channel は宛先のチャネル名。
	Channel string
	// PartitionKey は順序を保証する単位となるキー。
	PartitionKey string
	// Partition はPartitionKeyから求めたパーティション番号。
	Partition int
	// Payload はシリアライズ済みのイベント。
	Payload []byte
}

// Transport はメッセージを配送基盤へ渡す。
// 戻り値のメッセージIDは配送基盤が受理した証跡として使う。
type Transport interface {
	Send(ctx context.Context, msg Message) (string, error)
	Close() error
}

// PartitionFor はパーティションキーをFNV-1aでハッシュしてパーティション番号を返す。
func PartitionFor(key string, count int) int {
	if count <= 1 {
		return 0
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(count))
}

// StreamName はチャネルとパーティションからストリーム名を返す（例: "products.1"）。
func StreamName(channel string, partition int) string {
	return fmt.Sprintf("%s.%d", channel, partition)
}
