package messaging

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis Streamsのエントリに格納するフィールド名。
const (
	fieldPayload      = "payload"
	fieldPartitionKey = "partitionKey"
)

// NewRedisClient はRedisクライアントを生成し、疎通を確認する。
func NewRedisClient(ctx context.Context, addr string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

// RedisStreamTransport はRedis Streamsへメッセージを追加するトランスポート。
// ストリーム名は"<チャネル>.<パーティション>"。
type RedisStreamTransport struct {
	rdb *redis.Client
	// maxLen はストリームの概算最大長。0の場合は制限しない。
	maxLen int64
}

// NewRedisStreamTransport は既存のRedisクライアントからトランスポートを生成する。
func NewRedisStreamTransport(rdb *redis.Client, maxLen int64) *RedisStreamTransport {
	return &RedisStreamTransport{rdb: rdb, maxLen: maxLen}
}

// Send はメッセージをXADDし、採番されたエントリIDを返す。
func (t *RedisStreamTransport) Send(ctx context.Context, msg Message) (string, error) {
	args := &redis.XAddArgs{
		Stream: StreamName(msg.Channel, msg.Partition),
		Values: map[string]any{
			fieldPayload:      string(msg.Payload),
			fieldPartitionKey: msg.PartitionKey,
		},
	}
	if t.maxLen > 0 {
		args.MaxLen = t.maxLen
		args.Approx = true
	}

	id, err := t.rdb.XAdd(ctx, args).Result()
	if err != nil {
		return "", fmt.Errorf("XADD %s: %w", args.Stream, err)
	}
	return id, nil
}

// Close はRedisクライアントを閉じる。
func (t *RedisStreamTransport) Close() error {
	if t == nil || t.rdb == nil {
		return nil
	}
	return t.rdb.Close()
}
