package messaging

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nao1215/productcomposite/pkg/logger"
)

// Delivery はコンシューマが受信した1件のメッセージ。
type Delivery struct {
	Stream       string
	ID           string
	PartitionKey string
	Payload      []byte
}

// Handler は受信したメッセージを処理する。
// エラーを返したメッセージはACKされず、ペンディングのまま残る。
type Handler func(ctx context.Context, d Delivery) error

// ConsumerConfig はコンシューマの設定。
type ConsumerConfig struct {
	// Channel は購読するチャネル名。
	Channel string
	// Group はコンシューマグループ名。空の場合は"<Channel>Group"。
	Group string
	// Name はグループ内のコンシューマ名。
	Name string
	// Partitions はこのインスタンスが担当するパーティション番号。
	Partitions []int
	// Count は1回の読み込みで取得する最大件数。
	Count int64
	// Block は新着を待つ時間。0の場合は2秒、負の値の場合は待たない。
	Block time.Duration
	// OnDelivered はACK後に呼ばれる。nilでもよい。
	OnDelivered func(Receipt)
}

// Consumer はRedis Streamsのコンシューマグループからメッセージを読み込んで処理する。
type Consumer struct {
	rdb     *redis.Client
	cfg     ConsumerConfig
	streams []string
	handler Handler
	log     *logger.Logger
}

// NewConsumer は新しいConsumerを生成する。
func NewConsumer(rdb *redis.Client, cfg ConsumerConfig, handler Handler, log *logger.Logger) *Consumer {
	if cfg.Group == "" {
		cfg.Group = cfg.Channel + "Group"
	}
	if cfg.Name == "" {
		cfg.Name = cfg.Group + "-consumer"
	}
	if len(cfg.Partitions) == 0 {
		cfg.Partitions = []int{0}
	}
	if cfg.Count <= 0 {
		cfg.Count = 16
	}
	if cfg.Block == 0 {
		cfg.Block = 2 * time.Second
	}

	streams := make([]string, 0, len(cfg.Partitions))
	for _, p := range cfg.Partitions {
		streams = append(streams, StreamName(cfg.Channel, p))
	}

	return &Consumer{
		rdb:     rdb,
		cfg:     cfg,
		streams: streams,
		handler: handler,
		log:     log.With("component", "Consumer", "channel", cfg.Channel, "group", cfg.Group),
	}
}

// Setup は担当ストリームにコンシューマグループを作成する。既に存在する場合は何もしない。
func (c *Consumer) Setup(ctx context.Context) error {
	for _, s := range c.streams {
		err := c.rdb.XGroupCreateMkStream(ctx, s, c.cfg.Group, "0").Err()
		if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
			return fmt.Errorf("コンシューマグループの作成に失敗 (%s): %w", s, err)
		}
	}
	return nil
}

// Run はctxが終了するまでメッセージの読み込みと処理を繰り返す。
func (c *Consumer) Run(ctx context.Context) error {
	if err := c.Setup(ctx); err != nil {
		return err
	}
	c.log.Info("コンシューマを開始します", "streams", c.streams)

	for {
		if ctx.Err() != nil {
			c.log.Info("コンシューマを停止しました")
			return nil
		}
		if _, err := c.PollOnce(ctx); err != nil {
			if ctx.Err() != nil {
				continue
			}
			c.log.Warn("メッセージの読み込みに失敗しました", "error", err)
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
		}
	}
}

// PollOnce は1回だけ読み込みを行い、処理してACKした件数を返す。
func (c *Consumer) PollOnce(ctx context.Context) (int, error) {
	args := make([]string, 0, len(c.streams)*2)
	args = append(args, c.streams...)
	for range c.streams {
		args = append(args, ">")
	}

	res, err := c.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.cfg.Group,
		Consumer: c.cfg.Name,
		Streams:  args,
		Count:    c.cfg.Count,
		Block:    c.cfg.Block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	acked := 0
	for _, stream := range res {
		for _, m := range stream.Messages {
			if c.process(ctx, stream.Stream, m) {
				acked++
			}
		}
	}
	return acked, nil
}

// process は1件のメッセージを処理し、成功した場合はACKする。
func (c *Consumer) process(ctx context.Context, stream string, m redis.XMessage) bool {
	payload, _ := m.Values[fieldPayload].(string)
	key, _ := m.Values[fieldPartitionKey].(string)

	d := Delivery{Stream: stream, ID: m.ID, PartitionKey: key, Payload: []byte(payload)}
	if err := c.handler(ctx, d); err != nil {
		c.log.Error("メッセージの処理に失敗しました", "stream", stream, "id", m.ID, "partitionKey", key, "error", err)
		return false
	}

	if err := c.rdb.XAck(ctx, stream, c.cfg.Group, m.ID).Err(); err != nil {
		c.log.Warn("ACKに失敗しました", "stream", stream, "id", m.ID, "error", err)
		return false
	}

	if c.cfg.OnDelivered != nil {
		c.cfg.OnDelivered(Receipt{
			State:        StateDelivered,
			Channel:      c.cfg.Channel,
			PartitionKey: key,
			Partition:    partitionOf(stream),
			MessageID:    m.ID,
			AcceptedAt:   time.Now().UTC(),
		})
	}
	return true
}

// partitionOf はストリーム名の末尾からパーティション番号を取り出す。
func partitionOf(stream string) int {
	i := strings.LastIndexByte(stream, '.')
	if i < 0 {
		return 0
	}
	n, err := strconv.Atoi(stream[i+1:])
	if err != nil {
		return 0
	}
	return n
}
