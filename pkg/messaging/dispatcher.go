package messaging

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nao1215/productcomposite/pkg/apperr"
	"github.com/nao1215/productcomposite/pkg/logger"
)

// DeliveryState はメッセージの配送状態。
type DeliveryState int

const (
	// StateAccepted はトランスポートが受理した状態。発行側が観測できるのはここまで。
	StateAccepted DeliveryState = iota + 1
	// StateDelivered はコンシューマが処理してACKした状態。
	StateDelivered
)

// String は配送状態の名前を返す。
func (s DeliveryState) String() string {
	switch s {
	case StateAccepted:
		return "ACCEPTED"
	case StateDelivered:
		return "DELIVERED"
	default:
		return "UNKNOWN"
	}
}

// Receipt は配送状態の証跡。
type Receipt struct {
	State        DeliveryState
	Channel      string
	PartitionKey string
	Partition    int
	MessageID    string
	// AcceptedAt はトランスポートが受理した日時。Deliveredの場合はACKした日時。
	AcceptedAt time.Time
}

// sendResult はワーカーから発行元へ返す送信結果。
type sendResult struct {
	id  string
	err error
}

// Dispatcher はイベントをシリアライズしてワーカープール経由でトランスポートへ渡す。
type Dispatcher struct {
	transport  Transport
	pool       *Pool
	partitions int
	log        *logger.Logger
}

// NewDispatcher は新しいDispatcherを生成する。
// poolの所有権はDispatcherに移り、Closeで停止される。
func NewDispatcher(transport Transport, pool *Pool, partitionCount int, log *logger.Logger) *Dispatcher {
	if partitionCount <= 0 {
		partitionCount = 1
	}
	return &Dispatcher{
		transport:  transport,
		pool:       pool,
		partitions: partitionCount,
		log:        log.With("component", "Dispatcher"),
	}
}

// Publish はイベントをチャネルへ発行し、トランスポートが受理するまで待つ。
// シリアライズ、プールへの投入、トランスポートのいずれかで失敗した場合は
// apperr.KindDispatchのエラーを返す。ただしトランスポートが入力不正として
// 拒否した場合はそのエラーをそのまま返す。
func (d *Dispatcher) Publish(ctx context.Context, channel, partitionKey string, ev any) (Receipt, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return Receipt{}, apperr.Dispatch(err, "serialize event for %s", channel)
	}

	msg := Message{
		Channel:      channel,
		PartitionKey: partitionKey,
		Partition:    PartitionFor(partitionKey, d.partitions),
		Payload:      payload,
	}

	// 発行元が待つのをやめてもワーカーがブロックしないようバッファを持たせる
	resultCh := make(chan sendResult, 1)
	task := func() {
		id, err := d.transport.Send(ctx, msg)
		resultCh <- sendResult{id: id, err: err}
	}
	if err := d.pool.Submit(ctx, task); err != nil {
		return Receipt{}, apperr.Dispatch(err, "publish %s", channel)
	}

	select {
	case res := <-resultCh:
		if apperr.IsInvalidInput(res.err) {
			return Receipt{}, res.err
		}
		if res.err != nil {
			d.log.Warn("イベントの発行に失敗しました", "channel", channel, "partitionKey", partitionKey, "error", res.err)
			return Receipt{}, apperr.Dispatch(res.err, "publish %s", channel)
		}
		d.log.Debug("イベントを発行しました", "channel", channel, "partitionKey", partitionKey,
			"partition", msg.Partition, "messageId", res.id)
		return Receipt{
			State:        StateAccepted,
			Channel:      channel,
			PartitionKey: partitionKey,
			Partition:    msg.Partition,
			MessageID:    res.id,
			AcceptedAt:   time.Now().UTC(),
		}, nil
	case <-ctx.Done():
		return Receipt{}, apperr.Dispatch(ctx.Err(), "publish %s", channel)
	}
}

// Close はワーカープールを停止してからトランスポートを閉じる。
func (d *Dispatcher) Close() error {
	d.pool.Close()
	return d.transport.Close()
}
