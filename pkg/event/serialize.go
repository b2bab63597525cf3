package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NewCreate はCREATEイベントを生成する。
func NewCreate[K comparable, D any](key K, data D) Event[K, D] {
	return Event[K, D]{
		ID:             uuid.New().String(),
		EventType:      TypeCreate,
		Key:            key,
		Data:           &data,
		EventCreatedAt: time.Now().UTC(),
	}
}

// NewDelete はDELETEイベントを生成する。
func NewDelete[K comparable, D any](key K) Event[K, D] {
	return Event[K, D]{
		ID:             uuid.New().String(),
		EventType:      TypeDelete,
		Key:            key,
		EventCreatedAt: time.Now().UTC(),
	}
}

// Validate はイベントの種類とデータの組み合わせを検証する。
func (e Event[K, D]) Validate() error {
	if !e.EventType.Valid() {
		return fmt.Errorf("Incorrect event type: %s, expected a CREATE or DELETE event", e.EventType)
	}
	if e.EventType == TypeCreate && e.Data == nil {
		return fmt.Errorf("CREATEイベントにデータがありません: id=%s", e.ID)
	}
	return nil
}

// Decode はJSONを指定された型のイベントにデシリアライズし、検証する。
func Decode[K comparable, D any](raw []byte) (Event[K, D], error) {
	var ev Event[K, D]
	if err := json.Unmarshal(raw, &ev); err != nil {
		return ev, fmt.Errorf("イベントのデシリアライズに失敗: %w", err)
	}
	if err := ev.Validate(); err != nil {
		return ev, err
	}
	return ev, nil
}

// Peek はデータ部を解釈せずにイベントの種類とキーを取り出す。
func Peek(raw []byte) (Header, error) {
	var h Header
	if err := json.Unmarshal(raw, &h); err != nil {
		return h, fmt.Errorf("イベントヘッダーのデシリアライズに失敗: %w", err)
	}
	return h, nil
}
