// Package event はバックエンドサービスへ送るコマンドイベントの封筒を提供する。
//
// product-compositeサービスは集約コマンドをエンティティ単位のイベントに分解し、
// 各サービスのチャネルへ非同期に発行する。イベントは受理された時点で
// 発行側の管理を離れ、その後の処理結果は追跡しない。
package event

import (
	"encoding/json"
	"time"
)

// Type はイベントの種類を表す。
type Type string

const (
	// TypeCreate はエンティティの作成を表す。
	TypeCreate Type = "CREATE"
	// TypeDelete はエンティティの削除を表す。Dataは常にnull。
	TypeDelete Type = "DELETE"
)

// Valid はイベント種別が既知の値かどうかを返す。
func (t Type) Valid() bool {
	return t == TypeCreate || t == TypeDelete
}

// Event はひとつのバックエンドサービスに向けたコマンドの封筒。
// Keyはエンティティを識別する値で、パーティションキーとしても使われる。
type Event[K comparable, D any] struct {
	// ID はイベントの一意識別子（UUID）。
	ID string `json:"id"`
	// EventType はイベントの種類。
	EventType Type `json:"eventType"`
	// Key はエンティティの識別子。
	Key K `json:"key"`
	// Data はイベント固有のデータ。DELETEではnil。
	Data *D `json:"data"`
	// EventCreatedAt はイベントが作成された日時。
	EventCreatedAt time.Time `json:"eventCreatedAt"`
}

// Header はデータ部を解釈せずに取り出したイベントの種類とキー。
type Header struct {
	// ID はイベントの一意識別子。
	ID string `json:"id"`
	// EventType はイベントの種類。
	EventType Type `json:"eventType"`
	// Key はデコード前のキー。
	Key json.RawMessage `json:"key"`
	// EventCreatedAt はイベントが作成された日時。
	EventCreatedAt time.Time `json:"eventCreatedAt"`
}
