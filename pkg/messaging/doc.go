// Package messaging はイベントの非同期配送を提供する。
//
// Dispatcherはイベントをシリアライズし、固定サイズのワーカープールを経由して
// トランスポートへ渡す。トランスポートが受理した時点でReceipt（Accepted）を返し、
// バックエンドサービスでの処理完了は待たない。
//
// トランスポートはRedis Streams（本番用）とHTTPのイベントエンドポイント（ブローカーなし構成）の
// 2種類がある。同じパーティションキーのイベントは同じストリームに入るため、
// コンシューマグループ内ではキー単位で送信順に処理される。
package messaging
