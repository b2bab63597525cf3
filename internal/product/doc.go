// Package product は製品サービスを実装する。
//
// 製品をSQLiteに保存し、product-compositeサービスが利用するCRUD APIと
// イベント受信エンドポイントを公開する。Redis Streamsのproductsチャネルを
// コンシューマグループで購読し、CREATE/DELETEイベントを適用する。
package product
