// Package composite はproduct-compositeサービスを実装する。
//
// 読み込みでは製品・レコメンデーション・レビューの3サービスへ並行に問い合わせ、
// 結果をひとつの集約（ProductAggregate）に合成する。いずれかの問い合わせが失敗した場合は
// 集約全体を失敗とし、下流のNotFoundやInvalidInputはそのまま呼び出し元へ返す。
//
// 書き込みでは集約をエンティティ単位のコマンドに分解し、イベントとして各サービスの
// チャネルへ並行に発行する。すべての発行がトランスポートに受理された時点で完了とし、
// バックエンドサービスでの処理完了は待たない。一部の発行が失敗しても、
// 受理済みのイベントは取り消さない。
package composite
