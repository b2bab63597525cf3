// Package api はサービス間で共有するデータ転送オブジェクトを提供する。
//
// product / recommendation / review の各バックエンドサービスが公開するエンティティと、
// product-composite サービスが公開する集約ビュー（ProductAggregate）を定義する。
// JSONのフィールド名はサービス間の通信契約であるため、変更してはならない。
package api
