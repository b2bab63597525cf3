// Package recommendation はおすすめサービスを実装する。
//
// おすすめを製品IDとおすすめIDの組で管理し、recommendationsチャネルの
// CREATE/DELETEイベントを適用する。
package recommendation
