// Package market はマーケットプレイスサービスの内部実装を提供する。
//
// ユーザー認証（サインアップ・ログイン・トークンリフレッシュ）、
// 商品の検索と出品管理、在庫整合性を保証した注文処理を担当する。
// 注文による在庫の減算は単一トランザクション内の条件付き更新で行い、
// 同時注文による在庫の過剰販売を防ぐ。
package market
