// Package middleware はGinベースのHTTP APIで使用する共通ミドルウェアを提供する。
//
// Bearerトークンを検証する認証ゲート、パニックリカバリ、CORS設定、
// 認証エンドポイント向けのレート制限を含む。認証ゲートは保護ルートの
// 手前で必ず適用し、検証失敗時はハンドラを実行せずに401で遮断する。
package middleware
