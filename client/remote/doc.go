// Package remote はchatmanサーバーのHTTP/WebSocket APIに対する
// chatclientバックエンド実装を提供する。
//
// 認証はBearerトークンで行う。サインイン系操作の成功時にサーバーが
// 発行するセッショントークンを保持し、以降のリクエストとWebSocket
// ハンドシェイクのAuthorizationヘッダに付与する。
package remote
