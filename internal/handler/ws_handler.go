package handler

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/hitoshi/chatman/internal/hub"
)

// WSHandler はライブ購読のWebSocketハンドラー。
// 接続直後に現在のスナップショットを配信し、以降は更新のたびに
// 全量スナップショットを配信する。
type WSHandler struct {
	hub      *hub.Hub
	upgrader websocket.Upgrader
}

// NewWSHandler はWSHandlerを生成する。
// allowedOriginが空の場合はOriginチェックを行わない（開発用）。
func NewWSHandler(h *hub.Hub, allowedOrigin string) *WSHandler {
	return &WSHandler{
		hub: h,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if allowedOrigin == "" {
					return true
				}
				origin := r.Header.Get("Origin")
				// Originヘッダーを送らないクライアント（非ブラウザ）は許可する
				return origin == "" || origin == allowedOrigin
			},
		},
	}
}

// Subscribe はWebSocket接続を確立しハブに登録する。
// セッションミドルウェアの内側に配置する。
// GET /ws
func (h *WSHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgradeが失敗した場合はupgraderが応答を書き込み済み
		slog.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	client := hub.NewClient(h.hub, conn)
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}
