package hub

import (
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// writeWait はピアへの書き込みに許容する時間。
	writeWait = 10 * time.Second
	// pongWait はピアからの次のpongを待つ時間。
	pongWait = 60 * time.Second
	// pingPeriod はピアへのping送信間隔。pongWaitより短いこと。
	pingPeriod = (pongWait * 9) / 10
	// maxMessageSize はピアから受け付ける最大メッセージサイズ。
	// 購読は受信専用であり、クライアントからの本文は想定しない。
	maxMessageSize = 512
)

// Client はWebSocket接続とハブの仲介役。
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// NewClient はClientを生成する。
func NewClient(h *Hub, conn *websocket.Conn) *Client {
	return &Client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, 8),
	}
}

// ReadPump は接続からの受信を処理する。購読は受信専用のため本文は破棄し、
// 接続維持のための制御フレーム処理と切断検知のみを行う。
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("websocket read error", slog.String("error", err.Error()))
			}
			return
		}
	}
}

// WritePump はハブからのスナップショットを接続へ書き出す。
// 定期的にpingを送って接続を維持する。
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// ハブがチャンネルを閉じた
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
