package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/hitoshi/chatman/client/chatclient"
)

type timestampPayload struct {
	Seconds     int64 `json:"seconds"`
	Nanoseconds int32 `json:"nanoseconds"`
}

type messagePayload struct {
	ID        string           `json:"id"`
	Email     string           `json:"email"`
	Text      string           `json:"text"`
	CreatedAt timestampPayload `json:"created_at"`
}

type snapshotPayload struct {
	Type     string           `json:"type"`
	Messages []messagePayload `json:"messages"`
	Limit    int              `json:"limit"`
}

type postMessagePayload struct {
	Text string `json:"text"`
}

func (p messagePayload) toMessage() chatclient.Message {
	return chatclient.Message{
		ID:    p.ID,
		Email: p.Email,
		Text:  p.Text,
		CreatedAt: &chatclient.Timestamp{
			Seconds: p.CreatedAt.Seconds,
			Nanos:   p.CreatedAt.Nanoseconds,
		},
	}
}

func toMessages(payloads []messagePayload) []chatclient.Message {
	messages := make([]chatclient.Message, 0, len(payloads))
	for _, p := range payloads {
		messages = append(messages, p.toMessage())
	}
	return messages
}

// FetchMessages は全メッセージを作成時刻昇順で1回限り取得する。
func (c *Client) FetchMessages(ctx context.Context) ([]chatclient.Message, error) {
	var history []messagePayload
	if err := c.doJSON(ctx, http.MethodGet, "/api/messages", nil, &history); err != nil {
		return nil, err
	}
	return toMessages(history), nil
}

// AppendMessage はメッセージを追記する。
// 送信者はサーバーがセッションから決定するため、引数のemailは
// 送信には使用しない。エコーされたメッセージには権威的な値が入る。
func (c *Client) AppendMessage(ctx context.Context, email, text string) (chatclient.Message, error) {
	var created messagePayload
	err := c.doJSON(ctx, http.MethodPost, "/api/messages", postMessagePayload{Text: text}, &created)
	if err != nil {
		return chatclient.Message{}, err
	}
	return created.toMessage(), nil
}

// wsEndpoint はベースURLからWebSocketのURLを導出する。
func (c *Client) wsEndpoint() (string, error) {
	switch {
	case strings.HasPrefix(c.baseURL, "https://"):
		return "wss://" + strings.TrimPrefix(c.baseURL, "https://") + "/ws", nil
	case strings.HasPrefix(c.baseURL, "http://"):
		return "ws://" + strings.TrimPrefix(c.baseURL, "http://") + "/ws", nil
	default:
		return "", fmt.Errorf("cannot derive websocket URL from base URL %q", c.baseURL)
	}
}

// SubscribeMessages はWebSocket経由のライブ購読を開く。
// サーバーは接続直後と各書き込み後に全量スナップショットを配信する。
// limitがサーバーの保持件数より小さい場合は末尾limit件へ切り詰める。
func (c *Client) SubscribeMessages(limit int, fn func([]chatclient.Message)) (unsubscribe func(), err error) {
	endpoint, err := c.wsEndpoint()
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	if token := c.Token(); token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	conn, resp, err := c.dialer.Dial(endpoint, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket handshake failed with status %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	if resp != nil {
		resp.Body.Close()
	}

	var once sync.Once
	closed := make(chan struct{})
	stop := func() {
		once.Do(func() {
			close(closed)
			conn.Close()
		})
	}

	go func() {
		defer stop()
		for {
			var snapshot snapshotPayload
			if err := conn.ReadJSON(&snapshot); err != nil {
				select {
				case <-closed:
				default:
					if !errors.Is(err, context.Canceled) {
						c.logger.Warn("websocket subscription closed", "error", err)
					}
				}
				return
			}
			if snapshot.Type != "snapshot" {
				continue
			}
			messages := toMessages(snapshot.Messages)
			if limit > 0 && len(messages) > limit {
				messages = messages[len(messages)-limit:]
			}
			fn(messages)
		}
	}()

	return stop, nil
}
