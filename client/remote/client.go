package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hitoshi/chatman/client/chatclient"
)

// Config はClientの設定。
type Config struct {
	// BaseURL はサーバーのベースURL（例: http://localhost:8080）。
	BaseURL string
	// HTTPClient はHTTPリクエストに使用するクライアント。
	// nilの場合はタイムアウト付きのデフォルトを使用する。
	HTTPClient *http.Client
	// Dialer はWebSocket接続に使用するダイヤラー。
	// nilの場合はwebsocket.DefaultDialerを使用する。
	Dialer *websocket.Dialer
	// FederatedSignIn は連携サインインの対話的フローを実行し、
	// 取得したセッショントークンを返すフック。ブラウザ起動や
	// ローカルコールバックサーバーの立ち上げは呼び出し側の責務。
	// nilの場合、SignInFederatedはエラーを返す。
	FederatedSignIn func(ctx context.Context) (token string, err error)
	// Logger はnilの場合slog.Defaultを使用する。
	Logger *slog.Logger
}

// Client はchatmanサーバーと通信するバックエンド実装。
// chatclient.IdentityBackendとchatclient.MessageBackendの両方を満たす。
type Client struct {
	baseURL         string
	httpClient      *http.Client
	dialer          *websocket.Dialer
	federatedSignIn func(ctx context.Context) (string, error)
	logger          *slog.Logger

	mu          sync.Mutex
	token       string
	identity    *chatclient.Identity
	subscribers map[int]func(*chatclient.Identity)
	nextSubID   int
}

var (
	_ chatclient.IdentityBackend = (*Client)(nil)
	_ chatclient.MessageBackend  = (*Client)(nil)
)

// New はClientを生成する。
func New(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	dialer := cfg.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:         strings.TrimRight(cfg.BaseURL, "/"),
		httpClient:      httpClient,
		dialer:          dialer,
		federatedSignIn: cfg.FederatedSignIn,
		logger:          logger,
		subscribers:     make(map[int]func(*chatclient.Identity)),
	}
}

// Token は現在のセッショントークンを返す。未認証の場合は空文字列。
// 呼び出し側がトークンを永続化して再利用する用途を想定している。
func (c *Client) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// SetToken は保存済みのセッショントークンを復元する。
// 有効性の検証は行わない。Reloadを呼ぶことでアイデンティティが確定する。
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// ResponseError はサーバーが返した統一エラーフォーマットを保持する。
type ResponseError struct {
	StatusCode int
	Code       string
	Message    string
	Category   string
}

func (e *ResponseError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("server returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// errorPayload はサーバーのエラーレスポンスのワイヤ表現。
type errorPayload struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
}

// userPayload はユーザー情報レスポンスのワイヤ表現。
type userPayload struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	DisplayName   string `json:"display_name"`
	PhotoURL      string `json:"photo_url"`
	EmailVerified bool   `json:"email_verified"`
}

// sessionPayload は認証成功レスポンスのワイヤ表現。
type sessionPayload struct {
	Token string      `json:"token"`
	User  userPayload `json:"user"`
}

func (p userPayload) toIdentity() *chatclient.Identity {
	return &chatclient.Identity{
		UID:           p.ID,
		Email:         p.Email,
		DisplayName:   p.DisplayName,
		PhotoURL:      p.PhotoURL,
		EmailVerified: p.EmailVerified,
	}
}

// doJSON はJSONリクエストを送信し、2xxならレスポンスボディをoutへ
// デコードする。outがnilの場合はボディを読み捨てる。
// 2xx以外は統一エラーフォーマットをResponseErrorへ変換して返す。
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeErrorResponse(resp)
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", path, err)
	}
	return nil
}

func decodeErrorResponse(resp *http.Response) error {
	respErr := &ResponseError{StatusCode: resp.StatusCode}
	var payload errorPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err == nil {
		respErr.Code = payload.Code
		respErr.Message = payload.Message
		respErr.Category = payload.Category
	}
	return respErr
}

// setIdentity はアイデンティティを置き換え、全購読者へ通知する。
// トークンの更新と通知を同一のクリティカルセクションで行わないのは、
// 購読者コールバック内からのClient再入を許容するため。
func (c *Client) setIdentity(token string, identity *chatclient.Identity) {
	c.mu.Lock()
	c.token = token
	c.identity = identity
	subscribers := make([]func(*chatclient.Identity), 0, len(c.subscribers))
	for _, fn := range c.subscribers {
		subscribers = append(subscribers, fn)
	}
	c.mu.Unlock()

	for _, fn := range subscribers {
		fn(identity)
	}
}

// SubscribeIdentity はアイデンティティ変化の購読を開始する。
// 登録時に現在のアイデンティティで即座に1回コールバックする。
func (c *Client) SubscribeIdentity(fn func(*chatclient.Identity)) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextSubID
	c.nextSubID++
	c.subscribers[id] = fn
	current := c.identity
	c.mu.Unlock()

	fn(current)

	return func() {
		c.mu.Lock()
		delete(c.subscribers, id)
		c.mu.Unlock()
	}
}
