package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hitoshi/chatman/client/chatclient"
)

func snapshotBody(messages ...map[string]any) map[string]any {
	if messages == nil {
		messages = []map[string]any{}
	}
	return map[string]any{
		"type":     "snapshot",
		"messages": messages,
		"limit":    100,
	}
}

func wireMessage(id, email, text string, seconds int64) map[string]any {
	return map[string]any{
		"id":    id,
		"email": email,
		"text":  text,
		"created_at": map[string]any{
			"seconds":     seconds,
			"nanoseconds": 0,
		},
	}
}

func TestClient_FetchMessages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/api/messages" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer session-token-1" {
			t.Errorf("expected bearer header, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode([]map[string]any{
			wireMessage("m1", "alice@example.com", "hello", 1700000000),
			wireMessage("m2", "bob@example.com", "hi", 1700000060),
		})
	}))
	defer server.Close()

	client := New(Config{BaseURL: server.URL})
	client.SetToken("session-token-1")

	messages, err := client.FetchMessages(context.Background())
	if err != nil {
		t.Fatalf("FetchMessages failed: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(messages))
	}
	if messages[0].ID != "m1" || messages[1].ID != "m2" {
		t.Errorf("messages should keep ascending order: %+v", messages)
	}
	if messages[0].CreatedAt == nil || messages[0].CreatedAt.Seconds != 1700000000 {
		t.Errorf("unexpected timestamp: %+v", messages[0].CreatedAt)
	}
}

func TestClient_FetchMessages_EmptyHistory(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode([]map[string]any{})
	}))
	defer server.Close()

	client := New(Config{BaseURL: server.URL})

	messages, err := client.FetchMessages(context.Background())
	if err != nil {
		t.Fatalf("FetchMessages failed: %v", err)
	}
	if messages == nil {
		t.Error("expected empty slice, not nil")
	}
	if len(messages) != 0 {
		t.Errorf("expected no messages, got %d", len(messages))
	}
}

func TestClient_AppendMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/messages" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["text"] != "hello world" {
			t.Errorf("unexpected text: %q", body["text"])
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(wireMessage("m1", "alice@example.com", "hello world", 1700000000))
	}))
	defer server.Close()

	client := New(Config{BaseURL: server.URL})
	client.SetToken("session-token-1")

	created, err := client.AppendMessage(context.Background(), "alice@example.com", "hello world")
	if err != nil {
		t.Fatalf("AppendMessage failed: %v", err)
	}
	if created.ID != "m1" {
		t.Errorf("expected echoed ID m1, got %q", created.ID)
	}
	if created.Email != "alice@example.com" {
		t.Errorf("echoed message should carry the server-resolved email, got %q", created.Email)
	}
	if created.CreatedAt == nil {
		t.Error("echoed message should have a server-assigned timestamp")
	}
}

func TestClient_AppendMessage_Rejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeErrorResponse(t, w, http.StatusBadRequest, "MESSAGE_TOO_LONG")
	}))
	defer server.Close()

	client := New(Config{BaseURL: server.URL})

	_, err := client.AppendMessage(context.Background(), "alice@example.com", "too long")
	if err == nil {
		t.Fatal("expected error")
	}
}

// newWSTestServer はスナップショットをチャネル経由で配信するWebSocket
// テストサーバーを起動する。
func newWSTestServer(t *testing.T, snapshots <-chan map[string]any) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ws" {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer session-token-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for snapshot := range snapshots {
			if err := conn.WriteJSON(snapshot); err != nil {
				return
			}
		}
		// チャネルが閉じたら読み込み側の切断を待つ
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
}

func TestClient_SubscribeMessages_DeliversSnapshots(t *testing.T) {
	snapshots := make(chan map[string]any, 2)
	snapshots <- snapshotBody(wireMessage("m1", "alice@example.com", "hello", 1700000000))
	snapshots <- snapshotBody(
		wireMessage("m1", "alice@example.com", "hello", 1700000000),
		wireMessage("m2", "bob@example.com", "hi", 1700000060),
	)

	server := newWSTestServer(t, snapshots)
	defer server.Close()

	client := New(Config{BaseURL: server.URL})
	client.SetToken("session-token-1")

	received := make(chan []chatclient.Message, 4)
	unsubscribe, err := client.SubscribeMessages(100, func(messages []chatclient.Message) {
		received <- messages
	})
	if err != nil {
		t.Fatalf("SubscribeMessages failed: %v", err)
	}
	defer unsubscribe()

	first := waitForSnapshot(t, received)
	if len(first) != 1 || first[0].ID != "m1" {
		t.Errorf("unexpected first snapshot: %+v", first)
	}

	second := waitForSnapshot(t, received)
	if len(second) != 2 || second[1].ID != "m2" {
		t.Errorf("unexpected second snapshot: %+v", second)
	}
}

func TestClient_SubscribeMessages_TrimsToLimit(t *testing.T) {
	snapshots := make(chan map[string]any, 1)
	snapshots <- snapshotBody(
		wireMessage("m1", "alice@example.com", "first", 1700000000),
		wireMessage("m2", "bob@example.com", "second", 1700000060),
		wireMessage("m3", "carol@example.com", "third", 1700000120),
	)

	server := newWSTestServer(t, snapshots)
	defer server.Close()

	client := New(Config{BaseURL: server.URL})
	client.SetToken("session-token-1")

	received := make(chan []chatclient.Message, 2)
	unsubscribe, err := client.SubscribeMessages(2, func(messages []chatclient.Message) {
		received <- messages
	})
	if err != nil {
		t.Fatalf("SubscribeMessages failed: %v", err)
	}
	defer unsubscribe()

	got := waitForSnapshot(t, received)
	if len(got) != 2 {
		t.Fatalf("expected snapshot trimmed to 2, got %d", len(got))
	}
	if got[0].ID != "m2" || got[1].ID != "m3" {
		t.Errorf("trimming should keep the newest messages: %+v", got)
	}
}

func TestClient_SubscribeMessages_RejectedWithoutToken(t *testing.T) {
	snapshots := make(chan map[string]any)
	close(snapshots)
	server := newWSTestServer(t, snapshots)
	defer server.Close()

	client := New(Config{BaseURL: server.URL})

	_, err := client.SubscribeMessages(100, func([]chatclient.Message) {})
	if err == nil {
		t.Fatal("expected handshake error without token")
	}
}

func TestClient_SubscribeMessages_UnsubscribeStopsCallbacks(t *testing.T) {
	snapshots := make(chan map[string]any, 1)
	snapshots <- snapshotBody(wireMessage("m1", "alice@example.com", "hello", 1700000000))

	server := newWSTestServer(t, snapshots)
	defer server.Close()

	client := New(Config{BaseURL: server.URL})
	client.SetToken("session-token-1")

	received := make(chan []chatclient.Message, 2)
	unsubscribe, err := client.SubscribeMessages(100, func(messages []chatclient.Message) {
		received <- messages
	})
	if err != nil {
		t.Fatalf("SubscribeMessages failed: %v", err)
	}

	waitForSnapshot(t, received)
	unsubscribe()
	close(snapshots)

	select {
	case extra := <-received:
		t.Errorf("no snapshots expected after unsubscribe, got %+v", extra)
	case <-time.After(100 * time.Millisecond):
	}
}

func waitForSnapshot(t *testing.T, ch <-chan []chatclient.Message) []chatclient.Message {
	t.Helper()
	select {
	case messages := <-ch:
		return messages
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		return nil
	}
}
