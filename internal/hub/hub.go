// Package hub はWebSocket接続の管理とスナップショットのライブ配信を提供する。
//
// 新規メッセージの通知はRedis pub/subを経由するため、複数インスタンス構成でも
// 全インスタンスのクライアントへ配信される。通知を受けたハブは直近の
// スナップショットを問い合わせ直し、全接続へ全量を配信する。
package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/hitoshi/chatman/internal/metrics"
	"github.com/hitoshi/chatman/internal/model"
)

// defaultChannel はメッセージ通知に使用するRedisチャンネル名。
const defaultChannel = "chatman:messages"

// SnapshotSource は配信用スナップショットの取得元インターフェース。
type SnapshotSource interface {
	Snapshot(ctx context.Context) (*model.MessageSnapshot, error)
}

// Hub はWebSocketクライアントを管理し、スナップショットを全接続へ配信する。
type Hub struct {
	source    SnapshotSource
	rdb       *redis.Client
	channel   string
	collector metrics.MetricsCollector

	register   chan *Client
	unregister chan *Client
	refresh    chan struct{}
	clients    map[*Client]bool
}

// NewHub はHubを生成する。rdbがnilの場合は単一インスタンスモードで動作し、
// Redisを経由せずプロセス内で通知する。collectorがnilの場合は記録しない。
func NewHub(source SnapshotSource, rdb *redis.Client, collector metrics.MetricsCollector) *Hub {
	if collector == nil {
		collector = metrics.Noop{}
	}
	return &Hub{
		source:     source,
		rdb:        rdb,
		channel:    defaultChannel,
		collector:  collector,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		refresh:    make(chan struct{}, 1),
		clients:    make(map[*Client]bool),
	}
}

// Run はハブのメインループを開始する。ctxのキャンセルで全接続を閉じて返る。
func (h *Hub) Run(ctx context.Context) {
	if h.rdb != nil {
		go h.subscribeRedis(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
				h.collector.RecordWSDisconnect()
			}
			return

		case client := <-h.register:
			h.clients[client] = true
			h.collector.RecordWSConnect()
			// 参加直後のクライアントには現在のスナップショットを送る
			payload, err := h.snapshotPayload(ctx)
			if err != nil {
				slog.Warn("failed to build snapshot for joining client", slog.String("error", err.Error()))
				continue
			}
			select {
			case client.send <- payload:
			default:
				h.drop(client)
			}

		case client := <-h.unregister:
			if h.clients[client] {
				h.drop(client)
			}

		case <-h.refresh:
			payload, err := h.snapshotPayload(ctx)
			if err != nil {
				slog.Warn("failed to build snapshot for broadcast", slog.String("error", err.Error()))
				continue
			}
			sent := 0
			for client := range h.clients {
				select {
				case client.send <- payload:
					sent++
				default:
					// 送信が詰まっているクライアントは切り離す
					h.drop(client)
				}
			}
			h.collector.RecordSnapshotBroadcast(sent)
		}
	}
}

// Register はクライアントをハブに登録する。
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister はクライアントをハブから切り離す。
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Publish は新規メッセージの発生を通知する。chat.Publisherを実装する。
// Redisがある場合はチャンネルへ発行し、購読経由で全インスタンスに届く。
func (h *Hub) Publish(ctx context.Context, message model.Message) error {
	if h.rdb != nil {
		if err := h.rdb.Publish(ctx, h.channel, message.ID).Err(); err != nil {
			return fmt.Errorf("failed to publish to redis: %w", err)
		}
		return nil
	}
	h.kick()
	return nil
}

// kick は再配信を予約する。既に予約済みの場合は何もしない。
// 配信時に最新スナップショットを問い合わせ直すため、通知の合流で配信内容は欠けない。
func (h *Hub) kick() {
	select {
	case h.refresh <- struct{}{}:
	default:
	}
}

// subscribeRedis はRedisチャンネルを購読し、通知のたびに再配信を予約する。
func (h *Hub) subscribeRedis(ctx context.Context) {
	pubsub := h.rdb.Subscribe(ctx, h.channel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-ch:
			if !ok {
				return
			}
			h.kick()
		}
	}
}

// snapshotPayload は直近スナップショットをJSONにエンコードして返す。
func (h *Hub) snapshotPayload(ctx context.Context) ([]byte, error) {
	snapshot, err := h.source.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	payload, err := json.Marshal(NewSnapshotJSON(snapshot))
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return payload, nil
}

func (h *Hub) drop(client *Client) {
	delete(h.clients, client)
	close(client.send)
	h.collector.RecordWSDisconnect()
}
