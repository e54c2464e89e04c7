package hub

import (
	"github.com/hitoshi/chatman/internal/model"
)

// TimestampJSON はシリアライズ済みタイムスタンプのワイヤ表現。
type TimestampJSON struct {
	Seconds     int64 `json:"seconds"`
	Nanoseconds int32 `json:"nanoseconds"`
}

// MessageJSON はメッセージのワイヤ表現。
type MessageJSON struct {
	ID        string        `json:"id"`
	Email     string        `json:"email"`
	Text      string        `json:"text"`
	CreatedAt TimestampJSON `json:"created_at"`
}

// SnapshotJSON はWebSocketで配信する全量スナップショットのワイヤ表現。
type SnapshotJSON struct {
	Type     string        `json:"type"`
	Messages []MessageJSON `json:"messages"`
	Limit    int           `json:"limit"`
}

// NewMessageJSON はモデルをワイヤ表現に変換する。
func NewMessageJSON(m model.Message) MessageJSON {
	return MessageJSON{
		ID:    m.ID,
		Email: m.Email,
		Text:  m.Text,
		CreatedAt: TimestampJSON{
			Seconds:     m.CreatedAt.Unix(),
			Nanoseconds: int32(m.CreatedAt.Nanosecond()),
		},
	}
}

// NewSnapshotJSON はスナップショットをワイヤ表現に変換する。
func NewSnapshotJSON(snapshot *model.MessageSnapshot) SnapshotJSON {
	messages := make([]MessageJSON, 0, len(snapshot.Messages))
	for _, m := range snapshot.Messages {
		messages = append(messages, NewMessageJSON(m))
	}
	return SnapshotJSON{
		Type:     "snapshot",
		Messages: messages,
		Limit:    snapshot.Limit,
	}
}
