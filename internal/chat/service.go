// Package chat はチャットメッセージの投稿と取得のビジネスロジックを提供する。
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/hitoshi/chatman/internal/model"
	"github.com/hitoshi/chatman/internal/repository"
	"github.com/hitoshi/chatman/internal/security"
)

const (
	// MaxMessageLength はメッセージ本文の最大文字数（rune単位）。
	MaxMessageLength = 2000

	// SnapshotLimit はスナップショットに含める直近メッセージ数。
	SnapshotLimit = 100
)

// Publisher は新規メッセージの発生を配信基盤へ通知するインターフェース。
type Publisher interface {
	// Publish はメッセージの投稿を購読者へ通知する。
	Publish(ctx context.Context, message model.Message) error
}

// Service はメッセージの投稿と取得を提供する。
type Service struct {
	messageRepo repository.MessageRepository
	sanitizer   security.MessageSanitizerService
	publisher   Publisher
	limit       int
}

// NewService はServiceを生成する。publisherはnilでもよい（配信なし）。
func NewService(messageRepo repository.MessageRepository, sanitizer security.MessageSanitizerService, publisher Publisher) *Service {
	return &Service{
		messageRepo: messageRepo,
		sanitizer:   sanitizer,
		publisher:   publisher,
		limit:       SnapshotLimit,
	}
}

// SetPublisher は配信先を設定する。
// ハブはスナップショット供給元としてServiceを参照するため、
// 起動時の相互配線でのみ使用する。
func (s *Service) SetPublisher(p Publisher) {
	s.publisher = p
}

// PostMessage はメッセージを検証・サニタイズして永続化し、配信基盤へ通知する。
// IDと作成時刻はサーバーが割り当てる。
func (s *Service) PostMessage(ctx context.Context, email, text string) (*model.Message, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, model.NewMessageEmptyError()
	}
	if utf8.RuneCountInString(trimmed) > MaxMessageLength {
		return nil, model.NewMessageTooLongError(MaxMessageLength)
	}

	sanitized := strings.TrimSpace(s.sanitizer.Sanitize(trimmed))
	if sanitized == "" {
		// タグのみで構成された本文はサニタイズで空になる
		return nil, model.NewMessageEmptyError()
	}

	message := &model.Message{
		ID:        uuid.New().String(),
		Email:     email,
		Text:      sanitized,
		CreatedAt: time.Now(),
	}

	if err := s.messageRepo.Create(ctx, message); err != nil {
		return nil, fmt.Errorf("failed to create message: %w", err)
	}

	if s.publisher != nil {
		// 配信失敗は投稿の成否に影響させない。購読側は次回スナップショットで追い付く。
		if err := s.publisher.Publish(ctx, *message); err != nil {
			slog.Warn("failed to publish message",
				slog.String("message_id", message.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	slog.Info("message posted",
		slog.String("message_id", message.ID),
		slog.Int("length", utf8.RuneCountInString(sanitized)),
	)
	return message, nil
}

// ListMessages は全メッセージを作成時刻昇順で返す。
// ライブ購読前の履歴フェッチ用で、スナップショットと異なり件数上限を持たない。
func (s *Service) ListMessages(ctx context.Context) ([]model.Message, error) {
	messages, err := s.messageRepo.ListAsc(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return messages, nil
}

// Snapshot は直近SnapshotLimit件のメッセージをスナップショットとして返す。
func (s *Service) Snapshot(ctx context.Context) (*model.MessageSnapshot, error) {
	messages, err := s.messageRepo.ListLatest(ctx, s.limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list latest messages: %w", err)
	}
	return &model.MessageSnapshot{Messages: messages, Limit: s.limit}, nil
}
