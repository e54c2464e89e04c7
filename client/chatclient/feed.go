package chatclient

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/hitoshi/chatman/client/store"
)

// defaultSnapshotLimit は購読スナップショットが運ぶ直近メッセージ数。
const defaultSnapshotLimit = 100

// Synchronizer は3系統の入力を単一の整合したメッセージリストへ
// 収束させるフィード同期器。
//
//  1. 1回限りの履歴フェッチ
//  2. 直近N件の全量スナップショットを運ぶライブ購読
//  3. ローカルで発行された楽観的送信
//
// 購読が一度でも発火した後は購読が権威となり、履歴フェッチの結果は
// 破棄される。スナップショットの適用は意図的な単純化として全量置き換え
// で行うが、applySnapshotに隔離してあるため、将来の増分パッチ化は
// この1関数の差し替えで済む。
type Synchronizer struct {
	backend MessageBackend
	store   *store.Store[FeedState]
	logger  *slog.Logger
	limit   int

	// applyMu は履歴フェッチとスナップショットの適用を直列化する。
	// ストア購読者からのSend/Close再入を妨げないよう、適用以外の
	// 操作では取らない。
	applyMu      sync.Mutex
	snapshotSeen bool

	mu          sync.Mutex
	unsubscribe func()
}

// NewSynchronizer はSynchronizerを生成する。状態はidleから始まり、
// Startを呼ぶまでバックエンドへはアクセスしない。
// loggerがnilの場合はslog.Defaultを使用する。
func NewSynchronizer(backend MessageBackend, logger *slog.Logger) *Synchronizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Synchronizer{
		backend: backend,
		store:   store.New(FeedState{Status: FeedStatusIdle}),
		logger:  logger,
		limit:   defaultSnapshotLimit,
	}
}

// Store はFeedStateのストアを返す。ビュー層はこれを購読する。
func (s *Synchronizer) Store() *store.Store[FeedState] {
	return s.store
}

// State は現在のFeedStateを返す。
func (s *Synchronizer) State() FeedState {
	return s.store.Get()
}

// Start は履歴フェッチを発行し、ライブ購読を開く。
// フェッチは非同期に完了し、失敗してもその後の購読成功を妨げない。
// 購読の確立に失敗した場合はstatusをfailedにしてエラーを返す。
func (s *Synchronizer) Start(ctx context.Context) error {
	s.store.Update(func(f FeedState) FeedState {
		f.Status = FeedStatusLoading
		return f
	})

	go func() {
		msgs, err := s.backend.FetchMessages(ctx)
		s.applyFetch(msgs, err)
	}()

	unsubscribe, err := s.backend.SubscribeMessages(s.limit, s.applySnapshot)
	if err != nil {
		serr := NewSubscriptionError(err)
		s.store.Update(func(f FeedState) FeedState {
			f.Status = FeedStatusFailed
			f.Err = serr
			return f
		})
		return serr
	}

	s.mu.Lock()
	s.unsubscribe = unsubscribe
	s.mu.Unlock()
	return nil
}

// Close はライブ購読を解除する。コンポーネント破棄時に呼び出す。
func (s *Synchronizer) Close() {
	s.mu.Lock()
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

// Send はメッセージを送信する。本文が空白のみの場合はリモート呼び出し
// 前に検証エラーとなり、ストアは変更されない。成功時はサーバーエコー
// （ID・タイムスタンプ割り当て済み）を楽観的にストアへ反映する。
// 次のスナップショットが到着すると全量置き換えにより正規コピーへ
// 収束するため、重複は発生しない。
func (s *Synchronizer) Send(ctx context.Context, email, text string) (Message, error) {
	if strings.TrimSpace(text) == "" {
		return Message{}, NewValidationError("message text must not be empty")
	}
	if strings.TrimSpace(email) == "" {
		return Message{}, NewValidationError("author email is required")
	}

	echoed, err := s.backend.AppendMessage(ctx, email, text)
	if err != nil {
		perr := NewProviderError(err)
		s.store.Update(func(f FeedState) FeedState {
			// 取得済みメッセージは保持したまま失敗を記録する
			f.Status = FeedStatusFailed
			f.Err = perr
			return f
		})
		return Message{}, perr
	}

	// ストアの更新自体がアトミックなので、ここでは適用ロックを取らない。
	// スナップショット適用と前後しても次の全量置き換えで収束する。
	s.store.Update(func(f FeedState) FeedState {
		f.Messages = mergeMessages(append(append([]Message{}, f.Messages...), echoed))
		return f
	})
	return echoed, nil
}

// applyFetch は履歴フェッチの完了を適用する。
// 購読が既に発火している場合、スナップショットが権威であるため結果は破棄する。
func (s *Synchronizer) applyFetch(msgs []Message, err error) {
	s.applyMu.Lock()
	defer s.applyMu.Unlock()

	if s.snapshotSeen {
		s.logger.Debug("historical fetch superseded by subscription snapshot")
		return
	}

	if err != nil {
		perr := NewProviderError(err)
		s.store.Update(func(f FeedState) FeedState {
			f.Status = FeedStatusFailed
			f.Err = perr
			return f
		})
		return
	}

	s.store.Update(func(f FeedState) FeedState {
		f.Messages = mergeMessages(msgs)
		// 空の履歴は確定情報を運ばないため、最初のスナップショットが
		// 届くまではloadingのままにする。
		if len(f.Messages) > 0 {
			f.Status = FeedStatusSucceeded
		}
		f.Err = nil
		return f
	})
}

// applySnapshot はスナップショット発火を配信順に適用するマージ関数。
// 可視リストをスナップショットで全量置き換えする。楽観的コピーと
// 同一IDを持つ正規コピーはスナップショット側が勝つ。スナップショットに
// 含まれない楽観的メッセージは次の発火まで一時的に消える（重複の
// 代わりに瞬きを許容するトレードオフ）。
func (s *Synchronizer) applySnapshot(snapshot []Message) {
	s.applyMu.Lock()
	defer s.applyMu.Unlock()

	s.snapshotSeen = true
	s.store.Update(func(f FeedState) FeedState {
		f.Messages = mergeMessages(snapshot)
		f.Status = FeedStatusSucceeded
		f.Err = nil
		return f
	})
}

// mergeMessages はID重複を除去し、作成時刻昇順に整列したリストを返す。
// 同一IDは先に現れたコピー（スナップショット内では正規の並び）が勝つ。
// CreatedAtがnilのメッセージは「現在」として末尾に置かれる。
// 同時刻のメッセージは到着順を維持する（安定ソート）。
func mergeMessages(msgs []Message) []Message {
	merged := make([]Message, 0, len(msgs))
	seen := make(map[string]bool, len(msgs))
	for _, m := range msgs {
		if seen[m.ID] {
			continue
		}
		seen[m.ID] = true
		merged = append(merged, m)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		a, b := merged[i].CreatedAt, merged[j].CreatedAt
		if a == nil {
			return false
		}
		if b == nil {
			return true
		}
		return a.Before(*b)
	})

	return merged
}
