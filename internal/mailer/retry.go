package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

const (
	// initialRetryDelay は指数バックオフの初回遅延。
	initialRetryDelay = 500 * time.Millisecond
	// maxRetryDelay は指数バックオフの最大遅延。
	maxRetryDelay = 8 * time.Second
	// defaultMaxAttempts は送信試行回数の上限。
	defaultMaxAttempts = 3
)

// CalculateRetryDelay は連続失敗回数に基づいて指数バックオフ遅延を計算する。
// 初回500ms、2倍ずつ増加、最大8秒。
func CalculateRetryDelay(consecutiveFailures int) time.Duration {
	delay := initialRetryDelay
	for i := 0; i < consecutiveFailures; i++ {
		delay *= 2
		if delay > maxRetryDelay {
			return maxRetryDelay
		}
	}
	return delay
}

// RetryingMailer は下位のMailerを指数バックオフ付きでリトライする。
// SMTPサーバーの一時的な不調で確認メールやリセットメールを取り
// こぼさないための保険で、恒久的な失敗は試行上限後にそのまま返す。
type RetryingMailer struct {
	inner       Mailer
	maxAttempts int
	logger      *slog.Logger
}

var _ Mailer = (*RetryingMailer)(nil)

// NewRetryingMailer はRetryingMailerを生成する。
// maxAttemptsが0以下の場合はデフォルトの試行回数を使用する。
// loggerがnilの場合はslog.Defaultを使用する。
func NewRetryingMailer(inner Mailer, maxAttempts int, logger *slog.Logger) *RetryingMailer {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RetryingMailer{
		inner:       inner,
		maxAttempts: maxAttempts,
		logger:      logger,
	}
}

// Send はメールを送信する。失敗した場合は指数バックオフを挟んで
// 再試行し、コンテキストのキャンセルで中断する。
func (m *RetryingMailer) Send(ctx context.Context, to, subject, body string) error {
	var lastErr error
	for attempt := 0; attempt < m.maxAttempts; attempt++ {
		if attempt > 0 {
			delay := CalculateRetryDelay(attempt - 1)
			m.logger.Warn("retrying mail delivery",
				"attempt", attempt+1,
				"delay_ms", delay.Milliseconds(),
				"error", lastErr,
			)
			select {
			case <-ctx.Done():
				return fmt.Errorf("mail delivery cancelled: %w", ctx.Err())
			case <-time.After(delay):
			}
		}
		if err := m.inner.Send(ctx, to, subject, body); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return fmt.Errorf("mail delivery failed after %d attempts: %w", m.maxAttempts, lastErr)
}
