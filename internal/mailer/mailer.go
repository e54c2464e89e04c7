// Package mailer はトランザクションメールの送信を提供する。
package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
)

// Mailer はメール送信のインターフェース。
type Mailer interface {
	// Send は指定の宛先にプレーンテキストメールを送信する。
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPConfig はSMTPメーラーの設定。
type SMTPConfig struct {
	Addr     string // ホスト:ポート形式（例: "smtp.example.com:587"）
	From     string
	Username string
	Password string
}

// SMTPMailer はSMTP経由でメールを送信する。
type SMTPMailer struct {
	config SMTPConfig
}

// NewSMTPMailer はSMTPMailerを生成する。
func NewSMTPMailer(config SMTPConfig) *SMTPMailer {
	return &SMTPMailer{config: config}
}

// Send はSMTPサーバー経由でメールを送信する。
// Usernameが空の場合は認証なしで送信する（ローカルのメールリレー想定）。
func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var auth smtp.Auth
	if m.config.Username != "" {
		host := m.config.Addr
		if i := strings.IndexByte(host, ':'); i >= 0 {
			host = host[:i]
		}
		auth = smtp.PlainAuth("", m.config.Username, m.config.Password, host)
	}

	msg := strings.Join([]string{
		"From: " + m.config.From,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=UTF-8",
		"",
		body,
	}, "\r\n")

	if err := smtp.SendMail(m.config.Addr, auth, m.config.From, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("failed to send mail: %w", err)
	}
	return nil
}

// LogMailer はメールを送信せずログに出力する開発用メーラー。
// SMTPの設定がない環境でのローカル開発に使用する。
type LogMailer struct {
	logger *slog.Logger
}

// NewLogMailer はLogMailerを生成する。
func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

// Send はメール内容をログに出力する。
func (m *LogMailer) Send(ctx context.Context, to, subject, body string) error {
	m.logger.Info("mail (not sent, log mailer)",
		slog.String("to", to),
		slog.String("subject", subject),
		slog.String("body", body),
	)
	return nil
}

// compile-time interface check
var _ Mailer = (*SMTPMailer)(nil)
var _ Mailer = (*LogMailer)(nil)
