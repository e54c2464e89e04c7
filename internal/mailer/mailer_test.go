package mailer

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

// LogMailerはメールを送信せずログに内容を出力することを検証
func TestLogMailer_Send_LogsContent(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	m := NewLogMailer(logger)

	err := m.Send(context.Background(), "to@example.com", "Verify your email", "click the link")
	if err != nil {
		t.Fatalf("Send returned unexpected error: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"to@example.com", "Verify your email", "click the link"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output does not contain %q: %s", want, out)
		}
	}
}

// SMTPMailerはキャンセル済みコンテキストでエラーを返すことを検証
func TestSMTPMailer_Send_CanceledContext(t *testing.T) {
	m := NewSMTPMailer(SMTPConfig{Addr: "localhost:25", From: "noreply@example.com"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := m.Send(ctx, "to@example.com", "subject", "body"); err == nil {
		t.Error("expected error for canceled context")
	}
}
