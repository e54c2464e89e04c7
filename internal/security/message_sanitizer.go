// Package security はアプリケーションのセキュリティ機能を提供する。
//
// MessageSanitizerService はチャットメッセージ本文をサニタイズし、
// XSS攻撃などのセキュリティリスクからユーザーを保護する。
// メッセージはプレーンテキストとして扱い、bluemondayの
// 許可リストベースのポリシーで全てのHTMLタグを除去する。
package security

import (
	"html"

	"github.com/microcosm-cc/bluemonday"
)

// MessageSanitizerService はメッセージ本文のサニタイズ機能のインターフェースを定義する。
// メッセージの保存前に使用される。
type MessageSanitizerService interface {
	// Sanitize はメッセージ本文からHTMLタグを全て除去し、プレーンテキストを返す。
	// タグ除去後のエンティティ（&lt;等）は元の文字に戻す。本文はそのまま
	// 文字列として保存・配信され、表示側でエスケープされる前提。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(text string) string
}

// messageSanitizer はMessageSanitizerServiceの実装。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type messageSanitizer struct {
	policy *bluemonday.Policy
}

// NewMessageSanitizer はMessageSanitizerServiceの新しいインスタンスを生成する。
// StrictPolicyは許可タグを一切持たないため、script, img, a を含む
// 全てのタグと属性が除去される。
func NewMessageSanitizer() *messageSanitizer {
	return &messageSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize はメッセージ本文からHTMLタグを全て除去する。
func (s *messageSanitizer) Sanitize(text string) string {
	return html.UnescapeString(s.policy.Sanitize(text))
}
