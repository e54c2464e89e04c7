package chatclient

import (
	"errors"
	"fmt"
)

// ErrorKind はクライアントエラーの分類を表す。
type ErrorKind string

const (
	// KindValidation はリモート呼び出し前に検出されたローカル入力の不備。
	KindValidation ErrorKind = "validation"
	// KindProvider はリモートのアイデンティティ/ドキュメント操作の失敗。
	KindProvider ErrorKind = "provider"
	// KindNoCurrentUser はアクティブなセッションを要する操作がセッションなしで呼ばれたこと。
	KindNoCurrentUser ErrorKind = "no_current_user"
	// KindSubscription はライブフィード購読の確立失敗または中断。
	KindSubscription ErrorKind = "subscription"
)

// ClientError はコアが公開する統一エラー型。
// Kindで分類し、Messageにユーザー提示可能なメッセージを保持する。
type ClientError struct {
	Kind    ErrorKind
	Message string
	Err     error // 原因となった下位エラー（存在する場合）
}

// Error はerrorインターフェースを実装する。
func (e *ClientError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap は原因エラーを返す。
func (e *ClientError) Unwrap() error {
	return e.Err
}

// NewValidationError は入力検証エラーを生成する。
func NewValidationError(message string) *ClientError {
	return &ClientError{Kind: KindValidation, Message: message}
}

// NewProviderError はリモート操作の失敗をラップする。
// プロバイダーのメッセージはそのまま透過する。
func NewProviderError(err error) *ClientError {
	return &ClientError{Kind: KindProvider, Message: err.Error(), Err: err}
}

// NewProviderErrorMessage は固定メッセージのプロバイダーエラーを生成する。
// パスワードリセットのように、プロバイダーの生メッセージを露出すると
// アカウントの存在が漏洩する操作で使用する。
func NewProviderErrorMessage(message string, err error) *ClientError {
	return &ClientError{Kind: KindProvider, Message: message, Err: err}
}

// NewNoCurrentUserError はセッション未確立エラーを生成する。
func NewNoCurrentUserError() *ClientError {
	return &ClientError{Kind: KindNoCurrentUser, Message: "no user is signed in"}
}

// NewSubscriptionError は購読の確立失敗・中断をラップする。
func NewSubscriptionError(err error) *ClientError {
	return &ClientError{Kind: KindSubscription, Message: err.Error(), Err: err}
}

// IsKind はerrが指定KindのClientErrorかどうかを判定する。
func IsKind(err error, kind ErrorKind) bool {
	var ce *ClientError
	if errors.As(err, &ce) {
		return ce.Kind == kind
	}
	return false
}
