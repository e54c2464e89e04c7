package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, chat, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeEmailTaken         = "EMAIL_TAKEN"
	ErrCodeInvalidEmail       = "INVALID_EMAIL"
	ErrCodeWeakPassword       = "WEAK_PASSWORD"
	ErrCodeInvalidToken       = "INVALID_TOKEN"
	ErrCodeUserNotFound       = "USER_NOT_FOUND"
	ErrCodeMessageEmpty       = "MESSAGE_EMPTY"
	ErrCodeMessageTooLong     = "MESSAGE_TOO_LONG"
	ErrCodePasswordSignInOnly = "PASSWORD_SIGNIN_ONLY"
)

// NewInvalidCredentialsError は認証失敗エラーを生成する。
// メールアドレスの存在有無が推測できないよう、原因は区別しない。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "メールアドレスまたはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewEmailTakenError はメールアドレス重複エラーを生成する。
func NewEmailTakenError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailTaken,
		Message:  "このメールアドレスは既に登録されています。",
		Category: "auth",
		Action:   "サインインするか、別のメールアドレスを使用してください。",
	}
}

// NewInvalidEmailError は無効なメールアドレスエラーを生成する。
func NewInvalidEmailError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidEmail,
		Message:  "メールアドレスの形式が正しくありません。",
		Category: "validation",
		Action:   "正しいメールアドレスを入力してください。",
	}
}

// NewWeakPasswordError はパスワード強度不足エラーを生成する。
func NewWeakPasswordError(minLength int) *APIError {
	return &APIError{
		Code:     ErrCodeWeakPassword,
		Message:  fmt.Sprintf("パスワードは%d文字以上で入力してください。", minLength),
		Category: "validation",
		Action:   "より長いパスワードを設定してください。",
	}
}

// NewInvalidTokenError は無効・期限切れトークンエラーを生成する。
// メール確認リンクとパスワードリセットリンクの双方で使用する。
func NewInvalidTokenError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidToken,
		Message:  "リンクが無効か、有効期限が切れています。",
		Category: "auth",
		Action:   "メールの再送信を依頼してください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "サインインし直してください。",
	}
}

// NewMessageEmptyError は空メッセージエラーを生成する。
func NewMessageEmptyError() *APIError {
	return &APIError{
		Code:     ErrCodeMessageEmpty,
		Message:  "メッセージが空です。",
		Category: "validation",
		Action:   "本文を入力してから送信してください。",
	}
}

// NewMessageTooLongError はメッセージ長超過エラーを生成する。
func NewMessageTooLongError(maxLength int) *APIError {
	return &APIError{
		Code:     ErrCodeMessageTooLong,
		Message:  fmt.Sprintf("メッセージは%d文字以内で入力してください。", maxLength),
		Category: "validation",
		Action:   "本文を短くしてから再度送信してください。",
	}
}

// NewPasswordSignInOnlyError は外部IdP専用アカウントへのパスワード
// サインイン試行エラーを生成する。
func NewPasswordSignInOnlyError() *APIError {
	return &APIError{
		Code:     ErrCodePasswordSignInOnly,
		Message:  "このアカウントは外部プロバイダーで登録されています。",
		Category: "auth",
		Action:   "Googleサインインをご利用ください。",
	}
}
