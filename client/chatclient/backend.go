package chatclient

import "context"

// IdentityBackend はアイデンティティプロバイダーへの操作を定義する。
// ワイヤープロトコルは実装側の関心事であり、コアはこのインターフェース
// のみに依存する。
type IdentityBackend interface {
	// CreateAccount はメール/パスワードでアカウントを作成する。
	CreateAccount(ctx context.Context, email, password string) (*Identity, error)

	// SignIn はメール/パスワードでサインインする。
	SignIn(ctx context.Context, email, password string) (*Identity, error)

	// SignInFederated は外部IdPとの対話的な連携サインインフローを実行する。
	// キャンセルもエラーとして返る。
	SignInFederated(ctx context.Context) (*Identity, error)

	// SignOut は現在のセッションを破棄する。
	SignOut(ctx context.Context) error

	// SendVerificationEmail は現在のユーザーへ確認メールを送信する。
	SendVerificationEmail(ctx context.Context) error

	// SendPasswordResetEmail は指定アドレスへパスワードリセットメールを送信する。
	// 現在のセッションとは独立したサイドチャネル操作。
	SendPasswordResetEmail(ctx context.Context, email string) error

	// Reload は権威レコードからアイデンティティを再読み込みする。
	// 別タブでの確認リンククリック等、帯域外で変化した検証フラグを拾う。
	Reload(ctx context.Context) (*Identity, error)

	// UpdateProfile は表示名を更新する。
	UpdateProfile(ctx context.Context, displayName string) error

	// SubscribeIdentity はアンビエントアイデンティティイベントを購読する。
	// コールバックは現在のアイデンティティ（未認証ならnil）とともに
	// 発生順に呼ばれる。返された関数で購読を解除する。
	SubscribeIdentity(fn func(*Identity)) (unsubscribe func())
}

// MessageBackend はメッセージコレクションへの操作を定義する。
type MessageBackend interface {
	// FetchMessages は全メッセージを作成時刻昇順で1回限り取得する。
	FetchMessages(ctx context.Context) ([]Message, error)

	// SubscribeMessages はメッセージコレクションのライブ購読を開く。
	// コールバックは直近limit件を昇順に並べた全量スナップショットとともに
	// 配信順に呼ばれる。購読の確立に失敗した場合はエラーを返す。
	SubscribeMessages(limit int, fn func([]Message)) (unsubscribe func(), err error)

	// AppendMessage はメッセージを追記する。IDとタイムスタンプは
	// バックエンドが割り当て、エコーとして返す。
	AppendMessage(ctx context.Context, email, text string) (Message, error)
}
