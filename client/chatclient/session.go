package chatclient

import (
	"context"
	"log/slog"
	"strings"

	"github.com/hitoshi/chatman/client/store"
)

// passwordResetFailedMessage はパスワードリセット失敗時の固定メッセージ。
// プロバイダーの生メッセージをそのまま返すとメールアドレスの登録有無が
// 漏洩するため、成否によらず同一の文言を使用する。
const passwordResetFailedMessage = "could not send the password reset email, please try again later"

// Coordinator はアイデンティティプロバイダーのイベントと明示的な
// ユーザーコマンドをSessionStateの遷移へ変換する認証コーディネーター。
//
// アンビエントイベントストリームが真実のソースであり、明示的操作の
// 結果と競合した場合は到着順で後に適用されたものが現在の状態となる。
// 同一コマンドの多重発行はコア側では排他しない（呼び出し側の責務）が、
// 遷移はすべてアトミックな値置き換えであるため状態は破損しない。
type Coordinator struct {
	backend     IdentityBackend
	store       *store.Store[SessionState]
	logger      *slog.Logger
	unsubscribe func()
}

// NewCoordinator はCoordinatorを生成し、アンビエントアイデンティティ
// ストリームの購読を開始する。loggerがnilの場合はslog.Defaultを使用する。
func NewCoordinator(backend IdentityBackend, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Coordinator{
		backend: backend,
		store:   store.New(SessionState{}),
		logger:  logger,
	}
	c.unsubscribe = backend.SubscribeIdentity(c.applyAmbient)
	return c
}

// Store はSessionStateのストアを返す。ビュー層はこれを購読する。
func (c *Coordinator) Store() *store.Store[SessionState] {
	return c.store
}

// State は現在のSessionStateを返す。
func (c *Coordinator) State() SessionState {
	return c.store.Get()
}

// Close はアンビエントストリームの購読を解除する。
// セッション/コンポーネントの破棄時に呼び出す。
func (c *Coordinator) Close() {
	c.unsubscribe()
}

// applyAmbient はアンビエントイベントを適用する。
// アイデンティティは常に丸ごと置き換え、進行中フラグとエラーを消去する。
func (c *Coordinator) applyAmbient(user *Identity) {
	c.store.Set(SessionState{
		User:          user,
		Loading:       false,
		Err:           nil,
		Authenticated: user != nil,
	})
}

// begin は操作の開始を記録する。loadingを立て、前回のエラーを消去する。
func (c *Coordinator) begin() {
	c.store.Update(func(s SessionState) SessionState {
		s.Loading = true
		s.Err = nil
		return s
	})
}

// succeed は操作の成功を記録し、アイデンティティを丸ごと置き換える。
func (c *Coordinator) succeed(user *Identity) {
	c.store.Set(SessionState{
		User:          user,
		Loading:       false,
		Err:           nil,
		Authenticated: user != nil,
	})
}

// fail は操作の失敗を記録する。アイデンティティは変更しない。
func (c *Coordinator) fail(err error) {
	c.store.Update(func(s SessionState) SessionState {
		s.Loading = false
		s.Err = err
		return s
	})
}

// SignUp はアカウントを作成する。displayNameが指定されていれば
// プロフィールに設定し、確認メールの送信まで行う。
// email/passwordの欠落はリモート呼び出し前に検証エラーとなる。
func (c *Coordinator) SignUp(ctx context.Context, email, password, displayName string) error {
	if strings.TrimSpace(email) == "" || password == "" {
		err := NewValidationError("email and password are required")
		c.fail(err)
		return err
	}

	c.begin()

	user, err := c.backend.CreateAccount(ctx, email, password)
	if err != nil {
		perr := NewProviderError(err)
		c.fail(perr)
		return perr
	}

	if displayName != "" {
		if err := c.backend.UpdateProfile(ctx, displayName); err != nil {
			perr := NewProviderError(err)
			c.fail(perr)
			return perr
		}
		user.DisplayName = displayName
	}

	if err := c.backend.SendVerificationEmail(ctx); err != nil {
		perr := NewProviderError(err)
		c.fail(perr)
		return perr
	}

	c.logger.Info("user signed up", slog.String("uid", user.UID))
	c.succeed(user)
	return nil
}

// SignIn はメール/パスワードでサインインする。
// 失敗した場合は未認証のままエラーを記録する。
func (c *Coordinator) SignIn(ctx context.Context, email, password string) error {
	if strings.TrimSpace(email) == "" || password == "" {
		err := NewValidationError("email and password are required")
		c.fail(err)
		return err
	}

	c.begin()

	user, err := c.backend.SignIn(ctx, email, password)
	if err != nil {
		perr := NewProviderError(err)
		c.fail(perr)
		return perr
	}

	c.succeed(user)
	return nil
}

// SignInFederated は外部IdPとの連携サインインフローを実行する。
// キャンセル・失敗の場合は未認証のままエラーを記録する。
func (c *Coordinator) SignInFederated(ctx context.Context) error {
	c.begin()

	user, err := c.backend.SignInFederated(ctx)
	if err != nil {
		perr := NewProviderError(err)
		c.fail(perr)
		return perr
	}

	c.succeed(user)
	return nil
}

// SignOut はサインアウトする。リモートの破棄が失敗しても
// ローカルのアイデンティティは必ず消去し、エラーのみ記録する。
// リモートセッションが残る可能性はエラーとして呼び出し側へ伝わる。
func (c *Coordinator) SignOut(ctx context.Context) error {
	c.begin()

	err := c.backend.SignOut(ctx)
	if err != nil {
		perr := NewProviderError(err)
		c.store.Set(SessionState{
			User:          nil,
			Loading:       false,
			Err:           perr,
			Authenticated: false,
		})
		c.logger.Warn("remote sign-out failed, local session cleared anyway",
			slog.String("error", err.Error()),
		)
		return perr
	}

	c.succeed(nil)
	return nil
}

// RequestPasswordReset はパスワードリセットメールの送信を要求する。
// 現在のセッション状態は遷移しない。失敗時は固定の汎用メッセージを
// 記録し、プロバイダーの生メッセージは公開しない。
func (c *Coordinator) RequestPasswordReset(ctx context.Context, email string) error {
	if strings.TrimSpace(email) == "" {
		err := NewValidationError("email is required")
		c.fail(err)
		return err
	}

	c.begin()

	if err := c.backend.SendPasswordResetEmail(ctx, email); err != nil {
		perr := NewProviderErrorMessage(passwordResetFailedMessage, err)
		c.fail(perr)
		return perr
	}

	c.store.Update(func(s SessionState) SessionState {
		s.Loading = false
		return s
	})
	return nil
}

// ResendVerification は確認メールを再送する。状態遷移は行わない。
// 現在のユーザーが存在しない場合はNoCurrentUserエラーを返し、
// セッション状態には一切触れない。
func (c *Coordinator) ResendVerification(ctx context.Context) error {
	if c.store.Get().User == nil {
		return NewNoCurrentUserError()
	}

	c.begin()

	if err := c.backend.SendVerificationEmail(ctx); err != nil {
		perr := NewProviderError(err)
		c.fail(perr)
		return perr
	}

	c.store.Update(func(s SessionState) SessionState {
		s.Loading = false
		return s
	})
	return nil
}

// RefreshIdentity は権威レコードからアイデンティティを再読み込みして
// 丸ごと置き換える。帯域外で確認済みに変化した検証フラグを反映する。
func (c *Coordinator) RefreshIdentity(ctx context.Context) error {
	if c.store.Get().User == nil {
		return NewNoCurrentUserError()
	}

	c.begin()

	user, err := c.backend.Reload(ctx)
	if err != nil {
		perr := NewProviderError(err)
		c.fail(perr)
		return perr
	}

	c.succeed(user)
	return nil
}
