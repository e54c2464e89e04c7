package remote

import (
	"context"
	"errors"
	"net/http"

	"github.com/hitoshi/chatman/client/chatclient"
)

// ErrFederatedSignInNotConfigured はFederatedSignInフック未設定時の
// SignInFederated呼び出しで返る。
var ErrFederatedSignInNotConfigured = errors.New("federated sign-in is not configured")

type credentialsPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type updateProfilePayload struct {
	DisplayName string `json:"display_name"`
}

type emailPayload struct {
	Email string `json:"email"`
}

// CreateAccount はメール/パスワードでアカウントを作成する。
// 成功するとセッショントークンを保持し、購読者へ通知する。
func (c *Client) CreateAccount(ctx context.Context, email, password string) (*chatclient.Identity, error) {
	var session sessionPayload
	err := c.doJSON(ctx, http.MethodPost, "/auth/signup", credentialsPayload{Email: email, Password: password}, &session)
	if err != nil {
		return nil, err
	}
	identity := session.User.toIdentity()
	c.setIdentity(session.Token, identity)
	return identity, nil
}

// SignIn はメール/パスワードでサインインする。
func (c *Client) SignIn(ctx context.Context, email, password string) (*chatclient.Identity, error) {
	var session sessionPayload
	err := c.doJSON(ctx, http.MethodPost, "/auth/login", credentialsPayload{Email: email, Password: password}, &session)
	if err != nil {
		return nil, err
	}
	identity := session.User.toIdentity()
	c.setIdentity(session.Token, identity)
	return identity, nil
}

// SignInFederated は設定されたフックで対話的な連携サインインを実行し、
// 得られたトークンでアイデンティティを確定する。
func (c *Client) SignInFederated(ctx context.Context) (*chatclient.Identity, error) {
	if c.federatedSignIn == nil {
		return nil, ErrFederatedSignInNotConfigured
	}
	token, err := c.federatedSignIn(ctx)
	if err != nil {
		return nil, err
	}
	c.SetToken(token)

	var user userPayload
	if err := c.doJSON(ctx, http.MethodGet, "/auth/me", nil, &user); err != nil {
		c.SetToken("")
		return nil, err
	}
	identity := user.toIdentity()
	c.setIdentity(token, identity)
	return identity, nil
}

// SignOut は現在のセッションを破棄する。
// サーバー側の失敗によらずローカルのトークンは消去する。
func (c *Client) SignOut(ctx context.Context) error {
	err := c.doJSON(ctx, http.MethodPost, "/auth/logout", nil, nil)
	c.setIdentity("", nil)
	return err
}

// SendVerificationEmail は現在のユーザーへ確認メールを再送する。
func (c *Client) SendVerificationEmail(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodPost, "/auth/verify-email/resend", nil, nil)
}

// SendPasswordResetEmail は指定アドレスへパスワードリセットメールを送信する。
func (c *Client) SendPasswordResetEmail(ctx context.Context, email string) error {
	return c.doJSON(ctx, http.MethodPost, "/auth/password-reset", emailPayload{Email: email}, nil)
}

// Reload は権威レコードからアイデンティティを再読み込みする。
func (c *Client) Reload(ctx context.Context) (*chatclient.Identity, error) {
	var user userPayload
	if err := c.doJSON(ctx, http.MethodGet, "/auth/me", nil, &user); err != nil {
		return nil, err
	}
	identity := user.toIdentity()
	c.setIdentity(c.Token(), identity)
	return identity, nil
}

// UpdateProfile は表示名を更新する。
func (c *Client) UpdateProfile(ctx context.Context, displayName string) error {
	var user userPayload
	err := c.doJSON(ctx, http.MethodPatch, "/auth/me", updateProfilePayload{DisplayName: displayName}, &user)
	if err != nil {
		return err
	}
	c.setIdentity(c.Token(), user.toIdentity())
	return nil
}
