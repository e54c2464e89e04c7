package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/chatman/internal/model"
)

// ============================================================
// モック
// ============================================================

type mockUserRepo struct {
	findByIDFn           func(ctx context.Context, id string) (*model.User, error)
	findByEmailFn        func(ctx context.Context, email string) (*model.User, error)
	createFn             func(ctx context.Context, user *model.User) error
	createWithIdentityFn func(ctx context.Context, user *model.User, identity *model.Identity) error
	updateProfileFn      func(ctx context.Context, id, displayName, photoURL string) error
	updatePasswordFn     func(ctx context.Context, id, passwordHash string) error
	markVerifiedFn       func(ctx context.Context, id string) error
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	if m.findByEmailFn != nil {
		return m.findByEmailFn(ctx, email)
	}
	return nil, nil
}

func (m *mockUserRepo) Create(ctx context.Context, user *model.User) error {
	if m.createFn != nil {
		return m.createFn(ctx, user)
	}
	return nil
}

func (m *mockUserRepo) CreateWithIdentity(ctx context.Context, user *model.User, identity *model.Identity) error {
	if m.createWithIdentityFn != nil {
		return m.createWithIdentityFn(ctx, user, identity)
	}
	return nil
}

func (m *mockUserRepo) UpdateProfile(ctx context.Context, id, displayName, photoURL string) error {
	if m.updateProfileFn != nil {
		return m.updateProfileFn(ctx, id, displayName, photoURL)
	}
	return nil
}

func (m *mockUserRepo) UpdatePasswordHash(ctx context.Context, id, passwordHash string) error {
	if m.updatePasswordFn != nil {
		return m.updatePasswordFn(ctx, id, passwordHash)
	}
	return nil
}

func (m *mockUserRepo) MarkEmailVerified(ctx context.Context, id string) error {
	if m.markVerifiedFn != nil {
		return m.markVerifiedFn(ctx, id)
	}
	return nil
}

type mockIdentityRepo struct {
	findFn func(ctx context.Context, provider, providerUserID string) (*model.Identity, error)
}

func (m *mockIdentityRepo) FindByProviderAndProviderUserID(ctx context.Context, provider, providerUserID string) (*model.Identity, error) {
	if m.findFn != nil {
		return m.findFn(ctx, provider, providerUserID)
	}
	return nil, nil
}

type mockSessionRepo struct {
	createFn         func(ctx context.Context, session *model.Session) error
	findByIDFn       func(ctx context.Context, id string) (*model.Session, error)
	deleteByIDFn     func(ctx context.Context, id string) error
	deleteByUserIDFn func(ctx context.Context, userID string) error
	deleteExpiredFn  func(ctx context.Context) (int64, error)
}

func (m *mockSessionRepo) Create(ctx context.Context, session *model.Session) error {
	if m.createFn != nil {
		return m.createFn(ctx, session)
	}
	return nil
}

func (m *mockSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockSessionRepo) DeleteByID(ctx context.Context, id string) error {
	if m.deleteByIDFn != nil {
		return m.deleteByIDFn(ctx, id)
	}
	return nil
}

func (m *mockSessionRepo) DeleteByUserID(ctx context.Context, userID string) error {
	if m.deleteByUserIDFn != nil {
		return m.deleteByUserIDFn(ctx, userID)
	}
	return nil
}

func (m *mockSessionRepo) DeleteExpired(ctx context.Context) (int64, error) {
	if m.deleteExpiredFn != nil {
		return m.deleteExpiredFn(ctx)
	}
	return 0, nil
}

type mockOAuthProvider struct {
	loginURLFn     func(state string) string
	exchangeCodeFn func(ctx context.Context, code string) (*OAuthUserInfo, error)
}

func (m *mockOAuthProvider) GetLoginURL(state string) string {
	if m.loginURLFn != nil {
		return m.loginURLFn(state)
	}
	return "https://example.com/oauth?state=" + state
}

func (m *mockOAuthProvider) ExchangeCode(ctx context.Context, code string) (*OAuthUserInfo, error) {
	if m.exchangeCodeFn != nil {
		return m.exchangeCodeFn(ctx, code)
	}
	return nil, errors.New("not implemented")
}

type sentMail struct {
	to      string
	subject string
	body    string
}

type mockMailer struct {
	sendFn func(ctx context.Context, to, subject, body string) error
	sent   []sentMail
}

func (m *mockMailer) Send(ctx context.Context, to, subject, body string) error {
	m.sent = append(m.sent, sentMail{to: to, subject: subject, body: body})
	if m.sendFn != nil {
		return m.sendFn(ctx, to, subject, body)
	}
	return nil
}

func newTestService(users *mockUserRepo, idents *mockIdentityRepo, sessions *mockSessionRepo, oauth *mockOAuthProvider, mail *mockMailer) *Service {
	if users == nil {
		users = &mockUserRepo{}
	}
	if idents == nil {
		idents = &mockIdentityRepo{}
	}
	if sessions == nil {
		sessions = &mockSessionRepo{}
	}
	if oauth == nil {
		oauth = &mockOAuthProvider{}
	}
	if mail == nil {
		mail = &mockMailer{}
	}
	return NewService(oauth, users, idents, sessions,
		NewTokenIssuer([]byte("test-secret"), time.Hour), mail,
		ServiceConfig{SessionMaxAge: 3600, BaseURL: "http://localhost:8080", BcryptCost: bcrypt.MinCost})
}

// apiErrorCode はエラーからAPIErrorのコードを取り出す。APIErrorでなければ空文字列。
func apiErrorCode(err error) string {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return ""
}

// ============================================================
// サインアップ
// ============================================================

func TestService_SignUp_Success(t *testing.T) {
	var createdUser *model.User
	var createdSession *model.Session
	users := &mockUserRepo{
		createFn: func(ctx context.Context, user *model.User) error {
			createdUser = user
			return nil
		},
	}
	sessions := &mockSessionRepo{
		createFn: func(ctx context.Context, session *model.Session) error {
			createdSession = session
			return nil
		},
	}
	svc := newTestService(users, nil, sessions, nil, nil)

	user, session, err := svc.SignUp(context.Background(), "new@example.com", "password123")
	if err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}

	if createdUser == nil {
		t.Fatal("expected user to be persisted")
	}
	if user.Email != "new@example.com" {
		t.Errorf("email = %q, want %q", user.Email, "new@example.com")
	}
	if user.EmailVerified {
		t.Error("new password account must start unverified")
	}
	// 平文パスワードは保存されず、検証可能なbcryptハッシュが保存される
	if user.PasswordHash == "password123" {
		t.Fatal("password stored in plain text")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("password123")); err != nil {
		t.Errorf("stored hash does not match password: %v", err)
	}

	if createdSession == nil || session == nil {
		t.Fatal("expected session to be created")
	}
	if session.UserID != user.ID {
		t.Errorf("session.UserID = %q, want %q", session.UserID, user.ID)
	}
	if !session.ExpiresAt.After(time.Now()) {
		t.Error("session must expire in the future")
	}
}

// パスワードハッシュのコストは設定値に従う。未設定（0以下）ならbcrypt標準コスト。
func TestService_SignUp_UsesConfiguredBcryptCost(t *testing.T) {
	tests := []struct {
		name       string
		configured int
		want       int
	}{
		{"設定値を使用", bcrypt.MinCost, bcrypt.MinCost},
		{"未設定なら標準コスト", 0, bcrypt.DefaultCost},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var createdUser *model.User
			users := &mockUserRepo{
				createFn: func(ctx context.Context, user *model.User) error {
					createdUser = user
					return nil
				},
			}
			svc := NewService(&mockOAuthProvider{}, users, &mockIdentityRepo{}, &mockSessionRepo{},
				NewTokenIssuer([]byte("test-secret"), time.Hour), &mockMailer{},
				ServiceConfig{SessionMaxAge: 3600, BaseURL: "http://localhost:8080", BcryptCost: tt.configured})

			if _, _, err := svc.SignUp(context.Background(), "new@example.com", "password123"); err != nil {
				t.Fatalf("SignUp() error = %v", err)
			}

			cost, err := bcrypt.Cost([]byte(createdUser.PasswordHash))
			if err != nil {
				t.Fatalf("failed to read hash cost: %v", err)
			}
			if cost != tt.want {
				t.Errorf("hash cost = %d, want %d", cost, tt.want)
			}
		})
	}
}

func TestService_SignUp_InvalidEmail(t *testing.T) {
	created := false
	users := &mockUserRepo{
		createFn: func(ctx context.Context, user *model.User) error {
			created = true
			return nil
		},
	}
	svc := newTestService(users, nil, nil, nil, nil)

	_, _, err := svc.SignUp(context.Background(), "not-an-email", "password123")
	if code := apiErrorCode(err); code != model.ErrCodeInvalidEmail {
		t.Errorf("error code = %q, want %q", code, model.ErrCodeInvalidEmail)
	}
	if created {
		t.Error("user must not be created for invalid email")
	}
}

func TestService_SignUp_WeakPassword(t *testing.T) {
	svc := newTestService(nil, nil, nil, nil, nil)

	_, _, err := svc.SignUp(context.Background(), "new@example.com", "12345")
	if code := apiErrorCode(err); code != model.ErrCodeWeakPassword {
		t.Errorf("error code = %q, want %q", code, model.ErrCodeWeakPassword)
	}
}

func TestService_SignUp_EmailTaken(t *testing.T) {
	users := &mockUserRepo{
		findByEmailFn: func(ctx context.Context, email string) (*model.User, error) {
			return &model.User{ID: "existing", Email: email}, nil
		},
	}
	svc := newTestService(users, nil, nil, nil, nil)

	_, _, err := svc.SignUp(context.Background(), "taken@example.com", "password123")
	if code := apiErrorCode(err); code != model.ErrCodeEmailTaken {
		t.Errorf("error code = %q, want %q", code, model.ErrCodeEmailTaken)
	}
}

// ============================================================
// サインイン
// ============================================================

func passwordUser(t *testing.T, password string) *model.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt error: %v", err)
	}
	return &model.User{
		ID:           "user-1",
		Email:        "user@example.com",
		PasswordHash: string(hash),
	}
}

func TestService_SignIn_Success(t *testing.T) {
	existing := passwordUser(t, "correct-password")
	users := &mockUserRepo{
		findByEmailFn: func(ctx context.Context, email string) (*model.User, error) {
			return existing, nil
		},
	}
	svc := newTestService(users, nil, nil, nil, nil)

	user, session, err := svc.SignIn(context.Background(), "user@example.com", "correct-password")
	if err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}
	if user.ID != "user-1" {
		t.Errorf("user.ID = %q, want %q", user.ID, "user-1")
	}
	if session == nil || session.UserID != "user-1" {
		t.Errorf("unexpected session: %+v", session)
	}
}

func TestService_SignIn_WrongPassword(t *testing.T) {
	existing := passwordUser(t, "correct-password")
	users := &mockUserRepo{
		findByEmailFn: func(ctx context.Context, email string) (*model.User, error) {
			return existing, nil
		},
	}
	svc := newTestService(users, nil, nil, nil, nil)

	_, _, err := svc.SignIn(context.Background(), "user@example.com", "wrong-password")
	if code := apiErrorCode(err); code != model.ErrCodeInvalidCredentials {
		t.Errorf("error code = %q, want %q", code, model.ErrCodeInvalidCredentials)
	}
}

// 未登録アドレスとパスワード不一致が同一のエラーを返すことを検証
func TestService_SignIn_UnknownEmail_SameError(t *testing.T) {
	svc := newTestService(nil, nil, nil, nil, nil)

	_, _, err := svc.SignIn(context.Background(), "nobody@example.com", "whatever")
	if code := apiErrorCode(err); code != model.ErrCodeInvalidCredentials {
		t.Errorf("error code = %q, want %q", code, model.ErrCodeInvalidCredentials)
	}
}

func TestService_SignIn_OAuthOnlyAccount(t *testing.T) {
	users := &mockUserRepo{
		findByEmailFn: func(ctx context.Context, email string) (*model.User, error) {
			return &model.User{ID: "user-1", Email: email, PasswordHash: ""}, nil
		},
	}
	svc := newTestService(users, nil, nil, nil, nil)

	_, _, err := svc.SignIn(context.Background(), "oauth@example.com", "whatever")
	if code := apiErrorCode(err); code != model.ErrCodePasswordSignInOnly {
		t.Errorf("error code = %q, want %q", code, model.ErrCodePasswordSignInOnly)
	}
}

// ============================================================
// OAuthコールバック
// ============================================================

func TestService_HandleCallback_NewUser(t *testing.T) {
	oauth := &mockOAuthProvider{
		exchangeCodeFn: func(ctx context.Context, code string) (*OAuthUserInfo, error) {
			return &OAuthUserInfo{
				ProviderUserID: "google-sub-1",
				Email:          "oauth@gmail.com",
				Name:           "OAuth User",
				PictureURL:     "https://example.com/p.jpg",
				EmailVerified:  true,
				Provider:       "google",
			}, nil
		},
	}
	var createdUser *model.User
	var createdIdentity *model.Identity
	users := &mockUserRepo{
		createWithIdentityFn: func(ctx context.Context, user *model.User, identity *model.Identity) error {
			createdUser = user
			createdIdentity = identity
			return nil
		},
	}
	svc := newTestService(users, nil, nil, oauth, nil)

	session, err := svc.HandleCallback(context.Background(), "auth-code")
	if err != nil {
		t.Fatalf("HandleCallback() error = %v", err)
	}

	if createdUser == nil || createdIdentity == nil {
		t.Fatal("expected user and identity to be created")
	}
	if createdUser.Email != "oauth@gmail.com" {
		t.Errorf("email = %q, want %q", createdUser.Email, "oauth@gmail.com")
	}
	if createdUser.DisplayName != "OAuth User" {
		t.Errorf("displayName = %q, want %q", createdUser.DisplayName, "OAuth User")
	}
	// 外部IdPで確認済みのアドレスはそのまま確認済みで作成される
	if !createdUser.EmailVerified {
		t.Error("expected EmailVerified to be true for verified OAuth account")
	}
	if createdUser.PasswordHash != "" {
		t.Error("OAuth user must not have a password hash")
	}
	if createdIdentity.Provider != "google" || createdIdentity.ProviderUserID != "google-sub-1" {
		t.Errorf("unexpected identity: %+v", createdIdentity)
	}
	if session.UserID != createdUser.ID {
		t.Errorf("session.UserID = %q, want %q", session.UserID, createdUser.ID)
	}
}

func TestService_HandleCallback_ExistingUser(t *testing.T) {
	oauth := &mockOAuthProvider{
		exchangeCodeFn: func(ctx context.Context, code string) (*OAuthUserInfo, error) {
			return &OAuthUserInfo{ProviderUserID: "google-sub-1", Provider: "google"}, nil
		},
	}
	idents := &mockIdentityRepo{
		findFn: func(ctx context.Context, provider, providerUserID string) (*model.Identity, error) {
			return &model.Identity{ID: "identity-1", UserID: "user-42", Provider: provider, ProviderUserID: providerUserID}, nil
		},
	}
	created := false
	users := &mockUserRepo{
		createWithIdentityFn: func(ctx context.Context, user *model.User, identity *model.Identity) error {
			created = true
			return nil
		},
	}
	svc := newTestService(users, idents, nil, oauth, nil)

	session, err := svc.HandleCallback(context.Background(), "auth-code")
	if err != nil {
		t.Fatalf("HandleCallback() error = %v", err)
	}
	if created {
		t.Error("existing user must not be recreated")
	}
	if session.UserID != "user-42" {
		t.Errorf("session.UserID = %q, want %q", session.UserID, "user-42")
	}
}

// ============================================================
// メール確認
// ============================================================

func TestService_VerificationMail_RoundTrip(t *testing.T) {
	verified := ""
	users := &mockUserRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.User, error) {
			return &model.User{ID: id, Email: "user@example.com"}, nil
		},
		markVerifiedFn: func(ctx context.Context, id string) error {
			verified = id
			return nil
		},
	}
	mail := &mockMailer{}
	svc := newTestService(users, nil, nil, nil, mail)

	if err := svc.SendVerificationEmail(context.Background(), "user-1"); err != nil {
		t.Fatalf("SendVerificationEmail() error = %v", err)
	}
	if len(mail.sent) != 1 {
		t.Fatalf("sent mails = %d, want 1", len(mail.sent))
	}
	if mail.sent[0].to != "user@example.com" {
		t.Errorf("to = %q, want %q", mail.sent[0].to, "user@example.com")
	}

	// メール本文からトークンを取り出して確認を完了する
	body := mail.sent[0].body
	i := strings.Index(body, "token=")
	if i < 0 {
		t.Fatalf("mail body has no token: %q", body)
	}
	token := strings.TrimSpace(body[i+len("token="):])

	if err := svc.VerifyEmail(context.Background(), token); err != nil {
		t.Fatalf("VerifyEmail() error = %v", err)
	}
	if verified != "user-1" {
		t.Errorf("verified user = %q, want %q", verified, "user-1")
	}
}

func TestService_VerifyEmail_InvalidToken(t *testing.T) {
	svc := newTestService(nil, nil, nil, nil, nil)

	err := svc.VerifyEmail(context.Background(), "garbage-token")
	if code := apiErrorCode(err); code != model.ErrCodeInvalidToken {
		t.Errorf("error code = %q, want %q", code, model.ErrCodeInvalidToken)
	}
}

// ============================================================
// パスワードリセット
// ============================================================

// 未登録アドレスへのリセット要求がエラーにならないことを検証
func TestService_RequestPasswordReset_UnknownEmail_NoError(t *testing.T) {
	mail := &mockMailer{}
	svc := newTestService(nil, nil, nil, nil, mail)

	if err := svc.RequestPasswordReset(context.Background(), "nobody@example.com"); err != nil {
		t.Fatalf("RequestPasswordReset() error = %v", err)
	}
	if len(mail.sent) != 0 {
		t.Errorf("sent mails = %d, want 0", len(mail.sent))
	}
}

func TestService_PasswordReset_RoundTrip(t *testing.T) {
	updatedHash := ""
	revokedUser := ""
	users := &mockUserRepo{
		findByEmailFn: func(ctx context.Context, email string) (*model.User, error) {
			return &model.User{ID: "user-1", Email: email}, nil
		},
		updatePasswordFn: func(ctx context.Context, id, passwordHash string) error {
			updatedHash = passwordHash
			return nil
		},
	}
	sessions := &mockSessionRepo{
		deleteByUserIDFn: func(ctx context.Context, userID string) error {
			revokedUser = userID
			return nil
		},
	}
	mail := &mockMailer{}
	svc := newTestService(users, nil, sessions, nil, mail)

	if err := svc.RequestPasswordReset(context.Background(), "user@example.com"); err != nil {
		t.Fatalf("RequestPasswordReset() error = %v", err)
	}
	if len(mail.sent) != 1 {
		t.Fatalf("sent mails = %d, want 1", len(mail.sent))
	}

	body := mail.sent[0].body
	i := strings.Index(body, "token=")
	if i < 0 {
		t.Fatalf("mail body has no token: %q", body)
	}
	token := strings.TrimSpace(body[i+len("token="):])

	if err := svc.ResetPassword(context.Background(), token, "new-password"); err != nil {
		t.Fatalf("ResetPassword() error = %v", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(updatedHash), []byte("new-password")); err != nil {
		t.Errorf("stored hash does not match new password: %v", err)
	}
	// 再設定後は全セッションが破棄される
	if revokedUser != "user-1" {
		t.Errorf("revoked user = %q, want %q", revokedUser, "user-1")
	}
}

// メール確認用トークンはパスワードリセットに流用できないことを検証
func TestService_ResetPassword_RejectsVerificationToken(t *testing.T) {
	svc := newTestService(nil, nil, nil, nil, nil)
	token, err := svc.tokens.Issue("user-1", PurposeVerifyEmail)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	err = svc.ResetPassword(context.Background(), token, "new-password")
	if code := apiErrorCode(err); code != model.ErrCodeInvalidToken {
		t.Errorf("error code = %q, want %q", code, model.ErrCodeInvalidToken)
	}
}

// ============================================================
// セッション
// ============================================================

func TestService_Logout_DeletesSession(t *testing.T) {
	deleted := ""
	sessions := &mockSessionRepo{
		deleteByIDFn: func(ctx context.Context, id string) error {
			deleted = id
			return nil
		},
	}
	svc := newTestService(nil, nil, sessions, nil, nil)

	if err := svc.Logout(context.Background(), "session-1"); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if deleted != "session-1" {
		t.Errorf("deleted session = %q, want %q", deleted, "session-1")
	}
}

func TestService_Logout_EmptySessionID(t *testing.T) {
	svc := newTestService(nil, nil, nil, nil, nil)

	if err := svc.Logout(context.Background(), ""); err == nil {
		t.Error("expected error for empty session ID")
	}
}

func TestService_GetCurrentUser_Success(t *testing.T) {
	sessions := &mockSessionRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
			return &model.Session{ID: id, UserID: "user-1", ExpiresAt: time.Now().Add(time.Hour)}, nil
		},
	}
	users := &mockUserRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.User, error) {
			return &model.User{ID: id, Email: "user@example.com"}, nil
		},
	}
	svc := newTestService(users, nil, sessions, nil, nil)

	user, err := svc.GetCurrentUser(context.Background(), "session-1")
	if err != nil {
		t.Fatalf("GetCurrentUser() error = %v", err)
	}
	if user.ID != "user-1" {
		t.Errorf("user.ID = %q, want %q", user.ID, "user-1")
	}
}

func TestService_GetCurrentUser_SessionNotFound(t *testing.T) {
	svc := newTestService(nil, nil, nil, nil, nil)

	if _, err := svc.GetCurrentUser(context.Background(), "missing-session"); err == nil {
		t.Error("expected error for missing session")
	}
}

// ============================================================
// プロフィール更新
// ============================================================

func TestService_UpdateProfile_Success(t *testing.T) {
	var gotName, gotPhoto string
	users := &mockUserRepo{
		updateProfileFn: func(ctx context.Context, id, displayName, photoURL string) error {
			gotName, gotPhoto = displayName, photoURL
			return nil
		},
		findByIDFn: func(ctx context.Context, id string) (*model.User, error) {
			return &model.User{ID: id, DisplayName: gotName, PhotoURL: gotPhoto}, nil
		},
	}
	svc := newTestService(users, nil, nil, nil, nil)

	user, err := svc.UpdateProfile(context.Background(), "user-1", "New Name", "https://example.com/new.jpg")
	if err != nil {
		t.Fatalf("UpdateProfile() error = %v", err)
	}
	if user.DisplayName != "New Name" {
		t.Errorf("displayName = %q, want %q", user.DisplayName, "New Name")
	}
	if user.PhotoURL != "https://example.com/new.jpg" {
		t.Errorf("photoURL = %q, want %q", user.PhotoURL, "https://example.com/new.jpg")
	}
}
