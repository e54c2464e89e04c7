package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// トークンの用途。用途の異なるトークンは相互に流用できない。
const (
	PurposeVerifyEmail   = "verify_email"
	PurposePasswordReset = "reset_password"
)

// tokenClaims はメール確認・パスワードリセット用トークンのクレーム。
type tokenClaims struct {
	Purpose string `json:"purpose"`
	jwt.RegisteredClaims
}

// TokenIssuer はメールリンクに埋め込む署名付きトークンの発行と検証を行う。
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenIssuer はTokenIssuerを生成する。
func NewTokenIssuer(secret []byte, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: secret, ttl: ttl}
}

// Issue は指定ユーザー・用途のトークンを発行する。
func (t *TokenIssuer) Issue(userID, purpose string) (string, error) {
	now := time.Now()
	claims := tokenClaims{
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify はトークンを検証し、ユーザーIDを返す。
// 署名不正、期限切れ、用途不一致はすべてエラーとなる。
func (t *TokenIssuer) Verify(tokenString, purpose string) (string, error) {
	claims := &tokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return "", fmt.Errorf("invalid token")
	}
	if claims.Purpose != purpose {
		return "", fmt.Errorf("token purpose mismatch")
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("token has no subject")
	}
	return claims.Subject, nil
}
