// Package token は署名付きセッショントークンの発行と検証を提供する。
//
// トークンはHS256で署名されたJWTで、サーバー側に状態を持たない。
// 発行済みトークンの失効リストは管理しないため、有効期限が切れるまで
// トークンは有効であり続ける。
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrExpired はトークンの有効期限切れを表す。
	// 署名は正しいが期限が過ぎている場合のみ返る。
	ErrExpired = errors.New("トークンの有効期限が切れています")
	// ErrInvalid は署名不正・形式不正なトークンを表す。
	ErrInvalid = errors.New("トークンが不正です")
)

// issuer はトークンのiss（発行者）クレーム。
const issuer = "ichiba"

// Claims はセッショントークンのクレーム（ペイロード）。
// Subjectには認証済みユーザーのメールアドレスを格納する。
type Claims struct {
	jwt.RegisteredClaims
}

// Issue はsubjectに対して有効期間ttlのセッショントークンを発行する。
// ttlは設定値として注入する。ログイン・サインアップ・リフレッシュの
// いずれも同じ発行経路を通る。
func Issue(secret, subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("トークンの署名に失敗: %w", err)
	}
	return signed, nil
}

// Validate はトークンの署名と有効期限を検証し、クレームを返す。
// 署名検証が先、期限チェックが後。期限切れはErrExpired、
// それ以外の検証失敗はすべてErrInvalidに分類される。
// 呼び出し側はログ出力で両者を区別できるが、HTTPレスポンスとしては
// どちらも401にマッピングされる。
func Validate(secret, tokenString string) (*Claims, error) {
	claims := &Claims{}
	t, err := jwt.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, ErrInvalid
	}
	if !t.Valid || claims.Subject == "" {
		return nil, ErrInvalid
	}
	return claims, nil
}
