// Package password はパスワードの一方向ハッシュ化と照合を提供する。
//
// ハッシュにはbcryptを使用する。平文パスワードは保存されず、
// ハッシュからの逆算も事実上不可能である。
package password

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Hash は平文パスワードからbcryptハッシュを生成する。
// ソルトはbcryptが内部で自動生成するため、同じ平文でも毎回異なるハッシュになる。
// エラーは内部的な失敗時のみ返る。呼び出し側はサーバーエラーとして扱い、
// 平文のまま保存するフォールバックをしてはならない。
func Hash(plain string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("パスワードのハッシュ化に失敗: %w", err)
	}
	return string(hashed), nil
}

// Verify は平文パスワードがハッシュと一致するかを返す。
// 不一致・ハッシュ形式の不正はいずれもfalseを返し、エラーは返さない。
// 呼び出し側は「検証できない」を一律「ログイン拒否」として扱える。
func Verify(plain, hashed string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain)) == nil
}
