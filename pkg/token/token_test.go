package token

import (
	"errors"
	"testing"
	"time"
)

// testSecret はテスト用の署名シークレット。
const testSecret = "test-secret-key-for-unit-tests"

// TestIssue はトークン発行を検証する。
func TestIssue(t *testing.T) {
	t.Parallel()

	t.Run("発行したトークンが検証を通ること", func(t *testing.T) {
		t.Parallel()

		signed, err := Issue(testSecret, "a@b.com", 15*time.Minute)
		if err != nil {
			t.Fatalf("Issue()でエラーが発生: %v", err)
		}
		if signed == "" {
			t.Fatal("Issue()が空文字列を返した")
		}

		claims, err := Validate(testSecret, signed)
		if err != nil {
			t.Fatalf("Validate()でエラーが発生: %v", err)
		}
		if claims.Subject != "a@b.com" {
			t.Errorf("Subject = %q, want %q", claims.Subject, "a@b.com")
		}
	})

	t.Run("有効期限が発行時刻より後であること", func(t *testing.T) {
		t.Parallel()

		signed, err := Issue(testSecret, "exp@example.com", 15*time.Minute)
		if err != nil {
			t.Fatalf("Issue()でエラーが発生: %v", err)
		}

		claims, err := Validate(testSecret, signed)
		if err != nil {
			t.Fatalf("Validate()でエラーが発生: %v", err)
		}
		if !claims.ExpiresAt.Time.After(claims.IssuedAt.Time) {
			t.Errorf("ExpiresAt(%v)がIssuedAt(%v)より後になっていない",
				claims.ExpiresAt.Time, claims.IssuedAt.Time)
		}

		wantExpiry := claims.IssuedAt.Time.Add(15 * time.Minute)
		if !claims.ExpiresAt.Time.Equal(wantExpiry) {
			t.Errorf("ExpiresAt = %v, want %v", claims.ExpiresAt.Time, wantExpiry)
		}
	})
}

// TestValidate はトークン検証の失敗分類を検証する。
func TestValidate(t *testing.T) {
	t.Parallel()

	t.Run("TTLがゼロのトークンは即座に期限切れになること", func(t *testing.T) {
		t.Parallel()

		signed, err := Issue(testSecret, "zero@example.com", 0)
		if err != nil {
			t.Fatalf("Issue()でエラーが発生: %v", err)
		}

		time.Sleep(10 * time.Millisecond)
		if _, err := Validate(testSecret, signed); !errors.Is(err, ErrExpired) {
			t.Errorf("Validate() = %v, want ErrExpired", err)
		}
	})

	t.Run("期限を過ぎたトークンはErrExpiredになること", func(t *testing.T) {
		t.Parallel()

		signed, err := Issue(testSecret, "past@example.com", -time.Minute)
		if err != nil {
			t.Fatalf("Issue()でエラーが発生: %v", err)
		}

		if _, err := Validate(testSecret, signed); !errors.Is(err, ErrExpired) {
			t.Errorf("Validate() = %v, want ErrExpired", err)
		}
	})

	t.Run("署名を改ざんしたトークンはErrInvalidになること", func(t *testing.T) {
		t.Parallel()

		signed, err := Issue(testSecret, "tamper@example.com", 15*time.Minute)
		if err != nil {
			t.Fatalf("Issue()でエラーが発生: %v", err)
		}

		// 署名部分の各バイトを1つずつ反転しても、決して有効にならないこと。
		tampered := []byte(signed)
		for i := len(tampered) - 10; i < len(tampered); i++ {
			original := tampered[i]
			if tampered[i] == 'A' {
				tampered[i] = 'B'
			} else {
				tampered[i] = 'A'
			}
			if _, err := Validate(testSecret, string(tampered)); !errors.Is(err, ErrInvalid) {
				t.Errorf("改ざん位置%d: Validate() = %v, want ErrInvalid", i, err)
			}
			tampered[i] = original
		}
	})

	t.Run("異なるシークレットで署名されたトークンはErrInvalidになること", func(t *testing.T) {
		t.Parallel()

		signed, err := Issue("another-secret", "other@example.com", 15*time.Minute)
		if err != nil {
			t.Fatalf("Issue()でエラーが発生: %v", err)
		}

		if _, err := Validate(testSecret, signed); !errors.Is(err, ErrInvalid) {
			t.Errorf("Validate() = %v, want ErrInvalid", err)
		}
	})

	t.Run("JWTとして解釈できない文字列はErrInvalidになること", func(t *testing.T) {
		t.Parallel()

		for _, tok := range []string{"", "garbage", "a.b", "a.b.c.d"} {
			if _, err := Validate(testSecret, tok); !errors.Is(err, ErrInvalid) {
				t.Errorf("Validate(%q) = %v, want ErrInvalid", tok, err)
			}
		}
	})
}
