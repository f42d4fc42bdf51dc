package market

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/ichiba/pkg/token"
)

// TestHandleSignup はサインアップハンドラのテスト。
func TestHandleSignup(t *testing.T) {
	t.Parallel()

	t.Run("正常にユーザーを登録しトークンが発行されること", func(t *testing.T) {
		t.Parallel()
		s := setupTestServer(t)

		w := doRequest(s, http.MethodPost, "/api/auth/signup", "", map[string]string{
			"first_name": "花子",
			"last_name":  "市場",
			"email":      "hanako@example.com",
			"password":   "pw",
			"role":       "vendor",
		})

		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード: got %d, want %d, body=%s", w.Code, http.StatusOK, w.Body.String())
		}

		result := parseJSON(t, w)
		user, _ := result["user"].(map[string]any)
		if user["email"] != "hanako@example.com" {
			t.Errorf("email: got %v, want hanako@example.com", user["email"])
		}
		if user["role"] != "vendor" {
			t.Errorf("role: got %v, want vendor", user["role"])
		}

		// 発行されたトークンのサブジェクトがメールアドレスであること
		tok, _ := result["token"].(string)
		claims, err := token.Validate(testSecret, tok)
		if err != nil {
			t.Fatalf("発行されたトークンの検証に失敗: %v", err)
		}
		if claims.Subject != "hanako@example.com" {
			t.Errorf("Subject = %q, want hanako@example.com", claims.Subject)
		}
	})

	t.Run("レスポンスにパスワードハッシュが含まれないこと", func(t *testing.T) {
		t.Parallel()
		s := setupTestServer(t)

		w := doRequest(s, http.MethodPost, "/api/auth/signup", "", map[string]string{
			"first_name": "太郎",
			"last_name":  "テスト",
			"email":      "no-leak@example.com",
			"password":   "secret-pw",
		})

		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード: got %d, want %d", w.Code, http.StatusOK)
		}
		body := w.Body.String()
		if strings.Contains(body, "secret-pw") || strings.Contains(body, "password") {
			t.Errorf("レスポンスに秘密情報が含まれている: %s", body)
		}
	})

	t.Run("ロール省略時はcustomerになること", func(t *testing.T) {
		t.Parallel()
		s := setupTestServer(t)

		w := doRequest(s, http.MethodPost, "/api/auth/signup", "", map[string]string{
			"first_name": "太郎",
			"last_name":  "テスト",
			"email":      "default-role@example.com",
			"password":   "pw",
		})

		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード: got %d, want %d", w.Code, http.StatusOK)
		}
		result := parseJSON(t, w)
		user, _ := result["user"].(map[string]any)
		if user["role"] != "customer" {
			t.Errorf("role: got %v, want customer", user["role"])
		}
	})

	t.Run("不正なロールはBadRequest", func(t *testing.T) {
		t.Parallel()
		s := setupTestServer(t)

		w := doRequest(s, http.MethodPost, "/api/auth/signup", "", map[string]string{
			"first_name": "太郎",
			"last_name":  "テスト",
			"email":      "bad-role@example.com",
			"password":   "pw",
			"role":       "admin",
		})

		if w.Code != http.StatusBadRequest {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusBadRequest)
		}
	})

	t.Run("登録済みメールアドレスはBadRequest", func(t *testing.T) {
		t.Parallel()
		s := setupTestServer(t)

		signupTestUser(t, s, "dup@example.com", "pw")

		w := doRequest(s, http.MethodPost, "/api/auth/signup", "", map[string]string{
			"first_name": "次郎",
			"last_name":  "重複",
			"email":      "dup@example.com",
			"password":   "other-pw",
		})

		if w.Code != http.StatusBadRequest {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusBadRequest)
		}
	})

	t.Run("必須フィールドの欠落はBadRequest", func(t *testing.T) {
		t.Parallel()
		s := setupTestServer(t)

		w := doRequest(s, http.MethodPost, "/api/auth/signup", "", map[string]string{
			"email": "only-email@example.com",
		})

		if w.Code != http.StatusBadRequest {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusBadRequest)
		}
	})
}

// TestHandleLogin はログインハンドラのテスト。
func TestHandleLogin(t *testing.T) {
	t.Parallel()

	t.Run("サインアップ後に同じ認証情報でログインできること", func(t *testing.T) {
		t.Parallel()
		s := setupTestServer(t)

		signupTestUser(t, s, "a@b.com", "pw")

		w := doRequest(s, http.MethodPost, "/api/auth/login", "", map[string]string{
			"email":    "a@b.com",
			"password": "pw",
		})

		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード: got %d, want %d, body=%s", w.Code, http.StatusOK, w.Body.String())
		}

		result := parseJSON(t, w)
		tok, _ := result["token"].(string)
		claims, err := token.Validate(testSecret, tok)
		if err != nil {
			t.Fatalf("発行されたトークンの検証に失敗: %v", err)
		}
		if claims.Subject != "a@b.com" {
			t.Errorf("Subject = %q, want a@b.com", claims.Subject)
		}
	})

	t.Run("誤ったパスワードはBadRequestで詳細を漏らさないこと", func(t *testing.T) {
		t.Parallel()
		s := setupTestServer(t)

		signupTestUser(t, s, "wrong-pw@example.com", "correct-pw")

		w := doRequest(s, http.MethodPost, "/api/auth/login", "", map[string]string{
			"email":    "wrong-pw@example.com",
			"password": "wrong-pw",
		})

		if w.Code != http.StatusBadRequest {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusBadRequest)
		}
		body := w.Body.String()
		if strings.Contains(body, "$2a$") || strings.Contains(body, "hash") {
			t.Errorf("レスポンスにハッシュ情報が含まれている: %s", body)
		}
	})

	t.Run("未登録ユーザーも同じメッセージでBadRequestになること", func(t *testing.T) {
		t.Parallel()
		s := setupTestServer(t)

		signupTestUser(t, s, "exists@example.com", "pw")

		wWrongPW := doRequest(s, http.MethodPost, "/api/auth/login", "", map[string]string{
			"email":    "exists@example.com",
			"password": "bad",
		})
		wNoUser := doRequest(s, http.MethodPost, "/api/auth/login", "", map[string]string{
			"email":    "no-such-user@example.com",
			"password": "bad",
		})

		if wWrongPW.Code != http.StatusBadRequest || wNoUser.Code != http.StatusBadRequest {
			t.Fatalf("ステータスコード: got %d/%d, want %d", wWrongPW.Code, wNoUser.Code, http.StatusBadRequest)
		}
		// ユーザーの存在有無をエラーメッセージから区別できないこと
		if wWrongPW.Body.String() != wNoUser.Body.String() {
			t.Errorf("エラーメッセージが一致しない: %q vs %q", wWrongPW.Body.String(), wNoUser.Body.String())
		}
	})
}

// TestHandleRefresh はトークン再発行ハンドラのテスト。
func TestHandleRefresh(t *testing.T) {
	t.Parallel()

	t.Run("認証済みユーザーが自分のトークンを再発行できること", func(t *testing.T) {
		t.Parallel()
		s := setupTestServer(t)

		_, bearer := signupTestUser(t, s, "refresh@example.com", "pw")

		w := doRequest(s, http.MethodGet, "/api/auth/refresh/refresh@example.com", bearer, nil)

		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード: got %d, want %d, body=%s", w.Code, http.StatusOK, w.Body.String())
		}

		result := parseJSON(t, w)
		tok, _ := result["token"].(string)
		claims, err := token.Validate(testSecret, tok)
		if err != nil {
			t.Fatalf("再発行されたトークンの検証に失敗: %v", err)
		}
		if claims.Subject != "refresh@example.com" {
			t.Errorf("Subject = %q, want refresh@example.com", claims.Subject)
		}
	})

	t.Run("他人のメールアドレスを指定した再発行はForbidden", func(t *testing.T) {
		t.Parallel()
		s := setupTestServer(t)

		signupTestUser(t, s, "victim@example.com", "pw")
		_, bearer := signupTestUser(t, s, "attacker@example.com", "pw")

		w := doRequest(s, http.MethodGet, "/api/auth/refresh/victim@example.com", bearer, nil)

		if w.Code != http.StatusForbidden {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusForbidden)
		}
	})

	t.Run("トークンなしの再発行はUnauthorized", func(t *testing.T) {
		t.Parallel()
		s := setupTestServer(t)

		signupTestUser(t, s, "no-token@example.com", "pw")

		w := doRequest(s, http.MethodGet, "/api/auth/refresh/no-token@example.com", "", nil)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusUnauthorized)
		}
	})

	t.Run("期限切れトークンでの再発行はUnauthorized", func(t *testing.T) {
		t.Parallel()
		s := setupTestServer(t)

		signupTestUser(t, s, "expired@example.com", "pw")
		expired, err := token.Issue(testSecret, "expired@example.com", -time.Minute)
		if err != nil {
			t.Fatalf("トークン発行に失敗: %v", err)
		}

		w := doRequest(s, http.MethodGet, "/api/auth/refresh/expired@example.com", expired, nil)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusUnauthorized)
		}
	})
}

// TestHandleValidateToken はトークン有効性確認ハンドラのテスト。
func TestHandleValidateToken(t *testing.T) {
	t.Parallel()

	t.Run("有効なトークンはvalid=trueを返すこと", func(t *testing.T) {
		t.Parallel()
		s := setupTestServer(t)

		_, bearer := signupTestUser(t, s, "validate@example.com", "pw")

		w := doRequest(s, http.MethodGet, "/api/auth/validate/"+bearer, "", nil)

		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード: got %d, want %d", w.Code, http.StatusOK)
		}
		result := parseJSON(t, w)
		if result["valid"] != true {
			t.Errorf("valid: got %v, want true", result["valid"])
		}
	})

	t.Run("不正なトークンはUnauthorized", func(t *testing.T) {
		t.Parallel()
		s := setupTestServer(t)

		w := doRequest(s, http.MethodGet, "/api/auth/validate/not-a-token", "", nil)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusUnauthorized)
		}
	})
}
