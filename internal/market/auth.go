package market

import (
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nao1215/ichiba/pkg/middleware"
	"github.com/nao1215/ichiba/pkg/password"
	"github.com/nao1215/ichiba/pkg/token"
)

// ロールの定義。サインアップ時に指定がなければcustomerになる。
const (
	roleCustomer = "customer"
	roleVendor   = "vendor"
)

// loginRequest はログインリクエストのJSON構造。
type loginRequest struct {
	// Email はユーザーのメールアドレス。
	Email string `json:"email" binding:"required"`
	// Password は平文パスワード。
	Password string `json:"password" binding:"required"`
}

// signupRequest はサインアップリクエストのJSON構造。
type signupRequest struct {
	// FirstName は名。
	FirstName string `json:"first_name" binding:"required"`
	// LastName は姓。
	LastName string `json:"last_name" binding:"required"`
	// Email はメールアドレス。全ユーザーで一意。
	Email string `json:"email" binding:"required,email"`
	// Password は平文パスワード。保存時にハッシュ化される。
	Password string `json:"password" binding:"required"`
	// Role はcustomerまたはvendor。省略時はcustomer。
	Role string `json:"role"`
}

// userResponse はユーザーのJSONレスポンス構造。
// パスワードハッシュは決して含めない。
type userResponse struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Role      string `json:"role"`
}

// authResponse は認証成功時のJSONレスポンス構造。
type authResponse struct {
	User  userResponse `json:"user"`
	Token string       `json:"token"`
}

// toUserResponse はDB行をJSONレスポンスに変換する。
func toUserResponse(u User) userResponse {
	return userResponse{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
		Role:      u.Role,
	}
}

// handleLogin はログインを処理するハンドラを返す。
// 認証失敗の理由（ユーザー不存在・パスワード不一致）はレスポンスで
// 区別しない。攻撃者への登録状況の漏えいを防ぐため。
func (s *Server) handleLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		u, err := s.store.GetUserByEmail(c.Request.Context(), req.Email)
		if errors.Is(err, ErrNotFound) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "メールアドレスまたはパスワードが違います"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ログイン処理に失敗しました"})
			log.Printf("ユーザー取得エラー: %v", err)
			return
		}

		if !password.Verify(req.Password, u.PasswordHash) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "メールアドレスまたはパスワードが違います"})
			return
		}

		signed, err := token.Issue(s.cfg.JWTSecret, u.Email, s.cfg.TokenTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "トークンの発行に失敗しました"})
			log.Printf("トークン発行エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, authResponse{User: toUserResponse(u), Token: signed})
	}
}

// handleSignup はサインアップを処理するハンドラを返す。
// ユーザーを登録し、ログイン済み状態として扱えるようトークンも同時に発行する。
func (s *Server) handleSignup() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req signupRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		role := req.Role
		switch role {
		case "":
			role = roleCustomer
		case roleCustomer, roleVendor:
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "roleはcustomerまたはvendorを指定してください"})
			return
		}

		hashed, err := password.Hash(req.Password)
		if err != nil {
			// 平文のまま保存するフォールバックはしない。サーバーエラーとして返す。
			c.JSON(http.StatusInternalServerError, gin.H{"error": "パスワードの処理に失敗しました"})
			log.Printf("パスワードハッシュ化エラー: %v", err)
			return
		}

		u := User{
			ID:           uuid.New().String(),
			FirstName:    req.FirstName,
			LastName:     req.LastName,
			Email:        req.Email,
			PasswordHash: hashed,
			Role:         role,
		}
		if err := s.store.CreateUser(c.Request.Context(), u); err != nil {
			if errors.Is(err, ErrDuplicateEmail) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "メールアドレスは既に使用されています"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ユーザーの登録に失敗しました"})
			log.Printf("ユーザー登録エラー: %v", err)
			return
		}

		signed, err := token.Issue(s.cfg.JWTSecret, u.Email, s.cfg.TokenTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "トークンの発行に失敗しました"})
			log.Printf("トークン発行エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, authResponse{User: toUserResponse(u), Token: signed})
	}
}

// handleRefresh はトークンの再発行を処理するハンドラを返す。
// このルートは認証ゲートの内側にあり、さらにトークンのサブジェクトと
// パスのメールアドレスの一致を要求する。他人のメールアドレスを指定した
// 再発行はできない。
func (s *Server) handleRefresh() gin.HandlerFunc {
	return func(c *gin.Context) {
		email := c.Param("email")

		if subject := middleware.Subject(c); subject != "" && subject != email {
			c.JSON(http.StatusForbidden, gin.H{"error": "自分以外のトークンは再発行できません"})
			return
		}

		u, err := s.store.GetUserByEmail(c.Request.Context(), email)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "トークンの再発行に失敗しました"})
			log.Printf("リフレッシュ対象ユーザーの取得エラー: email=%s, %v", email, err)
			return
		}

		signed, err := token.Issue(s.cfg.JWTSecret, u.Email, s.cfg.TokenTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "トークンの発行に失敗しました"})
			log.Printf("トークン発行エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, authResponse{User: toUserResponse(u), Token: signed})
	}
}

// handleValidateToken はトークンの有効性確認を処理するハンドラを返す。
// クライアントが保持中のトークンの生死を起動時に確認するために使う。
func (s *Server) handleValidateToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := token.Validate(s.cfg.JWTSecret, c.Param("token")); err != nil {
			if errors.Is(err, token.ErrExpired) {
				log.Printf("トークン検証エラー: 有効期限切れ")
			} else {
				log.Printf("トークン検証エラー: 不正なトークン")
			}
			c.JSON(http.StatusUnauthorized, gin.H{"error": "トークンが無効です"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"valid": true})
	}
}
