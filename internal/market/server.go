package market

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
	_ "modernc.org/sqlite"

	"github.com/nao1215/ichiba/internal/config"
	"github.com/nao1215/ichiba/pkg/middleware"
	"github.com/nao1215/ichiba/pkg/migration"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Server はマーケットプレイスサービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// cfg は起動時に一度だけ読み込まれた不変の設定。
	cfg *config.Config
	// store はSQLiteに対する永続化層。
	store *Store
	// db はSQLiteデータベース接続。
	db *sql.DB
	// authLimiter はログイン・サインアップの総当たり対策のレートリミッター。
	authLimiter *middleware.RateLimiter
}

// NewServer は新しいマーケットプレイスサーバーを生成する。
// SQLiteデータベースの初期化とマイグレーションの適用を行う。
//
// DSNの_txlock=immediateにより書き込みトランザクションは開始時点で
// 書き込みロックを取得する。注文処理の条件付き減算がこれを前提とする。
func NewServer(cfg *config.Config) (*Server, error) {
	if cfg.Env.IsProd() {
		gin.SetMode(gin.ReleaseMode)
	}

	dsn := fmt.Sprintf(
		"file:%s?_txlock=immediate&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)",
		cfg.DBPath,
	)
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}

	if err := migration.Run(context.Background(), sqlDB, migrationFS, "migrations"); err != nil {
		return nil, fmt.Errorf("マイグレーションの適用に失敗: %w", err)
	}

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(gin.Logger())
	router.Use(middleware.CORS(cfg.AllowedOrigins))

	s := &Server{
		router: router,
		cfg:    cfg,
		store:  NewStore(sqlDB),
		db:     sqlDB,
		// 認証エンドポイントはIPごとに毎分10リクエストまで。
		authLimiter: middleware.NewRateLimiter(rate.Limit(10.0/60.0), 10),
	}
	s.setupRoutes()

	return s, nil
}

// Run はHTTPサーバーを起動する。
func (s *Server) Run() error {
	return s.router.Run(fmt.Sprintf(":%s", s.cfg.Port))
}

// Shutdown はサーバーのバックグラウンド処理とデータベース接続を停止する。
func (s *Server) Shutdown() {
	if s.authLimiter != nil {
		s.authLimiter.Stop()
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			log.Printf("データベースのクローズに失敗: %v", err)
		}
	}
}

// setupRoutes はAPIルーティングを設定する。
// 認証ゲートの通過が必要なルートと公開ルートを明示的に分ける。
func (s *Server) setupRoutes() {
	api := s.router.Group("/api")

	// 認証エンドポイント（認証不要・レート制限あり）
	auth := api.Group("/auth")
	auth.Use(s.authLimiter.Middleware())
	{
		auth.POST("/login", s.handleLogin())
		auth.POST("/signup", s.handleSignup())
		auth.GET("/validate/:token", s.handleValidateToken())
	}

	// 公開ルート（商品の閲覧は未ログインでも可能）
	api.GET("/get_item/:name", s.handleSearchItems())
	api.GET("/get_items", s.handleListItems())

	// 認証必須ルート。バイパスは開発環境かつ明示的なフラグ設定時のみ。
	protected := api.Group("")
	protected.Use(middleware.TokenAuth(s.cfg.JWTSecret, s.cfg.AuthBypass && s.cfg.Env.IsDev()))
	{
		// トークンの再発行。認証済みチャネル経由でのみ到達できる
		protected.GET("/auth/refresh/:email", s.handleRefresh())

		protected.POST("/add_item", s.handleAddItem())
		protected.PUT("/edit_item", s.handleEditItem())
		protected.DELETE("/delete_item", s.handleDeleteItem())

		protected.POST("/add_order", s.handleAddOrder())
		protected.GET("/get_orders/:user_id", s.handleGetOrders())
	}

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "ichiba"})
	})
}
