// Package config はichibaサーバーの設定を管理する。
//
// 設定は起動時に環境変数から一度だけ読み込まれ、以降は不変のオブジェクト
// として各コンポーネントに注入される。リクエストごとの再読み込みは行わない。
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Environment はサーバーの実行環境を表す。
type Environment string

const (
	// EnvDevelopment はローカル開発環境。
	EnvDevelopment Environment = "development"
	// EnvProduction は本番環境。
	EnvProduction Environment = "production"
)

// UnmarshalText は環境変数の文字列をEnvironmentに変換する。
// 未知の値はdevelopmentとして扱う。
func (e *Environment) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "production", "prod":
		*e = EnvProduction
	default:
		*e = EnvDevelopment
	}
	return nil
}

// IsDev は開発環境かどうかを返す。
func (e Environment) IsDev() bool { return e == EnvDevelopment }

// IsProd は本番環境かどうかを返す。
func (e Environment) IsProd() bool { return e == EnvProduction }

// defaultDevSecret は開発環境専用のJWT署名シークレット。
const defaultDevSecret = "dev-secret-key"

// Config はichibaサーバーの全設定。
type Config struct {
	// Env はサーバーの実行環境（development / production）。
	Env Environment `env:"ICHIBA_ENV" envDefault:"development"`
	// Port はHTTPサーバーのリッスンポート。
	Port string `env:"PORT" envDefault:"8080"`
	// DBPath はSQLiteデータベースファイルのパス。
	DBPath string `env:"DB_PATH" envDefault:"/data/ichiba.db"`
	// LogPath はログファイルのパス。空の場合は標準エラー出力に出力する。
	LogPath string `env:"LOG_PATH"`
	// JWTSecret はJWTトークン署名用の秘密鍵。本番環境では必ず設定すること。
	JWTSecret string `env:"JWT_SECRET" envDefault:"dev-secret-key"`
	// TokenTTL はアクセストークンの有効期間。
	TokenTTL time.Duration `env:"TOKEN_TTL" envDefault:"15m"`
	// AuthBypass は認証ゲートを無効化するスイッチ。開発環境でのみ有効。
	// 有効化すると全ての保護ルートが認証なしで通過するため、起動時に警告を出す。
	AuthBypass bool `env:"AUTH_BYPASS" envDefault:"false"`
	// AllowedOrigins はCORSで許可するオリジンの一覧。
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envDefault:"http://localhost:3000"`
}

// Load は環境変数から設定を読み込み、整合性を検証する。
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("環境変数の解析に失敗: %w", err)
	}

	if cfg.Env.IsProd() {
		if cfg.JWTSecret == defaultDevSecret || cfg.JWTSecret == "" {
			return nil, fmt.Errorf("本番環境ではJWT_SECRETの設定が必須です")
		}
		if cfg.AuthBypass {
			return nil, fmt.Errorf("本番環境で認証バイパス（AUTH_BYPASS）は使用できません")
		}
	}

	if cfg.TokenTTL <= 0 {
		return nil, fmt.Errorf("TOKEN_TTLは正の値を指定してください: %s", cfg.TokenTTL)
	}

	return &cfg, nil
}
