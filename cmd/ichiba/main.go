// ichibaサーバーのエントリポイント。
// ユーザー認証、商品管理、在庫整合性を保証した注文処理を提供する
// マーケットプレイスのバックエンド。
package main

import (
	"log"
	"os"

	"github.com/nao1215/ichiba/internal/config"
	"github.com/nao1215/ichiba/internal/market"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("設定の読み込みに失敗: %v", err)
	}

	// LOG_PATHが設定されている場合はログをファイルに出力する。
	if cfg.LogPath != "" {
		f, err := os.OpenFile(cfg.LogPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			log.Fatalf("ログファイルのオープンに失敗: %v", err)
		}
		defer f.Close()
		log.SetOutput(f)
	}

	server, err := market.NewServer(cfg)
	if err != nil {
		log.Fatalf("ichibaサーバーの初期化に失敗: %v", err)
	}
	defer server.Shutdown()

	log.Printf("ichibaサーバーを起動します: :%s (env=%s)", cfg.Port, cfg.Env)
	if err := server.Run(); err != nil {
		log.Fatalf("ichibaサーバーの起動に失敗: %v", err)
	}
}
