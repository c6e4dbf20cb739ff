package main

import (
	"context"
	"net/http"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/topluluk-game/sync-client/internal/config"
	"github.com/topluluk-game/sync-client/internal/devserver"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	logger := newLogger(cfg.IsDevelopment())
	defer logger.Sync()
	sugar := logger.Sugar()

	ctx := context.Background()
	srv := devserver.NewServer(ctx, sugar)

	sugar.Infow("devserver listening", "addr", cfg.Server.Addr)
	if err := http.ListenAndServe(cfg.Server.Addr, srv.Routes()); err != nil {
		sugar.Fatal(err)
	}
}

func newLogger(dev bool) *zap.Logger {
	if dev {
		l, _ := zap.NewDevelopment()
		return l
	}
	l, _ := zap.NewProduction()
	return l
}
