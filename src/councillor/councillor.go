package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/councilbot/councillor/src/councillor/bot"
	"github.com/councilbot/councillor/src/councillor/config"
	"github.com/councilbot/councillor/src/councillor/web"
	"github.com/councilbot/councillor/src/shared/data"
	"github.com/councilbot/councillor/src/shared/logx"
)

func main() {
	cfg := config.Load(nil)

	db := data.MustMySQL(cfg.MySQLDSN)
	if err := data.Migrate(db); err != nil {
		logx.Fatal("main", "migrate: %v", err)
	}
	// Re-read config now that the settings table is reachable.
	cfg = config.Load(db)

	if cfg.Token == "" {
		logx.Fatal("main", "no Discord token configured (DISCORD_TOKEN)")
	}

	rdb := data.MustRedis(cfg.RedisURL)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b, err := bot.New(cfg, db, rdb)
	if err != nil {
		logx.Fatal("main", "bot: %v", err)
	}
	if err := b.Start(ctx); err != nil {
		logx.Fatal("main", "connecting to Discord: %v", err)
	}
	logx.Success("main", "councillor is running")

	go b.Resolver().Run(ctx)

	if cfg.HTTPPort != "" {
		srv := web.New(cfg.HTTPPort, db, rdb)
		go srv.Run(ctx)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logx.Info("main", "shutting down")
	cancel()
	b.Stop()
}
