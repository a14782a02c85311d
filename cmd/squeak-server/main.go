// cmd/squeak-server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/michaelongaro/Squeak-sub000/internal/auth"
	"github.com/michaelongaro/Squeak-sub000/internal/cache"
	"github.com/michaelongaro/Squeak-sub000/internal/config"
	"github.com/michaelongaro/Squeak-sub000/internal/database"
	"github.com/michaelongaro/Squeak-sub000/internal/game"
	"github.com/michaelongaro/Squeak-sub000/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Loading configuration: %v", err)
	}
	cfg.ConfigureLogging()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.RedisAddr != "" {
		if err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisDB); err != nil {
			log.Warnf("Action history disabled: %v", err)
		}
	} else {
		log.Info("REDIS_ADDR not set; action history disabled.")
	}
	defer cache.Close()

	if cfg.DatabaseURL != "" {
		if err := database.Connect(ctx, cfg.DatabaseURL); err != nil {
			log.Warnf("Result persistence disabled: %v", err)
		}
	} else {
		log.Info("DATABASE_URL not set; result persistence disabled.")
	}
	defer database.Close()

	hub := game.NewHub(cfg.Game)
	srv := server.New(ctx, cfg, hub, auth.NewSigner(cfg.JWTSecret, cfg.TokenTTL))
	httpServer := srv.NewHTTPServer()

	go func() {
		log.Infof("Squeak server listening on :%s", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warnf("HTTP shutdown: %v", err)
	}
	hub.Shutdown()
	log.Info("Bye.")
}
