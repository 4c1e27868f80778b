package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/arencloud/sitehost/internal/api"
	"github.com/arencloud/sitehost/internal/config"
	"github.com/arencloud/sitehost/internal/deploy"
	"github.com/arencloud/sitehost/internal/logging"
	"github.com/arencloud/sitehost/internal/metadata"
	"github.com/arencloud/sitehost/internal/middleware"
	"github.com/arencloud/sitehost/internal/objectstore"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Println("config error:", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Env)

	store, err := objectstore.New(cfg.Storage)
	if err != nil {
		logger.Fatal("failed to init object storage client", "error", err)
	}

	meta := metadata.NewClient(store, cfg.MetadataBucket)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := meta.EnsureInitialized(ctx); err != nil {
		cancel()
		logger.Fatal("failed to init metadata store", "error", err)
	}
	cancel()

	users := metadata.NewUsers(meta)
	deployments := metadata.NewDeployments(meta)
	deployer := deploy.New(store, deployments, cfg, logger)

	r := api.Router(cfg, logger, store, users, deployer)

	srv := &http.Server{
		Addr:              ":" + cfg.HttpPort,
		Handler:           middleware.Recoverer(r, logger),
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       0, // allow long-running uploads; rely on LB timeouts
		WriteTimeout:      0,
		MaxHeaderBytes:    1 << 20, // 1MB headers
	}
	logger.Info("server starting", "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Println("server error:", err)
		os.Exit(1)
	}
}
