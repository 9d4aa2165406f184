// Command registry-server runs the private package registry described
// in SPEC_FULL.md: bootstraps the index repository and artifact store
// if needed, opens the relational store, starts the single-threaded
// mutation worker, and serves the HTTP surface.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jakibaki/registmily/internal/bootstrap"
	"github.com/jakibaki/registmily/internal/config"
	"github.com/jakibaki/registmily/internal/httpapi"
	"github.com/jakibaki/registmily/internal/identity"
	"github.com/jakibaki/registmily/pkg/registry/cratesio/artifact"
	"github.com/jakibaki/registmily/pkg/registry/cratesio/index"
	"github.com/jakibaki/registmily/pkg/registry/cratesio/store"
)

func main() {
	logger := log.New(os.Stdout, "registmily ", log.LstdFlags|log.LUTC)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("config: %v", err)
	}

	if err := bootstrap.Registry(cfg.RepoPath, cfg.StoragePath, cfg.PublicBaseURL); err != nil {
		logger.Fatalf("bootstrap: %v", err)
	}

	st, err := store.Open(cfg.DatabaseURL, cfg.DatabaseConnections)
	if err != nil {
		logger.Fatalf("db: %v", err)
	}
	defer st.Close()

	artifacts, err := artifact.New(cfg.StoragePath)
	if err != nil {
		logger.Fatalf("artifact store: %v", err)
	}

	writer, err := index.OpenWriter(cfg.RepoPath)
	if err != nil {
		logger.Fatalf("index writer: %v", err)
	}
	worker := index.NewWorker(writer, artifacts)
	workerCtx, cancelWorker := context.WithCancel(context.Background())
	go worker.Run(workerCtx)

	provider := identity.New(
		cfg.OpenIDAuthEndpoint,
		cfg.OpenIDTokenEndpoint,
		cfg.OpenIDClientID,
		cfg.OpenIDClientSecret,
		cfg.OpenIDNonce,
		cfg.PublicBaseURL+"/me/callback",
	)

	srv := httpapi.New(st, artifacts, worker, provider)
	httpSrv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Printf("listening on %s", cfg.ListenAddr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 2)
	signal.Notify(stop, syscall.SIGTERM, syscall.SIGINT)
	<-stop
	logger.Printf("shutting down...")
	_ = httpSrv.Close()
	worker.Close()
	cancelWorker()
}
