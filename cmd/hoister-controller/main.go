// Command hoister-controller runs the controller: the deployment history
// store, the in-memory container-state index, and the HTTP+SSE API the
// agent talks to.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hoisterhq/hoister/internal/config"
	"github.com/hoisterhq/hoister/internal/controller/httpapi"
	"github.com/hoisterhq/hoister/internal/controller/sqlstore"
	"github.com/hoisterhq/hoister/internal/controller/statestore"
	"github.com/hoisterhq/hoister/internal/logging"
)

// version and commit are set at build time via ldflags.
var version = "dev"
var commit = "unknown"

func main() {
	cfg, err := config.LoadControllerConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	log := logging.New(cfg.LogJSON)
	log.Info("starting hoister-controller", "version", version, "commit", commit, "port", cfg.Port)

	db, err := sqlstore.Open(cfg.DatabasePath)
	if err != nil {
		log.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	state := statestore.New()
	broadcaster := httpapi.NewBroadcaster(log)
	api := httpapi.New(db, state, broadcaster, log)

	mux := http.NewServeMux()
	mux.Handle("/", api.Handler(cfg.APISecret))
	mux.Handle("GET /metrics", promhttp.Handler())

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		var serveErr error
		if cfg.TLSCertPath != "" {
			serveErr = srv.ListenAndServeTLS(cfg.TLSCertPath, cfg.TLSKeyPath)
		} else {
			serveErr = srv.ListenAndServe()
		}
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			log.Error("http server error", "error", serveErr)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutCancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}
