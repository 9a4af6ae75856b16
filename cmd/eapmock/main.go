// Command eapmock runs a standalone, scriptable stand-in for an External
// Agent Protocol peer, for local exercising of internal/eap.Client and the
// orchestrator's external dispatch path without a real agent fleet.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/R3E-Network/agent-orchestrator/internal/eap"
	"github.com/R3E-Network/agent-orchestrator/internal/eapmockserver"
	"github.com/R3E-Network/agent-orchestrator/internal/logging"
)

func main() {
	addr := os.Getenv("EAPMOCK_ADDR")
	if addr == "" {
		addr = ":9090"
	}

	logger := logging.New("eapmock", "info", "text")
	mock := eapmockserver.New(logger)

	if os.Getenv("EAPMOCK_DEGRADED") == "true" {
		mock.SetHealth(eap.Heartbeat{Status: eap.HealthDegraded, Timestamp: time.Now().UTC()})
	}

	srv := &http.Server{Addr: addr, Handler: mock.Router()}

	go func() {
		logger.WithFields(map[string]interface{}{"addr": addr}).Info("eap mock server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("eap mock server failed")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}
