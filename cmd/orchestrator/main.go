// Command orchestrator is the process entrypoint: it loads configuration,
// wires storage, the lock manager, the agent registry, the executor, the
// notification fan-out, the illustrative HTTP surface, and the kernel's
// background sweeps, then serves until an interrupt signal arrives.
// Grounded on the teacher's cmd/indexer/main.go shape: load config, build
// a service, start it, block on an OS signal, stop it.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/R3E-Network/agent-orchestrator/internal/apperrors"
	"github.com/R3E-Network/agent-orchestrator/internal/config"
	"github.com/R3E-Network/agent-orchestrator/internal/eap"
	"github.com/R3E-Network/agent-orchestrator/internal/executor"
	"github.com/R3E-Network/agent-orchestrator/internal/httpapi"
	"github.com/R3E-Network/agent-orchestrator/internal/kernel"
	"github.com/R3E-Network/agent-orchestrator/internal/lock"
	"github.com/R3E-Network/agent-orchestrator/internal/logging"
	"github.com/R3E-Network/agent-orchestrator/internal/metrics"
	"github.com/R3E-Network/agent-orchestrator/internal/notify"
	"github.com/R3E-Network/agent-orchestrator/internal/notify/wsgateway"
	"github.com/R3E-Network/agent-orchestrator/internal/registry"
	"github.com/R3E-Network/agent-orchestrator/internal/resourceusage"
	"github.com/R3E-Network/agent-orchestrator/internal/storage/postgres"
	"github.com/R3E-Network/agent-orchestrator/internal/tenancy"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Default().WithError(err).Fatal("load config")
	}
	if err := cfg.Validate(); err != nil {
		logging.Default().WithError(err).Fatal("invalid config")
	}

	logger := logging.New("orchestrator", cfg.LogLevel, cfg.LogFormat)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.WithError(err).Fatal("open database")
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.WithError(err).Fatal("connect to redis")
	}

	locks := lock.NewManager(redisClient, logger, cfg.LockMaxQueueDepth)
	reg := registry.New(registry.NewRedisMirror(redisClient))
	quota := tenancy.NewQuotaEnforcer(store, store)
	promRegistry := prometheus.NewRegistry()
	appMetrics := metrics.New(promRegistry)
	publisher := notify.NewPublisher(redisClient, logger)
	eapClient := eap.New(logger, cfg.EAPTimeout)

	// The native in-process execution backend (Claude Code, Codex, or
	// similar CLI agents) is out of this module's scope; sessions that
	// never specify an external agent endpoint fail fast with a clear
	// error instead of silently hanging against an unimplemented port.
	internalDispatcher := executor.AgentDispatcherFunc(func(_ context.Context, req executor.DispatchRequest) (executor.DispatchResult, error) {
		return executor.DispatchResult{}, apperrors.NoAgentAvailable(req.TaskType)
	})

	exec := executor.New(store, quota, locks, logger, internalDispatcher, eapClient,
		executor.WithEventPublisher(publisher),
		executor.WithMetrics(appMetrics),
		executor.WithLockTiming(cfg.LockDefaultTTL, cfg.LockDefaultTTL),
		executor.WithResourceSampler(resourceusage.Gopsutil{}),
	)

	k := kernel.New(kernel.Config{
		Sessions:           store,
		Tenants:            store,
		Executor:           exec,
		Registry:           reg,
		Locks:              locks,
		Logger:             logger,
		HeartbeatMaxAge:    cfg.HeartbeatTTL,
		CheckpointKeepLast: 0,
	})
	if err := k.Start(ctx); err != nil {
		logger.WithError(err).Fatal("start kernel")
	}

	gateway := wsgateway.New(redisClient, logger)
	if cfg.EnableWebsocketFanout {
		go func() {
			if err := gateway.Run(ctx); err != nil && ctx.Err() == nil {
				logger.WithError(err).Error("websocket gateway stopped")
			}
		}()
	}

	apiServer := httpapi.New(exec, logger)
	httpSrv := &http.Server{
		Addr:    ":" + strconv.Itoa(cfg.HTTPPort),
		Handler: apiServer.Router(),
	}
	go func() {
		logger.WithFields(map[string]interface{}{"addr": httpSrv.Addr}).Info("http api listening")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("http api server failed")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = httpSrv.Shutdown(shutdownCtx)
	k.Stop()
	cancel()
}
