package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/kishorekota-dev/chatrouter/internal/aggregator"
	"github.com/kishorekota-dev/chatrouter/internal/api"
	"github.com/kishorekota-dev/chatrouter/internal/config"
	"github.com/kishorekota-dev/chatrouter/internal/escalation"
	"github.com/kishorekota-dev/chatrouter/internal/event"
	"github.com/kishorekota-dev/chatrouter/internal/events"
	"github.com/kishorekota-dev/chatrouter/internal/ingestion"
	"github.com/kishorekota-dev/chatrouter/internal/metrics"
	"github.com/kishorekota-dev/chatrouter/internal/queue"
	"github.com/kishorekota-dev/chatrouter/internal/registry"
	"github.com/kishorekota-dev/chatrouter/internal/scheduler"
	"github.com/kishorekota-dev/chatrouter/internal/service"
	"github.com/kishorekota-dev/chatrouter/internal/storage"
	"github.com/kishorekota-dev/chatrouter/internal/websocket"
	"github.com/kishorekota-dev/chatrouter/pkg/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

func main() {
	// Console output until the configuration says otherwise
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	log.Logger = newLogger(cfg, os.Stderr)

	log.Info().
		Str("port", cfg.Port).
		Str("env", cfg.Env).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Str("log_level", cfg.LogLevel).
		Str("routing_strategy", cfg.Policy.RoutingStrategy).
		Msg("starting chat router")

	// Create context for services
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Persistence for chat and escalation records
	store, err := storage.NewStore(ctx, storage.LoadConfig(), log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize storage")
	}
	defer store.Close()

	// Event fan-out
	eventsCfg := events.LoadConfig()
	publisher, err := events.NewPublisher(eventsCfg, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to message broker")
	}
	defer publisher.Close()
	emitter := events.NewEmitter(publisher, eventsCfg.Exchange, log.Logger)
	emitterDone := make(chan struct{})
	go func() {
		emitter.Run(ctx)
		close(emitterDone)
	}()

	// Routing core
	policy := cfg.Policy
	stats := metrics.New()
	chatQueue := queue.New(queue.NewMemoryStore(), queue.Options{
		MaxAttempts:         policy.MaxAttempts,
		PriorityPolicy:      policy.InvalidPriorityPolicy,
		DefaultWaitEstimate: policy.DefaultWaitEstimate,
	}, log.Logger)
	agents := registry.New(registry.NewMemoryStore(), registry.Options{
		DefaultMaxChats: policy.DefaultMaxChats,
		HistoryLimit:    policy.ChatHistoryLimit,
	}, log.Logger)
	tracker := escalation.New(chatQueue, store, escalation.Options{
		MaxEscalations:  policy.MaxEscalations,
		ExhaustedPolicy: policy.ExhaustedPolicy,
		Thresholds:      policy.SLA,
	}, log.Logger)

	svc, err := service.New(service.Deps{
		Queue:    chatQueue,
		Registry: agents,
		Tracker:  tracker,
		Metrics:  stats,
		Events:   emitter,
		Store:    store,
		Policy:   policy,
	}, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create service")
	}

	// Agent consoles
	processor := ingestion.NewDefaultProcessor(svc, stats, log.Logger)
	agentHub := websocket.NewAgentHub(processor, stats, log.Logger)
	svc.SetSender(agentHub)
	go agentHub.Run(ctx)

	// Dashboards
	hub := websocket.NewHub(stats, log.Logger)
	go hub.Run(ctx)
	go aggregator.NewAggregator(svc, hub, stats, log.Logger).Start(ctx)

	go svc.Run(ctx)

	// Periodic sweeps
	jobs := scheduler.New(log.Logger)
	mustSchedule(jobs, "sla_sweep", policy.SLASweepInterval, func() { svc.SweepSLA() })
	mustSchedule(jobs, "idle_agent_sweep", policy.AgentSweepInterval, func() { svc.SweepIdleAgents() })
	mustSchedule(jobs, "refresh_gauges", 5*time.Second, svc.RefreshGauges)
	jobs.Start(ctx)

	receiver := event.NewReceiver(processor, stats, log.Logger)
	r := newRouter(cfg, svc, hub, agentHub, receiver, stats, log.Logger)

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Msgf("server listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server...")

	// Stop matching, sweeps, hubs and the aggregator
	cancel()

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Attempt graceful shutdown
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	// Flush pending record writes and queued events
	svc.Wait()
	select {
	case <-emitterDone:
	case <-shutdownCtx.Done():
		log.Warn().Msg("event emitter did not drain before timeout")
	}

	log.Info().Msg("server stopped")
}

// newLogger builds the process logger: console output in development, JSON
// otherwise, and a rotating file copy when LOG_FILE is set
func newLogger(cfg *config.Config, stderr io.Writer) zerolog.Logger {
	var out io.Writer = stderr
	if cfg.Env == "development" {
		out = zerolog.ConsoleWriter{Out: stderr, TimeFormat: time.RFC3339}
	}
	if cfg.LogFile != "" {
		out = zerolog.MultiLevelWriter(out, &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    cfg.LogMaxSizeMB,
			MaxBackups: 5,
			MaxAge:     28,
			Compress:   true,
		})
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	logger := zerolog.New(out).With().Timestamp().Str("service", "chat-router").Logger()
	if err != nil {
		logger.Warn().Str("level", cfg.LogLevel).Msg("invalid log level, using info")
	}
	return logger
}

func mustSchedule(s *scheduler.Scheduler, name string, interval time.Duration, fn func()) {
	if err := s.Every(name, interval, fn); err != nil {
		log.Fatal().Err(err).Str("job", name).Msg("failed to schedule job")
	}
}

// newRouter wires middleware, REST handlers, metrics and websocket endpoints
func newRouter(cfg *config.Config, svc *service.Service, hub *websocket.Hub, agentHub *websocket.AgentHub, receiver *event.Receiver, stats *metrics.Metrics, logger zerolog.Logger) chi.Router {
	r := chi.NewRouter()

	// Add middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	r.Use(api.RecordRequests(stats))

	r.Get("/health", healthHandler)
	r.Get("/metrics", stats.Handler())

	r.Get("/ws/dashboard", websocket.NewHandler(hub, cfg, logger).ServeHTTP)
	r.Get("/ws/agents", websocket.NewAgentHandler(agentHub, logger).ServeHTTP)

	// Agent events from integrations without a websocket
	r.Post("/internal/agents/events", receiver.HandleEvent)
	r.Get("/internal/agents/events/stats", receiver.GetStats)

	api.NewHandlers(svc, agentHub, logger).Mount(r)

	return r
}

// healthHandler handles health check requests
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"ok","service":"chat-router"}`)
}
