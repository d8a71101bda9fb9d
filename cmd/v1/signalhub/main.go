package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/lobbysignal/signalhub/internal/v1/bus"
	"github.com/lobbysignal/signalhub/internal/v1/config"
	"github.com/lobbysignal/signalhub/internal/v1/health"
	"github.com/lobbysignal/signalhub/internal/v1/lobby"
	"github.com/lobbysignal/signalhub/internal/v1/logging"
	"github.com/lobbysignal/signalhub/internal/v1/middleware"
	"github.com/lobbysignal/signalhub/internal/v1/ratelimit"
	"github.com/lobbysignal/signalhub/internal/v1/tracing"
	"github.com/lobbysignal/signalhub/internal/v1/transport"
)

func main() {
	envPaths := []string{".env", "../../.env", "../../../.env"}
	for _, path := range envPaths {
		if err := godotenv.Load(path); err == nil {
			break
		}
	}

	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid configuration:", err)
		os.Exit(1)
	}

	if err := logging.Initialize(cfg.Development); err != nil {
		fmt.Fprintln(os.Stderr, "failed to initialize logger:", err)
		os.Exit(1)
	}
	ctx := context.Background()
	logging.Info(ctx, "starting signalhub", zap.String("name", cfg.Name), zap.Int("port", cfg.Port))

	var busService *bus.Service
	if cfg.RedisEnabled {
		busService, err = bus.NewService(cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			logging.Fatal(ctx, "failed to connect to redis", zap.Error(err))
		}
		defer busService.Close()
	} else {
		logging.Info(ctx, "redis disabled, running in single-instance mode")
	}

	if cfg.OTLPEndpoint != "" {
		tp, err := tracing.InitTracer(ctx, cfg.Name, cfg.OTLPEndpoint)
		if err != nil {
			logging.Warn(ctx, "failed to initialize tracing, continuing without it", zap.Error(err))
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = tp.Shutdown(shutdownCtx)
			}()
		}
	}

	rl, err := ratelimit.New(cfg, busService.Client())
	if err != nil {
		logging.Fatal(ctx, "failed to initialize rate limiter", zap.Error(err))
	}

	state := lobby.NewState(cfg.Name, cfg.MOTD, toLobbyIceServers(cfg.IceServers))
	svc := lobby.NewService(state, busService)

	busCtx, cancelBus := context.WithCancel(context.Background())
	defer cancelBus()
	var wg sync.WaitGroup
	if busService != nil {
		wireCrossInstanceEvents(busCtx, busService, state, &wg)
	}

	allowedOrigins := transport.AllowedOriginsFromEnv("ALLOWED_ORIGINS", []string{"http://localhost:3000"})
	hub := transport.NewHub(state, svc, rl, allowedOrigins)
	healthHandler := health.NewHandler(busService)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = allowedOrigins
	router.Use(cors.New(corsConfig))

	router.GET("/ws", hub.ServeWs)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/health/live", healthHandler.Liveness)
	router.GET("/health/ready", healthHandler.Readiness)

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: router,
	}

	go func() {
		logging.Info(ctx, "http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Fatal(ctx, "server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logging.Info(ctx, "shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error(ctx, "server forced to shutdown", zap.Error(err))
	}
	cancelBus()
	wg.Wait()
	logging.Info(ctx, "exited")
}

func toLobbyIceServers(in []config.IceServer) []lobby.IceServerConfig {
	out := make([]lobby.IceServerConfig, 0, len(in))
	for _, s := range in {
		out = append(out, lobby.IceServerConfig{
			URL:        s.URL,
			Username:   s.Username,
			Credential: s.Credential,
			Name:       s.Name,
		})
	}
	return out
}

// wireCrossInstanceEvents relays the cross-instance signals that only
// matter when more than one signalhub process runs: a "session-list-changed"
// published by another instance wakes this instance's local session-updates
// subscribers. Sessions themselves are not shared; the list those
// subscribers see is built from this instance's own registry.
func wireCrossInstanceEvents(ctx context.Context, busService *bus.Service, state *lobby.State, wg *sync.WaitGroup) {
	busService.SubscribeGlobal(ctx, wg, func(payload bus.PubSubPayload) {
		if payload.Event == "session-list-changed" {
			state.NotifySessionListChanged()
		}
	})
}
