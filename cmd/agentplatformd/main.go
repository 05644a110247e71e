// Command agentplatformd is the AgentPlatform daemon: it hosts the
// call_func gRPC service, an optional Prometheus /metrics endpoint, and the
// result pool janitor.
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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/nodeforge/agentplatform/internal/agentproto"
	"github.com/nodeforge/agentplatform/internal/agentregistry"
	"github.com/nodeforge/agentplatform/internal/classreg"
	"github.com/nodeforge/agentplatform/internal/janitor"
	"github.com/nodeforge/agentplatform/internal/launcher"
	"github.com/nodeforge/agentplatform/internal/message"
	"github.com/nodeforge/agentplatform/internal/obsmetrics"
	"github.com/nodeforge/agentplatform/internal/obsws"
	"github.com/nodeforge/agentplatform/internal/platform"
	"github.com/nodeforge/agentplatform/internal/resultpool"
	"github.com/nodeforge/agentplatform/pkg/echoagent"
	"github.com/nodeforge/agentplatform/pkg/rpcagent"
)

var (
	version = "dev"
	commit  = "none"
)

type config struct {
	host         string
	port         int
	metricsAddr  string
	logLevel     string
	sharedSecret string
	localMode    bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := &config{}

	root := &cobra.Command{
		Use:   "agentplatformd",
		Short: "agentplatformd — standalone AgentPlatform RPC server",
		Long: `agentplatformd hosts long-lived agent instances behind a single
call_func RPC, dispatching reply tasks to worker goroutines and returning
results through a bounded, expiring task pool.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cfg)
		},
	}

	root.AddCommand(newVersionCmd())

	root.PersistentFlags().StringVar(&cfg.host, "host", envOrDefault("AGENTPLATFORM_HOST", "localhost"), "host to bind the RPC server to")
	root.PersistentFlags().IntVar(&cfg.port, "port", envOrDefaultInt("AGENTPLATFORM_PORT", 0), "port to bind the RPC server to (0 auto-selects)")
	root.PersistentFlags().StringVar(&cfg.metricsAddr, "metrics-addr", envOrDefault("AGENTPLATFORM_METRICS_ADDR", ":9091"), "address for the Prometheus /metrics endpoint (empty disables it)")
	root.PersistentFlags().StringVar(&cfg.logLevel, "log-level", envOrDefault("AGENTPLATFORM_LOG_LEVEL", "info"), "log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&cfg.sharedSecret, "shared-secret", envOrDefault("AGENTPLATFORM_SHARED_SECRET", ""), "shared secret callers must present in the agent-secret metadata key (empty disables auth, dev only)")
	root.PersistentFlags().BoolVar(&cfg.localMode, "local-mode", envOrDefault("AGENTPLATFORM_LOCAL_MODE", "false") == "true", "restrict placeholder resolution to loopback peers")

	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("agentplatformd %s (commit: %s)\n", version, commit)
		},
	}
}

func run(ctx context.Context, cfg *config) error {
	logger, err := buildLogger(cfg.logLevel)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if cfg.sharedSecret == "" {
		logger.Warn("no shared secret configured, running without call_func authentication")
	}

	classes := classreg.New()
	echoagent.Register(classes)

	registry := agentregistry.New(classes)
	pool := resultpool.New(resultpool.DefaultMaxLen, resultpool.DefaultMaxAge)

	registerer := prometheus.NewRegistry()
	metrics := obsmetrics.New(registerer)

	resolver := newPlaceholderResolver(cfg.localMode)

	plat := platform.New(
		platform.Config{
			Host:         cfg.host,
			LocalMode:    cfg.localMode,
			SharedSecret: cfg.sharedSecret,
		},
		registry, classes, pool, resolver, metrics, logger,
	)

	hub := obsws.NewHub()
	go hub.Run(ctx)
	plat.SetEventPublisher(hub)

	jan, err := janitor.New(pool, janitor.DefaultSchedule, logger)
	if err != nil {
		return fmt.Errorf("failed to build janitor: %w", err)
	}
	jan.Start()
	defer jan.Stop()

	l, err := launcher.New(cfg.host, cfg.port, cfg.sharedSecret, logger)
	if err != nil {
		return fmt.Errorf("failed to resolve listen address: %w", err)
	}

	logger.Info("starting agentplatformd",
		zap.String("version", version),
		zap.String("host", l.Host()),
		zap.Int("port", l.Port()),
		zap.String("log_level", cfg.logLevel),
	)

	go func() {
		reg := launcher.RegistrarFunc(func(s *grpc.Server) {
			agentproto.RegisterAgentServiceServer(s, plat)
		})
		if err := l.Serve(ctx, reg); err != nil {
			logger.Error("agent platform server error", zap.Error(err))
			cancel()
		}
	}()

	var metricsSrv *http.Server
	if cfg.metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registerer, promhttp.HandlerOpts{}))
		metricsSrv = &http.Server{
			Addr:         cfg.metricsAddr,
			Handler:      mux,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
		}
		go func() {
			logger.Info("metrics server listening", zap.String("addr", cfg.metricsAddr))
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server error", zap.Error(err))
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutting down agentplatformd")

	if metricsSrv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics server graceful shutdown error", zap.Error(err))
		}
	}

	l.WaitUntilTerminate()
	logger.Info("agentplatformd stopped")
	return nil
}

func buildLogger(level string) (*zap.Logger, error) {
	var cfg zap.Config
	switch level {
	case "debug":
		cfg = zap.NewDevelopmentConfig()
	default:
		cfg = zap.NewProductionConfig()
	}

	switch level {
	case "debug":
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "warn":
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		cfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	return cfg.Build()
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

// localOnlyResolver restricts placeholder resolution to loopback peers, for
// servers started with --local-mode. A placeholder pointing at a non-loopback
// host is refused rather than silently dialed out.
type localOnlyResolver struct {
	dialer *rpcagent.Dialer
}

func (r localOnlyResolver) Resolve(ctx context.Context, loc *message.PlaceholderLocator) (*message.Msg, error) {
	if loc.Host != "localhost" && loc.Host != "127.0.0.1" && loc.Host != "::1" {
		return nil, fmt.Errorf("agentplatformd: local-mode refuses to resolve placeholder on non-loopback host %q", loc.Host)
	}
	return r.dialer.Resolve(ctx, loc)
}

func newPlaceholderResolver(localMode bool) platform.Resolver {
	dialer := rpcagent.NewDialer()
	if localMode {
		return localOnlyResolver{dialer: dialer}
	}
	return dialer
}

func envOrDefaultInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	var parsed int
	if _, err := fmt.Sscanf(v, "%d", &parsed); err != nil {
		return defaultVal
	}
	return parsed
}
