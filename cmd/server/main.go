package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/janisto/profile-search/internal/platform/auth"
	"github.com/janisto/profile-search/internal/platform/config"
	"github.com/janisto/profile-search/internal/platform/firebase"
	applog "github.com/janisto/profile-search/internal/platform/logging"
	"github.com/janisto/profile-search/internal/platform/telemetry"
	searchsvc "github.com/janisto/profile-search/internal/service/search"
)

// Version can be overridden at build time: -ldflags "-X main.Version=1.2.3"
var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	ctx := context.Background()
	defer func() {
		if err := applog.Sync(); err != nil {
			applog.LogError(ctx, "logger sync error", err)
		}
	}()
	if err := applog.Err(); err != nil {
		applog.LogError(ctx, "logger init error", err)
	}

	if err := config.LoadDotEnv(); err != nil {
		applog.LogError(ctx, "loading .env failed", err)
		return 1
	}
	cfg, err := config.Load()
	if err != nil {
		applog.LogError(ctx, "invalid configuration", err)
		return 1
	}
	if cfg.Telemetry.ServiceVersion == "" {
		cfg.Telemetry.ServiceVersion = Version
	}

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		Endpoint:       cfg.Telemetry.OTLPEndpoint,
		Protocol:       cfg.Telemetry.OTLPProtocol,
		Insecure:       cfg.Telemetry.OTLPInsecure,
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: cfg.Telemetry.ServiceVersion,
	})
	if err != nil {
		applog.LogError(ctx, "telemetry init failed", err)
		return 1
	}
	defer func() {
		if err := shutdownTelemetry(ctx); err != nil {
			applog.LogError(ctx, "telemetry shutdown error", err)
		}
	}()

	verifier, err := newVerifier(ctx, cfg.Auth)
	if err != nil {
		applog.LogError(ctx, "auth init failed", err)
		return 1
	}

	client := searchsvc.NewClient(
		searchsvc.NewHTTPClient(cfg.SearchTimeout),
		searchsvc.WithBaseURL(cfg.APIURL),
		searchsvc.WithUserAgent("profile-search/"+Version),
	)

	srv := newHTTPServer(cfg, newRouter(dependencies{
		cfg:      cfg,
		version:  Version,
		search:   client,
		verifier: verifier,
	}))

	listenErr := make(chan error, 1)
	go func() {
		applog.LogInfo(ctx, "server listening",
			zap.String("addr", srv.Addr),
			zap.String("apiURL", cfg.APIURL),
			zap.Bool("authEnabled", cfg.Auth.Enabled),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErr <- err
		}
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-listenErr:
		applog.LogError(ctx, "listen failed", err, zap.String("addr", srv.Addr))
		return 1
	case <-stop:
		applog.LogInfo(ctx, "shutdown signal received")
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		applog.LogError(shutdownCtx, "server shutdown error", err)
	}
	applog.LogInfo(ctx, "server exited")
	return 0
}

// newVerifier returns nil when authentication is disabled.
func newVerifier(ctx context.Context, cfg config.AuthConfig) (auth.Verifier, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	client, err := firebase.NewAuthClient(ctx, firebase.Config{
		ProjectID:                    cfg.ProjectID,
		GoogleApplicationCredentials: cfg.CredentialsFile,
	})
	if err != nil {
		return nil, err
	}
	return auth.NewFirebaseVerifier(client), nil
}
