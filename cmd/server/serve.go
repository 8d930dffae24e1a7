package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"floorflow/backend/internal/api"
	"floorflow/backend/internal/auth"
	"floorflow/backend/internal/config"
	"floorflow/backend/internal/leadtime"
	"floorflow/backend/internal/logging"
	"floorflow/backend/internal/mcp"
	"floorflow/backend/internal/metrics"
	"floorflow/backend/internal/repository"
	"floorflow/backend/internal/services"
	"floorflow/backend/internal/tls"
)

const shutdownTimeout = 30 * time.Second

func newServeCommand(load loader) *cobra.Command {
	var skipMigrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := load()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, logger, !skipMigrate)
		},
	}
	cmd.Flags().BoolVar(&skipMigrate, "skip-migrate", false, "Do not apply migrations on startup")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config, logger *logging.Logger, migrate bool) error {
	logger.Info("starting floorflow",
		"version", version,
		"environment", cfg.Environment,
		"okta_issuer", cfg.Auth.OktaDomain,
		"auth_bypass", cfg.IsDev() && cfg.DevModeBypass,
	)
	if cfg.Auth.SwaggerClientID != "" && cfg.Auth.SwaggerClientID == cfg.Auth.ClientID {
		logger.Warn("swagger client id matches the backend client id; PKCE login from the docs page will fail for a web app client")
	}

	if migrate {
		if err := repository.Migrate(cfg.DatabaseURL()); err != nil {
			return err
		}
	}

	pool, err := initDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()
	logger.Info("database connected")

	store := repository.NewPostgresStore(pool)

	authz, err := auth.New(ctx, cfg, store, logger.Named("auth"))
	if err != nil {
		return fmt.Errorf("auth initialization failed: %w", err)
	}

	e := newRouter(cfg, store, authz, logger)

	sweeper := leadtime.NewSweeper(store, nil, logger.Named("sweeper"))
	if err := sweeper.Start(cfg.Sweep.Schedule); err != nil {
		return err
	}
	defer func() { <-sweeper.Stop().Done() }()

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      e,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("server listening", "address", server.Addr, "tls", cfg.TLS.Enable)
		serverErrors <- listen(server, cfg, logger)
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
		return server.Close()
	}
	logger.Info("server stopped")
	return nil
}

func listen(server *http.Server, cfg *config.Config, logger *logging.Logger) error {
	if !cfg.TLS.Enable {
		return server.ListenAndServe()
	}
	if cfg.TLS.CertFile == "" || cfg.TLS.KeyFile == "" {
		return errors.New("tls is enabled but cert_file or key_file is not set")
	}
	if len(cfg.TLS.Hostnames) > 0 {
		created, err := tls.EnsureCert(cfg.TLS.CertFile, cfg.TLS.KeyFile, cfg.TLS.Hostnames)
		if err != nil {
			return fmt.Errorf("failed to generate self-signed cert: %w", err)
		}
		if created {
			logger.Warn("generated self-signed certificate", "cert_file", cfg.TLS.CertFile, "hosts", cfg.TLS.Hostnames)
		}
	}
	return server.ListenAndServeTLS(cfg.TLS.CertFile, cfg.TLS.KeyFile)
}

func initDatabase(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

// newRouter mounts every route on a fresh echo instance. The REST API and
// the MCP transport both sit behind authz.RequireAuth.
func newRouter(cfg *config.Config, store repository.Repository, authz *auth.Auth, logger *logging.Logger) *echo.Echo {
	workflowService := services.NewWorkflowService(store, cfg.WorkflowCache.TTL, cfg.WorkflowCache.Capacity, logger.Named("workflows"))
	itemService := services.NewItemService(store, workflowService, logger.Named("items"),
		services.WithMaxElapsed(cfg.Persistence.MaxElapsed))

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = api.HTTPErrorHandler(logger)

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(otelecho.Middleware("floorflow"))

	e.GET("/login", echo.WrapHandler(http.HandlerFunc(authz.LoginHandler)))
	e.GET("/auth/callback", echo.WrapHandler(http.HandlerFunc(authz.CallbackHandler)))
	e.GET("/logout", echo.WrapHandler(http.HandlerFunc(authz.LogoutHandler)))

	apiGroup := e.Group("/api/v1")
	apiGroup.Use(echo.WrapMiddleware(authz.RequireAuth))
	api.RegisterHandlers(apiGroup, api.NewServer(workflowService, itemService))

	mcpServer := mcp.NewServer(itemService, workflowService, version)
	mcpHandlers := http.NewServeMux()
	mcp.MountHTTPHandlers(mcpHandlers, mcpServer.GetMCPServer())
	e.Any("/mcp/*", echo.WrapHandler(authz.RequireAuth(mcpHandlers)))

	e.GET("/health", api.NewHandler(store, nil, version).HandleHealth)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})))

	e.GET("/openapi.yaml", api.SpecHandler(cfg.Auth.OktaDomain))
	e.GET("/docs", api.SwaggerHandler(cfg.Auth.SwaggerClientID, auth.AllScopes))
	e.GET("/docs/oauth2-redirect.html", api.OAuthRedirectHandler)

	return e
}
