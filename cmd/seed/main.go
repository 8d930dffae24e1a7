// Command seed loads the bundled sample workflows (and optionally sample
// items) into a tenant.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"floorflow/backend/internal/actor"
	"floorflow/backend/internal/config"
	"floorflow/backend/internal/logging"
	"floorflow/backend/internal/repository"
	"floorflow/backend/internal/services"
	"floorflow/backend/pkg/models"
)

const seedOperator = "seed-script"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newSeedCommand().ExecuteContext(ctx); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func newSeedCommand() *cobra.Command {
	var (
		configFlag string
		domain     string
		withItems  bool
	)
	cmd := &cobra.Command{
		Use:           "seed",
		Short:         "Load sample workflows into a tenant",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadConfig(configFlag)
			if err != nil {
				return err
			}
			logger := logging.New(os.Stdout, cfg.Environment, cfg.LogLevel)
			return run(cmd.Context(), cfg, logger, domain, withItems)
		},
	}
	cmd.Flags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	cmd.Flags().StringVar(&domain, "domain", "localhost", "Email domain of the tenant to seed")
	cmd.Flags().BoolVar(&withItems, "items", false, "Also create sample items")
	return cmd
}

func run(ctx context.Context, cfg *config.Config, logger *logging.Logger, domain string, withItems bool) error {
	file, err := loadSeedFile()
	if err != nil {
		return err
	}

	if err := repository.Migrate(cfg.DatabaseURL()); err != nil {
		return err
	}
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	store := repository.NewPostgresStore(pool)

	tenant, err := ensureTenant(ctx, store, domain, logger)
	if err != nil {
		return err
	}
	ctx = actor.WithTenant(ctx, tenant.ID)
	ctx = actor.WithOperator(ctx, seedOperator)

	workflows := services.NewWorkflowService(store, cfg.WorkflowCache.TTL, cfg.WorkflowCache.Capacity, logger)
	s := &seeder{workflows: workflows, logger: logger}
	if withItems {
		s.items = services.NewItemService(store, workflows, logger)
	}
	return s.seed(ctx, file)
}

func ensureTenant(ctx context.Context, store repository.TenantStore, domain string, logger *logging.Logger) (*models.Tenant, error) {
	tenant, err := store.GetTenantByDomain(ctx, domain)
	if err == nil {
		logger.Info("found existing tenant", "tenant_id", tenant.ID, "domain", domain)
		return tenant, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	tenant = &models.Tenant{Name: domain, Domain: domain}
	if err := store.CreateTenant(ctx, tenant); err != nil {
		return nil, fmt.Errorf("failed to create tenant: %w", err)
	}
	logger.Info("created tenant", "tenant_id", tenant.ID, "domain", domain)
	return tenant, nil
}
