package leadtime

import (
	"context"
	"fmt"

	"github.com/benbjohnson/clock"
	"github.com/robfig/cron/v3"

	"floorflow/backend/internal/actor"
	"floorflow/backend/internal/logging"
	"floorflow/backend/internal/metrics"
	"floorflow/backend/internal/repository"
	"floorflow/backend/pkg/models"
)

// Source is the slice of the repository the sweeper reads.
type Source interface {
	ListTenants(ctx context.Context) ([]*models.Tenant, error)
	ListWorkflows(ctx context.Context) ([]*models.Workflow, error)
	FetchActiveItemsForStage(ctx context.Context, filter repository.StageFilter) ([]*models.Item, error)
}

// Sweeper periodically counts overdue items of every tenant into the
// floorflow_overdue_items gauge.
type Sweeper struct {
	src    Source
	clock  clock.Clock
	logger *logging.Logger
	cron   *cron.Cron
}

// NewSweeper creates a Sweeper. A nil clock uses wall time.
func NewSweeper(src Source, clk clock.Clock, logger *logging.Logger) *Sweeper {
	if clk == nil {
		clk = clock.New()
	}
	return &Sweeper{
		src:    src,
		clock:  clk,
		logger: logger,
		cron:   cron.New(),
	}
}

// Start schedules the sweep (cron syntax or descriptors such as
// "@every 5m") and starts the scheduler goroutine.
func (s *Sweeper) Start(schedule string) error {
	_, err := s.cron.AddFunc(schedule, func() {
		if _, err := s.Sweep(context.Background()); err != nil {
			s.logger.Error("overdue sweep failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	s.cron.Start()
	return nil
}

// Stop halts the scheduler. The returned context is done once a running
// sweep has finished.
func (s *Sweeper) Stop() context.Context {
	return s.cron.Stop()
}

// Sweep recomputes the overdue gauge across all tenants and returns the
// total number of overdue items. On error the gauge keeps the previous
// sweep's values.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	tenants, err := s.src.ListTenants(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list tenants: %w", err)
	}

	type series struct{ tenant, workflow, stage string }
	counts := make(map[series]int)

	now := s.clock.Now().UTC()
	total := 0
	for _, t := range tenants {
		tctx := actor.WithTenant(ctx, t.ID)
		workflows, err := s.src.ListWorkflows(tctx)
		if err != nil {
			return 0, fmt.Errorf("failed to list workflows of tenant %s: %w", t.ID, err)
		}
		for _, w := range workflows {
			items, err := s.src.FetchActiveItemsForStage(tctx, repository.StageFilter{WorkflowID: w.ID})
			if err != nil {
				return 0, fmt.Errorf("failed to fetch items of workflow %s: %w", w.ID, err)
			}
			for _, o := range FindOverdue(w, items, now) {
				counts[series{t.ID, w.ID, o.StageID}]++
				total++
			}
		}
	}

	// The gauge only changes once the whole walk succeeded.
	metrics.OverdueItems.Reset()
	for k, n := range counts {
		metrics.OverdueItems.WithLabelValues(k.tenant, k.workflow, k.stage).Set(float64(n))
	}

	s.logger.Info("overdue sweep finished", "tenants", len(tenants), "overdue", total)
	return total, nil
}
