package leadtime

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"floorflow/backend/internal/actor"
	"floorflow/backend/internal/logging"
	"floorflow/backend/internal/metrics"
	"floorflow/backend/internal/repository"
	"floorflow/backend/pkg/models"
)

var t0 = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

func cuttingSewing() *models.Workflow {
	return &models.Workflow{
		ID:   "wf-1",
		Name: "Shirt",
		Stages: []models.Stage{
			{ID: "cut", Name: "Cutting", Order: 0, EstimatedDuration: 30, IsActive: true},
			{ID: "sew", Name: "Sewing", Order: 1, EstimatedDuration: 60, IsActive: true},
			{ID: "qc", Name: "QC", Order: 2, IsActive: true},
		},
	}
}

func item(id, stage string, entered time.Time) *models.Item {
	return &models.Item{
		ItemID:         id,
		WorkflowID:     "wf-1",
		CurrentStageID: stage,
		Status:         models.ItemStatusActive,
		StartedAt:      entered,
		StageEnteredAt: entered,
	}
}

func TestFindOverdue(t *testing.T) {
	w := cuttingSewing()
	now := t0.Add(2 * time.Hour)

	flagged := item("ITM-F", "cut", t0)
	flagged.Status = models.ItemStatusFlagged
	other := item("ITM-O", "cut", t0)
	other.WorkflowID = "wf-2"

	items := []*models.Item{
		item("ITM-1", "cut", now.Add(-45*time.Minute)), // 15 over
		item("ITM-2", "sew", now.Add(-50*time.Minute)), // within estimate
		item("ITM-3", "sew", now.Add(-3*time.Hour)),    // 120 over
		item("ITM-4", "qc", t0.Add(-24*time.Hour)),     // no estimate
		item("ITM-5", "gone", t0),
		flagged,
		other,
	}

	got := FindOverdue(w, items, now)
	require.Len(t, got, 2)
	assert.Equal(t, "ITM-3", got[0].ItemID)
	assert.Equal(t, 120, got[0].OverdueMinutes)
	assert.Equal(t, 180, got[0].InStageMinutes)
	assert.Equal(t, models.TeamSewing, got[0].Team)
	assert.Equal(t, "ITM-1", got[1].ItemID)
	assert.Equal(t, 15, got[1].OverdueMinutes)
	assert.Equal(t, models.TeamCutting, got[1].Team)
}

func TestTimeInStage(t *testing.T) {
	it := &models.Item{StartedAt: t0}
	assert.Equal(t, time.Hour, TimeInStage(it, t0.Add(time.Hour)), "falls back to start time")

	it.StageEnteredAt = t0.Add(30 * time.Minute)
	assert.Equal(t, 30*time.Minute, TimeInStage(it, t0.Add(time.Hour)))
	assert.Zero(t, TimeInStage(it, t0), "clock skew clamps to zero")
}

type fakeSource struct {
	tenants   []*models.Tenant
	workflows map[string][]*models.Workflow
	items     map[string][]*models.Item
	err       error
	itemsErr  error
}

func (f *fakeSource) ListTenants(context.Context) ([]*models.Tenant, error) {
	return f.tenants, f.err
}

func (f *fakeSource) ListWorkflows(ctx context.Context) ([]*models.Workflow, error) {
	return f.workflows[actor.TenantID(ctx)], nil
}

func (f *fakeSource) FetchActiveItemsForStage(ctx context.Context, filter repository.StageFilter) ([]*models.Item, error) {
	if f.itemsErr != nil {
		return nil, f.itemsErr
	}
	return f.items[actor.TenantID(ctx)+"/"+filter.WorkflowID], nil
}

func TestSweeper_Sweep(t *testing.T) {
	clk := clock.NewMock()
	clk.Set(t0.Add(2 * time.Hour))

	src := &fakeSource{
		tenants: []*models.Tenant{{ID: "t-a"}, {ID: "t-b"}},
		workflows: map[string][]*models.Workflow{
			"t-a": {cuttingSewing()},
			"t-b": {cuttingSewing()},
		},
		items: map[string][]*models.Item{
			"t-a/wf-1": {
				item("ITM-1", "cut", t0),
				item("ITM-2", "cut", t0),
				item("ITM-3", "sew", clk.Now().Add(-10*time.Minute)),
			},
			"t-b/wf-1": {item("ITM-9", "sew", t0)},
		},
	}

	s := NewSweeper(src, clk, logging.Discard())
	n, err := s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.OverdueItems.WithLabelValues("t-a", "wf-1", "cut")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.OverdueItems.WithLabelValues("t-b", "wf-1", "sew")))

	// A later sweep resets stale series.
	src.items["t-a/wf-1"] = nil
	n, err = s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.OverdueItems.WithLabelValues("t-a", "wf-1", "cut")))
}

func TestSweeper_SweepError(t *testing.T) {
	s := NewSweeper(&fakeSource{err: errors.New("db down")}, clock.NewMock(), logging.Discard())
	_, err := s.Sweep(context.Background())
	assert.ErrorContains(t, err, "db down")
}

func TestSweeper_FailedSweepKeepsGauge(t *testing.T) {
	clk := clock.NewMock()
	clk.Set(t0.Add(2 * time.Hour))

	src := &fakeSource{
		tenants:   []*models.Tenant{{ID: "t-keep"}},
		workflows: map[string][]*models.Workflow{"t-keep": {cuttingSewing()}},
		items:     map[string][]*models.Item{"t-keep/wf-1": {item("ITM-1", "cut", t0)}},
	}
	s := NewSweeper(src, clk, logging.Discard())
	_, err := s.Sweep(context.Background())
	require.NoError(t, err)

	src.itemsErr = errors.New("connection reset")
	_, err = s.Sweep(context.Background())
	require.ErrorContains(t, err, "connection reset")
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.OverdueItems.WithLabelValues("t-keep", "wf-1", "cut")))
}

func TestSweeper_StartStop(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := NewSweeper(&fakeSource{}, clock.NewMock(), logging.Discard())
	require.Error(t, s.Start("not a schedule"))

	require.NoError(t, s.Start("@every 1h"))
	<-s.Stop().Done()
}
