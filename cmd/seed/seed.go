package main

import (
	"context"
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"floorflow/backend/internal/logging"
	"floorflow/backend/internal/services"
	"floorflow/backend/internal/workflow"
	"floorflow/backend/pkg/models"
)

//go:embed workflows.yaml
var seedYAML []byte

type seedFile struct {
	Workflows []*models.Workflow `yaml:"workflows"`
	Samples   []sampleItem       `yaml:"samples"`
}

// sampleItem names its workflow; text metadata is enough for samples.
type sampleItem struct {
	Workflow    string            `yaml:"workflow"`
	Description string            `yaml:"description"`
	Metadata    map[string]string `yaml:"metadata"`
}

func loadSeedFile() (*seedFile, error) {
	var f seedFile
	if err := yaml.Unmarshal(seedYAML, &f); err != nil {
		return nil, fmt.Errorf("failed to parse seed workflows: %w", err)
	}
	return &f, nil
}

type workflowCreator interface {
	Create(ctx context.Context, w *models.Workflow) (workflow.Issues, error)
	List(ctx context.Context) ([]*models.Workflow, error)
}

type itemCreator interface {
	CreateItem(ctx context.Context, in services.NewItem) (*models.Item, error)
}

type seeder struct {
	workflows workflowCreator
	items     itemCreator // nil skips samples
	logger    *logging.Logger
}

// seed creates the workflows missing by name, then the samples. Running
// it twice does not duplicate workflows.
func (s *seeder) seed(ctx context.Context, f *seedFile) error {
	existing, err := s.workflows.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list existing workflows: %w", err)
	}
	byName := make(map[string]*models.Workflow, len(existing))
	for _, w := range existing {
		byName[w.Name] = w
	}

	for _, w := range f.Workflows {
		if _, ok := byName[w.Name]; ok {
			s.logger.Info("skipping existing workflow", "name", w.Name)
			continue
		}
		warnings, err := s.workflows.Create(ctx, w)
		if err != nil {
			return fmt.Errorf("failed to create workflow %q: %w", w.Name, err)
		}
		for _, issue := range warnings {
			s.logger.Warn("workflow warning", "name", w.Name, "path", issue.Path, "message", issue.Message)
		}
		byName[w.Name] = w
		s.logger.Info("seeded workflow", "name", w.Name, "id", w.ID)
	}

	if s.items == nil {
		return nil
	}
	for _, sample := range f.Samples {
		w, ok := byName[sample.Workflow]
		if !ok {
			return fmt.Errorf("sample item references unknown workflow %q", sample.Workflow)
		}
		md := make(models.Metadata, len(sample.Metadata))
		for k, v := range sample.Metadata {
			md[k] = models.TextValue(v)
		}
		desc := sample.Description
		item, err := s.items.CreateItem(ctx, services.NewItem{
			WorkflowID:  w.ID,
			Metadata:    md,
			Description: &desc,
		})
		if err != nil {
			return fmt.Errorf("failed to create sample item: %w", err)
		}
		s.logger.Info("seeded item", "item_id", item.ItemID, "workflow", w.Name)
	}
	s.logger.Info("seeding complete")
	return nil
}
