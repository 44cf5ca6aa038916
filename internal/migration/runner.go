package migration

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"token-deploy/internal/artifact"
	"token-deploy/internal/domain"
	"token-deploy/internal/observability"
	"token-deploy/internal/storage"
)

// Runner resolves artifacts, runs the migration and records its deployments.
type Runner struct {
	deployer Deployer
	registry artifact.Registry
	store    storage.DeploymentStore
	network  string
	logger   *zap.Logger
	now      func() time.Time
	newRunID func() string
}

// Options for creating Runner.
type Options struct {
	// Required
	Deployer Deployer
	Registry artifact.Registry
	Network  string

	// Optional
	Store  storage.DeploymentStore // nil skips persistence
	Logger *zap.Logger
	Now    func() time.Time
}

// New creates a new Runner.
func New(opts Options) *Runner {
	r := &Runner{
		deployer: opts.Deployer,
		registry: opts.Registry,
		store:    opts.Store,
		network:  opts.Network,
		logger:   opts.Logger,
		now:      opts.Now,
		newRunID: uuid.NewString,
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r
}

// RunResult contains results from one migration run.
type RunResult struct {
	RunID       string
	Network     string
	Deployments []*domain.Deployment // successful deploys, in order
}

// Run executes the migration. On failure the result still lists the
// contracts deployed before the error.
func (r *Runner) Run(ctx context.Context) (result *RunResult, err error) {
	defer func() {
		observability.RecordMigrationRun(r.network, err)
	}()

	runID := r.newRunID()
	log := r.logger.With(zap.String("run_id", runID), zap.String("network", r.network))

	arts, err := ResolveArtifacts(r.registry)
	if err != nil {
		return nil, fmt.Errorf("resolve artifacts: %w", err)
	}

	rec := NewRecordingDeployer(r.deployer, r.store, r.network, runID)
	rec.now = r.now
	rec.logger = log

	log.Info("migration started", zap.Int("steps", len(Plan())))
	_, err = Run(ctx, rec, arts)

	result = &RunResult{
		RunID:       runID,
		Network:     r.network,
		Deployments: rec.Deployments(),
	}
	if err != nil {
		log.Error("migration failed", zap.Int("deployed", len(result.Deployments)), zap.Error(err))
		return result, err
	}

	log.Info("migration finished", zap.Int("deployed", len(result.Deployments)))
	return result, nil
}
