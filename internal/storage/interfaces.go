package storage

import (
	"context"

	"token-deploy/internal/domain"
)

// DeploymentStore provides access to deployments storage.
type DeploymentStore interface {
	// Insert adds a new record. Returns ErrDuplicateKey if deployment_id exists.
	Insert(ctx context.Context, r *domain.DeploymentRecord) error

	// GetByID retrieves a record by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, deploymentID string) (*domain.DeploymentRecord, error)

	// GetByRun retrieves all records of a migration run, ordered by step_index ASC.
	GetByRun(ctx context.Context, runID string) ([]*domain.DeploymentRecord, error)

	// GetByNetwork retrieves all records for a network, ordered by deployed_at ASC, step_index ASC.
	GetByNetwork(ctx context.Context, network string) ([]*domain.DeploymentRecord, error)

	// GetLatest retrieves the most recent record of an artifact on a network.
	// Returns ErrNotFound if the artifact was never deployed there.
	GetLatest(ctx context.Context, network, artifact string) (*domain.DeploymentRecord, error)
}
