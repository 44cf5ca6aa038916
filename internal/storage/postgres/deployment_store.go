package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"token-deploy/internal/domain"
	"token-deploy/internal/storage"
)

// DeploymentStore implements storage.DeploymentStore using PostgreSQL.
type DeploymentStore struct {
	pool *Pool
}

// NewDeploymentStore creates a new DeploymentStore.
func NewDeploymentStore(pool *Pool) *DeploymentStore {
	return &DeploymentStore{pool: pool}
}

// Compile-time interface check.
var _ storage.DeploymentStore = (*DeploymentStore)(nil)

const deploymentColumns = `
	deployment_id, run_id, network, step_index, artifact, address, tx_hash,
	block_number, gas_used, args, deployed_at, created_at
`

// Insert adds a new record. Returns ErrDuplicateKey if deployment_id exists.
func (s *DeploymentStore) Insert(ctx context.Context, r *domain.DeploymentRecord) error {
	if r == nil || r.DeploymentID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO deployments (
			deployment_id, run_id, network, step_index, artifact, address, tx_hash,
			block_number, gas_used, args, deployed_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	createdAt := r.CreatedAt
	if createdAt == 0 {
		createdAt = time.Now().UnixMilli()
	}

	start := time.Now()
	_, err := s.pool.Exec(ctx, query,
		r.DeploymentID,
		r.RunID,
		r.Network,
		r.StepIndex,
		r.Artifact,
		r.Address,
		r.TxHash,
		int64(r.BlockNumber),
		int64(r.GasUsed),
		r.Args,
		r.DeployedAt,
		createdAt,
	)
	observe("insert_deployment", start, err)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert deployment: %w", err)
	}
	return nil
}

// GetByID retrieves a record by its ID. Returns ErrNotFound if not exists.
func (s *DeploymentStore) GetByID(ctx context.Context, deploymentID string) (*domain.DeploymentRecord, error) {
	query := `SELECT ` + deploymentColumns + `
		FROM deployments
		WHERE deployment_id = $1
	`

	start := time.Now()
	r, err := scanDeployment(s.pool.QueryRow(ctx, query, deploymentID))
	observe("get_deployment", start, err)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get deployment by id: %w", err)
	}
	return r, nil
}

// GetByRun retrieves all records of a migration run, ordered by step_index ASC.
func (s *DeploymentStore) GetByRun(ctx context.Context, runID string) ([]*domain.DeploymentRecord, error) {
	query := `SELECT ` + deploymentColumns + `
		FROM deployments
		WHERE run_id = $1
		ORDER BY step_index ASC
	`

	start := time.Now()
	rows, err := s.pool.Query(ctx, query, runID)
	observe("get_deployments_by_run", start, err)
	if err != nil {
		return nil, fmt.Errorf("query deployments by run: %w", err)
	}
	defer rows.Close()

	return scanDeployments(rows)
}

// GetByNetwork retrieves all records for a network, ordered by deployed_at ASC, step_index ASC.
func (s *DeploymentStore) GetByNetwork(ctx context.Context, network string) ([]*domain.DeploymentRecord, error) {
	query := `SELECT ` + deploymentColumns + `
		FROM deployments
		WHERE network = $1
		ORDER BY deployed_at ASC, step_index ASC
	`

	start := time.Now()
	rows, err := s.pool.Query(ctx, query, network)
	observe("get_deployments_by_network", start, err)
	if err != nil {
		return nil, fmt.Errorf("query deployments by network: %w", err)
	}
	defer rows.Close()

	return scanDeployments(rows)
}

// GetLatest retrieves the most recent record of an artifact on a network.
func (s *DeploymentStore) GetLatest(ctx context.Context, network, artifact string) (*domain.DeploymentRecord, error) {
	query := `SELECT ` + deploymentColumns + `
		FROM deployments
		WHERE network = $1 AND artifact = $2
		ORDER BY deployed_at DESC, step_index DESC
		LIMIT 1
	`

	start := time.Now()
	r, err := scanDeployment(s.pool.QueryRow(ctx, query, network, artifact))
	observe("get_latest_deployment", start, err)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get latest deployment: %w", err)
	}
	return r, nil
}

// scanDeployment scans a single row into DeploymentRecord.
func scanDeployment(row pgx.Row) (*domain.DeploymentRecord, error) {
	var r domain.DeploymentRecord
	var blockNumber, gasUsed int64

	err := row.Scan(
		&r.DeploymentID,
		&r.RunID,
		&r.Network,
		&r.StepIndex,
		&r.Artifact,
		&r.Address,
		&r.TxHash,
		&blockNumber,
		&gasUsed,
		&r.Args,
		&r.DeployedAt,
		&r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	r.BlockNumber = uint64(blockNumber)
	r.GasUsed = uint64(gasUsed)
	return &r, nil
}

// scanDeployments scans multiple rows into a slice.
func scanDeployments(rows pgx.Rows) ([]*domain.DeploymentRecord, error) {
	var records []*domain.DeploymentRecord

	for rows.Next() {
		r, err := scanDeployment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan deployment row: %w", err)
		}
		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate deployment rows: %w", err)
	}

	return records, nil
}
