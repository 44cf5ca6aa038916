package clickhouse

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"token-deploy/internal/domain"
	"token-deploy/internal/storage"
)

// DeploymentStore implements storage.DeploymentStore using ClickHouse.
type DeploymentStore struct {
	conn *Conn
}

// NewDeploymentStore creates a new DeploymentStore.
func NewDeploymentStore(conn *Conn) *DeploymentStore {
	return &DeploymentStore{conn: conn}
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

	// MergeTree keeps duplicates, so append-only semantics are enforced here
	exists, err := s.exists(ctx, r.DeploymentID)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return storage.ErrDuplicateKey
	}

	createdAt := r.CreatedAt
	if createdAt == 0 {
		createdAt = time.Now().UnixMilli()
	}

	query := `INSERT INTO deployments (` + deploymentColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	start := time.Now()
	err = s.conn.Exec(ctx, query,
		r.DeploymentID, r.RunID, r.Network, uint32(r.StepIndex), r.Artifact, r.Address, r.TxHash,
		r.BlockNumber, r.GasUsed, r.Args, r.DeployedAt, createdAt,
	)
	observe("insert_deployment", start, err)
	if err != nil {
		return fmt.Errorf("insert deployment: %w", err)
	}
	return nil
}

// GetByID retrieves a record by its ID. Returns ErrNotFound if not exists.
func (s *DeploymentStore) GetByID(ctx context.Context, deploymentID string) (*domain.DeploymentRecord, error) {
	query := `SELECT ` + deploymentColumns + `
		FROM deployments
		WHERE deployment_id = ?
		LIMIT 1
	`

	rows, err := s.query(ctx, "get_deployment", query, deploymentID)
	if err != nil {
		return nil, err
	}
	return single(rows)
}

// GetByRun retrieves all records of a migration run, ordered by step_index ASC.
func (s *DeploymentStore) GetByRun(ctx context.Context, runID string) ([]*domain.DeploymentRecord, error) {
	query := `SELECT ` + deploymentColumns + `
		FROM deployments
		WHERE run_id = ?
		ORDER BY step_index ASC
	`

	return s.query(ctx, "get_deployments_by_run", query, runID)
}

// GetByNetwork retrieves all records for a network, ordered by deployed_at ASC, step_index ASC.
func (s *DeploymentStore) GetByNetwork(ctx context.Context, network string) ([]*domain.DeploymentRecord, error) {
	query := `SELECT ` + deploymentColumns + `
		FROM deployments
		WHERE network = ?
		ORDER BY deployed_at ASC, step_index ASC
	`

	return s.query(ctx, "get_deployments_by_network", query, network)
}

// GetLatest retrieves the most recent record of an artifact on a network.
func (s *DeploymentStore) GetLatest(ctx context.Context, network, artifact string) (*domain.DeploymentRecord, error) {
	query := `SELECT ` + deploymentColumns + `
		FROM deployments
		WHERE network = ? AND artifact = ?
		ORDER BY deployed_at DESC, step_index DESC
		LIMIT 1
	`

	rows, err := s.query(ctx, "get_latest_deployment", query, network, artifact)
	if err != nil {
		return nil, err
	}
	return single(rows)
}

func (s *DeploymentStore) query(ctx context.Context, operation, query string, args ...interface{}) ([]*domain.DeploymentRecord, error) {
	start := time.Now()
	rows, err := s.conn.Query(ctx, query, args...)
	observe(operation, start, err)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", operation, err)
	}
	defer rows.Close()

	return scanDeployments(rows)
}

// exists checks if a record with the given ID exists.
func (s *DeploymentStore) exists(ctx context.Context, deploymentID string) (bool, error) {
	query := `SELECT count(*) FROM deployments WHERE deployment_id = ?`

	var count uint64
	err := s.conn.QueryRow(ctx, query, deploymentID).Scan(&count)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return false, err
	}
	return count > 0, nil
}

func single(records []*domain.DeploymentRecord) (*domain.DeploymentRecord, error) {
	if len(records) == 0 {
		return nil, storage.ErrNotFound
	}
	return records[0], nil
}

// Rows interface for scanning
type chRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

// scanDeployments scans multiple rows into a slice.
func scanDeployments(rows chRows) ([]*domain.DeploymentRecord, error) {
	var records []*domain.DeploymentRecord

	for rows.Next() {
		var r domain.DeploymentRecord
		var step uint32
		err := rows.Scan(
			&r.DeploymentID, &r.RunID, &r.Network, &step, &r.Artifact, &r.Address, &r.TxHash,
			&r.BlockNumber, &r.GasUsed, &r.Args, &r.DeployedAt, &r.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan deployment row: %w", err)
		}
		r.StepIndex = int(step)
		records = append(records, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate deployment rows: %w", err)
	}

	return records, nil
}
