package memory

import (
	"context"
	"sort"
	"sync"

	"token-deploy/internal/domain"
	"token-deploy/internal/storage"
)

// DeploymentStore is an in-memory implementation of storage.DeploymentStore.
type DeploymentStore struct {
	mu      sync.RWMutex
	records []*domain.DeploymentRecord          // insertion order
	byID    map[string]*domain.DeploymentRecord // keyed by deployment_id
}

// NewDeploymentStore creates a new in-memory deployment store.
func NewDeploymentStore() *DeploymentStore {
	return &DeploymentStore{
		byID: make(map[string]*domain.DeploymentRecord),
	}
}

// Insert adds a new record. Returns ErrDuplicateKey if deployment_id exists.
func (s *DeploymentStore) Insert(_ context.Context, r *domain.DeploymentRecord) error {
	if r == nil || r.DeploymentID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[r.DeploymentID]; exists {
		return storage.ErrDuplicateKey
	}

	recCopy := *r
	s.records = append(s.records, &recCopy)
	s.byID[r.DeploymentID] = &recCopy
	return nil
}

// GetByID retrieves a record by its ID. Returns ErrNotFound if not exists.
func (s *DeploymentStore) GetByID(_ context.Context, deploymentID string) (*domain.DeploymentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.byID[deploymentID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	recCopy := *r
	return &recCopy, nil
}

// GetByRun retrieves all records of a migration run, ordered by step_index ASC.
func (s *DeploymentStore) GetByRun(_ context.Context, runID string) ([]*domain.DeploymentRecord, error) {
	result := s.filter(func(r *domain.DeploymentRecord) bool {
		return r.RunID == runID
	})

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].StepIndex < result[j].StepIndex
	})
	return result, nil
}

// GetByNetwork retrieves all records for a network, ordered by deployed_at ASC, step_index ASC.
func (s *DeploymentStore) GetByNetwork(_ context.Context, network string) ([]*domain.DeploymentRecord, error) {
	result := s.filter(func(r *domain.DeploymentRecord) bool {
		return r.Network == network
	})

	sortByDeployedAt(result)
	return result, nil
}

// GetLatest retrieves the most recent record of an artifact on a network.
func (s *DeploymentStore) GetLatest(_ context.Context, network, artifact string) (*domain.DeploymentRecord, error) {
	result := s.filter(func(r *domain.DeploymentRecord) bool {
		return r.Network == network && r.Artifact == artifact
	})
	if len(result) == 0 {
		return nil, storage.ErrNotFound
	}

	sortByDeployedAt(result)
	return result[len(result)-1], nil
}

// filter returns copies of all records matching keep, in insertion order.
func (s *DeploymentStore) filter(keep func(*domain.DeploymentRecord) bool) []*domain.DeploymentRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.DeploymentRecord
	for _, r := range s.records {
		if keep(r) {
			recCopy := *r
			result = append(result, &recCopy)
		}
	}
	return result
}

func sortByDeployedAt(records []*domain.DeploymentRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].DeployedAt != records[j].DeployedAt {
			return records[i].DeployedAt < records[j].DeployedAt
		}
		return records[i].StepIndex < records[j].StepIndex
	})
}

var _ storage.DeploymentStore = (*DeploymentStore)(nil)
