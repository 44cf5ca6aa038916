package migration

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"token-deploy/internal/artifact"
	"token-deploy/internal/domain"
	"token-deploy/internal/idhash"
	"token-deploy/internal/storage"
)

// RecordingDeployer persists a DeploymentRecord after every successful
// deploy of the wrapped Deployer. Deploy errors pass through untouched.
type RecordingDeployer struct {
	inner   Deployer
	store   storage.DeploymentStore
	network string
	runID   string
	now     func() time.Time
	logger  *zap.Logger

	mu          sync.Mutex
	step        int
	deployments []*domain.Deployment
}

// NewRecordingDeployer wraps inner. A nil store only collects deployments.
func NewRecordingDeployer(inner Deployer, store storage.DeploymentStore, network, runID string) *RecordingDeployer {
	return &RecordingDeployer{
		inner:   inner,
		store:   store,
		network: network,
		runID:   runID,
		now:     time.Now,
		logger:  zap.NewNop(),
	}
}

func (r *RecordingDeployer) Deploy(ctx context.Context, a *artifact.Artifact, args ...any) (*domain.Deployment, error) {
	dep, err := r.inner.Deploy(ctx, a, args...)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	step := r.step
	r.step++
	r.deployments = append(r.deployments, dep)
	r.mu.Unlock()

	if r.store == nil {
		return dep, nil
	}

	encoded, err := json.Marshal(args)
	if err != nil {
		return dep, fmt.Errorf("encode %s args: %w", a.Name, err)
	}

	ts := r.now().UnixMilli()
	rec := &domain.DeploymentRecord{
		DeploymentID: idhash.ComputeDeploymentID(r.network, dep.Artifact, dep.TxHash),
		RunID:        r.runID,
		Network:      r.network,
		StepIndex:    step,
		Artifact:     dep.Artifact,
		Address:      dep.Address,
		TxHash:       dep.TxHash,
		BlockNumber:  dep.BlockNumber,
		GasUsed:      dep.GasUsed,
		Args:         string(encoded),
		DeployedAt:   ts,
		CreatedAt:    ts,
	}
	if err := r.store.Insert(ctx, rec); err != nil {
		// Already on chain: log enough to rebuild the record by hand.
		r.logger.Error("deployment not recorded",
			zap.String("artifact", dep.Artifact),
			zap.String("address", dep.Address),
			zap.String("tx", dep.TxHash),
			zap.Error(err),
		)
		return dep, fmt.Errorf("record %s deployment: %w", a.Name, err)
	}

	r.logger.Debug("deployment recorded",
		zap.String("deployment_id", rec.DeploymentID),
		zap.Int("step", step),
	)
	return dep, nil
}

// Deployments returns the successful deployments so far, in call order.
func (r *RecordingDeployer) Deployments() []*domain.Deployment {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*domain.Deployment(nil), r.deployments...)
}
