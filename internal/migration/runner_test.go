package migration

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"token-deploy/internal/artifact"
	"token-deploy/internal/domain"
	"token-deploy/internal/idhash"
	"token-deploy/internal/migration/stub"
	"token-deploy/internal/storage"
	"token-deploy/internal/storage/memory"
)

func testRegistry() artifact.Registry {
	return artifact.NewMapRegistry(
		&artifact.Artifact{Name: ManagerArtifact},
		&artifact.Artifact{Name: TokenArtifact},
	)
}

func fixedNow() time.Time {
	return time.UnixMilli(1700000000000)
}

func TestRunner_RecordsDeployments(t *testing.T) {
	ctx := context.Background()
	store := memory.NewDeploymentStore()
	d := stub.NewDeployer()

	r := New(Options{
		Deployer: d,
		Registry: testRegistry(),
		Store:    store,
		Network:  "development",
		Now:      fixedNow,
	})

	res, err := r.Run(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, res.RunID)
	assert.Equal(t, "development", res.Network)
	require.Len(t, res.Deployments, 2)
	assert.Len(t, d.Calls(), 2, "recording adds no deploy calls")

	records, err := store.GetByRun(ctx, res.RunID)
	require.NoError(t, err)
	require.Len(t, records, 2)

	manager := records[0]
	assert.Equal(t, 0, manager.StepIndex)
	assert.Equal(t, ManagerArtifact, manager.Artifact)
	assert.Equal(t, res.Deployments[0].Address, manager.Address)
	assert.Equal(t, idhash.ComputeDeploymentID("development", ManagerArtifact, res.Deployments[0].TxHash), manager.DeploymentID)
	assert.Equal(t, `["0x29206D36B147B00A4592D5D9154Ac32ab4830fB0","0xe0014f07625ae3ef38050B28339b0203DDCdf045"]`, manager.Args)
	assert.Equal(t, int64(1700000000000), manager.DeployedAt)

	token := records[1]
	assert.Equal(t, 1, token.StepIndex)
	assert.Equal(t, `["TestCoin","TST",500000000,100,"0xC5fdf4076b8F3A5357c5E395ab970B5B54098Fef",1518451520,20,10,5,1]`, token.Args)

	latest, err := store.GetLatest(ctx, "development", TokenArtifact)
	require.NoError(t, err)
	assert.Equal(t, token.DeploymentID, latest.DeploymentID)
}

func TestRunner_DistinctRunIDs(t *testing.T) {
	r := New(Options{Deployer: stub.NewDeployer(), Registry: testRegistry(), Network: "development"})

	first, err := r.Run(context.Background())
	require.NoError(t, err)
	second, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.NotEqual(t, first.RunID, second.RunID)
}

func TestRunner_PartialResultOnFailure(t *testing.T) {
	ctx := context.Background()
	store := memory.NewDeploymentStore()
	deployErr := errors.New("out of gas")

	r := New(Options{
		Deployer: stub.NewDeployer().FailOn(TokenArtifact, deployErr),
		Registry: testRegistry(),
		Store:    store,
		Network:  "ropsten",
	})

	res, err := r.Run(ctx)
	assert.True(t, err == deployErr, "deploy error is returned as is, got %v", err)
	require.NotNil(t, res)
	require.Len(t, res.Deployments, 1)
	assert.Equal(t, ManagerArtifact, res.Deployments[0].Artifact)

	records, err := store.GetByNetwork(ctx, "ropsten")
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestRunner_MissingArtifact(t *testing.T) {
	d := stub.NewDeployer()
	r := New(Options{
		Deployer: d,
		Registry: artifact.NewMapRegistry(&artifact.Artifact{Name: ManagerArtifact}),
		Network:  "development",
	})

	_, err := r.Run(context.Background())
	assert.ErrorIs(t, err, artifact.ErrNotFound)
	assert.Empty(t, d.Calls())
}

// failingStore rejects every insert.
type failingStore struct {
	storage.DeploymentStore
	err error
}

func (s failingStore) Insert(context.Context, *domain.DeploymentRecord) error {
	return s.err
}

func TestRecordingDeployer_StoreFailureStopsRun(t *testing.T) {
	d := stub.NewDeployer()
	rec := NewRecordingDeployer(d, failingStore{err: storage.ErrDuplicateKey}, "development", "run-1")

	_, err := Run(context.Background(), rec, testArtifacts())
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
	assert.Len(t, d.Calls(), 1)
	assert.Len(t, rec.Deployments(), 1, "manager is on chain even though unrecorded")
}

func TestRecordingDeployer_PassesErrorsThrough(t *testing.T) {
	deployErr := errors.New("nonce too low")
	rec := NewRecordingDeployer(stub.NewDeployer().FailOn(ManagerArtifact, deployErr), memory.NewDeploymentStore(), "development", "run-1")

	_, err := rec.Deploy(context.Background(), &artifact.Artifact{Name: ManagerArtifact})
	assert.True(t, err == deployErr)
	assert.Empty(t, rec.Deployments())
}
