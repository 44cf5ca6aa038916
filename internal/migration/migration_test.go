package migration

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"token-deploy/internal/artifact"
	"token-deploy/internal/migration/stub"
)

func testArtifacts() Artifacts {
	return Artifacts{
		Manager: &artifact.Artifact{Name: ManagerArtifact},
		Token:   &artifact.Artifact{Name: TokenArtifact},
	}
}

func TestRun_DeploysManagerThenToken(t *testing.T) {
	d := stub.NewDeployer()
	arts := testArtifacts()

	res, err := Run(context.Background(), d, arts)
	require.NoError(t, err)

	calls := d.Calls()
	require.Len(t, calls, 2)
	assert.Same(t, arts.Manager, calls[0].Artifact)
	assert.Same(t, arts.Token, calls[1].Artifact)

	assert.Equal(t, "Manager", res.Manager.Artifact)
	assert.Equal(t, "Token", res.Token.Artifact)
}

func TestRun_ManagerArguments(t *testing.T) {
	d := stub.NewDeployer()

	_, err := Run(context.Background(), d, testArtifacts())
	require.NoError(t, err)

	assert.Equal(t, []any{
		"0x29206D36B147B00A4592D5D9154Ac32ab4830fB0",
		"0xe0014f07625ae3ef38050B28339b0203DDCdf045",
	}, d.Calls()[0].Args)
}

func TestRun_TokenArguments(t *testing.T) {
	d := stub.NewDeployer()

	_, err := Run(context.Background(), d, testArtifacts())
	require.NoError(t, err)

	args := d.Calls()[1].Args
	require.Len(t, args, 10)
	assert.Equal(t, []any{
		"TestCoin",
		"TST",
		uint64(500000000),
		uint64(100),
		"0xC5fdf4076b8F3A5357c5E395ab970B5B54098Fef",
		uint64(1518451520),
		uint64(20),
		uint64(10),
		uint64(5),
		uint64(1),
	}, args)
}

func TestRun_NoExtraCalls(t *testing.T) {
	d := stub.NewDeployer()

	for i := 0; i < 3; i++ {
		_, err := Run(context.Background(), d, testArtifacts())
		require.NoError(t, err)
	}
	assert.Len(t, d.Calls(), 6, "two calls per run")
}

func TestRun_ManagerFailure(t *testing.T) {
	deployErr := errors.New("insufficient funds for gas * price + value")
	d := stub.NewDeployer().FailOn(ManagerArtifact, deployErr)

	res, err := Run(context.Background(), d, testArtifacts())
	assert.Nil(t, res)
	assert.True(t, err == deployErr, "error must be returned as is, got %v", err)
	assert.ErrorIs(t, err, deployErr)

	calls := d.Calls()
	require.Len(t, calls, 1, "token is not attempted")
	assert.Equal(t, ManagerArtifact, calls[0].Artifact.Name)
}

func TestRun_TokenFailure(t *testing.T) {
	deployErr := errors.New("VM Exception while processing transaction: revert")
	d := stub.NewDeployer().FailOn(TokenArtifact, deployErr)

	res, err := Run(context.Background(), d, testArtifacts())
	assert.Nil(t, res)
	assert.True(t, err == deployErr, "error must be returned as is, got %v", err)
	assert.Len(t, d.Calls(), 2, "no retry")
}

func TestArgs_FreshSlices(t *testing.T) {
	a := Token().Args()
	a[0] = "Changed"
	assert.Equal(t, "TestCoin", Token().Args()[0])

	m := Manager().Args()
	m[1] = "0x0"
	assert.Equal(t, "0xe0014f07625ae3ef38050B28339b0203DDCdf045", Manager().Args()[1])
}

func TestPlan(t *testing.T) {
	steps := Plan()
	require.Len(t, steps, 2)
	assert.Equal(t, ManagerArtifact, steps[0].Artifact)
	assert.Len(t, steps[0].Args, 2)
	assert.Equal(t, TokenArtifact, steps[1].Artifact)
	assert.Equal(t, Token().Args(), steps[1].Args)
}

func TestResolveArtifacts(t *testing.T) {
	manager := &artifact.Artifact{Name: ManagerArtifact}
	token := &artifact.Artifact{Name: TokenArtifact}

	arts, err := ResolveArtifacts(artifact.NewMapRegistry(manager, token))
	require.NoError(t, err)
	assert.Same(t, manager, arts.Manager)
	assert.Same(t, token, arts.Token)

	_, err = ResolveArtifacts(artifact.NewMapRegistry(manager))
	assert.ErrorIs(t, err, artifact.ErrNotFound)
}

func TestResolveArtifacts_BuildDir(t *testing.T) {
	arts, err := ResolveArtifacts(artifact.NewDirRegistry("../artifact/testdata"))
	require.NoError(t, err)
	assert.Len(t, arts.Manager.ABI.Constructor.Inputs, len(Manager().Args()))
	assert.Len(t, arts.Token.ABI.Constructor.Inputs, len(Token().Args()))
}
