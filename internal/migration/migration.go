// Package migration deploys the Manager and Token contracts.
//
// Run makes exactly two deploy calls with literal arguments. Persistence,
// metrics and logging live in Runner, which decorates the Deployer.
package migration

import (
	"context"
	"fmt"

	"token-deploy/internal/artifact"
	"token-deploy/internal/domain"
)

// Deployer broadcasts a contract creation and returns its result.
type Deployer interface {
	Deploy(ctx context.Context, a *artifact.Artifact, args ...any) (*domain.Deployment, error)
}

// Artifacts are the resolved handles Run deploys.
type Artifacts struct {
	Manager *artifact.Artifact
	Token   *artifact.Artifact
}

// ResolveArtifacts looks up both artifacts by name.
func ResolveArtifacts(reg artifact.Registry) (Artifacts, error) {
	manager, err := reg.Require(ManagerArtifact)
	if err != nil {
		return Artifacts{}, fmt.Errorf("require %s: %w", ManagerArtifact, err)
	}
	token, err := reg.Require(TokenArtifact)
	if err != nil {
		return Artifacts{}, fmt.Errorf("require %s: %w", TokenArtifact, err)
	}
	return Artifacts{Manager: manager, Token: token}, nil
}

// Result holds both deployments of a completed run.
type Result struct {
	Manager *domain.Deployment
	Token   *domain.Deployment
}

// Run deploys Manager then Token. Deployer errors are returned as is;
// a Manager failure means Token is never attempted.
func Run(ctx context.Context, d Deployer, arts Artifacts) (*Result, error) {
	manager, err := d.Deploy(ctx, arts.Manager, Manager().Args()...)
	if err != nil {
		return nil, err
	}

	token, err := d.Deploy(ctx, arts.Token, Token().Args()...)
	if err != nil {
		return nil, err
	}

	return &Result{Manager: manager, Token: token}, nil
}

// Step is one planned deploy call.
type Step struct {
	Artifact string
	Args     []any
}

// Plan returns the deploy calls Run makes, in order.
func Plan() []Step {
	return []Step{
		{Artifact: ManagerArtifact, Args: Manager().Args()},
		{Artifact: TokenArtifact, Args: Token().Args()},
	}
}
