// Package stub provides a recording migration.Deployer for tests.
package stub

import (
	"context"
	"fmt"
	"sync"

	"token-deploy/internal/artifact"
	"token-deploy/internal/domain"
)

// Call is one recorded Deploy invocation.
type Call struct {
	Artifact *artifact.Artifact
	Args     []any
}

// Deployer records calls and returns fabricated deployments.
type Deployer struct {
	mu    sync.Mutex
	calls []Call

	// Errors makes Deploy fail for the named artifact.
	Errors map[string]error
}

// NewDeployer creates a deployer that succeeds for every artifact.
func NewDeployer() *Deployer {
	return &Deployer{Errors: make(map[string]error)}
}

// FailOn makes deploys of artifact return err.
func (d *Deployer) FailOn(artifact string, err error) *Deployer {
	d.Errors[artifact] = err
	return d
}

func (d *Deployer) Deploy(_ context.Context, a *artifact.Artifact, args ...any) (*domain.Deployment, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.calls = append(d.calls, Call{Artifact: a, Args: args})
	if err, ok := d.Errors[a.Name]; ok {
		return nil, err
	}

	n := len(d.calls)
	return &domain.Deployment{
		Artifact:    a.Name,
		Address:     fmt.Sprintf("0x%040x", n),
		TxHash:      fmt.Sprintf("0x%064x", n),
		BlockNumber: uint64(n),
		GasUsed:     21000,
	}, nil
}

// Calls returns a copy of the recorded calls.
func (d *Deployer) Calls() []Call {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Call(nil), d.calls...)
}
