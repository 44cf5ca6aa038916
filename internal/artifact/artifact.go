// Package artifact loads compiled contract artifacts (ABI + creation bytecode).
package artifact

import (
	"errors"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

var (
	// ErrNotFound is returned when no artifact exists under a name.
	ErrNotFound = errors.New("artifact not found")

	// ErrInvalidArtifact is returned when an artifact has no usable ABI or bytecode.
	ErrInvalidArtifact = errors.New("invalid artifact")
)

// Artifact is a compiled contract ready for deployment.
type Artifact struct {
	Name     string
	ABI      abi.ABI
	Bytecode []byte
}

// Registry resolves artifacts by contract name.
type Registry interface {
	Require(name string) (*Artifact, error)
}

// MapRegistry is an in-memory Registry.
type MapRegistry struct {
	mu        sync.RWMutex
	artifacts map[string]*Artifact
}

// NewMapRegistry creates a registry holding the given artifacts.
func NewMapRegistry(artifacts ...*Artifact) *MapRegistry {
	r := &MapRegistry{artifacts: make(map[string]*Artifact, len(artifacts))}
	for _, a := range artifacts {
		r.artifacts[a.Name] = a
	}
	return r
}

// Add registers a, replacing any artifact with the same name.
func (r *MapRegistry) Add(a *Artifact) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.artifacts[a.Name] = a
}

func (r *MapRegistry) Require(name string) (*Artifact, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.artifacts[name]
	if !ok {
		return nil, ErrNotFound
	}
	return a, nil
}
