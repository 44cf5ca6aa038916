package artifact

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// DirRegistry reads truffle-style build output: one <Name>.json per contract.
// Loaded artifacts are cached.
type DirRegistry struct {
	dir string

	mu    sync.Mutex
	cache map[string]*Artifact
}

// NewDirRegistry creates a registry over a build directory.
func NewDirRegistry(dir string) *DirRegistry {
	return &DirRegistry{
		dir:   dir,
		cache: make(map[string]*Artifact),
	}
}

// buildFile is the subset of a truffle build artifact that deployment needs.
type buildFile struct {
	ContractName string          `json:"contractName"`
	ABI          json.RawMessage `json:"abi"`
	Bytecode     string          `json:"bytecode"`
}

func (r *DirRegistry) Require(name string) (*Artifact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if a, ok := r.cache[name]; ok {
		return a, nil
	}

	path := filepath.Join(r.dir, name+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	a, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if a.Name != name {
		return nil, fmt.Errorf("%s: contractName %q does not match %q: %w", path, a.Name, name, ErrInvalidArtifact)
	}

	r.cache[name] = a
	return a, nil
}

// Parse decodes a single truffle build artifact.
func Parse(data []byte) (*Artifact, error) {
	var f buildFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode artifact: %v: %w", err, ErrInvalidArtifact)
	}
	if f.ContractName == "" {
		return nil, fmt.Errorf("missing contractName: %w", ErrInvalidArtifact)
	}
	if len(f.ABI) == 0 {
		return nil, fmt.Errorf("%s: missing abi: %w", f.ContractName, ErrInvalidArtifact)
	}

	parsed, err := abi.JSON(bytes.NewReader(f.ABI))
	if err != nil {
		return nil, fmt.Errorf("%s: parse abi: %v: %w", f.ContractName, err, ErrInvalidArtifact)
	}

	code, err := hexutil.Decode(f.Bytecode)
	if err != nil {
		return nil, fmt.Errorf("%s: bytecode: %v: %w", f.ContractName, err, ErrInvalidArtifact)
	}
	if len(code) == 0 {
		return nil, fmt.Errorf("%s: empty bytecode (abstract contract or interface?): %w", f.ContractName, ErrInvalidArtifact)
	}

	return &Artifact{
		Name:     f.ContractName,
		ABI:      parsed,
		Bytecode: code,
	}, nil
}
