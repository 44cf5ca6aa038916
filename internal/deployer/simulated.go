package deployer

import (
	"context"
	"encoding/binary"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"token-deploy/internal/artifact"
	"token-deploy/internal/domain"
)

// Simulated encodes constructor arguments like RPCDeployer but never talks
// to a node. Addresses follow the CREATE rule for From and a local nonce,
// so a dry run predicts the addresses of a fresh account's deployment.
type Simulated struct {
	from common.Address

	mu    sync.Mutex
	nonce uint64
	block uint64
}

// NewSimulated creates a simulated deployer starting at nonce.
func NewSimulated(from string, nonce uint64) *Simulated {
	return &Simulated{
		from:  common.HexToAddress(from),
		nonce: nonce,
	}
}

func (s *Simulated) Deploy(ctx context.Context, a *artifact.Artifact, args ...any) (*domain.Deployment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := EncodeConstructor(a, args)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	nonce := s.nonce
	s.nonce++
	s.block++

	var n [8]byte
	binary.BigEndian.PutUint64(n[:], nonce)

	return &domain.Deployment{
		Artifact:    a.Name,
		Address:     crypto.CreateAddress(s.from, nonce).Hex(),
		TxHash:      crypto.Keccak256Hash(s.from.Bytes(), n[:], data).Hex(),
		BlockNumber: s.block,
	}, nil
}
