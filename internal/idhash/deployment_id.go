package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// ComputeDeploymentID computes a deterministic deployment_id using SHA256.
// Formula: SHA256(network|artifact|lower(tx_hash))
// Returns hex-encoded hash (64 characters).
func ComputeDeploymentID(network, artifact, txHash string) string {
	data := fmt.Sprintf("%s|%s|%s",
		network,
		artifact,
		strings.ToLower(txHash),
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
