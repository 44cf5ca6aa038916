package domain

// Deployment is the outcome of a single contract-creation call.
type Deployment struct {
	Artifact    string // artifact name, e.g. "Token"
	Address     string // deployed contract address (checksummed hex)
	TxHash      string // creation transaction hash
	BlockNumber uint64 // block the creation was mined in
	GasUsed     uint64
}

// DeploymentRecord is the persisted bookkeeping row for a deployment.
// Corresponds to deployments table in PostgreSQL and ClickHouse.
type DeploymentRecord struct {
	DeploymentID string // PK, see idhash.ComputeDeploymentID
	RunID        string // migration run that produced it
	Network      string // configured network name
	StepIndex    int    // position within the run, 0-based
	Artifact     string
	Address      string
	TxHash       string
	BlockNumber  uint64
	GasUsed      uint64
	Args         string // constructor arguments, JSON array
	DeployedAt   int64  // when the receipt was observed (ms)
	CreatedAt    int64  // record creation timestamp (ms)
}
