package idhash

import (
	"testing"
)

func TestComputeDeploymentID(t *testing.T) {
	tests := []struct {
		name     string
		network  string
		artifact string
		txHash   string
	}{
		{
			name:     "manager on development",
			network:  "development",
			artifact: "Manager",
			txHash:   "0x5c504ed432cb51138bcf09aa5e8a410dd4a1e204ef84bfed1be16dfba1b22060",
		},
		{
			name:     "token on development",
			network:  "development",
			artifact: "Token",
			txHash:   "0xa1b2c3",
		},
		{
			name:     "empty hash",
			network:  "ropsten",
			artifact: "Token",
			txHash:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeDeploymentID(tt.network, tt.artifact, tt.txHash)

			if len(got) != 64 {
				t.Errorf("ComputeDeploymentID() length = %d, want 64", len(got))
			}

			got2 := ComputeDeploymentID(tt.network, tt.artifact, tt.txHash)
			if got != got2 {
				t.Errorf("ComputeDeploymentID() not deterministic: %s != %s", got, got2)
			}
		})
	}
}

func TestComputeDeploymentID_HashCaseInsensitive(t *testing.T) {
	lower := ComputeDeploymentID("development", "Token", "0xabcdef")
	upper := ComputeDeploymentID("development", "Token", "0xABCDEF")

	if lower != upper {
		t.Errorf("tx hash case changed id: %s != %s", lower, upper)
	}
}

func TestComputeDeploymentID_DifferentInputs(t *testing.T) {
	base := ComputeDeploymentID("development", "Token", "0x01")

	variants := map[string]string{
		"network":  ComputeDeploymentID("mainnet", "Token", "0x01"),
		"artifact": ComputeDeploymentID("development", "Manager", "0x01"),
		"tx hash":  ComputeDeploymentID("development", "Token", "0x02"),
	}

	for field, id := range variants {
		if id == base {
			t.Errorf("changing %s did not change deployment id", field)
		}
	}
}
