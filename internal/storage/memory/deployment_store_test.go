package memory

import (
	"context"
	"errors"
	"testing"

	"token-deploy/internal/domain"
	"token-deploy/internal/storage"
)

func newRecord(id, runID, network, artifact string, step int, deployedAt int64) *domain.DeploymentRecord {
	return &domain.DeploymentRecord{
		DeploymentID: id,
		RunID:        runID,
		Network:      network,
		StepIndex:    step,
		Artifact:     artifact,
		Address:      "0x000000000000000000000000000000000000dEaD",
		TxHash:       "0x" + id,
		BlockNumber:  uint64(step + 1),
		GasUsed:      21000,
		Args:         "[]",
		DeployedAt:   deployedAt,
		CreatedAt:    deployedAt,
	}
}

func TestDeploymentStore_InsertAndGetByID(t *testing.T) {
	store := NewDeploymentStore()
	ctx := context.Background()

	rec := newRecord("dep1", "run1", "development", "Manager", 0, 1000)
	if err := store.Insert(ctx, rec); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := store.GetByID(ctx, "dep1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}

	if got.Artifact != "Manager" {
		t.Errorf("Artifact mismatch: got %s, want Manager", got.Artifact)
	}
	if got.RunID != "run1" {
		t.Errorf("RunID mismatch: got %s, want run1", got.RunID)
	}
}

func TestDeploymentStore_InsertDuplicate(t *testing.T) {
	store := NewDeploymentStore()
	ctx := context.Background()

	rec := newRecord("dep1", "run1", "development", "Manager", 0, 1000)
	if err := store.Insert(ctx, rec); err != nil {
		t.Fatalf("first insert failed: %v", err)
	}

	err := store.Insert(ctx, rec)
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}
}

func TestDeploymentStore_InsertInvalid(t *testing.T) {
	store := NewDeploymentStore()
	ctx := context.Background()

	if err := store.Insert(ctx, nil); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("nil record: expected ErrInvalidInput, got %v", err)
	}

	if err := store.Insert(ctx, &domain.DeploymentRecord{}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("empty id: expected ErrInvalidInput, got %v", err)
	}
}

func TestDeploymentStore_GetByIDNotFound(t *testing.T) {
	store := NewDeploymentStore()

	_, err := store.GetByID(context.Background(), "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDeploymentStore_ReturnsCopies(t *testing.T) {
	store := NewDeploymentStore()
	ctx := context.Background()

	rec := newRecord("dep1", "run1", "development", "Manager", 0, 1000)
	if err := store.Insert(ctx, rec); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	rec.Address = "mutated"

	got, _ := store.GetByID(ctx, "dep1")
	got.Artifact = "mutated"

	again, _ := store.GetByID(ctx, "dep1")
	if again.Address == "mutated" || again.Artifact == "mutated" {
		t.Error("store exposed internal record to caller mutation")
	}
}

func TestDeploymentStore_GetByRunOrdered(t *testing.T) {
	store := NewDeploymentStore()
	ctx := context.Background()

	// Insert out of step order
	for _, r := range []*domain.DeploymentRecord{
		newRecord("b", "run1", "development", "Token", 1, 2000),
		newRecord("x", "run2", "development", "Manager", 0, 3000),
		newRecord("a", "run1", "development", "Manager", 0, 1000),
	} {
		if err := store.Insert(ctx, r); err != nil {
			t.Fatalf("Insert %s failed: %v", r.DeploymentID, err)
		}
	}

	got, err := store.GetByRun(ctx, "run1")
	if err != nil {
		t.Fatalf("GetByRun failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}
	if got[0].Artifact != "Manager" || got[1].Artifact != "Token" {
		t.Errorf("wrong order: %s, %s", got[0].Artifact, got[1].Artifact)
	}
}

func TestDeploymentStore_GetByNetwork(t *testing.T) {
	store := NewDeploymentStore()
	ctx := context.Background()

	for _, r := range []*domain.DeploymentRecord{
		newRecord("c", "run2", "development", "Manager", 0, 5000),
		newRecord("a", "run1", "development", "Manager", 0, 1000),
		newRecord("b", "run1", "development", "Token", 1, 1000),
		newRecord("m", "run3", "mainnet", "Manager", 0, 1500),
	} {
		if err := store.Insert(ctx, r); err != nil {
			t.Fatalf("Insert %s failed: %v", r.DeploymentID, err)
		}
	}

	got, err := store.GetByNetwork(ctx, "development")
	if err != nil {
		t.Fatalf("GetByNetwork failed: %v", err)
	}

	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("expected %d records, got %d", len(want), len(got))
	}
	for i, id := range want {
		if got[i].DeploymentID != id {
			t.Errorf("position %d: got %s, want %s", i, got[i].DeploymentID, id)
		}
	}
}

func TestDeploymentStore_GetLatest(t *testing.T) {
	store := NewDeploymentStore()
	ctx := context.Background()

	for _, r := range []*domain.DeploymentRecord{
		newRecord("new", "run2", "development", "Token", 1, 9000),
		newRecord("old", "run1", "development", "Token", 1, 1000),
	} {
		if err := store.Insert(ctx, r); err != nil {
			t.Fatalf("Insert %s failed: %v", r.DeploymentID, err)
		}
	}

	got, err := store.GetLatest(ctx, "development", "Token")
	if err != nil {
		t.Fatalf("GetLatest failed: %v", err)
	}
	if got.DeploymentID != "new" {
		t.Errorf("expected latest record 'new', got %s", got.DeploymentID)
	}

	_, err = store.GetLatest(ctx, "development", "Manager")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
