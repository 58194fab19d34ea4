package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// setupTestStore creates a temporary directory and returns an FSStore for testing.
func setupTestStore(t *testing.T) (*FSStore, string) {
	t.Helper()

	tempDir := t.TempDir()
	store, err := NewFSStore(tempDir)
	if err != nil {
		t.Fatalf("Failed to create test store: %v", err)
	}

	return store, tempDir
}

// createTestCheckpoint creates a checkpoint with test data.
func createTestCheckpoint(jobID string) *Checkpoint {
	return &Checkpoint{
		JobID:         jobID,
		RunID:         "run-" + jobID,
		SchemaVersion: SchemaVersion,
		BestX:         1.0003,
		BestLoss:      2.4e-5,
		OuterIndex:    7,
		Stencil:       0.1 * 0.25 * 0.25,
		Evals:         412,
		Status:        "completed",
		CreatedAt:     time.Now(),
		Config: RunConfig{
			X0:      1.5,
			H0:      0.1,
			Tol:     1e-7,
			Beta:    1.0,
			Horizon: 5.0,
			Backend: "imfilter",
			Seed:    42,
		},
	}
}

func TestNewFSStore(t *testing.T) {
	tempDir := t.TempDir()

	store, err := NewFSStore(tempDir)
	if err != nil {
		t.Fatalf("NewFSStore failed: %v", err)
	}
	if store == nil {
		t.Fatal("Expected non-nil store")
	}

	if _, err := os.Stat(tempDir); os.IsNotExist(err) {
		t.Fatal("Base directory was not created")
	}
}

func TestSaveCheckpoint(t *testing.T) {
	store, tempDir := setupTestStore(t)

	jobID := "test-job-123"
	checkpoint := createTestCheckpoint(jobID)

	if err := store.SaveCheckpoint(jobID, checkpoint); err != nil {
		t.Fatalf("SaveCheckpoint failed: %v", err)
	}

	expectedPath := filepath.Join(tempDir, "jobs", jobID, "checkpoint.json")
	if _, err := os.Stat(expectedPath); os.IsNotExist(err) {
		t.Fatalf("Checkpoint file was not created at %s", expectedPath)
	}

	// No temp residue from the atomic write
	if _, err := os.Stat(expectedPath + ".tmp"); !os.IsNotExist(err) {
		t.Error("Temp file left behind after save")
	}
}

func TestSaveCheckpoint_EmptyJobID(t *testing.T) {
	store, _ := setupTestStore(t)

	if err := store.SaveCheckpoint("", createTestCheckpoint("x")); err == nil {
		t.Error("Expected error for empty jobID")
	}
}

func TestSaveCheckpoint_NilCheckpoint(t *testing.T) {
	store, _ := setupTestStore(t)

	if err := store.SaveCheckpoint("job", nil); err == nil {
		t.Error("Expected error for nil checkpoint")
	}
}

func TestLoadCheckpoint_RoundTrip(t *testing.T) {
	store, _ := setupTestStore(t)

	jobID := "round-trip-job"
	original := createTestCheckpoint(jobID)

	if err := store.SaveCheckpoint(jobID, original); err != nil {
		t.Fatalf("SaveCheckpoint failed: %v", err)
	}

	loaded, err := store.LoadCheckpoint(jobID)
	if err != nil {
		t.Fatalf("LoadCheckpoint failed: %v", err)
	}

	if loaded.JobID != original.JobID {
		t.Errorf("JobID mismatch: expected %s, got %s", original.JobID, loaded.JobID)
	}
	if loaded.BestX != original.BestX {
		t.Errorf("BestX mismatch: expected %g, got %g", original.BestX, loaded.BestX)
	}
	if loaded.BestLoss != original.BestLoss {
		t.Errorf("BestLoss mismatch: expected %g, got %g", original.BestLoss, loaded.BestLoss)
	}
	if loaded.OuterIndex != original.OuterIndex {
		t.Errorf("OuterIndex mismatch: expected %d, got %d", original.OuterIndex, loaded.OuterIndex)
	}
	if loaded.Stencil != original.Stencil {
		t.Errorf("Stencil mismatch: expected %g, got %g", original.Stencil, loaded.Stencil)
	}
	if loaded.Config != original.Config {
		t.Errorf("Config mismatch: expected %+v, got %+v", original.Config, loaded.Config)
	}
}

func TestLoadCheckpoint_NotFound(t *testing.T) {
	store, _ := setupTestStore(t)

	_, err := store.LoadCheckpoint("does-not-exist")
	if err == nil {
		t.Fatal("Expected error for missing checkpoint")
	}
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestSaveCheckpoint_Overwrite(t *testing.T) {
	store, _ := setupTestStore(t)

	jobID := "overwrite-job"
	first := createTestCheckpoint(jobID)
	if err := store.SaveCheckpoint(jobID, first); err != nil {
		t.Fatalf("First save failed: %v", err)
	}

	second := createTestCheckpoint(jobID)
	second.BestLoss = first.BestLoss / 2
	second.OuterIndex = first.OuterIndex + 1
	if err := store.SaveCheckpoint(jobID, second); err != nil {
		t.Fatalf("Second save failed: %v", err)
	}

	loaded, err := store.LoadCheckpoint(jobID)
	if err != nil {
		t.Fatalf("LoadCheckpoint failed: %v", err)
	}
	if loaded.BestLoss != second.BestLoss {
		t.Errorf("Expected overwritten BestLoss %g, got %g", second.BestLoss, loaded.BestLoss)
	}
	if loaded.OuterIndex != second.OuterIndex {
		t.Errorf("Expected overwritten OuterIndex %d, got %d", second.OuterIndex, loaded.OuterIndex)
	}
}

func TestListCheckpoints_Empty(t *testing.T) {
	store, _ := setupTestStore(t)

	infos, err := store.ListCheckpoints()
	if err != nil {
		t.Fatalf("ListCheckpoints failed: %v", err)
	}
	if len(infos) != 0 {
		t.Errorf("Expected empty list, got %d entries", len(infos))
	}
}

func TestListCheckpoints_SortedByRecency(t *testing.T) {
	store, _ := setupTestStore(t)

	base := time.Now()
	for i, jobID := range []string{"oldest", "middle", "newest"} {
		cp := createTestCheckpoint(jobID)
		cp.CreatedAt = base.Add(time.Duration(i) * time.Hour)
		if err := store.SaveCheckpoint(jobID, cp); err != nil {
			t.Fatalf("SaveCheckpoint(%s) failed: %v", jobID, err)
		}
	}

	infos, err := store.ListCheckpoints()
	if err != nil {
		t.Fatalf("ListCheckpoints failed: %v", err)
	}
	if len(infos) != 3 {
		t.Fatalf("Expected 3 checkpoints, got %d", len(infos))
	}

	want := []string{"newest", "middle", "oldest"}
	for i, info := range infos {
		if info.JobID != want[i] {
			t.Errorf("Position %d: expected %s, got %s", i, want[i], info.JobID)
		}
	}
}

func TestListCheckpoints_SkipsIncompleteDirs(t *testing.T) {
	store, tempDir := setupTestStore(t)

	if err := store.SaveCheckpoint("real-job", createTestCheckpoint("real-job")); err != nil {
		t.Fatalf("SaveCheckpoint failed: %v", err)
	}

	// A job directory without checkpoint.json must not break listing.
	emptyDir := filepath.Join(tempDir, "jobs", "empty-job")
	if err := os.MkdirAll(emptyDir, 0755); err != nil {
		t.Fatalf("Failed to create empty dir: %v", err)
	}

	infos, err := store.ListCheckpoints()
	if err != nil {
		t.Fatalf("ListCheckpoints failed: %v", err)
	}
	if len(infos) != 1 {
		t.Errorf("Expected 1 checkpoint, got %d", len(infos))
	}
}

func TestDeleteCheckpoint(t *testing.T) {
	store, tempDir := setupTestStore(t)

	jobID := "delete-me"
	if err := store.SaveCheckpoint(jobID, createTestCheckpoint(jobID)); err != nil {
		t.Fatalf("SaveCheckpoint failed: %v", err)
	}

	if err := store.DeleteCheckpoint(jobID); err != nil {
		t.Fatalf("DeleteCheckpoint failed: %v", err)
	}

	jobDir := filepath.Join(tempDir, "jobs", jobID)
	if _, err := os.Stat(jobDir); !os.IsNotExist(err) {
		t.Error("Job directory still exists after delete")
	}

	if _, err := store.LoadCheckpoint(jobID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}
}

func TestDeleteCheckpoint_NotFound(t *testing.T) {
	store, _ := setupTestStore(t)

	err := store.DeleteCheckpoint("never-existed")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestFSStore_ConcurrentSaves(t *testing.T) {
	store, _ := setupTestStore(t)

	done := make(chan error, 10)
	for i := 0; i < 10; i++ {
		go func(n int) {
			cp := createTestCheckpoint("concurrent-job")
			cp.OuterIndex = n
			done <- store.SaveCheckpoint("concurrent-job", cp)
		}(i)
	}

	for i := 0; i < 10; i++ {
		if err := <-done; err != nil {
			t.Errorf("Concurrent save failed: %v", err)
		}
	}

	// Whatever won, the file must be readable and intact.
	if _, err := store.LoadCheckpoint("concurrent-job"); err != nil {
		t.Fatalf("LoadCheckpoint after concurrent saves failed: %v", err)
	}
}
