package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cwbudde/ratefit/internal/store"
	"github.com/spf13/cobra"
)

func testRunConfig() store.RunConfig {
	return store.RunConfig{
		X0:      1.5,
		H0:      0.1,
		Tol:     1e-7,
		Beta:    1.0,
		Horizon: 5.0,
		Backend: "imfilter",
	}
}

func TestSelectCheckpointsForDeletion_ByAge(t *testing.T) {
	now := time.Now()
	infos := []store.CheckpointInfo{
		{JobID: "job1", CreatedAt: now.AddDate(0, 0, -10)},
		{JobID: "job2", CreatedAt: now.AddDate(0, 0, -5)},
		{JobID: "job3", CreatedAt: now.AddDate(0, 0, -1)},
		{JobID: "job4", CreatedAt: now.AddDate(0, 0, -30)},
	}

	toDelete := selectCheckpointsForDeletion(infos, 0, 7)

	if len(toDelete) != 2 {
		t.Fatalf("Expected 2 checkpoints to delete, got %d", len(toDelete))
	}

	found10 := false
	found30 := false
	for _, info := range toDelete {
		if info.JobID == "job1" {
			found10 = true
		}
		if info.JobID == "job4" {
			found30 = true
		}
	}

	if !found10 || !found30 {
		t.Error("Expected job1 and job4 to be selected for deletion")
	}
}

func TestSelectCheckpointsForDeletion_ByCount(t *testing.T) {
	now := time.Now()
	infos := []store.CheckpointInfo{
		{JobID: "job1", CreatedAt: now.AddDate(0, 0, -10)},
		{JobID: "job2", CreatedAt: now.AddDate(0, 0, -5)},
		{JobID: "job3", CreatedAt: now.AddDate(0, 0, -1)},
		{JobID: "job4", CreatedAt: now.AddDate(0, 0, -30)},
	}

	toDelete := selectCheckpointsForDeletion(infos, 2, 0)

	if len(toDelete) != 2 {
		t.Fatalf("Expected 2 checkpoints to delete, got %d", len(toDelete))
	}

	found30 := false
	found10 := false
	for _, info := range toDelete {
		if info.JobID == "job4" {
			found30 = true
		}
		if info.JobID == "job1" {
			found10 = true
		}
	}

	if !found30 || !found10 {
		t.Error("Expected job4 and job1 to be selected for deletion (oldest)")
	}
}

func TestSelectCheckpointsForDeletion_CombinedNoDuplicates(t *testing.T) {
	now := time.Now()
	infos := []store.CheckpointInfo{
		{JobID: "job1", CreatedAt: now.AddDate(0, 0, -10)},
		{JobID: "job2", CreatedAt: now.AddDate(0, 0, -5)},
		{JobID: "job3", CreatedAt: now.AddDate(0, 0, -1)},
		{JobID: "job4", CreatedAt: now.AddDate(0, 0, -30)},
		{JobID: "job5", CreatedAt: now.AddDate(0, 0, -2)},
	}

	// Age selects job1 and job4; keep-last 3 selects the same two.
	toDelete := selectCheckpointsForDeletion(infos, 3, 7)

	if len(toDelete) != 2 {
		t.Fatalf("Expected 2 checkpoints to delete, got %d", len(toDelete))
	}
	seen := map[string]int{}
	for _, info := range toDelete {
		seen[info.JobID]++
	}
	for id, n := range seen {
		if n > 1 {
			t.Errorf("Checkpoint %s selected %d times", id, n)
		}
	}
}

func TestGetDirSize(t *testing.T) {
	tmpDir := t.TempDir()

	testFile := filepath.Join(tmpDir, "test.txt")
	content := []byte("Hello, World!")
	if err := os.WriteFile(testFile, content, 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	size, err := getDirSize(tmpDir)
	if err != nil {
		t.Fatalf("getDirSize failed: %v", err)
	}

	if size < int64(len(content)) {
		t.Errorf("Expected size >= %d, got %d", len(content), size)
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		bytes    int64
		expected string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1023, "1023 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{1048576, "1.0 MB"},
		{1073741824, "1.0 GB"},
	}

	for _, tt := range tests {
		result := formatBytes(tt.bytes)
		if result != tt.expected {
			t.Errorf("formatBytes(%d) = %s, expected %s", tt.bytes, result, tt.expected)
		}
	}
}

func TestDisplayJobID(t *testing.T) {
	if got := displayJobID("short"); got != "short" {
		t.Errorf("displayJobID(short) = %s", got)
	}
	long := "0123456789abcdef"
	if got := displayJobID(long); got != "0123456789ab..." {
		t.Errorf("displayJobID(%s) = %s", long, got)
	}
}

func TestCheckpointsListCommand_NoCheckpoints(t *testing.T) {
	tmpDir := t.TempDir()

	originalDataDir := checkpointDataDir
	checkpointDataDir = tmpDir
	defer func() { checkpointDataDir = originalDataDir }()

	if err := runListCheckpoints(nil, nil); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
}

func TestCheckpointsListCommand_WithCheckpoints(t *testing.T) {
	tmpDir := t.TempDir()

	checkpointStore, err := store.NewFSStore(tmpDir)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	checkpoint := store.NewCheckpoint("test-job-id", "run-1", 0.999, 0.02, 3, 0.025, 120, "completed", testRunConfig())
	if err := checkpointStore.SaveCheckpoint("test-job-id", checkpoint); err != nil {
		t.Fatalf("Failed to save checkpoint: %v", err)
	}

	originalDataDir := checkpointDataDir
	checkpointDataDir = tmpDir
	defer func() { checkpointDataDir = originalDataDir }()

	if err := runListCheckpoints(nil, nil); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
}

func TestCheckpointsShowCommand(t *testing.T) {
	tmpDir := t.TempDir()

	checkpointStore, err := store.NewFSStore(tmpDir)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	checkpoint := store.NewCheckpoint("show-job", "run-1", 1.001, 0.003, 5, 0.1, 80, "completed", testRunConfig())
	if err := checkpointStore.SaveCheckpoint("show-job", checkpoint); err != nil {
		t.Fatalf("Failed to save checkpoint: %v", err)
	}

	originalDataDir := checkpointDataDir
	checkpointDataDir = tmpDir
	defer func() { checkpointDataDir = originalDataDir }()

	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)

	if err := runShowCheckpoint(cmd, []string{"show-job"}); err != nil {
		t.Fatalf("runShowCheckpoint failed: %v", err)
	}

	var decoded store.Checkpoint
	if err := json.Unmarshal(out.Bytes(), &decoded); err != nil {
		t.Fatalf("Output is not valid JSON: %v\n%s", err, out.String())
	}
	if decoded.JobID != "show-job" {
		t.Errorf("Expected jobId show-job, got %s", decoded.JobID)
	}
	if !strings.Contains(out.String(), "\n  ") {
		t.Error("Expected indented JSON output")
	}
}

func TestCheckpointsCleanCommand_NoFlags(t *testing.T) {
	tmpDir := t.TempDir()

	originalDataDir := checkpointDataDir
	checkpointDataDir = tmpDir
	defer func() { checkpointDataDir = originalDataDir }()

	keepLast = 0
	olderThanDays = 0

	if err := runCleanCheckpoints(nil, nil); err == nil {
		t.Error("Expected error when no flags specified")
	}
}

func TestCheckpointsCleanCommand_WithForce(t *testing.T) {
	tmpDir := t.TempDir()

	checkpointStore, err := store.NewFSStore(tmpDir)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	checkpoint := store.NewCheckpoint("old-job", "run-1", 0.98, 0.1, 2, 0.05, 60, "completed", testRunConfig())
	checkpoint.CreatedAt = time.Now().AddDate(0, 0, -30)
	if err := checkpointStore.SaveCheckpoint("old-job", checkpoint); err != nil {
		t.Fatalf("Failed to save checkpoint: %v", err)
	}

	originalDataDir := checkpointDataDir
	checkpointDataDir = tmpDir
	defer func() { checkpointDataDir = originalDataDir }()

	keepLast = 0
	olderThanDays = 7
	forceClean = true

	if err := runCleanCheckpoints(nil, nil); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}

	if _, err := checkpointStore.LoadCheckpoint("old-job"); err == nil {
		t.Error("Expected checkpoint to be deleted")
	}
}
