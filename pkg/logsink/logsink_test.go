package logsink

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteHeaderAppendFooter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "job.log")
	startedAt := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	WriteHeader(path, JobInfo{Name: "3_run.bat", BatPath: "/cases/c1/3_run.bat", RequiredCores: 4}, startedAt)

	exitCode := 0
	AppendFooter(path, startedAt.Add(time.Minute), "Completed", &exitCode)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)

	assert.Contains(t, content, "Job: 3_run.bat")
	assert.Contains(t, content, "Cores: 4")
	assert.Contains(t, content, "Status: Completed")
	assert.Contains(t, content, "ExitCode: 0")
}

func TestAppendFooterUnknownExitCode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "job.log")
	WriteHeader(path, JobInfo{Name: "run.bat"}, time.Now())
	AppendFooter(path, time.Now(), "Failed", nil)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "ExitCode: unknown")
}

func TestAppendLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "job.log")
	WriteHeader(path, JobInfo{Name: "run.bat"}, time.Now())
	AppendLine(path, "failed to start job: exec: not found")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "failed to start job: exec: not found")
}

func TestFollowStreamsAppendedBytes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "job.log")
	require.NoError(t, os.WriteFile(path, []byte("line one\n"), 0o644))

	stop := make(chan struct{})
	defer close(stop)

	out, err := Follow(path, stop)
	require.NoError(t, err)

	var collected []byte
	select {
	case chunk := <-out:
		collected = append(collected, chunk...)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for initial content")
	}
	assert.Contains(t, string(collected), "line one")

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("line two\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	select {
	case chunk := <-out:
		assert.Contains(t, string(chunk), "line two")
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for appended content")
	}
}
