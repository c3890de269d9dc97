package cmd

import (
	"bytes"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vouchfs/vouchfs/internal/rand"
)

// runCmd executes the CLI against temp stores and returns captured output.
// Fatal exits are patched to fail the test instead of exiting the process.
func runCmd(t *testing.T, baseDir string, args ...string) string {
	t.Helper()

	var out bytes.Buffer
	savedInfo := infoLogger
	savedFatalln := logFatalln
	savedFatalf := logFatalf
	infoLogger = log.New(&out, "", 0)
	logFatalln = func(v ...interface{}) {
		t.Fatal(v...)
	}
	logFatalf = func(format string, v ...interface{}) {
		t.Fatalf(format, v...)
	}
	defer func() {
		infoLogger = savedInfo
		logFatalln = savedFatalln
		logFatalf = savedFatalf
	}()

	all := append(args,
		"--metadata", filepath.Join(baseDir, "meta"),
		"--blob", filepath.Join(baseDir, "blobs"),
		"--loglevel", "none",
	)
	rootCmd.SetArgs(all)
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

// fieldAfter extracts the value following "key:" in captured output
func fieldAfter(t *testing.T, output, key string) string {
	t.Helper()
	for _, line := range strings.Split(output, "\n") {
		if idx := strings.Index(line, key); idx >= 0 {
			return strings.TrimSpace(line[idx+len(key):])
		}
	}
	t.Fatalf("output %q does not contain %q", output, key)
	return ""
}

func TestCLI_UploadDownloadRoundTrip(t *testing.T) {
	baseDir := t.TempDir()
	payload := rand.Bytes(4096)
	source := filepath.Join(baseDir, "payload.bin")
	require.NoError(t, os.WriteFile(source, payload, 0600))

	out := runCmd(t, baseDir, "upload", "--source", source, "--owner", "alice")
	fileID := fieldAfter(t, out, "file id:")
	require.NotEmpty(t, fileID)

	dest := filepath.Join(baseDir, "restored.bin")
	runCmd(t, baseDir, "download", "--file", fileID, "--destination", dest)
	restored, err := os.ReadFile(dest)
	require.NoError(t, err)
	require.Equal(t, payload, restored)

	out = runCmd(t, baseDir, "verify", "--file", fileID)
	require.Contains(t, out, "verified")
}

func TestCLI_ShareRevealRoundTrip(t *testing.T) {
	baseDir := t.TempDir()
	payload := rand.Bytes(1024)
	source := filepath.Join(baseDir, "payload.bin")
	require.NoError(t, os.WriteFile(source, payload, 0600))

	out := runCmd(t, baseDir, "upload", "--source", source, "--owner", "alice")
	fileID := fieldAfter(t, out, "file id:")

	out = runCmd(t, baseDir, "share", "create",
		"--file", fileID, "--owner", "alice", "--recipient", "bob")
	shareID := fieldAfter(t, out, "share id:")
	opening := fieldAfter(t, out, "opening:")
	require.NotEmpty(t, shareID)
	require.NotEmpty(t, opening)

	out = runCmd(t, baseDir, "share", "reveal",
		"--share", shareID, "--root", fileID, "--opening", opening)
	require.Contains(t, out, "verified")

	out = runCmd(t, baseDir, "share", "list", "--recipient", "bob")
	require.Contains(t, out, shareID)
}

func TestCLI_Stats(t *testing.T) {
	baseDir := t.TempDir()
	payload := rand.Bytes(2048)
	source := filepath.Join(baseDir, "payload.bin")
	require.NoError(t, os.WriteFile(source, payload, 0600))

	runCmd(t, baseDir, "upload", "--source", source, "--owner", "alice")
	runCmd(t, baseDir, "upload", "--source", source, "--owner", "bob")

	out := runCmd(t, baseDir, "stats")
	require.Contains(t, out, "files:")
	require.Contains(t, out, "dedup ratio:")
}
