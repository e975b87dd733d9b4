package e2e

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const testCommandTimeout = 30 * time.Second

// findBinary locates a prebuilt daystreak binary. DAYSTREAK_BIN_DIR overrides
// the default ../../bin.
func findBinary(t *testing.T) string {
	t.Helper()
	binDir := os.Getenv("DAYSTREAK_BIN_DIR")
	if binDir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			t.Fatalf("Failed to get cwd: %v", err)
		}
		binDir = filepath.Join(cwd, "..", "..", "bin")
	}
	binDir, _ = filepath.Abs(binDir)

	cliPath := filepath.Join(binDir, "daystreak")
	if _, err := os.Stat(cliPath); os.IsNotExist(err) {
		t.Skipf("CLI binary not found at %s; build it with 'go build -o bin/daystreak ./cmd/daystreak'", cliPath)
	}
	return cliPath
}

// isolatedEnv returns the process environment with HOME and every DAYSTREAK_*
// variable replaced so the run cannot touch real user data.
func isolatedEnv(home string) []string {
	var env []string
	for _, e := range os.Environ() {
		if strings.HasPrefix(e, "HOME=") || strings.HasPrefix(e, "DAYSTREAK_") || strings.HasPrefix(e, "XDG_CONFIG_HOME=") {
			continue
		}
		env = append(env, e)
	}
	return append(env,
		"HOME="+home,
		"XDG_CONFIG_HOME="+home,
		"DAYSTREAK_NOTIFY_DRY_RUN=true",
	)
}

func TestEndToEndWorkflow(t *testing.T) {
	cliPath := findBinary(t)
	home := t.TempDir()
	env := isolatedEnv(home)
	configDir := filepath.Join(home, "daystreak")
	store := filepath.Join(configDir, "daystreak.db")

	base := []string{"--config-dir", configDir, "--store", store}
	run := func(args ...string) string {
		return runCmd(t, cliPath, env, append(append([]string{}, base...), args...)...)
	}

	t.Log("Initializing storage...")
	if out := run("init"); !strings.Contains(out, store) {
		t.Errorf("init output should name the store path, got:\n%s", out)
	}

	t.Log("Creating goal...")
	run("goal", "create", "Read", "--days", "30")

	out := run("goal", "status")
	if !strings.Contains(out, "Read") || !strings.Contains(out, "0/30") {
		t.Errorf("status before marking:\n%s", out)
	}

	t.Log("Marking today...")
	run("goal", "mark")
	if out := run("goal", "mark"); !strings.Contains(out, "already marked") {
		t.Errorf("second mark should report already marked, got:\n%s", out)
	}
	if out := run("goal", "status"); !strings.Contains(out, "1/30") {
		t.Errorf("status after marking:\n%s", out)
	}

	t.Log("Backing up and deleting...")
	run("backup", "create")
	if out := run("backup", "list"); !strings.Contains(out, "daystreak-") {
		t.Errorf("backup list should show the new backup, got:\n%s", out)
	}
	run("goal", "delete")
	if out := run("goal", "status"); !strings.Contains(out, "No active goal") {
		t.Errorf("status after delete:\n%s", out)
	}

	t.Log("Restoring...")
	run("backup", "restore", "--yes")
	if out := run("goal", "status"); !strings.Contains(out, "1/30") {
		t.Errorf("status after restore:\n%s", out)
	}

	t.Log("Running doctor...")
	if out := run("doctor"); !strings.Contains(out, "Store reachable: OK") {
		t.Errorf("doctor output:\n%s", out)
	}

	if out := run("notify", "--title", "daystreak", "--body", "hello", "--dry-run"); !strings.Contains(out, "[dry-run]") {
		t.Errorf("notify --dry-run should print instead of sending, got:\n%s", out)
	}
}

func TestUninitializedStoreFails(t *testing.T) {
	cliPath := findBinary(t)
	home := t.TempDir()
	env := isolatedEnv(home)

	ctx, cancel := context.WithTimeout(context.Background(), testCommandTimeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, cliPath,
		"--config-dir", filepath.Join(home, "daystreak"),
		"--store", filepath.Join(home, "missing.db"),
		"goal", "status")
	cmd.Env = env
	out, err := cmd.CombinedOutput()
	if err == nil {
		t.Fatalf("status on a missing store should fail, got:\n%s", out)
	}
	if !strings.Contains(string(out), "daystreak init") {
		t.Errorf("error should hint at 'daystreak init', got:\n%s", out)
	}
}

func runCmd(t *testing.T, path string, env []string, args ...string) string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), testCommandTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Env = env
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		t.Fatalf("Command %s %v failed: %v\nStdout: %s\nStderr: %s", path, args, err, stdout.String(), stderr.String())
	}
	return stdout.String()
}
