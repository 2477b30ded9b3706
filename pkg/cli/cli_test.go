package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/mockmesh/internal/cliconfig"
	"github.com/getmockd/mockmesh/pkg/registry"
)

const testNode = `
logging:
  level: error
steps:
  nap:
    type: DelayStep
    value: { time: 0 }
  boom:
    type: ErrorStep
    value: { probability: 1 }
processors:
  checkout:
    type: RequestProcessor
    value: { steps: [nap], successSize: 8, errorSize: 6 }
  broken:
    type: RequestProcessor
    value: { steps: [boom], errorSize: 6 }
  warmup:
    type: StartupProcessor
    value: { steps: [nap] }
`

// writeConfig points MOCKMESH_CONFIG at a file holding content.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "node.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Setenv(cliconfig.EnvConfig, path)
	return path
}

// execute runs the root command with args and returns its stdout.
func execute(t *testing.T, ctx context.Context, args ...string) (string, error) {
	t.Helper()

	configFiles = nil
	jsonOutput = false
	runStartup = false

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.ExecuteContext(ctx)
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, context.Background(), "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "mockmesh "))

	out, err = execute(t, context.Background(), "version", "--json")
	require.NoError(t, err)
	var v VersionOutput
	require.NoError(t, json.Unmarshal([]byte(out), &v))
	assert.NotEmpty(t, v.Go)
}

func TestValidate(t *testing.T) {
	path := writeConfig(t, testNode)

	out, err := execute(t, context.Background(), "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration is valid")
	assert.Contains(t, out, path)
	assert.Contains(t, out, "broken, checkout, warmup")

	out, err = execute(t, context.Background(), "validate", "--json")
	require.NoError(t, err)
	var v ValidateOutput
	require.NoError(t, json.Unmarshal([]byte(out), &v))
	assert.True(t, v.Valid)
	assert.Equal(t, []string{"boom", "nap"}, v.Entries[registry.SectionSteps])
}

func TestValidate_Rejects(t *testing.T) {
	tests := map[string]string{
		"unknown type":      "steps:\n  x: { type: SleepStep, value: { time: 1 } }\n",
		"missing value":     "steps:\n  x: { type: DelayStep }\n",
		"dangling step ref": "processors:\n  p: { type: RequestProcessor, value: { steps: [ghost] } }\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			writeConfig(t, content)
			_, err := execute(t, context.Background(), "validate")
			assert.Error(t, err)
		})
	}
}

func TestValidate_NoConfig(t *testing.T) {
	t.Setenv(cliconfig.EnvConfig, filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := execute(t, context.Background(), "validate")
	assert.Error(t, err)
}

func TestRun(t *testing.T) {
	writeConfig(t, testNode)

	out, err := execute(t, context.Background(), "run", "checkout", "--json")
	require.NoError(t, err)

	var res struct {
		Processor string `json:"processor"`
		Status    string `json:"status"`
		Body      struct {
			Result []string `json:"result"`
		} `json:"body"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "checkout", res.Processor)
	assert.Equal(t, "Success", res.Status)
	assert.Equal(t, []string{"abcd"}, res.Body.Result)

	out, err = execute(t, context.Background(), "run", "broken", "--startup")
	require.NoError(t, err)
	assert.Contains(t, out, "broken: SimulatedFail")
	assert.Contains(t, out, `"error": "abc"`)
}

func TestRun_Errors(t *testing.T) {
	writeConfig(t, testNode)

	_, err := execute(t, context.Background(), "run", "ghost")
	assert.Error(t, err)

	_, err = execute(t, context.Background(), "run", "warmup")
	assert.Error(t, err, "startup processors cannot serve requests")

	_, err = execute(t, context.Background(), "run")
	assert.Error(t, err)
}

func TestServe_StopsOnCancel(t *testing.T) {
	writeConfig(t, testNode)
	t.Setenv(cliconfig.EnvHost, "127.0.0.1")
	t.Setenv(cliconfig.EnvPort, "0")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	var out bytes.Buffer

	configFiles = nil
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs([]string{"serve"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	go func() { done <- rootCmd.ExecuteContext(ctx) }()

	time.Sleep(300 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not stop")
	}
	assert.Contains(t, out.String(), "mockmesh listening on http://127.0.0.1:")
	assert.Contains(t, out.String(), "Shutting down")
}

func TestValidate_ExampleConfigs(t *testing.T) {
	for _, name := range []string{"frontend.yaml", "backend.yaml"} {
		t.Run(name, func(t *testing.T) {
			t.Setenv(cliconfig.EnvConfig, filepath.Join("..", "..", "examples", "with-config-file", name))
			_, err := execute(t, context.Background(), "validate", "--json")
			require.NoError(t, err)
		})
	}
}
