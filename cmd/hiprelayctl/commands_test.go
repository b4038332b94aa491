package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "hiprelay.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func chatServer(t *testing.T, status string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var n atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n.Add(1)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":%q}`, status)
	}))
	t.Cleanup(srv.Close)
	return srv, &n
}

func findCmd(t *testing.T, root *cobra.Command, path ...string) *cobra.Command {
	t.Helper()
	cmd, _, err := root.Find(path)
	require.NoError(t, err)
	return cmd
}

func TestRootCmd(t *testing.T) {
	root := newRootCmd()
	assert.Equal(t, "hiprelayctl", root.Use)
	assert.NotEmpty(t, root.Short)

	cfgFlag := root.PersistentFlags().Lookup("config")
	require.NotNil(t, cfgFlag)
	assert.Equal(t, "c", cfgFlag.Shorthand)

	outFlag := root.PersistentFlags().Lookup("output")
	require.NotNil(t, outFlag)
	assert.Equal(t, "text", outFlag.DefValue)

	for _, path := range [][]string{
		{"validate"},
		{"send", "alert"},
		{"send", "event"},
		{"dedup", "check"},
		{"dedup", "prune"},
		{"status"},
	} {
		cmd := findCmd(t, root, path...)
		assert.Equal(t, path[len(path)-1], cmd.Name())
		assert.NotEmpty(t, cmd.Short, "%v", path)
	}
}

func TestSendEventCmdFlags(t *testing.T) {
	cmd := sendEventCmd(&globalOpts{})
	require.NotNil(t, cmd)
	assert.Equal(t, "event", cmd.Use)
	assert.NotEmpty(t, cmd.Long)

	groupFlag := cmd.Flags().Lookup("group")
	require.NotNil(t, groupFlag)
	assert.Equal(t, "g", groupFlag.Shorthand)

	levelFlag := cmd.Flags().Lookup("level")
	require.NotNil(t, levelFlag)
	assert.Equal(t, "error", levelFlag.DefValue)

	for _, name := range []string{"project", "project-name", "summary", "url"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), name)
	}
}

func TestSendAlertCmdFlags(t *testing.T) {
	cmd := sendAlertCmd(&globalOpts{})
	require.NotNil(t, cmd)
	assert.Equal(t, "alert", cmd.Use)
	assert.Nil(t, cmd.Flags().Lookup("group"))

	msgFlag := cmd.Flags().Lookup("message")
	require.NotNil(t, msgFlag)
	assert.Equal(t, "m", msgFlag.Shorthand)
}

func TestStatusCmd(t *testing.T) {
	cmd := statusCmd(&globalOpts{})
	require.NotNil(t, cmd)
	assert.Equal(t, "status", cmd.Use)

	unitFlag := cmd.Flags().Lookup("unit")
	require.NotNil(t, unitFlag)
	assert.Equal(t, "hiprelayd", unitFlag.DefValue)
}

func TestValidate(t *testing.T) {
	path := writeConfig(t, `
projects:
  "42":
    token: tok
    room: ops
  "43":
    notify: true
`)

	out, err := run(t, "validate", "-c", path)
	require.NoError(t, err)
	assert.Contains(t, out, path+": ok")
	assert.Contains(t, out, "dedup driver: memory")
	assert.Contains(t, out, "configured projects: 1 [42]")
	assert.Contains(t, out, "unconfigured projects (skipped): [43]")

	out, err = run(t, "validate", "-c", path, "-o", "json")
	require.NoError(t, err)
	var res validateResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.True(t, res.Valid)
	assert.Equal(t, []string{"42"}, res.Configured)
	assert.Equal(t, []string{"43"}, res.Unconfigured)
}

func TestValidateRejectsBadConfig(t *testing.T) {
	path := writeConfig(t, `
projects:
  "42":
    token: tok
    room: ops
    delay: 5
`)
	_, err := run(t, "validate", "-c", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least 60 seconds")

	_, err = run(t, "validate", "-c", filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestValidateUnknownOutput(t *testing.T) {
	path := writeConfig(t, "projects: {}\n")
	_, err := run(t, "validate", "-c", path, "-o", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown output format "xml"`)
}

func TestSendEventDeduplicatesAcrossInvocations(t *testing.T) {
	srv, hits := chatServer(t, "sent")
	dir := t.TempDir()
	path := writeConfig(t, fmt.Sprintf(`
dedup:
  driver: sqlite
  path: %s
projects:
  "42":
    token: tok
    room: ops
    endpoint: %s
`, filepath.Join(dir, "dedup.db"), srv.URL))

	args := []string{"send", "event", "-c", path, "-p", "42", "-g", "7", "-s", "NullPointer", "--url", "http://x/g/7"}

	out, err := run(t, args...)
	require.NoError(t, err)
	assert.Contains(t, out, ": sent")

	out, err = run(t, args...)
	require.NoError(t, err)
	assert.Contains(t, out, ": suppressed")
	assert.Equal(t, int32(1), hits.Load())

	out, err = run(t, "dedup", "check", "-c", path, "-g", "7", "-o", "json")
	require.NoError(t, err)
	var res dedupResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "delay_7", res.Key)
	assert.True(t, res.Suppressed)

	out, err = run(t, "dedup", "check", "-c", path, "-g", "8")
	require.NoError(t, err)
	assert.Equal(t, "delay_8: clear\n", out)

	out, err = run(t, "dedup", "prune", "-c", path)
	require.NoError(t, err)
	assert.Equal(t, "removed 0 expired markers\n", out)
}

func TestSendAlertFailureExitsNonZero(t *testing.T) {
	srv, hits := chatServer(t, "queued")
	path := writeConfig(t, fmt.Sprintf(`
projects:
  "42":
    token: tok
    room: ops
    endpoint: %s
`, srv.URL))

	out, err := run(t, "send", "alert", "-c", path, "-p", "42", "-m", "disk full", "-o", "json")
	require.ErrorIs(t, err, errDispatchFailed)
	assert.Equal(t, int32(1), hits.Load())

	var res sendResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "alert", res.Kind)
	assert.Equal(t, "failed", res.Outcome)
	assert.NotEmpty(t, res.ID)
	assert.NotEmpty(t, res.Error)
}

func TestSendSkipsUnconfiguredProject(t *testing.T) {
	path := writeConfig(t, "projects: {}\n")
	out, err := run(t, "send", "alert", "-c", path, "-p", "99", "-m", "hello")
	require.NoError(t, err)
	assert.Contains(t, out, ": skipped")
}

func TestDedupPruneMemoryDriver(t *testing.T) {
	path := writeConfig(t, "projects: {}\n")
	out, err := run(t, "dedup", "prune", "-c", path)
	require.NoError(t, err)
	assert.Contains(t, out, "removed 0 expired markers")
}
