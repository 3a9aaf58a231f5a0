package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/containercopier/container-copier/internal/config"
	"github.com/containercopier/container-copier/internal/mask"
	"github.com/containercopier/container-copier/internal/notify"
)

const testBackend = "test-ended"

// opened counts notifiers created through testBackend.
var opened atomic.Int32

// endedNotifier accepts every watch and ends its stream immediately.
type endedNotifier struct {
	mu  sync.Mutex
	ids int
}

func (n *endedNotifier) Add(string, mask.Mask) (notify.WatchID, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.ids++
	return notify.WatchID(n.ids), nil
}

func (n *endedNotifier) Next() notify.Item { return notify.EndItem() }
func (n *endedNotifier) Close() error      { return nil }

func init() {
	notify.Register(testBackend, func() (notify.Notifier, error) {
		opened.Add(1)
		return &endedNotifier{}, nil
	})
}

type result struct {
	code   int
	stdout string
	stderr string
}

func run(t *testing.T, args ...string) result {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := execute(context.Background(), args, &bytes.Buffer{}, &stdout, &stderr)
	return result{code: code, stdout: stdout.String(), stderr: stderr.String()}
}

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestVersionCommand(t *testing.T) {
	res := run(t, "version")
	assert.Equal(t, exitOK, res.code)
	assert.Regexp(t, `^container-copier \S+`, res.stdout)
}

func TestVersionFlag(t *testing.T) {
	for _, flag := range []string{"-V", "--version"} {
		res := run(t, flag, "--config", "/does/not/matter.toml")
		assert.Equal(t, exitOK, res.code, flag)
		assert.Contains(t, res.stdout, "container-copier ", flag)
	}
}

// TestBogusEventFailsBeforeNotifier checks that an unknown event name stops
// the process with a config error before any notifier is created.
func TestBogusEventFailsBeforeNotifier(t *testing.T) {
	path := writeConfig(t, "bogus.toml", `
[[copysets]]
name = "cfg"
source = "/src"
target = "/dst"

  [[copysets.targets]]
  source = "a.txt"
  events = ["BOGUS"]
`)
	before := opened.Load()

	res := run(t, "--config", path, "--backend", testBackend)
	assert.Equal(t, exitConfig, res.code)
	assert.Contains(t, res.stderr, "BOGUS")
	assert.Equal(t, before, opened.Load())
}

func TestMissingConfig(t *testing.T) {
	res := run(t, "--config", filepath.Join(t.TempDir(), "absent.toml"), "--backend", testBackend)
	assert.Equal(t, exitConfig, res.code)
}

func TestBadLogFormat(t *testing.T) {
	res := run(t, "--log-format", "xml")
	assert.Equal(t, exitConfig, res.code)
	assert.Contains(t, res.stderr, "log-format")
}

func TestUnknownBackend(t *testing.T) {
	path := writeConfig(t, "empty.toml", "copysets = []\n")
	res := run(t, "--config", path, "--backend", "carrier-pigeon")
	assert.Equal(t, exitFatal, res.code)
	assert.Contains(t, res.stderr, "unknown notification backend")
}

// TestRunDaemon runs the daemon to a clean end of stream and checks the
// initial copy happened.
func TestRunDaemon(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src")
	dst := filepath.Join(root, "dst")
	require.NoError(t, os.MkdirAll(src, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "a.txt"), []byte("payload"), 0o644))

	path := writeConfig(t, "copier.yaml", `
copysets:
  - name: cfg
    source: `+src+`
    target: `+dst+`
    targets:
      - source: a.txt
`)

	res := run(t, "--config", path, "--backend", testBackend, "-v")
	require.Equal(t, exitOK, res.code, res.stderr)

	data, err := os.ReadFile(filepath.Join(dst, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
	assert.Contains(t, res.stderr, "Notification stream ended")
	assert.Contains(t, res.stderr, "DEBUG")
}

func TestRunDaemonFromEnvironment(t *testing.T) {
	path := writeConfig(t, "empty.toml", "copysets = []\n")
	t.Setenv("CONTAINER_COPIER_CONFIG", path)
	t.Setenv("CONTAINER_COPIER_BACKEND", testBackend)
	t.Setenv("CONTAINER_COPIER_LOG_FORMAT", "json")

	res := run(t)
	require.Equal(t, exitOK, res.code, res.stderr)
	assert.Contains(t, res.stderr, `"msg":"Daemon stopped"`)
}

func TestCheck(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src")
	require.NoError(t, os.MkdirAll(src, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "a.txt"), []byte("x"), 0o644))

	path := writeConfig(t, "copier.toml", `
[[copysets]]
name = "cfg"
source = "`+src+`"
target = "`+filepath.Join(root, "dst")+`"

  [[copysets.targets]]
  source = "a.txt"

  [[copysets.targets]]
  source = "b.log"
  events = ["ACCESS"]
`)

	res := run(t, "check", "--config", path)
	require.Equal(t, exitOK, res.code, res.stderr)
	assert.Contains(t, res.stdout, "is valid")
	assert.Contains(t, res.stdout, filepath.Join(root, "dst", "b.log"))
	assert.Contains(t, res.stdout, "ACCESS")
	assert.Contains(t, res.stdout, "2 targets in 1 copysets, 1 initial copies pending")
	assert.Contains(t, res.stdout, filepath.Join(root, "dst", "b.log")+": events include reads of the source")
	assert.NotContains(t, res.stdout, filepath.Join(root, "dst", "a.txt")+": events include")
	assert.NoFileExists(t, filepath.Join(root, "dst", "a.txt"))
}

func TestCheckInvalid(t *testing.T) {
	path := writeConfig(t, "copier.toml", "[[copysets]]\nname = \"cfg\"\n")
	res := run(t, "check", "--config", path)
	assert.Equal(t, exitConfig, res.code)
	assert.Contains(t, res.stdout, "is invalid")
	assert.Contains(t, res.stderr, "copysets[0].source")
}

func TestSchema(t *testing.T) {
	res := run(t, "schema")
	require.Equal(t, exitOK, res.code, res.stderr)

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &doc))
	props, ok := doc["properties"].(map[string]any)
	require.True(t, ok, "schema has properties")
	assert.Contains(t, props, "copysets")
	assert.Contains(t, res.stdout, "DONT_FOLLOW")
}

func TestInitNonInteractive(t *testing.T) {
	for _, name := range []string{"copier.toml", "copier.yaml"} {
		t.Run(name, func(t *testing.T) {
			out := filepath.Join(t.TempDir(), "nested", name)
			res := run(t, "init", "--output", out,
				"--name", "app", "--source", "/defaults", "--target", "/etc/app",
				"--file", "app.conf", "--file", "certs/ca.pem", "--events", "MODIFY,CLOSE_WRITE")
			require.Equal(t, exitOK, res.code, res.stderr)
			assert.Contains(t, res.stdout, "Wrote")

			cfg, err := config.Load(out)
			require.NoError(t, err)
			require.Len(t, cfg.Copysets, 1)
			set := cfg.Copysets[0]
			assert.Equal(t, "app", set.Name)
			assert.Equal(t, "/defaults", set.Source)
			assert.Equal(t, "/etc/app", set.Target)
			assert.Equal(t, config.EventList{"MODIFY", "CLOSE_WRITE"}, set.Events)
			require.Len(t, set.Targets, 2)
			assert.Equal(t, "certs/ca.pem", set.Targets[1].Source)
		})
	}
}

func TestInitRefusesOverwrite(t *testing.T) {
	out := writeConfig(t, "copier.toml", "# mine\n")
	res := run(t, "init", "--output", out, "--source", "/a", "--target", "/b")
	assert.Equal(t, exitFatal, res.code)
	assert.Contains(t, res.stderr, "already exists")

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "# mine\n", string(data))

	res = run(t, "init", "--output", out, "--source", "/a", "--target", "/b", "--force")
	assert.Equal(t, exitOK, res.code, res.stderr)
}

func TestInitRejectsInvalid(t *testing.T) {
	out := filepath.Join(t.TempDir(), "copier.toml")
	res := run(t, "init", "--output", out, "--source", "/a")
	assert.Equal(t, exitConfig, res.code)
	assert.NoFileExists(t, out)
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, exitOK, exitCode(nil))
	assert.Equal(t, exitConfig, exitCode(&config.Error{Err: config.ErrNoCopysets}))
	assert.Equal(t, exitConfig, exitCode(errSettings))
	assert.Equal(t, exitFatal, exitCode(assert.AnError))
}
