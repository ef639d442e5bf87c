package cmd

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/lockpad/internal/domain"
)

func TestVersionPrintsVersion(t *testing.T) {
	home := t.TempDir()

	stdout, _, err := executeCLI(t, home, "version")
	require.NoError(t, err)
	assert.Equal(t, "dev\n", stdout)
}

func TestDeviceAddThenList(t *testing.T) {
	home := t.TempDir()

	stdout, _, err := executeCLI(t, home,
		"device", "add",
		"--id", "dev-1",
		"--label", "desk",
		"--secret-hash", "5f4dcc3b5aa765d6",
	)
	require.NoError(t, err)
	assert.Contains(t, stdout, "device dev-1 saved")

	stdout, _, err = executeCLI(t, home, "device", "list")
	require.NoError(t, err)
	assert.Equal(t, "dev-1\tdesk\n", stdout)

	_, err = os.Stat(filepath.Join(home, ".lockpad", "devices.toml"))
	require.NoError(t, err)
}

func TestDeviceAddRequiresSecretHash(t *testing.T) {
	home := t.TempDir()

	_, _, err := executeCLI(t, home, "device", "add", "--id", "dev-1", "--label", "desk")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag(s) \"secret-hash\" not set")
}

func TestDeviceShowMasksSecretHash(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, writeDevicesFixture(home))

	stdout, _, err := executeCLI(t, home, "device", "show")
	require.NoError(t, err)
	assert.Contains(t, stdout, "id:          dev-1")
	assert.Contains(t, stdout, "label:       desk")
	assert.Contains(t, stdout, "secret hash: 5f4d************")
	assert.NotContains(t, stdout, "5f4dcc3b5aa765d6")
}

func TestDeviceShowWithoutDevices(t *testing.T) {
	home := t.TempDir()

	_, _, err := executeCLI(t, home, "device", "show")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no device configured")
}

func TestDeviceShowUnknownDevice(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, writeDevicesFixture(home))

	_, _, err := executeCLI(t, home, "device", "show", "dev-9")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDeviceNotFound)
}

func TestTokenFetchCachesTokenThenClear(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, writeDevicesFixture(home))

	var got map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/devices/request", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"token":"00112233"}`))
	}))
	defer server.Close()
	t.Setenv("LOCKPAD_CLOUD_BASE_URL", server.URL)

	stdout, _, err := executeCLI(t, home, "token", "fetch")
	require.NoError(t, err)
	assert.Contains(t, stdout, "token cached for device dev-1")
	assert.Equal(t, "dev-1", got["deviceId"])
	assert.Equal(t, "5f4dcc3b5aa765d6", got["secretHash"])

	tokenPath := filepath.Join(home, ".lockpad", "secrets", "lockpad", "dev-1", "token")
	data, err := os.ReadFile(tokenPath)
	require.NoError(t, err)
	assert.Equal(t, "00112233", string(bytes.TrimSpace(data)))

	stdout, _, err = executeCLI(t, home, "token", "clear")
	require.NoError(t, err)
	assert.Contains(t, stdout, "token cleared for device dev-1")
	_, err = os.Stat(tokenPath)
	assert.True(t, os.IsNotExist(err))
}

func TestTokenFetchReportsCloudError(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, writeDevicesFixture(home))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"message":"unknown device"}`))
	}))
	defer server.Close()
	t.Setenv("LOCKPAD_CLOUD_BASE_URL", server.URL)

	_, _, err := executeCLI(t, home, "token", "fetch")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown device")
}

func TestControllerAuthenticatesAgainstPeripheral(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, writeDevicesFixture(home))
	key := []byte("0123456789abcdef")
	addr := startPeripheral(t, home, key)

	stdout, _, err := executeCLI(t, home,
		"controller",
		"--addr", addr,
		"--id", "CTRL001",
		"--key", hex.EncodeToString(key),
	)
	require.NoError(t, err)
	assert.Contains(t, stdout, "mtu 247")
	assert.Contains(t, stdout, "verified:   ok")

	stdout, _, err = executeCLI(t, home, "status", "--addr", addr)
	require.NoError(t, err)
	assert.Contains(t, stdout, "desk (dev-1)")
	assert.Contains(t, stdout, "unlocked")
	assert.Contains(t, stdout, "CTRL001")
	assert.Contains(t, stdout, "key: configured")
}

func TestControllerRejectsWrongKey(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, writeDevicesFixture(home))
	addr := startPeripheral(t, home, []byte("0123456789abcdef"))

	_, _, err := executeCLI(t, home,
		"controller",
		"--addr", addr,
		"--key", hex.EncodeToString([]byte("another key")),
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not match")
}

func TestControllerSeesSentinelWithoutKey(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, writeDevicesFixture(home))
	addr := startPeripheral(t, home, nil)

	stdout, _, err := executeCLI(t, home, "controller", "--addr", addr)
	require.NoError(t, err)
	assert.Contains(t, stdout, "response:   deadbeef")
	assert.Contains(t, stdout, "peripheral has no key configured")
	assert.Contains(t, stdout, "verified:   skipped")
}

func TestControllerDefaultMTUTruncatesResponse(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, writeDevicesFixture(home))
	addr := startPeripheral(t, home, []byte("0123456789abcdef"))

	stdout, _, err := executeCLI(t, home, "controller", "--addr", addr, "--mtu", "23")
	require.NoError(t, err)
	assert.Contains(t, stdout, "response truncated to 22 bytes")
}

func TestStatusJSONOutput(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, writeDevicesFixture(home))
	addr := startPeripheral(t, home, nil)

	stdout, _, err := executeCLI(t, home, "status", "--addr", addr, "--json")
	require.NoError(t, err)
	assert.True(t, json.Valid([]byte(stdout)))
	assert.Contains(t, stdout, "\"DeviceID\": \"dev-1\"")
	assert.Contains(t, stdout, "\"KeyConfigured\": false")
}

func TestUnknownCommand(t *testing.T) {
	home := t.TempDir()

	_, _, err := executeCLI(t, home, "account")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown command \"account\"")
}

func TestInvalidConfigFailsCommands(t *testing.T) {
	home := t.TempDir()
	configDir := filepath.Join(home, ".lockpad")
	require.NoError(t, os.MkdirAll(configDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "config.toml"), []byte("[expiry]\nthreshold = \"-1s\"\n"), 0o644))

	_, _, err := executeCLI(t, home, "device", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expiry.threshold must be positive")
}

// startPeripheral runs the serve components for the fixture device on a
// loopback port and returns its address.
func startPeripheral(t *testing.T, home string, key []byte) string {
	t.Helper()
	setTestEnv(t, home)

	app, err := wireApp()
	require.NoError(t, err)

	device, err := resolveDevice(context.Background(), app, "")
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- newPeripheral(app, device, key).run(ctx, ln, false)
	}()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("peripheral did not stop")
		}
	})

	return ln.Addr().String()
}

func setTestEnv(t *testing.T, home string) {
	t.Helper()
	t.Setenv("HOME", home)
	t.Setenv("LOCKPAD_SECRETS_BACKEND", "file")
	t.Setenv("LOCKPAD_LOG_LEVEL", "error")
}

func executeCLI(t *testing.T, home string, args ...string) (string, string, error) {
	t.Helper()
	setTestEnv(t, home)

	root := newRootCmd()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetArgs(args)

	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func writeDevicesFixture(home string) error {
	configDir := filepath.Join(home, ".lockpad")
	if err := os.MkdirAll(configDir, 0o700); err != nil {
		return err
	}

	devices := `version = 1

[[devices]]
id = "dev-1"
label = "desk"
secret_hash = "5f4dcc3b5aa765d6"
`

	return os.WriteFile(filepath.Join(configDir, "devices.toml"), []byte(devices), 0o600)
}
