package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sessiond.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "localhost:9110", cfg.ListenAddr)
	require.Equal(t, time.Hour, cfg.IdleTimeout.AsDuration())
	require.Equal(t, 5*time.Second, cfg.DrainTimeout.AsDuration())
	require.Equal(t, time.Second, cfg.SetupRetryInterval.AsDuration())
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
listen_addr: "0.0.0.0:9200"
idle_timeout: 30m
setup_retry_interval: 250ms
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "0.0.0.0:9200", cfg.ListenAddr)
	require.Equal(t, 30*time.Minute, cfg.IdleTimeout.AsDuration())
	require.Equal(t, 250*time.Millisecond, cfg.SetupRetryInterval.AsDuration())
	// Unset fields keep their defaults.
	require.Equal(t, 5*time.Second, cfg.DrainTimeout.AsDuration())
}

func TestLoadRejectsBadDuration(t *testing.T) {
	path := writeConfig(t, "idle_timeout: soon\n")
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsBadListenAddr(t *testing.T) {
	path := writeConfig(t, "listen_addr: not-an-address\n")
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
