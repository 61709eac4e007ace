package sproc

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFacadeLifecycle(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "services.toml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
[services.web]
command = "sleep 30"
`), 0o600))

	sup, err := New(cfgPath, nil)
	require.NoError(t, err)

	require.NoError(t, sup.Start("web"))
	snap, err := sup.Info("web")
	require.NoError(t, err)
	require.Equal(t, "web", snap.Name)
	require.Greater(t, snap.PID, 0)

	require.NoError(t, sup.Kill("web"))
	_, err = sup.Info("web")
	require.True(t, errors.Is(err, ErrNotRunning))
}

func TestFacadeStartUnknown(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "services.toml")
	sup, err := New(cfgPath, nil)
	require.NoError(t, err)
	require.ErrorIs(t, sup.Start("ghost"), ErrNotFound)
}

func TestFacadePinAndLoadConfig(t *testing.T) {
	dir := t.TempDir()
	overlay := filepath.Join(dir, "overlay.toml")
	require.NoError(t, os.WriteFile(overlay, []byte(`
[services.db]
command = "sleep 60"
restart = true
`), 0o600))
	cfgPath := filepath.Join(dir, "services.toml")

	require.NoError(t, Pin(cfgPath, overlay))
	cfg, err := LoadConfig(cfgPath)
	require.NoError(t, err)
	require.Contains(t, cfg.Services, "db")
	require.True(t, cfg.Services["db"].Restart)
}
