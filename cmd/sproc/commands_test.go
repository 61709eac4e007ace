package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/loykin/sproc"
)

func TestRootHasExpectedCommands(t *testing.T) {
	root := buildRoot()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"start", "kill", "info", "ls", "pin", "serve"} {
		require.Contains(t, names, want)
	}
}

func TestStartUnknownServiceFails(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "services.toml")
	root := buildRoot()
	root.SetArgs([]string{"start", "ghost", "--config", cfgPath})
	err := root.Execute()
	require.Error(t, err)
	require.ErrorIs(t, err, sproc.ErrNotFound)
}

func TestPinCommandInstallsFile(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "mine.toml")
	require.NoError(t, os.WriteFile(source, []byte(`
[services.db]
command = "sleep 60"
`), 0o600))
	cfgPath := filepath.Join(dir, "services.toml")

	root := buildRoot()
	root.SetArgs([]string{"pin", source, "--config", cfgPath})
	require.NoError(t, root.Execute())

	cfg, err := sproc.LoadConfig(cfgPath)
	require.NoError(t, err)
	require.Contains(t, cfg.Services, "db")
}

func TestKillNeverStartedFails(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "services.toml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
[services.web]
command = "sleep 60"
`), 0o600))

	root := buildRoot()
	root.SetArgs([]string{"kill", "web", "--config", cfgPath})
	err := root.Execute()
	require.ErrorIs(t, err, sproc.ErrNotRunning)
}
