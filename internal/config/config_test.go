package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	return &Store{Path: filepath.Join(t.TempDir(), "services.toml")}
}

func TestLoadMissingFileReturnsDefault(t *testing.T) {
	s := newStore(t)
	cfg, err := s.Load()
	require.NoError(t, err)
	require.Empty(t, cfg.Services)
	require.Equal(t, DefaultPort, cfg.Server.Port)
	require.NotNil(t, cfg.States)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := newStore(t)
	cfg := Default()
	cfg.Services["Web"] = Service{
		Command:          "sleep 60",
		WorkingDirectory: "/tmp",
		Environment:      map[string]string{"PORT": "8080"},
		Restart:          true,
	}
	cfg.Server = ServerConfig{Port: 7000, Key: "secret"}
	cfg.States.Put("Web", Record{State: StateRunning, PID: 123, StartedUnix: 456})
	require.NoError(t, s.Save(cfg))

	got, err := s.Load()
	require.NoError(t, err)
	require.Equal(t, cfg.Services["Web"], got.Services["Web"])
	require.Equal(t, cfg.Server, got.Server)
	rec, ok := got.States.Get("Web")
	require.True(t, ok)
	require.Equal(t, StateRunning, rec.State)
	require.Equal(t, 123, rec.PID)
	require.Equal(t, int64(456), rec.StartedUnix)
}

func TestServiceNamesAreCaseSignificant(t *testing.T) {
	s := newStore(t)
	cfg := Default()
	cfg.Services["Web"] = Service{Command: "sleep 1"}
	cfg.Services["web"] = Service{Command: "sleep 2"}
	require.NoError(t, s.Save(cfg))

	got, err := s.Load()
	require.NoError(t, err)
	require.Len(t, got.Services, 2)
	require.Equal(t, "sleep 1", got.Services["Web"].Command)
	require.Equal(t, "sleep 2", got.Services["web"].Command)
}

func TestSaveWritesMaintenanceHeader(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.Save(Default()))
	b, err := os.ReadFile(s.Path)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(b), "# Maintained by sproc."))
}

func TestLoadMalformedFile(t *testing.T) {
	s := newStore(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(s.Path), 0o750))
	require.NoError(t, os.WriteFile(s.Path, []byte("services = not toml"), 0o600))
	_, err := s.Load()
	require.ErrorIs(t, err, ErrParse)
}

func TestInheritOverridesPrimary(t *testing.T) {
	dir := t.TempDir()
	overlay := filepath.Join(dir, "overlay.toml")
	require.NoError(t, os.WriteFile(overlay, []byte(`
[services.web]
command = "sleep 99"
restart = true

[services.extra]
command = "sleep 1"
`), 0o600))

	s := &Store{Path: filepath.Join(dir, "services.toml")}
	cfg := Default()
	cfg.Inherit = []string{overlay}
	cfg.Services["web"] = Service{Command: "sleep 1"}
	require.NoError(t, s.Save(cfg))

	got, err := s.Load()
	require.NoError(t, err)
	require.Equal(t, "sleep 99", got.Services["web"].Command, "inherited definition must win the name collision")
	require.True(t, got.Services["web"].Restart)
	require.Contains(t, got.Services, "extra")
}

func TestInheritUnreadableFileSkipped(t *testing.T) {
	s := newStore(t)
	cfg := Default()
	cfg.Inherit = []string{filepath.Join(t.TempDir(), "nope.toml")}
	cfg.Services["web"] = Service{Command: "sleep 1"}
	require.NoError(t, s.Save(cfg))

	got, err := s.Load()
	require.NoError(t, err)
	require.Contains(t, got.Services, "web")
}

func TestInheritMalformedFileFails(t *testing.T) {
	dir := t.TempDir()
	overlay := filepath.Join(dir, "overlay.toml")
	require.NoError(t, os.WriteFile(overlay, []byte("[[[broken"), 0o600))

	s := &Store{Path: filepath.Join(dir, "services.toml")}
	cfg := Default()
	cfg.Inherit = []string{overlay}
	require.NoError(t, s.Save(cfg))

	_, err := s.Load()
	require.ErrorIs(t, err, ErrParse)
}

func TestUpdatePersistsMutation(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.Update(func(cfg *Config) error {
		cfg.Services["web"] = Service{Command: "sleep 1"}
		return nil
	}))
	got, err := s.Load()
	require.NoError(t, err)
	require.Contains(t, got.Services, "web")
}

func TestUpdateErrorAbortsWrite(t *testing.T) {
	s := newStore(t)
	boom := errors.New("boom")
	err := s.Update(func(cfg *Config) error {
		cfg.Services["web"] = Service{Command: "sleep 1"}
		return boom
	})
	require.ErrorIs(t, err, boom)
	got, err := s.Load()
	require.NoError(t, err)
	require.NotContains(t, got.Services, "web")
}

func TestUpdateConcurrentNoLostWrites(t *testing.T) {
	s := newStore(t)
	const n = 8
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := s.Update(func(cfg *Config) error {
				cfg.States.Put(string(rune('a'+i)), Record{State: StateRunning, PID: i + 1})
				return nil
			})
			require.NoError(t, err)
		}(i)
	}
	wg.Wait()

	got, err := s.Load()
	require.NoError(t, err)
	require.Len(t, got.States, n)
}

func TestPinInstallsPrimary(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "mine.toml")
	require.NoError(t, os.WriteFile(source, []byte(`
[server]
port = 7100
key = "secret"

[services.db]
command = "sleep 60"
restart = true
`), 0o600))

	s := &Store{Path: filepath.Join(dir, "services.toml")}
	old := Default()
	old.Services["legacy"] = Service{Command: "sleep 1"}
	old.States.Put("legacy", Record{State: StateRunning, PID: 42})
	require.NoError(t, s.Save(old))

	require.NoError(t, s.Pin(source))

	got, err := s.Load()
	require.NoError(t, err)
	require.Contains(t, got.Services, "db")
	require.NotContains(t, got.Services, "legacy", "pin replaces the definition set wholesale")
	require.Equal(t, ServerConfig{Port: 7100, Key: "secret"}, got.Server)
	require.Empty(t, got.States, "pin resets the runtime state table")
}

func TestPinRejectsMalformedFile(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "mine.toml")
	require.NoError(t, os.WriteFile(source, []byte("not toml at all ["), 0o600))

	s := &Store{Path: filepath.Join(dir, "services.toml")}
	require.ErrorIs(t, s.Pin(source), ErrParse)
}

func TestStateTableOps(t *testing.T) {
	tbl := make(StateTable)
	_, ok := tbl.Get("web")
	require.False(t, ok)

	tbl.Put("web", Record{State: StateRunning, PID: 42})
	rec, ok := tbl.Get("web")
	require.True(t, ok)
	require.Equal(t, 42, rec.PID)

	tbl.Remove("web")
	_, ok = tbl.Get("web")
	require.False(t, ok)
}
