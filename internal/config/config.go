package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/google/renameio/v2"
	"github.com/pelletier/go-toml/v2"
)

// DefaultPort is the control server port used when the config does not set one.
const DefaultPort = 6374

var (
	// ErrParse indicates the persisted configuration is present but malformed.
	ErrParse = errors.New("malformed configuration")
	// ErrIO indicates a filesystem failure while reading or writing the configuration.
	ErrIO = errors.New("configuration io failure")
)

// Service is a single supervised service definition.
type Service struct {
	// Command is split into program and arguments on whitespace; no quoting.
	Command          string            `toml:"command"`
	WorkingDirectory string            `toml:"working_directory"`
	Environment      map[string]string `toml:"environment,omitempty"`
	// Restart asks the supervisor to respawn the service when it exits.
	Restart bool `toml:"restart"`
}

// ServerConfig holds settings for the HTTP control server.
type ServerConfig struct {
	Port int    `toml:"port"`
	Key  string `toml:"key"`
}

// Config is the full persisted aggregate: service definitions, control server
// settings, and the runtime state table. It is always read, mutated, and
// written back as a whole.
type Config struct {
	// Inherit lists additional definition files overlaid onto Services at load
	// time, in order. On a name collision the inherited definition wins.
	Inherit  []string           `toml:"inherit,omitempty"`
	Services map[string]Service `toml:"services"`
	Server   ServerConfig       `toml:"server"`
	// States is owned by the supervisor at runtime and is normally absent from
	// hand-edited files.
	States StateTable `toml:"states,omitempty"`
}

// Default returns an empty configuration with server defaults applied.
func Default() *Config {
	return &Config{
		Services: make(map[string]Service),
		Server:   ServerConfig{Port: DefaultPort},
		States:   make(StateTable),
	}
}

func (c *Config) normalize() {
	if c.Services == nil {
		c.Services = make(map[string]Service)
	}
	if c.States == nil {
		c.States = make(StateTable)
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
}

// Store loads and persists the configuration file. All mutations must go
// through Update so that independent invocations (one-shot CLI commands and a
// long-running serve daemon) never interleave read-modify-write cycles.
type Store struct {
	Path string
}

// DefaultStore resolves the per-user configuration path
// ($HOME/.config/sproc/services.toml). It fails when the home directory
// environment variable is unset.
func DefaultStore() (*Store, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}
	return &Store{Path: filepath.Join(home, ".config", "sproc", "services.toml")}, nil
}

// Load reads the primary file and applies inherited files in order, each
// overlaying its services onto the accumulated set. A missing primary file
// yields the default empty configuration.
func (s *Store) Load() (*Config, error) {
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o750); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	b, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	cfg, err := parse(b, s.Path)
	if err != nil {
		return nil, err
	}
	for _, path := range cfg.Inherit {
		ib, err := os.ReadFile(path)
		if err != nil {
			// unreadable inherited files are skipped, matching pin-and-forget
			// usage where an overlay may not exist on every host
			continue
		}
		inherited, err := parse(ib, path)
		if err != nil {
			return nil, err
		}
		for name, def := range inherited.Services {
			cfg.Services[name] = def
		}
	}
	return cfg, nil
}

// Save serializes the full aggregate, including the runtime state table, and
// atomically replaces the primary file.
func (s *Store) Save(cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o750); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	body, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	data := append([]byte(header), body...)
	if err := renameio.WriteFile(s.Path, data, 0o600); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	return nil
}

const header = "# Maintained by sproc. Edit a source file and run `sproc pin <path>` instead.\n"

// Update performs one exclusive read-modify-write cycle: it takes a file lock
// shared with every other sproc invocation, loads a fresh configuration,
// applies fn, and writes the result back atomically. When fn returns an error
// nothing is persisted.
func (s *Store) Update(fn func(*Config) error) error {
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o750); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	fl := flock.New(s.Path + ".lock")
	if err := fl.Lock(); err != nil {
		return fmt.Errorf("%w: lock %s: %v", ErrIO, fl.Path(), err)
	}
	defer func() { _ = fl.Unlock() }()

	cfg, err := s.Load()
	if err != nil {
		return err
	}
	if err := fn(cfg); err != nil {
		return err
	}
	return s.Save(cfg)
}

// Pin installs the hand-edited file at source as the primary configuration:
// its inherit list, service definitions, and server settings replace the
// current ones wholesale. The runtime state table is reset; a later reconcile
// pass sorts out whatever is actually running.
func (s *Store) Pin(source string) error {
	abs, err := filepath.Abs(source)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	b, err := os.ReadFile(abs) // #nosec G304 -- user-supplied source file
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	pinned, err := parse(b, abs)
	if err != nil {
		return err
	}
	return s.Update(func(cfg *Config) error {
		cfg.Inherit = pinned.Inherit
		cfg.Services = pinned.Services
		cfg.Server = pinned.Server
		cfg.States = make(StateTable)
		return nil
	})
}

func parse(b []byte, path string) (*Config, error) {
	var cfg Config
	if err := toml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrParse, path, err)
	}
	cfg.normalize()
	return &cfg, nil
}
