// Package supervisor owns the start/kill/info state machine for services and
// is the only component that spawns or signals OS processes. All persisted
// state flows through the config store's exclusive read-modify-write cycle,
// so independent invocations (one-shot CLI commands, a serve daemon) never
// clobber each other.
package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"sync"
	"time"

	"github.com/loykin/sproc/internal/config"
	"github.com/loykin/sproc/internal/env"
	"github.com/loykin/sproc/internal/history"
	"github.com/loykin/sproc/internal/metrics"
	"github.com/loykin/sproc/internal/proc"
)

// Options tune the bounded waits of the supervisor.
type Options struct {
	// Grace is how long Kill waits after signalling termination so the
	// observation task can see the exit and the stop intent. Default 1s.
	Grace time.Duration
	// Poll is the probe interval when observing an instance spawned by a
	// different invocation. Default 500ms.
	Poll time.Duration
}

// Supervisor coordinates service lifecycles over a shared config store.
type Supervisor struct {
	store  *config.Store
	logger *slog.Logger
	grace  time.Duration
	poll   time.Duration

	mu    sync.Mutex
	live  map[string]*instance
	sinks []history.Sink

	reconStop chan struct{}
}

// instance is one spawned (or adopted) run of a service. cmd is non-nil only
// for processes this supervisor spawned itself; adopted instances are
// observed through the process table instead.
type instance struct {
	pid         int
	startedUnix int64
	cmd         *exec.Cmd
}

func New(store *config.Store, logger *slog.Logger, opts Options) *Supervisor {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Grace <= 0 {
		opts.Grace = time.Second
	}
	if opts.Poll <= 0 {
		opts.Poll = 500 * time.Millisecond
	}
	return &Supervisor{
		store:  store,
		logger: logger,
		grace:  opts.Grace,
		poll:   opts.Poll,
		live:   make(map[string]*instance),
	}
}

// SetHistorySinks configures lifecycle event sinks. Passing none clears them.
func (s *Supervisor) SetHistorySinks(sinks ...history.Sink) {
	s.mu.Lock()
	s.sinks = append([]history.Sink(nil), sinks...)
	s.mu.Unlock()
}

// Start spawns the named service and launches its observation task. It
// returns as soon as the process is created and the runtime record is
// persisted; it does not wait for the child's own initialization.
func (s *Supervisor) Start(name string) error {
	var inst *instance
	err := s.store.Update(func(cfg *config.Config) error {
		def, ok := cfg.Services[name]
		if !ok {
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		if rec, ok := cfg.States.Get(name); ok && rec.State == config.StateRunning {
			if proc.Alive(rec.PID, rec.StartedUnix) {
				return fmt.Errorf("%w: %s (pid %d)", ErrAlreadyRunning, name, rec.PID)
			}
			// stale record left behind by a previous owner; reclaim it
			cfg.States.Remove(name)
		}
		i, err := spawn(cfg, name, def)
		if err != nil {
			return err
		}
		inst = i
		return nil
	})
	if err != nil {
		if inst != nil {
			// spawned but the record could not be persisted; do not leak the child
			_ = proc.Kill(inst.pid)
		}
		return err
	}
	s.track(name, inst)
	metrics.IncStart(name)
	s.emit(history.EventStart, name, inst.pid, nil)
	s.logger.Info("service started", "service", name, "pid", inst.pid)
	go s.observe(name, inst)
	return nil
}

// Kill stops the named service. The stop intent is persisted before the
// process is signalled, which orders it before any restart decision the
// observation task makes: the task always re-reads configuration at exit
// time. The declared restart policy is never touched. Confirmation beyond the
// grace interval is eventually consistent.
func (s *Supervisor) Kill(name string) error {
	var pid int
	err := s.store.Update(func(cfg *config.Config) error {
		if _, ok := cfg.Services[name]; !ok {
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		rec, ok := cfg.States.Get(name)
		if !ok || rec.State != config.StateRunning {
			return fmt.Errorf("%w: %s", ErrNotRunning, name)
		}
		if !proc.Alive(rec.PID, rec.StartedUnix) {
			return fmt.Errorf("%w: %s (pid %d)", ErrProcessLookup, name, rec.PID)
		}
		rec.StopRequested = true
		cfg.States.Put(name, rec)
		pid = rec.PID
		return nil
	})
	if err != nil {
		return err
	}
	if err := proc.Terminate(pid); err != nil {
		return fmt.Errorf("%w: %s (pid %d): %v", ErrProcessLookup, name, pid, err)
	}
	time.Sleep(s.grace)
	// when no observation task was resident for this instance, clear the
	// record ourselves once the process is verifiably gone
	return s.store.Update(func(cfg *config.Config) error {
		if rec, ok := cfg.States.Get(name); ok && rec.PID == pid && !proc.Alive(rec.PID, rec.StartedUnix) {
			cfg.States.Remove(name)
		}
		return nil
	})
}

// Info returns a live snapshot of the named service's process. It reads the
// configuration fresh and mutates nothing.
func (s *Supervisor) Info(name string) (proc.Snapshot, error) {
	cfg, err := s.store.Load()
	if err != nil {
		return proc.Snapshot{}, err
	}
	if _, ok := cfg.Services[name]; !ok {
		return proc.Snapshot{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	rec, ok := cfg.States.Get(name)
	if !ok || rec.State != config.StateRunning {
		return proc.Snapshot{}, fmt.Errorf("%w: %s", ErrNotRunning, name)
	}
	if !proc.Alive(rec.PID, rec.StartedUnix) {
		return proc.Snapshot{}, fmt.Errorf("%w: %s (pid %d)", ErrProcessLookup, name, rec.PID)
	}
	snap, err := proc.Inspect(name, rec.PID)
	if err != nil {
		return proc.Snapshot{}, fmt.Errorf("%w: %s (pid %d): %v", ErrProcessLookup, name, rec.PID, err)
	}
	return snap, nil
}

// spawn starts the process for def and records it in cfg. The caller is
// inside a store Update, so the record is persisted together with any other
// mutation of the same cycle.
func spawn(cfg *config.Config, name string, def config.Service) (*instance, error) {
	cmd, err := proc.Spawn(def.Command, def.WorkingDirectory, env.Merge(def.Environment))
	if err != nil {
		return nil, err
	}
	pid := cmd.Process.Pid
	started := proc.StartTimeUnix(pid)
	cfg.States.Put(name, config.Record{State: config.StateRunning, PID: pid, StartedUnix: started})
	return &instance{pid: pid, startedUnix: started, cmd: cmd}, nil
}

func (s *Supervisor) track(name string, inst *instance) {
	s.mu.Lock()
	s.live[name] = inst
	s.mu.Unlock()
}

func (s *Supervisor) trackIfAbsent(name string, inst *instance) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.live[name]; ok {
		return false
	}
	s.live[name] = inst
	return true
}

func (s *Supervisor) untrack(name string, inst *instance) {
	s.mu.Lock()
	if s.live[name] == inst {
		delete(s.live, name)
	}
	s.mu.Unlock()
}

func (s *Supervisor) owns(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.live[name]
	return ok
}

func (s *Supervisor) emit(t history.EventType, name string, pid int, exitErr error) {
	s.mu.Lock()
	sinks := append([]history.Sink(nil), s.sinks...)
	s.mu.Unlock()
	if len(sinks) == 0 {
		return
	}
	e := history.Event{Type: t, Service: name, PID: pid, OccurredAt: time.Now().UTC()}
	if exitErr != nil {
		e.ExitError = exitErr.Error()
	}
	for _, sink := range sinks {
		if err := sink.Send(context.Background(), e); err != nil {
			s.logger.Warn("history sink send failed", "sink", fmt.Sprintf("%T", sink), "error", err)
		}
	}
}
