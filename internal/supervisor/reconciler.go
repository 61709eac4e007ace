package supervisor

import (
	"time"

	"github.com/loykin/sproc/internal/config"
	"github.com/loykin/sproc/internal/proc"
)

// Reconcile walks the persisted runtime records and brings this supervisor's
// view in line with reality: records whose process is gone (or belongs to a
// different process after pid reuse) are removed, and records whose process
// is alive but unobserved get an observation task attached. A daemon calls
// this once at startup and then periodically via StartReconciler.
func (s *Supervisor) Reconcile() error {
	adopted := make(map[string]*instance)
	err := s.store.Update(func(cfg *config.Config) error {
		for name, rec := range cfg.States {
			if s.owns(name) {
				continue
			}
			if rec.State != config.StateRunning || !proc.Alive(rec.PID, rec.StartedUnix) {
				s.logger.Warn("removing stale runtime record", "service", name, "pid", rec.PID)
				cfg.States.Remove(name)
				continue
			}
			adopted[name] = &instance{pid: rec.PID, startedUnix: rec.StartedUnix}
		}
		return nil
	})
	if err != nil {
		return err
	}
	for name, inst := range adopted {
		if s.trackIfAbsent(name, inst) {
			s.logger.Info("attached to running service", "service", name, "pid", inst.pid)
			go s.observe(name, inst)
		}
	}
	return nil
}

// StartReconciler runs Reconcile every interval until StopReconciler.
func (s *Supervisor) StartReconciler(interval time.Duration) {
	s.mu.Lock()
	if s.reconStop != nil {
		s.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	s.reconStop = stop
	s.mu.Unlock()

	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-stop:
				return
			case <-t.C:
				if err := s.Reconcile(); err != nil {
					s.logger.Warn("reconcile pass failed", "error", err)
				}
			}
		}
	}()
}

func (s *Supervisor) StopReconciler() {
	s.mu.Lock()
	if s.reconStop != nil {
		close(s.reconStop)
		s.reconStop = nil
	}
	s.mu.Unlock()
}
