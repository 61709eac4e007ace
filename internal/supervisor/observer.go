package supervisor

import (
	"time"

	"github.com/loykin/sproc/internal/config"
	"github.com/loykin/sproc/internal/history"
	"github.com/loykin/sproc/internal/metrics"
	"github.com/loykin/sproc/internal/proc"
)

// observe is the observation task bound to one running instance. It waits for
// the process to exit, clears the runtime record, and respawns the service
// when a freshly loaded configuration still calls for it. It loops so a
// respawned instance is observed by the same task.
func (s *Supervisor) observe(name string, inst *instance) {
	for {
		exitErr := s.waitExit(inst)
		s.untrack(name, inst)
		metrics.IncStop(name)
		s.emit(history.EventStop, name, inst.pid, exitErr)
		if exitErr != nil {
			s.logger.Warn("service exited", "service", name, "pid", inst.pid, "error", exitErr)
		} else {
			s.logger.Info("service exited", "service", name, "pid", inst.pid)
		}
		next, err := s.handleExit(name, inst)
		if err != nil {
			s.logger.Error("could not persist exit of service", "service", name, "pid", inst.pid, "error", err)
			return
		}
		if next == nil {
			return
		}
		s.track(name, next)
		metrics.IncRestart(name)
		s.emit(history.EventRestart, name, next.pid, nil)
		s.logger.Info("service restarted", "service", name, "pid", next.pid)
		inst = next
	}
}

// waitExit blocks until inst's process has exited. Instances spawned by this
// supervisor are reaped through the process handle; adopted ones are polled
// against the process table, corroborating identity on every probe.
func (s *Supervisor) waitExit(inst *instance) error {
	if inst.cmd != nil {
		return inst.cmd.Wait()
	}
	for {
		if !proc.Alive(inst.pid, inst.startedUnix) {
			return nil
		}
		time.Sleep(s.poll)
	}
}

// handleExit removes inst's runtime record and decides on a respawn, all in
// one persisted cycle. The decision is made against the configuration as it
// is NOW, not as it was at spawn time: a service removed from the definition
// table, a flipped restart flag, or a recorded stop intent all suppress the
// respawn. A non-nil instance is the replacement to observe next.
func (s *Supervisor) handleExit(name string, inst *instance) (*instance, error) {
	var next *instance
	err := s.store.Update(func(cfg *config.Config) error {
		rec, ok := cfg.States.Get(name)
		if !ok || rec.PID != inst.pid {
			// another invocation already replaced or cleared the record;
			// nothing here belongs to this instance anymore
			return nil
		}
		cfg.States.Remove(name)
		def, defined := cfg.Services[name]
		if !defined || !def.Restart || rec.StopRequested {
			return nil
		}
		i, err := spawn(cfg, name, def)
		if err != nil {
			// leave the service stopped but still persist the removal above
			s.logger.Error("respawn failed, service left stopped", "service", name, "error", err)
			return nil
		}
		next = i
		return nil
	})
	if err != nil {
		if next != nil {
			_ = proc.Kill(next.pid)
		}
		return nil, err
	}
	return next, nil
}
