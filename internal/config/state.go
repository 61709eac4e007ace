package config

// State is the persisted runtime state of a service.
type State string

const (
	StateStopped State = "stopped"
	StateRunning State = "running"
)

// Record is the persisted fact that a service is currently believed running.
// It exists only while the service is in StateRunning.
type Record struct {
	State State `toml:"state"`
	PID   int   `toml:"pid"`
	// StartedUnix is the Unix start time of the spawned process, recorded so
	// later PID lookups can be corroborated against identifier reuse.
	StartedUnix int64 `toml:"started_unix"`
	// StopRequested marks an in-flight explicit stop. The observation task
	// treats a set marker as "do not respawn" regardless of the declared
	// restart policy, which is never mutated by a stop.
	StopRequested bool `toml:"stop_requested,omitempty"`
}

// StateTable maps service name to its runtime record. It is embedded in the
// Config aggregate; persistence is the caller's responsibility via Store.
type StateTable map[string]Record

func (t StateTable) Get(name string) (Record, bool) {
	rec, ok := t[name]
	return rec, ok
}

func (t StateTable) Put(name string, rec Record) { t[name] = rec }

func (t StateTable) Remove(name string) { delete(t, name) }
