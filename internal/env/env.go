package env

import (
	"os"
	"strings"
)

// Merge composes the environment for a spawned service: the supervisor's own
// environment is the base, with the definition's overrides applied on top.
// The result is in "K=V" form suitable for exec.Cmd.Env.
func Merge(overrides map[string]string) []string {
	m := make(map[string]string)
	for _, kv := range os.Environ() {
		if i := strings.IndexByte(kv, '='); i >= 0 {
			k := kv[:i]
			if k == "" {
				continue
			}
			m[k] = kv[i+1:]
		}
	}
	for k, v := range overrides {
		if k == "" {
			continue
		}
		m[k] = v
	}
	out := make([]string, 0, len(m))
	for k, v := range m {
		out = append(out, k+"="+v)
	}
	return out
}
