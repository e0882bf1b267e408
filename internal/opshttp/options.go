package opshttp

import (
	"net/http"

	"github.com/keithlinneman/docsite/internal/health"
)

// Options configures the ops listener. The zero value serves health and
// readiness on port 9000 with both probes passing.
type Options struct {
	Port    int
	Metrics http.Handler // mounted at /metrics when set

	// EnablePprof mounts the chi profiler under /debug.
	EnablePprof bool

	Health    health.Probe
	Readiness health.Probe

	UseRecoverMW bool
	OnPanic      func()
}
