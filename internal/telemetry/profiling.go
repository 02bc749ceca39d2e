package telemetry

import (
	"fmt"
	"runtime"
	"sort"
	"strings"

	"github.com/grafana/pyroscope-go"
)

// ProfilingConfig holds the Pyroscope continuous-profiling setup.
type ProfilingConfig struct {
	// Enabled turns profile collection on.
	Enabled bool

	// ServiceName and ServiceVersion identify this process in Pyroscope.
	ServiceName    string
	ServiceVersion string

	// Endpoint is the Pyroscope server URL, e.g. http://localhost:4040.
	Endpoint string

	// ProfileTypes selects what to collect; see profileCatalog for the
	// accepted names.
	ProfileTypes []string
}

// profileCatalog maps config names to Pyroscope profile types.
// runtimeRate, when non-nil, enables the runtime sampling that profile
// needs before collection can see anything.
var profileCatalog = map[string]struct {
	kind        pyroscope.ProfileType
	runtimeRate func()
}{
	"cpu":            {kind: pyroscope.ProfileCPU},
	"alloc_objects":  {kind: pyroscope.ProfileAllocObjects},
	"alloc_space":    {kind: pyroscope.ProfileAllocSpace},
	"inuse_objects":  {kind: pyroscope.ProfileInuseObjects},
	"inuse_space":    {kind: pyroscope.ProfileInuseSpace},
	"goroutines":     {kind: pyroscope.ProfileGoroutines},
	"mutex_count":    {kind: pyroscope.ProfileMutexCount, runtimeRate: func() { runtime.SetMutexProfileFraction(5) }},
	"mutex_duration": {kind: pyroscope.ProfileMutexDuration, runtimeRate: func() { runtime.SetMutexProfileFraction(5) }},
	"block_count":    {kind: pyroscope.ProfileBlockCount, runtimeRate: func() { runtime.SetBlockProfileRate(5) }},
	"block_duration": {kind: pyroscope.ProfileBlockDuration, runtimeRate: func() { runtime.SetBlockProfileRate(5) }},
}

var (
	profiler         *pyroscope.Profiler
	profilingEnabled bool
)

// InitProfiling starts the Pyroscope profiler. The returned shutdown
// stops collection; call it on process exit.
func InitProfiling(cfg ProfilingConfig) (func() error, error) {
	if !cfg.Enabled {
		profilingEnabled = false
		return func() error { return nil }, nil
	}

	kinds := make([]pyroscope.ProfileType, 0, len(cfg.ProfileTypes))
	for _, name := range cfg.ProfileTypes {
		entry, ok := profileCatalog[name]
		if !ok {
			return nil, fmt.Errorf("unknown profile type %q (accepted: %s)", name, catalogNames())
		}
		if entry.runtimeRate != nil {
			entry.runtimeRate()
		}
		kinds = append(kinds, entry.kind)
	}

	started, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: cfg.ServiceName,
		ServerAddress:   cfg.Endpoint,
		Tags:            map[string]string{"version": cfg.ServiceVersion},
		ProfileTypes:    kinds,
	})
	if err != nil {
		return nil, fmt.Errorf("start pyroscope profiler: %w", err)
	}

	profiler = started
	profilingEnabled = true

	return func() error {
		if profiler == nil {
			return nil
		}
		return profiler.Stop()
	}, nil
}

// IsProfilingEnabled reports whether profile collection is active.
func IsProfilingEnabled() bool {
	return profilingEnabled
}

func catalogNames() string {
	names := make([]string, 0, len(profileCatalog))
	for name := range profileCatalog {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
