// Package config holds the engine's startup configuration: the PIC width,
// worker pool size, cancellation grace window, and safepoint granularity.
// It is loaded once at process start and threaded explicitly into the
// engine constructor — no subsystem reads global config state directly.
package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/driftlang/drift/internal/dispatch"
)

// Config is the engine's startup configuration.
type Config struct {
	PICWidth                int           `yaml:"pic_width"`
	WorkerPoolSize          int           `yaml:"worker_pool_size"`
	CancellationGraceWindow time.Duration `yaml:"cancellation_grace_window"`
	SafepointEveryNNodes    int           `yaml:"safepoint_every_n_nodes"`
}

// Default returns the hardcoded defaults used when no config file is
// present.
func Default() Config {
	return Config{
		PICWidth:                dispatch.DefaultWidth,
		WorkerPoolSize:          4,
		CancellationGraceWindow: 2 * time.Second,
		SafepointEveryNNodes:    1,
	}
}

// Load reads a YAML config file at path, falling back to Default for any
// field the file leaves unset. A missing file is not an error — it is
// equivalent to an empty file, which yields the bare defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return Config{}, err
	}

	var overlay struct {
		PICWidth                  *int   `yaml:"pic_width"`
		WorkerPoolSize            *int   `yaml:"worker_pool_size"`
		CancellationGraceWindowMS *int64 `yaml:"cancellation_grace_window_ms"`
		SafepointEveryNNodes      *int   `yaml:"safepoint_every_n_nodes"`
	}
	if err := yaml.Unmarshal(raw, &overlay); err != nil {
		return Config{}, err
	}

	if overlay.PICWidth != nil {
		cfg.PICWidth = *overlay.PICWidth
	}
	if overlay.WorkerPoolSize != nil {
		cfg.WorkerPoolSize = *overlay.WorkerPoolSize
	}
	if overlay.CancellationGraceWindowMS != nil {
		cfg.CancellationGraceWindow = time.Duration(*overlay.CancellationGraceWindowMS) * time.Millisecond
	}
	if overlay.SafepointEveryNNodes != nil {
		cfg.SafepointEveryNNodes = *overlay.SafepointEveryNNodes
	}

	return cfg, nil
}
