package core

import (
	"fmt"
	"path/filepath"

	"github.com/caarlos0/env/v11"
)

const (
	// ICUDataName is the ICU data file looked up next to the executable.
	ICUDataName = "icudtl.dat"
	// SnapshotBlobName is the startup snapshot looked up next to the executable.
	SnapshotBlobName = "snapshot_blob.bin"
)

// PlatformConfig holds process-wide engine configuration.
type PlatformConfig struct {
	Flags         []string `env:"V8HOST_FLAGS"           envSeparator:" "`
	ICUDataFile   string   `env:"V8HOST_ICU_DATA"`
	SnapshotFile  string   `env:"V8HOST_SNAPSHOT_BLOB"`
	MemoryLimitMB int      `env:"V8HOST_MEMORY_LIMIT_MB"`
}

// IsolateConfig holds per-isolate settings derived from the platform.
type IsolateConfig struct {
	MemoryLimitMB int // heap limit per isolate (QuickJS: per VM); 0 = unlimited
}

// LoadPlatformConfig reads PlatformConfig from the environment and fills
// resource locations relative to argv0 when they are not set explicitly.
func LoadPlatformConfig(argv0 string) (PlatformConfig, error) {
	var cfg PlatformConfig
	if err := env.Parse(&cfg); err != nil {
		return PlatformConfig{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.MemoryLimitMB < 0 {
		return PlatformConfig{}, fmt.Errorf("V8HOST_MEMORY_LIMIT_MB must not be negative, got %d", cfg.MemoryLimitMB)
	}
	dir := ResourceDir(argv0)
	if cfg.ICUDataFile == "" {
		cfg.ICUDataFile = filepath.Join(dir, ICUDataName)
	}
	if cfg.SnapshotFile == "" {
		cfg.SnapshotFile = filepath.Join(dir, SnapshotBlobName)
	}
	return cfg, nil
}

// ResourceDir returns the directory engine data files are resolved
// against: the directory containing argv0, or "." when argv0 is a bare
// name.
func ResourceDir(argv0 string) string {
	if argv0 == "" {
		return "."
	}
	return filepath.Dir(argv0)
}

// Isolate derives the per-isolate settings.
func (c PlatformConfig) Isolate() IsolateConfig {
	return IsolateConfig{MemoryLimitMB: c.MemoryLimitMB}
}
