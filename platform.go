package v8host

import (
	"slices"
	"sync"
	"sync/atomic"

	"github.com/cryguy/v8host/internal/core"
	"go.uber.org/zap"
)

// PlatformInfo describes the initialized platform.
type PlatformInfo struct {
	Backend       string   // "v8" or "quickjs"
	ResourceDir   string   // directory derived from argv0
	ICUDataFile   string   // ICU data location
	SnapshotFile  string   // startup snapshot location
	Flags         []string // engine flags applied at init
	MemoryLimitMB int      // per-isolate heap limit, 0 = unlimited
}

// Option adjusts platform initialization. Options only take effect on the
// first Init call of the process.
type Option func(*initOptions)

type initOptions struct {
	flags         []string
	memoryLimitMB *int
	logger        *zap.Logger
}

// WithFlags sets the engine flags, replacing V8HOST_FLAGS.
func WithFlags(flags ...string) Option {
	return func(o *initOptions) { o.flags = flags }
}

// WithMemoryLimit sets the per-isolate heap limit in megabytes, replacing
// V8HOST_MEMORY_LIMIT_MB.
func WithMemoryLimit(mb int) Option {
	return func(o *initOptions) { o.memoryLimitMB = &mb }
}

// WithLogger installs l as the package logger before initializing.
func WithLogger(l *zap.Logger) Option {
	return func(o *initOptions) { o.logger = l }
}

// platform is the process-wide engine state. It is written once by Init
// and only read afterwards.
type platform struct {
	once    sync.Once
	ready   atomic.Bool
	backend core.Backend
	config  core.PlatformConfig
	info    PlatformInfo
}

var globalPlatform atomic.Pointer[platform]

func init() {
	globalPlatform.Store(newPlatform(newBackend()))
}

func newPlatform(b core.Backend) *platform {
	return &platform{backend: b}
}

// Init initializes the engine platform. argv0 is normally os.Args[0]; ICU
// data and the startup snapshot are looked up next to it unless
// V8HOST_ICU_DATA / V8HOST_SNAPSHOT_BLOB say otherwise.
//
// Init must run before NewIsolate. Only the first call does anything;
// later calls return immediately, concurrent calls wait for the first. If
// initialization fails the failure is logged and NewIsolate keeps
// returning nil.
func Init(argv0 string, opts ...Option) {
	p := globalPlatform.Load()
	p.once.Do(func() { p.initialize(argv0, opts) })
}

// Initialized reports whether Init completed successfully.
func Initialized() bool {
	return globalPlatform.Load().ready.Load()
}

// Platform returns the platform description, or the zero value before a
// successful Init.
func Platform() PlatformInfo {
	p := globalPlatform.Load()
	if !p.ready.Load() {
		return PlatformInfo{}
	}
	info := p.info
	info.Flags = slices.Clone(p.info.Flags)
	return info
}

func (p *platform) initialize(argv0 string, opts []Option) {
	var o initOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger != nil {
		SetLogger(o.logger)
	}
	log := Logger()

	cfg, err := core.LoadPlatformConfig(argv0)
	if err != nil {
		log.Error("loading platform config", zap.Error(err))
		return
	}
	if o.flags != nil {
		cfg.Flags = slices.Clone(o.flags)
	}
	if o.memoryLimitMB != nil {
		cfg.MemoryLimitMB = max(*o.memoryLimitMB, 0)
	}

	if err := p.backend.Initialize(cfg); err != nil {
		log.Error("initializing engine platform",
			zap.String("backend", p.backend.Name()),
			zap.Error(err))
		return
	}

	p.config = cfg
	p.info = PlatformInfo{
		Backend:       p.backend.Name(),
		ResourceDir:   core.ResourceDir(argv0),
		ICUDataFile:   cfg.ICUDataFile,
		SnapshotFile:  cfg.SnapshotFile,
		Flags:         cfg.Flags,
		MemoryLimitMB: cfg.MemoryLimitMB,
	}
	p.ready.Store(true)

	log.Debug("platform initialized",
		zap.String("backend", p.info.Backend),
		zap.String("icu_data", cfg.ICUDataFile),
		zap.String("snapshot", cfg.SnapshotFile),
		zap.Strings("flags", cfg.Flags),
		zap.Int("memory_limit_mb", cfg.MemoryLimitMB))
}
