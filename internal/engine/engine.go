// Package engine holds the diagnostic session and exposes the query
// operations over it.
package engine

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/Dicklesworthstone/osdiag/internal/model"
	"github.com/Dicklesworthstone/osdiag/internal/scan"
	"github.com/Dicklesworthstone/osdiag/internal/source"
)

// Identity is the host detected when a session starts.
type Identity struct {
	OS              string    `json:"os"`
	Platform        string    `json:"platform"`
	PlatformVersion string    `json:"platform_version"`
	KernelVersion   string    `json:"kernel_version"`
	Arch            string    `json:"arch"`
	Hostname        string    `json:"hostname"`
	CPUModel        string    `json:"cpu_model"`
	BootTime        time.Time `json:"boot_time"`
	HomeDir         string    `json:"home_dir"`
	TempDir         string    `json:"temp_dir"`
}

type session struct {
	src source.Adapter
	id  Identity
}

// Options configures an Engine. Zero values select defaults.
type Options struct {
	// DiskPath is the filesystem scored as the primary disk.
	DiskPath     string
	ScanTimeout  time.Duration
	ScanMaxItems int
	Logger       hclog.Logger
	// NewAdapter builds the adapter for each new session.
	NewAdapter func() source.Adapter
}

// Engine is the single diagnostic session of a process. Every operation
// except Initialize fails with NotInitialized until a session exists.
//
// Operations hold the session lock shared; ResourceMonitor holds it for
// its whole window so re-initialization waits for it. sampleMu admits one
// monitor window at a time.
type Engine struct {
	mu       sync.RWMutex
	sess     *session
	sampleMu sync.Mutex

	opts Options
	log  hclog.Logger
	now  func() time.Time
}

func New(opts Options) *Engine {
	if opts.Logger == nil {
		opts.Logger = hclog.NewNullLogger()
	}
	if opts.NewAdapter == nil {
		opts.NewAdapter = source.Detect
	}
	if opts.ScanTimeout <= 0 {
		opts.ScanTimeout = scan.DefaultTimeout
	}
	if opts.ScanMaxItems <= 0 {
		opts.ScanMaxItems = scan.DefaultMaxItems
	}
	return &Engine{
		opts: opts,
		log:  opts.Logger.Named("engine"),
		now:  time.Now,
	}
}

// Initialize detects the OS and starts a session, replacing and closing
// any previous one.
func (e *Engine) Initialize(ctx context.Context) (Identity, error) {
	src := e.opts.NewAdapter()
	id := Identity{OS: src.Name()}
	if h, err := src.Host(ctx); err == nil {
		id.Platform, id.PlatformVersion = h.Platform, h.PlatformVersion
		id.KernelVersion, id.Arch = h.KernelVersion, h.Arch
		id.Hostname, id.BootTime = h.Hostname, h.BootTime
	} else {
		e.log.Warn("host identity unavailable", "error", err)
	}
	if c, err := src.CPU(ctx); err == nil {
		id.CPUModel = c.Model
	}
	id.HomeDir, _ = os.UserHomeDir()
	id.TempDir = os.TempDir()

	e.mu.Lock()
	old := e.sess
	e.sess = &session{src: src, id: id}
	e.mu.Unlock()

	if old != nil {
		if err := old.src.Close(); err != nil {
			e.log.Warn("closing previous adapter", "error", err)
		}
		e.log.Info("session replaced", "os", id.OS, "platform", id.Platform, "hostname", id.Hostname)
	} else {
		e.log.Info("session initialized", "os", id.OS, "platform", id.Platform, "hostname", id.Hostname)
	}
	return id, nil
}

// Initialized reports whether a session exists.
func (e *Engine) Initialized() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.sess != nil
}

// Identity returns the current session's host identity.
func (e *Engine) Identity() (Identity, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.sess == nil {
		return Identity{}, model.NotInitialized("identity")
	}
	return e.sess.id, nil
}

// Close ends the session.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sess == nil {
		return nil
	}
	err := e.sess.src.Close()
	e.sess = nil
	return err
}

// with runs fn under the shared session lock.
func (e *Engine) with(op string, fn func(s *session) error) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.sess == nil {
		return model.NotInitialized(op)
	}
	return fn(e.sess)
}

func (e *Engine) diskPath(s *session) string {
	if e.opts.DiskPath != "" {
		return e.opts.DiskPath
	}
	return source.DefaultDiskPath(s.src.Name())
}

func (e *Engine) logFailures(op string, fs []model.FieldError) {
	for _, f := range fs {
		e.log.Warn("partial failure", "op", op, "field", f.Field, "error", f.Message)
	}
}
