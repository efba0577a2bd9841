package engine

import (
	"context"
	"time"

	"github.com/Dicklesworthstone/osdiag/internal/diagnose"
	"github.com/Dicklesworthstone/osdiag/internal/health"
	"github.com/Dicklesworthstone/osdiag/internal/model"
	"github.com/Dicklesworthstone/osdiag/internal/procs"
	"github.com/Dicklesworthstone/osdiag/internal/sampler"
	"github.com/Dicklesworthstone/osdiag/internal/scan"
	"github.com/Dicklesworthstone/osdiag/internal/source"
)

// Operation names as exposed to callers.
const (
	OpInitialize         = "initialize"
	OpSystemOverview     = "system_overview"
	OpRunningProcesses   = "running_processes"
	OpPerformanceSummary = "performance_summary"
	OpNetworkInfo        = "network_info"
	OpDiskUsage          = "disk_usage"
	OpBatteryInfo        = "battery_info"
	OpTemperatureInfo    = "temperature_info"
	OpStartupPrograms    = "startup_programs"
	OpFindLargeFiles     = "find_large_files"
	OpSecurityStatus     = "security_status"
	OpResourceMonitor    = "resource_monitor"
	OpDiagnose           = "diagnose_slow_performance"
	OpUserInfo           = "user_info"
	OpPowerSettings      = "power_settings"
)

// Overview is a full snapshot with its health tiers.
type Overview struct {
	Identity Identity       `json:"identity"`
	Snapshot model.Snapshot `json:"snapshot"`
	Health   health.Result  `json:"health"`
}

func (e *Engine) SystemOverview(ctx context.Context) (Overview, error) {
	var out Overview
	err := e.with(OpSystemOverview, func(s *session) error {
		snap := source.Collect(ctx, s.src, e.diskPath(s))
		e.logFailures(OpSystemOverview, snap.Failures)
		out = Overview{Identity: s.id, Snapshot: snap, Health: health.Score(snap)}
		return nil
	})
	return out, err
}

func (e *Engine) RunningProcesses(ctx context.Context, limit int) (procs.Ranking, error) {
	var out procs.Ranking
	err := e.with(OpRunningProcesses, func(s *session) error {
		ps, err := s.src.Processes(ctx)
		if err != nil {
			return model.PartialFailure(OpRunningProcesses, err)
		}
		out = procs.Rank(ps, limit, e.now())
		return nil
	})
	return out, err
}

// Performance is the health score of the scored resources.
type Performance struct {
	Timestamp time.Time          `json:"timestamp"`
	CPU       model.CPU          `json:"cpu"`
	Memory    model.Memory       `json:"memory"`
	Disk      model.Mount        `json:"disk"`
	Health    health.Result      `json:"health"`
	Failures  []model.FieldError `json:"failures,omitempty"`
}

func (e *Engine) PerformanceSummary(ctx context.Context) (Performance, error) {
	var out Performance
	err := e.with(OpPerformanceSummary, func(s *session) error {
		snap := source.Collect(ctx, s.src, e.diskPath(s))
		e.logFailures(OpPerformanceSummary, snap.Failures)
		out = Performance{
			Timestamp: snap.Timestamp,
			CPU:       snap.CPU,
			Memory:    snap.Memory,
			Disk:      snap.Disk.Primary,
			Health:    health.Score(snap),
			Failures:  snap.Failures,
		}
		return nil
	})
	return out, err
}

// NetworkReport is interface state, counters, and a link health rating.
type NetworkReport struct {
	Network model.Network     `json:"network"`
	Tier    health.Tier       `json:"tier"`
	Message string            `json:"message,omitempty"`
	Failure *model.FieldError `json:"failure,omitempty"`
}

func (e *Engine) NetworkInfo(ctx context.Context) (NetworkReport, error) {
	var out NetworkReport
	err := e.with(OpNetworkInfo, func(s *session) error {
		n, err := s.src.Network(ctx)
		if err != nil {
			out.Failure = e.annotate(OpNetworkInfo, model.FieldNetwork, err)
			return nil
		}
		out.Network = source.Normalize(model.Snapshot{Network: n}).Network
		out.Tier, out.Message = health.NetworkTier(out.Network)
		return nil
	})
	return out, err
}

// MountUsage is one mount with its free-space tier.
type MountUsage struct {
	model.Mount
	FreePercent float64     `json:"free_percent"`
	Tier        health.Tier `json:"tier"`
}

// DiskReport lists every mount plus IO counters since boot.
type DiskReport struct {
	Path     string             `json:"path"`
	Primary  MountUsage         `json:"primary"`
	Mounts   []MountUsage       `json:"mounts"`
	IO       model.DiskIO       `json:"io"`
	IOStatus model.Availability `json:"io_status"`
	Failure  *model.FieldError  `json:"failure,omitempty"`
}

func usage(m model.Mount) MountUsage {
	u := MountUsage{Mount: m, FreePercent: m.FreePercent()}
	if m.Accessible && m.Total > 0 {
		u.Tier = health.DiskTier(u.FreePercent)
	}
	return u
}

func (e *Engine) DiskUsage(ctx context.Context) (DiskReport, error) {
	var out DiskReport
	err := e.with(OpDiskUsage, func(s *session) error {
		path := e.diskPath(s)
		d, err := s.src.Disk(ctx, path)
		if err != nil {
			out.Path = path
			out.Failure = e.annotate(OpDiskUsage, model.FieldDisk, err)
			return nil
		}
		d = source.Normalize(model.Snapshot{Disk: d}).Disk
		out = DiskReport{Path: d.Path, Primary: usage(d.Primary), IO: d.IO, IOStatus: d.IOStatus}
		for _, m := range d.Mounts {
			out.Mounts = append(out.Mounts, usage(m))
		}
		return nil
	})
	return out, err
}

// BatteryState describes what the battery is doing.
type BatteryState string

const (
	BatteryCharging    BatteryState = "Charging"
	BatteryFull        BatteryState = "Full"
	BatteryDischarging BatteryState = "Discharging"
	BatteryLow         BatteryState = "Low"
)

const lowBatteryPercent = 20

// StateOf classifies an available battery reading.
func StateOf(b model.Battery) BatteryState {
	switch {
	case b.Status != model.Available:
		return ""
	case b.Plugged && b.Percent >= 100:
		return BatteryFull
	case b.Plugged:
		return BatteryCharging
	case b.Percent < lowBatteryPercent:
		return BatteryLow
	}
	return BatteryDischarging
}

// BatteryReport is the battery reading, or a NotApplicable status.
type BatteryReport struct {
	Battery model.Battery     `json:"battery"`
	State   BatteryState      `json:"state,omitempty"`
	Failure *model.FieldError `json:"failure,omitempty"`
}

func (e *Engine) BatteryInfo(ctx context.Context) (BatteryReport, error) {
	var out BatteryReport
	err := e.with(OpBatteryInfo, func(s *session) error {
		out = e.battery(ctx, s, OpBatteryInfo)
		return nil
	})
	return out, err
}

func (e *Engine) battery(ctx context.Context, s *session, op string) BatteryReport {
	b, err := s.src.Battery(ctx)
	if err != nil {
		return BatteryReport{
			Battery: model.Battery{Status: model.Unavailable, SecondsLeft: model.BatteryTimeUnknown},
			Failure: e.annotate(op, model.FieldBattery, err),
		}
	}
	b = source.Normalize(model.Snapshot{Battery: b}).Battery
	return BatteryReport{Battery: b, State: StateOf(b)}
}

// SensorReading is one sensor with its thermal status.
type SensorReading struct {
	model.Sensor
	Status health.ThermalStatus `json:"status"`
}

// TemperatureReport lists every sensor, or an Unavailable status.
type TemperatureReport struct {
	Status  model.Availability `json:"status"`
	Sensors []SensorReading    `json:"sensors"`
	Failure *model.FieldError  `json:"failure,omitempty"`
}

func (e *Engine) TemperatureInfo(ctx context.Context) (TemperatureReport, error) {
	var out TemperatureReport
	err := e.with(OpTemperatureInfo, func(s *session) error {
		t, err := s.src.Temperature(ctx)
		if err != nil {
			out.Status = model.Unavailable
			out.Failure = e.annotate(OpTemperatureInfo, model.FieldTemperature, err)
			return nil
		}
		t = source.Normalize(model.Snapshot{Temperature: t}).Temperature
		out.Status = t.Status
		for _, sn := range t.Sensors {
			out.Sensors = append(out.Sensors, SensorReading{Sensor: sn, Status: health.SensorStatus(sn.Celsius)})
		}
		return nil
	})
	return out, err
}

func (e *Engine) StartupPrograms(ctx context.Context) (diagnose.StartupImpact, error) {
	var out diagnose.StartupImpact
	err := e.with(OpStartupPrograms, func(s *session) error {
		entries, err := s.src.StartupEntries(ctx)
		if err != nil {
			return model.PartialFailure(OpStartupPrograms, err)
		}
		out = diagnose.Startup(entries, e.now())
		return nil
	})
	return out, err
}

// FindArgs are the inputs of FindLargeFiles. Zero values select defaults.
type FindArgs struct {
	Directory string  `json:"directory"`
	MinSizeMB float64 `json:"min_size_mb"`
	Limit     int     `json:"limit"`
}

// FindLargeFiles scans without holding the session lock; the walk never
// touches the adapter.
func (e *Engine) FindLargeFiles(ctx context.Context, args FindArgs) (scan.Result, error) {
	if err := e.with(OpFindLargeFiles, func(*session) error { return nil }); err != nil {
		return scan.Result{}, err
	}
	s := scan.New()
	s.Logger = e.log.Named("scan")
	return s.Scan(scan.Options{
		Root:      args.Directory,
		MinSizeMB: args.MinSizeMB,
		Limit:     args.Limit,
		MaxItems:  e.opts.ScanMaxItems,
		Timeout:   e.opts.ScanTimeout,
	})
}

func (e *Engine) SecurityStatus(ctx context.Context) (diagnose.SecurityReport, error) {
	var out diagnose.SecurityReport
	err := e.with(OpSecurityStatus, func(s *session) error {
		ps, err := s.src.Processes(ctx)
		if err != nil {
			return model.PartialFailure(OpSecurityStatus, err)
		}
		var uptime time.Duration
		if h, err := s.src.Host(ctx); err == nil {
			uptime = h.Uptime
		}
		out = diagnose.Security(diagnose.SecurityInput{OS: s.src.Name(), Processes: ps, Uptime: uptime})
		return nil
	})
	return out, err
}

// ResourceMonitor blocks for the clamped interval. onSample, if non-nil,
// observes each gauge sample as it is taken. Concurrent calls run their
// windows one after another.
func (e *Engine) ResourceMonitor(ctx context.Context, intervalSeconds int, onSample func(sampler.GaugeSample)) (sampler.Report, error) {
	var out sampler.Report
	err := e.with(OpResourceMonitor, func(s *session) error {
		e.sampleMu.Lock()
		defer e.sampleMu.Unlock()
		sm := sampler.New(s.src, e.diskPath(s))
		sm.Logger = e.log.Named("sampler")
		sm.OnSample = onSample
		out = sm.Monitor(ctx, intervalSeconds)
		return nil
	})
	return out, err
}

func (e *Engine) DiagnoseSlowPerformance(ctx context.Context) (diagnose.Report, error) {
	var out diagnose.Report
	err := e.with(OpDiagnose, func(s *session) error {
		snap := source.Collect(ctx, s.src, e.diskPath(s))
		ps, err := s.src.Processes(ctx)
		if err != nil {
			snap.Failures = append(snap.Failures, model.Annotate(model.FieldProcesses, err))
		}
		var startup []model.ProcessInfo
		if boot := snap.Host.BootTime; !boot.IsZero() {
			startup = source.StartedWithin(ps, boot, source.StartupWindow)
		} else if err == nil {
			e.log.Warn("boot time unknown, skipping startup impact")
		}
		e.logFailures(OpDiagnose, snap.Failures)
		out = diagnose.Diagnose(diagnose.Input{
			Snapshot:  snap,
			Processes: ps,
			Startup:   startup,
			Now:       e.now(),
		})
		return nil
	})
	return out, err
}

func (e *Engine) annotate(op string, f model.Field, err error) *model.FieldError {
	fe := model.Annotate(f, err)
	e.logFailures(op, []model.FieldError{fe})
	return &fe
}
