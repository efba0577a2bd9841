// Package source reads host metrics through gopsutil and normalizes them
// into model.Snapshot values. One Adapter variant exists per OS family.
package source

import (
	"context"
	"runtime"

	"github.com/Dicklesworthstone/osdiag/internal/model"
)

// Adapter is the platform capability the engine reads metrics from.
// Reads return an Unavailable marker for features the platform lacks and
// an error only for genuine I/O failures.
type Adapter interface {
	Name() string
	Host(ctx context.Context) (model.Host, error)
	CPU(ctx context.Context) (model.CPU, error)
	Memory(ctx context.Context) (model.Memory, error)
	Disk(ctx context.Context, path string) (model.Disk, error)
	Network(ctx context.Context) (model.Network, error)
	Battery(ctx context.Context) (model.Battery, error)
	Temperature(ctx context.Context) (model.Temperature, error)
	Processes(ctx context.Context) ([]model.ProcessInfo, error)
	StartupEntries(ctx context.Context) ([]model.ProcessInfo, error)
	Users(ctx context.Context) (model.Users, error)
	CPUFreq(ctx context.Context) (model.CPUFreq, error)
	Close() error
}

// Linux reads batteries and thermal zones from sysfs.
type Linux struct{ *base }

// Darwin reads the battery through pmset.
type Darwin struct{ *base }

// Windows reads the battery through WMI via WMIC.
type Windows struct{ *base }

// New returns the variant for goos. Unix-likes other than darwin share the
// Linux variant.
func New(goos string) Adapter {
	switch goos {
	case "windows":
		return &Windows{newBase("windows")}
	case "darwin":
		return &Darwin{newBase("darwin")}
	default:
		return &Linux{newBase(goos)}
	}
}

// Detect returns the variant for the running OS.
func Detect() Adapter { return New(runtime.GOOS) }

// DefaultDiskPath is the filesystem scored as the primary disk on goos.
func DefaultDiskPath(goos string) string {
	if goos == "windows" {
		return `C:\`
	}
	return "/"
}

func (l *Linux) Battery(ctx context.Context) (model.Battery, error) {
	return readSysfsBattery(sysfsRoot)
}

func (l *Linux) Temperature(ctx context.Context) (model.Temperature, error) {
	t, err := l.sensors(ctx)
	if err != nil || t.Status == model.Available {
		return t, err
	}
	if zones := readThermalZones(sysfsRoot); len(zones) > 0 {
		return model.Temperature{Status: model.Available, Sensors: zones}, nil
	}
	return t, nil
}

// CPUFreq prefers the cpufreq range under sysfs over the cpuinfo clock.
func (l *Linux) CPUFreq(ctx context.Context) (model.CPUFreq, error) {
	if f := readCPUFreq(sysfsRoot); f.Status == model.Available {
		return f, nil
	}
	return l.base.CPUFreq(ctx)
}

func (d *Darwin) Battery(ctx context.Context) (model.Battery, error) {
	out, err := runCmd(ctx, cmdTimeout, "pmset", "-g", "batt")
	if err != nil {
		return model.Battery{Status: model.Unavailable, SecondsLeft: model.BatteryTimeUnknown}, nil
	}
	return parsePmset(out), nil
}

func (d *Darwin) Temperature(ctx context.Context) (model.Temperature, error) {
	return d.sensors(ctx)
}

func (w *Windows) Battery(ctx context.Context) (model.Battery, error) {
	out, err := runCmd(ctx, cmdTimeout, "WMIC", "Path", "Win32_Battery", "Get",
		"BatteryStatus,EstimatedChargeRemaining,EstimatedRunTime", "/Format:List")
	if err != nil {
		return model.Battery{Status: model.Unavailable, SecondsLeft: model.BatteryTimeUnknown}, nil
	}
	return parseWMICBattery(out), nil
}

func (w *Windows) Temperature(ctx context.Context) (model.Temperature, error) {
	return w.sensors(ctx)
}

// Users is unavailable on Windows: there is no utmp to enumerate.
func (w *Windows) Users(ctx context.Context) (model.Users, error) {
	return model.Users{Status: model.Unavailable}, nil
}
