package model

import (
	"math"
	"time"
)

// Availability separates a real reading from a subsystem the platform
// does not expose and from hardware that is simply absent.
type Availability string

const (
	Available     Availability = "available"
	Unavailable   Availability = "unavailable"
	NotApplicable Availability = "not_applicable"
)

// Host identifies the machine the snapshot was taken on.
type Host struct {
	Hostname        string        `json:"hostname"`
	OS              string        `json:"os"`
	Platform        string        `json:"platform"`
	PlatformVersion string        `json:"platform_version"`
	KernelVersion   string        `json:"kernel_version"`
	Arch            string        `json:"arch"`
	BootTime        time.Time     `json:"boot_time"`
	Uptime          time.Duration `json:"uptime"`
}

// CPU aggregates instantaneous CPU usage.
type CPU struct {
	Usage      float64      `json:"usage_percent"`    // percent 0-100
	PerCore    []float64    `json:"per_core_percent"` // per-core percent
	Model      string       `json:"model"`
	FreqMHz    float64      `json:"freq_mhz"`
	Logical    int          `json:"logical_cores"`
	Physical   int          `json:"physical_cores"`
	Load1      float64      `json:"load1"`
	Load5      float64      `json:"load5"`
	Load15     float64      `json:"load15"`
	LoadStatus Availability `json:"load_status"`
}

// Memory captures RAM and swap usage in bytes for precision.
type Memory struct {
	Total       uint64  `json:"total"`
	Used        uint64  `json:"used"`
	Available   uint64  `json:"available"`
	UsedPercent float64 `json:"used_percent"`
	SwapTotal   uint64  `json:"swap_total"`
	SwapUsed    uint64  `json:"swap_used"`
	SwapPercent float64 `json:"swap_percent"`
}

// Mount is the usage of one mounted filesystem.
type Mount struct {
	Device      string  `json:"device"`
	Mountpoint  string  `json:"mountpoint"`
	FSType      string  `json:"fstype"`
	Total       uint64  `json:"total"`
	Used        uint64  `json:"used"`
	Free        uint64  `json:"free"`
	UsedPercent float64 `json:"used_percent"`
	Accessible  bool    `json:"accessible"`
}

// FreePercent is the share of the mount still writable by users.
func (m Mount) FreePercent() float64 {
	if m.Total == 0 {
		return 0
	}
	return ClampPercent(100 - m.UsedPercent)
}

// DiskIO holds block-device counters since boot.
type DiskIO struct {
	ReadBytes  uint64 `json:"read_bytes"`
	WriteBytes uint64 `json:"write_bytes"`
	ReadCount  uint64 `json:"read_count"`
	WriteCount uint64 `json:"write_count"`
}

// Disk describes the queried path's filesystem plus every other mount.
type Disk struct {
	Path     string       `json:"path"`
	Primary  Mount        `json:"primary"`
	Mounts   []Mount      `json:"mounts"`
	IO       DiskIO       `json:"io"`
	IOStatus Availability `json:"io_status"`
}

// Interface is a network interface and its link state.
type Interface struct {
	Name     string   `json:"name"`
	Up       bool     `json:"up"`
	Loopback bool     `json:"loopback"`
	Addrs    []string `json:"addrs"`
}

// Network holds interface state and counters since boot.
type Network struct {
	Interfaces        []Interface  `json:"interfaces"`
	BytesSent         uint64       `json:"bytes_sent"`
	BytesRecv         uint64       `json:"bytes_recv"`
	PacketsSent       uint64       `json:"packets_sent"`
	PacketsRecv       uint64       `json:"packets_recv"`
	ErrIn             uint64       `json:"err_in"`
	ErrOut            uint64       `json:"err_out"`
	Connections       int          `json:"connections"`
	ConnectionsStatus Availability `json:"connections_status"`
}

// Battery time sentinels for SecondsLeft.
const (
	BatteryTimeUnknown   int64 = -1
	BatteryTimeUnlimited int64 = -2
)

// Battery shows power state. Status is NotApplicable on machines without one.
type Battery struct {
	Status      Availability `json:"status"`
	Percent     float64      `json:"percent"`
	Plugged     bool         `json:"plugged"`
	SecondsLeft int64        `json:"seconds_left"`
}

// Sensor is a thermal sensor reading.
type Sensor struct {
	Label    string  `json:"label"`
	Celsius  float64 `json:"celsius"`
	High     float64 `json:"high,omitempty"`
	Critical float64 `json:"critical,omitempty"`
}

// Temperature is every readable sensor, or Unavailable.
type Temperature struct {
	Status  Availability `json:"status"`
	Sensors []Sensor     `json:"sensors"`
}

// Snapshot is one normalized point-in-time reading of every subsystem.
// Fields listed in Failures could not be read and hold zero values.
type Snapshot struct {
	Timestamp   time.Time    `json:"timestamp"`
	Host        Host         `json:"host"`
	CPU         CPU          `json:"cpu"`
	Memory      Memory       `json:"memory"`
	Disk        Disk         `json:"disk"`
	Network     Network      `json:"network"`
	Battery     Battery      `json:"battery"`
	Temperature Temperature  `json:"temperature"`
	Failures    []FieldError `json:"failures,omitempty"`
}

// Failed reports whether field could not be read for this snapshot.
func (s Snapshot) Failed(f Field) bool {
	for _, fe := range s.Failures {
		if fe.Field == f {
			return true
		}
	}
	return false
}

// ClampPercent forces v into [0,100]. NaN becomes 0.
func ClampPercent(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 100:
		return 100
	}
	return v
}

// Percent returns part/total as a clamped percentage.
func Percent(part, total uint64) float64 {
	if total == 0 {
		return 0
	}
	return ClampPercent(float64(part) * 100 / float64(total))
}

// UserSession is one logged-in session.
type UserSession struct {
	User     string    `json:"user"`
	Terminal string    `json:"terminal"`
	Host     string    `json:"host"`
	Started  time.Time `json:"started"`
}

// Users lists the logged-in sessions, or an Unavailable status where the
// platform cannot enumerate them.
type Users struct {
	Status   Availability  `json:"status"`
	Sessions []UserSession `json:"sessions"`
}

// CPUFreq is the current clock against the hardware range, in MHz.
// MinMHz and MaxMHz are zero when the platform does not report them.
type CPUFreq struct {
	Status     Availability `json:"status"`
	CurrentMHz float64      `json:"current_mhz"`
	MinMHz     float64      `json:"min_mhz,omitempty"`
	MaxMHz     float64      `json:"max_mhz,omitempty"`
}
