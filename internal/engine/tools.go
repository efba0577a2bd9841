package engine

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnknownTool is returned by Call for a name no operation has.
var ErrUnknownTool = errors.New("unknown tool")

// Args is the union of every operation's arguments. Each operation reads
// only the fields it lists in its Tool.Params.
type Args struct {
	Limit           int     `json:"limit,omitempty"`
	Directory       string  `json:"directory,omitempty"`
	MinSizeMB       float64 `json:"min_size_mb,omitempty"`
	IntervalSeconds int     `json:"interval_seconds,omitempty"`
}

// Tool describes one callable operation.
type Tool struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Params      []string `json:"params,omitempty"`
}

var tools = []Tool{
	{OpInitialize, "Detect the operating system and start a diagnostic session", nil},
	{OpSystemOverview, "Full snapshot of every subsystem with health tiers", nil},
	{OpRunningProcesses, "Running processes by memory use, categorized", []string{"limit"}},
	{OpPerformanceSummary, "Health score for CPU, memory, and disk with recommendations", nil},
	{OpNetworkInfo, "Network interfaces, traffic totals, and connection count", nil},
	{OpDiskUsage, "Usage of every mounted filesystem and disk IO totals", nil},
	{OpBatteryInfo, "Battery charge, power source, and time remaining", nil},
	{OpTemperatureInfo, "Thermal sensor readings", nil},
	{OpStartupPrograms, "Programs started with the system and their memory impact", nil},
	{OpFindLargeFiles, "Largest files under a directory (bounded scan)", []string{"directory", "min_size_mb", "limit"}},
	{OpSecurityStatus, "Running security software and basic posture checks", nil},
	{OpResourceMonitor, "Sample CPU, memory, network, and disk over an interval", []string{"interval_seconds"}},
	{OpDiagnose, "Find performance bottlenecks and suggest fixes", nil},
	{OpUserInfo, "Current user, logged-in sessions, and process environment", nil},
	{OpPowerSettings, "Power source, CPU power state, and where to change power settings", nil},
}

// Tools lists every operation in a stable order.
func Tools() []Tool {
	out := make([]Tool, len(tools))
	copy(out, tools)
	return out
}

// Call runs the named operation.
func (e *Engine) Call(ctx context.Context, name string, args Args) (any, error) {
	switch name {
	case OpInitialize:
		return e.Initialize(ctx)
	case OpSystemOverview:
		return e.SystemOverview(ctx)
	case OpRunningProcesses:
		return e.RunningProcesses(ctx, args.Limit)
	case OpPerformanceSummary:
		return e.PerformanceSummary(ctx)
	case OpNetworkInfo:
		return e.NetworkInfo(ctx)
	case OpDiskUsage:
		return e.DiskUsage(ctx)
	case OpBatteryInfo:
		return e.BatteryInfo(ctx)
	case OpTemperatureInfo:
		return e.TemperatureInfo(ctx)
	case OpStartupPrograms:
		return e.StartupPrograms(ctx)
	case OpFindLargeFiles:
		return e.FindLargeFiles(ctx, FindArgs{Directory: args.Directory, MinSizeMB: args.MinSizeMB, Limit: args.Limit})
	case OpSecurityStatus:
		return e.SecurityStatus(ctx)
	case OpResourceMonitor:
		return e.ResourceMonitor(ctx, args.IntervalSeconds, nil)
	case OpDiagnose:
		return e.DiagnoseSlowPerformance(ctx)
	case OpUserInfo:
		return e.UserInfo(ctx)
	case OpPowerSettings:
		return e.PowerSettings(ctx)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownTool, name)
}
