// Package diagnose composes a snapshot, its health score, and the process
// list into the "why is it slow" report.
package diagnose

import (
	"fmt"
	"sort"
	"time"

	"github.com/Dicklesworthstone/osdiag/internal/health"
	"github.com/Dicklesworthstone/osdiag/internal/model"
	"github.com/Dicklesworthstone/osdiag/internal/procs"
)

const (
	DefaultTopN = 5
	// HeavyN bounds the resource-heavy process list.
	HeavyN = 5

	manyStartup    = 50
	staleUptime    = 30 * 24 * time.Hour
	runawayCPU     = 50
	heavySwapPct   = 50
	moderateStartN = 20
	highStartN     = 40
)

// Priority is the order bottlenecks are reported in, most actionable first.
var Priority = []health.Resource{health.Memory, health.CPU, health.Disk, health.Network}

// Verdict distinguishes "nothing wrong" from an empty result.
type Verdict string

const (
	NoBottleneck    Verdict = "no_bottleneck"
	BottleneckFound Verdict = "bottleneck"
)

// Bottleneck is one resource at Warning or worse.
type Bottleneck struct {
	Resource health.Resource `json:"resource"`
	Tier     health.Tier     `json:"tier"`
	Detail   string          `json:"detail"`
}

// StartupLoad rates how many programs launch with the system.
type StartupLoad string

const (
	StartupLight    StartupLoad = "Good"
	StartupModerate StartupLoad = "Moderate"
	StartupHigh     StartupLoad = "High"
)

// LoadFor rates a startup program count.
func LoadFor(n int) StartupLoad {
	switch {
	case n < moderateStartN:
		return StartupLight
	case n < highStartN:
		return StartupModerate
	}
	return StartupHigh
}

// StartupImpact summarizes the auto-started processes.
type StartupImpact struct {
	Count   int                   `json:"count"`
	Memory  uint64                `json:"memory_bytes"`
	Load    StartupLoad           `json:"load"`
	Counts  []procs.CategoryCount `json:"counts"`
	Records []model.ProcessRecord `json:"records"`
}

// Startup categorizes auto-started processes, largest memory first.
func Startup(entries []model.ProcessInfo, now time.Time) StartupImpact {
	records := make([]model.ProcessRecord, 0, len(entries))
	var mem uint64
	for _, p := range entries {
		rec := procs.Record(p, now)
		rec.AutoStart = true
		mem += rec.Memory
		records = append(records, rec)
	}
	sort.SliceStable(records, func(i, j int) bool { return records[i].Memory > records[j].Memory })
	return StartupImpact{
		Count:   len(records),
		Memory:  mem,
		Load:    LoadFor(len(records)),
		Counts:  procs.Count(records),
		Records: records,
	}
}

// Input is everything one diagnosis reads.
type Input struct {
	Snapshot  model.Snapshot
	Processes []model.ProcessInfo
	Startup   []model.ProcessInfo
	Now       time.Time
	TopN      int
}

// Report is the composite diagnosis.
type Report struct {
	Timestamp       time.Time             `json:"timestamp"`
	Snapshot        model.Snapshot        `json:"snapshot"`
	Health          health.Result         `json:"health"`
	Verdict         Verdict               `json:"verdict"`
	Bottlenecks     []Bottleneck          `json:"bottlenecks"`
	TopProcesses    []model.ProcessRecord `json:"top_processes"`
	Heavy           []model.ProcessRecord `json:"heavy_processes"`
	Startup         StartupImpact         `json:"startup"`
	Uptime          time.Duration         `json:"uptime"`
	Issues          []string              `json:"issues"`
	Recommendations []string              `json:"recommendations"`
}

// Top returns the highest-priority bottleneck, if any.
func (r Report) Top() (Bottleneck, bool) {
	if len(r.Bottlenecks) == 0 {
		return Bottleneck{}, false
	}
	return r.Bottlenecks[0], true
}

// Diagnose builds the report. It is deterministic for a given Input.
func Diagnose(in Input) Report {
	snap := in.Snapshot
	topN := in.TopN
	if topN <= 0 {
		topN = DefaultTopN
	}
	r := Report{
		Timestamp: in.Now,
		Snapshot:  snap,
		Health:    health.Score(snap),
		Uptime:    snap.Host.Uptime,
	}

	r.Bottlenecks = bottlenecks(snap, r.Health)
	r.Verdict = NoBottleneck
	if len(r.Bottlenecks) > 0 {
		r.Verdict = BottleneckFound
	}
	for _, b := range r.Bottlenecks {
		r.Issues = append(r.Issues, b.Detail)
	}

	ranked := procs.Rank(in.Processes, topN, in.Now)
	r.TopProcesses = ranked.Records
	all := make([]model.ProcessRecord, len(in.Processes))
	for i, p := range in.Processes {
		all[i] = procs.Record(p, in.Now)
	}
	r.Heavy = procs.Heavy(all, HeavyN)
	r.Startup = Startup(in.Startup, in.Now)

	r.Recommendations = append(r.Recommendations, r.Health.Recommendations...)
	if len(r.Heavy) > 0 && r.Heavy[0].CPU > runawayCPU {
		name := r.Heavy[0].Name
		r.Issues = append(r.Issues, fmt.Sprintf("%s is using excessive CPU (%.0f%%)", name, r.Heavy[0].CPU))
		r.Recommendations = append(r.Recommendations, fmt.Sprintf("Check whether %s is responding properly", name))
	}
	if snap.Memory.SwapTotal > 0 && snap.Memory.SwapPercent > heavySwapPct {
		r.Issues = append(r.Issues, "Heavy swap usage")
		r.Recommendations = append(r.Recommendations, "Add more RAM to reduce swap usage")
	}
	if r.Startup.Count > manyStartup {
		r.Issues = append(r.Issues, "Too many startup programs")
		r.Recommendations = append(r.Recommendations, "Disable unnecessary startup programs")
	}
	if r.Uptime > staleUptime {
		r.Recommendations = append(r.Recommendations, "Restart your computer to apply updates and clear memory")
	}
	return r
}

func bottlenecks(snap model.Snapshot, h health.Result) []Bottleneck {
	found := map[health.Resource]Bottleneck{}
	for _, c := range h.Components() {
		if c.Known && c.Tier.AtLeast(health.Warning) {
			found[c.Resource] = Bottleneck{c.Resource, c.Tier, detail(c)}
		}
	}
	if !snap.Failed(model.FieldNetwork) {
		if t, msg := health.NetworkTier(snap.Network); t.AtLeast(health.Warning) {
			found[health.Network] = Bottleneck{health.Network, t, "Network: " + msg}
		}
	}
	var out []Bottleneck
	for _, res := range Priority {
		if b, ok := found[res]; ok {
			out = append(out, b)
		}
	}
	return out
}

func detail(c health.Component) string {
	switch c.Resource {
	case health.Memory:
		return fmt.Sprintf("Memory is %.0f%% used (%s)", c.Value, c.Tier)
	case health.CPU:
		return fmt.Sprintf("CPU is %.0f%% busy (%s)", c.Value, c.Tier)
	case health.Disk:
		return fmt.Sprintf("Disk has %.0f%% free space (%s)", c.Value, c.Tier)
	}
	return fmt.Sprintf("%s is %s", c.Resource, c.Tier)
}
