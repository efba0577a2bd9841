// Package health scores a snapshot into per-resource tiers, an overall
// score, advisories, and recommendations. Score is a pure function.
//
// A value exactly on a breakpoint belongs to the healthier tier: memory at
// 60% used is Excellent, at 80% Good, at 90% Warning.
package health

import (
	"fmt"
	"sort"

	"github.com/Dicklesworthstone/osdiag/internal/model"
)

// Tier is the health classification of a score.
type Tier string

const (
	Excellent Tier = "Excellent"
	Good      Tier = "Good"
	Warning   Tier = "Warning"
	Critical  Tier = "Critical"
)

// severity orders tiers from healthiest to worst.
func (t Tier) severity() int {
	switch t {
	case Good:
		return 1
	case Warning:
		return 2
	case Critical:
		return 3
	}
	return 0
}

// AtLeast reports whether t is as bad as or worse than o.
func (t Tier) AtLeast(o Tier) bool { return t.severity() >= o.severity() }

// Resource names a scored or advisory subsystem.
type Resource string

const (
	CPU         Resource = "CPU"
	Memory      Resource = "Memory"
	Disk        Resource = "Disk"
	Network     Resource = "Network"
	Battery     Resource = "Battery"
	Temperature Resource = "Temperature"
	Swap        Resource = "Swap"
)

// Fixed scoring configuration.
const (
	WeightCPU    = 0.3
	WeightMemory = 0.4
	WeightDisk   = 0.3

	ScoreExcellent = 100
	ScoreGood      = 80
	ScoreWarning   = 50
	ScoreCritical  = 20

	hotAdvisoryC = 80
)

// breakpoints holds the three thresholds between the four tiers, ordered
// from healthiest to worst.
type breakpoints [3]float64

var (
	// Percent used; higher is worse.
	cpuBreaks    = breakpoints{70, 85, 95}
	memoryBreaks = breakpoints{60, 80, 90}
	// Percent free; lower is worse.
	diskBreaks = breakpoints{20, 10, 5}
)

var tierScores = map[Tier]int{
	Excellent: ScoreExcellent,
	Good:      ScoreGood,
	Warning:   ScoreWarning,
	Critical:  ScoreCritical,
}

// usageTier maps a used-percentage onto a tier.
func usageTier(v float64, b breakpoints) Tier {
	switch {
	case v <= b[0]:
		return Excellent
	case v <= b[1]:
		return Good
	case v <= b[2]:
		return Warning
	}
	return Critical
}

// freeTier maps a free-percentage onto a tier.
func freeTier(v float64, b breakpoints) Tier {
	switch {
	case v >= b[0]:
		return Excellent
	case v >= b[1]:
		return Good
	case v >= b[2]:
		return Warning
	}
	return Critical
}

// CPUTier classifies CPU usage percent.
func CPUTier(usage float64) Tier { return usageTier(usage, cpuBreaks) }

// MemoryTier classifies memory-used percent.
func MemoryTier(used float64) Tier { return usageTier(used, memoryBreaks) }

// DiskTier classifies disk free-space percent.
func DiskTier(free float64) Tier { return freeTier(free, diskBreaks) }

// ScoreFor is the component score of a tier.
func ScoreFor(t Tier) int { return tierScores[t] }

// OverallTier classifies a weighted overall score.
func OverallTier(score float64) Tier {
	switch {
	case score >= 90:
		return Excellent
	case score >= 70:
		return Good
	case score >= 40:
		return Warning
	}
	return Critical
}

// Component is the score of one resource.
type Component struct {
	Resource Resource `json:"resource"`
	Value    float64  `json:"value"` // the percentage the tier was derived from
	Score    int      `json:"score"`
	Tier     Tier     `json:"tier"`
	Known    bool     `json:"known"` // false when the reading failed
}

// Advisory flags a resource that does not feed the overall score.
type Advisory struct {
	Resource Resource `json:"resource"`
	Tier     Tier     `json:"tier"`
	Message  string   `json:"message"`
}

// Result is the outcome of scoring one snapshot.
type Result struct {
	CPU             Component  `json:"cpu"`
	Memory          Component  `json:"memory"`
	Disk            Component  `json:"disk"`
	Overall         float64    `json:"overall"`
	Tier            Tier       `json:"tier"`
	Advisories      []Advisory `json:"advisories"`
	Recommendations []string   `json:"recommendations"`
}

// Components returns the scored components in fixed priority order.
func (r Result) Components() []Component {
	return []Component{r.CPU, r.Memory, r.Disk}
}

// Score rates snap. Components whose reading failed are left out of the
// overall score and the remaining weights are renormalized.
func Score(snap model.Snapshot) Result {
	var r Result

	r.CPU = component(CPU, snap.CPU.Usage, CPUTier, !snap.Failed(model.FieldCPU))
	r.Memory = component(Memory, snap.Memory.UsedPercent, MemoryTier, !snap.Failed(model.FieldMemory))
	r.Disk = component(Disk, snap.Disk.Primary.FreePercent(), DiskTier,
		!snap.Failed(model.FieldDisk) && snap.Disk.Primary.Total > 0)

	var sum, weights float64
	for _, w := range []struct {
		c      Component
		weight float64
	}{{r.CPU, WeightCPU}, {r.Memory, WeightMemory}, {r.Disk, WeightDisk}} {
		if !w.c.Known {
			continue
		}
		sum += float64(w.c.Score) * w.weight
		weights += w.weight
	}
	if weights > 0 {
		r.Overall = sum / weights
	}
	r.Tier = OverallTier(r.Overall)
	if weights == 0 {
		r.Tier = Critical
	}

	r.Recommendations = recommend(r.Components())
	r.Advisories = advise(snap)
	return r
}

func component(res Resource, v float64, classify func(float64) Tier, known bool) Component {
	if !known {
		return Component{Resource: res}
	}
	t := classify(v)
	return Component{Resource: res, Value: v, Score: ScoreFor(t), Tier: t, Known: true}
}

type recKey struct {
	res  Resource
	tier Tier
}

var recommendations = map[recKey]string{
	{CPU, Warning}:     "CPU usage is high: close unused applications and check for busy background processes",
	{CPU, Critical}:    "CPU is saturated: identify the top CPU consumers and stop or restart runaway processes",
	{Memory, Warning}:  "Memory is running low: close unnecessary browser tabs and idle applications",
	{Memory, Critical}: "Memory is critically low: close memory-intensive applications or consider adding RAM",
	{Disk, Warning}:    "Disk space is low: run a disk cleanup and remove large unused files",
	{Disk, Critical}:   "Disk is almost full: delete unnecessary files immediately or move data to external storage",
}

// recommend emits one template per Warning/Critical component, worst tier
// first, then CPU, Memory, Disk.
func recommend(cs []Component) []string {
	triggered := make([]Component, 0, len(cs))
	for _, c := range cs {
		if c.Known && c.Tier.AtLeast(Warning) {
			triggered = append(triggered, c)
		}
	}
	sort.SliceStable(triggered, func(i, j int) bool {
		return triggered[i].Tier.severity() > triggered[j].Tier.severity()
	})
	out := make([]string, 0, len(triggered))
	for _, c := range triggered {
		out = append(out, recommendations[recKey{c.Resource, c.Tier}])
	}
	return out
}

func advise(snap model.Snapshot) []Advisory {
	var out []Advisory
	if t, msg := NetworkTier(snap.Network); t.AtLeast(Warning) && !snap.Failed(model.FieldNetwork) {
		out = append(out, Advisory{Network, t, msg})
	}
	if snap.Memory.SwapTotal > 0 && snap.Memory.SwapPercent > 50 {
		out = append(out, Advisory{Swap, Warning, fmt.Sprintf("heavy swap usage (%.0f%%): add RAM to reduce swapping", snap.Memory.SwapPercent)})
	}
	if snap.CPU.LoadStatus == model.Available && snap.CPU.Logical > 0 {
		if per := snap.CPU.Load1 / float64(snap.CPU.Logical); per > 1 {
			out = append(out, Advisory{CPU, Warning, fmt.Sprintf("load average %.2f per core: more work queued than cores available", per)})
		}
	}
	if b := snap.Battery; b.Status == model.Available && !b.Plugged {
		switch {
		case b.Percent < 10:
			out = append(out, Advisory{Battery, Critical, "battery critically low: plug in immediately"})
		case b.Percent < 20:
			out = append(out, Advisory{Battery, Warning, "battery low: plug in your charger soon"})
		}
	}
	if snap.Temperature.Status == model.Available {
		hottest := 0.0
		for _, s := range snap.Temperature.Sensors {
			if s.Celsius > hottest {
				hottest = s.Celsius
			}
		}
		switch {
		case SensorStatus(hottest) == VeryHot:
			out = append(out, Advisory{Temperature, Critical, fmt.Sprintf("very high system temperature (%.0f°C): reduce load and clean vents", hottest)})
		case hottest > hotAdvisoryC:
			out = append(out, Advisory{Temperature, Warning, fmt.Sprintf("high system temperature (%.0f°C): check cooling", hottest)})
		}
	}
	return out
}

// NetworkTier rates link state and packet errors. With no non-loopback
// interface up the host is offline.
func NetworkTier(n model.Network) (Tier, string) {
	if len(n.Interfaces) > 0 {
		up := false
		for _, i := range n.Interfaces {
			if i.Up && !i.Loopback {
				up = true
				break
			}
		}
		if !up {
			return Critical, "no network interface is up"
		}
	}
	packets := n.PacketsSent + n.PacketsRecv
	errs := n.ErrIn + n.ErrOut
	if packets > 0 && float64(errs)/float64(packets) > 0.01 {
		return Warning, fmt.Sprintf("%d packet errors (%.1f%% of traffic)", errs, float64(errs)*100/float64(packets))
	}
	return Excellent, ""
}

// ThermalStatus describes one sensor reading.
type ThermalStatus string

const (
	Cool    ThermalStatus = "Cool"
	Warm    ThermalStatus = "Warm"
	Hot     ThermalStatus = "Hot"
	VeryHot ThermalStatus = "VeryHot"
)

// SensorStatus classifies degrees Celsius.
func SensorStatus(c float64) ThermalStatus {
	switch {
	case c < 50:
		return Cool
	case c < 70:
		return Warm
	case c < 85:
		return Hot
	}
	return VeryHot
}
