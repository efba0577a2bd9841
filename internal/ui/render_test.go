package ui

import (
	"strings"
	"testing"
	"time"

	"github.com/Dicklesworthstone/osdiag/internal/diagnose"
	"github.com/Dicklesworthstone/osdiag/internal/engine"
	"github.com/Dicklesworthstone/osdiag/internal/health"
	"github.com/Dicklesworthstone/osdiag/internal/model"
	"github.com/Dicklesworthstone/osdiag/internal/procs"
	"github.com/Dicklesworthstone/osdiag/internal/sampler"
	"github.com/Dicklesworthstone/osdiag/internal/scan"
)

func snapshot() model.Snapshot {
	return model.Snapshot{
		Timestamp: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Host:      model.Host{Hostname: "box", OS: "linux"},
		CPU:       model.CPU{Usage: 91},
		Memory:    model.Memory{Total: 16 << 30, Used: 8 << 30, UsedPercent: 50},
		Disk:      model.Disk{Primary: model.Mount{Mountpoint: "/", Total: 100 << 30, Free: 40 << 30, UsedPercent: 60, Accessible: true}},
		Battery:   model.Battery{Status: model.Available, Percent: 80, Plugged: true},
	}
}

func TestRender(t *testing.T) {
	snap := snapshot()
	score := health.Score(snap)
	rec := model.ProcessRecord{PID: 42, Name: "firefox", Category: model.CategoryBrowser, Memory: 512 << 20, CPU: 63}
	fail := &model.FieldError{Field: model.FieldNetwork, Message: "permission denied"}

	tests := []struct {
		name string
		op   string
		v    any
		want []string
	}{
		{"identity", engine.OpInitialize, engine.Identity{OS: "linux", Hostname: "box", CPUModel: "Xeon"}, []string{"initialize", "box", "Xeon"}},
		{"overview", engine.OpSystemOverview, engine.Overview{Snapshot: snap, Health: score}, []string{"system overview", "CPU", "Battery", "plugged in", string(score.Tier)}},
		{"processes", engine.OpRunningProcesses, procs.Ranking{Total: 3, Records: []model.ProcessRecord{rec}, Counts: []procs.CategoryCount{{Category: model.CategoryBrowser, Count: 1}}}, []string{"3 running", "firefox", "512.0 MiB"}},
		{"performance", engine.OpPerformanceSummary, engine.Performance{Health: score, Failures: []model.FieldError{*fail}}, []string{"overall", "network: permission denied"}},
		{"network failure", engine.OpNetworkInfo, engine.NetworkReport{Failure: fail}, []string{"network unreadable"}},
		{"network", engine.OpNetworkInfo, engine.NetworkReport{Network: model.Network{Interfaces: []model.Interface{{Name: "eth0", Up: true, Addrs: []string{"10.0.0.2/24"}}}}, Tier: health.Good}, []string{"eth0", "up", "10.0.0.2/24", "n/a"}},
		{"disk", engine.OpDiskUsage, engine.DiskReport{Path: "/", Primary: engine.MountUsage{FreePercent: 40, Tier: health.Good}, Mounts: []engine.MountUsage{{Mount: model.Mount{Mountpoint: "/", FSType: "ext4", Accessible: true}}, {Mount: model.Mount{Mountpoint: "/mnt/nfs"}}}}, []string{"40% free", "ext4", "inaccessible"}},
		{"no battery", engine.OpBatteryInfo, engine.BatteryReport{Battery: model.Battery{Status: model.NotApplicable}}, []string{"no battery"}},
		{"battery", engine.OpBatteryInfo, engine.BatteryReport{Battery: model.Battery{Status: model.Available, Percent: 15, SecondsLeft: 1800}, State: engine.StateOf(model.Battery{Status: model.Available, Percent: 15})}, []string{"on battery", "30m0s", string(engine.BatteryLow)}},
		{"temperature", engine.OpTemperatureInfo, engine.TemperatureReport{Status: model.Available, Sensors: []engine.SensorReading{{Sensor: model.Sensor{Label: "coretemp", Celsius: 72}, Status: health.Hot}}}, []string{"coretemp", "72.0", "Hot"}},
		{"no sensors", engine.OpTemperatureInfo, engine.TemperatureReport{Status: model.Unavailable}, []string{"no readable sensors"}},
		{"startup", engine.OpStartupPrograms, diagnose.StartupImpact{Count: 1, Memory: 1 << 20, Load: diagnose.StartupLight, Records: []model.ProcessRecord{rec}}, []string{"programs", "firefox", string(diagnose.StartupLight)}},
		{"scan", engine.OpFindLargeFiles, scan.Result{Root: "/data", Entries: []scan.Entry{{Path: "/data/disk.img", Size: 2 << 30}}, Truncated: true, Reasons: []scan.Reason{scan.ReasonDepth}}, []string{"/data/disk.img", "2.0 GiB", "truncated: " + string(scan.ReasonDepth)}},
		{"empty scan", engine.OpFindLargeFiles, scan.Result{Root: "/data", MinSize: 100 << 20}, []string{"no files of 100.0 MiB or more"}},
		{"security", engine.OpSecurityStatus, diagnose.SecurityReport{Score: 80, Tier: diagnose.SecurityGood, Software: []string{"clamd"}, Recommendations: []string{"Restart your computer"}}, []string{"score 80/100", "clamd", "Restart your computer"}},
		{"monitor", engine.OpResourceMonitor, sampler.Report{CPU: sampler.Gauge{Status: model.Available, Average: 12.5, Peak: 30, Trend: []sampler.TrendPoint{{Index: 1, Value: 30, Bar: sampler.Bar(30)}}}, NetSent: sampler.Rate{Status: model.Available, PerSecond: 2048}}, []string{"avg 12.5%", "peak 30.0%", "Memory unavailable", "2.0 KiB/s"}},
		{"diagnosis", engine.OpDiagnose, diagnose.Report{Snapshot: snap, Health: score, Bottlenecks: []diagnose.Bottleneck{{Resource: health.CPU, Tier: health.Critical}}, Issues: []string{"High CPU usage"}, Heavy: []model.ProcessRecord{rec}}, []string{"bottlenecks: CPU", "High CPU usage", "Resource-heavy", "firefox"}},
		{"healthy diagnosis", engine.OpDiagnose, diagnose.Report{Snapshot: snap, Health: score}, []string{"no bottleneck"}},
		{"users", engine.OpUserInfo, engine.UserReport{Current: engine.CurrentUser{Username: "ana", UID: "1000", GID: "1000"}, SessionsStatus: model.Available, Sessions: diagnose.GroupSessions([]model.UserSession{{User: "ana", Terminal: "pts/0"}})}, []string{"user info", "ana", "1000/1000", "ana (1)", "pts/0 from local"}},
		{"no sessions", engine.OpUserInfo, engine.UserReport{SessionsStatus: model.Unavailable}, []string{"cannot be listed"}},
		{"power", engine.OpPowerSettings, engine.PowerReport{Battery: engine.BatteryReport{Battery: model.Battery{Status: model.NotApplicable}}, PowerProfile: diagnose.Power("linux", model.CPUFreq{Status: model.Available, CurrentMHz: 3500, MinMHz: 400, MaxMHz: 3600})}, []string{"no battery", "clock 3500 MHz (400-3600 MHz)", string(diagnose.HighPerformance), "powertop"}},
		{"other", "custom", 7, []string{"custom", "7"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Render(tt.op, tt.v)
			for _, w := range tt.want {
				if !strings.Contains(got, w) {
					t.Errorf("missing %q in\n%s", w, got)
				}
			}
		})
	}
}

func TestHumanBytes(t *testing.T) {
	tests := []struct {
		in   uint64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{5 << 30, "5.0 GiB"},
	}
	for _, tt := range tests {
		if got := humanBytes(tt.in); got != tt.want {
			t.Errorf("humanBytes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestGaugeBar(t *testing.T) {
	if got, want := gaugeBar(50, 10), "[█████░░░░░]  50.0%"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if got, want := gaugeBar(140, 4), "[████] 100.0%"; got != want {
		t.Errorf("clamped: got %q, want %q", got, want)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("got %q", got)
	}
	if got := truncate("résumé-builder", 6); got != "résum…" {
		t.Errorf("got %q", got)
	}
}

func TestTimeLeft(t *testing.T) {
	if got := timeLeft(model.BatteryTimeUnlimited); got != "unlimited" {
		t.Errorf("got %q", got)
	}
	if got := timeLeft(model.BatteryTimeUnknown); got != "unknown" {
		t.Errorf("got %q", got)
	}
	if got := timeLeft(3700); got != "1h1m40s" {
		t.Errorf("got %q", got)
	}
}
