package source

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Dicklesworthstone/osdiag/internal/model"
)

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestReadSysfsBattery(t *testing.T) {
	root := t.TempDir()
	bat := filepath.Join(root, "class", "power_supply", "BAT0")
	writeFile(t, filepath.Join(bat, "capacity"), "42\n")
	writeFile(t, filepath.Join(bat, "status"), "Discharging\n")
	writeFile(t, filepath.Join(bat, "energy_now"), "20000000\n")
	writeFile(t, filepath.Join(bat, "power_now"), "10000000\n")

	b, err := readSysfsBattery(root)
	if err != nil {
		t.Fatal(err)
	}
	want := model.Battery{Status: model.Available, Percent: 42, Plugged: false, SecondsLeft: 7200}
	if b != want {
		t.Errorf("got %+v, want %+v", b, want)
	}
}

func TestReadSysfsBatteryAbsent(t *testing.T) {
	b, err := readSysfsBattery(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if b.Status != model.NotApplicable {
		t.Errorf("status: got %q, want not_applicable", b.Status)
	}
}

func TestReadCPUFreq(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "devices", "system", "cpu", "cpu0", "cpufreq")
	writeFile(t, filepath.Join(dir, "scaling_cur_freq"), "1200000\n")
	writeFile(t, filepath.Join(dir, "cpuinfo_min_freq"), "400000\n")
	writeFile(t, filepath.Join(dir, "cpuinfo_max_freq"), "3600000\n")

	want := model.CPUFreq{Status: model.Available, CurrentMHz: 1200, MinMHz: 400, MaxMHz: 3600}
	if got := readCPUFreq(root); got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
	if got := readCPUFreq(t.TempDir()); got.Status != model.Unavailable {
		t.Errorf("no cpufreq: got %+v", got)
	}
}

func TestReadThermalZones(t *testing.T) {
	root := t.TempDir()
	zone := filepath.Join(root, "class", "thermal", "thermal_zone0")
	writeFile(t, filepath.Join(zone, "temp"), "47500\n")
	writeFile(t, filepath.Join(zone, "type"), "x86_pkg_temp\n")
	writeFile(t, filepath.Join(root, "class", "thermal", "thermal_zone1", "temp"), "0\n")

	got := readThermalZones(root)
	if len(got) != 1 {
		t.Fatalf("got %d sensors, want 1", len(got))
	}
	if got[0].Label != "thermal_zone0/x86_pkg_temp" || got[0].Celsius != 47.5 {
		t.Errorf("got %+v", got[0])
	}
}

func TestParsePmset(t *testing.T) {
	tests := []struct {
		name string
		out  string
		want model.Battery
	}{
		{
			name: "discharging",
			out: "Now drawing from 'Battery Power'\n" +
				" -InternalBattery-0 (id=4653155)\t85%; discharging; 4:20 remaining present: true\n",
			want: model.Battery{Status: model.Available, Percent: 85, SecondsLeft: 4*3600 + 20*60},
		},
		{
			name: "charged on ac",
			out: "Now drawing from 'AC Power'\n" +
				" -InternalBattery-0 (id=4653155)\t100%; charged; 0:00 remaining present: true\n",
			want: model.Battery{Status: model.Available, Percent: 100, Plugged: true, SecondsLeft: model.BatteryTimeUnlimited},
		},
		{
			name: "no estimate",
			out: "Now drawing from 'AC Power'\n" +
				" -InternalBattery-0 (id=4653155)\t63%; charging; (no estimate) present: true\n",
			want: model.Battery{Status: model.Available, Percent: 63, Plugged: true, SecondsLeft: model.BatteryTimeUnknown},
		},
		{
			name: "desktop",
			out:  "Now drawing from 'AC Power'\n",
			want: model.Battery{Status: model.NotApplicable, SecondsLeft: model.BatteryTimeUnknown},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parsePmset(tt.out); got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseWMICBattery(t *testing.T) {
	tests := []struct {
		name string
		out  string
		want model.Battery
	}{
		{
			name: "discharging",
			out:  "\r\n\r\nBatteryStatus=1\r\nEstimatedChargeRemaining=57\r\nEstimatedRunTime=95\r\n",
			want: model.Battery{Status: model.Available, Percent: 57, SecondsLeft: 95 * 60},
		},
		{
			name: "on ac",
			out:  "BatteryStatus=2\r\nEstimatedChargeRemaining=99\r\nEstimatedRunTime=71582788\r\n",
			want: model.Battery{Status: model.Available, Percent: 99, Plugged: true, SecondsLeft: model.BatteryTimeUnlimited},
		},
		{
			name: "no instance",
			out:  "No Instance(s) Available.\r\n",
			want: model.Battery{Status: model.NotApplicable, SecondsLeft: model.BatteryTimeUnknown},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseWMICBattery(tt.out); got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestWithin(t *testing.T) {
	tests := []struct {
		path, mount string
		want        bool
	}{
		{"/", "/", true},
		{"/home/user", "/home", true},
		{"/homeless", "/home", false},
		{"/", "/boot", false},
	}
	for _, tt := range tests {
		if got := within(tt.path, tt.mount); got != tt.want {
			t.Errorf("within(%q, %q) = %v, want %v", tt.path, tt.mount, got, tt.want)
		}
	}
}
