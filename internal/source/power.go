package source

import (
	"bufio"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/Dicklesworthstone/osdiag/internal/model"
)

const (
	sysfsRoot  = "/sys"
	cmdTimeout = 2 * time.Second
)

// readSysfsBattery reads the first BAT* supply under root/class/power_supply.
func readSysfsBattery(root string) (model.Battery, error) {
	battPaths, _ := filepath.Glob(filepath.Join(root, "class", "power_supply", "BAT*", "capacity"))
	for _, capPath := range battPaths {
		base := filepath.Dir(capPath)
		capBytes, err := os.ReadFile(capPath)
		if err != nil {
			if os.IsPermission(err) {
				return model.Battery{}, err
			}
			continue
		}
		b := model.Battery{
			Status:      model.Available,
			Percent:     parseFloat(string(capBytes)),
			SecondsLeft: model.BatteryTimeUnknown,
		}
		stateBytes, _ := os.ReadFile(filepath.Join(base, "status"))
		state := strings.TrimSpace(string(stateBytes))
		b.Plugged = state != "Discharging"

		energy := readUint(filepath.Join(base, "energy_now"))
		full := readUint(filepath.Join(base, "energy_full"))
		rate := readUint(filepath.Join(base, "power_now"))
		if energy == 0 {
			energy = readUint(filepath.Join(base, "charge_now"))
			full = readUint(filepath.Join(base, "charge_full"))
			rate = readUint(filepath.Join(base, "current_now"))
		}
		switch {
		case state == "Full":
			b.SecondsLeft = model.BatteryTimeUnlimited
		case rate > 0 && state == "Discharging":
			b.SecondsLeft = int64(float64(energy) / float64(rate) * 3600)
		case rate > 0 && state == "Charging" && full > energy:
			b.SecondsLeft = int64(float64(full-energy) / float64(rate) * 3600)
		}
		return b, nil
	}
	return model.Battery{Status: model.NotApplicable, SecondsLeft: model.BatteryTimeUnknown}, nil
}

// readCPUFreq reads cpu0's cpufreq clock and range, reported in kHz.
func readCPUFreq(root string) model.CPUFreq {
	dir := filepath.Join(root, "devices", "system", "cpu", "cpu0", "cpufreq")
	cur := readUint(filepath.Join(dir, "scaling_cur_freq"))
	if cur == 0 {
		return model.CPUFreq{Status: model.Unavailable}
	}
	return model.CPUFreq{
		Status:     model.Available,
		CurrentMHz: float64(cur) / 1000,
		MinMHz:     float64(readUint(filepath.Join(dir, "cpuinfo_min_freq"))) / 1000,
		MaxMHz:     float64(readUint(filepath.Join(dir, "cpuinfo_max_freq"))) / 1000,
	}
}

// readThermalZones is the sysfs fallback when hwmon sensors report nothing.
func readThermalZones(root string) []model.Sensor {
	var sensors []model.Sensor
	paths, _ := filepath.Glob(filepath.Join(root, "class", "thermal", "thermal_zone*", "temp"))
	for _, p := range paths {
		b, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		val := parseFloat(string(b)) / 1000
		if val <= 0 {
			continue
		}
		zone := filepath.Base(filepath.Dir(p))
		if t, err := os.ReadFile(filepath.Join(filepath.Dir(p), "type")); err == nil {
			zone = zone + "/" + strings.TrimSpace(string(t))
		}
		sensors = append(sensors, model.Sensor{Label: zone, Celsius: val})
	}
	return sensors
}

var pmsetLine = regexp.MustCompile(`(\d+)%;\s*([^;]+);\s*(?:(\d+):(\d+) remaining|\(no estimate\))?`)

// parsePmset decodes `pmset -g batt`.
func parsePmset(out string) model.Battery {
	if !strings.Contains(out, "InternalBattery") {
		return model.Battery{Status: model.NotApplicable, SecondsLeft: model.BatteryTimeUnknown}
	}
	b := model.Battery{
		Status:      model.Available,
		Plugged:     strings.Contains(out, "'AC Power'"),
		SecondsLeft: model.BatteryTimeUnknown,
	}
	m := pmsetLine.FindStringSubmatch(out)
	if m == nil {
		return b
	}
	b.Percent = parseFloat(m[1])
	state := strings.TrimSpace(m[2])
	switch {
	case state == "charged":
		b.SecondsLeft = model.BatteryTimeUnlimited
	case m[3] != "":
		h, _ := strconv.Atoi(m[3])
		minutes, _ := strconv.Atoi(m[4])
		b.SecondsLeft = int64(h*3600 + minutes*60)
	}
	return b
}

// parseWMICBattery decodes `WMIC Path Win32_Battery Get ... /Format:List`.
func parseWMICBattery(out string) model.Battery {
	kv := make(map[string]string)
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		k, v, ok := strings.Cut(strings.TrimSpace(sc.Text()), "=")
		if ok {
			kv[k] = strings.TrimSpace(v)
		}
	}
	charge, ok := kv["EstimatedChargeRemaining"]
	if !ok || charge == "" {
		return model.Battery{Status: model.NotApplicable, SecondsLeft: model.BatteryTimeUnknown}
	}
	b := model.Battery{
		Status:      model.Available,
		Percent:     parseFloat(charge),
		SecondsLeft: model.BatteryTimeUnknown,
	}
	// 1 discharging, 4 low, 5 critical; everything else has AC attached.
	switch kv["BatteryStatus"] {
	case "1", "4", "5":
		if mins, err := strconv.ParseInt(kv["EstimatedRunTime"], 10, 64); err == nil && mins < 71582788 {
			b.SecondsLeft = mins * 60
		}
	default:
		b.Plugged = true
		b.SecondsLeft = model.BatteryTimeUnlimited
	}
	return b
}

// Helpers
func parseFloat(s string) float64 {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "%")
	f, _ := strconv.ParseFloat(s, 64)
	return f
}

func readUint(path string) uint64 {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	v, _ := strconv.ParseUint(strings.TrimSpace(string(b)), 10, 64)
	return v
}

func runCmd(ctx context.Context, timeout time.Duration, name string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if ctx.Err() == context.DeadlineExceeded {
		return "", ctx.Err()
	}
	return string(out), err
}
