package diagnose

import "github.com/Dicklesworthstone/osdiag/internal/model"

// PowerMode is the power plan inferred from the CPU clock.
type PowerMode string

const (
	PowerSaver      PowerMode = "Power Saver"
	Balanced        PowerMode = "Balanced"
	HighPerformance PowerMode = "High Performance"
)

// ModeFor infers the mode from where the current clock sits in the
// hardware range. It is empty when the range is unknown.
func ModeFor(f model.CPUFreq) PowerMode {
	if f.Status != model.Available || f.MaxMHz <= 0 {
		return ""
	}
	switch {
	case f.CurrentMHz < f.MaxMHz*0.5:
		return PowerSaver
	case f.CurrentMHz > f.MaxMHz*0.9:
		return HighPerformance
	}
	return Balanced
}

// PowerProfile is the CPU power state plus where the OS keeps its power
// settings.
type PowerProfile struct {
	Frequency model.CPUFreq `json:"cpu_frequency"`
	Mode      PowerMode     `json:"mode,omitempty"`
	Settings  []string      `json:"settings"`
	Tips      []string      `json:"tips"`
}

var powerSettings = map[string][]string{
	"windows": {
		"Settings > System > Power & battery",
		"Control Panel > Power Options (Balanced, Power saver, High performance)",
	},
	"darwin": {
		"System Settings > Battery",
		"pmset -g shows the active power profile",
	},
	"linux": {
		"powerprofilesctl list shows the available profiles",
		"TLP manages laptop power policy",
		"cpupower frequency-info shows the CPU governor",
	},
}

var powerTips = map[string][]string{
	"windows": {
		"Enable Battery Saver when unplugged",
		"Use Power Throttling for background apps",
	},
	"darwin": {
		"Enable Low Power Mode on battery",
		"Check energy use per app in Activity Monitor",
	},
	"linux": {
		"Use powertop to find power-hungry processes",
		"Set the CPU governor with cpupower frequency-set",
	},
}

var generalPowerTips = []string{
	"Reduce screen brightness",
	"Close unnecessary applications",
	"Turn off Bluetooth and Wi-Fi when not in use",
}

// Power builds the profile for goos. Unix-likes other than darwin get the
// Linux guidance.
func Power(goos string, f model.CPUFreq) PowerProfile {
	key := goos
	if key != "windows" && key != "darwin" {
		key = "linux"
	}
	tips := append(append([]string(nil), powerTips[key]...), generalPowerTips...)
	return PowerProfile{
		Frequency: f,
		Mode:      ModeFor(f),
		Settings:  powerSettings[key],
		Tips:      tips,
	}
}
