package config

import (
	"flag"
	"fmt"
	"io"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/hashicorp/go-hclog"
	"gopkg.in/yaml.v2"

	"github.com/Dicklesworthstone/osdiag/internal/source"
)

// Config carries runtime options for osdiag.
type Config struct {
	Interval     time.Duration `yaml:"interval"`
	DiskPath     string        `yaml:"disk_path"`
	ScanTimeout  time.Duration `yaml:"scan_timeout"`
	ScanMaxItems int           `yaml:"scan_max_items"`
	Listen       string        `yaml:"listen"`
	LogLevel     string        `yaml:"log_level"`
	LogJSON      bool          `yaml:"log_json"`
	JSON         bool          `yaml:"json"`
}

func Default() Config {
	return Config{
		Interval:     time.Second,
		DiskPath:     source.DefaultDiskPath(runtime.GOOS),
		ScanTimeout:  30 * time.Second,
		ScanMaxItems: 10000,
		Listen:       "127.0.0.1:8765",
		LogLevel:     "info",
		LogJSON:      false,
		JSON:         false,
	}
}

// Parse registers the shared flags on fs and parses args. Sources are
// layered: defaults, the YAML file from -config or OSDIAG_CONFIG, OSDIAG_*
// environment variables, then flags set explicitly on the command line.
func Parse(fs *flag.FlagSet, args []string) (Config, error) {
	flagged := Default()
	file := os.Getenv("OSDIAG_CONFIG")
	fs.StringVar(&file, "config", file, "YAML config file")
	fs.DurationVar(&flagged.Interval, "interval", flagged.Interval, "refresh interval for watch")
	fs.StringVar(&flagged.DiskPath, "disk", flagged.DiskPath, "path whose filesystem is scored as the primary disk")
	fs.DurationVar(&flagged.ScanTimeout, "scan-timeout", flagged.ScanTimeout, "wall-clock budget of find_large_files")
	fs.IntVar(&flagged.ScanMaxItems, "scan-max-items", flagged.ScanMaxItems, "entries find_large_files may visit")
	fs.StringVar(&flagged.Listen, "listen", flagged.Listen, "address serve listens on")
	fs.StringVar(&flagged.LogLevel, "log-level", flagged.LogLevel, "trace|debug|info|warn|error")
	fs.BoolVar(&flagged.LogJSON, "log-json", flagged.LogJSON, "log as JSON")
	fs.BoolVar(&flagged.JSON, "json", flagged.JSON, "print results as JSON")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	cfg := Default()
	if file != "" {
		if err := cfg.LoadFile(file); err != nil {
			return Config{}, err
		}
	}
	cfg.applyEnv()
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "interval":
			cfg.Interval = flagged.Interval
		case "disk":
			cfg.DiskPath = flagged.DiskPath
		case "scan-timeout":
			cfg.ScanTimeout = flagged.ScanTimeout
		case "scan-max-items":
			cfg.ScanMaxItems = flagged.ScanMaxItems
		case "listen":
			cfg.Listen = flagged.Listen
		case "log-level":
			cfg.LogLevel = flagged.LogLevel
		case "log-json":
			cfg.LogJSON = flagged.LogJSON
		case "json":
			cfg.JSON = flagged.JSON
		}
	})
	return cfg, cfg.Validate()
}

// FromFlags parses the shared flags alone.
func FromFlags(args []string) (Config, error) {
	return Parse(flag.NewFlagSet("osdiag", flag.ContinueOnError), args)
}

// LoadFile overlays the YAML file at path onto c. Keys absent from the
// file keep their current values.
func (c *Config) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("config file: %w", err)
	}
	defer f.Close()
	return c.decode(f)
}

func (c *Config) decode(r io.Reader) error {
	if err := yaml.NewDecoder(r).Decode(c); err != nil && err != io.EOF {
		return fmt.Errorf("config file: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("OSDIAG_INTERVAL"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			c.Interval = parsed
		} else if parsed, err2 := time.ParseDuration(v + "s"); err2 == nil {
			c.Interval = parsed
		}
	}
	if v := os.Getenv("OSDIAG_DISK"); v != "" {
		c.DiskPath = v
	}
	if v := os.Getenv("OSDIAG_SCAN_TIMEOUT"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			c.ScanTimeout = parsed
		}
	}
	if v := os.Getenv("OSDIAG_SCAN_MAX_ITEMS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.ScanMaxItems = n
		}
	}
	if v := os.Getenv("OSDIAG_LISTEN"); v != "" {
		c.Listen = v
	}
	if v := os.Getenv("OSDIAG_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("OSDIAG_LOG_JSON"); v != "" {
		c.LogJSON = v == "1" || v == "true"
	}
	if v := os.Getenv("OSDIAG_JSON"); v != "" {
		c.JSON = v == "1" || v == "true"
	}
}

// Validate rejects values no component can run with.
func (c Config) Validate() error {
	switch {
	case c.Interval <= 0:
		return fmt.Errorf("interval must be positive, got %s", c.Interval)
	case c.ScanTimeout <= 0:
		return fmt.Errorf("scan timeout must be positive, got %s", c.ScanTimeout)
	case c.ScanMaxItems <= 0:
		return fmt.Errorf("scan max items must be positive, got %d", c.ScanMaxItems)
	case hclog.LevelFromString(c.LogLevel) == hclog.NoLevel:
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}
	return nil
}

// Logger builds the root logger described by c, writing to w.
func (c Config) Logger(w io.Writer) hclog.Logger {
	return hclog.New(&hclog.LoggerOptions{
		Name:       "osdiag",
		Level:      hclog.LevelFromString(c.LogLevel),
		JSONFormat: c.LogJSON,
		Output:     w,
	})
}
