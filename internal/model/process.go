package model

import "time"

// ProcessInfo is a raw process reading as produced by an adapter.
type ProcessInfo struct {
	PID           int32
	Name          string
	RSS           uint64
	MemoryPercent float64
	CPUPercent    float64
	CreateTime    time.Time
	Username      string
	Status        string
}

// Category is the fixed process taxonomy.
type Category string

const (
	CategorySystem      Category = "System"
	CategoryApplication Category = "Application"
	CategoryBrowser     Category = "Browser"
	CategoryDevTool     Category = "DevTool"
	CategorySecurity    Category = "Security"
	CategoryOther       Category = "Other"
)

// Categories lists every Category in display order.
var Categories = []Category{
	CategorySystem,
	CategoryApplication,
	CategoryBrowser,
	CategoryDevTool,
	CategorySecurity,
	CategoryOther,
}

// ProcessStatus is the normalized lifecycle state of a process.
type ProcessStatus string

const (
	StatusRunning  ProcessStatus = "Running"
	StatusSleeping ProcessStatus = "Sleeping"
	StatusZombie   ProcessStatus = "Zombie"
	StatusUnknown  ProcessStatus = "Unknown"
)

// ProcessRecord is a categorized process. Built fresh for every query.
type ProcessRecord struct {
	PID       int32         `json:"pid"`
	Name      string        `json:"name"`
	Category  Category      `json:"category"`
	Memory    uint64        `json:"memory_bytes"`
	MemoryPct float64       `json:"memory_percent"`
	CPU       float64       `json:"cpu_percent"`
	Elapsed   time.Duration `json:"elapsed"`
	User      string        `json:"user"`
	Status    ProcessStatus `json:"status"`
	AutoStart bool          `json:"auto_start,omitempty"`
}
