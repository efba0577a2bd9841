// Package procs categorizes running processes and ranks them by memory.
package procs

import (
	"sort"
	"strings"
	"time"

	"github.com/Dicklesworthstone/osdiag/internal/model"
)

const (
	DefaultLimit = 15
	MaxLimit     = 50
)

// Match selects how a Rule pattern is compared to a process name.
type Match int

const (
	Substring Match = iota
	Exact
)

// Rule maps a lowercase name pattern to a category.
type Rule struct {
	Pattern  string
	Match    Match
	Category model.Category
}

func exact(c model.Category, names ...string) []Rule {
	out := make([]Rule, len(names))
	for i, n := range names {
		out[i] = Rule{Pattern: n, Match: Exact, Category: c}
	}
	return out
}

func contains(c model.Category, names ...string) []Rule {
	out := make([]Rule, len(names))
	for i, n := range names {
		out[i] = Rule{Pattern: n, Match: Substring, Category: c}
	}
	return out
}

func concat(groups ...[]Rule) []Rule {
	var out []Rule
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

// Rules is the default table. Exact rules outrank substring rules; among
// equals the first declared wins.
var Rules = concat(
	exact(model.CategorySystem, "system", "idle", "init", "kernel_task", "launchd", "registry",
		"apt", "apt-get", "yum", "dnf", "pacman", "brew"),
	exact(model.CategorySecurity, "msmpeng", "securityhealthservice", "nissrv"),
	exact(model.CategoryDevTool, "code", "git", "go", "make", "gcc", "cargo"),

	contains(model.CategorySecurity, "antivirus", "defender", "firewall", "malware", "avast",
		"norton", "mcafee", "kaspersky", "clamav", "fail2ban", "security"),
	contains(model.CategorySystem, "kernel", "csrss", "winlogon", "services", "lsass", "svchost",
		"systemd", "kworker", "ksoftirqd", "kthreadd", "migration", "dbus", "snapd", "flatpak",
		"packagekit", "system"),
	contains(model.CategoryBrowser, "chrome", "firefox", "safari", "msedge", "edge", "opera",
		"brave", "chromium", "vivaldi"),
	contains(model.CategoryDevTool, "vscode", "visual studio", "devenv", "python", "node", "java",
		"docker", "terminal", "pycharm", "intellij", "goland", "sublime", "vim", "emacs", "gopls"),
	contains(model.CategoryApplication, "spotify", "vlc", "music", "video", "itunes", "rhythmbox",
		"audacity", "word", "excel", "powerpoint", "outlook", "teams", "slack", "zoom", "discord",
		"office", "libreoffice", "notion", "obsidian"),
)

// Categorize returns the category of name under rules, or Other.
func Categorize(name string, rules []Rule) model.Category {
	lower := strings.TrimSuffix(strings.ToLower(name), ".exe")
	for _, r := range rules {
		if r.Match == Exact && lower == r.Pattern {
			return r.Category
		}
	}
	for _, r := range rules {
		if r.Match == Substring && strings.Contains(lower, r.Pattern) {
			return r.Category
		}
	}
	return model.CategoryOther
}

// ClampLimit applies the default and the hard cap to a requested limit.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	}
	return limit
}

// Status normalizes a gopsutil status string.
func Status(s string) model.ProcessStatus {
	switch strings.ToLower(s) {
	case "running", "r":
		return model.StatusRunning
	case "sleep", "sleeping", "idle", "wait", "lock", "s", "d", "i":
		return model.StatusSleeping
	case "zombie", "z":
		return model.StatusZombie
	}
	return model.StatusUnknown
}

// Record converts a raw reading into a categorized record.
func Record(p model.ProcessInfo, now time.Time) model.ProcessRecord {
	rec := model.ProcessRecord{
		PID:       p.PID,
		Name:      p.Name,
		Category:  Categorize(p.Name, Rules),
		Memory:    p.RSS,
		MemoryPct: model.ClampPercent(p.MemoryPercent),
		CPU:       p.CPUPercent,
		User:      p.Username,
		Status:    Status(p.Status),
	}
	if !p.CreateTime.IsZero() && now.After(p.CreateTime) {
		rec.Elapsed = now.Sub(p.CreateTime).Truncate(time.Second)
	}
	return rec
}

// CategoryCount is the number of processes in one category.
type CategoryCount struct {
	Category model.Category `json:"category"`
	Count    int            `json:"count"`
	Memory   uint64         `json:"memory_bytes"`
}

// Ranking is the memory-ordered view of a process list.
type Ranking struct {
	Total   int                   `json:"total"`
	Counts  []CategoryCount       `json:"counts"`
	Records []model.ProcessRecord `json:"records"`
}

// Rank categorizes every process, counts categories over the full list, and
// keeps the top ClampLimit(limit) records by memory.
func Rank(procs []model.ProcessInfo, limit int, now time.Time) Ranking {
	records := make([]model.ProcessRecord, 0, len(procs))
	for _, p := range procs {
		records = append(records, Record(p, now))
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].Memory != records[j].Memory {
			return records[i].Memory > records[j].Memory
		}
		return records[i].PID < records[j].PID
	})

	r := Ranking{Total: len(records), Counts: Count(records)}
	limit = ClampLimit(limit)
	if len(records) > limit {
		records = records[:limit]
	}
	r.Records = records
	return r
}

// Count tallies records per category, largest first.
func Count(records []model.ProcessRecord) []CategoryCount {
	byCat := make(map[model.Category]*CategoryCount)
	for _, rec := range records {
		c, ok := byCat[rec.Category]
		if !ok {
			c = &CategoryCount{Category: rec.Category}
			byCat[rec.Category] = c
		}
		c.Count++
		c.Memory += rec.Memory
	}
	out := make([]CategoryCount, 0, len(byCat))
	for _, cat := range model.Categories {
		if c, ok := byCat[cat]; ok {
			out = append(out, *c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}

// Heavy returns up to n records using more than 10% CPU or 5% memory,
// ordered by their combined share.
func Heavy(records []model.ProcessRecord, n int) []model.ProcessRecord {
	var out []model.ProcessRecord
	for _, r := range records {
		if r.CPU > 10 || r.MemoryPct > 5 {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CPU+out[i].MemoryPct > out[j].CPU+out[j].MemoryPct
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
