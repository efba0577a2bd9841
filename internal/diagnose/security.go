package diagnose

import (
	"os"
	"sort"
	"strings"
	"time"

	"github.com/Dicklesworthstone/osdiag/internal/model"
	"github.com/Dicklesworthstone/osdiag/internal/procs"
)

// SecurityTier rates a security score.
type SecurityTier string

const (
	SecurityGood SecurityTier = "Good"
	SecurityFair SecurityTier = "Fair"
	SecurityPoor SecurityTier = "Poor"
)

const (
	noSecurityPenalty  = 20
	staleUptimePenalty = 10
	maxListedSoftware  = 5
)

// SecurityTierFor rates score.
func SecurityTierFor(score int) SecurityTier {
	switch {
	case score >= 80:
		return SecurityGood
	case score >= 60:
		return SecurityFair
	}
	return SecurityPoor
}

// linuxTools are well-known binaries that indicate installed hardening.
var linuxTools = []struct{ path, label string }{
	{"/usr/sbin/ufw", "UFW firewall"},
	{"/usr/bin/fail2ban-client", "Fail2ban"},
	{"/usr/sbin/sestatus", "SELinux"},
	{"/usr/sbin/apparmor_status", "AppArmor"},
}

// SecurityInput is what a security check reads. FileExists defaults to
// an os.Stat check.
type SecurityInput struct {
	OS         string
	Processes  []model.ProcessInfo
	Uptime     time.Duration
	FileExists func(string) bool
}

// SecurityReport is a basic posture summary. It inspects only; it never
// queries privileged state.
type SecurityReport struct {
	Score           int          `json:"score"`
	Tier            SecurityTier `json:"tier"`
	Software        []string     `json:"security_software"`
	Tools           []string     `json:"tools"`
	UptimeDays      int          `json:"uptime_days"`
	Issues          []string     `json:"issues"`
	Recommendations []string     `json:"recommendations"`
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Security scores the host's visible security posture.
func Security(in SecurityInput) SecurityReport {
	fileExists := in.FileExists
	if fileExists == nil {
		fileExists = exists
	}
	r := SecurityReport{Score: 100, UptimeDays: int(in.Uptime.Hours() / 24)}

	seen := map[string]bool{}
	for _, p := range in.Processes {
		if procs.Categorize(p.Name, procs.Rules) == model.CategorySecurity && !seen[p.Name] {
			seen[p.Name] = true
			r.Software = append(r.Software, p.Name)
		}
	}
	sort.Strings(r.Software)
	if len(r.Software) == 0 {
		r.Score -= noSecurityPenalty
		r.Issues = append(r.Issues, "No security software detected in running processes")
		r.Recommendations = append(r.Recommendations, "Install or enable antivirus and firewall software")
	}
	if len(r.Software) > maxListedSoftware {
		r.Software = r.Software[:maxListedSoftware]
	}

	switch in.OS {
	case "windows":
		if !defenderRunning(in.Processes) {
			r.Recommendations = append(r.Recommendations, "Enable Windows Defender")
		}
	case "darwin":
		r.Tools = append(r.Tools, "XProtect", "Gatekeeper")
	default:
		for _, t := range linuxTools {
			if fileExists(t.path) {
				r.Tools = append(r.Tools, t.label)
			}
		}
	}

	if in.Uptime > staleUptime {
		r.Score -= staleUptimePenalty
		r.Issues = append(r.Issues, "System has not been restarted in over 30 days")
		r.Recommendations = append(r.Recommendations, "Restart the system to apply pending updates")
	}
	r.Tier = SecurityTierFor(r.Score)
	return r
}

func defenderRunning(ps []model.ProcessInfo) bool {
	for _, p := range ps {
		n := strings.ToLower(p.Name)
		if strings.Contains(n, "msmpeng") || strings.Contains(n, "securityhealthservice") {
			return true
		}
	}
	return false
}
