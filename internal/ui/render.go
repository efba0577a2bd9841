package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/Dicklesworthstone/osdiag/internal/diagnose"
	"github.com/Dicklesworthstone/osdiag/internal/engine"
	"github.com/Dicklesworthstone/osdiag/internal/health"
	"github.com/Dicklesworthstone/osdiag/internal/model"
	"github.com/Dicklesworthstone/osdiag/internal/procs"
	"github.com/Dicklesworthstone/osdiag/internal/sampler"
	"github.com/Dicklesworthstone/osdiag/internal/scan"
)

// Render formats the result of operation op as lipgloss cards.
func Render(op string, v any) string {
	header := titleStyle.Render(strings.ReplaceAll(op, "_", " "))
	var body []string
	switch r := v.(type) {
	case engine.Identity:
		body = []string{identityCard(r)}
	case engine.Overview:
		body = []string{
			identityCard(r.Identity),
			lipgloss.JoinHorizontal(lipgloss.Top, snapshotCards(r.Snapshot, r.Health)...),
			healthCard(r.Health),
		}
		body = append(body, failuresCard(r.Snapshot.Failures)...)
	case procs.Ranking:
		body = []string{
			card(fmt.Sprintf("Processes (%d running)", r.Total), renderTable(r.Records, len(r.Records))),
			card("By category", renderCounts(r.Counts)),
		}
	case engine.Performance:
		body = append([]string{healthCard(r.Health)}, failuresCard(r.Failures)...)
	case engine.NetworkReport:
		body = []string{networkCard(r)}
	case engine.DiskReport:
		body = []string{diskCard(r)}
	case engine.BatteryReport:
		body = []string{batteryCard(r)}
	case engine.TemperatureReport:
		body = []string{temperatureCard(r)}
	case diagnose.StartupImpact:
		body = []string{startupCard(r)}
	case scan.Result:
		body = []string{scanCard(r)}
	case diagnose.SecurityReport:
		body = []string{securityCard(r)}
	case sampler.Report:
		body = []string{monitorCard(r)}
	case diagnose.Report:
		body = diagnosisCards(r)
	case engine.UserReport:
		body = []string{userCard(r)}
	case engine.PowerReport:
		body = []string{batteryCard(r.Battery), powerCard(r)}
	default:
		body = []string{card("Result", fmt.Sprintf("%+v", v))}
	}
	return lipgloss.JoinVertical(lipgloss.Left, append([]string{header}, body...)...)
}

func kv(pairs ...string) string {
	width := 0
	for i := 0; i < len(pairs); i += 2 {
		width = max(width, len(pairs[i]))
	}
	var b strings.Builder
	for i := 0; i+1 < len(pairs); i += 2 {
		fmt.Fprintf(&b, "%-*s  %s\n", width, pairs[i], pairs[i+1])
	}
	return strings.TrimRight(b.String(), "\n")
}

func list(items []string) string {
	if len(items) == 0 {
		return subtleStyle.Render("none")
	}
	return "• " + strings.Join(items, "\n• ")
}

func identityCard(id engine.Identity) string {
	return card("Session", kv(
		"os", id.OS,
		"platform", strings.TrimSpace(id.Platform+" "+id.PlatformVersion),
		"kernel", id.KernelVersion,
		"arch", id.Arch,
		"hostname", id.Hostname,
		"cpu", id.CPUModel,
		"home", id.HomeDir,
		"temp", id.TempDir,
	))
}

func healthCard(h health.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", tierStyle(h.Tier).Render(fmt.Sprintf("overall %.0f/100 %s", h.Overall, h.Tier)))
	for _, c := range h.Components() {
		if !c.Known {
			fmt.Fprintf(&b, "%-7s %s\n", c.Resource, subtleStyle.Render("unknown"))
			continue
		}
		fmt.Fprintf(&b, "%-7s %3d %s\n", c.Resource, c.Score, tierStyle(c.Tier).Render(string(c.Tier)))
	}
	for _, a := range h.Advisories {
		fmt.Fprintf(&b, "%s %s\n", tierStyle(a.Tier).Render("! "+string(a.Resource)), a.Message)
	}
	if len(h.Recommendations) > 0 {
		fmt.Fprintf(&b, "\n%s\n", list(h.Recommendations))
	}
	return card("Health", strings.TrimRight(b.String(), "\n"))
}

func failuresCard(fs []model.FieldError) []string {
	if len(fs) == 0 {
		return nil
	}
	lines := make([]string, len(fs))
	for i, f := range fs {
		lines[i] = fmt.Sprintf("%s: %s", f.Field, f.Message)
	}
	return []string{card("Unreadable", list(lines))}
}

func failureLine(f *model.FieldError) string {
	return tierStyle(health.Warning).Render(fmt.Sprintf("%s unreadable: %s", f.Field, f.Message))
}

func renderCounts(cs []procs.CategoryCount) string {
	var b strings.Builder
	for _, c := range cs {
		fmt.Fprintf(&b, "%-11s %4d %9s\n", c.Category, c.Count, humanBytes(c.Memory))
	}
	return strings.TrimRight(b.String(), "\n")
}

func networkCard(r engine.NetworkReport) string {
	if r.Failure != nil {
		return card("Network", failureLine(r.Failure))
	}
	n := r.Network
	var b strings.Builder
	for _, i := range n.Interfaces {
		state := "down"
		if i.Up {
			state = "up"
		}
		fmt.Fprintf(&b, "%-12s %-4s %s\n", truncate(i.Name, 12), state, strings.Join(i.Addrs, " "))
	}
	fmt.Fprintf(&b, "\n%s", kv(
		"sent", fmt.Sprintf("%s (%d packets)", humanBytes(n.BytesSent), n.PacketsSent),
		"received", fmt.Sprintf("%s (%d packets)", humanBytes(n.BytesRecv), n.PacketsRecv),
		"errors", fmt.Sprintf("%d in / %d out", n.ErrIn, n.ErrOut),
		"connections", connections(n),
	))
	status := tierStyle(r.Tier).Render(string(r.Tier))
	if r.Message != "" {
		status += " " + r.Message
	}
	return card("Network", b.String()+"\n"+status)
}

func diskCard(r engine.DiskReport) string {
	if r.Failure != nil {
		return card("Disk "+r.Path, failureLine(r.Failure))
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-18s %-8s %9s %9s %6s  %s\n", "mount", "fs", "size", "free", "used", "tier")
	for _, m := range r.Mounts {
		if !m.Accessible {
			fmt.Fprintf(&b, "%-18s %-8s %s\n", truncate(m.Mountpoint, 18), m.FSType, subtleStyle.Render("inaccessible"))
			continue
		}
		fmt.Fprintf(&b, "%-18s %-8s %9s %9s %5.1f%%  %s\n", truncate(m.Mountpoint, 18), m.FSType,
			humanBytes(m.Total), humanBytes(m.Free), m.UsedPercent, tierStyle(m.Tier).Render(string(m.Tier)))
	}
	if r.IOStatus == model.Available {
		fmt.Fprintf(&b, "\nread %s (%d ops)  written %s (%d ops) since boot",
			humanBytes(r.IO.ReadBytes), r.IO.ReadCount, humanBytes(r.IO.WriteBytes), r.IO.WriteCount)
	}
	p := r.Primary
	title := fmt.Sprintf("Disk %s: %.0f%% free, %s", r.Path, p.FreePercent, p.Tier)
	return card(title, strings.TrimRight(b.String(), "\n"))
}

func batteryCard(r engine.BatteryReport) string {
	switch {
	case r.Failure != nil:
		return card("Battery", failureLine(r.Failure))
	case r.Battery.Status == model.NotApplicable:
		return card("Battery", subtleStyle.Render("no battery (desktop system)"))
	case r.Battery.Status != model.Available:
		return card("Battery", subtleStyle.Render("battery information unavailable"))
	}
	b := r.Battery
	return card("Battery", kv(
		"charge", gaugeBar(b.Percent, 20),
		"state", string(r.State),
		"power", power(b.Plugged),
		"remaining", timeLeft(b.SecondsLeft),
	))
}

func timeLeft(secs int64) string {
	switch secs {
	case model.BatteryTimeUnlimited:
		return "unlimited"
	case model.BatteryTimeUnknown:
		return "unknown"
	}
	return (time.Duration(secs) * time.Second).String()
}

func temperatureCard(r engine.TemperatureReport) string {
	switch {
	case r.Failure != nil:
		return card("Temperature", failureLine(r.Failure))
	case r.Status != model.Available:
		return card("Temperature", subtleStyle.Render("no readable sensors on this platform"))
	}
	var b strings.Builder
	for _, s := range r.Sensors {
		fmt.Fprintf(&b, "%-24s %6.1f°C  %s\n", truncate(s.Label, 24), s.Celsius, s.Status)
	}
	return card("Temperature", strings.TrimRight(b.String(), "\n"))
}

func startupCard(r diagnose.StartupImpact) string {
	head := kv(
		"programs", fmt.Sprint(r.Count),
		"memory", humanBytes(r.Memory),
		"load", string(r.Load),
	)
	return card("Startup programs", head+"\n\n"+renderTable(r.Records, 20)+"\n\n"+renderCounts(r.Counts))
}

func scanCard(r scan.Result) string {
	var b strings.Builder
	for _, e := range r.Entries {
		fmt.Fprintf(&b, "%9s  %s  %s\n", humanBytes(uint64(e.Size)), e.Modified.Format("2006-01-02"), e.Path)
	}
	if len(r.Entries) == 0 {
		b.WriteString(subtleStyle.Render(fmt.Sprintf("no files of %s or more", humanBytes(uint64(r.MinSize)))) + "\n")
	}
	stats := fmt.Sprintf("\nscanned %d entries in %s, %d permission errors, %d other errors",
		r.Scanned, r.Duration.Round(time.Millisecond), r.PermissionErrors, r.OtherErrors)
	if r.Truncated {
		reasons := make([]string, len(r.Reasons))
		for i, x := range r.Reasons {
			reasons[i] = string(x)
		}
		stats += "\n" + tierStyle(health.Warning).Render("truncated: "+strings.Join(reasons, ", "))
	}
	return card("Large files under "+r.Root, b.String()+stats)
}

func securityCard(r diagnose.SecurityReport) string {
	var tier health.Tier
	switch r.Tier {
	case diagnose.SecurityGood:
		tier = health.Good
	case diagnose.SecurityFair:
		tier = health.Warning
	default:
		tier = health.Critical
	}
	body := tierStyle(tier).Render(fmt.Sprintf("score %d/100 %s", r.Score, r.Tier)) + "\n\n" + kv(
		"software", strings.Join(r.Software, ", "),
		"tools", strings.Join(r.Tools, ", "),
		"uptime", fmt.Sprintf("%d days", r.UptimeDays),
	)
	if len(r.Issues) > 0 {
		body += "\n\n" + list(r.Issues)
	}
	if len(r.Recommendations) > 0 {
		body += "\n\n" + list(r.Recommendations)
	}
	return card("Security", body)
}

func monitorCard(r sampler.Report) string {
	gauge := func(name string, g sampler.Gauge) string {
		if g.Status != model.Available {
			return fmt.Sprintf("%s unavailable\n", name)
		}
		var b strings.Builder
		fmt.Fprintf(&b, "%s avg %.1f%% peak %.1f%%\n", name, g.Average, g.Peak)
		for _, p := range g.Trend {
			fmt.Fprintf(&b, "  %d %-20s %5.1f%%\n", p.Index, p.Bar, p.Value)
		}
		return b.String()
	}
	rate := func(r sampler.Rate) string {
		if r.Status != model.Available {
			return "n/a"
		}
		return humanBytes(uint64(r.PerSecond)) + "/s"
	}
	body := gauge("CPU", r.CPU) + gauge("Memory", r.Memory) + "\n" + kv(
		"net sent", rate(r.NetSent),
		"net recv", rate(r.NetRecv),
		"disk read", rate(r.DiskRead),
		"disk write", rate(r.DiskWrite),
	)
	return card(fmt.Sprintf("Monitor (%s)", r.Elapsed.Round(time.Millisecond)), body)
}

func diagnosisCards(r diagnose.Report) []string {
	var verdict string
	if top, ok := r.Top(); ok {
		names := make([]string, len(r.Bottlenecks))
		for i, b := range r.Bottlenecks {
			names[i] = string(b.Resource)
		}
		verdict = tierStyle(top.Tier).Render("bottlenecks: " + strings.Join(names, " > "))
	} else {
		verdict = tierStyle(health.Excellent).Render("no bottleneck: the system is performing within normal parameters")
	}
	summary := verdict + "\n\n" + kv(
		"uptime", fmt.Sprintf("%d days", int(r.Uptime.Hours()/24)),
		"startup programs", fmt.Sprintf("%d (%s)", r.Startup.Count, r.Startup.Load),
	)
	out := []string{
		card("Diagnosis", summary),
		lipgloss.JoinHorizontal(lipgloss.Top, snapshotCards(r.Snapshot, r.Health)...),
	}
	if len(r.Issues) > 0 || len(r.Recommendations) > 0 {
		out = append(out, card("Findings", list(r.Issues)+"\n\n"+list(r.Recommendations)))
	}
	out = append(out, lipgloss.JoinHorizontal(lipgloss.Top,
		card("Top memory", renderTable(r.TopProcesses, len(r.TopProcesses))),
		card("Resource-heavy", renderTable(r.Heavy, len(r.Heavy))),
	))
	return append(out, failuresCard(r.Snapshot.Failures)...)
}

func userCard(r engine.UserReport) string {
	c := r.Current
	head := kv(
		"user", strings.TrimSpace(c.Username+" "+c.Name),
		"uid/gid", c.UID+"/"+c.GID,
		"home", c.HomeDir,
		"workdir", r.WorkDir,
		"temp", r.TempDir,
		"PATH entries", fmt.Sprint(r.PathEntries),
	)
	var b strings.Builder
	switch {
	case r.Failure != nil:
		b.WriteString(failureLine(r.Failure))
	case r.SessionsStatus != model.Available:
		b.WriteString(subtleStyle.Render("sessions cannot be listed on this platform"))
	case len(r.Sessions) == 0:
		b.WriteString(subtleStyle.Render("no active sessions"))
	}
	for _, g := range r.Sessions {
		fmt.Fprintf(&b, "%s (%d)\n", g.User, g.Count)
		for _, s := range g.Sessions {
			fmt.Fprintf(&b, "  %s from %s since %s\n", s.Terminal, s.Host, s.Started.Format("15:04:05"))
		}
	}
	return card("Users", head+"\n\n"+strings.TrimRight(b.String(), "\n"))
}

func powerCard(r engine.PowerReport) string {
	var b strings.Builder
	f := r.Frequency
	switch {
	case r.Failure != nil:
		b.WriteString(failureLine(r.Failure) + "\n")
	case f.Status != model.Available:
		b.WriteString(subtleStyle.Render("cpu frequency unavailable") + "\n")
	default:
		fmt.Fprintf(&b, "clock %.0f MHz", f.CurrentMHz)
		if f.MaxMHz > 0 {
			fmt.Fprintf(&b, " (%.0f-%.0f MHz)", f.MinMHz, f.MaxMHz)
		}
		if r.Mode != "" {
			b.WriteString("  " + labelStyle.Render(string(r.Mode)))
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "\n%s\n\n%s", list(r.Settings), list(r.Tips))
	return card("Power", b.String())
}
