package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Dicklesworthstone/osdiag/internal/config"
	"github.com/Dicklesworthstone/osdiag/internal/health"
	"github.com/Dicklesworthstone/osdiag/internal/model"
	"github.com/Dicklesworthstone/osdiag/internal/procs"
	"github.com/Dicklesworthstone/osdiag/internal/sampler"
	"github.com/Dicklesworthstone/osdiag/internal/source"
)

const watchTopN = 10

// Model renders live snapshots from the sampler with their health tiers.
type Model struct {
	cfg       config.Config
	src       source.Adapter
	latest    model.Snapshot
	score     health.Result
	top       procs.Ranking
	stream    <-chan model.Snapshot
	ctx       context.Context
	ctxCancel context.CancelFunc
	width     int
	height    int
}

func New(cfg config.Config, src source.Adapter) *Model {
	ctx, cancel := context.WithCancel(context.Background())
	s := sampler.New(src, cfg.DiskPath)
	return &Model{
		cfg:       cfg,
		src:       src,
		stream:    s.Stream(ctx, cfg.Interval),
		ctx:       ctx,
		ctxCancel: cancel,
		width:     120,
		height:    40,
	}
}

// Messages
type (
	tickMsg     struct{}
	snapshotMsg model.Snapshot
	procsMsg    procs.Ranking
)

func tickCmd() tea.Cmd { return tea.Tick(time.Second/5, func(time.Time) tea.Msg { return tickMsg{} }) }

func (m *Model) procsCmd() tea.Cmd {
	return func() tea.Msg {
		ps, err := m.src.Processes(m.ctx)
		if err != nil {
			return nil
		}
		return procsMsg(procs.Rank(ps, watchTopN, time.Now()))
	}
}

func (m *Model) Init() tea.Cmd { return tea.Batch(tickCmd(), m.procsCmd()) }

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.ctxCancel()
			return m, tea.Quit
		}
	case tickMsg:
		select {
		case snap, ok := <-m.stream:
			if ok {
				return m, tea.Batch(tickCmd(), func() tea.Msg { return snapshotMsg(snap) })
			}
		default:
		}
		return m, tickCmd()
	case snapshotMsg:
		m.latest = model.Snapshot(msg)
		m.score = health.Score(m.latest)
		return m, m.procsCmd()
	case procsMsg:
		m.top = procs.Ranking(msg)
	}
	return m, nil
}

func (m *Model) View() string {
	s := m.latest
	if s.Timestamp.IsZero() {
		return titleStyle.Render("osdiag watch") + "  " + subtleStyle.Render("collecting first snapshot… (q to quit)")
	}
	header := titleStyle.Render("osdiag watch "+s.Host.Hostname) + "  " +
		subtleStyle.Render(s.Timestamp.Format("Mon Jan 2 15:04:05 MST 2006")) + "  " +
		tierStyle(m.score.Tier).Render(fmt.Sprintf("health %.0f %s", m.score.Overall, m.score.Tier))

	line1 := lipgloss.JoinHorizontal(lipgloss.Top, snapshotCards(s, m.score)...)

	bottom := []string{card("Top memory", renderTable(m.top.Records, watchTopN))}
	if len(m.score.Advisories) > 0 {
		lines := make([]string, 0, len(m.score.Advisories))
		for _, a := range m.score.Advisories {
			lines = append(lines, tierStyle(a.Tier).Render(string(a.Resource))+" "+truncate(a.Message, 48))
		}
		bottom = append(bottom, card("Advisories", strings.Join(lines, "\n")))
	}
	line2 := lipgloss.JoinHorizontal(lipgloss.Top, bottom...)

	return lipgloss.JoinVertical(lipgloss.Left, header, line1, line2, subtleStyle.Render("q to quit"))
}

// snapshotCards renders the gauge cards shared by watch and system_overview.
func snapshotCards(s model.Snapshot, score health.Result) []string {
	cpuCard := card("CPU",
		fmt.Sprintf("%s\n%s  load %.2f %.2f %.2f",
			gaugeBar(s.CPU.Usage, 28),
			tierStyle(score.CPU.Tier).Render(string(score.CPU.Tier)),
			s.CPU.Load1, s.CPU.Load5, s.CPU.Load15))

	memCard := card("Memory",
		fmt.Sprintf("%s\n%s  %.1f/%.1f GiB | Swap %3.0f%%",
			gaugeBar(s.Memory.UsedPercent, 28),
			tierStyle(score.Memory.Tier).Render(string(score.Memory.Tier)),
			bytesToGiB(s.Memory.Used),
			bytesToGiB(s.Memory.Total),
			s.Memory.SwapPercent))

	d := s.Disk.Primary
	diskCard := card("Disk "+d.Mountpoint,
		fmt.Sprintf("%s\n%s  %s free of %s",
			gaugeBar(d.UsedPercent, 28),
			tierStyle(score.Disk.Tier).Render(string(score.Disk.Tier)),
			humanBytes(d.Free), humanBytes(d.Total)))

	netCard := card("Network",
		fmt.Sprintf("sent %s  recv %s\nerrors %d  conns %s",
			humanBytes(s.Network.BytesSent), humanBytes(s.Network.BytesRecv),
			s.Network.ErrIn+s.Network.ErrOut, connections(s.Network)))

	cards := []string{cpuCard, memCard, diskCard, netCard}
	if s.Battery.Status == model.Available {
		cards = append(cards, card("Battery", fmt.Sprintf("%.0f%%\n%s", s.Battery.Percent, power(s.Battery.Plugged))))
	}
	return cards
}

// Styles
var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("45"))
	subtleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("81")).Bold(true)
	gaugeFill   = "█"
	gaugeEmpty  = "░"
	cardStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("60")).
			Padding(0, 1).
			MarginRight(1)
)

var tierColors = map[health.Tier]lipgloss.Color{
	health.Excellent: lipgloss.Color("42"),
	health.Good:      lipgloss.Color("114"),
	health.Warning:   lipgloss.Color("214"),
	health.Critical:  lipgloss.Color("196"),
}

func tierStyle(t health.Tier) lipgloss.Style {
	c, ok := tierColors[t]
	if !ok {
		return subtleStyle
	}
	return lipgloss.NewStyle().Bold(true).Foreground(c)
}

// Helpers
func gaugeBar(pct float64, width int) string {
	pct = model.ClampPercent(pct)
	filled := int((pct / 100) * float64(width))
	if filled > width {
		filled = width
	}
	return fmt.Sprintf("[%s%s] %5.1f%%",
		strings.Repeat(gaugeFill, filled),
		strings.Repeat(gaugeEmpty, width-filled),
		pct)
}

func card(title, body string) string {
	titleStr := labelStyle.Render(title)
	content := titleStr + "\n" + body
	return cardStyle.Render(content)
}

func renderTable(rows []model.ProcessRecord, limit int) string {
	n := min(limit, len(rows))
	var b strings.Builder
	fmt.Fprintf(&b, "%-20s %-7s %-11s %9s %6s\n", "name", "pid", "category", "mem", "cpu")
	for i := 0; i < n; i++ {
		r := rows[i]
		fmt.Fprintf(&b, "%-20s %-7d %-11s %9s %6.1f\n",
			truncate(r.Name, 20), r.PID, r.Category, humanBytes(r.Memory), r.CPU)
	}
	return strings.TrimRight(b.String(), "\n")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func connections(n model.Network) string {
	if n.ConnectionsStatus != model.Available {
		return "n/a"
	}
	return fmt.Sprint(n.Connections)
}

func power(plugged bool) string {
	if plugged {
		return "plugged in"
	}
	return "on battery"
}

func bytesToGiB(b uint64) float64 { return float64(b) / (1024 * 1024 * 1024) }

func humanBytes(b uint64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := uint64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}

// RunTUI starts the Bubble Tea program.
func RunTUI(cfg config.Config, src source.Adapter) error {
	m := New(cfg, src)
	defer m.ctxCancel()
	prog := tea.NewProgram(m, tea.WithAltScreen())
	_, err := prog.Run()
	return err
}
