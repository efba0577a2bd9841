package sampler

import (
	"context"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/Dicklesworthstone/osdiag/internal/model"
	"github.com/Dicklesworthstone/osdiag/internal/source"
)

const (
	MinIntervalSeconds     = 1
	MaxIntervalSeconds     = 30
	DefaultIntervalSeconds = 5
	// GaugeSamples is how many evenly spaced gauge readings one window takes.
	GaugeSamples = 5
)

// ClampInterval forces a requested window length into [1,30] seconds.
func ClampInterval(seconds int) int {
	switch {
	case seconds < MinIntervalSeconds:
		return MinIntervalSeconds
	case seconds > MaxIntervalSeconds:
		return MaxIntervalSeconds
	}
	return seconds
}

// GaugeSample is one intra-window reading of the gauge metrics.
type GaugeSample struct {
	Index  int           `json:"index"`
	Offset time.Duration `json:"offset"`
	CPU    float64       `json:"cpu_percent"`
	Memory float64       `json:"memory_percent"`
}

// TrendPoint is one sample of a gauge with a coarse bar.
type TrendPoint struct {
	Index int     `json:"index"`
	Value float64 `json:"value"`
	Bar   string  `json:"bar"`
}

// Gauge reduces a window of percentage readings.
type Gauge struct {
	Status  model.Availability `json:"status"`
	Average float64            `json:"average"`
	Peak    float64            `json:"peak"`
	Trend   []TrendPoint       `json:"trend"`
}

// Rate is a counter delta over the window.
type Rate struct {
	Status    model.Availability `json:"status"`
	Bytes     uint64             `json:"bytes"`
	PerSecond float64            `json:"per_second"`
}

// Report is the outcome of one monitoring window.
type Report struct {
	Interval  time.Duration `json:"interval"`
	Elapsed   time.Duration `json:"elapsed"`
	CPU       Gauge         `json:"cpu"`
	Memory    Gauge         `json:"memory"`
	NetSent   Rate          `json:"net_sent"`
	NetRecv   Rate          `json:"net_recv"`
	DiskRead  Rate          `json:"disk_read"`
	DiskWrite Rate          `json:"disk_write"`
}

// Sampler takes windowed readings from a source adapter.
type Sampler struct {
	Source   source.Adapter
	DiskPath string
	Samples  int
	Logger   hclog.Logger
	// OnSample, if set, observes every gauge sample as it is taken.
	OnSample func(GaugeSample)

	sleep func(time.Duration)
	now   func() time.Time
}

func New(a source.Adapter, diskPath string) *Sampler {
	return &Sampler{
		Source:   a,
		DiskPath: diskPath,
		Samples:  GaugeSamples,
		Logger:   hclog.NewNullLogger(),
		sleep:    time.Sleep,
		now:      time.Now,
	}
}

type counters struct {
	net    model.Network
	netOK  bool
	disk   model.DiskIO
	diskOK bool
}

func (s *Sampler) counters(ctx context.Context) counters {
	var c counters
	if n, err := s.Source.Network(ctx); err == nil {
		c.net, c.netOK = n, true
	}
	if d, err := s.Source.Disk(ctx, s.DiskPath); err == nil && d.IOStatus == model.Available {
		c.disk, c.diskOK = d.IO, true
	}
	return c
}

// Monitor blocks for the clamped interval, reading counters at both ends and
// Samples evenly spaced gauge readings in between.
func (s *Sampler) Monitor(ctx context.Context, intervalSeconds int) Report {
	interval := time.Duration(ClampInterval(intervalSeconds)) * time.Second
	n := s.Samples
	if n <= 0 {
		n = GaugeSamples
	}
	step := interval / time.Duration(n)
	s.Logger.Debug("monitor window started", "interval", interval, "samples", n)

	start := s.now()
	// Baseline so the first CPU reading covers only the first step.
	_, _ = s.Source.CPU(ctx)
	before := s.counters(ctx)

	var cpuVals, memVals []float64
	for i := 1; i <= n; i++ {
		s.sleep(step)
		gs := GaugeSample{Index: i, Offset: s.now().Sub(start)}
		if c, err := s.Source.CPU(ctx); err == nil {
			gs.CPU = model.ClampPercent(c.Usage)
			cpuVals = append(cpuVals, gs.CPU)
		}
		if m, err := s.Source.Memory(ctx); err == nil {
			if m.UsedPercent == 0 && m.Total > 0 {
				m.UsedPercent = model.Percent(m.Used, m.Total)
			}
			gs.Memory = model.ClampPercent(m.UsedPercent)
			memVals = append(memVals, gs.Memory)
		}
		if s.OnSample != nil {
			s.OnSample(gs)
		}
	}

	after := s.counters(ctx)
	elapsed := s.now().Sub(start)
	if elapsed <= 0 {
		elapsed = interval
	}

	r := Report{
		Interval: interval,
		Elapsed:  elapsed,
		CPU:      reduce(cpuVals),
		Memory:   reduce(memVals),
	}
	netOK := before.netOK && after.netOK
	diskOK := before.diskOK && after.diskOK
	r.NetSent = rate(before.net.BytesSent, after.net.BytesSent, elapsed, netOK)
	r.NetRecv = rate(before.net.BytesRecv, after.net.BytesRecv, elapsed, netOK)
	r.DiskRead = rate(before.disk.ReadBytes, after.disk.ReadBytes, elapsed, diskOK)
	r.DiskWrite = rate(before.disk.WriteBytes, after.disk.WriteBytes, elapsed, diskOK)

	s.Logger.Debug("monitor window finished", "elapsed", elapsed, "cpu_avg", r.CPU.Average, "mem_avg", r.Memory.Average)
	return r
}

func reduce(vals []float64) Gauge {
	if len(vals) == 0 {
		return Gauge{Status: model.Unavailable}
	}
	g := Gauge{Status: model.Available, Trend: make([]TrendPoint, len(vals))}
	var sum float64
	for i, v := range vals {
		sum += v
		if v > g.Peak {
			g.Peak = v
		}
		g.Trend[i] = TrendPoint{Index: i + 1, Value: v, Bar: Bar(v)}
	}
	g.Average = sum / float64(len(vals))
	return g
}

// Bar renders a percentage as up to 20 block characters.
func Bar(pct float64) string {
	return strings.Repeat("█", int(model.ClampPercent(pct)/5))
}

// rate treats a counter that went backwards (reboot or wrap) as no traffic.
func rate(start, end uint64, elapsed time.Duration, ok bool) Rate {
	if !ok {
		return Rate{Status: model.Unavailable}
	}
	var delta uint64
	if end > start {
		delta = end - start
	}
	return Rate{
		Status:    model.Available,
		Bytes:     delta,
		PerSecond: float64(delta) / elapsed.Seconds(),
	}
}

// Stream returns a channel that will receive snapshots until ctx is done.
func (s *Sampler) Stream(ctx context.Context, every time.Duration) <-chan model.Snapshot {
	ch := make(chan model.Snapshot)
	go func() {
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		defer close(ch)
		for {
			select {
			case <-ticker.C:
				select {
				case ch <- source.Collect(ctx, s.Source, s.DiskPath):
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}
