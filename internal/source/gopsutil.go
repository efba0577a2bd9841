package source

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/net"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/Dicklesworthstone/osdiag/internal/model"
)

const (
	// cpuPrimeWindow is how long the first CPU read measures for when no
	// previous times exist.
	cpuPrimeWindow = 250 * time.Millisecond
	// StartupWindow is how soon after boot a process must start to count
	// as auto-started.
	StartupWindow = 5 * time.Minute
)

// base carries the gopsutil reads shared by every variant.
type base struct {
	goos string

	mu        sync.Mutex
	prevTotal float64
	prevIdle  float64
	prevCore  []cpu.TimesStat
}

func newBase(goos string) *base { return &base{goos: goos} }

func (b *base) Name() string { return b.goos }

func (b *base) Close() error {
	b.mu.Lock()
	b.prevTotal, b.prevIdle, b.prevCore = 0, 0, nil
	b.mu.Unlock()
	return nil
}

func (b *base) Host(ctx context.Context) (model.Host, error) {
	info, err := host.InfoWithContext(ctx)
	if err != nil {
		return model.Host{}, fmt.Errorf("host info: %w", err)
	}
	return model.Host{
		Hostname:        info.Hostname,
		OS:              info.OS,
		Platform:        info.Platform,
		PlatformVersion: info.PlatformVersion,
		KernelVersion:   info.KernelVersion,
		Arch:            info.KernelArch,
		BootTime:        time.Unix(int64(info.BootTime), 0),
		Uptime:          time.Duration(info.Uptime) * time.Second,
	}, nil
}

func (b *base) CPU(ctx context.Context) (model.CPU, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.prevTotal == 0 {
		if _, _, err := b.cpuPercents(ctx); err != nil {
			return model.CPU{}, err
		}
		select {
		case <-time.After(cpuPrimeWindow):
		case <-ctx.Done():
			return model.CPU{}, ctx.Err()
		}
	}
	total, perCore, err := b.cpuPercents(ctx)
	if err != nil {
		return model.CPU{}, err
	}

	c := model.CPU{Usage: total, PerCore: perCore, LoadStatus: model.Unavailable}
	c.Logical, _ = cpu.CountsWithContext(ctx, true)
	c.Physical, _ = cpu.CountsWithContext(ctx, false)
	if infos, err := cpu.InfoWithContext(ctx); err == nil && len(infos) > 0 {
		c.Model = infos[0].ModelName
		c.FreqMHz = infos[0].Mhz
	}
	if avg, err := load.AvgWithContext(ctx); err == nil && avg != nil {
		c.Load1, c.Load5, c.Load15 = avg.Load1, avg.Load5, avg.Load15
		c.LoadStatus = model.Available
	}
	return c, nil
}

// cpuPercents derives usage from the times delta since the previous call.
func (b *base) cpuPercents(ctx context.Context) (total float64, perCore []float64, err error) {
	times, err := cpu.TimesWithContext(ctx, false)
	if err != nil {
		return 0, nil, fmt.Errorf("cpu times: %w", err)
	}
	if len(times) == 0 {
		return 0, nil, errors.New("cpu times: empty")
	}
	cur := times[0]
	curTotal := cur.Total()
	curIdle := cur.Idle + cur.Iowait
	if b.prevTotal > 0 {
		dt := curTotal - b.prevTotal
		di := curIdle - b.prevIdle
		if dt > 0 {
			total = 100 * (1 - di/dt)
		}
	}
	b.prevTotal, b.prevIdle = curTotal, curIdle

	coreTimes, _ := cpu.TimesWithContext(ctx, true)
	perCore = make([]float64, len(coreTimes))
	for i, c := range coreTimes {
		if i >= len(b.prevCore) {
			continue
		}
		prev := b.prevCore[i]
		dt := c.Total() - prev.Total()
		di := (c.Idle + c.Iowait) - (prev.Idle + prev.Iowait)
		if dt > 0 {
			perCore[i] = 100 * (1 - di/dt)
		}
	}
	b.prevCore = coreTimes
	return total, perCore, nil
}

func (b *base) Memory(ctx context.Context) (model.Memory, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return model.Memory{}, fmt.Errorf("virtual memory: %w", err)
	}
	m := model.Memory{
		Total:       vm.Total,
		Used:        vm.Used,
		Available:   vm.Available,
		UsedPercent: vm.UsedPercent,
	}
	if sw, err := mem.SwapMemoryWithContext(ctx); err == nil {
		m.SwapTotal, m.SwapUsed, m.SwapPercent = sw.Total, sw.Used, sw.UsedPercent
	}
	return m, nil
}

func (b *base) Disk(ctx context.Context, path string) (model.Disk, error) {
	usage, err := disk.UsageWithContext(ctx, path)
	if err != nil {
		return model.Disk{}, fmt.Errorf("disk usage %s: %w", path, err)
	}
	d := model.Disk{
		Path: path,
		Primary: model.Mount{
			Mountpoint:  path,
			FSType:      usage.Fstype,
			Total:       usage.Total,
			Used:        usage.Used,
			Free:        usage.Free,
			UsedPercent: usage.UsedPercent,
			Accessible:  true,
		},
		IOStatus: model.Unavailable,
	}

	parts, err := disk.PartitionsWithContext(ctx, false)
	if err != nil {
		return model.Disk{}, fmt.Errorf("disk partitions: %w", err)
	}
	best := -1
	for _, p := range parts {
		m := model.Mount{Device: p.Device, Mountpoint: p.Mountpoint, FSType: p.Fstype}
		if u, err := disk.UsageWithContext(ctx, p.Mountpoint); err == nil {
			m.Total, m.Used, m.Free, m.UsedPercent = u.Total, u.Used, u.Free, u.UsedPercent
			m.Accessible = true
		}
		d.Mounts = append(d.Mounts, m)
		if within(path, p.Mountpoint) && len(p.Mountpoint) > best {
			best = len(p.Mountpoint)
			d.Primary.Device = p.Device
			d.Primary.Mountpoint = p.Mountpoint
		}
	}

	if counters, err := disk.IOCountersWithContext(ctx); err == nil && len(counters) > 0 {
		for name, st := range counters {
			if strings.HasPrefix(name, "loop") {
				continue
			}
			d.IO.ReadBytes += st.ReadBytes
			d.IO.WriteBytes += st.WriteBytes
			d.IO.ReadCount += st.ReadCount
			d.IO.WriteCount += st.WriteCount
		}
		d.IOStatus = model.Available
	}
	return d, nil
}

// within reports whether path lives on the filesystem mounted at mountpoint.
func within(path, mountpoint string) bool {
	if strings.EqualFold(path, mountpoint) {
		return true
	}
	rel, err := filepath.Rel(mountpoint, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func (b *base) Network(ctx context.Context) (model.Network, error) {
	counters, err := net.IOCountersWithContext(ctx, false)
	if err != nil {
		return model.Network{}, fmt.Errorf("net counters: %w", err)
	}
	n := model.Network{ConnectionsStatus: model.Unavailable}
	if len(counters) > 0 {
		c := counters[0]
		n.BytesSent, n.BytesRecv = c.BytesSent, c.BytesRecv
		n.PacketsSent, n.PacketsRecv = c.PacketsSent, c.PacketsRecv
		n.ErrIn, n.ErrOut = c.Errin, c.Errout
	}

	ifaces, err := net.InterfacesWithContext(ctx)
	if err != nil {
		return model.Network{}, fmt.Errorf("net interfaces: %w", err)
	}
	for _, ifc := range ifaces {
		i := model.Interface{Name: ifc.Name}
		for _, f := range ifc.Flags {
			switch f {
			case "up":
				i.Up = true
			case "loopback":
				i.Loopback = true
			}
		}
		for _, a := range ifc.Addrs {
			i.Addrs = append(i.Addrs, a.Addr)
		}
		n.Interfaces = append(n.Interfaces, i)
	}
	sort.Slice(n.Interfaces, func(i, j int) bool { return n.Interfaces[i].Name < n.Interfaces[j].Name })

	// Connection tables need elevated rights on some platforms.
	if conns, err := net.ConnectionsWithContext(ctx, "inet"); err == nil {
		for _, c := range conns {
			if c.Status == "ESTABLISHED" {
				n.Connections++
			}
		}
		n.ConnectionsStatus = model.Available
	}
	return n, nil
}

func (b *base) sensors(ctx context.Context) (model.Temperature, error) {
	temps, err := host.SensorsTemperaturesWithContext(ctx)
	var sensors []model.Sensor
	for _, t := range temps {
		if t.Temperature <= 0 {
			continue
		}
		sensors = append(sensors, model.Sensor{
			Label:    t.SensorKey,
			Celsius:  t.Temperature,
			High:     t.High,
			Critical: t.Critical,
		})
	}
	if len(sensors) > 0 {
		return model.Temperature{Status: model.Available, Sensors: sensors}, nil
	}
	if err != nil && errors.Is(err, fs.ErrPermission) {
		return model.Temperature{}, fmt.Errorf("sensors: %w", err)
	}
	return model.Temperature{Status: model.Unavailable}, nil
}

func (b *base) Processes(ctx context.Context) ([]model.ProcessInfo, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("process list: %w", err)
	}
	out := make([]model.ProcessInfo, 0, len(procs))
	for _, p := range procs {
		// Processes vanish or deny access between listing and reading.
		name, err := p.NameWithContext(ctx)
		if err != nil || name == "" {
			continue
		}
		info := model.ProcessInfo{PID: p.Pid, Name: name}
		if mi, err := p.MemoryInfoWithContext(ctx); err == nil && mi != nil {
			info.RSS = mi.RSS
		}
		info.CPUPercent, _ = p.CPUPercentWithContext(ctx)
		if pct, err := p.MemoryPercentWithContext(ctx); err == nil {
			info.MemoryPercent = float64(pct)
		}
		if ms, err := p.CreateTimeWithContext(ctx); err == nil {
			info.CreateTime = time.UnixMilli(ms)
		}
		if user, err := p.UsernameWithContext(ctx); err == nil {
			if i := strings.LastIndex(user, `\`); i >= 0 {
				user = user[i+1:]
			}
			info.Username = user
		}
		if st, err := p.StatusWithContext(ctx); err == nil && len(st) > 0 {
			info.Status = st[0]
		}
		out = append(out, info)
	}
	return out, nil
}

func (b *base) StartupEntries(ctx context.Context) ([]model.ProcessInfo, error) {
	boot, err := host.BootTimeWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("boot time: %w", err)
	}
	procs, err := b.Processes(ctx)
	if err != nil {
		return nil, err
	}
	return StartedWithin(procs, time.Unix(int64(boot), 0), StartupWindow), nil
}

func (b *base) Users(ctx context.Context) (model.Users, error) {
	stats, err := host.UsersWithContext(ctx)
	if errors.Is(err, fs.ErrNotExist) {
		return model.Users{Status: model.Available}, nil
	}
	if err != nil {
		return model.Users{}, fmt.Errorf("users: %w", err)
	}
	u := model.Users{Status: model.Available, Sessions: make([]model.UserSession, 0, len(stats))}
	for _, st := range stats {
		u.Sessions = append(u.Sessions, model.UserSession{
			User:     st.User,
			Terminal: st.Terminal,
			Host:     st.Host,
			Started:  time.Unix(int64(st.Started), 0),
		})
	}
	return u, nil
}

// CPUFreq reports the cpuinfo clock; the hardware range is unknown here.
func (b *base) CPUFreq(ctx context.Context) (model.CPUFreq, error) {
	infos, err := cpu.InfoWithContext(ctx)
	if err != nil {
		return model.CPUFreq{}, fmt.Errorf("cpu info: %w", err)
	}
	if len(infos) == 0 || infos[0].Mhz <= 0 {
		return model.CPUFreq{Status: model.Unavailable}, nil
	}
	return model.CPUFreq{Status: model.Available, CurrentMHz: infos[0].Mhz}, nil
}

// StartedWithin keeps the processes created no later than window after boot.
func StartedWithin(procs []model.ProcessInfo, boot time.Time, window time.Duration) []model.ProcessInfo {
	cutoff := boot.Add(window)
	var out []model.ProcessInfo
	for _, p := range procs {
		if p.CreateTime.IsZero() || p.CreateTime.After(cutoff) {
			continue
		}
		out = append(out, p)
	}
	return out
}
