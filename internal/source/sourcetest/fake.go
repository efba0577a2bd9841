// Package sourcetest provides a scripted source.Adapter for tests.
package sourcetest

import (
	"context"
	"sync"

	"github.com/Dicklesworthstone/osdiag/internal/model"
)

// Fake replays scripted readings. Sequence fields advance one element per
// call and repeat their last element once exhausted.
type Fake struct {
	OS         string
	HostInfo   model.Host
	CPUs       []model.CPU
	Memories   []model.Memory
	Disks      []model.Disk
	Networks   []model.Network
	Batt       model.Battery
	Temp       model.Temperature
	Procs      []model.ProcessInfo
	Startup    []model.ProcessInfo
	Sessions   model.Users
	Freq       model.CPUFreq
	Errs       map[model.Field]error
	ProcessErr error

	mu     sync.Mutex
	calls  map[string]int
	closed bool
}

func (f *Fake) next(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	n := f.calls[name]
	f.calls[name]++
	return n
}

// Calls returns how often the named read ran.
func (f *Fake) Calls(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

// Closed reports whether Close was called.
func (f *Fake) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func pick[T any](seq []T, i int) T {
	var zero T
	if len(seq) == 0 {
		return zero
	}
	if i >= len(seq) {
		i = len(seq) - 1
	}
	return seq[i]
}

func (f *Fake) Name() string {
	if f.OS == "" {
		return "linux"
	}
	return f.OS
}

func (f *Fake) Host(ctx context.Context) (model.Host, error) {
	f.next("host")
	return f.HostInfo, f.Errs[model.FieldHost]
}

func (f *Fake) CPU(ctx context.Context) (model.CPU, error) {
	i := f.next("cpu")
	if err := f.Errs[model.FieldCPU]; err != nil {
		return model.CPU{}, err
	}
	return pick(f.CPUs, i), nil
}

func (f *Fake) Memory(ctx context.Context) (model.Memory, error) {
	i := f.next("memory")
	if err := f.Errs[model.FieldMemory]; err != nil {
		return model.Memory{}, err
	}
	return pick(f.Memories, i), nil
}

func (f *Fake) Disk(ctx context.Context, path string) (model.Disk, error) {
	i := f.next("disk")
	if err := f.Errs[model.FieldDisk]; err != nil {
		return model.Disk{}, err
	}
	d := pick(f.Disks, i)
	d.Path = path
	return d, nil
}

func (f *Fake) Network(ctx context.Context) (model.Network, error) {
	i := f.next("network")
	if err := f.Errs[model.FieldNetwork]; err != nil {
		return model.Network{}, err
	}
	return pick(f.Networks, i), nil
}

func (f *Fake) Battery(ctx context.Context) (model.Battery, error) {
	f.next("battery")
	if err := f.Errs[model.FieldBattery]; err != nil {
		return model.Battery{}, err
	}
	return f.Batt, nil
}

func (f *Fake) Temperature(ctx context.Context) (model.Temperature, error) {
	f.next("temperature")
	if err := f.Errs[model.FieldTemperature]; err != nil {
		return model.Temperature{}, err
	}
	return f.Temp, nil
}

func (f *Fake) Processes(ctx context.Context) ([]model.ProcessInfo, error) {
	f.next("processes")
	return f.Procs, f.ProcessErr
}

func (f *Fake) StartupEntries(ctx context.Context) ([]model.ProcessInfo, error) {
	f.next("startup")
	return f.Startup, f.ProcessErr
}

func (f *Fake) Users(ctx context.Context) (model.Users, error) {
	f.next("users")
	if err := f.Errs[model.FieldUsers]; err != nil {
		return model.Users{}, err
	}
	return f.Sessions, nil
}

func (f *Fake) CPUFreq(ctx context.Context) (model.CPUFreq, error) {
	f.next("cpu_frequency")
	if err := f.Errs[model.FieldCPUFreq]; err != nil {
		return model.CPUFreq{}, err
	}
	return f.Freq, nil
}

func (f *Fake) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}
