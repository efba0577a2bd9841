package source

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Dicklesworthstone/osdiag/internal/model"
)

var fieldOrder = map[model.Field]int{
	model.FieldHost:        0,
	model.FieldCPU:         1,
	model.FieldMemory:      2,
	model.FieldDisk:        3,
	model.FieldNetwork:     4,
	model.FieldBattery:     5,
	model.FieldTemperature: 6,
}

// Collect reads every subsystem of a concurrently and returns a normalized
// snapshot. A failed read leaves its field zeroed and annotated as a
// PartialFailure; Collect itself never fails.
func Collect(ctx context.Context, a Adapter, diskPath string) model.Snapshot {
	snap := model.Snapshot{Timestamp: time.Now()}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	fail := func(f model.Field, err error) {
		mu.Lock()
		snap.Failures = append(snap.Failures, model.Annotate(f, err))
		mu.Unlock()
	}
	read := func(f model.Field, fn func() error) {
		g.Go(func() error {
			if err := fn(); err != nil {
				fail(f, err)
			}
			return nil
		})
	}

	read(model.FieldHost, func() (err error) {
		snap.Host, err = a.Host(ctx)
		return err
	})
	read(model.FieldCPU, func() (err error) {
		snap.CPU, err = a.CPU(ctx)
		return err
	})
	read(model.FieldMemory, func() (err error) {
		snap.Memory, err = a.Memory(ctx)
		return err
	})
	read(model.FieldDisk, func() (err error) {
		snap.Disk, err = a.Disk(ctx, diskPath)
		return err
	})
	read(model.FieldNetwork, func() (err error) {
		snap.Network, err = a.Network(ctx)
		return err
	})
	read(model.FieldBattery, func() (err error) {
		snap.Battery, err = a.Battery(ctx)
		return err
	})
	read(model.FieldTemperature, func() (err error) {
		snap.Temperature, err = a.Temperature(ctx)
		return err
	})
	_ = g.Wait()

	sort.Slice(snap.Failures, func(i, j int) bool {
		return fieldOrder[snap.Failures[i].Field] < fieldOrder[snap.Failures[j].Field]
	})
	return Normalize(snap)
}

// Normalize clamps every percentage into [0,100] and fills availability
// markers an adapter left empty.
func Normalize(s model.Snapshot) model.Snapshot {
	s.CPU.Usage = model.ClampPercent(s.CPU.Usage)
	if len(s.CPU.PerCore) > 0 {
		cores := make([]float64, len(s.CPU.PerCore))
		for i, v := range s.CPU.PerCore {
			cores[i] = model.ClampPercent(v)
		}
		s.CPU.PerCore = cores
	}
	if s.CPU.LoadStatus == "" {
		s.CPU.LoadStatus = model.Unavailable
	}

	if s.Memory.UsedPercent == 0 && s.Memory.Total > 0 {
		s.Memory.UsedPercent = model.Percent(s.Memory.Used, s.Memory.Total)
	}
	s.Memory.UsedPercent = model.ClampPercent(s.Memory.UsedPercent)
	if s.Memory.SwapPercent == 0 && s.Memory.SwapTotal > 0 {
		s.Memory.SwapPercent = model.Percent(s.Memory.SwapUsed, s.Memory.SwapTotal)
	}
	s.Memory.SwapPercent = model.ClampPercent(s.Memory.SwapPercent)

	s.Disk.Primary.UsedPercent = model.ClampPercent(s.Disk.Primary.UsedPercent)
	if len(s.Disk.Mounts) > 0 {
		mounts := make([]model.Mount, len(s.Disk.Mounts))
		for i, m := range s.Disk.Mounts {
			m.UsedPercent = model.ClampPercent(m.UsedPercent)
			mounts[i] = m
		}
		s.Disk.Mounts = mounts
	}
	if s.Disk.IOStatus == "" {
		s.Disk.IOStatus = model.Unavailable
	}
	if s.Network.ConnectionsStatus == "" {
		s.Network.ConnectionsStatus = model.Unavailable
	}

	switch s.Battery.Status {
	case "":
		s.Battery = model.Battery{Status: model.NotApplicable, SecondsLeft: model.BatteryTimeUnknown}
	case model.Available:
		s.Battery.Percent = model.ClampPercent(s.Battery.Percent)
	}
	if s.Temperature.Status == "" {
		s.Temperature.Status = model.Unavailable
	}
	return s
}
