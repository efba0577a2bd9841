package engine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Dicklesworthstone/osdiag/internal/diagnose"
	"github.com/Dicklesworthstone/osdiag/internal/health"
	"github.com/Dicklesworthstone/osdiag/internal/model"
	"github.com/Dicklesworthstone/osdiag/internal/source"
	"github.com/Dicklesworthstone/osdiag/internal/source/sourcetest"
)

func healthyFake() *sourcetest.Fake {
	return &sourcetest.Fake{
		HostInfo: model.Host{Hostname: "box", Platform: "ubuntu", Uptime: time.Hour},
		CPUs:     []model.CPU{{Usage: 15, Model: "Test CPU", Logical: 4}},
		Memories: []model.Memory{{Total: 100, Used: 42, UsedPercent: 42}},
		Disks:    []model.Disk{{Primary: model.Mount{Total: 100, UsedPercent: 55, Accessible: true}}},
		Networks: []model.Network{{Interfaces: []model.Interface{{Name: "eth0", Up: true}}}},
	}
}

func started(t *testing.T, fake *sourcetest.Fake) *Engine {
	t.Helper()
	e := New(Options{DiskPath: "/", NewAdapter: func() source.Adapter { return fake }})
	if _, err := e.Initialize(context.Background()); err != nil {
		t.Fatal(err)
	}
	return e
}

func TestOperationsRequireSession(t *testing.T) {
	e := New(Options{NewAdapter: func() source.Adapter { return healthyFake() }})
	for _, tool := range Tools() {
		if tool.Name == OpInitialize {
			continue
		}
		t.Run(tool.Name, func(t *testing.T) {
			_, err := e.Call(context.Background(), tool.Name, Args{IntervalSeconds: 1})
			if !errors.Is(err, model.ErrNotInitialized) || model.KindOf(err) != model.KindNotInitialized {
				t.Errorf("got %v, want NotInitialized", err)
			}
		})
	}
}

func TestInitializeIdentity(t *testing.T) {
	e := started(t, healthyFake())
	id, err := e.Identity()
	if err != nil {
		t.Fatal(err)
	}
	if id.OS != "linux" || id.Hostname != "box" || id.CPUModel != "Test CPU" || id.TempDir == "" {
		t.Errorf("identity: %+v", id)
	}
}

func TestInitializeReplacesAdapter(t *testing.T) {
	var made []*sourcetest.Fake
	e := New(Options{NewAdapter: func() source.Adapter {
		f := healthyFake()
		made = append(made, f)
		return f
	}})
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := e.Initialize(ctx); err != nil {
			t.Fatal(err)
		}
	}
	for i, f := range made {
		if want := i < 2; f.Closed() != want {
			t.Errorf("adapter %d closed=%v, want %v", i, f.Closed(), want)
		}
	}
	if err := e.Close(); err != nil || !made[2].Closed() || e.Initialized() {
		t.Errorf("close: err=%v closed=%v", err, made[2].Closed())
	}
}

// gated blocks Memory reads until released.
type gated struct {
	*sourcetest.Fake
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gated) Memory(ctx context.Context) (model.Memory, error) {
	g.once.Do(func() { close(g.entered) })
	<-g.release
	return g.Fake.Memory(ctx)
}

func TestReinitializeWaitsForMonitor(t *testing.T) {
	first := &gated{Fake: healthyFake(), entered: make(chan struct{}), release: make(chan struct{})}
	adapters := []source.Adapter{first, healthyFake()}
	var n int
	e := New(Options{DiskPath: "/", NewAdapter: func() source.Adapter {
		a := adapters[n]
		n++
		return a
	}})
	ctx := context.Background()
	if _, err := e.Initialize(ctx); err != nil {
		t.Fatal(err)
	}

	monitorDone := make(chan error, 1)
	go func() {
		_, err := e.ResourceMonitor(ctx, 1, nil)
		monitorDone <- err
	}()
	<-first.entered

	initDone := make(chan struct{})
	go func() {
		e.Initialize(ctx)
		close(initDone)
	}()

	select {
	case <-initDone:
		t.Fatal("initialize finished while the monitor was in flight")
	case <-time.After(100 * time.Millisecond):
	}
	if first.Closed() {
		t.Fatal("adapter closed under a running monitor")
	}

	close(first.release)
	if err := <-monitorDone; err != nil {
		t.Fatal(err)
	}
	<-initDone
	if !first.Closed() {
		t.Error("old adapter not closed after re-initialize")
	}
}

func TestMonitorWindowsDoNotOverlap(t *testing.T) {
	if testing.Short() {
		t.Skip("blocks for two seconds")
	}
	e := started(t, healthyFake())
	ctx := context.Background()

	start := time.Now()
	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.ResourceMonitor(ctx, 1, nil)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatal(err)
		}
	}
	if elapsed := time.Since(start); elapsed < 1900*time.Millisecond {
		t.Errorf("two 1s windows finished in %s, want them serialized", elapsed)
	}
}

func TestRunningProcessesLimit(t *testing.T) {
	fake := healthyFake()
	for i := 0; i < 80; i++ {
		fake.Procs = append(fake.Procs, model.ProcessInfo{PID: int32(i + 1), Name: fmt.Sprintf("p%d", i), RSS: uint64(i) << 20})
	}
	e := started(t, fake)

	r, err := e.RunningProcesses(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(r.Records) != 10 || r.Total != 80 {
		t.Fatalf("got %d records of %d", len(r.Records), r.Total)
	}
	for i := 1; i < len(r.Records); i++ {
		if r.Records[i].Memory > r.Records[i-1].Memory {
			t.Fatalf("not sorted at %d", i)
		}
	}
	if r, _ := e.RunningProcesses(context.Background(), 1000); len(r.Records) != 50 {
		t.Errorf("limit 1000: got %d records, want 50", len(r.Records))
	}
}

func TestRunningProcessesFailure(t *testing.T) {
	fake := healthyFake()
	fake.ProcessErr = errors.New("access denied")
	e := started(t, fake)

	if _, err := e.RunningProcesses(context.Background(), 5); model.KindOf(err) != model.KindPartialFailure {
		t.Errorf("got %v, want PartialFailure", err)
	}
}

func TestDiagnoseSlowPerformance(t *testing.T) {
	fake := healthyFake()
	e := started(t, fake)

	r, err := e.DiagnoseSlowPerformance(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if r.Verdict != diagnose.NoBottleneck {
		t.Errorf("healthy host: %s %v", r.Verdict, r.Bottlenecks)
	}

	fake.Memories = []model.Memory{{Total: 100, Used: 92, UsedPercent: 92}}
	fake.Disks = []model.Disk{{Primary: model.Mount{Total: 100, UsedPercent: 92, Accessible: true}}}
	r, err = e.DiagnoseSlowPerformance(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if top, ok := r.Top(); !ok || top.Resource != health.Memory {
		t.Errorf("top bottleneck: %+v", r.Bottlenecks)
	}
}

func TestDiagnoseReusesProcessList(t *testing.T) {
	boot := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	fake := healthyFake()
	fake.HostInfo.BootTime = boot
	fake.Procs = []model.ProcessInfo{
		{PID: 1, Name: "systemd", RSS: 8 << 20, CreateTime: boot.Add(time.Second)},
		{PID: 2, Name: "dropbox", RSS: 90 << 20, CreateTime: boot.Add(2 * time.Minute)},
		{PID: 3, Name: "vim", RSS: 4 << 20, CreateTime: boot.Add(3 * time.Hour)},
	}
	e := started(t, fake)

	r, err := e.DiagnoseSlowPerformance(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if r.Startup.Count != 2 || r.Startup.Records[0].Name != "dropbox" {
		t.Errorf("startup: %+v", r.Startup)
	}
	if n := fake.Calls("processes"); n != 1 {
		t.Errorf("process list read %d times, want 1", n)
	}
	if n := fake.Calls("startup"); n != 0 {
		t.Errorf("startup entries read %d times, want 0", n)
	}
}

func TestSingleFieldFailureIsAnnotated(t *testing.T) {
	fake := healthyFake()
	fake.Errs = map[model.Field]error{model.FieldNetwork: errors.New("device busy")}
	e := started(t, fake)

	r, err := e.NetworkInfo(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if r.Failure == nil || r.Failure.Field != model.FieldNetwork || r.Failure.Kind != model.KindPartialFailure {
		t.Errorf("failure: %+v", r.Failure)
	}

	o, err := e.SystemOverview(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !o.Snapshot.Failed(model.FieldNetwork) || o.Health.Tier != health.Excellent {
		t.Errorf("overview: failures %v tier %s", o.Snapshot.Failures, o.Health.Tier)
	}
}

func TestBatteryAndTemperatureAbsent(t *testing.T) {
	e := started(t, healthyFake())
	ctx := context.Background()

	b, err := e.BatteryInfo(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if b.Battery.Status != model.NotApplicable || b.State != "" {
		t.Errorf("battery: %+v", b)
	}
	temp, err := e.TemperatureInfo(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if temp.Status != model.Unavailable || len(temp.Sensors) != 0 {
		t.Errorf("temperature: %+v", temp)
	}
}

func TestTemperatureInfo(t *testing.T) {
	fake := healthyFake()
	fake.Temp = model.Temperature{Status: model.Available, Sensors: []model.Sensor{{Label: "core0", Celsius: 72}}}
	e := started(t, fake)

	r, err := e.TemperatureInfo(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(r.Sensors) != 1 || r.Sensors[0].Status != health.Hot {
		t.Errorf("sensors: %+v", r.Sensors)
	}
}

func TestDiskUsageTiers(t *testing.T) {
	fake := healthyFake()
	fake.Disks = []model.Disk{{
		Primary: model.Mount{Total: 100, UsedPercent: 97, Accessible: true},
		Mounts: []model.Mount{
			{Mountpoint: "/", Total: 100, UsedPercent: 97, Accessible: true},
			{Mountpoint: "/mnt/cd"},
		},
	}}
	e := started(t, fake)

	r, err := e.DiskUsage(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if r.Path != "/" || r.Primary.Tier != health.Critical {
		t.Errorf("primary: %s %+v", r.Path, r.Primary)
	}
	if r.Mounts[1].Tier != "" {
		t.Errorf("inaccessible mount rated: %+v", r.Mounts[1])
	}
}

func TestFindLargeFiles(t *testing.T) {
	e := started(t, healthyFake())

	_, err := e.FindLargeFiles(context.Background(), FindArgs{Directory: filepath.Join(t.TempDir(), "missing")})
	if model.KindOf(err) != model.KindInvalidArgument {
		t.Errorf("got %v, want InvalidArgument", err)
	}
	r, err := e.FindLargeFiles(context.Background(), FindArgs{Directory: t.TempDir()})
	if err != nil || len(r.Entries) != 0 {
		t.Errorf("empty dir: %+v %v", r, err)
	}
}

func TestCallUnknownTool(t *testing.T) {
	e := started(t, healthyFake())
	if _, err := e.Call(context.Background(), "clean_temp_files", Args{}); !errors.Is(err, ErrUnknownTool) {
		t.Errorf("got %v", err)
	}
}

func TestStateOf(t *testing.T) {
	tests := []struct {
		b    model.Battery
		want BatteryState
	}{
		{model.Battery{Status: model.NotApplicable}, ""},
		{model.Battery{Status: model.Available, Percent: 100, Plugged: true}, BatteryFull},
		{model.Battery{Status: model.Available, Percent: 60, Plugged: true}, BatteryCharging},
		{model.Battery{Status: model.Available, Percent: 60}, BatteryDischarging},
		{model.Battery{Status: model.Available, Percent: 12}, BatteryLow},
	}
	for _, tt := range tests {
		if got := StateOf(tt.b); got != tt.want {
			t.Errorf("StateOf(%+v) = %q, want %q", tt.b, got, tt.want)
		}
	}
}

func TestUserInfo(t *testing.T) {
	at := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	fake := healthyFake()
	fake.Sessions = model.Users{Status: model.Available, Sessions: []model.UserSession{
		{User: "ana", Terminal: "pts/0", Host: "10.0.0.5", Started: at},
		{User: "ana", Terminal: "pts/1", Started: at},
	}}
	e := started(t, fake)

	r, err := e.UserInfo(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if r.Current.Username == "" || r.Current.HomeDir == "" || r.WorkDir == "" || r.TempDir == "" {
		t.Errorf("environment: %+v", r)
	}
	if r.SessionsStatus != model.Available || len(r.Sessions) != 1 || r.Sessions[0].Count != 2 {
		t.Errorf("sessions: %s %+v", r.SessionsStatus, r.Sessions)
	}

	fake.Errs = map[model.Field]error{model.FieldUsers: errors.New("utmp unreadable")}
	r, err = e.UserInfo(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if r.SessionsStatus != model.Unavailable || r.Failure == nil || r.Failure.Field != model.FieldUsers {
		t.Errorf("failed read: %s %+v", r.SessionsStatus, r.Failure)
	}
}

func TestPowerSettings(t *testing.T) {
	fake := healthyFake()
	fake.Batt = model.Battery{Status: model.Available, Percent: 64, SecondsLeft: 5400}
	fake.Freq = model.CPUFreq{Status: model.Available, CurrentMHz: 1000, MinMHz: 400, MaxMHz: 3600}
	e := started(t, fake)

	r, err := e.PowerSettings(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if r.Battery.State != BatteryDischarging || r.Mode != diagnose.PowerSaver || len(r.Settings) == 0 || r.Failure != nil {
		t.Errorf("got %+v", r)
	}

	fake.Batt = model.Battery{}
	fake.Errs = map[model.Field]error{model.FieldCPUFreq: errors.New("cpuinfo unreadable")}
	r, err = e.PowerSettings(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if r.Battery.Battery.Status != model.NotApplicable || r.Frequency.Status != model.Unavailable || r.Mode != "" {
		t.Errorf("desktop without cpufreq: %+v", r)
	}
	if r.Failure == nil || r.Failure.Field != model.FieldCPUFreq {
		t.Errorf("failure: %+v", r.Failure)
	}
}
