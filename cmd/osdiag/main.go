package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hashicorp/go-hclog"

	"github.com/Dicklesworthstone/osdiag/internal/config"
	"github.com/Dicklesworthstone/osdiag/internal/engine"
	"github.com/Dicklesworthstone/osdiag/internal/server"
	"github.com/Dicklesworthstone/osdiag/internal/source"
	"github.com/Dicklesworthstone/osdiag/internal/ui"
)

const version = "0.3.0"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cmd := os.Args[1]

	switch cmd {
	case "tools":
		handleTools()
	case "run":
		handleRun(os.Args[2:])
	case "serve":
		handleServe(os.Args[2:])
	case "watch":
		handleWatch(os.Args[2:])
	case "version":
		fmt.Printf("osdiag %s\n", version)
	case "-h", "--help", "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		usage()
		os.Exit(1)
	}
}

func fatal(log hclog.Logger, msg string, err error) {
	log.Error(msg, "error", err)
	os.Exit(1)
}

func newEngine(cfg config.Config, log hclog.Logger) *engine.Engine {
	return engine.New(engine.Options{
		DiskPath:     cfg.DiskPath,
		ScanTimeout:  cfg.ScanTimeout,
		ScanMaxItems: cfg.ScanMaxItems,
		Logger:       log,
	})
}

func handleTools() {
	for _, t := range engine.Tools() {
		fmt.Printf("%-26s %s\n", t.Name, t.Description)
	}
}

func handleRun(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	var a engine.Args
	fs.IntVar(&a.Limit, "limit", 0, "result limit for running_processes and find_large_files")
	fs.StringVar(&a.Directory, "dir", "", "directory for find_large_files (default: home)")
	fs.Float64Var(&a.MinSizeMB, "min-size-mb", 0, "minimum file size for find_large_files")
	fs.IntVar(&a.IntervalSeconds, "interval-seconds", 0, "window of resource_monitor")
	cfg, err := config.Parse(fs, args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "run takes exactly one tool name; see `osdiag tools`")
		fs.Usage()
		os.Exit(2)
	}
	op := fs.Arg(0)
	log := cfg.Logger(os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e := newEngine(cfg, log)
	defer e.Close()
	if op != engine.OpInitialize {
		if _, err := e.Initialize(ctx); err != nil {
			fatal(log, "initialize", err)
		}
	}
	out, err := e.Call(ctx, op, a)
	if err != nil {
		fatal(log, op, err)
	}

	if !cfg.JSON {
		fmt.Println(ui.Render(op, out))
		return
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		fatal(log, "encode result", err)
	}
	_, _ = os.Stdout.Write(append(data, '\n'))
}

func handleServe(args []string) {
	cfg, err := config.Parse(flag.NewFlagSet("serve", flag.ExitOnError), args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	log := cfg.Logger(os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e := newEngine(cfg, log)
	defer e.Close()
	if err := server.New(e, log, version).Run(ctx, cfg.Listen); err != nil {
		fatal(log, "serve", err)
	}
	log.Info("stopped")
}

func handleWatch(args []string) {
	cfg, err := config.Parse(flag.NewFlagSet("watch", flag.ExitOnError), args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	src := source.Detect()
	defer src.Close()
	if err := ui.RunTUI(cfg, src); err != nil {
		fatal(cfg.Logger(os.Stderr), "watch", err)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `usage: %s <command> [flags]

commands:
  tools               list the diagnostic tools
  run [flags] <tool>  run one tool and print its result
  serve [flags]       serve the tools over HTTP and websocket
  watch [flags]       live terminal dashboard
  version             print the version

shared flags:
  -config FILE  -disk PATH  -interval DUR  -scan-timeout DUR  -scan-max-items N
  -listen ADDR  -log-level LEVEL  -log-json  -json

examples:
  %s run system_overview
  %s run -limit 10 running_processes
  %s run -dir /var/log -min-size-mb 50 find_large_files
  %s serve -listen 127.0.0.1:8765
`, os.Args[0], os.Args[0], os.Args[0], os.Args[0], os.Args[0])
}
