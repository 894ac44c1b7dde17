package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/adocbuilder/internal/config"
	"git.home.luguber.info/inful/adocbuilder/internal/engine"
	"git.home.luguber.info/inful/adocbuilder/internal/executor"
	"git.home.luguber.info/inful/adocbuilder/internal/history"
	"git.home.luguber.info/inful/adocbuilder/internal/logfields"
	"git.home.luguber.info/inful/adocbuilder/internal/metrics"
	"git.home.luguber.info/inful/adocbuilder/internal/observability"
	"git.home.luguber.info/inful/adocbuilder/internal/orchestrator"
	"git.home.luguber.info/inful/adocbuilder/internal/preview"
	"git.home.luguber.info/inful/adocbuilder/internal/version"
)

var CLI struct {
	Config  string `short:"c" help:"Configuration file path" default:"adocbuilder.yaml"`
	Verbose bool   `short:"v" help:"Enable verbose logging"`

	Convert struct {
		KeepWorkDir bool `help:"Keep the intermediate working directory after conversion"`
	} `cmd:"" default:"1" help:"Convert AsciiDoc sources to the configured backends"`

	Init struct {
		Force bool `help:"Overwrite existing configuration file"`
	} `cmd:"" help:"Initialize a new configuration file"`

	Watch struct {
		Addr string `help:"Status server listen address" default:"127.0.0.1:8750"`
	} `cmd:"" help:"Watch sources and reconvert on changes"`

	History struct {
		Limit int `short:"n" help:"Number of invocations to show" default:"10"`
	} `cmd:"" help:"Show recent invocations"`

	Version struct{} `cmd:"" help:"Show version information"`

	ExecBatch struct {
		TransferFile string `arg:"" help:"Batch transfer file path"`
	} `cmd:"" hidden:"" help:"Execute a serialized conversion batch (internal)"`
}

func main() {
	kctx := kong.Parse(&CLI)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var err error
	switch kctx.Command() {
	case "convert":
		err = runConvert(ctx)
	case "init":
		observability.Setup(config.LoggingConfig{}, CLI.Verbose)
		err = config.Init(CLI.Config, CLI.Init.Force)
	case "watch":
		err = runWatch(ctx)
	case "history":
		err = runHistory(ctx)
	case "version":
		fmt.Printf("adocbuilder %s (commit %s, built %s)\n", version.Version, version.GitCommit, version.BuildTime)
	case "exec-batch <transfer-file>":
		err = runExecBatch(ctx)
	}
	if err != nil {
		observability.Log(ctx).Error("command failed", logfields.Error(err))
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(CLI.Config)
	if err != nil {
		return nil, err
	}
	observability.Setup(cfg.Logging, CLI.Verbose)
	return cfg, nil
}

func runConvert(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	deps := orchestrator.Deps{}
	if cfg.HistoryEnabled() {
		store, herr := history.Open(cfg.History.Path)
		if herr != nil {
			observability.Log(ctx).Warn("history unavailable", logfields.Error(herr))
		} else {
			deps.History = store
			defer store.Close()
		}
	}

	svc := orchestrator.NewService(deps)
	_, err = svc.Run(ctx, orchestrator.Request{
		Config:  cfg,
		Options: orchestrator.Options{Verbose: CLI.Verbose, KeepWorkDir: CLI.Convert.KeepWorkDir},
	})
	return err
}

func runWatch(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	reg := prom.NewRegistry()
	deps := orchestrator.Deps{Recorder: metrics.NewPrometheusRecorder(reg)}

	var store *history.Store
	if cfg.HistoryEnabled() {
		if store, err = history.Open(cfg.History.Path); err != nil {
			observability.Log(ctx).Warn("history unavailable", logfields.Error(err))
			store = nil
		} else {
			deps.History = store
			defer store.Close()
		}
	}

	svc := orchestrator.NewService(deps)
	return preview.WatchWith(ctx, cfg, svc, CLI.Watch.Addr, store, reg)
}

func runHistory(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := history.Open(cfg.History.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	recent, err := store.Recent(ctx, CLI.History.Limit)
	if err != nil {
		return err
	}
	for _, inv := range recent {
		fmt.Printf("%s  %-7s  %-16s  %6dms  %s\n",
			inv.StartedAt.Format("2006-01-02 15:04:05"),
			inv.Status, inv.Mode, inv.Duration.Milliseconds(), inv.ID)
	}
	return nil
}

// runExecBatch is the child side of forked execution. It reads the transfer
// file written by the parent and converts the batch inside this process.
func runExecBatch(ctx context.Context) error {
	observability.Setup(config.LoggingConfig{Format: "json"}, CLI.Verbose)
	return executor.RunTransferFile(ctx, CLI.ExecBatch.TransferFile, executor.Deps{
		NewEngine: func() engine.Engine { return engine.NewExec() },
	})
}
