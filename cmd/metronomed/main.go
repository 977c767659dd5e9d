package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	sd "github.com/coreos/go-systemd/v22/daemon"

	"metronome/internal/config"
	"metronome/internal/history"
	"metronome/internal/jobs"
	"metronome/internal/watchdog"
	"metronome/pkg/logx"
	"metronome/timer"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "./metronomed.yaml", "path to config file (json or yaml)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}

	var log logx.Logger
	if cfg.Logging.Console {
		log = logx.NewConsole(cfg.Logging.Level)
	} else {
		log = logx.New(os.Stdout, cfg.Logging.Level)
	}

	busy, _ := config.ParseDurationField("history.busy_timeout", cfg.History.BusyTimeout)
	store, err := history.Open(history.Config{
		Driver:      cfg.History.Driver,
		Path:        cfg.History.Path,
		Keep:        cfg.History.Keep,
		BusyTimeout: busy,
	}, log)
	if err != nil {
		log.Error("history open failed", logx.Err(err))
		os.Exit(1)
	}

	opts := []timer.Option{timer.WithLogger(log)}
	if store != nil {
		opts = append(opts, timer.WithRecorder(store))
	}
	tm := timer.New(opts...)
	if err := tm.Run(); err != nil {
		log.Error("timer start failed", logx.Err(err))
		os.Exit(1)
	}

	runner := jobs.NewRunner(tm, log)
	if err := runner.Apply(cfg.Jobs); err != nil {
		log.Error("job registration failed", logx.Err(err))
		os.Exit(1)
	}

	detachWatchdog := func() {}
	if cfg.Watchdog.Enabled {
		detach, err := watchdog.Attach(tm, log)
		if err != nil {
			log.Warn("watchdog attach failed", logx.Err(err))
		} else {
			detachWatchdog = detach
		}
	}

	watcher := config.NewWatcher(cfgPath, log, func(next *config.Config) {
		if err := runner.Apply(next.Jobs); err != nil {
			log.Error("job reload failed", logx.Err(err))
		}
	})
	watcher.Prime()
	go func() {
		if err := watcher.Watch(ctx); err != nil {
			log.Warn("config watch stopped", logx.Err(err))
		}
	}()

	_, _ = sd.SdNotify(false, sd.SdNotifyReady)
	log.Info("metronomed running",
		logx.String("config", cfgPath),
		logx.Int("jobs", runner.Len()))

	<-ctx.Done()

	_, _ = sd.SdNotify(false, sd.SdNotifyStopping)
	log.Info("shutting down")
	detachWatchdog()
	runner.Close()
	tm.Shutdown()
	if store != nil {
		_ = store.Close()
	}
}
