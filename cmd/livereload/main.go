// Command livereload watches an application's source tree and resets
// connected development windows when files change. Windows attach over a
// websocket endpoint; a change to the entry-point file relaunches the
// configured executable instead.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"livereload"
	"livereload/internal/logging"
	"livereload/internal/wsbridge"
)

type cliConfig struct {
	Glob       string
	Entry      string
	Addr       string
	ConfigFile string
	Options    livereload.Options
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg, err := parseArgs(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	level, _ := logging.ParseLevel(cfg.Options.LogLevel)
	output := io.Writer(os.Stdout)
	if cfg.Options.Quiet {
		output = io.Discard
	}
	logger := logging.NewLoggerWithOutput(level, output)
	cfg.Options.Logger = logger

	session, err := livereload.Start(cfg.Glob, cfg.Entry, cfg.Options)
	if err != nil {
		logger.Error("start failed", map[string]string{
			"error": err.Error(),
		})
		return 1
	}
	defer session.Close()

	bridge := wsbridge.NewBridge(logger, nil)
	defer bridge.Close()
	windows, cancel := bridge.Windows()
	defer cancel()
	session.Registry().Consume(windows)

	mux := http.NewServeMux()
	mux.Handle("/livereload", bridge)

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errs := make(chan error, 1)
	go func() {
		errs <- server.ListenAndServe()
	}()

	logger.Info("livereload listening", map[string]string{
		"addr":  cfg.Addr,
		"glob":  cfg.Glob,
		"entry": cfg.Entry,
	})

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	select {
	case sig := <-signals:
		logger.Info("shutting down", map[string]string{
			"signal": sig.String(),
		})
	case err := <-errs:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server stopped", map[string]string{
				"error": err.Error(),
			})
			return 1
		}
	}
	_ = server.Close()
	return 0
}

func parseArgs(args []string) (cliConfig, error) {
	flags := flag.NewFlagSet("livereload", flag.ContinueOnError)
	addr := flags.String("addr", ":35729", "websocket listen address")
	configFile := flags.String("config", "", "options file (YAML)")
	exec := flags.String("exec", "", "relaunch executable enabling hard resets")
	method := flags.String("hard-reset-method", "", "termination method: quit or exit")
	force := flags.Bool("force-hard-reset", false, "treat every change as a hard reset")
	logLevel := flags.String("log-level", "", "debug, info, warning or error")
	if err := flags.Parse(args); err != nil {
		return cliConfig{}, err
	}
	rest := flags.Args()
	if len(rest) != 2 {
		return cliConfig{}, fmt.Errorf("usage: livereload [flags] <glob> <entry>")
	}

	cfg := cliConfig{
		Glob:       rest[0],
		Entry:      rest[1],
		Addr:       *addr,
		ConfigFile: *configFile,
	}
	if cfg.ConfigFile != "" {
		opts, err := livereload.LoadOptions(cfg.ConfigFile)
		if err != nil {
			return cliConfig{}, err
		}
		cfg.Options = opts
	}
	if *exec != "" {
		cfg.Options.Exec = *exec
	}
	if *method != "" {
		cfg.Options.HardResetMethod = *method
	}
	if *force {
		cfg.Options.ForceHardReset = true
	}
	if *logLevel != "" {
		cfg.Options.LogLevel = *logLevel
	}
	return cfg, nil
}
