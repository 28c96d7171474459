package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/smackfs/wfs/internal/config"
	"github.com/smackfs/wfs/internal/fuse"
	"github.com/smackfs/wfs/internal/logger"
	"github.com/smackfs/wfs/internal/storage"
	"github.com/smackfs/wfs/internal/usecase"
)

func main() {
	cfg := config.Load()

	configFile := pflag.String("config", "", "optional YAML config file")
	allowOther := pflag.Bool("allow-other", cfg.AllowOther, "allow other users to access the mount")
	readOnly := pflag.Bool("read-only", cfg.ReadOnly, "mount the image read-only")
	logLevel := pflag.String("log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	pflag.Parse()

	if *configFile != "" {
		if err := cfg.MergeFile(*configFile); err != nil {
			fmt.Fprintf(os.Stderr, "error: config file %s: %v\n", *configFile, err)
			os.Exit(1)
		}
	}

	// Flags passed explicitly win over both environment and file.
	if pflag.CommandLine.Changed("allow-other") {
		cfg.AllowOther = *allowOther
	}
	if pflag.CommandLine.Changed("read-only") {
		cfg.ReadOnly = *readOnly
	}
	if pflag.CommandLine.Changed("log-level") {
		cfg.LogLevel = *logLevel
	}

	switch pflag.NArg() {
	case 2:
		cfg.ImagePath = pflag.Arg(0)
		cfg.Mountpoint = pflag.Arg(1)
	case 0:
		// Image and mountpoint come from the config.
	default:
		fmt.Fprintln(os.Stderr, "usage: wfsfuse [flags] <image> <mountpoint>")
		os.Exit(1)
	}

	if cfg.ImagePath == "" || cfg.Mountpoint == "" {
		fmt.Fprintln(os.Stderr, "error: image and mountpoint arguments required")
		os.Exit(1)
	}

	if err := logger.Init(cfg.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "error: logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	store, err := storage.NewStorage(cfg.ImagePath)
	if err != nil {
		logger.Error("failed to open image: %v", err)
		os.Exit(1)
	}

	service := usecase.NewFilesystemService(store)

	server, err := fuse.Mount(fuse.Options{
		Mountpoint: cfg.Mountpoint,
		Service:    service,
		AllowOther: cfg.AllowOther,
		ReadOnly:   cfg.ReadOnly,
	})
	if err != nil {
		store.Close()
		logger.Error("mount failed: %v", err)
		os.Exit(1)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		logger.Info("unmounting %s", cfg.Mountpoint)
		if err := server.Unmount(); err != nil {
			logger.Warn("unmount: %v", err)
		}
	}()

	server.Wait()

	if err := store.Close(); err != nil {
		logger.Error("closing image: %v", err)
	}
}
