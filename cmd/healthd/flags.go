package main

import (
	"flag"

	"github.com/equipwatch/equipwatch/internal/config"
)

// Flags are the command-line options of healthd. Anything not set here comes
// from the config file or EQUIPWATCH_* environment variables.
type Flags struct {
	ConfigPath  string
	Host        string
	Port        int
	LogLevel    string
	StorageRoot string
	ShowVersion bool
}

func parseFlags() *Flags {
	f := &Flags{}

	flag.StringVar(&f.ConfigPath, "config", "", "path to configuration file")
	flag.StringVar(&f.Host, "host", "", "HTTP listen host (overrides config)")
	flag.IntVar(&f.Port, "port", 0, "HTTP listen port (overrides config)")
	flag.StringVar(&f.LogLevel, "log-level", "", "log level: debug, info, warn, error (overrides config)")
	flag.StringVar(&f.StorageRoot, "storage-root", "", "model storage root directory (overrides config)")
	flag.BoolVar(&f.ShowVersion, "version", false, "print version and exit")

	flag.Parse()
	return f
}

func applyFlagOverrides(cfg *config.Config, f *Flags) {
	if f.Host != "" {
		cfg.Server.Host = f.Host
	}
	if f.Port != 0 {
		cfg.Server.Port = f.Port
	}
	if f.LogLevel != "" {
		cfg.Logging.Level = f.LogLevel
	}
	if f.StorageRoot != "" {
		cfg.Lifecycle.StorageRoot = f.StorageRoot
	}
}
