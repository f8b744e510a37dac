package main

import (
	"flag"
	"fmt"
	"strings"

	"github.com/danmuck/stridelink/internal/config"
	"github.com/danmuck/stridelink/internal/logging"
)

type flags struct {
	path     string
	addr     string
	logLevel string
}

func parseFlags(args []string) (flags, error) {
	var f flags
	fs := flag.NewFlagSet("stridectl", flag.ContinueOnError)
	fs.StringVar(&f.path, "config", "stridelink.toml", "config file (.toml, .yaml or .yml)")
	fs.StringVar(&f.addr, "addr", "", "HTTP listen address, overrides http.addr")
	fs.StringVar(&f.logLevel, "log-level", "", "log level, overrides log.level")
	if err := fs.Parse(args); err != nil {
		return flags{}, err
	}
	return f, nil
}

// loadConfig loads the file and applies command line overrides on top.
func loadConfig(f flags) (config.Config, error) {
	cfg, err := config.Load(f.path)
	if err != nil {
		return config.Config{}, err
	}
	if addr := strings.TrimSpace(f.addr); addr != "" {
		cfg.HTTP.Addr = addr
	}
	if lvl := strings.TrimSpace(f.logLevel); lvl != "" {
		if _, ok := logging.ParseLevel(lvl); !ok {
			return config.Config{}, fmt.Errorf("parse log-level: unknown level %q", lvl)
		}
		cfg.Log.Level = lvl
	}
	return cfg, config.Validate(cfg)
}
