package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/danmuck/stridelink/internal/logging"
	"github.com/rs/zerolog/log"
)

func main() {
	f, err := parseFlags(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}
	cfg, err := loadConfig(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "stridectl: %v\n", err)
		os.Exit(1)
	}
	logging.ConfigureFile(cfg.Log.Level, cfg.Log.NoColor)
	log.Logger = log.With().Str("app", "stridectl").Logger()
	log.Info().Str("path", f.path).Int("devices", len(cfg.Devices)).Msg("loaded config")

	a, err := newApp(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("stridectl setup failed")
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := a.run(ctx); err != nil {
		log.Error().Err(err).Msg("stridectl stopped")
		os.Exit(1)
	}
	log.Info().Msg("stridectl stopped")
}
