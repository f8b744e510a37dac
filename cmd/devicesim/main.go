package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danmuck/stridelink/internal/devicesim"
	"github.com/danmuck/stridelink/internal/logging"
	"github.com/danmuck/stridelink/internal/observability"
	"github.com/danmuck/stridelink/internal/protocol"
	"github.com/rs/zerolog/log"
)

func main() {
	def := devicesim.DefaultConfig()
	addr := flag.String("addr", ":8081", "listen address")
	typ := flag.String("type", def.Type.String(), "device type: MOTION_MODULE|LEFT_INSOLE|RIGHT_INSOLE")
	name := flag.String("name", def.Name, "device name")
	battery := flag.Uint("battery", uint(def.BatteryLevel), "reported battery level")
	weight := flag.Float64("weight", float64(def.Weight), "reported weight")
	flag.Parse()

	logging.ConfigureRuntime()
	observability.InitLogger("devicesim")

	t, err := protocol.ParseDeviceType(*typ)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid device type")
	}
	cfg := def
	cfg.Name = *name
	cfg.Type = t
	cfg.BatteryLevel = uint8(min(*battery, 100))
	cfg.Weight = float32(*weight)

	sim := devicesim.NewServer(devicesim.NewDevice(cfg))
	srv := &http.Server{Addr: *addr, Handler: sim.Handler(), ReadHeaderTimeout: 5 * time.Second}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", *addr).Str("type", t.String()).Str("name", cfg.Name).Msg("devicesim started")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("devicesim stopped")
	}
}
