// cmd/nanolinkd/main.go
package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/ovenlabs/nanolink"
	"github.com/ovenlabs/nanolink/internal/config"
	"github.com/ovenlabs/nanolink/protocol"
)

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		With().Timestamp().Logger()

	if len(os.Args) < 2 {
		log.Fatal().Msg("usage: nanolinkd <config.yaml>")
	}

	// --------------------
	// Load + validate config
	// --------------------

	cfg, err := config.Load(os.Args[1])
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	if err := config.Validate(cfg); err != nil {
		log.Fatal().Err(err).Msg("config validation failed")
	}
	config.Normalize(cfg)

	// --------------------
	// Build + connect client
	// --------------------

	client, err := nanolink.New(optionsFrom(cfg, &log))
	if err != nil {
		log.Fatal().Err(err).Msg("client build failed")
	}

	if err := client.Connect(); err != nil {
		log.Fatal().Err(err).Msg("connect failed")
	}
	defer client.Disconnect()

	unsub := client.OnDisconnect(func() {
		log.Warn().Msg("link lost")
	})
	defer unsub()

	// --------------------
	// Poll + report
	// --------------------

	client.Subscribe(func() {
		sv, ok := client.LastStatus()
		if !ok {
			return
		}
		log.Info().
			Float64("water_temp", sv.WaterTemp).
			Str("units", sv.WaterTempUnits).
			Int64("motor_speed", sv.MotorSpeed).
			Bool("water_low", sv.WaterLow).
			Bool("water_leak", sv.WaterLeak).
			Msg("status")
	})

	client.StartPoll(time.Duration(cfg.Poll.IntervalS) * time.Second)
	defer client.StopPoll()

	log.Info().Int("interval_s", cfg.Poll.IntervalS).Msg("polling")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info().Msg("shutting down")
}

func optionsFrom(cfg *config.Config, log *zerolog.Logger) nanolink.Options {
	layout := protocol.DefaultLayout
	layout.LengthSize = cfg.Frame.LengthSize
	if cfg.Frame.Check == "sum8" {
		layout.Check = protocol.CheckSum8
	}

	return nanolink.Options{
		Address:         cfg.Device.Address,
		Layout:          layout,
		MaxChunkSize:    cfg.Frame.MaxChunkSize,
		DiscoverTimeout: time.Duration(cfg.Device.DiscoverTimeoutS) * time.Second,
		ConnectTimeout:  time.Duration(cfg.Device.ConnectTimeoutS) * time.Second,
		RequestTimeout:  time.Duration(cfg.Request.TimeoutMs) * time.Millisecond,
		RetryLimit:      cfg.Request.RetryLimit,
		RetryBackoff:    time.Duration(cfg.Request.RetryBackoffMs) * time.Millisecond,
		PollInterval:    time.Duration(cfg.Poll.IntervalS) * time.Second,
		Logger:          log,
	}
}
