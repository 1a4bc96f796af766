package main

import (
	"context"
	"log/slog"
	"time"

	"telenode/drivers/dht"
	"telenode/logging"
	"telenode/services/config"
	"telenode/services/dutycycle"
	"telenode/services/hal/platform"
)

func main() {
	// Allow USB CDC to enumerate before we print.
	time.Sleep(2 * time.Second)

	cfg, cfgErr := config.Load("")
	level, lvlErr := logging.ParseLevel(cfg.LogLevel)
	log := logging.New(level, logging.Console()).With("device", cfg.Device)
	slog.SetDefault(log)
	log.Info("boot", "ssid", cfg.SSID, "endpoint", cfg.Endpoint)
	if lvlErr != nil {
		log.Warn("config: log level", "err", lvlErr)
	}
	if cfgErr != nil {
		// Keep cycling: the send will fail and be reported every cycle.
		log.Error("config: invalid", "err", cfgErr)
	}

	// On hardware Run ends in a reset, so this loop only repeats on host.
	for n := 1; ; n++ {
		board := platform.Board(cfg, log)
		sensor := dht.New(board.SensorPin, board.Clock)
		res := dutycycle.New(board, &sensor, cfg.Cycle(log)).Run(context.Background())
		log.Info("cycle done",
			"n", n,
			"sensor_err", res.SensorErr,
			"send_err", res.SendErr,
			"status", res.Response.Status,
			"lingering", len(res.Lingering),
		)
	}
}
