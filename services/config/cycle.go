package config

import (
	"log/slog"

	"telenode/services/dutycycle"
	"telenode/services/telemetry"
	"telenode/services/watchdog"
	"telenode/services/wifi"
)

// Cycle maps the settings onto the duty-cycle orchestrator's config.
func (c Config) Cycle(logger *slog.Logger) dutycycle.Config {
	return dutycycle.Config{
		LinkCeiling: sec(c.LinkCeilingS),
		Grace:       ms(c.GraceMS),
		SleepFor:    sec(c.SleepS),
		Wifi: wifi.Config{
			Station:          c.Station(),
			ConnectTimeout:   ms(c.ConnectTimeoutMS),
			StartTimeout:     ms(c.StartTimeoutMS),
			RetryPause:       ms(c.RetryPauseMS),
			FatalStartErrors: c.FatalStartErrors,
		},
		Watchdog: watchdog.Config{Stalls: c.WatchdogStalls},
		Telemetry: telemetry.Config{
			Endpoint:       c.AddrPort(),
			Host:           c.Host,
			Path:           c.Path,
			ConnectTimeout: ms(c.SendTimeoutMS),
			BufferSize:     c.BufferSize,
		},
		Logger: logger,
	}
}
