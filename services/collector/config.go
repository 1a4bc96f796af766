package collector

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"telenode/logging"
)

type Config struct {
	AppEnv   string
	LogLevel slog.Level
	Addr     string
	History  int
	// DBPath selects the SQLite store; empty keeps history in memory.
	DBPath string
	MQTT   ForwarderConfig
}

func LoadFromEnv() (Config, error) {
	appEnv := env("APP_ENV", "dev")
	switch appEnv {
	case "dev", "prod":
	default:
		return Config{}, fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", appEnv)
	}

	level, err := logging.ParseLevel(env("LOG_LEVEL", "info"))
	if err != nil {
		return Config{}, err
	}

	historyStr := env("COLLECTOR_HISTORY", "10000")
	history, err := strconv.Atoi(historyStr)
	if err != nil || history <= 0 {
		return Config{}, fmt.Errorf("invalid COLLECTOR_HISTORY %q", historyStr)
	}

	portStr := env("MQTT_PORT", "1883")
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid MQTT_PORT %q: %w", portStr, err)
	}

	return Config{
		AppEnv:   appEnv,
		LogLevel: level,
		Addr:     env("COLLECTOR_ADDR", ":5000"),
		History:  history,
		DBPath:   env("COLLECTOR_DB", ""),
		MQTT: ForwarderConfig{
			Broker:   env("MQTT_BROKER", ""),
			Port:     port,
			ClientID: env("MQTT_CLIENT_ID", "telenode-collector"),
		},
	}, nil
}

func env(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}
