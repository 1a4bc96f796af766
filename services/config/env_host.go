//go:build !rp2040 && !rp2350

package config

import (
	"os"
	"strconv"
)

const defaultDevice = "host"

// applyEnv overlays TELENODE_* environment variables.
func applyEnv(c *Config) {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v, ok := os.LookupEnv(key); ok {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	str("TELENODE_SSID", &c.SSID)
	str("TELENODE_PASSWORD", &c.Password)
	str("TELENODE_ENDPOINT", &c.Endpoint)
	str("TELENODE_HOST", &c.Host)
	str("TELENODE_PATH", &c.Path)
	str("TELENODE_LOG_LEVEL", &c.LogLevel)
	num("TELENODE_SLEEP_S", &c.SleepS)
	num("TELENODE_LINK_CEILING_S", &c.LinkCeilingS)
	if v, ok := os.LookupEnv("TELENODE_FATAL_START_ERRORS"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			c.FatalStartErrors = b
		}
	}
}
