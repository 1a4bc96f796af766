// Package config resolves the node's settings: defaults, then the embedded
// per-board profile, then build-time identity strings, then (on host builds)
// environment overrides.
package config

import (
	"encoding/json"
	"net/netip"
	"strings"
	"time"

	"telenode/errcode"
	"telenode/types"
	"telenode/x/mathx"
)

// Build-time identity. Set with
//
//	-ldflags "-X telenode/services/config.SSID=... -X telenode/services/config.Password=..."
//
// Empty values are valid and leave the profile's values in place.
var (
	SSID     string
	Password string
	Device   string
)

// EmbeddedConfigLookup allows overriding how profiles are resolved.
var EmbeddedConfigLookup = func(device string) ([]byte, bool) {
	b, ok := embeddedConfigs[device]
	return b, ok
}

type Config struct {
	Device   string `json:"device"`
	SSID     string `json:"ssid"`
	Password string `json:"password"`

	Endpoint string `json:"endpoint"` // ip:port, no DNS
	Host     string `json:"host"`
	Path     string `json:"path"`

	SensorPin int `json:"sensor_pin"`
	LEDPin    int `json:"led_pin"`

	LogLevel string `json:"log_level"`

	SleepS           int  `json:"sleep_s"`
	LinkCeilingS     int  `json:"link_ceiling_s"`
	ConnectTimeoutMS int  `json:"connect_timeout_ms"`
	StartTimeoutMS   int  `json:"start_timeout_ms"`
	SendTimeoutMS    int  `json:"send_timeout_ms"`
	RetryPauseMS     int  `json:"retry_pause_ms"`
	GraceMS          int  `json:"grace_ms"`
	WatchdogStalls   int  `json:"watchdog_stalls"`
	BufferSize       int  `json:"buffer_size"`
	FatalStartErrors bool `json:"fatal_start_errors"`
}

// Default returns the settings used when no profile overrides them.
func Default() Config {
	return Config{
		Device:           defaultDevice,
		Path:             "/data",
		SensorPin:        15,
		LEDPin:           16,
		LogLevel:         "info",
		SleepS:           600,
		LinkCeilingS:     60,
		ConnectTimeoutMS: 10000,
		StartTimeoutMS:   10000,
		SendTimeoutMS:    10000,
		RetryPauseMS:     5000,
		GraceMS:          1500,
		WatchdogStalls:   15,
		BufferSize:       512,
	}
}

// Load resolves the configuration for device ("" uses the build-time
// Device, then the default) and validates it.
func Load(device string) (Config, error) {
	c := Default()
	if device == "" {
		device = Device
	}
	if device != "" {
		c.Device = device
	}
	if raw, ok := EmbeddedConfigLookup(c.Device); ok && len(raw) > 0 {
		if err := json.Unmarshal(raw, &c); err != nil {
			return c, &errcode.E{C: errcode.InvalidParams, Op: "config.load", Msg: "profile " + c.Device, Err: err}
		}
	}
	if SSID != "" {
		c.SSID = SSID
	}
	if Password != "" {
		c.Password = Password
	}
	applyEnv(&c)
	return c, c.Validate()
}

// Validate rejects unusable settings and clamps numeric knobs into range.
func (c *Config) Validate() error {
	const op = "config.validate"
	if _, err := netip.ParseAddrPort(c.Endpoint); err != nil {
		return &errcode.E{C: errcode.InvalidParams, Op: op, Msg: "endpoint must be ip:port", Err: err}
	}
	if !strings.HasPrefix(c.Path, "/") {
		return &errcode.E{C: errcode.InvalidParams, Op: op, Msg: "path must start with /"}
	}
	if c.SensorPin < 0 || c.LEDPin < 0 {
		return &errcode.E{C: errcode.InvalidParams, Op: op, Msg: "negative pin"}
	}
	c.SleepS = mathx.Clamp(c.SleepS, 1, 24*60*60)
	c.LinkCeilingS = mathx.Clamp(c.LinkCeilingS, 1, 600)
	c.ConnectTimeoutMS = mathx.Clamp(c.ConnectTimeoutMS, 100, 120000)
	c.StartTimeoutMS = mathx.Clamp(c.StartTimeoutMS, 100, 120000)
	c.SendTimeoutMS = mathx.Clamp(c.SendTimeoutMS, 100, 120000)
	c.RetryPauseMS = mathx.Clamp(c.RetryPauseMS, 10, 60000)
	c.GraceMS = mathx.Clamp(c.GraceMS, 10, 5000)
	c.WatchdogStalls = mathx.Clamp(c.WatchdogStalls, 2, 255)
	c.BufferSize = mathx.Clamp(c.BufferSize, 128, 4096)
	// The watchdog samples once a second. Radio start and association hold
	// the marker still for their whole timeout, so both must fit inside the
	// stall limit. Pauses advance the marker as they go and are not bounded.
	limit := c.WatchdogStalls * 1000
	if c.ConnectTimeoutMS >= limit {
		return &errcode.E{C: errcode.InvalidParams, Op: op, Msg: "connect timeout must be shorter than the watchdog stall limit"}
	}
	if c.StartTimeoutMS >= limit {
		return &errcode.E{C: errcode.InvalidParams, Op: op, Msg: "start timeout must be shorter than the watchdog stall limit"}
	}
	return nil
}

// Station returns the radio credentials.
func (c Config) Station() types.StationConfig {
	return types.StationConfig{SSID: c.SSID, Password: c.Password}
}

// AddrPort returns the parsed endpoint. Only valid after Validate.
func (c Config) AddrPort() netip.AddrPort {
	ap, _ := netip.ParseAddrPort(c.Endpoint)
	return ap
}

func ms(n int) time.Duration  { return time.Duration(n) * time.Millisecond }
func sec(n int) time.Duration { return time.Duration(n) * time.Second }
