package config

// -----------------------------------------------------------------------------
// Embedded configuration
//
// Key: device ID (selected at build time, see Device)
// Val: raw JSON overlaid on Default()
// -----------------------------------------------------------------------------

const cfgPicoW = `{
  "sensor_pin": 15,
  "led_pin": 16,
  "endpoint": "192.168.1.100:5000",
  "path": "/data",
  "sleep_s": 600
}`

const cfgPico2W = `{
  "sensor_pin": 15,
  "led_pin": 16,
  "endpoint": "192.168.1.100:5000",
  "path": "/data",
  "sleep_s": 600
}`

const cfgHost = `{
  "endpoint": "127.0.0.1:5000",
  "path": "/data",
  "log_level": "debug",
  "sleep_s": 10,
  "link_ceiling_s": 20
}`

var embeddedConfigs = map[string][]byte{
	"pico-w":  []byte(cfgPicoW),
	"pico2-w": []byte(cfgPico2W),
	"host":    []byte(cfgHost),
}
