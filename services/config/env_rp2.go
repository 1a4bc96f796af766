//go:build rp2040 || rp2350

package config

const defaultDevice = "pico-w"

// No environment on the device; settings come from the profile and ldflags.
func applyEnv(*Config) {}
