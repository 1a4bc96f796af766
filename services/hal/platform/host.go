//go:build !rp2040 && !rp2350

// Package platform assembles the board for the current build target.
package platform

import (
	"log/slog"
	"net/netip"
	"os"
	"strconv"
	"time"

	"telenode/drivers/dht"
	"telenode/drivers/dht/dhtsim"
	"telenode/services/config"
	"telenode/services/hal"
	"telenode/services/hal/halsim"
	"telenode/types"
)

// Board returns the host simulator: a waveform-level sensor line on a
// virtual clock, a scripted radio, and the host TCP stack for dialling.
// TELENODE_SIM_CONNECT_FAILS scripts that many failed associations.
func Board(cfg config.Config, log *slog.Logger) hal.Board {
	clk := &dhtsim.Clock{}
	now := time.Now()
	reading := types.Reading{
		Humidity:    uint8(40 + now.Minute()%20),
		Temperature: int16(18 + now.Second()%8),
	}
	line := dhtsim.NewLine(clk, cfg.SensorPin, dht.EncodeFrame(reading))

	var script []halsim.Outcome
	if n, err := strconv.Atoi(os.Getenv("TELENODE_SIM_CONNECT_FAILS")); err == nil {
		for i := 0; i < n; i++ {
			script = append(script, halsim.Fail)
		}
	}
	radio := halsim.NewRadio(script...)
	radio.ConnectDelay = 300 * time.Millisecond
	radio.APs = []types.AccessPoint{{SSID: cfg.SSID, RSSI: -52, Channel: 6}}

	return hal.Board{
		Name:      "host",
		SensorPin: line,
		LED:       halsim.NewFakePin(cfg.LEDPin),
		Clock:     clk,
		Radio:     radio,
		Net: &halsim.Net{
			Link:      radio,
			Address:   netip.MustParseAddr("10.0.0.2"),
			DHCPDelay: 200 * time.Millisecond,
		},
		Power: &halsim.Power{Real: true},
		Fault: func(reason string) {
			log.Error("fault: exiting", "reason", reason)
			os.Exit(70)
		},
	}
}
