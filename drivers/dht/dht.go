// Package dht decodes the single-wire temperature/humidity protocol used by
// DHT11-class sensors, bit-banged on one GPIO with no UART assistance.
//
//	d := dht.New(pin, timex.System())
//	d.Configure()
//	r, err := d.Read()     // one attempt; the caller decides on retries
//
// The host wakes the sensor by holding the line low for at least 18 ms, then
// releases it. The sensor answers with an 80 µs low / 80 µs high preamble and
// then 40 bits. Every bit starts with a ~50 µs low; the length of the high
// pulse that follows carries the value (26-28 µs for 0, ~70 µs for 1).
//
// Only the integer bytes are used. On the 8-bit sensors the fractional bytes
// are not a real fraction, so readings are whole degrees and whole percent.
package dht

import (
	"time"

	"tinygo.org/x/drivers"

	"telenode/errcode"
	"telenode/services/hal"
	"telenode/types"
	"telenode/x/timex"
)

// Config controls protocol timing. All fields are optional.
type Config struct {
	// Timeout bounds every wait for a line transition. Default 1 s; a working
	// sensor answers in ~200 µs, the bound only catches a silent device.
	Timeout time.Duration
	// StartLow is how long the host holds the line low to wake the sensor.
	// Default 20 ms (the sensor needs at least 18 ms).
	StartLow time.Duration
	// ReleaseHigh is the high pulse before switching to input. Default 30 µs.
	ReleaseHigh time.Duration
	// SampleOffset is the delay after a bit's rising edge before sampling.
	// It must sit between the 0 and 1 pulse widths. Default 30 µs.
	SampleOffset time.Duration
}

// Device drives one sensor on one pin.
type Device struct {
	pin hal.GPIOPin
	clk timex.Clock
	cfg Config

	last types.Reading
}

// New creates a Device. It does not touch the pin.
func New(pin hal.GPIOPin, clk timex.Clock) Device {
	return Device{pin: pin, clk: clk}
}

// Configure applies optional config, filling defaults for zero fields.
func (d *Device) Configure(cfgs ...Config) {
	var c Config
	if len(cfgs) > 0 {
		c = cfgs[0]
	}
	if c.Timeout <= 0 {
		c.Timeout = time.Second
	}
	if c.StartLow <= 0 {
		c.StartLow = 20 * time.Millisecond
	}
	if c.ReleaseHigh <= 0 {
		c.ReleaseHigh = 30 * time.Microsecond
	}
	if c.SampleOffset <= 0 {
		c.SampleOffset = 30 * time.Microsecond
	}
	d.cfg = c
}

// Read performs one full exchange and projects the frame into a Reading.
func (d *Device) Read() (types.Reading, error) {
	f, err := d.ReadFrame()
	if err != nil {
		return types.Reading{}, err
	}
	d.last = f.Reading()
	return d.last, nil
}

// ReadFrame performs one full exchange and returns the checksum-validated
// frame. Errors are errcode.Timeout, errcode.ChecksumMismatch or an
// errcode.PinError wrapper.
func (d *Device) ReadFrame() (Frame, error) {
	if d.cfg.Timeout == 0 {
		d.Configure()
	}
	if err := d.wake(); err != nil {
		return Frame{}, err
	}
	if err := d.handshake(); err != nil {
		return Frame{}, err
	}
	var f Frame
	for i := range f {
		b, err := d.readByte()
		if err != nil {
			return Frame{}, err
		}
		f[i] = b
	}
	if !f.Valid() {
		return f, errcode.ChecksumMismatch
	}
	return f, nil
}

// wake drives the host start pulse and hands the line to the sensor.
func (d *Device) wake() error {
	if err := d.pin.ConfigureOutput(true); err != nil {
		return errcode.Wrap(errcode.PinError, "dht.wake", err)
	}
	d.pin.Set(false)
	d.clk.DelayMicros(d.cfg.StartLow.Microseconds())
	d.pin.Set(true)
	d.clk.DelayMicros(d.cfg.ReleaseHigh.Microseconds())
	if err := d.pin.ConfigureInput(hal.PullUp); err != nil {
		return errcode.Wrap(errcode.PinError, "dht.wake", err)
	}
	return nil
}

// handshake consumes the sensor's response preamble: the line falls, stays
// low ~80 µs, rises for ~80 µs, then falls into the first bit.
func (d *Device) handshake() error {
	if !d.waitWhile(true) {
		return errcode.Timeout
	}
	if !d.waitWhile(false) {
		return errcode.Timeout
	}
	if !d.waitWhile(true) {
		return errcode.Timeout
	}
	return nil
}

// readByte samples eight bits, most significant first.
func (d *Device) readByte() (byte, error) {
	var b byte
	for i := 0; i < 8; i++ {
		if !d.waitWhile(false) {
			return 0, errcode.Timeout
		}
		d.clk.DelayMicros(d.cfg.SampleOffset.Microseconds())
		b <<= 1
		if d.pin.Get() {
			b |= 1
		}
		if !d.waitWhile(true) {
			return 0, errcode.Timeout
		}
	}
	return b, nil
}

// waitWhile spins while the line reads level. It returns false if the level
// outlasts the configured timeout.
func (d *Device) waitWhile(level bool) bool {
	limit := d.cfg.Timeout.Microseconds()
	start := d.clk.Micros()
	for d.pin.Get() == level {
		if d.clk.Micros()-start > limit {
			return false
		}
	}
	return true
}

// ---- drivers.Sensor ----

// Update refreshes the cached reading when temperature or humidity is asked for.
func (d *Device) Update(which drivers.Measurement) error {
	if which&(drivers.Temperature|drivers.Humidity) == 0 {
		return nil
	}
	_, err := d.Read()
	return err
}

// Temperature returns the last temperature in milli-degrees Celsius.
func (d *Device) Temperature() int32 { return int32(d.last.Temperature) * 1000 }

// Humidity returns the last relative humidity in whole percent.
func (d *Device) Humidity() int32 { return int32(d.last.Humidity) }

// Last returns the most recent successful reading.
func (d *Device) Last() types.Reading { return d.last }
