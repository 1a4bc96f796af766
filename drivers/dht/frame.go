package dht

import (
	"telenode/types"
	"telenode/x/mathx"
)

// Frame is the raw 5-byte payload: humidity int/frac, temperature int/frac,
// checksum.
type Frame [5]byte

const (
	idxHumInt = iota
	idxHumFrac
	idxTempInt
	idxTempFrac
	idxSum
)

const tempSignBit = 0x80

// Checksum is the wrapping sum of the four data bytes.
func (f Frame) Checksum() byte {
	return f[idxHumInt] + f[idxHumFrac] + f[idxTempInt] + f[idxTempFrac]
}

// Valid reports whether the checksum byte matches.
func (f Frame) Valid() bool { return f.Checksum() == f[idxSum] }

// Reading projects the frame. Temperature is sign-magnitude in the integer
// byte (bit 7 sign, bits 0-6 magnitude); fractional bytes are dropped.
func (f Frame) Reading() types.Reading {
	t := int16(f[idxTempInt] &^ tempSignBit)
	if f[idxTempInt]&tempSignBit != 0 {
		t = -t
	}
	return types.Reading{Humidity: f[idxHumInt], Temperature: t}
}

// EncodeFrame builds the frame a sensor would send for r. Temperatures
// outside ±127 are clamped to the encodable range.
func EncodeFrame(r types.Reading) Frame {
	t := mathx.Clamp(r.Temperature, -127, 127)
	tb := byte(t)
	if t < 0 {
		tb = byte(-t) | tempSignBit
	}
	f := Frame{r.Humidity, 0, tb, 0, 0}
	f[idxSum] = f.Checksum()
	return f
}
