package types

// ------------------------
// Temperature & humidity
// ------------------------

// Reading is one decoded sensor sample. Whole units only: the single-wire
// sensor's fractional bytes are not carried.
type Reading struct {
	// Relative humidity, percent (0..100).
	Humidity uint8 `json:"hum"`
	// Degrees Celsius.
	Temperature int16 `json:"temp"`
}

// Placeholder is sent when the sensor could not be read this cycle. Both
// fields are outside anything the sensor can report.
var Placeholder = Reading{Humidity: 255, Temperature: -128}

// IsPlaceholder reports whether r is the failed-read sentinel.
func (r Reading) IsPlaceholder() bool { return r == Placeholder }
