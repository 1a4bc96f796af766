package telemetry

import (
	"telenode/errcode"
	"telenode/types"
	"telenode/x/conv"
)

// Readings are whole units, so one decimal place is always ".0".
func appendTenths(dst []byte, v int64) []byte {
	return append(conv.AppendInt(dst, v), '.', '0')
}

func appendBody(dst []byte, r types.Reading) []byte {
	dst = append(dst, `{"temp":`...)
	dst = appendTenths(dst, int64(r.Temperature))
	dst = append(dst, `,"hum":`...)
	dst = appendTenths(dst, int64(r.Humidity))
	return append(dst, '}')
}

// Body renders the JSON payload for r with one decimal place.
func Body(r types.Reading) string {
	var b [48]byte
	return string(appendBody(b[:0], r))
}

// BuildRequest writes the complete HTTP/1.0 POST for r into buf, which is
// never grown: if the request does not fit in cap(buf) nothing is written and
// BufferOverflow is returned.
func BuildRequest(buf []byte, host, path string, r types.Reading) ([]byte, error) {
	var bb [48]byte
	body := appendBody(bb[:0], r)
	var nb [20]byte
	n := conv.AppendInt(nb[:0], int64(len(body)))

	head := [...]string{
		"POST ", path, " HTTP/1.0\r\n",
		"Host: ", host, "\r\n",
		"Content-Type: application/json\r\n",
		"Content-Length: ",
	}
	need := len(n) + len("\r\n\r\n") + len(body)
	for _, p := range head {
		need += len(p)
	}
	if need > cap(buf) {
		return buf[:0], &errcode.E{
			C:   errcode.BufferOverflow,
			Op:  "telemetry.build",
			Msg: "need " + conv.Itoa(need) + " bytes, have " + conv.Itoa(cap(buf)),
		}
	}
	out := buf[:0]
	for _, p := range head {
		out = append(out, p...)
	}
	out = append(out, n...)
	out = append(out, "\r\n\r\n"...)
	return append(out, body...), nil
}

// ParseStatus extracts the status code from an HTTP/1.x status line.
func ParseStatus(line []byte) (int, error) {
	// "HTTP/1.0 200 OK"
	if len(line) < 12 || string(line[:7]) != "HTTP/1." ||
		(line[7] != '0' && line[7] != '1') || line[8] != ' ' {
		return 0, &errcode.E{C: errcode.BadStatus, Op: "telemetry.status", Msg: "malformed status line"}
	}
	code, ok := conv.ParseDigits(line[9:12])
	if !ok || code < 100 {
		return 0, &errcode.E{C: errcode.BadStatus, Op: "telemetry.status", Msg: "malformed status code"}
	}
	return code, nil
}
