// Package conv formats and parses integers in caller-owned byte slices,
// without fmt or strconv, for code that builds wire messages on the device.
package conv

const hexDigits = "0123456789ABCDEF"

// AppendInt appends the decimal form of n to dst.
func AppendInt(dst []byte, n int64) []byte {
	var tmp [20]byte
	i := len(tmp)
	u := uint64(n)
	if n < 0 {
		u = -u
	}
	for {
		i--
		tmp[i] = byte('0' + u%10)
		u /= 10
		if u == 0 {
			break
		}
	}
	if n < 0 {
		i--
		tmp[i] = '-'
	}
	return append(dst, tmp[i:]...)
}

// Itoa returns the decimal form of n.
func Itoa(n int) string {
	var b [20]byte
	return string(AppendInt(b[:0], int64(n)))
}

// AppendHex32 appends n as exactly eight uppercase hex digits.
func AppendHex32(dst []byte, n uint32) []byte {
	for shift := 28; shift >= 0; shift -= 4 {
		dst = append(dst, hexDigits[(n>>uint(shift))&0xF])
	}
	return dst
}

// ParseDigits parses a non-empty run of ASCII decimal digits. It rejects
// signs, spaces and anything longer than nine digits.
func ParseDigits(b []byte) (int, bool) {
	if len(b) == 0 || len(b) > 9 {
		return 0, false
	}
	n := 0
	for _, c := range b {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, true
}
