package model

import "math"

// Itoa is a minimal int-to-string converter for hot-path usage.
// Avoids importing strconv to eliminate unnecessary overhead.
func Itoa(n int) string {
	if n == 0 {
		return "0"
	}
	buf := [20]byte{}
	i := len(buf)
	neg := n < 0
	if neg {
		n = -n
	}
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// RawToFloat converts a raw integer token amount to its display value
// given the token's decimals (e.g. 1_500_000_000 with 9 decimals → 1.5).
func RawToFloat(raw int64, decimals int) float64 {
	if decimals <= 0 {
		return float64(raw)
	}
	return float64(raw) / math.Pow10(decimals)
}

// FloatToRaw converts a display token amount to raw integer base units.
// Rounds to the nearest unit; raw amounts are authoritative, display values
// are for humans only.
func FloatToRaw(v float64, decimals int) int64 {
	if decimals <= 0 {
		return int64(math.Round(v))
	}
	return int64(math.Round(v * math.Pow10(decimals)))
}
