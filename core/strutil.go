package core

// utoa converts an unsigned integer to a string without pulling in fmt,
// which matters for TinyGo binary size.
func utoa(n uint32) string {
	if n == 0 {
		return "0"
	}
	var buf [10]byte
	pos := len(buf)
	for n > 0 {
		pos--
		buf[pos] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[pos:])
}

// itoa converts a signed integer to a string.
func itoa(n int) string {
	if n < 0 {
		return "-" + utoa(uint32(-n))
	}
	return utoa(uint32(n))
}

// valueToString renders a dictionary constant value.
func valueToString(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case int:
		return itoa(val)
	case uint32:
		return utoa(val)
	case uint8:
		return utoa(uint32(val))
	default:
		return ""
	}
}
