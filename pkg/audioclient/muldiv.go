package audioclient

// muldiv computes a*b/c in 64-bit with round-half-away-from-zero, returning
// -1 on a zero divisor or 32-bit overflow.
func muldiv(a, b, c int64) int64 {
	if c == 0 {
		return -1
	}
	if c < 0 {
		a = -a
		c = -c
	}

	var ret int64
	if (a < 0) == (b < 0) {
		ret = (a*b + c/2) / c
	} else {
		ret = (a*b - c/2) / c
	}

	if ret > 2147483647 || ret < -2147483647 {
		return -1
	}
	return ret
}
