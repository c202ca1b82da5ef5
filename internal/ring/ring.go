// Package ring holds the wrap-aware copy and offset arithmetic shared by
// the stream engine's circular buffers. Offsets and lengths are in bytes;
// callers convert from frames via the format's block alignment.
package ring

// Copy writes src into dst starting at offset off, wrapping to the start of
// dst when the write would run past the end. len(src) must not exceed
// len(dst); at most one wrap ever occurs.
func Copy(dst []byte, off int, src []byte) {
	chunk := len(dst) - off
	if chunk < len(src) {
		copy(dst[off:], src[:chunk])
		copy(dst, src[chunk:])
	} else {
		copy(dst[off:], src)
	}
}

// Read copies length bytes out of the ring src starting at offset off into
// dst, wrapping at the end of src. The inverse of Copy.
func Read(dst []byte, src []byte, off, length int) {
	chunk := len(src) - off
	if chunk < length {
		copy(dst, src[off:])
		copy(dst[chunk:], src[:length-chunk])
	} else {
		copy(dst, src[off:off+length])
	}
}

// Distance returns the number of forward steps from from to to in a ring of
// the given size. Used to jump a read offset past data the writer has
// overwritten.
func Distance(from, to, size uint32) uint32 {
	if from <= to {
		return to - from
	}
	return size - (from - to)
}
