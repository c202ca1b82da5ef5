package format

// SilenceByte returns the byte value representing silence for the format:
// 128 for unsigned 8-bit PCM, 0 for everything else.
func (f *Format) SilenceByte() byte {
	if f.Family == FamilyPCM && f.BitsPerSample == 8 {
		return 128
	}
	return 0
}

// Silence fills buf with the format's silence pattern.
func (f *Format) Silence(buf []byte) {
	b := f.SilenceByte()
	for i := range buf {
		buf[i] = b
	}
}

// SilenceFrames fills the first frames frames of buf with silence.
func (f *Format) SilenceFrames(buf []byte, frames uint32) {
	f.Silence(buf[:f.BytesFor(frames)])
}
