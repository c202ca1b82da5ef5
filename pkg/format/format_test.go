package format

import "testing"

func TestNew_DerivedFields(t *testing.T) {
	t.Parallel()

	f := New(FamilyPCM, 48000, 2, 16)

	if f.BlockAlign != 4 {
		t.Errorf("BlockAlign = %d, want 4", f.BlockAlign)
	}
	if f.AvgBytesPerSec != 192000 {
		t.Errorf("AvgBytesPerSec = %d, want 192000", f.AvgBytesPerSec)
	}
	if !f.Consistent() {
		t.Error("Consistent() = false for a derived format")
	}
}

func TestConsistent_RejectsMismatch(t *testing.T) {
	t.Parallel()

	f := New(FamilyPCM, 44100, 1, 16)
	f.BlockAlign = 3
	if f.Consistent() {
		t.Error("Consistent() = true with wrong block align")
	}

	f = New(FamilyFloat, 48000, 2, 32)
	f.AvgBytesPerSec++
	if f.Consistent() {
		t.Error("Consistent() = true with wrong byte rate")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		f       Format
		wantErr bool
	}{
		{"pcm 16", New(FamilyPCM, 48000, 2, 16), false},
		{"pcm 8", New(FamilyPCM, 8000, 1, 8), false},
		{"pcm 24", New(FamilyPCM, 96000, 2, 24), false},
		{"pcm 12", New(FamilyPCM, 48000, 2, 12), true},
		{"float 32", New(FamilyFloat, 48000, 2, 32), false},
		{"float 16", New(FamilyFloat, 48000, 2, 16), true},
		{"mulaw 8", New(FamilyMuLaw, 8000, 1, 8), false},
		{"mulaw 16", New(FamilyMuLaw, 8000, 1, 16), true},
		{"alaw 8", New(FamilyALaw, 8000, 1, 8), false},
		{"zero channels", New(FamilyPCM, 48000, 0, 16), true},
		{"zero rate", New(FamilyPCM, 0, 2, 16), true},
		{"bad family", New(Family(99), 48000, 2, 16), true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.f.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestChannelMask(t *testing.T) {
	t.Parallel()

	tests := []struct {
		channels int
		want     uint32
	}{
		{1, MaskMono},
		{2, MaskStereo},
		{3, MaskStereo | SpeakerLowFrequency},
		{4, MaskQuad},
		{5, MaskQuad | SpeakerLowFrequency},
		{6, Mask5Point1},
		{7, Mask5Point1 | SpeakerBackCenter},
		{8, Mask7Point1Surround},
		{0, 0},
		{9, 0},
	}

	for _, tt := range tests {
		if got := ChannelMask(tt.channels); got != tt.want {
			t.Errorf("ChannelMask(%d) = %#x, want %#x", tt.channels, got, tt.want)
		}
	}
}

func TestChannelMask_NoReservedBits(t *testing.T) {
	t.Parallel()

	for channels := 1; channels <= 8; channels++ {
		if mask := ChannelMask(channels); mask&MaskReserved != 0 {
			t.Errorf("ChannelMask(%d) = %#x has reserved bits", channels, mask)
		}
	}
}

func TestMix(t *testing.T) {
	t.Parallel()

	f := Mix(2, 44100)

	if f.Family != FamilyFloat || f.BitsPerSample != 32 {
		t.Errorf("Mix() family/bits = %v/%d, want float/32", f.Family, f.BitsPerSample)
	}
	if !f.Extensible || f.ValidBits != 32 || f.ChannelMask != MaskStereo {
		t.Errorf("Mix() extensible fields = %v/%d/%#x", f.Extensible, f.ValidBits, f.ChannelMask)
	}
	if !f.Consistent() {
		t.Error("Mix() produced an inconsistent format")
	}
	if err := f.Validate(); err != nil {
		t.Errorf("Mix() produced an invalid format: %v", err)
	}
}

func TestSilence(t *testing.T) {
	t.Parallel()

	u8 := New(FamilyPCM, 8000, 1, 8)
	s16 := New(FamilyPCM, 48000, 2, 16)

	buf := make([]byte, 8)
	u8.Silence(buf)
	for i, b := range buf {
		if b != 128 {
			t.Fatalf("unsigned 8-bit silence byte %d = %d, want 128", i, b)
		}
	}

	buf[0] = 7
	s16.SilenceFrames(buf, 2)
	for i := 0; i < s16.BytesFor(2); i++ {
		if buf[i] != 0 {
			t.Fatalf("16-bit silence byte %d = %d, want 0", i, buf[i])
		}
	}
}
