package leb

import "testing"

func TestReadUint32(t *testing.T) {
	cases := []struct {
		name string
		in   []byte
		want uint32
		n    int
	}{
		{"single byte", []byte{0x05}, 5, 1},
		{"three bytes", []byte{0xE5, 0x8E, 0x26}, 624485, 3},
		{"zero", []byte{0x00}, 0, 1},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, n, err := ReadUint32(c.in)
			if err != nil {
				t.Fatalf("unexpected error: %s", err)
			}
			if got != c.want || n != c.n {
				t.Fatalf("got (%d, %d), want (%d, %d)", got, n, c.want, c.n)
			}
		})
	}
}

func TestReadInt32SignExtend(t *testing.T) {
	cases := []struct {
		name string
		in   []byte
		want int32
	}{
		{"negative one", []byte{0x7f}, -1},
		{"negative 64", []byte{0x40}, -64},
		{"positive 63", []byte{0x3f}, 63},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, _, err := ReadInt32(c.in)
			if err != nil {
				t.Fatalf("unexpected error: %s", err)
			}
			if got != c.want {
				t.Fatalf("got %d, want %d", got, c.want)
			}
		})
	}
}

func TestPadded4RoundTrip(t *testing.T) {
	for _, v := range []uint32{0, 1, 127, 128, 1000000} {
		enc := EncodeUint32Padded4(v)
		got, n, err := ReadUint32(enc[:])
		if err != nil {
			t.Fatalf("%d: unexpected error: %s", v, err)
		}
		if n != 4 {
			t.Fatalf("%d: padded encoding consumed %d bytes, want 4", v, n)
		}
		if got != v {
			t.Fatalf("%d: round-tripped to %d", v, got)
		}
	}
}

func TestPadded4SignedNegative(t *testing.T) {
	enc := EncodeInt32Padded4(-1)
	got, n, err := ReadInt32(enc[:])
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if n != 4 || got != -1 {
		t.Fatalf("got (%d, %d), want (-1, 4)", got, n)
	}
}

func TestPadded5RoundTrip(t *testing.T) {
	enc := EncodeUint32Padded5(1234567)
	got, n, err := ReadUint32(enc[:])
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if n != 5 || got != 1234567 {
		t.Fatalf("got (%d, %d), want (1234567, 5)", got, n)
	}
}

func TestReadUint32TruncatedInput(t *testing.T) {
	if _, _, err := ReadUint32([]byte{0x80}); err == nil {
		t.Fatal("expected an error on truncated input")
	}
}
