package mic

import "testing"

func TestAppendPCM16(t *testing.T) {
	b := appendPCM16(nil, []float32{0, 1, -1, 2})
	if len(b) != 8 {
		t.Fatalf("len = %d", len(b))
	}
	at := func(i int) int16 { return int16(uint16(b[2*i]) | uint16(b[2*i+1])<<8) }
	if at(0) != 0 || at(1) != 32767 || at(2) != -32767 || at(3) != 32767 {
		t.Fatalf("samples = %d %d %d %d", at(0), at(1), at(2), at(3))
	}
}
