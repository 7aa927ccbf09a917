package runtimeimage

import "testing"

func TestByteAtAppliesBaseOffset(t *testing.T) {
	img := New([]byte{0xde, 0xad, 0xbe, 0xef}, 0x1000)

	b, ok := img.ByteAt(0x1002)
	if !ok {
		t.Fatal("expected address within mapped range")
	}
	if b != 0xbe {
		t.Errorf("ByteAt(0x1002) = %#x, want 0xbe", b)
	}
}

func TestByteAtOutOfRange(t *testing.T) {
	img := New([]byte{1, 2, 3}, 0x1000)

	if _, ok := img.ByteAt(0x500); ok {
		t.Error("address below base offset should be out of range")
	}
	if _, ok := img.ByteAt(0x1010); ok {
		t.Error("address beyond image length should be out of range")
	}
}

func TestContains(t *testing.T) {
	img := New([]byte{1, 2, 3}, 0)
	if !img.Contains(0) || !img.Contains(2) {
		t.Error("expected addresses 0 and 2 to be contained")
	}
	if img.Contains(3) {
		t.Error("address 3 is one past the end, should not be contained")
	}
}
