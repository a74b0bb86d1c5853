package decode

import (
	"context"
	"testing"
)

func TestSyntheticOpenAndDecode(t *testing.T) {
	t.Parallel()

	src := NewSynthetic(10, 16, 8)
	info, err := src.Open(context.Background(), "ignored.mp4")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if info.FrameCount != 10 || info.Width != 16 || info.Height != 8 {
		t.Fatalf("unexpected info: %+v", info)
	}

	f0, err := src.SeekAndDecode(context.Background(), 0)
	if err != nil {
		t.Fatalf("SeekAndDecode(0): %v", err)
	}
	if len(f0.RGB24) != 16*8*3 {
		t.Fatalf("frame 0 size = %d, want %d", len(f0.RGB24), 16*8*3)
	}
	if f0.Index != 0 {
		t.Fatalf("frame 0 index = %d, want 0", f0.Index)
	}

	f5, err := src.SeekAndDecode(context.Background(), 5)
	if err != nil {
		t.Fatalf("SeekAndDecode(5): %v", err)
	}
	if f5.Index != 5 {
		t.Fatalf("frame 5 index = %d, want 5", f5.Index)
	}

	identical := true
	for i := range f0.RGB24 {
		if f0.RGB24[i] != f5.RGB24[i] {
			identical = false
			break
		}
	}
	if identical {
		t.Error("frame 0 and frame 5 should differ")
	}
}

func TestSyntheticOutOfRange(t *testing.T) {
	t.Parallel()

	src := NewSynthetic(3, 8, 4)
	if _, err := src.Open(context.Background(), "x.mp4"); err != nil {
		t.Fatalf("Open: %v", err)
	}

	if _, err := src.SeekAndDecode(context.Background(), 3); err == nil {
		t.Error("expected error for out-of-range frame")
	}
	if _, err := src.SeekAndDecode(context.Background(), -1); err == nil {
		t.Error("expected error for negative frame")
	}
}

func TestSyntheticNotOpened(t *testing.T) {
	t.Parallel()

	src := NewSynthetic(3, 8, 4)
	if _, err := src.SeekAndDecode(context.Background(), 0); err == nil {
		t.Error("expected error before Open")
	}
}

func TestParseRational(t *testing.T) {
	t.Parallel()

	num, den := parseRational("30000/1001")
	if num != 30000 || den != 1001 {
		t.Errorf("parseRational(30000/1001) = %d/%d", num, den)
	}

	num, den = parseRational("25/1")
	if num != 25 || den != 1 {
		t.Errorf("parseRational(25/1) = %d/%d", num, den)
	}

	num, den = parseRational("garbage")
	if num != 30 || den != 1 {
		t.Errorf("parseRational(garbage) fallback = %d/%d, want 30/1", num, den)
	}
}
