package decode

import (
	"context"
	"fmt"
)

// Synthetic is a deterministic, in-process Source used by tests in place
// of a real media file. It generates SMPTE-bar-style RGB24 frames: eight
// vertical color bars whose boundary shifts with the frame index, so
// distinct frame indices are visibly (and byte-wise) distinct without
// needing any actual video decoding, as long as FrameCount does not exceed
// Width (beyond that, neighbouring indices can share a shift and an image).
type Synthetic struct {
	FrameCount int
	Width      int
	Height     int
	RateNum    int
	RateDen    int
	Codec      string

	opened bool
}

var barColors = [8][3]byte{
	{191, 191, 191}, // white/gray
	{191, 191, 0},   // yellow
	{0, 191, 191},   // cyan
	{0, 191, 0},     // green
	{191, 0, 191},   // magenta
	{191, 0, 0},     // red
	{0, 0, 191},     // blue
	{0, 0, 0},       // black
}

// NewSynthetic returns a Synthetic preconfigured with the given geometry
// and a 30000/1001 frame rate, the same defaults original_source's CLI used
// for a freshly generated test source.
func NewSynthetic(frameCount, width, height int) *Synthetic {
	return &Synthetic{
		FrameCount: frameCount,
		Width:      width,
		Height:     height,
		RateNum:    30000,
		RateDen:    1001,
		Codec:      "synthetic",
	}
}

// Open "opens" the synthetic source; path is ignored.
func (s *Synthetic) Open(ctx context.Context, path string) (Info, error) {
	s.opened = true
	return Info{
		FrameCount: s.FrameCount,
		Width:      s.Width,
		Height:     s.Height,
		RateNum:    s.RateNum,
		RateDen:    s.RateDen,
		Codec:      s.Codec,
	}, nil
}

// SeekAndDecode generates the frame at frameIndex directly; there is no
// seek cost for a synthetic source.
func (s *Synthetic) SeekAndDecode(ctx context.Context, frameIndex int) (RawFrame, error) {
	if !s.opened {
		return RawFrame{}, fmt.Errorf("decode: synthetic source not opened")
	}
	if frameIndex < 0 || frameIndex >= s.FrameCount {
		return RawFrame{}, fmt.Errorf("decode: frame %d out of range [0,%d)", frameIndex, s.FrameCount)
	}

	buf := make([]byte, s.Width*s.Height*3)
	// The bar boundary sweeps left-to-right across the frame's lifetime: the
	// shift is frameIndex*Width/FrameCount pixels (integer division).
	shift := (frameIndex * s.Width / maxInt(s.FrameCount, 1)) % s.Width

	for y := 0; y < s.Height; y++ {
		for x := 0; x < s.Width; x++ {
			col := (x + shift) % s.Width
			bar := col * 8 / s.Width
			c := barColors[bar]
			i := (y*s.Width + x) * 3
			buf[i] = c[0]
			buf[i+1] = c[1]
			buf[i+2] = c[2]
		}
	}

	return RawFrame{Index: frameIndex, RGB24: buf}, nil
}

// Close resets the opened flag. Idempotent.
func (s *Synthetic) Close() error {
	s.opened = false
	return nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
