package colorspace

import "testing"

// solidFrame builds a width*height RGB24 buffer filled with one color.
func solidFrame(width, height int, r, g, b byte) []byte {
	buf := make([]byte, width*height*3)
	for i := 0; i < width*height; i++ {
		buf[i*3] = r
		buf[i*3+1] = g
		buf[i*3+2] = b
	}
	return buf
}

func TestRGB24Identity(t *testing.T) {
	t.Parallel()

	frame := solidFrame(4, 2, 10, 20, 30)
	out, err := RGB24(frame, 4, 2)
	if err != nil {
		t.Fatalf("RGB24: %v", err)
	}
	if len(out) != len(frame) {
		t.Fatalf("len(out) = %d, want %d", len(out), len(frame))
	}
	for i := range frame {
		if out[i] != frame[i] {
			t.Fatalf("byte %d: got %d, want %d", i, out[i], frame[i])
		}
	}
}

func TestRGB24GeometryMismatch(t *testing.T) {
	t.Parallel()

	_, err := RGB24(make([]byte, 10), 4, 2)
	if err == nil {
		t.Fatal("expected error for mismatched geometry")
	}
}

func TestToYUV422Size(t *testing.T) {
	t.Parallel()

	frame := solidFrame(8, 4, 255, 0, 0)
	out, err := ToYUV422(frame, 8, 4)
	if err != nil {
		t.Fatalf("ToYUV422: %v", err)
	}
	want := 8 * 2 * 4
	if len(out) != want {
		t.Fatalf("len(out) = %d, want %d", len(out), want)
	}
}

func TestToYUV422OddWidthDuplicatesLastPixel(t *testing.T) {
	t.Parallel()

	// Odd width: 5 pixels wide, last column duplicated to make width 6.
	width, height := 5, 2
	frame := make([]byte, width*height*3)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			i := (y*width + x) * 3
			frame[i] = byte(x * 10)
			frame[i+1] = byte(x * 10)
			frame[i+2] = byte(x * 10)
		}
	}

	out, err := ToYUV422(frame, width, height)
	if err != nil {
		t.Fatalf("ToYUV422: %v", err)
	}

	evenWidth := 6
	want := evenWidth * 2 * height
	if len(out) != want {
		t.Fatalf("len(out) = %d, want %d", len(out), want)
	}
}

func TestToYUV420PSize(t *testing.T) {
	t.Parallel()

	width, height := 720, 486
	frame := solidFrame(width, height, 128, 64, 200)
	out, err := ToYUV420P(frame, width, height)
	if err != nil {
		t.Fatalf("ToYUV420P: %v", err)
	}

	want := width*height + 2*((width+1)/2)*(height/2+height%2)
	if len(out) != want {
		t.Fatalf("len(out) = %d, want %d", len(out), want)
	}
}

func TestToYUV420POddHeightDuplicatesBottomRow(t *testing.T) {
	t.Parallel()

	width, height := 4, 3
	frame := solidFrame(width, height, 50, 100, 150)
	out, err := ToYUV420P(frame, width, height)
	if err != nil {
		t.Fatalf("ToYUV420P: %v", err)
	}

	evenHeight := 4
	chromaW, chromaH := 2, 2
	want := width*evenHeight + 2*chromaW*chromaH
	if len(out) != want {
		t.Fatalf("len(out) = %d, want %d", len(out), want)
	}
}

func TestSolidColorYChannel(t *testing.T) {
	t.Parallel()

	// Pure white should map to Y=255 (within rounding), U=V=128.
	frame := solidFrame(2, 2, 255, 255, 255)
	out, err := ToYUV420P(frame, 2, 2)
	if err != nil {
		t.Fatalf("ToYUV420P: %v", err)
	}

	y := out[0]
	if y < 254 {
		t.Errorf("Y for white = %d, want ~255", y)
	}
	u, v := out[4], out[5]
	if u != 128 || v != 128 {
		t.Errorf("U,V for white = %d,%d, want 128,128", u, v)
	}
}

func TestConvertDispatch(t *testing.T) {
	t.Parallel()

	frame := solidFrame(4, 2, 1, 2, 3)

	if _, err := Convert(frame, 4, 2, 0); err != nil {
		t.Errorf("Convert RGB24: %v", err)
	}
	if _, err := Convert(frame, 4, 2, 1); err != nil {
		t.Errorf("Convert YUV422: %v", err)
	}
	if _, err := Convert(frame, 4, 2, 2); err != nil {
		t.Errorf("Convert YUV420P: %v", err)
	}
}
