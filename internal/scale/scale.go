// Package scale defines the external scaler contract the video source
// depends on to resize decoded frames, and ships one production adapter,
// CatmullRom, built on golang.org/x/image/draw.
package scale

// RGB24Image is a contiguous RGB24 buffer with explicit geometry. It has no
// behavior of its own; it exists so Scaler implementations don't need to
// agree on a wider image interface (image.Image's color model abstraction
// is unwanted overhead for a format this fixed).
type RGB24Image struct {
	Pix    []byte
	Width  int
	Height int
}

// Scaler resamples an RGB24Image to a new geometry with a high-quality
// kernel. Implementations must not mutate src.Pix.
type Scaler interface {
	Scale(src RGB24Image, dstW, dstH int) RGB24Image
}
