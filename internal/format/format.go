// Package format holds the fixed catalogue of video standards and
// colorspaces the daemon can serve. It is a pure lookup table: no state,
// no I/O, no error path beyond "unrecognized name".
package format

import (
	"fmt"
	"strings"
)

// Standard identifies a video timing standard. Output geometry and frame
// rate are solely a function of the Standard in effect.
type Standard int

const (
	NTSC Standard = iota
	PAL
)

// Colorspace identifies a pixel layout the converter can produce. The
// numeric value is also the wire code sent in the frame header.
type Colorspace int

const (
	RGB24   Colorspace = 0
	YUV422  Colorspace = 1 // packed UYVY
	YUV420P Colorspace = 2 // planar 4:2:0
)

// geometry describes the fixed frame dimensions and rate for a Standard.
type geometry struct {
	width, height          int
	rateNum, rateDen        int
	parNum, parDen          int
}

var geometries = map[Standard]geometry{
	NTSC: {width: 720, height: 486, rateNum: 30000, rateDen: 1001, parNum: 10, parDen: 11},
	PAL:  {width: 720, height: 576, rateNum: 25, rateDen: 1, parNum: 59, parDen: 54},
}

// Geometry returns the fixed width and height for standard.
func Geometry(standard Standard) (width, height int) {
	g := geometries[standard]
	return g.width, g.height
}

// FrameRate returns the frame rate of standard as a rational
// numerator/denominator pair, e.g. NTSC is 30000/1001.
func FrameRate(standard Standard) (num, den int) {
	g := geometries[standard]
	return g.rateNum, g.rateDen
}

// PixelAspect returns the pixel aspect ratio of standard as a rational
// numerator/denominator pair.
func PixelAspect(standard Standard) (num, den int) {
	g := geometries[standard]
	return g.parNum, g.parDen
}

// bpp expresses the average bytes-per-pixel of a Colorspace
// as a rational so BytesPerFrame stays integer-exact (YUV420P is 1.5 B/px).
var bpp = map[Colorspace]struct{ num, den int }{
	RGB24:   {3, 1},
	YUV422:  {2, 1},
	YUV420P: {3, 2},
}

// BytesPerFrame returns the exact payload size, in bytes, of one frame of
// the given standard and colorspace: width * height * bpp_num / bpp_den.
func BytesPerFrame(standard Standard, cs Colorspace) int {
	w, h := Geometry(standard)
	b := bpp[cs]
	return w * h * b.num / b.den
}

// String renders the canonical upper-case name of a Standard.
func (s Standard) String() string {
	switch s {
	case NTSC:
		return "NTSC"
	case PAL:
		return "PAL"
	default:
		return "UNKNOWN"
	}
}

// String renders the canonical upper-case name of a Colorspace.
func (c Colorspace) String() string {
	switch c {
	case RGB24:
		return "RGB24"
	case YUV422:
		return "YUV422"
	case YUV420P:
		return "YUV420P"
	default:
		return "UNKNOWN"
	}
}

// ParseStandard parses a standard name case-insensitively.
func ParseStandard(name string) (Standard, error) {
	switch strings.ToUpper(name) {
	case "NTSC":
		return NTSC, nil
	case "PAL":
		return PAL, nil
	default:
		return 0, fmt.Errorf("unknown video standard: %s", name)
	}
}

// ParseColorspace parses a colorspace name case-insensitively.
func ParseColorspace(name string) (Colorspace, error) {
	switch strings.ToUpper(name) {
	case "RGB24":
		return RGB24, nil
	case "YUV422":
		return YUV422, nil
	case "YUV420P":
		return YUV420P, nil
	default:
		return 0, fmt.Errorf("unknown colorspace: %s", name)
	}
}

// OutputFormat is the mutable (standard, colorspace) pair that fixes the
// geometry and payload size of every frame the daemon produces until it is
// next changed.
type OutputFormat struct {
	Standard   Standard
	Colorspace Colorspace
}

// Geometry returns the fixed width/height of f.
func (f OutputFormat) Geometry() (width, height int) {
	return Geometry(f.Standard)
}

// FrameBytes returns the exact payload size of one frame in f.
func (f OutputFormat) FrameBytes() int {
	return BytesPerFrame(f.Standard, f.Colorspace)
}

// FrameDurationMS returns the nominal duration of one frame in f's standard,
// in milliseconds, as a float (used only for display; wire timestamps use
// the rounded integer form computed by the caller).
func (f OutputFormat) FrameDurationMS() float64 {
	num, den := FrameRate(f.Standard)
	return float64(den) / float64(num) * 1000
}

// Default returns the daemon's default output format: NTSC, RGB24 —
// matching original_source's VideoFormat.ntsc() default colorspace.
func Default() OutputFormat {
	return OutputFormat{Standard: NTSC, Colorspace: RGB24}
}
