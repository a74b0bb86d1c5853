// Package colorspace converts decoded RGB24 pixel buffers into the wire
// colorspaces the daemon can serve: RGB24 (identity), packed YUV422 (UYVY),
// and planar YUV420P. Conversion uses BT.601 limited-range coefficients and
// rounds half-to-even.
package colorspace

import (
	"fmt"
	"math"

	"github.com/zsiec/vtsourced/internal/format"
)

// ConvertError is returned when the supplied buffer disagrees with the
// declared geometry.
type ConvertError struct {
	Width, Height int
	Got           int
}

func (e *ConvertError) Error() string {
	return fmt.Sprintf("colorspace: buffer length %d does not match declared geometry %dx%d*3", e.Got, e.Width, e.Height)
}

func checkRGB24(rgb []byte, width, height int) error {
	want := width * height * 3
	if len(rgb) != want {
		return &ConvertError{Width: width, Height: height, Got: len(rgb)}
	}
	return nil
}

func roundByte(v float64) byte {
	if v < 0 {
		v = 0
	} else if v > 255 {
		v = 255
	}
	return byte(math.RoundToEven(v))
}

// yuv converts a single RGB triple to Y, U, V using BT.601 limited-range
// coefficients, clamped to [0,255] and rounded half-to-even.
func yuv(r, g, b byte) (y, u, v byte) {
	rf, gf, bf := float64(r), float64(g), float64(b)
	y = roundByte(0.299*rf + 0.587*gf + 0.114*bf)
	u = roundByte(-0.169*rf - 0.331*gf + 0.500*bf + 128)
	v = roundByte(0.500*rf - 0.419*gf - 0.081*bf + 128)
	return
}

// RGB24 is the identity conversion: the input is already in the target
// colorspace, so it is returned unmodified. Callers may treat the returned
// slice as an alias of rgb (zero-copy permitted).
func RGB24(rgb []byte, width, height int) ([]byte, error) {
	if err := checkRGB24(rgb, width, height); err != nil {
		return nil, err
	}
	return rgb, nil
}

// ToYUV422 converts an RGB24 buffer to packed 4:2:2 UYVY. If width is odd,
// the right-most pixel of each row is duplicated before conversion so every
// chroma pair is well-defined.
func ToYUV422(rgb []byte, width, height int) ([]byte, error) {
	if err := checkRGB24(rgb, width, height); err != nil {
		return nil, err
	}

	evenWidth := width
	if evenWidth%2 != 0 {
		evenWidth++
	}

	out := make([]byte, evenWidth*2*height)
	row := make([]byte, evenWidth*3)

	for y := 0; y < height; y++ {
		src := rgb[y*width*3 : (y+1)*width*3]
		copy(row, src)
		if evenWidth != width {
			// Duplicate the right-most pixel into the padding column.
			last := src[(width-1)*3 : width*3]
			copy(row[(evenWidth-1)*3:], last)
		}

		dst := out[y*evenWidth*2 : (y+1)*evenWidth*2]
		for px := 0; px < evenWidth; px += 2 {
			r0, g0, b0 := row[px*3], row[px*3+1], row[px*3+2]
			r1, g1, b1 := row[(px+1)*3], row[(px+1)*3+1], row[(px+1)*3+2]

			y0, u0, v0 := yuv(r0, g0, b0)
			y1, u1, v1 := yuv(r1, g1, b1)

			u := byte(math.RoundToEven(float64(uint16(u0)+uint16(u1)) / 2))
			v := byte(math.RoundToEven(float64(uint16(v0)+uint16(v1)) / 2))

			o := px * 2
			dst[o] = u
			dst[o+1] = y0
			dst[o+2] = v
			dst[o+3] = y1
		}
	}

	return out, nil
}

// ToYUV420P converts an RGB24 buffer to planar 4:2:0: a full-resolution Y
// plane followed by half-width, half-height U and V planes. If height is
// odd, the bottom row is duplicated before conversion.
func ToYUV420P(rgb []byte, width, height int) ([]byte, error) {
	if err := checkRGB24(rgb, width, height); err != nil {
		return nil, err
	}

	evenHeight := height
	if evenHeight%2 != 0 {
		evenHeight++
	}
	chromaW := (width + 1) / 2
	chromaH := evenHeight / 2

	ySize := width * evenHeight
	cSize := chromaW * chromaH
	out := make([]byte, ySize+2*cSize)

	yPlane := out[:ySize]
	uPlane := out[ySize : ySize+cSize]
	vPlane := out[ySize+cSize:]

	rowAt := func(row int) []byte {
		if row >= height {
			row = height - 1
		}
		return rgb[row*width*3 : (row+1)*width*3]
	}

	for row := 0; row < evenHeight; row++ {
		src := rowAt(row)
		for x := 0; x < width; x++ {
			r, g, b := src[x*3], src[x*3+1], src[x*3+2]
			y, _, _ := yuv(r, g, b)
			yPlane[row*width+x] = y
		}
	}

	for cy := 0; cy < chromaH; cy++ {
		top := rowAt(2 * cy)
		bot := rowAt(2*cy + 1)
		for cx := 0; cx < chromaW; cx++ {
			x0 := 2 * cx
			x1 := x0 + 1
			if x1 >= width {
				x1 = x0
			}

			var usum, vsum uint16

			_, u00, v00 := yuv(top[x0*3], top[x0*3+1], top[x0*3+2])
			_, u01, v01 := yuv(top[x1*3], top[x1*3+1], top[x1*3+2])
			_, u10, v10 := yuv(bot[x0*3], bot[x0*3+1], bot[x0*3+2])
			_, u11, v11 := yuv(bot[x1*3], bot[x1*3+1], bot[x1*3+2])

			usum = uint16(u00) + uint16(u01) + uint16(u10) + uint16(u11)
			vsum = uint16(v00) + uint16(v01) + uint16(v10) + uint16(v11)

			idx := cy*chromaW + cx
			uPlane[idx] = byte(math.RoundToEven(float64(usum) / 4))
			vPlane[idx] = byte(math.RoundToEven(float64(vsum) / 4))
		}
	}

	return out, nil
}

// Convert dispatches to the conversion function for the requested target
// colorspace.
func Convert(rgb []byte, width, height int, cs format.Colorspace) ([]byte, error) {
	switch cs {
	case format.RGB24:
		return RGB24(rgb, width, height)
	case format.YUV422:
		return ToYUV422(rgb, width, height)
	case format.YUV420P:
		return ToYUV420P(rgb, width, height)
	default:
		return nil, fmt.Errorf("colorspace: unsupported target %s", cs)
	}
}
