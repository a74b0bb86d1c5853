package scale

import (
	"image"

	"golang.org/x/image/draw"
)

// CatmullRom resamples RGB24 frames using x/image/draw's Catmull-Rom
// (cubic) kernel, a high-quality Lanczos-class resampler suitable for
// resizing decoded frames to the active output geometry.
type CatmullRom struct{}

// Scale resamples src to dstW x dstH. If the geometry already matches, the
// caller should skip calling Scale entirely; the identity case is handled
// by internal/videosource, not here.
func (CatmullRom) Scale(src RGB24Image, dstW, dstH int) RGB24Image {
	srcImg := rgb24ToRGBA(src)
	dstImg := image.NewRGBA(image.Rect(0, 0, dstW, dstH))

	draw.CatmullRom.Scale(dstImg, dstImg.Bounds(), srcImg, srcImg.Bounds(), draw.Src, nil)

	return rgbaToRGB24(dstImg, dstW, dstH)
}

func rgb24ToRGBA(src RGB24Image) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, src.Width, src.Height))
	for i := 0; i < src.Width*src.Height; i++ {
		img.Pix[i*4] = src.Pix[i*3]
		img.Pix[i*4+1] = src.Pix[i*3+1]
		img.Pix[i*4+2] = src.Pix[i*3+2]
		img.Pix[i*4+3] = 255
	}
	return img
}

func rgbaToRGB24(img *image.RGBA, width, height int) RGB24Image {
	out := make([]byte, width*height*3)
	for i := 0; i < width*height; i++ {
		out[i*3] = img.Pix[i*4]
		out[i*3+1] = img.Pix[i*4+1]
		out[i*3+2] = img.Pix[i*4+2]
	}
	return RGB24Image{Pix: out, Width: width, Height: height}
}
