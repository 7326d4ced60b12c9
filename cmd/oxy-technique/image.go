package main

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"

	"github.com/go-gl/mathgl/mgl32"
	xdraw "golang.org/x/image/draw"

	"github.com/Carmen-Shannon/oxy-technique/common"
	"github.com/Carmen-Shannon/oxy-technique/engine/renderer/gpu"
)

// toImage converts row-major linear texels to 8-bit RGBA, clamping out-of-range values.
// Alpha is forced opaque since the result surface carries no coverage.
func toImage(texels []mgl32.Vec4, size gpu.Size) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, size.Width, size.Height))
	for y := 0; y < size.Height; y++ {
		for x := 0; x < size.Width; x++ {
			c := texels[y*size.Width+x]
			img.SetRGBA(x, y, color.RGBA{
				R: channel(c[0]),
				G: channel(c[1]),
				B: channel(c[2]),
				A: 0xff,
			})
		}
	}
	return img
}

func channel(v float32) uint8 {
	return uint8(common.Clamp(v, 0, 1)*255 + 0.5)
}

// scaleImage resamples img by scale with Catmull-Rom filtering. A scale of 1 returns img.
func scaleImage(img *image.RGBA, scale float64) *image.RGBA {
	if scale == 1 {
		return img
	}
	b := img.Bounds()
	w := max(int(float64(b.Dx())*scale+0.5), 1)
	h := max(int(float64(b.Dy())*scale+0.5), 1)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)
	return dst
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}
