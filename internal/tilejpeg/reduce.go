package tilejpeg

import (
	"image"
	"image/color"
)

// packWindow copies pixels from a decoded tile window into dst as 0xAARRGGBB
// words with alpha forced opaque. (offX, offY) is the region origin inside
// the window in unscaled pixels (both multiples of sd); every sd×sd block
// reduces to one output pixel by box averaging. At most w×h pixels are
// written, one row per stride words; rows or columns the window does not
// cover are left untouched.
//
// All scale paths funnel through this one reducer, so a region read at
// sd=2 equals the 2×2 box reduction of the same region read at sd=1
// exactly, not approximately.
func packWindow(dst []uint32, img image.Image, offX, offY, sd, w, h, stride int) {
	bounds := img.Bounds()
	iw, ih := bounds.Dx(), bounds.Dy()

	rgbAt := rgbAccessor(img)

	cols := (iw - offX) / sd
	if cols > w {
		cols = w
	}

	n := uint32(sd * sd)
	half := n / 2
	for row := 0; row < h; row++ {
		sy := offY + row*sd
		if sy+sd > ih {
			// Tolerate a short scan: remaining rows keep their old contents.
			break
		}
		out := dst[row*stride:]
		for col := 0; col < cols; col++ {
			sx := offX + col*sd
			if sd == 1 {
				r, g, b := rgbAt(sx, sy)
				out[col] = 0xFF000000 | r<<16 | g<<8 | b
				continue
			}
			var sr, sg, sb uint32
			for dy := 0; dy < sd; dy++ {
				for dx := 0; dx < sd; dx++ {
					r, g, b := rgbAt(sx+dx, sy+dy)
					sr += r
					sg += g
					sb += b
				}
			}
			out[col] = 0xFF000000 |
				((sr + half) / n << 16) |
				((sg + half) / n << 8) |
				((sb + half) / n)
		}
	}
}

// rgbAccessor returns a pixel fetcher for img, with direct plane access for
// the image types the JPEG decoder actually produces.
func rgbAccessor(img image.Image) func(x, y int) (r, g, b uint32) {
	switch m := img.(type) {
	case *image.YCbCr:
		return func(x, y int) (uint32, uint32, uint32) {
			yi := m.YOffset(x, y)
			ci := m.COffset(x, y)
			r, g, b := color.YCbCrToRGB(m.Y[yi], m.Cb[ci], m.Cr[ci])
			return uint32(r), uint32(g), uint32(b)
		}
	case *image.Gray:
		return func(x, y int) (uint32, uint32, uint32) {
			v := uint32(m.GrayAt(x, y).Y)
			return v, v, v
		}
	case *image.RGBA:
		return func(x, y int) (uint32, uint32, uint32) {
			i := m.PixOffset(x, y)
			return uint32(m.Pix[i]), uint32(m.Pix[i+1]), uint32(m.Pix[i+2])
		}
	default:
		return func(x, y int) (uint32, uint32, uint32) {
			r, g, b, _ := img.At(x, y).RGBA()
			return r >> 8, g >> 8, b >> 8
		}
	}
}
