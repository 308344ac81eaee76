package slide

import (
	"fmt"
	"image"
)

// ReadRegion reads a w×h region whose top-left corner is (x, y) in the
// scaled pixel space of the given level, writing w*h 0xAARRGGBB words into
// dst in row-major order. Alpha is always 0xFF. Parts of the rectangle
// outside the level are zero-filled.
//
// The region is assembled member JPEG by member JPEG, top-to-bottom then
// left-to-right; within one member, scanlines are written top-to-bottom.
func (s *Slide) ReadRegion(dst []uint32, x, y int64, levelIdx int, w, h int) error {
	if levelIdx < 0 || levelIdx >= len(s.levels) {
		return fmt.Errorf("slide: level %d out of range (have %d)", levelIdx, len(s.levels))
	}
	if w <= 0 || h <= 0 {
		return fmt.Errorf("slide: non-positive region %dx%d", w, h)
	}
	if len(dst) < w*h {
		return fmt.Errorf("slide: destination holds %d words, need %d", len(dst), w*h)
	}
	clear(dst[:w*h])

	l := s.levels[levelIdx]
	sd := int64(l.scaleDenom)
	rel := l.noScaleDenomDownsample

	// The per-JPEG reader does the actual reduction; here the scale
	// denominator only maps the origin and extents into unscaled JPEG
	// space. A negative origin just widens the zero margin.
	destOffX, destOffY := int64(0), int64(0)
	if x < 0 {
		destOffX = -x
		x = 0
	}
	if y < 0 {
		destOffY = -y
		y = 0
	}
	if destOffX >= int64(w) || destOffY >= int64(h) {
		return nil
	}
	effW := int64(w) - destOffX
	effH := int64(h) - destOffY

	// Map into this level's unscaled JPEG space (multiply by the scale
	// denominator, divide by the relative downsample) and round down to a
	// scale-denominator boundary so no fractional-pixel resampling is
	// ever needed.
	srcY := int64(float64(y) * float64(sd) / rel)
	srcY = srcY / sd * sd
	destY := int64(0)
	endSrcY := srcY + effH*sd
	if endSrcY > l.pixelH {
		endSrcY = l.pixelH
	}

	for srcY < endSrcY {
		fileY := srcY / int64(l.image00H)
		originSegY := fileY * int64(l.image00H)
		endInSegY := min(originSegY+int64(l.image00H), endSrcY) - originSegY
		startInSegY := srcY - originSegY
		destH := (endInSegY - startInSegY) / sd

		srcX := int64(float64(x) * float64(sd) / rel)
		srcX = srcX / sd * sd
		destX := int64(0)
		endSrcX := srcX + effW*sd
		if endSrcX > l.pixelW {
			endSrcX = l.pixelW
		}

		for srcX < endSrcX {
			fileX := srcX / int64(l.image00W)
			originSegX := fileX * int64(l.image00W)
			endInSegX := min(originSegX+int64(l.image00W), endSrcX) - originSegX
			startInSegX := srcX - originSegX
			destW := (endInSegX - startInSegX) / sd

			if destW > 0 && destH > 0 {
				oj := l.jpegs[fileY*int64(l.jpegsAcross)+fileX]
				off := (destOffY+destY)*int64(w) + destOffX + destX
				err := oj.ReadRegion(dst[off:], int(startInSegX), int(startInSegY),
					l.scaleDenom, int(destW), int(destH), w)
				if err != nil {
					return err
				}
			}

			destX += destW
			srcX = originSegX + endInSegX
		}

		destY += destH
		srcY = originSegY + endInSegY
	}
	return nil
}

// RegionRGBA reads a region like ReadRegion and returns it as an RGBA image,
// the form the output encoders consume.
func (s *Slide) RegionRGBA(x, y int64, levelIdx int, w, h int) (*image.RGBA, error) {
	words := make([]uint32, w*h)
	if err := s.ReadRegion(words, x, y, levelIdx, w, h); err != nil {
		return nil, err
	}
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i, v := range words {
		p := img.Pix[i*4:]
		p[0] = byte(v >> 16)
		p[1] = byte(v >> 8)
		p[2] = byte(v)
		p[3] = byte(v >> 24)
	}
	return img, nil
}
