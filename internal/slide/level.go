package slide

import (
	"fmt"
	"sort"

	"github.com/pspoerri/slidejpeg/internal/tilejpeg"
)

// level is one entry of the caller-visible pyramid: one z block of JPEGs at
// one scale denominator. The four levels of a z block share the same JPEG
// reference slice; levels never own the JPEGs they index.
type level struct {
	jpegs []*tilejpeg.OneJPEG // row-major, len = jpegsAcross*jpegsDown

	// Total size in unscaled pixels (not divided by scaleDenom).
	pixelW int64
	pixelH int64

	jpegsAcross int
	jpegsDown   int

	// Dimensions of the (0,0) JPEG, used to locate the member covering a
	// given unscaled coordinate. All non-edge members share them.
	image00W int
	image00H int

	scaleDenom int

	// layer-0 unscaled width divided by this level's unscaled width; maps
	// level-0 pixel space into this level's JPEG space.
	noScaleDenomDownsample float64
}

func (l *level) effectiveWidth() int64 {
	return l.pixelW / int64(l.scaleDenom)
}

// isZXYSuccessor reports whether (z, x, y) may directly follow (pz, px, py)
// in the required row-major fragment order.
func isZXYSuccessor(pz, px, py, z, x, y int) bool {
	if z == pz+1 {
		return x == 0 && y == 0
	}
	if z != pz {
		return false
	}
	if y == py+1 {
		return x == 0
	}
	if y != py {
		return false
	}
	return x == px+1
}

// buildLevels walks the fragments in (z, x, y) order, accumulating one grid
// per z block and emitting the four scale-denominator levels for each. The
// result is sorted by descending effective width; equal-width levels from
// different z blocks are all retained, in z order.
func buildLevels(frags []Fragment, jpegs []*tilejpeg.OneJPEG) ([]*level, error) {
	prevZ, prevX, prevY := -1, -1, -1

	var levels []*level
	var blockJPEGs []*tilejpeg.OneJPEG
	var pixelW, pixelH int64
	var image00W, image00H int
	var layer0W int64

	for i, fr := range frags {
		oj := jpegs[i]

		if !isZXYSuccessor(prevZ, prevX, prevY, fr.Z, fr.X, fr.Y) {
			return nil, fmt.Errorf("%w: fragment %d at (z=%d,x=%d,y=%d) after (z=%d,x=%d,y=%d)",
				ErrBadFragmentOrder, i, fr.Z, fr.X, fr.Y, prevZ, prevX, prevY)
		}

		if fr.X == 0 && fr.Y == 0 {
			image00W = oj.Width()
			image00H = oj.Height()
		}
		if fr.Y == 0 {
			pixelW += int64(oj.Width())
		}
		if fr.X == 0 {
			pixelH += int64(oj.Height())
		}
		blockJPEGs = append(blockJPEGs, oj)

		// End of this z block: flush its four scale-denominator levels.
		if i == len(frags)-1 || frags[i+1].Z != fr.Z {
			if fr.Z == 0 {
				layer0W = pixelW
			}
			shared := blockJPEGs
			for sd := 1; sd <= 8; sd <<= 1 {
				levels = append(levels, &level{
					jpegs:                  shared,
					pixelW:                 pixelW,
					pixelH:                 pixelH,
					jpegsAcross:            fr.X + 1,
					jpegsDown:              fr.Y + 1,
					image00W:               image00W,
					image00H:               image00H,
					scaleDenom:             sd,
					noScaleDenomDownsample: float64(layer0W) / float64(pixelW),
				})
			}
			blockJPEGs = nil
			pixelW, pixelH = 0, 0
			image00W, image00H = 0, 0
		}

		prevZ, prevX, prevY = fr.Z, fr.X, fr.Y
	}

	// Largest first. The sort is stable so z blocks that produce the same
	// effective width all survive, in insertion order.
	sort.SliceStable(levels, func(i, j int) bool {
		return levels[i].effectiveWidth() > levels[j].effectiveWidth()
	})
	return levels, nil
}
