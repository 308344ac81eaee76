// Package tilejpeg gives random access to rectangular regions of baseline
// JPEG files whose scans are divided by a fixed restart interval. Each
// restart interval covers a rectangle of pixels (a "tile": one MCU row tall,
// restart-interval MCUs wide), so a one-time index of marker offsets lets a
// reader decode only the tiles overlapping a requested region.
package tilejpeg

import (
	"fmt"
	"image/jpeg"
	"io"
	"os"
)

// OneJPEG is an indexed, randomly addressable tiled JPEG. It owns the file
// handle passed to Open. The handle and the source state are mutated during
// a decode, so a OneJPEG must not serve concurrent reads.
type OneJPEG struct {
	f      *os.File
	name   string
	info   *scanInfo
	starts []int64 // tile-start offsets, row-major, strictly increasing
}

// Open indexes the JPEG read from f and takes ownership of the handle on
// success. On failure the handle is left open for the caller to dispose of.
func Open(f *os.File) (*OneJPEG, error) {
	name := f.Name()

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewinding %s: %w", name, err)
	}
	info, err := scanHeader(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	starts, err := indexRestarts(f, info)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	return &OneJPEG{f: f, name: name, info: info, starts: starts}, nil
}

// Close releases the file handle and the tile index.
func (j *OneJPEG) Close() error {
	err := j.f.Close()
	j.starts = nil
	return err
}

// Name returns the path the file was opened with.
func (j *OneJPEG) Name() string { return j.name }

// Width returns the decoded frame width in pixels.
func (j *OneJPEG) Width() int { return j.info.width }

// Height returns the decoded frame height in pixels.
func (j *OneJPEG) Height() int { return j.info.height }

// TileWidth returns the pixel width covered by one restart interval.
func (j *OneJPEG) TileWidth() int { return j.info.tileWidth }

// TileHeight returns the pixel height covered by one restart interval.
func (j *OneJPEG) TileHeight() int { return j.info.tileHeight }

// TileCount returns the number of restart intervals in the scan.
func (j *OneJPEG) TileCount() int { return len(j.starts) }

// Comment returns the payload of the first COM marker, truncated at the
// first NUL, or "" if the file carries none.
func (j *OneJPEG) Comment() string { return j.info.comment }

// RestartInterval returns the scan's restart interval in MCUs.
func (j *OneJPEG) RestartInterval() int { return j.info.restartInterval }

// ReadRegion decodes the region with top-left corner (x, y) in the JPEG's
// unscaled pixel space into dst, producing w×h pixels at the given scale
// denominator (1, 2, 4 or 8; larger denominators shrink the output by box
// reduction). dst receives 0xAARRGGBB words, one row every stride words.
// x and y must be multiples of scaleDenom. Rows and columns past the frame
// edge are left untouched.
//
// Only the restart intervals overlapping the region are read and decoded:
// the source presents them to the decoder as one shortened scan whose frame
// header is rewritten to the tile-window size.
func (j *OneJPEG) ReadRegion(dst []uint32, x, y, scaleDenom, w, h, stride int) error {
	if scaleDenom != 1 && scaleDenom != 2 && scaleDenom != 4 && scaleDenom != 8 {
		return fmt.Errorf("tilejpeg: scale denominator %d not in {1,2,4,8}", scaleDenom)
	}
	if x < 0 || y < 0 || x >= j.info.width || y >= j.info.height {
		return fmt.Errorf("tilejpeg: origin (%d,%d) outside %dx%d frame",
			x, y, j.info.width, j.info.height)
	}
	if w <= 0 || h <= 0 {
		return nil
	}

	tileW, tileH := j.info.tileWidth, j.info.tileHeight
	tileX, tileY := x/tileW, y/tileH
	strideInTiles := j.info.width / tileW
	tileRows := j.info.height / tileH

	widthInTiles := (w*scaleDenom + x%tileW + tileW - 1) / tileW
	heightInTiles := (h*scaleDenom + y%tileH + tileH - 1) / tileH
	if max := strideInTiles - tileX; widthInTiles > max {
		widthInTiles = max
	}
	if max := tileRows - tileY; heightInTiles > max {
		heightInTiles = max
	}

	src := newTileSource(j.f, j.starts,
		tileY*strideInTiles+tileX, widthInTiles, heightInTiles, strideInTiles)
	src.patchSOF(j.info.sofDimOffset, widthInTiles*tileW, heightInTiles*tileH)

	img, err := jpeg.Decode(src)
	if err != nil {
		return &DecodeError{File: j.name, Err: err}
	}

	packWindow(dst, img, x%tileW, y%tileH, scaleDenom, w, h, stride)
	return nil
}
