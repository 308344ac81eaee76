package tilejpeg

import (
	"bufio"
	"fmt"
	"io"
	"math"
)

// indexRestarts scans the entropy-coded stream once and records the file
// offset at which every restart interval ("tile") begins. Offset zero is the
// first byte after the SOS header; each subsequent entry is the byte just
// past a RSTn marker. The logical position is a running count of consumed
// bytes, the buffered-reader equivalent of ftell minus the bytes still
// sitting in the codec's input buffer.
func indexRestarts(r io.ReaderAt, info *scanInfo) ([]int64, error) {
	starts := make([]int64, 1, info.tileCount)
	starts[0] = info.scanStart

	sr := io.NewSectionReader(r, info.scanStart, math.MaxInt64-info.scanStart)
	br := bufio.NewReaderSize(sr, 1<<16)

	pos := info.scanStart
	lastWasFF := false
	for len(starts) < info.tileCount {
		b, err := br.ReadByte()
		if err != nil {
			if err == io.EOF {
				return nil, fmt.Errorf("%w: scan ended after %d of %d tiles",
					ErrInvalidFormat, len(starts), info.tileCount)
			}
			return nil, fmt.Errorf("indexing restart markers: %w", err)
		}
		pos++

		if lastWasFF {
			if b == markerEOI {
				return nil, fmt.Errorf("%w: EOI after %d of %d tiles",
					ErrInvalidFormat, len(starts), info.tileCount)
			}
			if b >= markerRST0 && b <= markerRST7 {
				starts = append(starts, pos)
			}
			// 0xFF 0x00 is a stuffed data byte; anything else is scan data.
		}
		lastWasFF = b == 0xFF
	}

	for i := 1; i < len(starts); i++ {
		if starts[i] <= starts[i-1] {
			return nil, fmt.Errorf("%w: non-increasing tile offsets", ErrInvalidFormat)
		}
	}
	return starts, nil
}
