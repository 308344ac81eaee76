package tilejpeg

import (
	"fmt"
	"io"
	"math"
)

// sourceBufSize is the refill granularity of the tile source. The source
// keeps its own buffer and runs the marker-rewrite scan over whole refills.
const sourceBufSize = 4096

// tileSource presents the decoder with a seekable, restart-marker-renumbering
// view of a tiled JPEG, so that the decoder believes it is reading one
// contiguous short scan containing exactly the requested tiles.
//
// The byte stream it produces is, in order:
//
//  1. the header span [0, starts[0]), with the SOF frame dimensions
//     rewritten to the tile-window size as they stream past;
//  2. one data span per requested tile row, [starts[cur], starts[cur+width]),
//     with every RSTn marker renumbered to the cyclic sequence the decoder
//     expects, and the final span trimmed of its trailing restart marker;
//  3. a synthetic EOI.
//
// A tileSource never blocks beyond the underlying ReaderAt and is good for a
// single decode.
type tileSource struct {
	r      io.ReaderAt
	starts []int64

	topLeft int // row-major tile index of the window's top-left tile
	width   int // tiles per requested row
	stride  int // tiles per full-JPEG row
	rows    int // data spans to serve before faking EOI

	// SOF dimension patch; patchOff < 0 disables it.
	patchOff   int64
	patchBytes [4]byte

	buf  []byte
	data []byte // unconsumed tail of buf

	pos         int64 // physical offset of the next byte to fetch
	stop        int64 // physical offset at which the current span ends
	cursor      int   // index into starts of the current span's first tile
	rowsServed  int
	startOfFile bool
	readAny     bool
	nextRST     byte
	eoiPending  bool
	eoiSent     bool
}

// newTileSource configures a source for the tile window with top-left tile
// index topLeft, width tiles per row and rows rows, in a JPEG whose full
// grid is stride tiles across.
func newTileSource(r io.ReaderAt, starts []int64, topLeft, width, rows, stride int) *tileSource {
	s := &tileSource{
		r:           r,
		starts:      starts,
		topLeft:     topLeft,
		width:       width,
		stride:      stride,
		rows:        rows,
		patchOff:    -1,
		buf:         make([]byte, sourceBufSize),
		startOfFile: true,
	}
	if len(starts) == 0 {
		// Degenerate configuration: pass-through whole-file reading.
		s.stop = math.MaxInt64
	} else {
		// Prime the cursor so the first post-header advance lands on topLeft.
		s.cursor = topLeft - stride
		s.stop = starts[0]
	}
	return s
}

// newPassthroughSource reads the whole file with no seeking or rewriting,
// then appends one synthetic EOI after physical EOF.
func newPassthroughSource(r io.ReaderAt) *tileSource {
	return newTileSource(r, nil, 0, 0, 0, 0)
}

// patchSOF arranges for the four frame-dimension bytes at file offset off to
// read as height h and width w while the header span streams past.
func (s *tileSource) patchSOF(off int64, w, h int) {
	s.patchOff = off
	s.patchBytes = [4]byte{byte(h >> 8), byte(h), byte(w >> 8), byte(w)}
}

func (s *tileSource) Read(p []byte) (int, error) {
	for len(s.data) == 0 {
		if err := s.fill(); err != nil {
			return 0, err
		}
	}
	n := copy(p, s.data)
	s.data = s.data[n:]
	return n, nil
}

// advance moves the source to the next data span, or flags the synthetic EOI
// when the window is exhausted.
func (s *tileSource) advance() {
	s.cursor += s.stride
	s.rowsServed++
	if s.rowsServed > s.rows || s.cursor >= len(s.starts) {
		s.eoiPending = true
		return
	}
	s.pos = s.starts[s.cursor]

	stopIdx := s.cursor + s.width
	if stopIdx < len(s.starts) {
		s.stop = s.starts[stopIdx]
		if s.rowsServed == s.rows {
			// The decoder expects no restart marker after the window's
			// final interval; end the last span just before it.
			s.stop -= 2
		}
	} else {
		s.stop = math.MaxInt64
	}
}

func (s *tileSource) fill() error {
	if s.eoiPending {
		if s.eoiSent {
			return io.EOF
		}
		s.buf[0] = 0xFF
		s.buf[1] = markerEOI
		s.data = s.buf[:2]
		s.eoiSent = true
		return nil
	}

	if !s.startOfFile && s.pos == s.stop && len(s.starts) > 0 {
		s.advance()
		if s.eoiPending {
			return s.fill()
		}
	}
	s.startOfFile = false

	want := int64(len(s.buf))
	if remaining := s.stop - s.pos; remaining < want {
		want = remaining
	}
	if want <= 0 {
		// Span ends are handled by advance above; an empty span here means
		// the offset table is inconsistent.
		return fmt.Errorf("tilejpeg: source stalled at offset %d", s.pos)
	}

	n, err := s.r.ReadAt(s.buf[:want], s.pos)
	if n <= 0 {
		if err != nil && err != io.EOF {
			return fmt.Errorf("tilejpeg: reading at offset %d: %w", s.pos, err)
		}
		if !s.readAny {
			return ErrInputEmpty
		}
		// Physical EOF: fake the EOI so the decoder terminates cleanly.
		s.eoiPending = true
		return s.fill()
	}
	s.readAny = true
	b := s.buf[:n]

	inData := len(s.starts) > 0 && s.pos >= s.starts[0]
	if inData {
		s.renumber(b)
		// Never end a refill on 0xFF: a marker pair must not be split
		// across refills or its rewrite would not be atomic. Defer the
		// trailing byte unless it is the only byte we have.
		if b[len(b)-1] == 0xFF && len(b) > 1 {
			b = b[:len(b)-1]
			n--
		}
	} else if s.patchOff >= 0 {
		s.applySOFPatch(b)
	}

	s.pos += int64(n)
	s.data = b
	return nil
}

// renumber rewrites every restart marker in b to the cyclic sequence
// RST0..RST7 the decoder expects for the shortened scan.
func (s *tileSource) renumber(b []byte) {
	lastWasFF := false
	for i, c := range b {
		if lastWasFF && c >= markerRST0 && c <= markerRST7 {
			b[i] = markerRST0 | s.nextRST
			s.nextRST = (s.nextRST + 1) & 7
		}
		lastWasFF = c == 0xFF
	}
}

func (s *tileSource) applySOFPatch(b []byte) {
	for i := int64(0); i < 4; i++ {
		off := s.patchOff + i
		if off >= s.pos && off < s.pos+int64(len(b)) {
			b[off-s.pos] = s.patchBytes[i]
		}
	}
}
