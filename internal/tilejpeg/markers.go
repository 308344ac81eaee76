package tilejpeg

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// JPEG marker bytes (the second byte of an 0xFF-prefixed marker).
const (
	markerSOI  = 0xD8
	markerEOI  = 0xD9
	markerSOF0 = 0xC0 // baseline sequential
	markerSOF1 = 0xC1 // extended sequential, Huffman
	markerSOF2 = 0xC2 // progressive
	markerDHT  = 0xC4
	markerDAC  = 0xCC
	markerDRI  = 0xDD
	markerSOS  = 0xDA
	markerCOM  = 0xFE
	markerRST0 = 0xD0
	markerRST7 = 0xD7
)

// scanInfo is everything the tile engine needs to know about one JPEG before
// touching its entropy-coded data.
type scanInfo struct {
	width  int
	height int
	ncomp  int
	hMax   int // maximum horizontal sampling factor
	vMax   int // maximum vertical sampling factor

	restartInterval int
	comment         string

	// sofDimOffset is the file offset of the four big-endian dimension
	// bytes (height, then width) inside the SOF segment. The fancy source
	// rewrites these to shrink the frame to a tile window.
	sofDimOffset int64

	// scanStart is the file offset of the first entropy-coded byte, just
	// past the SOS header.
	scanStart int64

	// Derived tile geometry.
	mcusPerRow int
	mcuRows    int
	tileWidth  int
	tileHeight int
	tileCount  int
}

// headerScanner walks marker segments while tracking the absolute file offset
// of every byte consumed, so segment fields can be located again later.
type headerScanner struct {
	br  *bufio.Reader
	pos int64
}

func (h *headerScanner) readByte() (byte, error) {
	b, err := h.br.ReadByte()
	if err != nil {
		return 0, err
	}
	h.pos++
	return b, nil
}

func (h *headerScanner) readUint16() (int, error) {
	hi, err := h.readByte()
	if err != nil {
		return 0, err
	}
	lo, err := h.readByte()
	if err != nil {
		return 0, err
	}
	return int(hi)<<8 | int(lo), nil
}

func (h *headerScanner) readFull(p []byte) error {
	n, err := io.ReadFull(h.br, p)
	h.pos += int64(n)
	return err
}

func (h *headerScanner) skip(n int) error {
	m, err := h.br.Discard(n)
	h.pos += int64(m)
	return err
}

// scanHeader parses the marker segments of a baseline JPEG up to and
// including the SOS header. The reader must be positioned at the start of
// the file.
func scanHeader(r io.Reader) (*scanInfo, error) {
	h := &headerScanner{br: bufio.NewReader(r)}
	info := &scanInfo{sofDimOffset: -1}

	b0, err := h.readByte()
	if err != nil {
		if err == io.EOF {
			return nil, ErrInputEmpty
		}
		return nil, fmt.Errorf("reading SOI: %w", err)
	}
	b1, err := h.readByte()
	if err != nil {
		return nil, fmt.Errorf("reading SOI: %w", err)
	}
	if b0 != 0xFF || b1 != markerSOI {
		return nil, fmt.Errorf("%w: missing SOI", ErrInvalidFormat)
	}

	for {
		marker, err := h.nextMarker()
		if err != nil {
			return nil, fmt.Errorf("%w: truncated header", ErrInvalidFormat)
		}

		switch {
		case marker == markerSOF0 || marker == markerSOF1:
			if err := h.parseSOF(info); err != nil {
				return nil, err
			}

		case marker == markerSOF2:
			return nil, fmt.Errorf("%w: progressive JPEG", ErrInvalidFormat)

		case marker >= 0xC3 && marker <= 0xCF && marker != markerDHT && marker != markerDAC:
			return nil, fmt.Errorf("%w: unsupported SOF marker 0x%02X", ErrInvalidFormat, marker)

		case marker == markerDAC:
			return nil, fmt.Errorf("%w: arithmetic coding", ErrInvalidFormat)

		case marker == markerDRI:
			if _, err := h.readUint16(); err != nil {
				return nil, fmt.Errorf("%w: truncated DRI", ErrInvalidFormat)
			}
			ri, err := h.readUint16()
			if err != nil {
				return nil, fmt.Errorf("%w: truncated DRI", ErrInvalidFormat)
			}
			info.restartInterval = ri

		case marker == markerCOM:
			length, err := h.readUint16()
			if err != nil || length < 2 {
				return nil, fmt.Errorf("%w: bad COM segment", ErrInvalidFormat)
			}
			payload := make([]byte, length-2)
			if err := h.readFull(payload); err != nil {
				return nil, fmt.Errorf("%w: truncated COM", ErrInvalidFormat)
			}
			if info.comment == "" {
				// Only the first comment counts, up to the first NUL.
				s := string(payload)
				if i := strings.IndexByte(s, 0); i >= 0 {
					s = s[:i]
				}
				info.comment = s
			}

		case marker == markerSOS:
			length, err := h.readUint16()
			if err != nil || length < 2 {
				return nil, fmt.Errorf("%w: bad SOS segment", ErrInvalidFormat)
			}
			if err := h.skip(length - 2); err != nil {
				return nil, fmt.Errorf("%w: truncated SOS", ErrInvalidFormat)
			}
			info.scanStart = h.pos
			if info.width == 0 {
				return nil, fmt.Errorf("%w: SOS before SOF", ErrInvalidFormat)
			}
			if err := info.deriveTiling(); err != nil {
				return nil, err
			}
			return info, nil

		case marker == markerEOI || (marker >= markerRST0 && marker <= markerRST7):
			return nil, fmt.Errorf("%w: unexpected marker 0x%02X before SOS", ErrInvalidFormat, marker)

		default:
			// DQT, DHT, APPn, and anything else with a plain length field.
			length, err := h.readUint16()
			if err != nil || length < 2 {
				return nil, fmt.Errorf("%w: bad segment 0x%02X", ErrInvalidFormat, marker)
			}
			if err := h.skip(length - 2); err != nil {
				return nil, fmt.Errorf("%w: truncated segment 0x%02X", ErrInvalidFormat, marker)
			}
		}
	}
}

// nextMarker consumes fill bytes and returns the next marker code.
func (h *headerScanner) nextMarker() (byte, error) {
	b, err := h.readByte()
	if err != nil {
		return 0, err
	}
	for b != 0xFF {
		// Tolerate stray bytes between segments the way libjpeg does.
		b, err = h.readByte()
		if err != nil {
			return 0, err
		}
	}
	m, err := h.readByte()
	if err != nil {
		return 0, err
	}
	for m == 0xFF {
		m, err = h.readByte()
		if err != nil {
			return 0, err
		}
	}
	return m, nil
}

func (h *headerScanner) parseSOF(info *scanInfo) error {
	if _, err := h.readUint16(); err != nil {
		return fmt.Errorf("%w: truncated SOF", ErrInvalidFormat)
	}
	precision, err := h.readByte()
	if err != nil {
		return fmt.Errorf("%w: truncated SOF", ErrInvalidFormat)
	}
	if precision != 8 {
		return fmt.Errorf("%w: %d-bit precision", ErrInvalidFormat, precision)
	}

	info.sofDimOffset = h.pos
	height, err := h.readUint16()
	if err != nil {
		return fmt.Errorf("%w: truncated SOF", ErrInvalidFormat)
	}
	width, err := h.readUint16()
	if err != nil {
		return fmt.Errorf("%w: truncated SOF", ErrInvalidFormat)
	}
	if width == 0 || height == 0 {
		return fmt.Errorf("%w: zero frame dimensions", ErrInvalidFormat)
	}
	info.width = width
	info.height = height

	ncomp, err := h.readByte()
	if err != nil {
		return fmt.Errorf("%w: truncated SOF", ErrInvalidFormat)
	}
	if ncomp != 1 && ncomp != 3 {
		return fmt.Errorf("%w: %d components", ErrInvalidFormat, ncomp)
	}
	info.ncomp = int(ncomp)

	for i := 0; i < info.ncomp; i++ {
		var comp [3]byte // id, sampling factors, quant table
		if err := h.readFull(comp[:]); err != nil {
			return fmt.Errorf("%w: truncated SOF", ErrInvalidFormat)
		}
		hv := comp[1]
		hf, vf := int(hv>>4), int(hv&0x0F)
		if hf < 1 || hf > 4 || vf < 1 || vf > 4 {
			return fmt.Errorf("%w: sampling factors %dx%d", ErrInvalidFormat, hf, vf)
		}
		if hf > info.hMax {
			info.hMax = hf
		}
		if vf > info.vMax {
			info.vMax = vf
		}
	}
	return nil
}

// deriveTiling computes the MCU grid and the restart-interval tile geometry,
// rejecting restart structures that do not tile the frame evenly.
func (info *scanInfo) deriveTiling() error {
	mcuW := 8 * info.hMax
	mcuH := 8 * info.vMax
	info.mcusPerRow = (info.width + mcuW - 1) / mcuW
	info.mcuRows = (info.height + mcuH - 1) / mcuH

	ri := info.restartInterval
	if ri == 0 {
		return fmt.Errorf("%w: no restart interval", ErrInvalidFormat)
	}
	totalMCUs := info.mcusPerRow * info.mcuRows
	if totalMCUs%ri != 0 {
		return fmt.Errorf("%w: restart interval %d does not divide %d MCUs",
			ErrInvalidFormat, ri, totalMCUs)
	}
	if info.mcusPerRow%ri != 0 {
		// A restart interval that straddles MCU rows cannot be addressed
		// as a rectangular tile grid.
		return fmt.Errorf("%w: restart interval %d does not divide MCU row of %d",
			ErrInvalidFormat, ri, info.mcusPerRow)
	}

	info.tileWidth = info.width / (info.mcusPerRow / ri)
	info.tileHeight = info.height / info.mcuRows
	if info.width%info.tileWidth != 0 || info.height%info.tileHeight != 0 {
		return fmt.Errorf("%w: %dx%d frame not tiled evenly by %dx%d restart tiles",
			ErrInvalidFormat, info.width, info.height, info.tileWidth, info.tileHeight)
	}
	info.tileCount = totalMCUs / ri
	return nil
}
