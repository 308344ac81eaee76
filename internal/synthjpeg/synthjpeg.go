// Package synthjpeg builds baseline JPEGs with a fixed restart interval for
// tests. The standard library encoder never emits restart markers, but every
// entropy-coded segment it produces is byte-aligned and starts with reset DC
// predictors — exactly the contract at a restart marker. So a tiled JPEG can
// be synthesized by encoding each tile as its own image and splicing the
// scans together with RSTn markers in between, under a single frame header
// carrying the full dimensions and a DRI segment.
package synthjpeg

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
)

const quality = 90

// Build renders a w×h image with paint and encodes it as a baseline JPEG
// whose scan is split into restart intervals of tileW pixels each. Gray
// images use 8×8 MCUs, color images 16×16 (the encoder's 4:2:0 layout), so
// w, h and tileW must be multiples of the MCU size and tileW must divide w.
// The tile height always equals one MCU row. An optional comment is embedded
// as a COM segment.
func Build(w, h, tileW int, gray bool, comment string, paint func(x, y int) color.RGBA) ([]byte, error) {
	mcu := 16
	if gray {
		mcu = 8
	}
	if w%mcu != 0 || h%mcu != 0 || tileW%mcu != 0 || w%tileW != 0 {
		return nil, fmt.Errorf("synthjpeg: %dx%d with tile width %d not aligned to %d-pixel MCUs",
			w, h, tileW, mcu)
	}
	restartInterval := tileW / mcu

	var header []byte
	var scans [][]byte
	for ty := 0; ty < h/mcu; ty++ {
		for tx := 0; tx < w/tileW; tx++ {
			data, err := encodeTile(tx*tileW, ty*mcu, tileW, mcu, gray, paint)
			if err != nil {
				return nil, err
			}
			hdr, scan, err := splitScan(data)
			if err != nil {
				return nil, err
			}
			if header == nil {
				header = hdr
			}
			scans = append(scans, scan)
		}
	}

	header, err := patchHeader(header, w, h, restartInterval, comment)
	if err != nil {
		return nil, err
	}

	var out bytes.Buffer
	out.Write(header)
	for i, scan := range scans {
		out.Write(scan)
		if i < len(scans)-1 {
			out.WriteByte(0xFF)
			out.WriteByte(0xD0 | byte(i%8))
		}
	}
	out.WriteByte(0xFF)
	out.WriteByte(0xD9)
	return out.Bytes(), nil
}

func encodeTile(x0, y0, tw, th int, gray bool, paint func(x, y int) color.RGBA) ([]byte, error) {
	var img image.Image
	if gray {
		m := image.NewGray(image.Rect(0, 0, tw, th))
		for y := 0; y < th; y++ {
			for x := 0; x < tw; x++ {
				m.SetGray(x, y, color.Gray{Y: paint(x0+x, y0+y).R})
			}
		}
		img = m
	} else {
		m := image.NewRGBA(image.Rect(0, 0, tw, th))
		for y := 0; y < th; y++ {
			for x := 0; x < tw; x++ {
				m.SetRGBA(x, y, paint(x0+x, y0+y))
			}
		}
		img = m
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// splitScan divides an encoded JPEG into the bytes through the end of the
// SOS header and the entropy-coded scan without the trailing EOI.
func splitScan(data []byte) (header, scan []byte, err error) {
	i, err := sosEnd(data)
	if err != nil {
		return nil, nil, err
	}
	if len(data) < i+2 || data[len(data)-2] != 0xFF || data[len(data)-1] != 0xD9 {
		return nil, nil, fmt.Errorf("synthjpeg: missing EOI")
	}
	return data[:i], data[i : len(data)-2], nil
}

// sosEnd returns the offset just past the SOS header, where the scan begins.
func sosEnd(data []byte) (int, error) {
	i := 2 // skip SOI
	for i+4 <= len(data) {
		if data[i] != 0xFF {
			return 0, fmt.Errorf("synthjpeg: expected marker at %d", i)
		}
		m := data[i+1]
		length := int(binary.BigEndian.Uint16(data[i+2:]))
		if m == 0xDA {
			return i + 2 + length, nil
		}
		i += 2 + length
	}
	return 0, fmt.Errorf("synthjpeg: no SOS segment")
}

// ScanStart returns the file offset of the first entropy-coded byte of a
// JPEG built by this package (or any single-scan baseline JPEG).
func ScanStart(data []byte) (int64, error) {
	i, err := sosEnd(data)
	return int64(i), err
}

// patchHeader rewrites the SOF dimensions to w×h and inserts a DRI segment
// before SOS and an optional COM segment after SOI.
func patchHeader(header []byte, w, h, restartInterval int, comment string) ([]byte, error) {
	sofOff := -1
	sosOff := -1
	i := 2
	for i+4 <= len(header) {
		m := header[i+1]
		length := int(binary.BigEndian.Uint16(header[i+2:]))
		switch m {
		case 0xC0, 0xC1:
			sofOff = i
		case 0xDA:
			sosOff = i
		}
		if m == 0xDA {
			i = len(header)
			break
		}
		i += 2 + length
	}
	if sofOff < 0 || sosOff < 0 {
		return nil, fmt.Errorf("synthjpeg: header missing SOF or SOS")
	}

	out := make([]byte, 0, len(header)+6+4+len(comment))
	out = append(out, header[:2]...)
	comShift := 0
	if comment != "" {
		out = append(out, 0xFF, 0xFE, byte((len(comment)+2)>>8), byte(len(comment)+2))
		out = append(out, comment...)
		comShift = 4 + len(comment)
	}
	out = append(out, header[2:sosOff]...)
	out = append(out, 0xFF, 0xDD, 0x00, 0x04, byte(restartInterval>>8), byte(restartInterval))
	out = append(out, header[sosOff:]...)

	// SOF layout: marker(2) length(2) precision(1) height(2) width(2).
	sof := sofOff + comShift
	binary.BigEndian.PutUint16(out[sof+5:], uint16(h))
	binary.BigEndian.PutUint16(out[sof+7:], uint16(w))
	return out, nil
}
