package tilejpeg

import (
	"errors"
	"image/jpeg"
	"testing"
)

func TestReadRegionFull(t *testing.T) {
	data, j := buildFixture(t, 256, 96, 64, false, "")

	got := make([]uint32, 256*96)
	if err := j.ReadRegion(got, 0, 0, 1, 256, 96, 256); err != nil {
		t.Fatalf("ReadRegion: %v", err)
	}
	want := refWords(t, data, 0, 0, 1, 256, 96)
	wordsEqual(t, got, want, 256, "full frame")
}

func TestReadRegionGray(t *testing.T) {
	data, j := buildFixture(t, 128, 64, 32, true, "")

	got := make([]uint32, 128*64)
	if err := j.ReadRegion(got, 0, 0, 1, 128, 64, 128); err != nil {
		t.Fatalf("ReadRegion: %v", err)
	}
	want := refWords(t, data, 0, 0, 1, 128, 64)
	wordsEqual(t, got, want, 128, "gray full frame")
}

func TestReadRegionInterior(t *testing.T) {
	data, j := buildFixture(t, 256, 96, 64, false, "")

	tests := []struct {
		name       string
		x, y, w, h int
	}{
		{"tile aligned", 64, 16, 64, 16},
		{"crosses tiles", 32, 8, 96, 32},
		{"unaligned origin", 37, 21, 50, 40},
		{"single pixel", 255, 95, 1, 1},
		{"right edge", 192, 80, 64, 16},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := make([]uint32, tt.w*tt.h)
			if err := j.ReadRegion(got, tt.x, tt.y, 1, tt.w, tt.h, tt.w); err != nil {
				t.Fatalf("ReadRegion: %v", err)
			}
			want := refWords(t, data, tt.x, tt.y, 1, tt.w, tt.h)
			wordsEqual(t, got, want, tt.w, tt.name)
		})
	}
}

func TestReadRegionScaled(t *testing.T) {
	data, j := buildFixture(t, 256, 96, 64, false, "")

	for _, sd := range []int{2, 4, 8} {
		w, h := 256/sd, 96/sd
		got := make([]uint32, w*h)
		if err := j.ReadRegion(got, 0, 0, sd, w, h, w); err != nil {
			t.Fatalf("ReadRegion sd=%d: %v", sd, err)
		}
		want := refWords(t, data, 0, 0, sd, w, h)
		wordsEqual(t, got, want, w, "scaled full frame")
	}
}

// A region at scale denominator 2 must equal the 2×2 box reduction of the
// same region at scale denominator 1 — exactly, because every scale path
// runs the same reducer.
func TestScaleMatchesBoxReduction(t *testing.T) {
	_, j := buildFixture(t, 256, 96, 64, false, "")

	const x, y, w, h = 64, 32, 64, 16
	full := make([]uint32, w*2*h*2)
	if err := j.ReadRegion(full, x, y, 1, w*2, h*2, w*2); err != nil {
		t.Fatalf("ReadRegion sd=1: %v", err)
	}
	scaled := make([]uint32, w*h)
	if err := j.ReadRegion(scaled, x, y, 2, w, h, w); err != nil {
		t.Fatalf("ReadRegion sd=2: %v", err)
	}

	want := make([]uint32, w*h)
	for row := 0; row < h; row++ {
		for col := 0; col < w; col++ {
			var sr, sg, sb uint32
			for dy := 0; dy < 2; dy++ {
				for dx := 0; dx < 2; dx++ {
					v := full[(row*2+dy)*w*2+col*2+dx]
					sr += v >> 16 & 0xFF
					sg += v >> 8 & 0xFF
					sb += v & 0xFF
				}
			}
			want[row*w+col] = 0xFF000000 | (sr+2)/4<<16 | (sg+2)/4<<8 | (sb+2)/4
		}
	}
	wordsEqual(t, scaled, want, w, "sd=2 vs box-reduced sd=1")
}

// A tile-aligned single-tile read must pull only that restart interval's
// bytes from the scan, plus the header span.
func TestReadRegionByteAccounting(t *testing.T) {
	_, j := buildFixture(t, 256, 96, 64, false, "")

	const tileX, tileY = 1, 2
	stride := j.Width() / j.TileWidth()
	tile := tileY*stride + tileX
	span := j.starts[tile+1] - j.starts[tile]

	counter := &countingReaderAt{r: j.f}
	src := newTileSource(counter, j.starts, tile, 1, 1, stride)
	src.patchSOF(j.info.sofDimOffset, j.TileWidth(), j.TileHeight())
	if _, err := jpeg.Decode(src); err != nil {
		t.Fatalf("decoding single tile: %v", err)
	}

	scanBytes := counter.n - j.starts[0]
	// The span's trailing restart marker is trimmed; refills may re-read a
	// deferred 0xFF. Anything materially above one span means extra tiles
	// were decoded.
	if scanBytes < span-2 || scanBytes > span+16 {
		t.Fatalf("single-tile read pulled %d scan bytes, want ~%d", scanBytes, span)
	}
}

func TestReadRegionShortBuffer(t *testing.T) {
	_, j := buildFixture(t, 64, 32, 32, false, "")

	// Stride smaller than width: rows land at stride intervals.
	const w, h, stride = 16, 8, 32
	buf := make([]uint32, stride*h)
	if err := j.ReadRegion(buf, 0, 0, 1, w, h, stride); err != nil {
		t.Fatalf("ReadRegion: %v", err)
	}
	for row := 0; row < h; row++ {
		for col := w; col < stride; col++ {
			if buf[row*stride+col] != 0 {
				t.Fatalf("pixel outside region width written at (%d,%d)", col, row)
			}
		}
	}
}

func TestReadRegionErrors(t *testing.T) {
	_, j := buildFixture(t, 64, 32, 32, false, "")
	buf := make([]uint32, 64*32)

	if err := j.ReadRegion(buf, 0, 0, 3, 8, 8, 64); err == nil {
		t.Errorf("scale denominator 3 accepted")
	}
	if err := j.ReadRegion(buf, 64, 0, 1, 8, 8, 64); err == nil {
		t.Errorf("origin outside frame accepted")
	}
	if err := j.ReadRegion(buf, -8, 0, 1, 8, 8, 64); err == nil {
		t.Errorf("negative origin accepted")
	}
}

func TestDecodeErrorIdentifiesFile(t *testing.T) {
	data, _ := buildFixture(t, 64, 32, 32, false, "")

	// Plant an illegal marker inside the first tile's entropy data. The
	// indexer ignores it (not a restart marker), so the file still opens;
	// only the read-time decode fails.
	corrupt := append([]byte(nil), data...)
	scanStart, _ := openAndCloseStarts(t, data)
	corrupt[scanStart+4] = 0xFF
	corrupt[scanStart+5] = 0xD8
	j := openFixture(t, corrupt)

	buf := make([]uint32, 64*32)
	err := j.ReadRegion(buf, 0, 0, 1, 64, 32, 64)
	if err == nil {
		t.Fatal("corrupted scan decoded without error")
	}
	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("error %v is not a DecodeError", err)
	}
	if de.File == "" {
		t.Errorf("DecodeError does not identify the file")
	}
}

func openAndCloseStarts(t *testing.T, data []byte) (int64, int) {
	t.Helper()
	j := openFixture(t, data)
	return j.starts[0], len(j.starts)
}
