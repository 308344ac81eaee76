package tilejpeg

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/pspoerri/slidejpeg/internal/synthjpeg"
)

// paintPattern is a deterministic non-uniform fill so that every tile of a
// fixture has distinct content.
func paintPattern(x, y int) color.RGBA {
	return color.RGBA{
		R: uint8((x*3 + y) % 251),
		G: uint8((x + y*5) % 239),
		B: uint8((x*x/16 + y*7) % 241),
		A: 255,
	}
}

// buildFixture synthesizes a tiled JPEG, writes it to a temp file and opens
// it through the engine.
func buildFixture(t *testing.T, w, h, tileW int, gray bool, comment string) ([]byte, *OneJPEG) {
	t.Helper()
	data, err := synthjpeg.Build(w, h, tileW, gray, comment, paintPattern)
	if err != nil {
		t.Fatalf("building fixture: %v", err)
	}
	return data, openFixture(t, data)
}

func openFixture(t *testing.T, data []byte) *OneJPEG {
	t.Helper()
	f := writeTemp(t, data)
	j, err := Open(f)
	if err != nil {
		f.Close()
		t.Fatalf("opening fixture: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func writeTemp(t *testing.T, data []byte) *os.File {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture.jpg")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("opening fixture file: %v", err)
	}
	return f
}

func decodeAll(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("reference decode: %v", err)
	}
	return img
}

// refWords produces the expected words for a region by running the shared
// packer over a full reference decode: a windowed read must equal the full
// decode packed the same way.
func refWords(t *testing.T, data []byte, x, y, sd, w, h int) []uint32 {
	t.Helper()
	full := decodeAll(t, data)
	dst := make([]uint32, w*h)
	packWindow(dst, full, x, y, sd, w, h, w)
	return dst
}

// countingReaderAt counts every byte handed out, including re-reads.
type countingReaderAt struct {
	r io.ReaderAt
	n int64
}

func (c *countingReaderAt) ReadAt(p []byte, off int64) (int, error) {
	n, err := c.r.ReadAt(p, off)
	c.n += int64(n)
	return n, err
}

func wordsEqual(t *testing.T, got, want []uint32, w int, label string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("%s: length %d, want %d", label, len(got), len(want))
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("%s: pixel (%d,%d) = %08x, want %08x", label, i%w, i/w, got[i], want[i])
		}
	}
}
