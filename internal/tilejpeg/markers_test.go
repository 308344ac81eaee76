package tilejpeg

import (
	"bytes"
	"errors"
	"image"
	"image/jpeg"
	"testing"
)

func TestScanHeaderGeometry(t *testing.T) {
	_, j := buildFixture(t, 256, 96, 64, false, "")

	if j.Width() != 256 || j.Height() != 96 {
		t.Errorf("size = %dx%d, want 256x96", j.Width(), j.Height())
	}
	if j.TileWidth() != 64 || j.TileHeight() != 16 {
		t.Errorf("tile = %dx%d, want 64x16", j.TileWidth(), j.TileHeight())
	}
	if j.RestartInterval() != 4 {
		t.Errorf("restart interval = %d, want 4", j.RestartInterval())
	}
	// 4 tiles across, 6 MCU rows.
	if j.TileCount() != 24 {
		t.Errorf("tile count = %d, want 24", j.TileCount())
	}
}

func TestScanHeaderGray(t *testing.T) {
	_, j := buildFixture(t, 128, 64, 32, true, "")

	if j.TileWidth() != 32 || j.TileHeight() != 8 {
		t.Errorf("tile = %dx%d, want 32x8", j.TileWidth(), j.TileHeight())
	}
	if j.RestartInterval() != 4 {
		t.Errorf("restart interval = %d, want 4", j.RestartInterval())
	}
	if j.TileCount() != 32 {
		t.Errorf("tile count = %d, want 32", j.TileCount())
	}
}

func TestScanHeaderComment(t *testing.T) {
	tests := []struct {
		name    string
		comment string
		want    string
	}{
		{"plain", "slide scanner v2", "slide scanner v2"},
		{"nul truncated", "visible\x00hidden", "visible"},
		{"none", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, j := buildFixture(t, 64, 32, 32, false, tt.comment)
			if got := j.Comment(); got != tt.want {
				t.Errorf("comment = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestScanHeaderNoRestartInterval(t *testing.T) {
	// A plain stdlib encode carries no DRI segment.
	var buf bytes.Buffer
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encoding: %v", err)
	}

	f := writeTemp(t, buf.Bytes())
	defer f.Close()
	if _, err := Open(f); !errors.Is(err, ErrInvalidFormat) {
		t.Errorf("Open without DRI = %v, want ErrInvalidFormat", err)
	}
}

func TestScanHeaderEmptyFile(t *testing.T) {
	f := writeTemp(t, nil)
	defer f.Close()
	if _, err := Open(f); !errors.Is(err, ErrInputEmpty) {
		t.Errorf("Open on empty file = %v, want ErrInputEmpty", err)
	}
}

func TestScanHeaderNotJPEG(t *testing.T) {
	f := writeTemp(t, []byte("definitely not a jpeg"))
	defer f.Close()
	if _, err := Open(f); !errors.Is(err, ErrInvalidFormat) {
		t.Errorf("Open on junk = %v, want ErrInvalidFormat", err)
	}
}

func TestScanHeaderTruncated(t *testing.T) {
	data, _ := buildFixture(t, 64, 32, 32, false, "")
	f := writeTemp(t, data[:20])
	defer f.Close()
	if _, err := Open(f); !errors.Is(err, ErrInvalidFormat) {
		t.Errorf("Open on truncated header = %v, want ErrInvalidFormat", err)
	}
}
