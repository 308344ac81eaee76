package tilejpeg

import (
	"testing"

	"github.com/pspoerri/slidejpeg/internal/synthjpeg"
)

func TestIndexOffsets(t *testing.T) {
	data, j := buildFixture(t, 256, 96, 64, false, "")

	scanStart, err := synthjpeg.ScanStart(data)
	if err != nil {
		t.Fatalf("locating scan start: %v", err)
	}

	if len(j.starts) != j.TileCount() {
		t.Fatalf("index has %d offsets, want %d", len(j.starts), j.TileCount())
	}
	if j.starts[0] != scanStart {
		t.Errorf("starts[0] = %d, want scan start %d", j.starts[0], scanStart)
	}

	for i := 1; i < len(j.starts); i++ {
		if j.starts[i] <= j.starts[i-1] {
			t.Fatalf("starts[%d] = %d not after starts[%d] = %d",
				i, j.starts[i], i-1, j.starts[i-1])
		}
		// Every non-initial tile begins right after its restart marker,
		// and the markers cycle RST0..RST7.
		m0, m1 := data[j.starts[i]-2], data[j.starts[i]-1]
		wantMarker := byte(0xD0 | (i-1)%8)
		if m0 != 0xFF || m1 != wantMarker {
			t.Fatalf("bytes before starts[%d] = %02x %02x, want FF %02x", i, m0, m1, wantMarker)
		}
	}
}

func TestIndexStuffedBytes(t *testing.T) {
	// High-entropy content makes 0xFF bytes (stuffed as FF 00) likely in the
	// scan; the index must never mistake them for markers. The marker check
	// below fails if any stuffed byte or FF FF fill is taken for a restart.
	data, j := buildFixture(t, 512, 64, 64, false, "")

	if j.TileCount() != 8*4 {
		t.Fatalf("tile count = %d, want 32", j.TileCount())
	}
	for i, off := range j.starts {
		if off <= 0 || off >= int64(len(data)) {
			t.Fatalf("starts[%d] = %d outside file of %d bytes", i, off, len(data))
		}
		if i == 0 {
			continue
		}
		if m0, m1 := data[off-2], data[off-1]; m0 != 0xFF || m1 != byte(0xD0|(i-1)%8) {
			t.Fatalf("starts[%d] follows %02x %02x, not RST%d", i, m0, m1, (i-1)%8)
		}
	}
}
