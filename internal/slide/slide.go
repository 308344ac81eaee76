// Package slide assembles tagged, restart-indexed JPEG files into a
// whole-slide image pyramid and serves random-access region reads from it.
package slide

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pspoerri/slidejpeg/internal/tilejpeg"
)

// ErrBadFragmentOrder indicates the input fragments are not in the required
// (z, x, y) row-major sequence.
var ErrBadFragmentOrder = errors.New("slide: fragments out of (z, x, y) order")

// Fragment is one JPEG file tagged with its position in the pyramid:
// level Z, grid column X, grid row Y. Fragments must be supplied sorted by
// (Z, X, Y) in row-major order, starting at (0, 0, 0).
type Fragment struct {
	File *os.File
	Z    int
	X    int
	Y    int
}

// Slide is an open whole-slide image. It owns every member JPEG; the levels
// hold non-owning references into the member list. A Slide serves one region
// read at a time — member file handles are mutated during decode.
type Slide struct {
	jpegs  []*tilejpeg.OneJPEG
	levels []*level
}

// New indexes every fragment and builds the level pyramid. Ownership of the
// fragment files transfers to the slide; on any failure every file is closed
// before returning.
func New(fragments []Fragment) (*Slide, error) {
	if len(fragments) == 0 {
		return nil, errors.New("slide: no fragments")
	}

	jpegs := make([]*tilejpeg.OneJPEG, 0, len(fragments))
	for i, fr := range fragments {
		oj, err := tilejpeg.Open(fr.File)
		if err != nil {
			for _, j := range jpegs {
				j.Close()
			}
			CloseFragments(fragments[i:])
			return nil, fmt.Errorf("slide: fragment (z=%d,x=%d,y=%d): %w", fr.Z, fr.X, fr.Y, err)
		}
		jpegs = append(jpegs, oj)
	}

	levels, err := buildLevels(fragments, jpegs)
	if err != nil {
		for _, j := range jpegs {
			j.Close()
		}
		return nil, err
	}

	return &Slide{jpegs: jpegs, levels: levels}, nil
}

// CloseFragments closes every fragment file without building a slide. This
// is the cleanup path for callers that opened fragments and then decided not
// to construct anything from them.
func CloseFragments(fragments []Fragment) error {
	var first error
	for _, fr := range fragments {
		if fr.File == nil {
			continue
		}
		if err := fr.File.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Close releases the levels, then every member JPEG and its tile index.
func (s *Slide) Close() error {
	s.levels = nil
	var first error
	for _, j := range s.jpegs {
		if err := j.Close(); err != nil && first == nil {
			first = err
		}
	}
	s.jpegs = nil
	return first
}

// LevelCount returns the number of pyramid levels. Level 0 is the largest.
func (s *Slide) LevelCount() int {
	return len(s.levels)
}

// Dimensions returns the scaled pixel size of the given level, or (0, 0) if
// the level is out of range.
func (s *Slide) Dimensions(levelIdx int) (w, h int64) {
	if levelIdx < 0 || levelIdx >= len(s.levels) {
		return 0, 0
	}
	l := s.levels[levelIdx]
	return l.pixelW / int64(l.scaleDenom), l.pixelH / int64(l.scaleDenom)
}

// Comment returns the comment of the first member JPEG, or "".
func (s *Slide) Comment() string {
	if len(s.jpegs) == 0 {
		return ""
	}
	return s.jpegs[0].Comment()
}

// OpenPaths opens the named files as slide fragments and builds a slide.
// A basename of the form "z_x_y" (before the extension) places the file in
// the pyramid; files without coordinates are laid out as a single row at
// z=0 in argument order. Fragments are sorted into (z, x, y) order before
// assembly.
func OpenPaths(paths []string) (*Slide, error) {
	fragments := make([]Fragment, 0, len(paths))
	nextX := 0
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			CloseFragments(fragments)
			return nil, fmt.Errorf("slide: %w", err)
		}
		z, x, y, ok := parseFragmentName(p)
		if !ok {
			z, x, y = 0, nextX, 0
			nextX++
		}
		fragments = append(fragments, Fragment{File: f, Z: z, X: x, Y: y})
	}
	sort.Slice(fragments, func(i, j int) bool {
		a, b := fragments[i], fragments[j]
		if a.Z != b.Z {
			return a.Z < b.Z
		}
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		return a.X < b.X
	})
	return New(fragments)
}

// parseFragmentName extracts (z, x, y) from a basename like "1_0_2.jpg".
func parseFragmentName(path string) (z, x, y int, ok bool) {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	parts := strings.Split(base, "_")
	if len(parts) != 3 {
		return 0, 0, 0, false
	}
	vals := make([]int, 3)
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil || v < 0 {
			return 0, 0, 0, false
		}
		vals[i] = v
	}
	return vals[0], vals[1], vals[2], true
}
