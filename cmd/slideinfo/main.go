package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/pspoerri/slidejpeg/internal/slide"
	"github.com/pspoerri/slidejpeg/internal/tilejpeg"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: slideinfo <z_x_y.jpg ...>\n")
		os.Exit(1)
	}
	paths := os.Args[1:]
	sort.Strings(paths)

	// Per-file tile structure first, independent of pyramid assembly.
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		j, err := tilejpeg.Open(f)
		if err != nil {
			f.Close()
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("File: %s\n", p)
		fmt.Printf("  Size: %d x %d\n", j.Width(), j.Height())
		fmt.Printf("  Tile: %d x %d (restart interval %d MCUs, %d tiles)\n",
			j.TileWidth(), j.TileHeight(), j.RestartInterval(), j.TileCount())
		if c := j.Comment(); c != "" {
			fmt.Printf("  Comment: %q\n", c)
		}
		j.Close()
	}

	s, err := slide.OpenPaths(paths)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer s.Close()

	fmt.Printf("\nSlide: %d file(s), %d level(s)\n", len(paths), s.LevelCount())
	for level := 0; level < s.LevelCount(); level++ {
		w, h := s.Dimensions(level)
		fmt.Printf("  Level %d: %d x %d\n", level, w, h)
	}
}
