package main

import (
	"flag"
	"fmt"
	"image"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"

	"github.com/pspoerri/slidejpeg/internal/encode"
	"github.com/pspoerri/slidejpeg/internal/slide"
)

// Set via -ldflags at build time.
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	var (
		level       int
		x, y        int64
		w, h        int
		format      string
		quality     int
		output      string
		pyramid     bool
		tileSize    int
		showVersion bool
		cpuProfile  string
		memProfile  string
	)

	flag.IntVar(&level, "level", 0, "Pyramid level to read from")
	flag.Int64Var(&x, "x", 0, "Region origin X in level pixels")
	flag.Int64Var(&y, "y", 0, "Region origin Y in level pixels")
	flag.IntVar(&w, "w", 0, "Region width in pixels")
	flag.IntVar(&h, "h", 0, "Region height in pixels")
	flag.StringVar(&format, "format", "jpeg", "Output encoding: jpeg, png, webp")
	flag.IntVar(&quality, "quality", 85, "JPEG/WebP quality 1-100")
	flag.StringVar(&output, "o", "", "Output file (region mode) or directory (-pyramid)")
	flag.BoolVar(&pyramid, "pyramid", false, "Export every level as a grid of tiles")
	flag.IntVar(&tileSize, "tile-size", 512, "Tile size for -pyramid export")
	flag.BoolVar(&showVersion, "version", false, "Print version and exit")
	flag.StringVar(&cpuProfile, "cpuprofile", "", "Write CPU profile to file")
	flag.StringVar(&memProfile, "memprofile", "", "Write memory profile to file")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: slideextract [flags] <z_x_y.jpg ...>\n\n")
		fmt.Fprintf(os.Stderr, "Extract a pixel region (or the whole pyramid) from a tiled-JPEG slide.\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if showVersion {
		fmt.Printf("slideextract %s (commit %s, built %s)\n", version, commit, buildDate)
		os.Exit(0)
	}
	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	if cpuProfile != "" {
		f, err := os.Create(cpuProfile)
		if err != nil {
			log.Fatalf("Creating CPU profile: %v", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			log.Fatalf("Starting CPU profile: %v", err)
		}
		defer pprof.StopCPUProfile()
	}
	if memProfile != "" {
		defer func() {
			f, err := os.Create(memProfile)
			if err != nil {
				log.Fatalf("Creating memory profile: %v", err)
			}
			defer f.Close()
			runtime.GC()
			if err := pprof.WriteHeapProfile(f); err != nil {
				log.Fatalf("Writing memory profile: %v", err)
			}
		}()
	}

	enc, err := encode.NewEncoder(format, quality)
	if err != nil {
		log.Fatalf("%v", err)
	}

	s, err := slide.OpenPaths(flag.Args())
	if err != nil {
		log.Fatalf("Opening slide: %v", err)
	}
	defer s.Close()

	if pyramid {
		if output == "" {
			output = "tiles"
		}
		if err := exportPyramid(s, enc, output, tileSize); err != nil {
			log.Fatalf("Exporting pyramid: %v", err)
		}
		return
	}

	if w <= 0 || h <= 0 {
		log.Fatalf("Region mode needs -w and -h (or use -pyramid)")
	}
	img, err := s.RegionRGBA(x, y, level, w, h)
	if err != nil {
		log.Fatalf("Reading region: %v", err)
	}
	data, err := enc.Encode(img)
	if err != nil {
		log.Fatalf("Encoding region: %v", err)
	}
	if output == "" {
		output = fmt.Sprintf("region_l%d_%d_%d%s", level, x, y, enc.FileExtension())
	}
	if err := os.WriteFile(output, data, 0o644); err != nil {
		log.Fatalf("Writing %s: %v", output, err)
	}
	log.Printf("Wrote %s (%d bytes)", output, len(data))
}

// exportPyramid writes every level as a grid of tileSize×tileSize images
// under dir/<level>/<col>_<row>.<ext>. Each tile is read once, in row-major
// order per level.
func exportPyramid(s *slide.Slide, enc encode.Encoder, dir string, tileSize int) error {
	words := make([]uint32, tileSize*tileSize)

	for level := 0; level < s.LevelCount(); level++ {
		lw, lh := s.Dimensions(level)
		cols := int((lw + int64(tileSize) - 1) / int64(tileSize))
		rows := int((lh + int64(tileSize) - 1) / int64(tileSize))

		levelDir := filepath.Join(dir, fmt.Sprintf("%d", level))
		if err := os.MkdirAll(levelDir, 0o755); err != nil {
			return err
		}

		pb := newExportProgress(level, s.LevelCount(), int64(cols*rows))
		for row := 0; row < rows; row++ {
			for col := 0; col < cols; col++ {
				err := s.ReadRegion(words,
					int64(col)*int64(tileSize), int64(row)*int64(tileSize),
					level, tileSize, tileSize)
				if err != nil {
					pb.Finish()
					return err
				}

				img := wordsToRGBA(words, tileSize, tileSize)
				data, err := enc.Encode(img)
				if err != nil {
					pb.Finish()
					return err
				}
				name := fmt.Sprintf("%d_%d%s", col, row, enc.FileExtension())
				if err := os.WriteFile(filepath.Join(levelDir, name), data, 0o644); err != nil {
					pb.Finish()
					return err
				}
				pb.Add(len(data))
			}
		}
		pb.Finish()
	}
	return nil
}

func wordsToRGBA(words []uint32, w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i, v := range words {
		p := img.Pix[i*4:]
		p[0] = byte(v >> 16)
		p[1] = byte(v >> 8)
		p[2] = byte(v)
		p[3] = byte(v >> 24)
	}
	return img
}
