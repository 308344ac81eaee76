package main

import (
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"time"
)

// exportProgress reports one pyramid level's export on the terminal: tiles
// written, encoded output volume, and throughput, refreshed in place.
type exportProgress struct {
	level      int
	levelCount int
	total      int64

	tiles atomic.Int64
	bytes atomic.Int64

	start  time.Time
	done   chan struct{}
	exited chan struct{}
}

func newExportProgress(level, levelCount int, total int64) *exportProgress {
	p := &exportProgress{
		level:      level,
		levelCount: levelCount,
		total:      total,
		start:      time.Now(),
		done:       make(chan struct{}),
		exited:     make(chan struct{}),
	}
	go p.run()
	return p
}

// Add records one written tile of the given encoded size.
func (p *exportProgress) Add(tileBytes int) {
	p.tiles.Add(1)
	p.bytes.Add(int64(tileBytes))
}

// Finish stops the refresh loop, waits for it, and prints the final state
// with a newline.
func (p *exportProgress) Finish() {
	close(p.done)
	<-p.exited
	fmt.Fprintf(os.Stderr, "\r%s\033[K\n", p.line())
}

func (p *exportProgress) run() {
	defer close(p.exited)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
			fmt.Fprintf(os.Stderr, "\r%s\033[K", p.line())
		}
	}
}

func (p *exportProgress) line() string {
	tiles := p.tiles.Load()
	var frac float64
	if p.total > 0 {
		frac = float64(tiles) / float64(p.total)
	}
	if frac > 1 {
		frac = 1
	}

	const barWidth = 30
	filled := int(barWidth * frac)
	bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)

	rate := float64(0)
	if secs := time.Since(p.start).Seconds(); secs > 0 {
		rate = float64(tiles) / secs
	}

	return fmt.Sprintf("level %d/%d [%s] %3.0f%%  %d/%d tiles  %s  %.0f tiles/s  %s",
		p.level, p.levelCount, bar, frac*100, tiles, p.total,
		formatBytes(p.bytes.Load()), rate,
		time.Since(p.start).Truncate(time.Second))
}

// formatBytes renders an encoded-output size compactly (e.g. "312 KB",
// "1.7 MB").
func formatBytes(n int64) string {
	switch {
	case n >= 1<<30:
		return fmt.Sprintf("%.1f GB", float64(n)/(1<<30))
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%d KB", n/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
