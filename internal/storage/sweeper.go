package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Sweeper deletes workspaces older than maxAge. Request handlers always
// remove their own workspace; the sweeper only catches what a crashed or
// killed process left behind.
type Sweeper struct {
	scratch  *Scratch
	maxAge   time.Duration
	interval time.Duration
	log      zerolog.Logger
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewSweeper creates a sweeper for the scratch directory. It runs every maxAge/2.
func NewSweeper(scratch *Scratch, maxAge time.Duration, log zerolog.Logger) *Sweeper {
	interval := maxAge / 2
	if interval < time.Minute {
		interval = time.Minute
	}
	return &Sweeper{
		scratch:  scratch,
		maxAge:   maxAge,
		interval: interval,
		log:      log.With().Str("component", "scratch-sweeper").Logger(),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (s *Sweeper) Start() {
	go s.loop()
}

func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	<-s.done
}

func (s *Sweeper) loop() {
	defer close(s.done)

	// Run once on startup to clear leftovers from a previous run
	s.Sweep(time.Now())

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case now := <-ticker.C:
			s.Sweep(now)
		case <-s.stop:
			return
		}
	}
}

// Sweep removes workspaces last modified before now-maxAge and returns how many it removed.
func (s *Sweeper) Sweep(now time.Time) int {
	if s.maxAge <= 0 {
		return 0
	}
	cutoff := now.Add(-s.maxAge)

	entries, err := os.ReadDir(s.scratch.Dir())
	if err != nil {
		s.log.Warn().Err(err).Msg("read scratch directory")
		return 0
	}

	removed := 0
	var freed int64
	for _, e := range entries {
		if !e.IsDir() || !isWorkspace(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		path := filepath.Join(s.scratch.Dir(), e.Name())
		size := dirSize(path)
		if err := os.RemoveAll(path); err != nil {
			s.log.Warn().Err(err).Str("workspace", e.Name()).Msg("remove stale workspace")
			continue
		}
		removed++
		freed += size
	}

	if removed > 0 {
		s.log.Info().
			Int("removed", removed).
			Str("freed", humanizeBytes(freed)).
			Msg("stale workspaces swept")
	}
	return removed
}

func dirSize(path string) int64 {
	var total int64
	entries, _ := os.ReadDir(path)
	for _, e := range entries {
		if info, err := e.Info(); err == nil && !e.IsDir() {
			total += info.Size()
		}
	}
	return total
}

func humanizeBytes(b int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)
	switch {
	case b >= GB:
		return fmt.Sprintf("%.1f GB", float64(b)/float64(GB))
	case b >= MB:
		return fmt.Sprintf("%.1f MB", float64(b)/float64(MB))
	case b >= KB:
		return fmt.Sprintf("%.1f KB", float64(b)/float64(KB))
	default:
		return fmt.Sprintf("%d B", b)
	}
}
