// Package storage manages transient request artifacts on local disk.
// Nothing written here is meant to outlive the request that wrote it.
package storage

import "os"

// BackgroundService is a stoppable background goroutine.
type BackgroundService interface {
	Start()
	Stop()
}

// Count returns the number of workspaces currently present on disk.
func (s *Scratch) Count() int {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0
	}
	n := 0
	for _, e := range entries {
		if e.IsDir() && isWorkspace(e.Name()) {
			n++
		}
	}
	return n
}
