/*
	This file implements a monitor for storage engine I/O.  Engines send byte counts down
	the exported channels and the monitor tallies them into per-second rates.
*/

package storage

import (
	"sync"
	"time"
)

const MonitorBuffer = 10000

var (
	// Channel to notify bytes read from a storage engine.
	StoreBytesRead chan int

	// Channel to notify bytes written to a storage engine.
	StoreBytesWritten chan int

	loadMu   sync.RWMutex
	lastLoad LoadStats

	// Current tallies up to a second.
	storeBytesReadPerSec    int
	storeBytesWrittenPerSec int
	getsPerSec              int
	putsPerSec              int
)

// LoadStats is a snapshot of storage activity over the last full second.
type LoadStats struct {
	BytesReadPerSec    int `json:"bytes read per second"`
	BytesWrittenPerSec int `json:"bytes written per second"`
	GetsPerSec         int `json:"gets per second"`
	PutsPerSec         int `json:"puts per second"`
}

func init() {
	StoreBytesRead = make(chan int, MonitorBuffer)
	StoreBytesWritten = make(chan int, MonitorBuffer)

	go loadMonitor()
}

// GetLoadStats returns storage activity over the last second.
func GetLoadStats() LoadStats {
	loadMu.RLock()
	defer loadMu.RUnlock()
	return lastLoad
}

// NoteRead records bytes read without blocking the engine if the monitor falls behind.
func NoteRead(n int) {
	select {
	case StoreBytesRead <- n:
	default:
	}
}

// NoteWrite records bytes written without blocking the engine if the monitor falls behind.
func NoteWrite(n int) {
	select {
	case StoreBytesWritten <- n:
	default:
	}
}

func loadMonitor() {
	secondTick := time.NewTicker(1 * time.Second)
	defer secondTick.Stop()
	for {
		select {
		case b := <-StoreBytesRead:
			storeBytesReadPerSec += b
			getsPerSec++
		case b := <-StoreBytesWritten:
			storeBytesWrittenPerSec += b
			putsPerSec++
		case <-secondTick.C:
			loadMu.Lock()
			lastLoad = LoadStats{
				BytesReadPerSec:    storeBytesReadPerSec,
				BytesWrittenPerSec: storeBytesWrittenPerSec,
				GetsPerSec:         getsPerSec,
				PutsPerSec:         putsPerSec,
			}
			loadMu.Unlock()
			storeBytesReadPerSec = 0
			storeBytesWrittenPerSec = 0
			getsPerSec = 0
			putsPerSec = 0
		}
	}
}
