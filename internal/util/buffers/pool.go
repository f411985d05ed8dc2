// Package buffers pools the copy buffers used by concurrent downloads.
package buffers

import (
	"sync"
	"sync/atomic"

	"github.com/capiweb/capishare/internal/constants"
)

var (
	allocations int64
	gets        int64
)

var copyPool = &sync.Pool{
	New: func() interface{} {
		atomic.AddInt64(&allocations, 1)
		buf := make([]byte, constants.DownloadBufferSize)
		return &buf
	},
}

// GetCopyBuffer returns a DownloadBufferSize buffer from the pool.
// Return it with PutCopyBuffer when the copy is done.
func GetCopyBuffer() *[]byte {
	atomic.AddInt64(&gets, 1)
	return copyPool.Get().(*[]byte)
}

// PutCopyBuffer returns buf to the pool. Buffers of the wrong size are dropped.
func PutCopyBuffer(buf *[]byte) {
	if buf != nil && len(*buf) == constants.DownloadBufferSize {
		copyPool.Put(buf)
	}
}

// Stats reports pool usage.
type Stats struct {
	BufferSize  int
	Allocations int64
	Gets        int64
}

// GetStats returns the current pool statistics.
func GetStats() Stats {
	return Stats{
		BufferSize:  constants.DownloadBufferSize,
		Allocations: atomic.LoadInt64(&allocations),
		Gets:        atomic.LoadInt64(&gets),
	}
}

// ReuseRate returns the fraction of gets served without allocating.
func (s Stats) ReuseRate() float64 {
	if s.Gets == 0 {
		return 0
	}
	reused := s.Gets - s.Allocations
	if reused < 0 {
		reused = 0
	}
	return float64(reused) / float64(s.Gets)
}
