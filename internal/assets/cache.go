package assets

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Cache holds loaded asset bytes by URL for the life of the process.
type Cache struct {
	entries sync.Map // url -> []byte
	size    atomic.Int64
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{}
}

// Get returns the bytes stored for url.
func (c *Cache) Get(url string) ([]byte, bool) {
	v, ok := c.entries.Load(url)
	if !ok {
		return nil, false
	}
	return v.([]byte), true
}

// Put stores data for url.
func (c *Cache) Put(url string, data []byte) {
	if _, loaded := c.entries.Swap(url, data); !loaded {
		c.size.Add(1)
	}
}

// Len returns the number of cached URLs.
func (c *Cache) Len() int {
	return int(c.size.Load())
}

// ThumbnailURL returns the API path serving the image of a file.
func ThumbnailURL(fileID int64) string {
	return fmt.Sprintf("/transfers/%d/download/", fileID)
}
