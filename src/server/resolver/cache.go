package resolver

import (
	"path/filepath"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize bounds the number of parsed files kept between queries
const DefaultCacheSize = 512

// Cache keeps parsed files between queries. Entries never expire on their own:
// whoever observes a file change must call Invalidate.
type Cache struct {
	files *lru.Cache[string, *File]
}

// NewCache creates a parse cache holding at most size files
func NewCache(size int) (*Cache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	files, err := lru.New[string, *File](size)
	if err != nil {
		return nil, err
	}
	return &Cache{files: files}, nil
}

// Get returns the cached parse of path
func (c *Cache) Get(path string) (*File, bool) {
	f, ok := c.files.Get(filepath.Clean(path))
	if ok {
		cacheLookups.WithLabelValues("hit").Inc()
	} else {
		cacheLookups.WithLabelValues("miss").Inc()
	}
	return f, ok
}

// Add stores a parsed file under its path
func (c *Cache) Add(f *File) {
	c.files.Add(f.Path, f)
}

// Invalidate drops the parse of path, if any
func (c *Cache) Invalidate(path string) {
	c.files.Remove(filepath.Clean(path))
}

// Purge drops every cached parse
func (c *Cache) Purge() {
	c.files.Purge()
}

// Len returns the number of cached files
func (c *Cache) Len() int {
	return c.files.Len()
}
