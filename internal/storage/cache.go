package storage

import (
	"sync"
	"time"

	"github.com/avdeev/notevault/internal/models"
)

// DefaultCacheTTL is the shared validity window for cached entries.
const DefaultCacheTTL = 5 * time.Minute

type noteKey struct {
	filename string
	folder   string
}

// Cache holds directory listings and loaded note bodies behind a single
// shared validity window: one "last updated" stamp covers the whole cache
// rather than per-entry expiries.
//
// Any mutation in the storage layer clears the entire cache before the
// mutating call returns, so a read after a completed write or delete never
// observes pre-mutation data. That guarantee costs unrelated entries too;
// the coarse invalidation is deliberate.
type Cache struct {
	ttl time.Duration

	mu         sync.Mutex
	lastUpdate time.Time
	listings   map[string]*models.DirectoryContents
	notes      map[noteKey]*models.Note
}

// NewCache creates a cache. A ttl <= 0 selects DefaultCacheTTL.
func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{
		ttl:      ttl,
		listings: make(map[string]*models.DirectoryContents),
		notes:    make(map[noteKey]*models.Note),
	}
}

// Listing returns the cached contents for a directory locator, if still
// within the validity window.
func (c *Cache) Listing(path string) (*models.DirectoryContents, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.valid() {
		return nil, false
	}
	dc, ok := c.listings[path]
	return dc, ok
}

// PutListing stores a directory listing and refreshes the shared stamp.
func (c *Cache) PutListing(path string, dc *models.DirectoryContents) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listings[path] = dc
	c.lastUpdate = time.Now()
}

// Note returns the cached note body for (filename, folder), if still
// within the validity window.
func (c *Cache) Note(filename, folder string) (*models.Note, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.valid() {
		return nil, false
	}
	n, ok := c.notes[noteKey{filename: filename, folder: folder}]
	return n, ok
}

// PutNote stores a loaded note body and refreshes the shared stamp.
func (c *Cache) PutNote(filename, folder string, n *models.Note) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notes[noteKey{filename: filename, folder: folder}] = n
	c.lastUpdate = time.Now()
}

// InvalidateAll drops every cached entry and zeroes the stamp so the next
// validity check fails closed.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listings = make(map[string]*models.DirectoryContents)
	c.notes = make(map[noteKey]*models.Note)
	c.lastUpdate = time.Time{}
}

// valid reports whether the shared window is still open. Callers hold mu.
func (c *Cache) valid() bool {
	if c.lastUpdate.IsZero() {
		return false
	}
	return time.Since(c.lastUpdate) < c.ttl
}
