package storage

import (
	"testing"
	"time"

	"github.com/avdeev/notevault/internal/models"
)

func TestCachePutAndGet(t *testing.T) {
	c := NewCache(time.Minute)

	dc := &models.DirectoryContents{CurrentPath: "/root"}
	c.PutListing("/root", dc)
	if got, ok := c.Listing("/root"); !ok || got != dc {
		t.Error("listing should be served from cache")
	}

	n := &models.Note{Filename: "a"}
	c.PutNote("a", "/root", n)
	if got, ok := c.Note("a", "/root"); !ok || got != n {
		t.Error("note should be served from cache")
	}
}

func TestCacheMissBeforeFirstPut(t *testing.T) {
	c := NewCache(time.Minute)
	if _, ok := c.Listing("/root"); ok {
		t.Error("empty cache should miss")
	}
}

func TestCacheExpires(t *testing.T) {
	c := NewCache(10 * time.Millisecond)
	c.PutListing("/root", &models.DirectoryContents{})

	time.Sleep(25 * time.Millisecond)
	if _, ok := c.Listing("/root"); ok {
		t.Error("entry should have expired with the shared window")
	}
}

func TestInvalidateAllFailsClosed(t *testing.T) {
	c := NewCache(time.Hour)
	c.PutListing("/root", &models.DirectoryContents{})
	c.PutNote("a", "/root", &models.Note{})

	c.InvalidateAll()

	if _, ok := c.Listing("/root"); ok {
		t.Error("listing should be gone after InvalidateAll")
	}
	if _, ok := c.Note("a", "/root"); ok {
		t.Error("note should be gone after InvalidateAll")
	}
}

func TestPutRefreshesSharedWindow(t *testing.T) {
	c := NewCache(40 * time.Millisecond)
	c.PutListing("/a", &models.DirectoryContents{})
	time.Sleep(25 * time.Millisecond)

	// A later put moves the single shared stamp for every entry.
	c.PutListing("/b", &models.DirectoryContents{})
	time.Sleep(25 * time.Millisecond)

	if _, ok := c.Listing("/a"); !ok {
		t.Error("older entry should ride the refreshed shared window")
	}
}
