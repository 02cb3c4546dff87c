package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"go-imuse/stream"
)

// DirCatalog maps sound ids to Standard MIDI Files in a directory.
// Files are named "<id>.mid" or "<id>_<anything>.mid"; loading is lazy
// and cached.
type DirCatalog struct {
	mu    sync.Mutex
	dir   string
	paths map[int]string
	cache map[int]*stream.Sound
}

func NewDirCatalog(dir string) (*DirCatalog, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}

	c := &DirCatalog{
		dir:   dir,
		paths: make(map[int]string),
		cache: make(map[int]*stream.Sound),
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if ext != ".mid" && ext != ".midi" && ext != ".smf" {
			continue
		}
		id, ok := soundID(strings.TrimSuffix(name, filepath.Ext(name)))
		if !ok {
			continue
		}
		c.paths[id] = filepath.Join(dir, name)
	}
	return c, nil
}

// soundID extracts the leading decimal id from a file basename.
func soundID(base string) (int, bool) {
	digits := base
	if i := strings.IndexAny(base, "_-. "); i > 0 {
		digits = base[:i]
	}
	id, err := strconv.Atoi(digits)
	if err != nil || id < 0 {
		return 0, false
	}
	return id, true
}

// FindSound loads the file for the given id, caching the result.
func (c *DirCatalog) FindSound(id int) (*stream.Sound, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if s, ok := c.cache[id]; ok {
		return s, nil
	}
	path, ok := c.paths[id]
	if !ok {
		return nil, fmt.Errorf("catalog: no sound %d in %s", id, c.dir)
	}
	s, err := stream.LoadSMFFile(id, path, stream.FlagMIDI)
	if err != nil {
		return nil, err
	}
	c.cache[id] = s
	return s, nil
}

// IDs returns all known sound ids, sorted.
func (c *DirCatalog) IDs() []int {
	c.mu.Lock()
	defer c.mu.Unlock()

	ids := make([]int, 0, len(c.paths))
	for id := range c.paths {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Name returns the file basename for a sound id.
func (c *DirCatalog) Name(id int) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return filepath.Base(c.paths[id])
}
