package filelib

import (
	"encoding/json"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// Cache is the narrow key/value interface the upload engine uses to persist
// resumption state (§4.E). The persistent backend itself is out of scope;
// this package only ships an in-memory variant (which NewUploadManager uses
// when no Cache is supplied) plus a simple file-backed one.
type Cache interface {
	Get(key string) (string, bool)
	Set(key, value string)
	Delete(key string)
	Truncate()
}

// MemoryCache is a namespaced, in-process Cache. Safe for concurrent use.
type MemoryCache struct {
	namespace string
	mu        sync.Mutex
	data      map[string]string
}

// NewMemoryCache returns a Cache scoped to namespace; distinct namespaces
// never observe each other's keys.
func NewMemoryCache(namespace string) *MemoryCache {
	return &MemoryCache{namespace: namespace, data: map[string]string{}}
}

func (c *MemoryCache) Get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok
}

func (c *MemoryCache) Set(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
}

func (c *MemoryCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
}

func (c *MemoryCache) Truncate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = map[string]string{}
}

// FileCache is a minimal file-backed Cache, one JSON document per namespace
// under dir. It is used only when a caller passes one explicitly as
// UploadManagerOptions.Cache; an engine built without a Cache falls back to
// an auto-namespaced MemoryCache, whose entries do not outlive the process.
// It stays deliberately small (the backend contract is the point, not this
// implementation).
type FileCache struct {
	path string
	mu   sync.Mutex
}

// NewFileCache stores its document at filepath.Join(dir, namespace+".json").
func NewFileCache(dir, namespace string) *FileCache {
	return &FileCache{path: filepath.Join(dir, namespace+".json")}
}

func (c *FileCache) load() map[string]string {
	data := map[string]string{}
	f, err := os.Open(c.path)
	if err != nil {
		return data
	}
	defer f.Close()
	body, err := io.ReadAll(f)
	if err != nil {
		return data
	}
	_ = json.Unmarshal(body, &data)
	return data
}

func (c *FileCache) save(data map[string]string) {
	buf, err := json.Marshal(data)
	if err != nil {
		return
	}
	_ = os.MkdirAll(filepath.Dir(c.path), 0o700)
	_ = os.WriteFile(c.path, buf, 0o600)
}

func (c *FileCache) Get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	data := c.load()
	v, ok := data[key]
	return v, ok
}

func (c *FileCache) Set(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	data := c.load()
	data[key] = value
	c.save(data)
}

func (c *FileCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	data := c.load()
	delete(data, key)
	c.save(data)
}

func (c *FileCache) Truncate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = os.Remove(c.path)
}

// ignoringCache wraps a Cache so reads always miss (for resumption purposes)
// and writes become no-ops, per §4.E's ignore_cache contract. Delete still
// passes through so an explicit cache-busting call still works.
type ignoringCache struct {
	inner Cache
}

func (c ignoringCache) Get(string) (string, bool) { return "", false }
func (c ignoringCache) Set(string, string)        {}
func (c ignoringCache) Delete(key string)         { c.inner.Delete(key) }
func (c ignoringCache) Truncate()                 { c.inner.Truncate() }

// fingerprintNamespace computes the auto-namespace used when an engine is
// constructed without an explicit Cache (§4.E): CRC32 of the first 1000
// bytes of the source concatenated with the UTF-8 file name. Deterministic
// for identical (prefix, name) pairs.
func fingerprintNamespace(stream io.ReadSeeker, name string) (uint32, error) {
	cur, err := stream.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, err
	}
	if _, err := stream.Seek(0, io.SeekStart); err != nil {
		return 0, err
	}
	buf := make([]byte, 1000)
	n, err := io.ReadFull(stream, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return 0, err
	}
	if _, err := stream.Seek(cur, io.SeekStart); err != nil {
		return 0, err
	}
	h := crc32.NewIEEE()
	h.Write(buf[:n])
	h.Write([]byte(name))
	return h.Sum32(), nil
}
