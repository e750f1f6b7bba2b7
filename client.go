package filelib

import (
	"fmt"
	"hash/crc32"
	"net/http"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"
)

// addedFile stages an UploadManager's constructor arguments so the engine
// itself is built fresh per dispatch (§4.G, §9: no process-wide shared
// engine state — each worker rehydrates its own).
type addedFile struct {
	opts UploadManagerOptions
}

// ClientOptions configures a Client's shared Token Manager and transport.
type ClientOptions struct {
	Cred      Credential
	AuthURL   string
	UploadURL string
	Client    *http.Client
}

// Client is the dispatcher (§4.G): one shared Token Manager, a registry of
// staged files, and single- or multi-file upload execution.
type Client struct {
	auth      *TokenManager
	uploadURL string
	client    *http.Client

	mu        sync.Mutex
	added     map[string]addedFile
	processed map[string]*UploadManager
}

// NewClient builds a Client with its own Token Manager against opts.
func NewClient(opts ClientOptions) *Client {
	client := opts.Client
	if client == nil {
		client = defaultHTTPClient()
	}
	return &Client{
		auth:      NewTokenManager(opts.Cred, opts.AuthURL, client),
		uploadURL: opts.UploadURL,
		client:    client,
		added:     map[string]addedFile{},
		processed: map[string]*UploadManager{},
	}
}

// fileIndex mirrors the source's deterministic local index: a CRC32 over the
// count of files already added, concatenated with the name, so repeated
// add_file calls for the same basename still land on distinct indices.
func fileIndex(count int, name string) string {
	h := crc32.ChecksumIEEE([]byte(fmt.Sprintf("%d%s", count, name)))
	return fmtHex(h)
}

// deriveFileName resolves the basename an index should be computed over,
// mirroring process_file running ahead of _gen_index in the source's
// add_file: an explicit FileName wins, then a string path, then a Source's
// own Name(), always basenamed.
func deriveFileName(opts UploadManagerOptions) string {
	if opts.FileName != "" {
		return filepath.Base(opts.FileName)
	}
	if path, ok := opts.File.(string); ok {
		return filepath.Base(path)
	}
	if named, ok := opts.File.(interface{ Name() string }); ok {
		return filepath.Base(named.Name())
	}
	return opts.FileName
}

func fmtHex(v uint32) string {
	const hexDigits = "0123456789abcdef"
	buf := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		buf[i] = hexDigits[v&0xf]
		v >>= 4
	}
	return string(buf)
}

// AddFile stages a future engine's arguments under a deterministic index
// keyed by the file's derived basename and its position among staged files,
// returning that index for later lookup via Processed.
func (c *Client) AddFile(opts UploadManagerOptions) string {
	if opts.UploadURL == "" {
		opts.UploadURL = c.uploadURL
	}
	if opts.Auth == nil {
		opts.Auth = c.auth
	}
	if opts.Client == nil {
		opts.Client = c.client
	}

	name := deriveFileName(opts)
	opts.FileName = name

	c.mu.Lock()
	idx := fileIndex(len(c.added), name)
	c.added[idx] = addedFile{opts: opts}
	c.mu.Unlock()
	return idx
}

// Processed returns the finished engine for a previously added file, if its
// upload has run.
func (c *Client) Processed(index string) (*UploadManager, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.processed[index]
	return m, ok
}

// Upload runs every staged file sequentially and returns the first error
// encountered, leaving successfully processed files recorded regardless.
func (c *Client) Upload() error {
	return c.upload(1)
}

// UploadConcurrent proactively warms the access token (so every worker
// starts with a valid one) then dispatches staged files to a bounded
// goroutine pool sized by workers — the Go-idiomatic replacement for the
// OS-process pool described for multi-process dispatch (§4.G, §9).
func (c *Client) UploadConcurrent(workers int) error {
	if workers < 1 {
		workers = DefaultWorkers
	}
	if err := c.auth.AcquireAccessToken(); err != nil {
		return err
	}
	return c.upload(workers)
}

func (c *Client) upload(workers int) error {
	c.mu.Lock()
	tasks := make(map[string]UploadManagerOptions, len(c.added))
	for idx, af := range c.added {
		tasks[idx] = af.opts
	}
	c.mu.Unlock()

	var g errgroup.Group
	g.SetLimit(workers)

	for idx, opts := range tasks {
		idx, opts := idx, opts
		g.Go(func() error {
			m, err := NewUploadManager(opts)
			if err != nil {
				return err
			}
			uploadErr := m.Upload()
			_ = m.Cleanup()

			c.mu.Lock()
			c.processed[idx] = m
			c.mu.Unlock()

			return uploadErr
		})
	}
	return g.Wait()
}
