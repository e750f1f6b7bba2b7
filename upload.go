package filelib

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
)

// UploadManagerOptions are the constructor parameters for an UploadManager
// (§4.F.1). File is either a path string or a Source. Workers == 0 means
// "library default" (§9 open question 2); an explicit negative value is a
// construction error.
type UploadManagerOptions struct {
	File           any
	FileName       string
	Config         UploadConfig
	Auth           *TokenManager
	UploadURL      string
	Cache          Cache
	Multithreading bool
	Workers        int
	ContentType    string
	IgnoreCache    bool
	AbortOnFail    bool
	ClearCache     bool
	Client         *http.Client
}

// UploadManager is the per-file upload engine (§4.F): negotiates parameters
// with the API, partitions the source into parts, transfers them, and
// exposes the resulting UploadSession.
type UploadManager struct {
	file        *FileDescriptor
	config      UploadConfig
	auth        *TokenManager
	uploadURL   string
	cache       Cache
	multithread bool
	workers     int
	contentType string
	ignoreCache bool
	abortOnFail bool
	clearCache  bool
	client      *http.Client

	streamMu sync.Mutex
	session  *UploadSession
}

// NewUploadManager processes the file via ProcessFile, resolves a cache
// (auto-namespacing when none is supplied), and returns a ready-to-use
// engine in state Status=pending.
func NewUploadManager(opts UploadManagerOptions) (*UploadManager, error) {
	if opts.Workers < 0 {
		return nil, fmt.Errorf("%w: workers must be >= 1 or 0 for default", ErrValidation)
	}
	fd, err := ProcessFile(opts.FileName, opts.File)
	if err != nil {
		return nil, err
	}

	client := opts.Client
	if client == nil {
		client = defaultHTTPClient()
	}

	cache := opts.Cache
	if cache == nil {
		if _, err := fd.Size(); err != nil {
			return nil, err
		}
		fp, err := fingerprintNamespace(fd.Stream, fd.Name)
		if err != nil {
			return nil, err
		}
		cache = NewMemoryCache(strconv.FormatUint(uint64(fp), 10))
	}
	if opts.IgnoreCache {
		cache = ignoringCache{inner: cache}
	}

	return &UploadManager{
		file:        fd,
		config:      opts.Config,
		auth:        opts.Auth,
		uploadURL:   opts.UploadURL,
		cache:       cache,
		multithread: opts.Multithreading,
		workers:     opts.Workers,
		contentType: opts.ContentType,
		ignoreCache: opts.IgnoreCache,
		abortOnFail: opts.AbortOnFail,
		clearCache:  opts.ClearCache,
		client:      client,
		session:     newUploadSession(),
	}, nil
}

// Session exposes the engine's current UploadSession snapshot.
func (m *UploadManager) Session() *UploadSession { return m.session }

// HasCache reports whether a "LOCATION" entry already exists for this file.
func (m *UploadManager) HasCache() bool {
	_, ok := m.cache.Get(CacheLocationKey)
	return ok
}

func is2xx(code int) bool { return code >= 200 && code < 300 }

func decodeJSONBody(resp *http.Response, v any) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return io.EOF
	}
	return json.Unmarshal(body, v)
}

func parseIntHeader(resp *http.Response, name string, fallback int64) int64 {
	raw := resp.Header.Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fallback
	}
	return v
}

func parseCSVInts(raw string) []int {
	if raw == "" {
		return nil
	}
	fields := strings.Split(raw, ",")
	out := make([]int, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		v, err := strconv.Atoi(f)
		if err != nil {
			continue
		}
		out = append(out, v)
	}
	return out
}

type uploadResponseBody struct {
	Data struct {
		IsDirectUpload bool `json:"is_direct_upload"`
		UploadURLs     map[string]struct {
			Method   string `json:"method"`
			URL      string `json:"url"`
			LogURL   string `json:"log_url"`
			Platform string `json:"platform"`
		} `json:"upload_urls"`
	} `json:"data"`
}

// InitUpload implements §4.F.2: resume from cache when possible, otherwise
// create a new server-side upload record.
func (m *UploadManager) InitUpload(isRetry bool) error {
	if !m.ignoreCache && !isRetry {
		if loc, ok := m.cache.Get(CacheLocationKey); ok && loc != "" {
			m.session.EntityURL = loc
			return m.fetchUploadStatus()
		}
	}

	size, err := m.file.Size()
	if err != nil {
		return err
	}
	authHeaders, err := m.auth.ToHeaders()
	if err != nil {
		return err
	}

	payload := map[string]any{
		"file_name": m.file.Name,
		"file_size": size,
		"mimetype":  m.contentType,
	}
	req, err := newJSONRequest(http.MethodPost, m.uploadURL, payload)
	if err != nil {
		return err
	}
	applyHeaders(req, authHeaders, m.config.ToHeaders())

	resp, err := m.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if !is2xx(resp.StatusCode) {
		message, code, errorCode := parseAPIError(resp)
		return NewFilelibAPIException(message, code, errorCode)
	}
	return m.setUploadParams(resp, true)
}

// fetchUploadStatus implements the GET side of §4.F.2.
func (m *UploadManager) fetchUploadStatus() error {
	authHeaders, err := m.auth.ToHeaders()
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodGet, m.session.EntityURL, nil)
	if err != nil {
		return err
	}
	applyHeaders(req, authHeaders)

	resp, err := m.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		m.cache.Delete(CacheLocationKey)
		return m.InitUpload(true)
	}
	if !is2xx(resp.StatusCode) {
		message, code, errorCode := parseAPIError(resp)
		return NewFilelibAPIException(message, code, errorCode)
	}
	return m.setUploadParams(resp, true)
}

// setUploadParams implements §4.F.3.
func (m *UploadManager) setUploadParams(resp *http.Response, hasBody bool) error {
	s := m.session

	s.MaxChunkSize = parseIntHeader(resp, HeaderUploadMaxChunkSize, s.MaxChunkSize)
	s.MinChunkSize = parseIntHeader(resp, HeaderUploadMinChunkSize, s.MinChunkSize)
	s.ChunkSize = parseIntHeader(resp, HeaderUploadChunkSize, s.MaxChunkSize)

	size, err := m.file.Size()
	if err != nil {
		return err
	}
	s.PartCount = calculatePartCount(size, s.ChunkSize)

	status := resp.Header.Get(HeaderFileUploadStatus)
	if status == "" {
		status = s.Status
	}

	switch status {
	case StatusStarted:
		for _, p := range parseCSVInts(resp.Header.Get(HeaderUploadMissingPartNumbers)) {
			s.PendingParts[p] = struct{}{}
		}
		if posRaw := resp.Header.Get(HeaderUploadPartNumberPosition); posRaw != "" {
			if pos, err := strconv.Atoi(posRaw); err == nil {
				for p := pos + 1; p <= s.PartCount; p++ {
					s.PendingParts[p] = struct{}{}
				}
			}
		}
	case StatusPending:
		if loc := resp.Header.Get(HeaderLocation); loc != "" {
			s.EntityURL = loc
		}
		s.PendingParts = map[int]struct{}{}
		for p := 1; p <= s.PartCount; p++ {
			s.PendingParts[p] = struct{}{}
		}
	}
	s.Status = status

	if !m.ignoreCache {
		m.cache.Set(CacheLocationKey, s.EntityURL)
	}

	if hasBody {
		var body uploadResponseBody
		if err := decodeJSONBody(resp, &body); err == nil && body.Data.IsDirectUpload {
			s.IsDirectUpload = true
			s.EntityURLMap = make(map[string]PartRoute, len(body.Data.UploadURLs))
			for part, route := range body.Data.UploadURLs {
				s.EntityURLMap[part] = PartRoute{
					Method:   route.Method,
					URL:      route.URL,
					LogURL:   route.LogURL,
					Platform: route.Platform,
				}
			}
		}
	}
	return nil
}

// GetChunk implements §4.F.4: 1-based, chunk_size-wide slices; the final
// part may be short.
func (m *UploadManager) GetChunk(partNumber int) ([]byte, error) {
	m.streamMu.Lock()
	defer m.streamMu.Unlock()

	size, err := m.file.Size()
	if err != nil {
		return nil, err
	}
	start := int64(partNumber-1) * m.session.ChunkSize
	remaining := size - start
	if remaining < 0 {
		remaining = 0
	}
	toRead := m.session.ChunkSize
	if remaining < toRead {
		toRead = remaining
	}

	if _, err := m.file.Stream.Seek(start, io.SeekStart); err != nil {
		return nil, err
	}
	buf := make([]byte, toRead)
	if _, err := io.ReadFull(m.file.Stream, buf); err != nil && err != io.EOF {
		return nil, err
	}
	return buf, nil
}

// UploadChunk implements §4.F.5: relayed PATCH by default, or a direct
// third-party-storage transfer plus log-URL callback when the session is a
// direct upload.
func (m *UploadManager) UploadChunk(partNumber int) error {
	chunk, err := m.GetChunk(partNumber)
	if err != nil {
		return err
	}

	authHeaders, err := m.auth.ToHeaders()
	if err != nil {
		return err
	}
	partHeaders := map[string]string{
		HeaderUploadPartChunkNumber: strconv.Itoa(partNumber),
		HeaderUploadChunkSize:       strconv.FormatInt(m.session.ChunkSize, 10),
	}

	if m.session.IsDirectUpload {
		return m.uploadChunkDirect(partNumber, chunk, partHeaders, authHeaders)
	}
	return m.uploadChunkRelayed(partNumber, chunk, partHeaders, authHeaders)
}

func (m *UploadManager) uploadChunkRelayed(partNumber int, chunk []byte, partHeaders, authHeaders map[string]string) error {
	req, err := http.NewRequest(http.MethodPatch, m.session.EntityURL, bytes.NewReader(chunk))
	if err != nil {
		return err
	}
	applyHeaders(req, authHeaders, partHeaders)

	resp, err := m.client.Do(req)
	if err != nil {
		return &ChunkUploadFailedError{PartNumber: partNumber, Message: err.Error()}
	}
	defer resp.Body.Close()

	if !is2xx(resp.StatusCode) {
		message, code, errorCode := parseRelayedUploadError(resp)
		return &ChunkUploadFailedError{PartNumber: partNumber, Message: message, Code: code, ErrorCode: errorCode}
	}
	return nil
}

func (m *UploadManager) uploadChunkDirect(partNumber int, chunk []byte, partHeaders, authHeaders map[string]string) error {
	route, ok := m.session.EntityURLMap[strconv.Itoa(partNumber)]
	if !ok {
		return &ChunkUploadFailedError{PartNumber: partNumber, Message: "no direct upload route for part"}
	}

	req, err := http.NewRequest(strings.ToUpper(route.Method), route.URL, bytes.NewReader(chunk))
	if err != nil {
		return err
	}
	// Third-party storage rejects our auth/custom headers — body only.

	resp, err := m.client.Do(req)
	if err != nil {
		return &ChunkUploadFailedError{PartNumber: partNumber, Message: err.Error()}
	}
	defer resp.Body.Close()

	if !is2xx(resp.StatusCode) {
		message, code, errorCode := parseDirectUploadError(resp, route.Platform)
		return &ChunkUploadFailedError{PartNumber: partNumber, Message: message, Code: code, ErrorCode: errorCode}
	}

	if route.LogURL != "" {
		logReq, err := http.NewRequest(http.MethodPost, route.LogURL, nil)
		if err != nil {
			return err
		}
		applyHeaders(logReq, authHeaders, partHeaders)
		logResp, err := m.client.Do(logReq)
		if err != nil {
			return &ChunkUploadFailedError{PartNumber: partNumber, Message: "log callback: " + err.Error()}
		}
		defer logResp.Body.Close()
		if !is2xx(logResp.StatusCode) {
			message, code, errorCode := parseAPIError(logResp)
			return &ChunkUploadFailedError{PartNumber: partNumber, Message: message, Code: code, ErrorCode: errorCode}
		}
	}
	return nil
}

// SingleThreadUpload implements §4.F.6's sequential strategy. The
// numerically highest pending part is always sent last: §5 and §9 state the
// completion trigger is a server contract that must not be reordered, which
// applies regardless of whether transfer is single- or multi-threaded.
func (m *UploadManager) SingleThreadUpload() error {
	s := m.session
	s.Status = StatusStarted
	order := s.pendingSlice()
	if len(order) == 0 {
		s.Status = StatusCompleted
		return nil
	}
	last := order[len(order)-1]

	for _, p := range order {
		if p == last {
			continue
		}
		if err := m.UploadChunk(p); err != nil {
			return err
		}
		delete(s.PendingParts, p)
	}
	if err := m.UploadChunk(last); err != nil {
		return err
	}
	delete(s.PendingParts, last)
	s.Status = StatusCompleted
	return nil
}

// MultithreadUpload implements §4.F.6's worker-pool strategy: all parts but
// the numerically highest are dispatched to a bounded pool; the highest
// part is uploaded on the calling goroutine after the pool drains, so the
// server always observes it last.
func (m *UploadManager) MultithreadUpload() error {
	s := m.session
	s.Status = StatusStarted
	order := s.pendingSlice()
	if len(order) == 0 {
		s.Status = StatusCompleted
		return nil
	}
	last, _ := s.maxPending()

	workers := m.workers
	if workers < 1 {
		workers = DefaultWorkers
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, workers)
	var mu sync.Mutex

	for _, p := range order {
		if p == last {
			continue
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(part int) {
			defer wg.Done()
			defer func() { <-sem }()
			err := m.UploadChunk(part)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s.Error = err.Error()
				return
			}
			delete(s.PendingParts, part)
		}(p)
	}
	wg.Wait()

	if err := m.UploadChunk(last); err != nil {
		mu.Lock()
		s.Error = err.Error()
		mu.Unlock()
	} else {
		mu.Lock()
		delete(s.PendingParts, last)
		mu.Unlock()
	}

	if len(s.PendingParts) == 0 {
		s.Status = StatusCompleted
		return nil
	}
	return errors.New(s.Error)
}

// Upload implements §4.F.6's upload(): init, dispatch, and the failure/abort
// handling described in §7.
func (m *UploadManager) Upload() error {
	if err := m.InitUpload(false); err != nil {
		return err
	}

	s := m.session
	if len(s.PendingParts) == 0 && s.Status != StatusCompleted {
		return ErrNoChunksToUpload
	}

	var transferErr error
	if len(s.PendingParts) > 0 {
		if m.multithread {
			transferErr = m.MultithreadUpload()
		} else {
			transferErr = m.SingleThreadUpload()
		}
	}

	if transferErr != nil {
		s.Status = StatusFailed
		s.Error = transferErr.Error()
		if m.abortOnFail {
			_ = m.Cancel() // a cancel failure here is swallowed to preserve transferErr
		}
		return transferErr
	}

	if m.clearCache {
		m.cache.Truncate()
	}
	return nil
}

// Cancel implements §4.F.6's cancel(): a terminal DELETE against the
// current entity URL.
func (m *UploadManager) Cancel() error {
	authHeaders, err := m.auth.ToHeaders()
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodDelete, m.session.EntityURL, nil)
	if err != nil {
		return err
	}
	applyHeaders(req, authHeaders)

	resp, err := m.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if !is2xx(resp.StatusCode) {
		message, code, errorCode := parseAPIError(resp)
		return NewFilelibAPIException(message, code, errorCode)
	}
	m.session.Status = StatusCancelled
	return nil
}

// Cleanup implements §4.F.6's cleanup(): release the stream reference so
// the descriptor can be handed to another worker.
func (m *UploadManager) Cleanup() error {
	return m.file.Cleanup()
}
