package filelib

import (
	"errors"
	"fmt"
)

// Sentinel errors for the construction-time taxonomy (§7). Use errors.Is
// against these for the kinds that carry no extra per-instance data.
var (
	ErrUnsupportedCredentialsSource = errors.New("filelib: unsupported credentials source")
	ErrMissingCredentialSection     = errors.New("filelib: credentials file missing [filelib] section")
	ErrCredentialSectionKeyMissing  = errors.New("filelib: credentials file missing api_key or api_secret")
	ErrCredentialsFileDoesNotExist  = errors.New("filelib: credentials file does not exist")
	ErrCredEnvKeyValueMissing       = errors.New("filelib: FILELIB_API_KEY or FILELIB_API_SECRET not set")

	ErrConfigValidation = errors.New("filelib: invalid upload config")
	ErrConfigPrefixInvalid = errors.New("filelib: invalid config prefix")

	ErrFileDoesNotExist     = errors.New("filelib: file does not exist")
	ErrAccessToFileDenied   = errors.New("filelib: access to file denied")
	ErrFileObjectNotReadable = errors.New("filelib: source is not readable")
	ErrFileNotSeekable      = errors.New("filelib: source is not seekable")
	ErrFileNameRequired     = errors.New("filelib: file name is required")

	ErrNoChunksToUpload = errors.New("filelib: no chunks to upload")
	ErrValidation       = errors.New("filelib: validation error")
)

// AcquiringAccessTokenFailedError reports a failed token exchange (§4.B).
type AcquiringAccessTokenFailedError struct {
	Message   string
	Code      int
	ErrorCode string
}

func (e *AcquiringAccessTokenFailedError) Error() string {
	return fmt.Sprintf("filelib: acquiring access token failed: %s (code=%d, error_code=%s)", e.Message, e.Code, e.ErrorCode)
}

// FilelibAPIException is raised for any non-2xx response from the upload
// API proper (create, status, cancel) — mirrors FilelibBaseException in the
// original Python client.
type FilelibAPIException struct {
	Message   string
	Code      int
	ErrorCode string
}

func (e *FilelibAPIException) Error() string {
	return fmt.Sprintf("filelib: API error: %s (code=%d, error_code=%s)", e.Message, e.Code, e.ErrorCode)
}

// NewFilelibAPIException builds a FilelibAPIException from parsed fields.
func NewFilelibAPIException(message string, code int, errorCode string) *FilelibAPIException {
	return &FilelibAPIException{Message: message, Code: code, ErrorCode: errorCode}
}

// ChunkUploadFailedError reports a per-part transfer failure (§4.F.5),
// produced with platform-aware messages by errorparser.go.
type ChunkUploadFailedError struct {
	PartNumber int
	Message    string
	Code       int
	ErrorCode  string
}

func (e *ChunkUploadFailedError) Error() string {
	return fmt.Sprintf("filelib: chunk upload failed for part %d: %s (code=%d, error_code=%s)", e.PartNumber, e.Message, e.Code, e.ErrorCode)
}
