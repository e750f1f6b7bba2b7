package filelib

// Header names exchanged with the upload API.
const (
	HeaderConfigStorage = "Filelib-Config-Storage"
	HeaderConfigPrefix  = "Filelib-Config-Prefix"
	HeaderConfigAccess  = "Filelib-Config-Access"

	HeaderUploadMaxChunkSize       = "Filelib-Upload-Max-Chunk-Size"
	HeaderUploadMinChunkSize       = "Filelib-Upload-Min-Chunk-Size"
	HeaderUploadChunkSize          = "Filelib-Upload-Chunk-Size"
	HeaderUploadMissingPartNumbers = "Filelib-Upload-Missing-Part-Numbers"
	HeaderUploadPartNumberPosition = "Filelib-Upload-Part-Number-Position"
	HeaderUploadPartChunkNumber    = "Filelib-Upload-Part-Chunk-Number"

	HeaderLocation         = "Location"
	HeaderFileUploadStatus = "Filelib-File-Upload-Status"
	HeaderErrorMessage     = "Filelib-Error-Message"
	HeaderErrorCode        = "Filelib-Error-Code"

	HeaderAuthorization = "Authorization"
)

// Upload status values, as carried on the wire and in UploadSession.Status.
const (
	StatusPending   = "pending"
	StatusStarted   = "started"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusFailed    = "failed"
)

// Credential sources accepted by ResolveCredential.
const (
	SourceFile = "file"
	SourceEnv  = "env"
)

// Env vars consulted by SourceEnv.
const (
	EnvAPIKey    = "FILELIB_API_KEY"
	EnvAPISecret = "FILELIB_API_SECRET"
)

// CredentialsFileSection is the INI section name holding api_key/api_secret.
const CredentialsFileSection = "filelib"

// RequestClientSource identifies this SDK in the JWT assertion payload.
const RequestClientSource = "go_filelib"

// CacheLocationKey is the well-known cache key storing a session's entity URL.
const CacheLocationKey = "LOCATION"

// Default chunk-size tiers, in bytes.
const (
	DefaultMaxChunkSize int64 = 64 * 1024 * 1024
	DefaultMinChunkSize int64 = 5 * 1024 * 1024
)

// DefaultWorkers is used when a caller leaves Workers unset (0).
const DefaultWorkers = 4

// AWS S3 is the one direct-upload platform with an XML error body; a failed
// direct upload on any other platform gets a generic status-only message.
const PlatformAWSS3 = "AWS S3"
