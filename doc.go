// Package filelib implements a resumable, chunked, multipart upload client:
// credential resolution, JWT-based token acquisition, per-file upload
// sessions with worker-pool chunk transfer, optional direct-to-object-
// storage offload, and a dispatcher for uploading many files concurrently.
package filelib
