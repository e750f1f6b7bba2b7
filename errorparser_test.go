package filelib

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseDirectUploadErrorAWSS3(t *testing.T) {
	body := `<?xml version="1.0" encoding="UTF-8"?>
<Error><Code>AccessDenied</Code><Message>Access Denied.</Message></Error>`
	resp := &http.Response{
		StatusCode: http.StatusForbidden,
		Body:       io.NopCloser(strings.NewReader(body)),
	}
	message, code, errorCode := parseDirectUploadError(resp, PlatformAWSS3)
	if message != "Access Denied." || errorCode != "AccessDenied" || code != http.StatusForbidden {
		t.Errorf("got (%q, %d, %q)", message, code, errorCode)
	}
}

func TestParseDirectUploadErrorUnknownPlatform(t *testing.T) {
	resp := &http.Response{
		StatusCode: http.StatusInternalServerError,
		Body:       io.NopCloser(strings.NewReader("")),
	}
	message, code, _ := parseDirectUploadError(resp, "some-other-storage")
	if message == "" || code != http.StatusInternalServerError {
		t.Errorf("got (%q, %d)", message, code)
	}
}

func TestParseRelayedUploadError(t *testing.T) {
	rec := httptest.NewRecorder()
	rec.Header().Set(HeaderErrorMessage, "chunk too large")
	rec.Header().Set(HeaderErrorCode, "CHUNK_TOO_LARGE")
	rec.WriteHeader(http.StatusRequestEntityTooLarge)
	resp := rec.Result()

	message, code, errorCode := parseRelayedUploadError(resp)
	if message != "chunk too large" || errorCode != "CHUNK_TOO_LARGE" || code != http.StatusRequestEntityTooLarge {
		t.Errorf("got (%q, %d, %q)", message, code, errorCode)
	}
}

func TestParseAPIErrorFallsBackToJSONBody(t *testing.T) {
	resp := &http.Response{
		StatusCode: http.StatusBadRequest,
		Header:     http.Header{},
		Body:       io.NopCloser(strings.NewReader(`{"error":"invalid storage","error_code":"BAD_STORAGE"}`)),
	}
	message, code, errorCode := parseAPIError(resp)
	if message != "invalid storage" || errorCode != "BAD_STORAGE" || code != http.StatusBadRequest {
		t.Errorf("got (%q, %d, %q)", message, code, errorCode)
	}
}

func TestParseAPIErrorPrefersHeaders(t *testing.T) {
	h := http.Header{}
	h.Set(HeaderErrorMessage, "from header")
	resp := &http.Response{
		StatusCode: http.StatusBadRequest,
		Header:     h,
		Body:       io.NopCloser(strings.NewReader(`{"error":"from body"}`)),
	}
	message, _, _ := parseAPIError(resp)
	if message != "from header" {
		t.Errorf("expected header to take precedence, got %q", message)
	}
}
