package filelib

import (
	"encoding/xml"
	"io"
	"net/http"
	"strconv"
)

// awsErrorBody is the <Error><Code>/<Message> shape S3-compatible object
// stores return on a failed request (§4.F.5, §8 scenario 4).
type awsErrorBody struct {
	XMLName xml.Name `xml:"Error"`
	Code    string   `xml:"Code"`
	Message string   `xml:"Message"`
}

// parseDirectUploadError extracts (message, code, errorCode) from a direct
// (third-party storage) response, dispatching on platform name. Only AWS S3
// is named by the interface surface (§6); anything else falls back to a
// generic status-only message rather than guessing a wire shape we were
// never shown.
func parseDirectUploadError(resp *http.Response, platform string) (message string, code int, errorCode string) {
	code = resp.StatusCode
	body, _ := io.ReadAll(resp.Body)

	switch platform {
	case PlatformAWSS3:
		var parsed awsErrorBody
		if err := xml.Unmarshal(body, &parsed); err == nil && parsed.Message != "" {
			return parsed.Message, code, parsed.Code
		}
		return "direct upload failed", code, ""
	default:
		return "direct upload failed", code, ""
	}
}

// parseRelayedUploadError extracts (message, code, errorCode) from a
// relayed (API-proxied) chunk response, per §4.F.5: the three fields travel
// as headers rather than a body.
func parseRelayedUploadError(resp *http.Response) (message string, code int, errorCode string) {
	message = resp.Header.Get(HeaderErrorMessage)
	errorCode = resp.Header.Get(HeaderErrorCode)
	code = resp.StatusCode
	if message == "" {
		message = "chunk upload failed"
	}
	return message, code, errorCode
}

// parseAPIError extracts (message, code, errorCode) for a non-2xx from the
// upload-create/status/cancel endpoints: header-first, falling back to a
// parsed JSON body, matching the source's parse_api_err helper.
func parseAPIError(resp *http.Response) (message string, code int, errorCode string) {
	code = resp.StatusCode
	message = resp.Header.Get(HeaderErrorMessage)
	errorCode = resp.Header.Get(HeaderErrorCode)
	if message != "" {
		return message, code, errorCode
	}

	var body struct {
		Error     string `json:"error"`
		ErrorCode string `json:"error_code"`
	}
	if decodeJSONBody(resp, &body) == nil && body.Error != "" {
		return body.Error, code, body.ErrorCode
	}
	return "request failed with status " + strconv.Itoa(code), code, errorCode
}
