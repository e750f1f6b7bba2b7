package filelib

import (
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// retryTransport retries a request only when the RoundTrip itself failed
// before any response was received (connection refused, timeout, DNS
// failure). A response that came back — even a 5xx — is authoritative and
// is returned as-is: §4.B and §4.F treat non-2xx as fatal for the call, with
// no automatic retries at the business layer.
type retryTransport struct {
	next http.RoundTripper
}

func (t retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var resp *http.Response
	op := func() error {
		attempt := req
		if req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return backoff.Permanent(err)
			}
			clone := req.Clone(req.Context())
			clone.Body = body
			attempt = clone
		}
		r, err := t.next.RoundTrip(attempt)
		if err != nil {
			return err
		}
		resp = r
		return nil
	}

	bo := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3)
	if err := backoff.Retry(op, bo); err != nil {
		return nil, err
	}
	return resp, nil
}

// defaultHTTPClient returns the client used when a caller does not supply
// its own: a bounded timeout plus transport-level retry.
func defaultHTTPClient() *http.Client {
	return &http.Client{
		Timeout:   60 * time.Second,
		Transport: retryTransport{next: http.DefaultTransport},
	}
}
