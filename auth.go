package filelib

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessToken is valid iff Value is non-empty and ExpiresAt is in the future.
type AccessToken struct {
	Value     string
	ExpiresAt time.Time
}

func (t AccessToken) valid() bool {
	return t.Value != "" && time.Now().Before(t.ExpiresAt)
}

// TokenManager mints and caches the bearer token used on every authenticated
// request (§4.B). Acquisition is single-flight: concurrent callers that find
// no valid token collapse onto one HTTP exchange.
type TokenManager struct {
	cred    Credential
	authURL string
	client  *http.Client

	mu    sync.Mutex
	token AccessToken
}

// NewTokenManager builds a manager against authURL (the full Authentication
// request endpoint, §6) using client for transport.
func NewTokenManager(cred Credential, authURL string, client *http.Client) *TokenManager {
	if client == nil {
		client = defaultHTTPClient()
	}
	return &TokenManager{cred: cred, authURL: authURL, client: client}
}

// IsAccessToken reports whether the held token is present and unexpired.
func (tm *TokenManager) IsAccessToken() bool {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	return tm.token.valid()
}

type tokenAssertion struct {
	APIKey              string `json:"api_key"`
	Nonce               string `json:"nonce"`
	RequestClientSource string `json:"request_client_source"`
}

type acquireTokenResponse struct {
	Status    string `json:"status"`
	Error     string `json:"error"`
	ErrorCode string `json:"error_code"`
	Data      struct {
		AccessToken string `json:"access_token"`
		Expiration  string `json:"expiration"`
	} `json:"data"`
}

// AcquireAccessToken performs the JWT-assertion exchange described in §6.
// Callers normally reach this indirectly through ToHeaders; it is exported
// so a caller can proactively warm the token (§4.G multi-file dispatch).
func (tm *TokenManager) AcquireAccessToken() error {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	return tm.acquireLocked()
}

// acquireLocked must be called with tm.mu held; it is the single-flight
// critical section — any caller blocked on tm.mu when another acquisition
// finishes observes the freshly acquired token instead of issuing its own.
func (tm *TokenManager) acquireLocked() error {
	if tm.token.valid() {
		return nil
	}

	nonce, err := uuid.NewRandom()
	if err != nil {
		return fmt.Errorf("filelib: generating nonce: %w", err)
	}
	claims := tokenAssertion{
		APIKey:              tm.cred.APIKey,
		Nonce:               nonce.String(),
		RequestClientSource: RequestClientSource,
	}
	payload, err := json.Marshal(claims)
	if err != nil {
		return fmt.Errorf("filelib: encoding token assertion: %w", err)
	}
	var mapClaims jwt.MapClaims
	if err := json.Unmarshal(payload, &mapClaims); err != nil {
		return fmt.Errorf("filelib: encoding token assertion: %w", err)
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, mapClaims)
	signed, err := token.SignedString([]byte(tm.cred.APISecret))
	if err != nil {
		return fmt.Errorf("filelib: signing token assertion: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, tm.authURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set(HeaderAuthorization, "Bearer "+signed)

	resp, err := tm.client.Do(req)
	if err != nil {
		return &AcquiringAccessTokenFailedError{Message: err.Error()}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var parsed acquireTokenResponse
		_ = json.Unmarshal(body, &parsed)
		return &AcquiringAccessTokenFailedError{
			Message:   parsed.Error,
			Code:      resp.StatusCode,
			ErrorCode: parsed.ErrorCode,
		}
	}

	var parsed acquireTokenResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return &AcquiringAccessTokenFailedError{Message: "malformed token response: " + err.Error(), Code: resp.StatusCode}
	}
	expiresAt, err := time.Parse(time.RFC3339, parsed.Data.Expiration)
	if err != nil {
		return &AcquiringAccessTokenFailedError{Message: "malformed expiration: " + err.Error(), Code: resp.StatusCode}
	}
	tm.token = AccessToken{Value: parsed.Data.AccessToken, ExpiresAt: expiresAt}
	return nil
}

// ToHeaders acquires a token if necessary and returns the Authorization
// header map to merge into an outgoing request.
func (tm *TokenManager) ToHeaders() (map[string]string, error) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	if !tm.token.valid() {
		if err := tm.acquireLocked(); err != nil {
			return nil, err
		}
	}
	return map[string]string{HeaderAuthorization: "Bearer " + tm.token.Value}, nil
}

func applyHeaders(req *http.Request, headerSets ...map[string]string) {
	for _, set := range headerSets {
		for k, v := range set {
			req.Header.Set(k, v)
		}
	}
}

func newJSONRequest(method, url string, payload any) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(buf)
	}
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}
