package reddit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// A token is refreshed this long before its reported expiry so it is
// never used at the edge of its lifetime.
const tokenRefreshSkew = 30 * time.Second

// Credentials holds the client-credentials identity for the OAuth
// application plus the identifying User-Agent Reddit requires.
type Credentials struct {
	ClientID     string
	ClientSecret string
	UserAgent    string
}

func (c Credentials) validate() error {
	if strings.TrimSpace(c.ClientID) == "" {
		return errors.New("client id is required")
	}
	if strings.TrimSpace(c.ClientSecret) == "" {
		return errors.New("client secret is required")
	}
	if strings.TrimSpace(c.UserAgent) == "" {
		return errors.New("user agent is required")
	}
	return nil
}

// TokenSource caches an OAuth access token obtained via the
// client-credentials grant and refreshes it before expiry. Safe for
// concurrent use.
type TokenSource struct {
	creds    Credentials
	client   *http.Client
	authBase string
	limiter  *Limiter
	now      func() time.Time

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// NewTokenSource validates the credentials and returns a token source
// against the public Reddit OAuth endpoint.
func NewTokenSource(creds Credentials) (*TokenSource, error) {
	if err := creds.validate(); err != nil {
		return nil, &CredentialError{Reason: err.Error()}
	}
	return &TokenSource{
		creds:    creds,
		client:   &http.Client{Timeout: requestTimeout},
		authBase: defaultAuthBase,
		now:      time.Now,
	}, nil
}

// Token returns the cached access token, exchanging credentials for a
// fresh one when the cache is empty or within the refresh skew of
// expiry.
func (ts *TokenSource) Token(ctx context.Context) (string, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.token != "" && ts.now().Add(tokenRefreshSkew).Before(ts.expiresAt) {
		return ts.token, nil
	}

	token, expiresIn, err := ts.exchange(ctx)
	if err != nil {
		return "", err
	}

	ts.token = token
	ts.expiresAt = ts.now().Add(time.Duration(expiresIn) * time.Second)
	return ts.token, nil
}

// Invalidate drops the cached token. Called when a request using it is
// rejected as unauthorized.
func (ts *TokenSource) Invalidate() {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.token = ""
	ts.expiresAt = time.Time{}
}

// exchange posts the client-credentials grant. The exchange is an
// outbound Reddit call like any other, so it runs under the shared
// limiter when one is wired.
func (ts *TokenSource) exchange(ctx context.Context) (string, int, error) {
	if ts.limiter != nil {
		if err := ts.limiter.Begin(ctx); err != nil {
			return "", 0, err
		}
		defer ts.limiter.End()
	}

	form := url.Values{"grant_type": []string{"client_credentials"}}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		ts.authBase+"/api/v1/access_token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", 0, fmt.Errorf("create token request: %w", err)
	}
	req.SetBasicAuth(ts.creds.ClientID, ts.creds.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", ts.creds.UserAgent)

	resp, err := ts.client.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("token exchange: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", 0, fmt.Errorf("read token response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", 0, &CredentialError{Status: resp.StatusCode, Reason: truncateBody(body)}
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", 0, &CredentialError{Status: resp.StatusCode, Reason: fmt.Sprintf("decode token response: %v", err)}
	}
	if payload.AccessToken == "" || payload.TokenType == "" || payload.ExpiresIn <= 0 {
		return "", 0, &CredentialError{Status: resp.StatusCode, Reason: "malformed token response"}
	}

	return payload.AccessToken, payload.ExpiresIn, nil
}
