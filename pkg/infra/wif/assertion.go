package wif

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
)

// AssertionSource provides the signed identity token presented to the STS
type AssertionSource interface {
	Assertion(ctx context.Context, audience string) (string, error)
}

// OIDCRequestTimeout bounds a single ID token request to the runner
const OIDCRequestTimeout = 30 * time.Second

// ActionsOIDC requests an ID token from the GitHub Actions runner
type ActionsOIDC struct {
	RequestURL   string
	RequestToken string
	HTTPClient   *http.Client
}

// NewActionsOIDCFromEnv reads the runner-provided request URL and token
func NewActionsOIDCFromEnv() *ActionsOIDC {
	return &ActionsOIDC{
		RequestURL:   os.Getenv("ACTIONS_ID_TOKEN_REQUEST_URL"),
		RequestToken: os.Getenv("ACTIONS_ID_TOKEN_REQUEST_TOKEN"),
		HTTPClient:   &http.Client{Timeout: OIDCRequestTimeout},
	}
}

// Assertion fetches an ID token for audience
func (s *ActionsOIDC) Assertion(ctx context.Context, audience string) (string, error) {
	if s.RequestURL == "" || s.RequestToken == "" {
		return "", goerr.New("OIDC request URL or token is not available; the runner must grant id-token: write")
	}

	u, err := url.Parse(s.RequestURL)
	if err != nil {
		return "", goerr.Wrap(err, "invalid OIDC request URL")
	}
	q := u.Query()
	q.Set("audience", audience)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", goerr.Wrap(err, "failed to create OIDC request")
	}
	req.Header.Set("Authorization", "Bearer "+s.RequestToken)
	req.Header.Set("Accept", "application/json")

	client := s.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: OIDCRequestTimeout}
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", goerr.Wrap(err, "failed to request OIDC token")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", goerr.New("OIDC token request rejected",
			goerr.V("status", resp.StatusCode),
			goerr.V("body", string(body)),
		)
	}

	var payload struct {
		Value string `json:"value"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", goerr.Wrap(err, "failed to decode OIDC token response")
	}
	if payload.Value == "" {
		return "", goerr.New("OIDC token response has no value")
	}
	return payload.Value, nil
}

// FileAssertion reads the ID token from a file, re-reading it on every call
type FileAssertion struct {
	Path string
}

// Assertion returns the file content
func (s *FileAssertion) Assertion(ctx context.Context, audience string) (string, error) {
	if s.Path == "" {
		return "", goerr.New("ID token file is not specified")
	}
	raw, err := os.ReadFile(s.Path)
	if err != nil {
		return "", goerr.Wrap(err, "failed to read ID token file", goerr.V("path", s.Path))
	}
	token := strings.TrimSpace(string(raw))
	if token == "" {
		return "", goerr.New("ID token file is empty", goerr.V("path", s.Path))
	}
	return token, nil
}
