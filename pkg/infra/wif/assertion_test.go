package wif_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/team11/cloudrun-deployer/pkg/infra/wif"
)

func TestActionsOIDC(t *testing.T) {
	var gotAuth, gotAudience string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotAudience = r.URL.Query().Get("audience")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"value": "id-token"})
	}))
	defer server.Close()

	src := &wif.ActionsOIDC{
		RequestURL:   server.URL + "/token?api-version=2.0",
		RequestToken: "request-token",
		HTTPClient:   server.Client(),
	}

	token, err := src.Assertion(context.Background(), "https://iam.googleapis.com/x")
	gt.NoError(t, err)
	gt.Value(t, token).Equal("id-token")
	gt.Value(t, gotAuth).Equal("Bearer request-token")
	gt.Value(t, gotAudience).Equal("https://iam.googleapis.com/x")
}

func TestNewActionsOIDCFromEnv(t *testing.T) {
	t.Setenv("ACTIONS_ID_TOKEN_REQUEST_URL", "https://runner.example/token")
	t.Setenv("ACTIONS_ID_TOKEN_REQUEST_TOKEN", "request-token")

	src := wif.NewActionsOIDCFromEnv()
	gt.Value(t, src.RequestURL).Equal("https://runner.example/token")
	gt.Value(t, src.RequestToken).Equal("request-token")
	gt.Value(t, src.HTTPClient).NotNil()
	gt.Value(t, src.HTTPClient.Timeout).Equal(wif.OIDCRequestTimeout)
}

func TestActionsOIDC_StalledRunner(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	src := &wif.ActionsOIDC{
		RequestURL:   server.URL,
		RequestToken: "t",
		HTTPClient:   &http.Client{Timeout: 50 * time.Millisecond},
	}
	_, err := src.Assertion(context.Background(), "aud")
	gt.Error(t, err)
	gt.String(t, err.Error()).Contains("failed to request OIDC token")
}

func TestActionsOIDC_DefaultClient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"value": "id-token"})
	}))
	defer server.Close()

	src := &wif.ActionsOIDC{RequestURL: server.URL, RequestToken: "t"}
	token, err := src.Assertion(context.Background(), "aud")
	gt.NoError(t, err)
	gt.Value(t, token).Equal("id-token")
}

func TestActionsOIDC_Rejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	src := &wif.ActionsOIDC{RequestURL: server.URL, RequestToken: "t", HTTPClient: server.Client()}
	_, err := src.Assertion(context.Background(), "aud")
	gt.Error(t, err)
}

func TestActionsOIDC_NotConfigured(t *testing.T) {
	src := &wif.ActionsOIDC{}
	_, err := src.Assertion(context.Background(), "aud")
	gt.Error(t, err)
	gt.String(t, err.Error()).Contains("id-token: write")
}

func TestFileAssertion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	gt.NoError(t, os.WriteFile(path, []byte("  file-token\n"), 0600))

	token, err := (&wif.FileAssertion{Path: path}).Assertion(context.Background(), "aud")
	gt.NoError(t, err)
	gt.Value(t, token).Equal("file-token")

	_, err = (&wif.FileAssertion{}).Assertion(context.Background(), "aud")
	gt.Error(t, err)

	empty := filepath.Join(t.TempDir(), "empty")
	gt.NoError(t, os.WriteFile(empty, nil, 0600))
	_, err = (&wif.FileAssertion{Path: empty}).Assertion(context.Background(), "aud")
	gt.Error(t, err)
}
