package wif_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/m-mizutani/gt"
	"github.com/team11/cloudrun-deployer/pkg/domain/model"
	"github.com/team11/cloudrun-deployer/pkg/infra/wif"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google/externalaccount"
)

const testProvider = "projects/123456/locations/global/workloadIdentityPools/github/providers/github"

type staticSource struct {
	token     string
	err       error
	audiences []string
}

func (s *staticSource) Assertion(ctx context.Context, audience string) (string, error) {
	s.audiences = append(s.audiences, audience)
	return s.token, s.err
}

func signToken(t *testing.T, issuer string, exp time.Time) string {
	t.Helper()
	b := jwt.NewBuilder().Subject("repo:team11/game:ref:refs/heads/main")
	if issuer != "" {
		b = b.Issuer(issuer)
	}
	if !exp.IsZero() {
		b = b.Expiration(exp)
	}
	tok, err := b.Build()
	gt.NoError(t, err)

	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, []byte("test-key")))
	gt.NoError(t, err)
	return string(signed)
}

func testTarget() *model.Target {
	return &model.Target{
		ServiceAccount:           "deployer@proj.iam.gserviceaccount.com",
		ProjectID:                "proj",
		WorkloadIdentityProvider: testProvider,
		Region:                   "asia-northeast1",
	}
}

func fakeExchange(calls *[]externalaccount.Config, err error) wif.ExchangeFunc {
	return func(ctx context.Context, cfg externalaccount.Config) (oauth2.TokenSource, error) {
		*calls = append(*calls, cfg)
		if err != nil {
			return nil, err
		}
		return oauth2.StaticTokenSource(&oauth2.Token{
			AccessToken: "ya29.test",
			Expiry:      time.Now().Add(time.Hour),
		}), nil
	}
}

func TestAuthenticator_Success(t *testing.T) {
	ctx := context.Background()
	ws := &model.Workspace{Root: t.TempDir()}
	src := &staticSource{token: signToken(t, "https://token.actions.githubusercontent.com", time.Now().Add(5*time.Minute))}

	var calls []externalaccount.Config
	auth := wif.New(src, wif.WithExchange(fakeExchange(&calls, nil)))

	cred, err := auth.Authenticate(ctx, testTarget(), ws)
	gt.NoError(t, err)
	gt.Value(t, cred.ConfigFile).Equal(filepath.Join(ws.Root, "credentials.json"))
	gt.Value(t, ws.CredentialFile).Equal(cred.ConfigFile)
	gt.False(t, cred.ExpiresAt.IsZero())

	gt.A(t, src.audiences).Length(1)
	gt.Value(t, src.audiences[0]).Equal("https://iam.googleapis.com/" + testProvider)

	gt.A(t, calls).Length(1)
	gt.Value(t, calls[0].Audience).Equal("//iam.googleapis.com/" + testProvider)
	gt.Value(t, calls[0].ServiceAccountImpersonationURL).Equal(
		"https://iamcredentials.googleapis.com/v1/projects/-/serviceAccounts/deployer@proj.iam.gserviceaccount.com:generateAccessToken")

	raw, err := os.ReadFile(cred.ConfigFile)
	gt.NoError(t, err)
	var cfg map[string]any
	gt.NoError(t, json.Unmarshal(raw, &cfg))
	gt.Value(t, cfg["type"]).Equal("external_account")
	source := cfg["credential_source"].(map[string]any)
	tokenRaw, err := os.ReadFile(source["file"].(string))
	gt.NoError(t, err)
	gt.Value(t, string(tokenRaw)).Equal(src.token)

	info, err := os.Stat(cred.ConfigFile)
	gt.NoError(t, err)
	gt.Value(t, info.Mode().Perm()).Equal(os.FileMode(0600))
}

func TestAuthenticator_MissingInputs(t *testing.T) {
	for name, clear := range map[string]func(*model.Target){
		"service account": func(t *model.Target) { t.ServiceAccount = "" },
		"project":         func(t *model.Target) { t.ProjectID = "" },
		"provider":        func(t *model.Target) { t.WorkloadIdentityProvider = "" },
	} {
		t.Run(name, func(t *testing.T) {
			src := &staticSource{token: "unused"}
			var calls []externalaccount.Config
			auth := wif.New(src, wif.WithExchange(fakeExchange(&calls, nil)))

			target := testTarget()
			clear(target)

			_, err := auth.Authenticate(context.Background(), target, &model.Workspace{Root: t.TempDir()})
			gt.Error(t, err)
			gt.A(t, src.audiences).Length(0)
			gt.A(t, calls).Length(0)
		})
	}
}

func TestAuthenticator_InvalidAssertion(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name  string
		token string
	}{
		{name: "not a JWT", token: "not-a-token"},
		{name: "expired", token: signToken(t, "https://issuer", now.Add(-time.Hour))},
		{name: "no expiry", token: signToken(t, "https://issuer", time.Time{})},
		{name: "no issuer", token: signToken(t, "", now.Add(time.Hour))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls []externalaccount.Config
			auth := wif.New(&staticSource{token: tt.token}, wif.WithExchange(fakeExchange(&calls, nil)))

			_, err := auth.Authenticate(context.Background(), testTarget(), &model.Workspace{Root: t.TempDir()})
			gt.Error(t, err)
			gt.A(t, calls).Length(0)
		})
	}
}

func TestAuthenticator_SourceError(t *testing.T) {
	auth := wif.New(&staticSource{err: errors.New("no runner")})
	_, err := auth.Authenticate(context.Background(), testTarget(), &model.Workspace{Root: t.TempDir()})
	gt.Error(t, err)
	gt.String(t, err.Error()).Contains("identity assertion")
}

func TestAuthenticator_ExchangeRejected(t *testing.T) {
	ws := &model.Workspace{Root: t.TempDir()}
	src := &staticSource{token: signToken(t, "https://issuer", time.Now().Add(time.Hour))}
	var calls []externalaccount.Config
	auth := wif.New(src, wif.WithExchange(fakeExchange(&calls, errors.New("invalid_grant"))))

	_, err := auth.Authenticate(context.Background(), testTarget(), ws)
	gt.Error(t, err)
	gt.Value(t, ws.CredentialFile).Equal("")
}

func TestValidateProvider(t *testing.T) {
	gt.NoError(t, wif.ValidateProvider(testProvider))
	gt.Error(t, wif.ValidateProvider("github"))
	gt.Error(t, wif.ValidateProvider("projects/1/locations/global/workloadIdentityPools/p"))
	gt.Error(t, wif.ValidateProvider("projects/1/locations/global/pools/p/providers/x"))
}
