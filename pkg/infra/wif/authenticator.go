package wif

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/team11/cloudrun-deployer/pkg/domain/model"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google/externalaccount"
)

const (
	defaultTokenURL    = "https://sts.googleapis.com/v1/token"
	impersonationURL   = "https://iamcredentials.googleapis.com/v1/projects/-/serviceAccounts/%s:generateAccessToken"
	subjectTokenType   = "urn:ietf:params:oauth:token-type:jwt"
	cloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

	credentialFileName = "credentials.json"
	tokenFileName      = "oidc-token"
)

// ExchangeFunc turns a federation config into a token source
type ExchangeFunc func(ctx context.Context, cfg externalaccount.Config) (oauth2.TokenSource, error)

// Authenticator implements workload identity federation
type Authenticator struct {
	source   AssertionSource
	audience string
	tokenURL string
	exchange ExchangeFunc
	now      func() time.Time
}

// Option configures Authenticator
type Option func(*Authenticator)

// WithAudience overrides the OIDC audience requested from the assertion source
func WithAudience(aud string) Option {
	return func(a *Authenticator) {
		a.audience = aud
	}
}

// WithTokenURL overrides the STS endpoint
func WithTokenURL(u string) Option {
	return func(a *Authenticator) {
		a.tokenURL = u
	}
}

// WithExchange replaces the STS exchange
func WithExchange(fn ExchangeFunc) Option {
	return func(a *Authenticator) {
		a.exchange = fn
	}
}

// WithClock sets the time source used to check assertion expiry
func WithClock(now func() time.Time) Option {
	return func(a *Authenticator) {
		a.now = now
	}
}

// New creates an Authenticator
func New(source AssertionSource, opts ...Option) *Authenticator {
	a := &Authenticator{
		source:   source,
		tokenURL: defaultTokenURL,
		exchange: externalaccount.NewTokenSource,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Audience returns the STS audience for a provider resource name
func Audience(provider string) string {
	return "//iam.googleapis.com/" + provider
}

// OIDCAudience returns the audience requested from the identity issuer
func OIDCAudience(provider string) string {
	return "https://iam.googleapis.com/" + provider
}

// ValidateProvider checks the shape of a workload identity provider resource name
func ValidateProvider(provider string) error {
	parts := strings.Split(provider, "/")
	if len(parts) != 8 || parts[0] != "projects" || parts[2] != "locations" ||
		parts[4] != "workloadIdentityPools" || parts[6] != "providers" {
		return goerr.New("invalid workload identity provider",
			goerr.V("expected", "projects/{number}/locations/global/workloadIdentityPools/{pool}/providers/{provider}"))
	}
	return nil
}

// Authenticate exchanges the assertion for a credential and writes the credential
// config into the workspace
func (a *Authenticator) Authenticate(ctx context.Context, target *model.Target, ws *model.Workspace) (*model.Credential, error) {
	logger := ctxlog.From(ctx)

	if err := target.ValidateCredentials(); err != nil {
		return nil, err
	}
	if err := ValidateProvider(target.WorkloadIdentityProvider); err != nil {
		return nil, err
	}

	audience := a.audience
	if audience == "" {
		audience = OIDCAudience(target.WorkloadIdentityProvider)
	}

	assertion, err := a.source.Assertion(ctx, audience)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to obtain identity assertion")
	}
	if err := a.checkAssertion(assertion); err != nil {
		return nil, err
	}

	cfg := a.config(target, assertion)
	ts, err := a.exchange(ctx, cfg)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to configure token exchange")
	}
	ts = oauth2.ReuseTokenSource(nil, ts)

	token, err := ts.Token()
	if err != nil {
		return nil, goerr.Wrap(err, "token exchange rejected")
	}

	configFile, err := a.writeCredentialConfig(ws, cfg, assertion)
	if err != nil {
		return nil, err
	}
	ws.CredentialFile = configFile

	logger.Info("Obtained federated credential", "expires_at", token.Expiry)

	return &model.Credential{
		TokenSource:    ts,
		ConfigFile:     configFile,
		ServiceAccount: target.ServiceAccount,
		ExpiresAt:      token.Expiry,
	}, nil
}

func (a *Authenticator) checkAssertion(assertion string) error {
	tok, err := jwt.ParseString(assertion,
		jwt.WithVerify(false),
		jwt.WithValidate(true),
		jwt.WithClock(jwt.ClockFunc(a.now)),
		jwt.WithAcceptableSkew(30*time.Second),
	)
	if err != nil {
		return goerr.Wrap(err, "identity assertion is not a valid token")
	}
	if tok.Expiration().IsZero() {
		return goerr.New("identity assertion has no expiry")
	}
	if tok.Issuer() == "" {
		return goerr.New("identity assertion has no issuer")
	}
	return nil
}

func (a *Authenticator) config(target *model.Target, assertion string) externalaccount.Config {
	return externalaccount.Config{
		Audience:                       Audience(target.WorkloadIdentityProvider),
		SubjectTokenType:               subjectTokenType,
		TokenURL:                       a.tokenURL,
		ServiceAccountImpersonationURL: impersonationURLFor(target.ServiceAccount),
		Scopes:                         []string{cloudPlatformScope},
		SubjectTokenSupplier:           staticSupplier(assertion),
	}
}

func impersonationURLFor(serviceAccount string) string {
	return fmt.Sprintf(impersonationURL, serviceAccount)
}

type staticSupplier string

func (s staticSupplier) SubjectToken(ctx context.Context, options externalaccount.SupplierOptions) (string, error) {
	return string(s), nil
}

type credentialConfig struct {
	Type                           string           `json:"type"`
	Audience                       string           `json:"audience"`
	SubjectTokenType               string           `json:"subject_token_type"`
	TokenURL                       string           `json:"token_url"`
	ServiceAccountImpersonationURL string           `json:"service_account_impersonation_url"`
	CredentialSource               credentialSource `json:"credential_source"`
}

type credentialSource struct {
	File string `json:"file"`
}

// writeCredentialConfig writes an external_account config that the cloud CLI reads.
// The assertion is stored next to it with owner-only permissions.
func (a *Authenticator) writeCredentialConfig(ws *model.Workspace, cfg externalaccount.Config, assertion string) (string, error) {
	tokenPath := filepath.Join(ws.Root, tokenFileName)
	if err := os.WriteFile(tokenPath, []byte(assertion), 0600); err != nil {
		return "", goerr.Wrap(err, "failed to write identity assertion")
	}

	raw, err := json.MarshalIndent(credentialConfig{
		Type:                           "external_account",
		Audience:                       cfg.Audience,
		SubjectTokenType:               cfg.SubjectTokenType,
		TokenURL:                       cfg.TokenURL,
		ServiceAccountImpersonationURL: cfg.ServiceAccountImpersonationURL,
		CredentialSource:               credentialSource{File: tokenPath},
	}, "", "  ")
	if err != nil {
		return "", goerr.Wrap(err, "failed to encode credential config")
	}

	path := filepath.Join(ws.Root, credentialFileName)
	if err := os.WriteFile(path, raw, 0600); err != nil {
		return "", goerr.Wrap(err, "failed to write credential config")
	}
	return path, nil
}
