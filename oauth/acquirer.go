// Package oauth performs the OAuth2 grant exchanges against the Cumulus
// authorization host and produces the credentials the rest of the SDK runs
// on.
package oauth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/cumulusapi/cumulus-go/store"
)

// GrantType names the mechanism by which a token is obtained.
type GrantType string

const GrantTypeAuthorizationCode GrantType = "authorization_code"
const GrantTypeClientCredentials GrantType = "client_credentials"
const GrantTypeRefreshToken GrantType = "refresh_token"

const tokenPath = "/oauth/token"
const authorizePath = "/oauth/authorize"

const acquirerMaxConns = 20
const acquirerHTTPTimeout = 30 * time.Second

// expirySkew is subtracted from the server-reported lifetime so a token is
// considered expired slightly before the host would reject it. This avoids
// dispatching a request with a token that expires mid-flight. Tokens whose
// whole lifetime is within twice the skew keep their server-reported
// expiry, so ExpiresAt always lands in the future.
const expirySkew = 30 * time.Second

// Config holds the client registration used for every exchange.
type Config struct {
	Host         string // authorization host base URL, e.g. https://auth.cumulus.io
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       []string
}

// Acquirer performs the three grant exchanges. It is safe for concurrent use.
type Acquirer struct {
	client *resty.Client
	cfg    Config
	clock  clockwork.Clock
	log    logrus.FieldLogger
}

// AcquirerOption customizes an Acquirer.
type AcquirerOption func(*Acquirer)

// WithClock overrides the clock used to derive token expiry.
func WithClock(clock clockwork.Clock) AcquirerOption {
	return func(a *Acquirer) { a.clock = clock }
}

// WithLogger overrides the logger.
func WithLogger(log logrus.FieldLogger) AcquirerOption {
	return func(a *Acquirer) { a.log = log }
}

// WithHTTPClient overrides the underlying HTTP client, including any
// transport timeout the caller wants.
func WithHTTPClient(hc *http.Client) AcquirerOption {
	return func(a *Acquirer) { a.client = resty.NewWithClient(hc).SetBaseURL(a.cfg.Host) }
}

// NewAcquirer builds an Acquirer for the given client registration.
func NewAcquirer(cfg Config, opts ...AcquirerOption) *Acquirer {
	client := resty.NewWithClient(&http.Client{
		Timeout: acquirerHTTPTimeout,
		Transport: &http.Transport{
			MaxConnsPerHost:     acquirerMaxConns,
			MaxIdleConnsPerHost: acquirerMaxConns,
		},
	}).SetBaseURL(cfg.Host)

	a := &Acquirer{
		client: client,
		cfg:    cfg,
		clock:  clockwork.NewRealClock(),
		log:    logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// TokenEndpoint returns the absolute token endpoint URL.
func (a *Acquirer) TokenEndpoint() string {
	return strings.TrimRight(a.cfg.Host, "/") + tokenPath
}

// ExchangeOption adds form fields to a code exchange.
type ExchangeOption func(form map[string]string)

// WithCodeVerifier attaches the PKCE code_verifier matching the challenge
// sent on the authorization redirect.
func WithCodeVerifier(verifier string) ExchangeOption {
	return func(form map[string]string) { form["code_verifier"] = verifier }
}

// ExchangeAuthorizationCode swaps the code received on the redirect URI for
// credentials.
func (a *Acquirer) ExchangeAuthorizationCode(ctx context.Context, code string, opts ...ExchangeOption) (*store.Credentials, error) {
	form := map[string]string{
		"grant_type":    string(GrantTypeAuthorizationCode),
		"code":          code,
		"client_id":     a.cfg.ClientID,
		"client_secret": a.cfg.ClientSecret,
		"redirect_uri":  a.cfg.RedirectURI,
	}
	for _, opt := range opts {
		opt(form)
	}
	return a.exchange(ctx, GrantTypeAuthorizationCode, form)
}

// ExchangeClientCredentials obtains credentials for the client itself, with
// no user involved.
func (a *Acquirer) ExchangeClientCredentials(ctx context.Context) (*store.Credentials, error) {
	form := map[string]string{
		"grant_type":    string(GrantTypeClientCredentials),
		"client_id":     a.cfg.ClientID,
		"client_secret": a.cfg.ClientSecret,
		"scope":         strings.Join(a.cfg.Scopes, " "),
	}
	return a.exchange(ctx, GrantTypeClientCredentials, form)
}

// Refresh swaps the refresh token for fresh credentials. It never mutates
// creds; a new value is returned. When the host omits a rotated refresh
// token, the previous one is carried over.
func (a *Acquirer) Refresh(ctx context.Context, creds *store.Credentials) (*store.Credentials, error) {
	if creds == nil || creds.RefreshToken == "" {
		return nil, &RefreshError{Endpoint: a.TokenEndpoint(), Detail: "no refresh token available"}
	}
	form := map[string]string{
		"grant_type":    string(GrantTypeRefreshToken),
		"refresh_token": creds.RefreshToken,
		"client_id":     a.cfg.ClientID,
		"client_secret": a.cfg.ClientSecret,
	}
	next, err := a.exchange(ctx, GrantTypeRefreshToken, form)
	if err != nil {
		if ex, ok := err.(*ExchangeError); ok {
			return nil, &RefreshError{Endpoint: ex.Endpoint, Status: ex.Status, Detail: ex.Detail, Err: ex.Err}
		}
		return nil, err
	}
	if next.RefreshToken == "" {
		next.RefreshToken = creds.RefreshToken
	}
	return next, nil
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	Scope        string `json:"scope"`
}

func (a *Acquirer) exchange(ctx context.Context, grant GrantType, form map[string]string) (*store.Credentials, error) {
	endpoint := a.TokenEndpoint()

	var result tokenResponse
	resp, err := a.client.R().
		SetContext(ctx).
		SetFormData(form).
		SetResult(&result).
		Post(tokenPath)
	if err != nil {
		return nil, &ExchangeError{Grant: grant, Endpoint: endpoint, Err: err}
	}
	if resp.IsError() {
		return nil, &ExchangeError{
			Grant:    grant,
			Endpoint: endpoint,
			Status:   resp.StatusCode(),
			Detail:   errorDetail(resp.Body()),
		}
	}
	if result.AccessToken == "" || result.ExpiresIn <= 0 {
		return nil, &ExchangeError{
			Grant:    grant,
			Endpoint: endpoint,
			Status:   resp.StatusCode(),
			Detail:   "malformed token payload: missing access_token or expires_in",
		}
	}

	now := a.clock.Now().UTC()
	lifetime := time.Duration(result.ExpiresIn) * time.Second
	if lifetime > 2*expirySkew {
		lifetime -= expirySkew
	}
	creds := &store.Credentials{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		TokenType:    result.TokenType,
		ExpiresAt:    now.Add(lifetime),
		IssuedAt:     now,
	}
	if result.Scope != "" {
		creds.Scope = strings.Fields(result.Scope)
	}
	a.log.WithFields(logrus.Fields{
		"grant":      grant,
		"expires_at": creds.ExpiresAt,
	}).Debug("Token exchange succeeded")
	return creds, nil
}

// errorDetail pulls the standard OAuth2 error fields out of a failure body.
func errorDetail(body []byte) string {
	if d := gjson.GetBytes(body, "error_description"); d.Exists() {
		return d.String()
	}
	if d := gjson.GetBytes(body, "error"); d.Exists() {
		return d.String()
	}
	detail := strings.TrimSpace(string(body))
	if len(detail) > 200 {
		detail = detail[:200]
	}
	return detail
}
