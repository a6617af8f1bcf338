package oauth

import (
	"strings"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// AuthURLOption adds parameters to the authorization redirect URL.
type AuthURLOption func(*[]oauth2.AuthCodeOption)

// WithPKCEChallenge attaches an S256 code challenge to the authorization
// request. The matching verifier must be passed to
// ExchangeAuthorizationCode via WithCodeVerifier.
func WithPKCEChallenge(challenge string) AuthURLOption {
	return func(opts *[]oauth2.AuthCodeOption) {
		*opts = append(*opts,
			oauth2.SetAuthURLParam("code_challenge", challenge),
			oauth2.SetAuthURLParam("code_challenge_method", "S256"),
		)
	}
}

// NewState returns a fresh nonce for the authorization request's state
// parameter.
func NewState() string {
	return uuid.NewString()
}

// AuthCodeURL builds the URL a user is redirected to for the impersonated
// login flow.
func (a *Acquirer) AuthCodeURL(state string, opts ...AuthURLOption) string {
	host := strings.TrimRight(a.cfg.Host, "/")
	cfg := &oauth2.Config{
		ClientID:     a.cfg.ClientID,
		ClientSecret: a.cfg.ClientSecret,
		RedirectURL:  a.cfg.RedirectURI,
		Scopes:       a.cfg.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  host + authorizePath,
			TokenURL: host + tokenPath,
		},
	}
	var codeOpts []oauth2.AuthCodeOption
	for _, opt := range opts {
		opt(&codeOpts)
	}
	return cfg.AuthCodeURL(state, codeOpts...)
}
