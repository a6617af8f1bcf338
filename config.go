package cumulus

import (
	"errors"
	"os"
	"strings"
)

// Production endpoints used when the corresponding Config fields are unset.
const DefaultOAuthHost = "https://auth.cumulus.io"
const DefaultDataHost = "https://api.cumulus.io"

// DefaultScopes is requested when Config.Scopes is empty.
var DefaultScopes = []string{"profile", "email"}

// Environment variables read by ConfigFromEnv.
const (
	EnvClientID     = "CUMULUS_CLIENT_ID"
	EnvClientSecret = "CUMULUS_CLIENT_SECRET"
	EnvRedirectURI  = "CUMULUS_REDIRECT_URI"
	EnvScopes       = "CUMULUS_SCOPES" // space-separated
	EnvOAuthHost    = "CUMULUS_OAUTH_HOST"
	EnvDataHost     = "CUMULUS_DATA_HOST"
)

// Config identifies one registered API client. It is an explicit value
// constructed once at startup and passed to New; nothing in the SDK reads
// the environment after that point.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       []string
	OAuthHost    string
	DataHost     string
}

// ConfigFromEnv builds a Config from the CUMULUS_* environment variables.
// Defaults are not filled here; New does that.
func ConfigFromEnv() Config {
	cfg := Config{
		ClientID:     os.Getenv(EnvClientID),
		ClientSecret: os.Getenv(EnvClientSecret),
		RedirectURI:  os.Getenv(EnvRedirectURI),
		OAuthHost:    os.Getenv(EnvOAuthHost),
		DataHost:     os.Getenv(EnvDataHost),
	}
	if scopes := os.Getenv(EnvScopes); scopes != "" {
		cfg.Scopes = strings.Fields(scopes)
	}
	return cfg
}

// withDefaults returns a copy with unset fields replaced by the documented
// production defaults. The receiver is never modified.
func (c Config) withDefaults() Config {
	if c.OAuthHost == "" {
		c.OAuthHost = DefaultOAuthHost
	}
	if c.DataHost == "" {
		c.DataHost = DefaultDataHost
	}
	if len(c.Scopes) == 0 {
		c.Scopes = append([]string(nil), DefaultScopes...)
	}
	return c
}

// Validate checks the fields every flow needs.
func (c Config) Validate() error {
	if c.ClientID == "" {
		return errors.New("cumulus: config missing client id")
	}
	if c.ClientSecret == "" {
		return errors.New("cumulus: config missing client secret")
	}
	return nil
}
