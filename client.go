// Package cumulus is a Go SDK for the Cumulus REST API. It drives the OAuth2
// login flows, keeps the issued credentials fresh through a pluggable store,
// and exposes high-level verbs for authenticated calls against the data host.
//
// Usage:
//
//	client, err := cumulus.New(cumulus.ConfigFromEnv(),
//		cumulus.WithCredentialStore(store.NewFile("/var/lib/app/credentials.json")))
//	if err != nil {
//		log.Fatal(err)
//	}
//	if _, err := client.LoginPersonal(ctx); err != nil {
//		log.Fatal(err)
//	}
//	resp, err := client.Get(ctx, "/api/v1/documents", nil)
package cumulus

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/cumulusapi/cumulus-go/oauth"
	"github.com/cumulusapi/cumulus-go/request"
	"github.com/cumulusapi/cumulus-go/store"
)

const profilePath = "/api/v1/me"

// Client is the SDK facade. All methods are safe for concurrent use.
type Client struct {
	cfg      Config
	acquirer *oauth.Acquirer
	executor *request.Executor
	log      logrus.FieldLogger
}

type clientOptions struct {
	store      store.Store
	httpClient *http.Client
	clock      clockwork.Clock
	log        logrus.FieldLogger
}

// Option customizes a Client.
type Option func(*clientOptions)

// WithCredentialStore supplies the persistence collaborator. Without one,
// credentials obtained by a login live only in memory.
func WithCredentialStore(s store.Store) Option {
	return func(o *clientOptions) { o.store = s }
}

// WithHTTPClient overrides the HTTP client used for both hosts, including
// any transport timeout the caller wants.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *clientOptions) { o.httpClient = hc }
}

// WithClock overrides the clock used for token expiry decisions.
func WithClock(clock clockwork.Clock) Option {
	return func(o *clientOptions) { o.clock = clock }
}

// WithLogger overrides the logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(o *clientOptions) { o.log = log }
}

// New builds a Client. Unset Config fields are filled with the documented
// production defaults first; the passed Config value is never modified.
func New(cfg Config, opts ...Option) (*Client, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := clientOptions{
		clock: clockwork.NewRealClock(),
		log:   logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	acquirerOpts := []oauth.AcquirerOption{
		oauth.WithClock(o.clock),
		oauth.WithLogger(o.log),
	}
	if o.httpClient != nil {
		acquirerOpts = append(acquirerOpts, oauth.WithHTTPClient(o.httpClient))
	}
	acquirer := oauth.NewAcquirer(oauth.Config{
		Host:         cfg.OAuthHost,
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURI:  cfg.RedirectURI,
		Scopes:       cfg.Scopes,
	}, acquirerOpts...)

	executorOpts := []request.ExecutorOption{
		request.WithClock(o.clock),
		request.WithLogger(o.log),
	}
	if o.store != nil {
		executorOpts = append(executorOpts, request.WithStore(o.store))
	}
	if o.httpClient != nil {
		executorOpts = append(executorOpts, request.WithHTTPClient(o.httpClient))
	}
	executor := request.NewExecutor(cfg.DataHost, acquirer, executorOpts...)

	return &Client{
		cfg:      cfg,
		acquirer: acquirer,
		executor: executor,
		log:      o.log,
	}, nil
}

// Config returns the effective configuration, defaults included.
func (c *Client) Config() Config {
	return c.cfg
}

// AuthorizationURL returns the URL to send a user to for the impersonated
// login flow, along with the state nonce embedded in it. The caller must
// check that the state round-trips on the redirect back.
func (c *Client) AuthorizationURL(opts ...oauth.AuthURLOption) (url string, state string) {
	state = oauth.NewState()
	return c.acquirer.AuthCodeURL(state, opts...), state
}

// LoginRedirect writes an HTTP redirect to the authorization endpoint and
// returns the state nonce the caller should verify on the way back.
func (c *Client) LoginRedirect(w http.ResponseWriter, r *http.Request, opts ...oauth.AuthURLOption) string {
	url, state := c.AuthorizationURL(opts...)
	http.Redirect(w, r, url, http.StatusFound)
	return state
}

// CompleteLogin finishes the impersonated flow: it exchanges the code
// received on the redirect URI and installs (and, if a store is configured,
// persists) the resulting credentials.
func (c *Client) CompleteLogin(ctx context.Context, code string, opts ...oauth.ExchangeOption) (*store.Credentials, error) {
	creds, err := c.acquirer.ExchangeAuthorizationCode(ctx, code, opts...)
	if err != nil {
		return nil, err
	}
	if err := c.executor.SetCredentials(ctx, creds); err != nil {
		return nil, err
	}
	return creds, nil
}

// LoginPersonal performs the client-credentials flow, authenticating the
// application itself rather than a user.
func (c *Client) LoginPersonal(ctx context.Context) (*store.Credentials, error) {
	creds, err := c.acquirer.ExchangeClientCredentials(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.executor.SetCredentials(ctx, creds); err != nil {
		return nil, err
	}
	return creds, nil
}

// Credentials returns the credentials the next call would use, or
// request.ErrNotAuthenticated.
func (c *Client) Credentials(ctx context.Context) (*store.Credentials, error) {
	return c.executor.Credentials(ctx)
}

// Get performs an authenticated GET expecting a JSON response.
func (c *Client) Get(ctx context.Context, path string, params map[string]string) (*request.Response, error) {
	spec, err := request.NewBuilder(path).QueryParams(params).Build()
	if err != nil {
		return nil, err
	}
	return c.executor.Do(ctx, spec)
}

// Post performs an authenticated JSON POST.
func (c *Client) Post(ctx context.Context, path string, payload map[string]any) (*request.Response, error) {
	return c.jsonCall(ctx, http.MethodPost, path, payload)
}

// Put performs an authenticated JSON PUT.
func (c *Client) Put(ctx context.Context, path string, payload map[string]any) (*request.Response, error) {
	return c.jsonCall(ctx, http.MethodPut, path, payload)
}

// Patch performs an authenticated JSON PATCH.
func (c *Client) Patch(ctx context.Context, path string, payload map[string]any) (*request.Response, error) {
	return c.jsonCall(ctx, http.MethodPatch, path, payload)
}

// Delete performs an authenticated DELETE.
func (c *Client) Delete(ctx context.Context, path string, params map[string]string) (*request.Response, error) {
	spec, err := request.NewBuilder(path).Method(http.MethodDelete).QueryParams(params).Build()
	if err != nil {
		return nil, err
	}
	return c.executor.Do(ctx, spec)
}

func (c *Client) jsonCall(ctx context.Context, method, path string, payload map[string]any) (*request.Response, error) {
	b := request.NewBuilder(path).Method(method)
	if payload != nil {
		b.JSONBody(payload)
	}
	spec, err := b.Build()
	if err != nil {
		return nil, err
	}
	return c.executor.Do(ctx, spec)
}

// Upload sends the payload as multipart/form-data. String fields become
// form fields; []byte, io.Reader and request.File values become file parts.
func (c *Client) Upload(ctx context.Context, path string, payload map[string]any) (*request.Response, error) {
	spec, err := request.NewBuilder(path).Method(http.MethodPost).MultipartBody(payload).Build()
	if err != nil {
		return nil, err
	}
	return c.executor.Do(ctx, spec)
}

// Download performs an authenticated GET and returns the raw response bytes.
func (c *Client) Download(ctx context.Context, path string, params map[string]string) (*request.Response, error) {
	spec, err := request.NewBuilder(path).AcceptBinary().QueryParams(params).Build()
	if err != nil {
		return nil, err
	}
	return c.executor.Do(ctx, spec)
}

// DownloadFile downloads to destPath. When destPath is a directory, the
// filename is taken from the Content-Disposition header.
func (c *Client) DownloadFile(ctx context.Context, path string, params map[string]string, destPath string) error {
	resp, err := c.Download(ctx, path, params)
	if err != nil {
		return err
	}

	if fi, err := os.Stat(destPath); err == nil && fi.IsDir() {
		disposition := resp.Header.Get("Content-Disposition")
		if disposition == "" {
			return fmt.Errorf("cumulus: %s is a directory and the response carries no filename", destPath)
		}
		if _, mediaParams, err := mime.ParseMediaType(disposition); err == nil {
			if filename, ok := mediaParams["filename"]; ok {
				destPath = filepath.Join(destPath, filepath.Base(filename))
			}
		}
	}

	out, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("cumulus: creating %s: %w", destPath, err)
	}
	defer out.Close()

	if _, err := out.Write(resp.Body); err != nil {
		return fmt.Errorf("cumulus: writing %s: %w", destPath, err)
	}
	return nil
}

// Invoke performs a generic call, choosing the payload encoding itself: a
// payload with a binary field is uploaded as multipart, GET and DELETE
// payloads become query parameters, everything else is sent as JSON.
func (c *Client) Invoke(ctx context.Context, method, path string, payload map[string]any) (*request.Response, error) {
	if request.ContainsBinary(payload) {
		spec, err := request.NewBuilder(path).Method(method).MultipartBody(payload).Build()
		if err != nil {
			return nil, err
		}
		return c.executor.Do(ctx, spec)
	}

	switch method {
	case http.MethodGet, http.MethodDelete:
		params := make(map[string]string, len(payload))
		for k, v := range payload {
			params[k] = fmt.Sprint(v)
		}
		spec, err := request.NewBuilder(path).Method(method).QueryParams(params).Build()
		if err != nil {
			return nil, err
		}
		return c.executor.Do(ctx, spec)
	default:
		return c.jsonCall(ctx, method, path, payload)
	}
}

// Profile fetches the identity record of the logged-in principal.
func (c *Client) Profile(ctx context.Context) (*Profile, error) {
	resp, err := c.Get(ctx, profilePath, nil)
	if err != nil {
		return nil, err
	}
	var profile Profile
	if err := resp.Decode(&profile); err != nil {
		return nil, &request.ParseError{Endpoint: profilePath, Err: err}
	}
	return &profile, nil
}
