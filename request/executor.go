package request

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/jonboulle/clockwork"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/cumulusapi/cumulus-go/store"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const executorMaxConns = 100
const executorHTTPTimeout = 60 * time.Second

// Refresher exchanges an expired credential for a fresh one.
type Refresher interface {
	Refresh(ctx context.Context, creds *store.Credentials) (*store.Credentials, error)
}

// Response is the outcome of one dispatched request.
type Response struct {
	Status int
	Header http.Header
	// Body is the raw response body: untouched bytes for binary requests,
	// the raw JSON text otherwise.
	Body []byte
	// Data is the decoded JSON document when the request accepted JSON.
	Data any
}

// Decode unmarshals the raw body into v.
func (r *Response) Decode(v any) error {
	return json.Unmarshal(r.Body, v)
}

// Executor dispatches built request specs with bearer credentials attached,
// refreshing the token when it has expired and retrying an
// authorization-rejected dispatch exactly once.
//
// Concurrent refreshes within one Executor are deduplicated: callers that
// observe an expired token at the same time share a single refresh result.
// Separate processes sharing one credential store still race with
// last-write-wins, which the host tolerates.
type Executor struct {
	client    *resty.Client
	refresher Refresher
	store     store.Store // optional
	clock     clockwork.Clock
	log       logrus.FieldLogger

	group singleflight.Group

	mu    sync.RWMutex
	creds *store.Credentials // set by a login when no store is supplied
}

// ExecutorOption customizes an Executor.
type ExecutorOption func(*Executor)

// WithStore supplies the optional credential store. When present it is the
// source of truth: refreshed credentials are persisted there before the
// request they unblock is dispatched.
func WithStore(s store.Store) ExecutorOption {
	return func(e *Executor) { e.store = s }
}

// WithClock overrides the clock used for expiry checks.
func WithClock(clock clockwork.Clock) ExecutorOption {
	return func(e *Executor) { e.clock = clock }
}

// WithLogger overrides the logger.
func WithLogger(log logrus.FieldLogger) ExecutorOption {
	return func(e *Executor) { e.log = log }
}

// WithHTTPClient overrides the underlying HTTP client, including any
// transport timeout the caller wants.
func WithHTTPClient(hc *http.Client) ExecutorOption {
	return func(e *Executor) {
		e.client = resty.NewWithClient(hc).SetBaseURL(e.client.BaseURL)
	}
}

// NewExecutor builds an Executor for the given data host.
func NewExecutor(dataHost string, refresher Refresher, opts ...ExecutorOption) *Executor {
	client := resty.NewWithClient(&http.Client{
		Timeout: executorHTTPTimeout,
		Transport: &http.Transport{
			MaxConnsPerHost:     executorMaxConns,
			MaxIdleConnsPerHost: executorMaxConns,
		},
	}).SetBaseURL(dataHost)

	e := &Executor{
		client:    client,
		refresher: refresher,
		clock:     clockwork.NewRealClock(),
		log:       logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SetCredentials installs credentials obtained by a login. When a store is
// configured they are persisted there as well.
func (e *Executor) SetCredentials(ctx context.Context, creds *store.Credentials) error {
	e.mu.Lock()
	e.creds = creds
	e.mu.Unlock()
	if e.store != nil {
		return e.store.PutCredentials(ctx, creds)
	}
	return nil
}

// Credentials returns the credentials the next dispatch would use, or
// ErrNotAuthenticated.
func (e *Executor) Credentials(ctx context.Context) (*store.Credentials, error) {
	return e.resolveCredentials(ctx)
}

// Do executes one built request. Multipart stream values are read fully
// into memory up front so the internal authorization retry resends an
// identical body.
func (e *Executor) Do(ctx context.Context, spec Spec) (*Response, error) {
	if spec.BodyKind == BodyMultipart {
		buffered, err := bufferMultipart(spec.Multipart)
		if err != nil {
			return nil, err
		}
		spec.Multipart = buffered
	}

	creds, err := e.resolveCredentials(ctx)
	if err != nil {
		return nil, err
	}

	refreshed := false
	if creds.Expired(e.clock.Now()) {
		if creds, err = e.refresh(ctx, creds); err != nil {
			return nil, err
		}
		refreshed = true
	}

	resp, err := e.dispatch(ctx, spec, creds.AccessToken)
	if err != nil {
		return nil, err
	}

	if isAuthFailure(resp.StatusCode()) {
		if refreshed {
			return nil, &DeniedError{Endpoint: spec.URL, Status: resp.StatusCode()}
		}
		e.log.WithField("status", resp.StatusCode()).Debug("Authorization rejected, refreshing token and retrying once")
		if creds, err = e.refresh(ctx, creds); err != nil {
			return nil, err
		}
		if resp, err = e.dispatch(ctx, spec, creds.AccessToken); err != nil {
			return nil, err
		}
		if isAuthFailure(resp.StatusCode()) {
			return nil, &DeniedError{Endpoint: spec.URL, Status: resp.StatusCode()}
		}
	}

	return e.parse(spec, resp)
}

func isAuthFailure(status int) bool {
	return status == http.StatusUnauthorized || status == http.StatusForbidden
}

// resolveCredentials prefers the store when one is configured, falling back
// to credentials supplied by a prior login.
func (e *Executor) resolveCredentials(ctx context.Context) (*store.Credentials, error) {
	if e.store != nil {
		creds, err := e.store.GetCredentials(ctx)
		if err == nil && creds.AccessToken != "" {
			return creds, nil
		}
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("request: loading credentials: %w", err)
		}
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.creds != nil {
		return e.creds, nil
	}
	return nil, ErrNotAuthenticated
}

// refresh obtains fresh credentials and persists them before returning.
// Concurrent callers share one in-flight refresh.
func (e *Executor) refresh(ctx context.Context, current *store.Credentials) (*store.Credentials, error) {
	v, err, _ := e.group.Do("refresh", func() (any, error) {
		next, err := e.refresher.Refresh(ctx, current)
		if err != nil {
			return nil, err
		}
		if e.store != nil {
			if err := e.store.PutCredentials(ctx, next); err != nil {
				return nil, fmt.Errorf("request: persisting refreshed credentials: %w", err)
			}
		}
		e.mu.Lock()
		e.creds = next
		e.mu.Unlock()
		return next, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*store.Credentials), nil
}

// bufferedFile is a multipart file part snapshotted into memory so it can
// be dispatched more than once.
type bufferedFile struct {
	name string
	data []byte
}

// bufferMultipart snapshots stream-backed field values. A stream can only
// be read once, and a dispatch rejected with 401/403 is retried after a
// token refresh; without the snapshot the retry would carry an empty file
// part. String and []byte values are already replayable and pass through.
func bufferMultipart(fields map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(fields))
	for field, value := range fields {
		switch v := value.(type) {
		case File:
			data, err := io.ReadAll(v.Reader)
			if err != nil {
				return nil, fmt.Errorf("request: reading multipart field %q: %w", field, err)
			}
			out[field] = bufferedFile{name: v.Name, data: data}
		case *File:
			data, err := io.ReadAll(v.Reader)
			if err != nil {
				return nil, fmt.Errorf("request: reading multipart field %q: %w", field, err)
			}
			out[field] = bufferedFile{name: v.Name, data: data}
		case io.Reader:
			data, err := io.ReadAll(v)
			if err != nil {
				return nil, fmt.Errorf("request: reading multipart field %q: %w", field, err)
			}
			out[field] = data
		default:
			out[field] = value
		}
	}
	return out, nil
}

func (e *Executor) dispatch(ctx context.Context, spec Spec, token string) (*resty.Response, error) {
	req := e.client.R().
		SetContext(ctx).
		SetAuthToken(token)

	if len(spec.Params) > 0 {
		req.SetQueryParams(spec.Params)
	}

	switch spec.BodyKind {
	case BodyJSON:
		req.SetHeader("Content-Type", "application/json").SetBody(spec.JSON)
	case BodyForm:
		req.SetFormData(spec.Form)
	case BodyMultipart:
		for field, value := range spec.Multipart {
			switch v := value.(type) {
			case string:
				req.SetFormData(map[string]string{field: v})
			case []byte:
				req.SetFileReader(field, field, bytes.NewReader(v))
			case bufferedFile:
				req.SetFileReader(field, v.name, bytes.NewReader(v.data))
			case File:
				req.SetFileReader(field, v.Name, v.Reader)
			case *File:
				req.SetFileReader(field, v.Name, v.Reader)
			case io.Reader:
				req.SetFileReader(field, field, v)
			default:
				req.SetFormData(map[string]string{field: fmt.Sprint(v)})
			}
		}
	}

	resp, err := req.Execute(spec.Method, spec.URL)
	if err != nil {
		return nil, &TransportError{Endpoint: spec.URL, Err: err}
	}
	return resp, nil
}

func (e *Executor) parse(spec Spec, resp *resty.Response) (*Response, error) {
	out := &Response{
		Status: resp.StatusCode(),
		Header: resp.Header(),
		Body:   resp.Body(),
	}

	if resp.IsError() {
		return nil, &StatusError{Endpoint: spec.URL, Status: out.Status, Body: out.Body}
	}

	if spec.Accept == AcceptJSON && len(out.Body) > 0 {
		if err := json.Unmarshal(out.Body, &out.Data); err != nil {
			return nil, &ParseError{Endpoint: spec.URL, Err: err}
		}
	}
	return out, nil
}
