// Package request turns logical API calls into authenticated HTTP requests
// against the Cumulus data host: a fluent builder accumulates one request's
// shape, and the executor attaches bearer credentials, dispatches it, and
// recovers once from an expired token.
package request

import (
	"io"
	"net/http"
)

// Accept selects the response deserialization policy.
type Accept int

const (
	// AcceptJSON parses the response body as JSON.
	AcceptJSON Accept = iota
	// AcceptBinary returns the response body untouched.
	AcceptBinary
)

// BodyKind names the body encoding of an outbound request. At most one
// encoding is active per request.
type BodyKind int

const (
	BodyNone BodyKind = iota
	BodyJSON
	BodyForm
	BodyMultipart
)

// File is a named binary payload for a multipart field.
type File struct {
	Name   string
	Reader io.Reader
}

// Spec is the rendered, immutable description of one outbound call. It is
// consumed exactly once by the executor.
type Spec struct {
	URL       string // path relative to the data host
	Method    string
	Accept    Accept
	BodyKind  BodyKind
	JSON      any
	Form      map[string]string
	Multipart map[string]any // string, []byte, io.Reader or File per field
	Params    map[string]string
}

// Builder accumulates a Spec through method chaining. Calling more than one
// body-encoding method on the same builder is a usage error: the first
// encoding wins and Build returns ErrBodyConflict.
type Builder struct {
	spec Spec
	err  error
}

// NewBuilder starts a builder for the given path. Defaults: GET, JSON accept,
// no body.
func NewBuilder(url string) *Builder {
	return &Builder{spec: Spec{
		URL:    url,
		Method: http.MethodGet,
		Accept: AcceptJSON,
	}}
}

// Method sets the HTTP method.
func (b *Builder) Method(m string) *Builder {
	b.spec.Method = m
	return b
}

// AcceptJSON parses the response as JSON (the default).
func (b *Builder) AcceptJSON() *Builder {
	b.spec.Accept = AcceptJSON
	return b
}

// AcceptBinary returns the raw response bytes.
func (b *Builder) AcceptBinary() *Builder {
	b.spec.Accept = AcceptBinary
	return b
}

// QueryParams sets URL query parameters.
func (b *Builder) QueryParams(params map[string]string) *Builder {
	b.spec.Params = params
	return b
}

// JSONBody encodes v as a JSON request body.
func (b *Builder) JSONBody(v any) *Builder {
	if !b.setBodyKind(BodyJSON) {
		return b
	}
	b.spec.JSON = v
	return b
}

// FormBody encodes the fields as application/x-www-form-urlencoded.
func (b *Builder) FormBody(fields map[string]string) *Builder {
	if !b.setBodyKind(BodyForm) {
		return b
	}
	b.spec.Form = fields
	return b
}

// MultipartBody encodes the fields as multipart/form-data. Values may be
// strings, []byte, io.Reader or File; binary values become file parts.
func (b *Builder) MultipartBody(fields map[string]any) *Builder {
	if !b.setBodyKind(BodyMultipart) {
		return b
	}
	b.spec.Multipart = fields
	return b
}

func (b *Builder) setBodyKind(kind BodyKind) bool {
	if b.spec.BodyKind != BodyNone && b.spec.BodyKind != kind {
		b.err = ErrBodyConflict
		return false
	}
	b.spec.BodyKind = kind
	return true
}

// Build renders the accumulated Spec. It performs no I/O.
func (b *Builder) Build() (Spec, error) {
	if b.err != nil {
		return Spec{}, b.err
	}
	return b.spec, nil
}

// ContainsBinary reports whether any top-level payload value is a binary
// blob or stream. It deliberately does not recurse: multipart uploads carry
// a flat field model, so only top-level values can become file parts.
func ContainsBinary(payload map[string]any) bool {
	for _, v := range payload {
		switch v.(type) {
		case []byte, io.Reader, File, *File:
			return true
		}
	}
	return false
}
