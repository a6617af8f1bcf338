package request

import (
	"bytes"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuilderRoundTrip(t *testing.T) {
	payload := map[string]any{"a": 1}
	spec, err := NewBuilder("/api/v1/documents").
		AcceptJSON().
		Method(http.MethodPost).
		JSONBody(payload).
		Build()
	require.NoError(t, err)

	require.Equal(t, "/api/v1/documents", spec.URL)
	require.Equal(t, http.MethodPost, spec.Method)
	require.Equal(t, AcceptJSON, spec.Accept)
	require.Equal(t, BodyJSON, spec.BodyKind)
	require.Equal(t, payload, spec.JSON)
}

func TestBuilderDefaults(t *testing.T) {
	spec, err := NewBuilder("/api/v1/documents").Build()
	require.NoError(t, err)
	require.Equal(t, http.MethodGet, spec.Method)
	require.Equal(t, AcceptJSON, spec.Accept)
	require.Equal(t, BodyNone, spec.BodyKind)
}

func TestBuilderBodyConflict(t *testing.T) {
	_, err := NewBuilder("/x").
		JSONBody(map[string]any{"a": 1}).
		FormBody(map[string]string{"b": "2"}).
		Build()
	require.ErrorIs(t, err, ErrBodyConflict)

	_, err = NewBuilder("/x").
		MultipartBody(map[string]any{"f": []byte{1}}).
		JSONBody(map[string]any{"a": 1}).
		Build()
	require.ErrorIs(t, err, ErrBodyConflict)
}

func TestBuilderBinaryAccept(t *testing.T) {
	spec, err := NewBuilder("/files/1").AcceptBinary().Build()
	require.NoError(t, err)
	require.Equal(t, AcceptBinary, spec.Accept)
}

func TestContainsBinary(t *testing.T) {
	require.False(t, ContainsBinary(nil))
	require.False(t, ContainsBinary(map[string]any{}))
	require.False(t, ContainsBinary(map[string]any{"a": "text", "b": 42}))

	require.True(t, ContainsBinary(map[string]any{"file": []byte("data")}))
	require.True(t, ContainsBinary(map[string]any{"file": bytes.NewReader([]byte("data"))}))
	require.True(t, ContainsBinary(map[string]any{"file": strings.NewReader("data")}))
	require.True(t, ContainsBinary(map[string]any{"file": File{Name: "a.txt", Reader: strings.NewReader("x")}}))
	require.True(t, ContainsBinary(map[string]any{"name": "report", "file": []byte{0x1}}))

	// only top-level values count
	require.False(t, ContainsBinary(map[string]any{"nested": map[string]any{"file": []byte{0x1}}}))
}
