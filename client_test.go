package cumulus

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cumulusapi/cumulus-go/oauth"
	"github.com/cumulusapi/cumulus-go/store"
)

// testHosts spins up a fake OAuth host and a fake data host and returns a
// Client wired to both.
func testHosts(t *testing.T, api http.HandlerFunc, opts ...Option) *Client {
	t.Helper()

	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/oauth/token", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "test-access-token",
			"refresh_token": "test-refresh-token",
			"token_type":    "Bearer",
			"expires_in":    3600,
		})
	}))
	t.Cleanup(tokenServer.Close)

	apiServer := httptest.NewServer(api)
	t.Cleanup(apiServer.Close)

	client, err := New(Config{
		ClientID:     "test-client-id",
		ClientSecret: "test-client-secret",
		RedirectURI:  "https://app.example.com/callback",
		OAuthHost:    tokenServer.URL,
		DataHost:     apiServer.URL,
	}, opts...)
	require.NoError(t, err)
	return client
}

func requireAuthed(t *testing.T, r *http.Request) {
	t.Helper()
	require.Equal(t, "Bearer test-access-token", r.Header.Get("Authorization"))
}

func TestLoginPersonalAndGet(t *testing.T) {
	ctx := context.Background()
	client := testHosts(t, func(w http.ResponseWriter, r *http.Request) {
		requireAuthed(t, r)
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/api/v1/documents", r.URL.Path)
		require.Equal(t, "10", r.URL.Query().Get("limit"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"documents":[]}`))
	})

	creds, err := client.LoginPersonal(ctx)
	require.NoError(t, err)
	require.Equal(t, "test-access-token", creds.AccessToken)

	resp, err := client.Get(ctx, "/api/v1/documents", map[string]string{"limit": "10"})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.Status)
	require.Equal(t, map[string]any{"documents": []any{}}, resp.Data)
}

func TestLoginPersistsToStore(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	client := testHosts(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}, WithCredentialStore(st))

	_, err := client.LoginPersonal(ctx)
	require.NoError(t, err)

	stored, err := st.GetCredentials(ctx)
	require.NoError(t, err)
	require.Equal(t, "test-access-token", stored.AccessToken)

	creds, err := client.Credentials(ctx)
	require.NoError(t, err)
	require.Equal(t, stored.AccessToken, creds.AccessToken)
}

func TestCompleteLogin(t *testing.T) {
	ctx := context.Background()
	client := testHosts(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	})

	creds, err := client.CompleteLogin(ctx, "auth-code", oauth.WithCodeVerifier("verifier"))
	require.NoError(t, err)
	require.Equal(t, "test-refresh-token", creds.RefreshToken)
}

func TestAuthorizationURL(t *testing.T) {
	client := testHosts(t, func(w http.ResponseWriter, r *http.Request) {})

	raw, state := client.AuthorizationURL()
	require.NotEmpty(t, state)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	require.Equal(t, "/oauth/authorize", u.Path)
	require.Equal(t, state, u.Query().Get("state"))
	require.Equal(t, "test-client-id", u.Query().Get("client_id"))
	require.Equal(t, "profile email", u.Query().Get("scope"))
}

func TestLoginRedirect(t *testing.T) {
	client := testHosts(t, func(w http.ResponseWriter, r *http.Request) {})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/login", nil)
	state := client.LoginRedirect(rec, req)

	require.Equal(t, http.StatusFound, rec.Code)
	location := rec.Header().Get("Location")
	require.Contains(t, location, "/oauth/authorize")
	require.Contains(t, location, "state="+state)
}

func TestPostJSON(t *testing.T) {
	ctx := context.Background()
	client := testHosts(t, func(w http.ResponseWriter, r *http.Request) {
		requireAuthed(t, r)
		require.Equal(t, http.MethodPost, r.Method)
		require.Contains(t, r.Header.Get("Content-Type"), "application/json")

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, map[string]any{"title": "report"}, body)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"doc-1"}`))
	})

	_, err := client.LoginPersonal(ctx)
	require.NoError(t, err)

	resp, err := client.Post(ctx, "/api/v1/documents", map[string]any{"title": "report"})
	require.NoError(t, err)
	require.Equal(t, map[string]any{"id": "doc-1"}, resp.Data)
}

func TestUploadIsMultipart(t *testing.T) {
	ctx := context.Background()
	client := testHosts(t, func(w http.ResponseWriter, r *http.Request) {
		requireAuthed(t, r)
		require.Contains(t, r.Header.Get("Content-Type"), "multipart/form-data")
		require.NoError(t, r.ParseMultipartForm(1<<20))
		require.Equal(t, "report", r.MultipartForm.Value["name"][0])

		file, _, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		buf := make([]byte, 16)
		n, _ := file.Read(buf)
		require.Equal(t, "file-content", string(buf[:n]))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"uploaded":true}`))
	})

	_, err := client.LoginPersonal(ctx)
	require.NoError(t, err)

	resp, err := client.Upload(ctx, "/api/v1/files", map[string]any{
		"name": "report",
		"file": []byte("file-content"),
	})
	require.NoError(t, err)
	require.Equal(t, map[string]any{"uploaded": true}, resp.Data)
}

func TestInvokeRoutesBinaryToMultipart(t *testing.T) {
	ctx := context.Background()
	client := testHosts(t, func(w http.ResponseWriter, r *http.Request) {
		require.Contains(t, r.Header.Get("Content-Type"), "multipart/form-data")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	})

	_, err := client.LoginPersonal(ctx)
	require.NoError(t, err)

	_, err = client.Invoke(ctx, http.MethodPost, "/api/v1/files", map[string]any{
		"file": strings.NewReader("stream-content"),
	})
	require.NoError(t, err)
}

func TestInvokeGetUsesQueryParams(t *testing.T) {
	ctx := context.Background()
	client := testHosts(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "42", r.URL.Query().Get("limit"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	})

	_, err := client.LoginPersonal(ctx)
	require.NoError(t, err)

	_, err = client.Invoke(ctx, http.MethodGet, "/api/v1/documents", map[string]any{"limit": 42})
	require.NoError(t, err)
}

func TestInvokeDefaultsToJSON(t *testing.T) {
	ctx := context.Background()
	client := testHosts(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		require.Contains(t, r.Header.Get("Content-Type"), "application/json")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	})

	_, err := client.LoginPersonal(ctx)
	require.NoError(t, err)

	_, err = client.Invoke(ctx, http.MethodPut, "/api/v1/documents/1", map[string]any{"title": "new"})
	require.NoError(t, err)
}

func TestDownloadFile(t *testing.T) {
	ctx := context.Background()
	client := testHosts(t, func(w http.ResponseWriter, r *http.Request) {
		requireAuthed(t, r)
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Disposition", `attachment; filename="report.pdf"`)
		_, _ = w.Write([]byte("pdf-bytes"))
	})

	_, err := client.LoginPersonal(ctx)
	require.NoError(t, err)

	dir := t.TempDir()
	require.NoError(t, client.DownloadFile(ctx, "/api/v1/files/1", nil, dir))

	content, err := os.ReadFile(filepath.Join(dir, "report.pdf"))
	require.NoError(t, err)
	require.Equal(t, "pdf-bytes", string(content))
}

func TestDownloadRaw(t *testing.T) {
	ctx := context.Background()
	client := testHosts(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write([]byte{0x25, 0x50, 0x44, 0x46})
	})

	_, err := client.LoginPersonal(ctx)
	require.NoError(t, err)

	resp, err := client.Download(ctx, "/api/v1/files/1", nil)
	require.NoError(t, err)
	require.Equal(t, []byte{0x25, 0x50, 0x44, 0x46}, resp.Body)
	require.Nil(t, resp.Data)
}

func TestProfile(t *testing.T) {
	ctx := context.Background()
	client := testHosts(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/me", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"user-1","email":"user@example.com","name":"User One","plan":"pro"}`))
	})

	_, err := client.LoginPersonal(ctx)
	require.NoError(t, err)

	profile, err := client.Profile(ctx)
	require.NoError(t, err)
	require.Equal(t, "user-1", profile.ID)
	require.Equal(t, "user@example.com", profile.Email)
	require.Equal(t, "User One", profile.Name)
}
