package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	apperrors "github.com/alexjbarnes/notes-auth/internal/errors"
	"github.com/alexjbarnes/notes-auth/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestClient creates a Client pointed at the given httptest server.
func newTestClient(srv *httptest.Server) *Client {
	return &Client{
		httpClient: srv.Client(),
		baseURL:    srv.URL,
	}
}

const meBody = `{
	"id": 42,
	"email": "octo@example.com",
	"username": "octocat",
	"full_name": "Octo Cat",
	"provider": "github",
	"provider_id": "583231",
	"avatar_url": "https://avatars.example.com/u/583231",
	"is_active": true,
	"is_verified": true,
	"created_at": "2024-03-01T10:00:00",
	"updated_at": "2024-03-02T11:30:00.123456",
	"last_login_at": "2024-03-02T11:30:00Z"
}`

// --- do() internals ---

func TestDo_SetsBearerAndHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		_, err := uuid.Parse(r.Header.Get(requestIDHeader))
		assert.NoError(t, err)
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, currentUserPath, r.URL.Path)
		w.Write([]byte(meBody))
	}))
	defer srv.Close()

	c := newTestClient(srv)
	_, err := c.do(context.Background(), http.MethodGet, currentUserPath, "tok-123")
	require.NoError(t, err)
}

func TestDo_EmptyTokenSkipsRequest(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	c := newTestClient(srv)
	_, err := c.do(context.Background(), http.MethodGet, currentUserPath, "")
	require.ErrorIs(t, err, apperrors.ErrMissingToken)
	assert.False(t, called)
}

func TestDo_UnauthorizedMapsToInvalidToken(t *testing.T) {
	for _, code := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(code)
			w.Write([]byte(`{"detail":"Could not validate credentials"}`))
		}))

		c := newTestClient(srv)
		_, err := c.do(context.Background(), http.MethodGet, currentUserPath, "bad")
		srv.Close()

		require.Error(t, err)
		assert.ErrorIs(t, err, apperrors.ErrInvalidToken)
		assert.ErrorIs(t, err, apperrors.ErrAPIResponse)
		assert.Contains(t, err.Error(), "Could not validate credentials")
		assert.False(t, IsTransient(err))
	}
}

func TestDo_ServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("upstream down"))
	}))
	defer srv.Close()

	c := newTestClient(srv)
	_, err := c.do(context.Background(), http.MethodGet, currentUserPath, "tok")
	require.Error(t, err)
	assert.True(t, IsTransient(err))
	assert.Contains(t, err.Error(), "upstream down")
}

func TestDo_ClientErrorNotTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"detail":[{"msg":"not found"}]}`))
	}))
	defer srv.Close()

	c := newTestClient(srv)
	_, err := c.do(context.Background(), http.MethodGet, currentUserPath, "tok")
	require.ErrorIs(t, err, apperrors.ErrAPIResponse)
	assert.False(t, IsTransient(err))
	assert.NotErrorIs(t, err, apperrors.ErrInvalidToken)
	assert.Contains(t, err.Error(), "not found")
}

func TestDo_ServerDownIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	c := newTestClient(srv)
	srv.Close()

	_, err := c.do(context.Background(), http.MethodGet, currentUserPath, "tok")
	require.ErrorIs(t, err, apperrors.ErrAPIRequest)
	assert.True(t, IsTransient(err))
}

func TestDo_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := newTestClient(srv)
	_, err := c.do(ctx, http.MethodGet, currentUserPath, "tok")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDo_BodyCapped(t *testing.T) {
	big := make([]byte, maxAPIResponseBytes+4096)
	for i := range big {
		big[i] = 'a'
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(big)
	}))
	defer srv.Close()

	c := newTestClient(srv)
	body, err := c.do(context.Background(), http.MethodGet, currentUserPath, "tok")
	require.NoError(t, err)
	assert.Len(t, body, maxAPIResponseBytes)
}

func TestDo_EndpointAppendsToBaseURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/auth/me", r.URL.Path)
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/v1/", srv.Client())
	_, err := c.do(context.Background(), http.MethodGet, currentUserPath, "tok")
	require.NoError(t, err)
}

func TestNewClient_NilHTTPClient(t *testing.T) {
	c := NewClient("http://localhost:8000", nil)
	require.NotNil(t, c.httpClient)
	assert.Equal(t, httpClientTimeout, c.httpClient.Timeout)
	assert.NotNil(t, c.httpClient.CheckRedirect)
}

func TestNewClient_CustomHTTPClient(t *testing.T) {
	custom := &http.Client{Timeout: 5 * time.Second}
	c := NewClient("http://localhost:8000", custom)
	assert.Same(t, custom, c.httpClient)
}

func TestBearerClient_KeepsTimeoutAndRedirectPolicy(t *testing.T) {
	c := NewClient("http://localhost:8000", nil)
	bc := c.bearerClient("tok")
	assert.Equal(t, c.httpClient.Timeout, bc.Timeout)
	assert.NotNil(t, bc.CheckRedirect)
}

// --- redirects ---

func TestSameHostRedirectPolicy(t *testing.T) {
	orig, _ := http.NewRequest(http.MethodGet, "http://api.example.com/auth/me", nil)
	same, _ := http.NewRequest(http.MethodGet, "http://api.example.com/auth/me/", nil)
	other, _ := http.NewRequest(http.MethodGet, "http://evil.example.com/steal", nil)

	assert.NoError(t, sameHostRedirectPolicy(same, []*http.Request{orig}))
	assert.ErrorContains(t, sameHostRedirectPolicy(other, []*http.Request{orig}), "different host")

	via := make([]*http.Request, maxRedirects)
	for i := range via {
		via[i] = orig
	}
	assert.Error(t, sameHostRedirectPolicy(same, via))
}

func TestSanitizeResponseBody(t *testing.T) {
	assert.Equal(t, "a?b", sanitizeResponseBody([]byte("a\x1bb")))
	assert.Equal(t, "line\nnext", sanitizeResponseBody([]byte("line\nnext")))
	assert.Equal(t, "?", sanitizeResponseBody([]byte{0xff}))
	assert.Len(t, sanitizeResponseBody(make([]byte, 1000)), 256)
}

// --- GetCurrentUser ---

func TestGetCurrentUser_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(meBody))
	}))
	defer srv.Close()

	c := newTestClient(srv)
	u, err := c.GetCurrentUser(context.Background(), "tok")
	require.NoError(t, err)

	assert.Equal(t, "42", u.ID)
	assert.Equal(t, "octo@example.com", u.Email)
	assert.Equal(t, "octocat", u.Username)
	assert.Equal(t, "Octo Cat", u.FullName)
	assert.Equal(t, models.ProviderGitHub, u.Provider)
	assert.Equal(t, "583231", u.ProviderID)
	assert.True(t, u.IsActive)
	assert.True(t, u.IsVerified)
	assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), u.CreatedAt)
	assert.Equal(t, time.Date(2024, 3, 2, 11, 30, 0, 123456000, time.UTC), u.UpdatedAt)
	require.NotNil(t, u.LastLogin)
	assert.Equal(t, time.Date(2024, 3, 2, 11, 30, 0, 0, time.UTC), *u.LastLogin)
}

func TestGetCurrentUser_InvalidToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := newTestClient(srv)
	u, err := c.GetCurrentUser(context.Background(), "expired")
	assert.Nil(t, u)
	assert.ErrorIs(t, err, apperrors.ErrInvalidToken)
}

func TestGetCurrentUser_MalformedPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"email":"x@example.com","provider":"github"}`))
	}))
	defer srv.Close()

	c := newTestClient(srv)
	_, err := c.GetCurrentUser(context.Background(), "tok")
	assert.ErrorIs(t, err, apperrors.ErrMalformedUser)
}

// --- Logout ---

func TestLogout_Success(t *testing.T) {
	var gotMethod, gotPath, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"message":"Successfully logged out"}`))
	}))
	defer srv.Close()

	c := newTestClient(srv)
	require.NoError(t, c.Logout(context.Background(), "tok"))
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, logoutPath, gotPath)
	assert.Equal(t, "Bearer tok", gotAuth)
}

func TestLogout_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(srv)
	err := c.Logout(context.Background(), "tok")
	require.Error(t, err)
	assert.True(t, IsTransient(err))
}
