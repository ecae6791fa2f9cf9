package auth

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

type httpHarness struct {
	t   *testing.T
	env *env
	srv *httptest.Server
}

func newHTTPHarness(t *testing.T) *httpHarness {
	t.Helper()
	e := newEnv(t)
	mux := runtime.NewServeMux()
	require.NoError(t, NewController(e.uc, e.guard, nil).Register(mux))
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return &httpHarness{t: t, env: e, srv: srv}
}

func (h *httpHarness) do(method, path, token, body string) (int, map[string]any) {
	h.t.Helper()
	req, err := http.NewRequest(method, h.srv.URL+path, strings.NewReader(body))
	require.NoError(h.t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := h.srv.Client().Do(req)
	require.NoError(h.t, err)
	defer resp.Body.Close()

	out := map[string]any{}
	if resp.StatusCode != http.StatusNoContent {
		require.NoError(h.t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp.StatusCode, out
}

func TestHTTPRegisterLoginMeLogout(t *testing.T) {
	h := newHTTPHarness(t)

	code, body := h.do(http.MethodPost, "/api/auth/register", "",
		`{"username":"alice","email":"alice@example.com","password":"password1"}`)
	require.Equal(t, http.StatusCreated, code)
	assert.EqualValues(t, 1, body["user_id"])
	assert.NotEmpty(t, body["message"])

	code, body = h.do(http.MethodPost, "/api/auth/login", "",
		`{"email":"alice@example.com","password":"password1"}`)
	require.Equal(t, http.StatusOK, code)
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)
	assert.Equal(t, "alice", body["username"])

	code, body = h.do(http.MethodGet, "/api/auth/me", token, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "alice", body["username"])
	assert.Equal(t, "user", body["role"])

	code, body = h.do(http.MethodPost, "/api/auth/logout", token, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["success"])

	code, body = h.do(http.MethodPost, "/api/auth/logout", token, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, body["success"])

	code, _ = h.do(http.MethodGet, "/api/auth/me", token, "")
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestHTTPLoginFailuresLookAlike(t *testing.T) {
	h := newHTTPHarness(t)
	h.env.signup(t, "alice")

	c1, b1 := h.do(http.MethodPost, "/api/auth/login", "", `{"email":"alice@example.com","password":"wrong-pass"}`)
	c2, b2 := h.do(http.MethodPost, "/api/auth/login", "", `{"email":"ghost@example.com","password":"wrong-pass"}`)

	assert.Equal(t, http.StatusUnauthorized, c1)
	assert.Equal(t, c1, c2)
	assert.Equal(t, b1, b2)
}

func TestHTTPErrorStatuses(t *testing.T) {
	h := newHTTPHarness(t)
	aliceID, aliceTok := h.env.signup(t, "alice")
	bobID, _ := h.env.signup(t, "bob")

	cases := []struct {
		name         string
		method, path string
		token, body  string
		want         int
	}{
		{"duplicate email", http.MethodPost, "/api/auth/register", "",
			`{"username":"alice2","email":"alice@example.com","password":"password1"}`, http.StatusConflict},
		{"weak password", http.MethodPost, "/api/auth/register", "",
			`{"username":"carol","email":"carol@example.com","password":"short"}`, http.StatusBadRequest},
		{"email rejected by validator", http.MethodPost, "/api/auth/register", "",
			`{"username":"dave","email":"dave@","password":"password1"}`, http.StatusBadRequest},
		{"username over column width", http.MethodPost, "/api/auth/register", "",
			`{"username":"` + strings.Repeat("u", MaxUsernameLength+1) + `","email":"u@example.com","password":"password1"}`,
			http.StatusBadRequest},
		{"email over column width", http.MethodPost, "/api/auth/register", "",
			`{"username":"ellen","email":"` + strings.Repeat("e", MaxEmailLength) + `@example.com","password":"password1"}`,
			http.StatusBadRequest},
		{"malformed body", http.MethodPost, "/api/auth/register", "", `{"username":`, http.StatusBadRequest},
		{"missing fields", http.MethodPost, "/api/auth/login", "", `{}`, http.StatusBadRequest},
		{"no token", http.MethodGet, fmt.Sprintf("/api/users/%d", aliceID), "", "", http.StatusUnauthorized},
		{"other user", http.MethodGet, fmt.Sprintf("/api/users/%d", bobID), aliceTok, "", http.StatusForbidden},
		{"list as user", http.MethodGet, "/api/users", aliceTok, "", http.StatusForbidden},
		{"bad id", http.MethodGet, "/api/users/abc", aliceTok, "", http.StatusBadRequest},
		{"rename onto bob", http.MethodPut, fmt.Sprintf("/api/users/%d", aliceID), aliceTok,
			`{"username":"bob"}`, http.StatusConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			code, body := h.do(tc.method, tc.path, tc.token, tc.body)
			assert.Equal(t, tc.want, code)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestHTTPUpdateAndDeleteOwnAccount(t *testing.T) {
	h := newHTTPHarness(t)
	id, tok := h.env.signup(t, "alice")
	path := fmt.Sprintf("/api/users/%d", id)

	code, body := h.do(http.MethodPut, path, tok, `{"username":"alice-renamed"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "alice-renamed", body["username"])
	assert.Equal(t, "alice@example.com", body["email"])

	code, _ = h.do(http.MethodDelete, path, tok, "")
	require.Equal(t, http.StatusNoContent, code)

	code, _ = h.do(http.MethodGet, "/api/auth/me", tok, "")
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestHTTPInternalErrorIsOpaque(t *testing.T) {
	h := newHTTPHarness(t)
	h.env.users.failWith(errStorage)

	code, body := h.do(http.MethodPost, "/api/auth/login", "", `{"email":"alice@example.com","password":"password1"}`)
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "internal error", body["error"])
}

func TestHTTPInternalErrorCarriesTraceID(t *testing.T) {
	e := newEnv(t)
	mux := runtime.NewServeMux()
	require.NoError(t, NewController(e.uc, e.guard, nil).Register(mux))
	e.users.failWith(errStorage)

	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: trace.TraceID{0xc0, 0xff, 0xee}, SpanID: trace.SpanID{1}})
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"email":"a@example.com","password":"password1"}`))
	req = req.WithContext(trace.ContextWithSpanContext(req.Context(), sc))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "internal error", body.Error)
	assert.Equal(t, sc.TraceID().String(), body.TraceID)
}
