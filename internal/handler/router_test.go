package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/prn-tf/notebook-server/internal/auth"
	"github.com/prn-tf/notebook-server/internal/cache/memory"
	"github.com/prn-tf/notebook-server/internal/domain"
	"github.com/prn-tf/notebook-server/internal/metrics"
	"github.com/prn-tf/notebook-server/internal/ownership"
	"github.com/prn-tf/notebook-server/internal/repository/sqlite"
	"github.com/prn-tf/notebook-server/internal/service"
)

const legacySecret = "open-sesame"

type apiFixture struct {
	t       *testing.T
	server  *httptest.Server
	tokens  *auth.TokenService
	db      *sqlite.DB
	metrics *metrics.Metrics
}

type fixtureOptions struct {
	legacyPassword string
	visibility     ownership.Visibility
}

func newAPIFixture(t *testing.T, opts fixtureOptions) *apiFixture {
	t.Helper()
	ctx := context.Background()

	db, err := sqlite.NewDB(ctx, sqlite.DefaultConfig(sqlite.MemoryPath), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate(ctx))

	tokens, err := auth.NewTokenService(auth.TokenConfig{Secret: []byte("handler-test-secret"), TTL: time.Hour})
	require.NoError(t, err)

	cache := memory.NewCache()
	t.Cleanup(cache.Stop)

	m := metrics.NewMetrics()
	repos := db.Repositories()
	authConfig := auth.DefaultConfig()
	authConfig.LegacyPassword = opts.legacyPassword

	services := service.New(service.Dependencies{
		Repositories: repos,
		Hasher:       auth.NewBcryptHasher(bcrypt.MinCost),
		Tokens:       tokens,
		Auth:         authConfig,
		Visibility:   opts.visibility,
		Cache:        cache,
		Recorder:     m,
		Logger:       zerolog.Nop(),
	})

	router := NewRouter(RouterConfig{
		Services:      services,
		Authenticator: auth.NewAuthenticator(tokens, repos.User, authConfig, m, zerolog.Nop()),
		Health:        db,
		Metrics:       m,
		MaxBodySize:   1 << 20,
		Logger:        zerolog.Nop(),
	})

	server := httptest.NewServer(router.Handler())
	t.Cleanup(server.Close)

	return &apiFixture{t: t, server: server, tokens: tokens, db: db, metrics: m}
}

// do sends a request. credential is sent as a bearer value when non-empty.
func (f *apiFixture) do(method, path, credential string, body any) (*http.Response, []byte) {
	f.t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(f.t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, f.server.URL+path, reader)
	require.NoError(f.t, err)
	req.Header.Set("Content-Type", "application/json")
	if credential != "" {
		req.Header.Set(auth.AuthorizationHeader, "Bearer "+credential)
	}

	resp, err := f.server.Client().Do(req)
	require.NoError(f.t, err)
	defer resp.Body.Close()

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(f.t, err)
	return resp, buf.Bytes()
}

func (f *apiFixture) register(username string) TokenResponse {
	f.t.Helper()
	resp, body := f.do(http.MethodPost, "/auth/register", "", map[string]string{
		"username": username,
		"email":    username + "@x.com",
		"password": "password123",
	})
	require.Equal(f.t, http.StatusCreated, resp.StatusCode, string(body))

	var out TokenResponse
	require.NoError(f.t, json.Unmarshal(body, &out))
	return out
}

func decode[T any](t *testing.T, body []byte) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(body, &out), string(body))
	return out
}

func TestAliceScenario(t *testing.T) {
	f := newAPIFixture(t, fixtureOptions{legacyPassword: legacySecret})

	registered := f.register("alice")
	assert.NotEmpty(t, registered.AccessToken)
	assert.Equal(t, "bearer", registered.TokenType)
	assert.Equal(t, "alice", registered.User.Username)

	resp, body := f.do(http.MethodPost, "/auth/login", "", map[string]string{"username": "alice", "password": "password123"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	login := decode[TokenResponse](t, body)

	claims, err := f.tokens.Verify(login.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, registered.User.ID, claims.UserID)

	resp, body = f.do(http.MethodGet, "/auth/me", login.AccessToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	me := decode[map[string]any](t, body)
	assert.Equal(t, "alice", me["username"])
	assert.NotContains(t, me, "password_hash")
	assert.NotContains(t, string(body), "password123")

	resp, _ = f.do(http.MethodGet, "/notebooks", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, auth.BearerScheme, resp.Header.Get(auth.WWWAuthenticateHeader))

	resp, _ = f.do(http.MethodGet, "/notebooks", legacySecret, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestLoginFailuresLookAlike(t *testing.T) {
	f := newAPIFixture(t, fixtureOptions{})
	f.register("alice")

	wrong, wrongBody := f.do(http.MethodPost, "/auth/login", "", map[string]string{"username": "alice", "password": "nope-nope"})
	unknown, unknownBody := f.do(http.MethodPost, "/auth/login", "", map[string]string{"username": "mallory", "password": "nope-nope"})

	assert.Equal(t, http.StatusUnauthorized, wrong.StatusCode)
	assert.Equal(t, http.StatusUnauthorized, unknown.StatusCode)
	assert.JSONEq(t, string(wrongBody), string(unknownBody))
}

func TestRegisterValidation(t *testing.T) {
	f := newAPIFixture(t, fixtureOptions{})
	f.register("alice")

	tests := []struct {
		name string
		body map[string]string
	}{
		{"duplicate username", map[string]string{"username": "ALICE", "email": "a2@x.com", "password": "password123"}},
		{"duplicate email", map[string]string{"username": "alice2", "email": "alice@x.com", "password": "password123"}},
		{"short password", map[string]string{"username": "bob", "email": "bob@x.com", "password": "short"}},
		{"bad username", map[string]string{"username": "b o b", "email": "bob@x.com", "password": "password123"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := f.do(http.MethodPost, "/auth/register", "", tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, CodeValidation, decode[ErrorResponse](t, body).Error)
		})
	}

	resp, _ := f.do(http.MethodPost, "/auth/register", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestProfileAndPassword(t *testing.T) {
	f := newAPIFixture(t, fixtureOptions{})
	alice := f.register("alice")
	f.register("bob")

	resp, body := f.do(http.MethodPut, "/auth/me", alice.AccessToken, map[string]string{"full_name": "Alice L"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Equal(t, "Alice L", decode[map[string]any](t, body)["full_name"])

	resp, _ = f.do(http.MethodPut, "/auth/me", alice.AccessToken, map[string]string{"email": "bob@x.com"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = f.do(http.MethodPut, "/auth/me", alice.AccessToken, map[string]string{
		"full_name": strings.Repeat("n", domain.FullNameMaxLength+1),
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = f.do(http.MethodPost, "/auth/change-password", alice.AccessToken, map[string]string{
		"current_password": "wrong-one", "new_password": "password456",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = f.do(http.MethodPost, "/auth/change-password", alice.AccessToken, map[string]string{
		"current_password": "password123", "new_password": "password456",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = f.do(http.MethodPost, "/auth/login", "", map[string]string{"username": "alice@x.com", "password": "password456"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Without an identity these endpoints are refused.
	resp, _ = f.do(http.MethodGet, "/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp, _ = f.do(http.MethodPost, "/auth/change-password", "", map[string]string{})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestStatusEndpoint(t *testing.T) {
	f := newAPIFixture(t, fixtureOptions{legacyPassword: legacySecret})

	resp, body := f.do(http.MethodGet, "/auth/status", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	st := decode[StatusResponse](t, body)
	assert.Equal(t, service.ModeSingleUser, st.Mode)
	assert.True(t, st.AuthRequired)
	assert.True(t, st.LegacyPasswordEnabled)
	assert.False(t, st.MultiuserEnabled)

	f.register("alice")

	_, body = f.do(http.MethodGet, "/auth/status", "", nil)
	st = decode[StatusResponse](t, body)
	assert.Equal(t, service.ModeMultiuser, st.Mode)
	assert.True(t, st.MultiuserEnabled)
}

func TestStatusEndpoint_OptionalCredentials(t *testing.T) {
	f := newAPIFixture(t, fixtureOptions{})
	f.register("alice")

	resp, body := f.do(http.MethodGet, "/auth/status", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	st := decode[StatusResponse](t, body)
	assert.Equal(t, service.ModeMultiuser, st.Mode)
	assert.False(t, st.AuthRequired)
	assert.Equal(t, "Authentication is optional", st.Message)

	// The status must agree with what the middleware enforces.
	resp, _ = f.do(http.MethodGet, "/notebooks", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestTokenRejections(t *testing.T) {
	f := newAPIFixture(t, fixtureOptions{})
	alice := f.register("alice")

	resp, _ := f.do(http.MethodGet, "/notebooks", "not.a.token", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// An inactive account is refused even with a valid token.
	_, err := f.db.ExecContext(context.Background(), `UPDATE users SET is_active = 0 WHERE id = ?`, alice.User.ID)
	require.NoError(t, err)
	resp, _ = f.do(http.MethodGet, "/notebooks", alice.AccessToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// Without a legacy secret, no header means legacy single-user mode.
	resp, _ = f.do(http.MethodGet, "/notebooks", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestNotebookOwnership(t *testing.T) {
	f := newAPIFixture(t, fixtureOptions{legacyPassword: legacySecret})
	alice := f.register("alice").AccessToken
	bob := f.register("bob").AccessToken

	resp, body := f.do(http.MethodPost, "/notebooks", alice, map[string]string{"name": "A"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	a := decode[domain.Notebook](t, body)

	resp, body = f.do(http.MethodPost, "/notebooks", bob, map[string]string{"name": "B"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	b := decode[domain.Notebook](t, body)

	_, body = f.do(http.MethodGet, "/notebooks", alice, nil)
	list := decode[[]domain.Notebook](t, body)
	require.Len(t, list, 1)
	assert.Equal(t, a.ID, list[0].ID)

	_, body = f.do(http.MethodGet, "/notebooks", legacySecret, nil)
	assert.Len(t, decode[[]domain.Notebook](t, body), 2)

	resp, _ = f.do(http.MethodGet, "/notebooks/"+b.ID, alice, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = f.do(http.MethodDelete, "/notebooks/"+b.ID, alice, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = f.do(http.MethodGet, "/notebooks/"+b.ID, bob, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = f.do(http.MethodPut, "/notebooks/"+a.ID, alice, map[string]any{"archived": true})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, decode[domain.Notebook](t, body).Archived)

	_, body = f.do(http.MethodGet, "/notebooks?archived=false", alice, nil)
	assert.Empty(t, decode[[]domain.Notebook](t, body))

	resp, _ = f.do(http.MethodGet, "/notebooks?order_by=owner", alice, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = f.do(http.MethodDelete, "/notebooks/"+a.ID, alice, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestNotebookListOrder(t *testing.T) {
	f := newAPIFixture(t, fixtureOptions{})
	alice := f.register("alice").AccessToken

	_, body := f.do(http.MethodPost, "/notebooks", alice, map[string]string{"name": "older"})
	older := decode[domain.Notebook](t, body)
	_, body = f.do(http.MethodPost, "/notebooks", alice, map[string]string{"name": "newer"})
	newer := decode[domain.Notebook](t, body)

	_, err := f.db.ExecContext(context.Background(),
		`UPDATE notebooks SET updated_at = '2020-01-01T00:00:00Z' WHERE id = ?`, older.ID)
	require.NoError(t, err)

	ids := func(path string) []string {
		resp, body := f.do(http.MethodGet, path, alice, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
		var out []string
		for _, nb := range decode[[]domain.Notebook](t, body) {
			out = append(out, nb.ID)
		}
		return out
	}

	assert.Equal(t, []string{newer.ID, older.ID}, ids("/notebooks"))
	assert.Equal(t, []string{older.ID, newer.ID}, ids("/notebooks?order_by=updated+asc"))
	assert.Equal(t, []string{older.ID, newer.ID}, ids("/notebooks?desc=false"))
	assert.Equal(t, []string{older.ID, newer.ID}, ids("/notebooks?order_by=name&desc=true"))
	assert.Equal(t, []string{newer.ID, older.ID}, ids("/notebooks?order_by=name"))
}

func TestSourcesAndNotes(t *testing.T) {
	f := newAPIFixture(t, fixtureOptions{})
	alice := f.register("alice").AccessToken
	bob := f.register("bob").AccessToken

	_, body := f.do(http.MethodPost, "/notebooks", alice, map[string]string{"name": "A"})
	nb := decode[domain.Notebook](t, body)

	resp, body := f.do(http.MethodPost, "/sources", alice, map[string]string{"notebook_id": nb.ID, "title": "paper"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	src := decode[domain.Source](t, body)

	resp, _ = f.do(http.MethodPost, "/sources", bob, map[string]string{"notebook_id": nb.ID, "title": "sneaky"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body = f.do(http.MethodPost, "/notes", alice, map[string]string{"notebook_id": nb.ID, "title": "n", "note_type": "ai"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	note := decode[domain.Note](t, body)
	assert.Equal(t, domain.NoteTypeAI, note.NoteType)

	_, body = f.do(http.MethodGet, "/sources?notebook_id="+nb.ID, alice, nil)
	assert.Len(t, decode[[]domain.Source](t, body), 1)

	_, body = f.do(http.MethodGet, "/notes", bob, nil)
	assert.Empty(t, decode[[]domain.Note](t, body))

	resp, _ = f.do(http.MethodPut, "/notes/"+note.ID, bob, map[string]string{"title": "mine"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = f.do(http.MethodDelete, "/sources/"+src.ID, alice, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	// Deleting the notebook takes the note with it.
	resp, _ = f.do(http.MethodDelete, "/notebooks/"+nb.ID, alice, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = f.do(http.MethodGet, "/notes/"+note.ID, alice, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestNotebookSourceLinks(t *testing.T) {
	f := newAPIFixture(t, fixtureOptions{})
	alice := f.register("alice").AccessToken
	bob := f.register("bob").AccessToken

	_, body := f.do(http.MethodPost, "/notebooks", alice, map[string]string{"name": "home"})
	home := decode[domain.Notebook](t, body)
	_, body = f.do(http.MethodPost, "/notebooks", alice, map[string]string{"name": "other"})
	other := decode[domain.Notebook](t, body)
	_, body = f.do(http.MethodPost, "/notebooks", bob, map[string]string{"name": "theirs"})
	theirs := decode[domain.Notebook](t, body)

	_, body = f.do(http.MethodPost, "/sources", alice, map[string]string{"notebook_id": home.ID, "title": "paper"})
	src := decode[domain.Source](t, body)
	f.do(http.MethodPost, "/notes", alice, map[string]string{"notebook_id": other.ID, "title": "n"})

	link := "/notebooks/" + other.ID + "/sources/" + src.ID
	resp, body := f.do(http.MethodPost, link, alice, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	resp, _ = f.do(http.MethodPost, link, alice, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	_, body = f.do(http.MethodGet, "/sources?notebook_id="+other.ID, alice, nil)
	listed := decode[[]domain.Source](t, body)
	require.Len(t, listed, 1)
	assert.Equal(t, src.ID, listed[0].ID)

	_, body = f.do(http.MethodGet, "/notebooks/"+other.ID, alice, nil)
	got := decode[map[string]any](t, body)
	assert.EqualValues(t, 1, got["source_count"])
	assert.EqualValues(t, 1, got["note_count"])

	_, body = f.do(http.MethodGet, "/notebooks?order_by=name", alice, nil)
	all := decode[[]domain.Notebook](t, body)
	require.Len(t, all, 2)
	assert.Equal(t, int64(1), all[0].SourceCount)
	assert.Equal(t, int64(1), all[1].SourceCount)

	resp, _ = f.do(http.MethodPost, "/notebooks/"+theirs.ID+"/sources/"+src.ID, alice, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp, _ = f.do(http.MethodPost, "/notebooks/"+theirs.ID+"/sources/"+src.ID, bob, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp, _ = f.do(http.MethodPost, "/notebooks/"+other.ID+"/sources/missing", alice, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = f.do(http.MethodPost, "/notebooks/missing/sources/"+src.ID, alice, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = f.do(http.MethodDelete, "/notebooks/"+home.ID+"/sources/"+src.ID, alice, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp, _ = f.do(http.MethodDelete, link, bob, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = f.do(http.MethodDelete, link, alice, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	_, body = f.do(http.MethodGet, "/sources?notebook_id="+other.ID, alice, nil)
	assert.Empty(t, decode[[]domain.Source](t, body))
	_, body = f.do(http.MethodGet, "/notebooks/"+other.ID, alice, nil)
	assert.Zero(t, decode[domain.Notebook](t, body).SourceCount)
}

func TestHealthAndMetrics(t *testing.T) {
	f := newAPIFixture(t, fixtureOptions{legacyPassword: legacySecret})

	resp, body := f.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"healthy"}`, string(body))
	assert.NotEmpty(t, resp.Header.Get(RequestIDHeader))

	f.do(http.MethodGet, "/notebooks", "", nil)

	resp, body = f.do(http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `notebook_auth_rejected_total{reason="missing_credential"} 1`)
}

type failingHealth struct{}

func (failingHealth) Health(context.Context) error { return errors.New("database is gone") }

func TestHealthUnavailable(t *testing.T) {
	f := newAPIFixture(t, fixtureOptions{})
	router := NewRouter(RouterConfig{
		Services:      &service.Services{},
		Authenticator: auth.NewAuthenticator(f.tokens, nil, auth.DefaultConfig(), nil, zerolog.Nop()),
		Health:        failingHealth{},
		Logger:        zerolog.Nop(),
	})

	rec := httptest.NewRecorder()
	router.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestWriteErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{service.ErrNotAuthenticated, http.StatusUnauthorized},
		{service.ErrInvalidCredentials, http.StatusUnauthorized},
		{service.ErrCurrentPasswordInvalid, http.StatusUnauthorized},
		{domain.ErrInvalidPassword, http.StatusBadRequest},
		{domain.NewDomainError(domain.ErrAccessDenied, "owned by another user", "note:1"), http.StatusForbidden},
		{domain.ErrNoteNotFound, http.StatusNotFound},
		{service.ErrInternalError, http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeError(rec, httptest.NewRequest(http.MethodGet, "/", nil), tt.err)
			assert.Equal(t, tt.want, rec.Code)

			body := decode[ErrorResponse](t, rec.Body.Bytes())
			if tt.want == http.StatusInternalServerError {
				assert.Equal(t, "internal server error", body.Message)
			}
		})
	}
}
