package middleware_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mw "github.com/timothy-han/mara/internal/api/middleware"
	"github.com/timothy-han/mara/internal/auth"
	"github.com/timothy-han/mara/pkg/models"
)

// --- mock cache for rate limiting ---

type mockCache struct {
	counter int64
	err     error
}

func (m *mockCache) Set(_ context.Context, _ string, _ []byte, _ time.Duration) error { return nil }
func (m *mockCache) Get(_ context.Context, _ string) ([]byte, bool, error)            { return nil, false, nil }
func (m *mockCache) Delete(_ context.Context, _ string) error                         { return nil }
func (m *mockCache) Ping(_ context.Context) error                                     { return nil }
func (m *mockCache) SetRunStatus(_ context.Context, _ uuid.UUID, _ string, _ time.Duration) error {
	return nil
}
func (m *mockCache) GetRunStatus(_ context.Context, _ uuid.UUID) (string, bool, error) {
	return "", false, nil
}
func (m *mockCache) IncrWithExpiry(_ context.Context, _ string, _ time.Duration) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	m.counter++
	return m.counter, nil
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var env struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env.Error.Code
}

// --- Authenticate ---

func TestAuthenticate_MissingHeader(t *testing.T) {
	a := mw.NewAuth(auth.NewIssuer("secret", time.Hour))
	rec := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	a.Authenticate(okHandler()).ServeHTTP(rec, r)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "INVALID_TOKEN", errorCode(t, rec))
}

func TestAuthenticate_MalformedHeader(t *testing.T) {
	a := mw.NewAuth(auth.NewIssuer("secret", time.Hour))

	for _, header := range []string{"Bearer", "Basic abc", "token-without-scheme"} {
		rec := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", header)

		a.Authenticate(okHandler()).ServeHTTP(rec, r)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "header %q", header)
	}
}

func TestAuthenticate_InvalidToken(t *testing.T) {
	a := mw.NewAuth(auth.NewIssuer("secret", time.Hour))
	rec := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer not-a-real-token")

	a.Authenticate(okHandler()).ServeHTTP(rec, r)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthenticate_ValidTokenSetsUser(t *testing.T) {
	issuer := auth.NewIssuer("secret", time.Hour)
	token, err := issuer.Issue(&models.User{ID: 42, Email: "a@example.com", Name: "A"})
	require.NoError(t, err)

	var gotUser *models.User
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, _ = mw.GetUser(r)
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+token)

	mw.NewAuth(issuer).Authenticate(next).ServeHTTP(rec, r)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, gotUser)
	assert.Equal(t, int64(42), gotUser.ID)
}

// --- InternalSecret ---

func TestInternalSecret_Valid(t *testing.T) {
	rec := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/", nil)
	r.Header.Set("X-Internal-Secret", "shared")

	mw.InternalSecret("shared")(okHandler()).ServeHTTP(rec, r)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestInternalSecret_MissingOrWrong(t *testing.T) {
	for _, secret := range []string{"", "wrong"} {
		rec := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/", nil)
		if secret != "" {
			r.Header.Set("X-Internal-Secret", secret)
		}

		mw.InternalSecret("shared")(okHandler()).ServeHTTP(rec, r)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "INVALID_SECRET", errorCode(t, rec))
	}
}

// --- RateLimit ---

func authedRequest(user *models.User) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/", nil)
	return r.WithContext(mw.SetUser(r.Context(), user))
}

func TestRateLimit_AllowsWithinBudget(t *testing.T) {
	rl := mw.NewRateLimit(&mockCache{})
	handler := rl.Limit("chat", 2, time.Minute)(okHandler())
	user := &models.User{ID: 1}

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, authedRequest(user))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestRateLimit_BlocksOverBudget(t *testing.T) {
	rl := mw.NewRateLimit(&mockCache{})
	handler := rl.Limit("chat", 1, time.Minute)(okHandler())
	user := &models.User{ID: 1}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(user))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(user))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", errorCode(t, rec))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestRateLimit_SetsHeaders(t *testing.T) {
	rl := mw.NewRateLimit(&mockCache{})
	handler := rl.Limit("followup", 15, time.Hour)(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(&models.User{ID: 1}))

	assert.Equal(t, "15", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "14", rec.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, rec.Header().Get("X-RateLimit-Reset"))
}

func TestRateLimit_FailsOpenOnCacheError(t *testing.T) {
	rl := mw.NewRateLimit(&mockCache{err: context.DeadlineExceeded})
	handler := rl.Limit("chat", 1, time.Minute)(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(&models.User{ID: 1}))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimit_NoUserPassesThrough(t *testing.T) {
	rl := mw.NewRateLimit(&mockCache{})
	handler := rl.Limit("chat", 1, time.Minute)(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

// --- Recovery ---

func TestRecovery_ConvertsPanicTo500(t *testing.T) {
	panicky := http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		panic("boom")
	})

	rec := httptest.NewRecorder()
	mw.Recovery(panicky).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "INTERNAL_ERROR", errorCode(t, rec))
}
