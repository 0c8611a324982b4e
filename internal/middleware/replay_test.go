package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookserve/settlement/internal/auth"
	"github.com/bookserve/settlement/internal/repository"
)

type memoryReplayCache struct {
	entries map[string]*repository.ReplayCacheEntry
}

func newMemoryReplayCache() *memoryReplayCache {
	return &memoryReplayCache{entries: make(map[string]*repository.ReplayCacheEntry)}
}

func (c *memoryReplayCache) Get(_ context.Context, key string, userID uuid.UUID) (*repository.ReplayCacheEntry, error) {
	return c.entries[key+":"+userID.String()], nil
}

func (c *memoryReplayCache) Set(_ context.Context, entry *repository.ReplayCacheEntry) error {
	c.entries[entry.Key+":"+entry.UserID.String()] = entry
	return nil
}

func replayedRequest(method, key, body string, principal *auth.Principal) *http.Request {
	req := httptest.NewRequest(method, "/payment/initialize", strings.NewReader(body))
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	if principal != nil {
		req = req.WithContext(auth.ContextWithPrincipal(req.Context(), *principal))
	}
	return req
}

func TestReplay(t *testing.T) {
	principal := &auth.Principal{UserID: uuid.New(), Email: "guest@test.com"}

	var calls int
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"success":true,"data":{"reference":"BSV-` + uuid.NewString() + `"}}`))
	})
	cache := newMemoryReplayCache()
	wrapped := Replay(cache, time.Hour)(next)

	key := uuid.NewString()
	body := `{"amount":"50000"}`

	// First attempt runs the handler and caches its response.
	rr1 := httptest.NewRecorder()
	wrapped.ServeHTTP(rr1, replayedRequest(http.MethodPost, key, body, principal))
	assert.Equal(t, http.StatusCreated, rr1.Code)
	assert.Equal(t, 1, calls)
	assert.Empty(t, rr1.Header().Get("X-Idempotent-Replayed"))

	// Retry with the same key replays the stored response verbatim.
	rr2 := httptest.NewRecorder()
	wrapped.ServeHTTP(rr2, replayedRequest(http.MethodPost, key, body, principal))
	assert.Equal(t, http.StatusCreated, rr2.Code)
	assert.Equal(t, 1, calls, "handler must not run again")
	assert.Equal(t, "true", rr2.Header().Get("X-Idempotent-Replayed"))
	assert.Equal(t, rr1.Body.String(), rr2.Body.String())
}

func TestReplay_KeyReuseWithDifferentBody(t *testing.T) {
	principal := &auth.Principal{UserID: uuid.New()}
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	})
	wrapped := Replay(newMemoryReplayCache(), time.Hour)(next)

	key := uuid.NewString()

	rr := httptest.NewRecorder()
	wrapped.ServeHTTP(rr, replayedRequest(http.MethodPost, key, `{"amount":"100"}`, principal))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	wrapped.ServeHTTP(rr, replayedRequest(http.MethodPost, key, `{"amount":"999"}`, principal))
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestReplay_MissingKey(t *testing.T) {
	principal := &auth.Principal{UserID: uuid.New()}
	var calls int
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { calls++ })
	wrapped := Replay(newMemoryReplayCache(), time.Hour)(next)

	rr := httptest.NewRecorder()
	wrapped.ServeHTTP(rr, replayedRequest(http.MethodPost, "", `{}`, principal))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, 0, calls)
}

func TestReplay_MissingPrincipal(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	wrapped := Replay(newMemoryReplayCache(), time.Hour)(next)

	rr := httptest.NewRecorder()
	wrapped.ServeHTTP(rr, replayedRequest(http.MethodPost, uuid.NewString(), `{}`, nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestReplay_SkipsReadRequests(t *testing.T) {
	principal := &auth.Principal{UserID: uuid.New()}
	var calls int
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { calls++ })
	wrapped := Replay(newMemoryReplayCache(), time.Hour)(next)

	rr := httptest.NewRecorder()
	wrapped.ServeHTTP(rr, replayedRequest(http.MethodGet, "", "", principal))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 1, calls)
}

func TestReplay_ScopedPerUser(t *testing.T) {
	var calls int
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`{}`))
	})
	wrapped := Replay(newMemoryReplayCache(), time.Hour)(next)

	key := uuid.NewString()
	body := `{"amount":"100"}`

	rr := httptest.NewRecorder()
	wrapped.ServeHTTP(rr, replayedRequest(http.MethodPost, key, body, &auth.Principal{UserID: uuid.New()}))
	require.Equal(t, http.StatusOK, rr.Code)

	// A different user reusing the same key is a fresh request, not a replay.
	rr = httptest.NewRecorder()
	wrapped.ServeHTTP(rr, replayedRequest(http.MethodPost, key, body, &auth.Principal{UserID: uuid.New()}))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 2, calls)
}
