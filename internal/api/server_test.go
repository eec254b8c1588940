package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halcyon0/halcyon/internal/chat"
	"github.com/halcyon0/halcyon/internal/companion"
	"github.com/halcyon0/halcyon/internal/knowledge"
	"github.com/halcyon0/halcyon/internal/log"
)

// fakeEngine implements Responder via a configurable function.
type fakeEngine struct {
	fn    func(req chat.Request) (*chat.Result, error)
	calls int
}

func (f *fakeEngine) Respond(_ context.Context, req chat.Request) (*chat.Result, error) {
	f.calls++
	if f.fn != nil {
		return f.fn(req)
	}
	return &chat.Result{Text: "Hello.", Persisted: true}, nil
}

// fakeStore implements CompanionStore in memory.
type fakeStore struct {
	companions map[uuid.UUID]*companion.Companion
}

func newFakeStore() *fakeStore {
	return &fakeStore{companions: make(map[uuid.UUID]*companion.Companion)}
}

func (f *fakeStore) Create(_ context.Context, c *companion.Companion) error {
	c.ID = uuid.New()
	f.companions[c.ID] = c
	return nil
}

func (f *fakeStore) Get(_ context.Context, id uuid.UUID) (*companion.Companion, error) {
	c, ok := f.companions[id]
	if !ok {
		return nil, companion.ErrNotFound
	}
	return c, nil
}

func (f *fakeStore) Update(_ context.Context, c *companion.Companion, ownerID string) error {
	existing, ok := f.companions[c.ID]
	if !ok || existing.UserID != ownerID {
		return companion.ErrNotFound
	}
	c.UserID = ownerID
	f.companions[c.ID] = c
	return nil
}

func (f *fakeStore) Delete(_ context.Context, id uuid.UUID, ownerID string) error {
	existing, ok := f.companions[id]
	if !ok || existing.UserID != ownerID {
		return companion.ErrNotFound
	}
	delete(f.companions, id)
	return nil
}

type fakeIndexer struct {
	documentIDs []string
	contents    []string
}

func (f *fakeIndexer) Index(_ context.Context, _ uuid.UUID, documentID, content string) error {
	f.documentIDs = append(f.documentIDs, documentID)
	f.contents = append(f.contents, content)
	return nil
}

func newTestServer(t *testing.T, engine *fakeEngine, store *fakeStore, indexer *fakeIndexer) *Server {
	t.Helper()
	srv, err := NewServer(ServerConfig{
		Logger:     log.NewNop(),
		Engine:     engine,
		Companions: store,
		Indexer:    indexer,
	})
	require.NoError(t, err)
	return srv
}

func doChat(srv *Server, companionID, userID, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat/"+companionID, strings.NewReader(body))
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
		req.Header.Set("X-User-Name", "Ada")
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestChat_Success(t *testing.T) {
	engine := &fakeEngine{}
	srv := newTestServer(t, engine, newFakeStore(), nil)

	rec := doChat(srv, uuid.NewString(), "user-1", `{"prompt":"hi"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Hello.", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestChat_IdentityForwarded(t *testing.T) {
	var got chat.Request
	engine := &fakeEngine{fn: func(req chat.Request) (*chat.Result, error) {
		got = req
		return &chat.Result{Text: "ok"}, nil
	}}
	srv := newTestServer(t, engine, newFakeStore(), nil)

	companionID := uuid.New()
	doChat(srv, companionID.String(), "user-1", `{"prompt":"hi"}`)

	assert.Equal(t, companionID, got.CompanionID)
	assert.Equal(t, "user-1", got.UserID)
	assert.Equal(t, "Ada", got.UserName)
	assert.Equal(t, "/api/v1/chat/"+companionID.String()+":user-1", got.RateKey)
}

func TestChat_StatusMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"unauthorized", chat.ErrUnauthorized, http.StatusUnauthorized},
		{"rate limited", chat.ErrRateLimited, http.StatusTooManyRequests},
		{"not found", chat.ErrNotFound, http.StatusNotFound},
		{"generation failure", errors.New("model exploded"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := &fakeEngine{fn: func(chat.Request) (*chat.Result, error) {
				return nil, tt.err
			}}
			srv := newTestServer(t, engine, newFakeStore(), nil)

			rec := doChat(srv, uuid.NewString(), "user-1", `{"prompt":"hi"}`)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestChat_InvalidCompanionID(t *testing.T) {
	engine := &fakeEngine{}
	srv := newTestServer(t, engine, newFakeStore(), nil)

	rec := doChat(srv, "not-a-uuid", "user-1", `{"prompt":"hi"}`)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Zero(t, engine.calls, "invalid id must not reach the engine")
}

func TestChat_EmptyPrompt(t *testing.T) {
	engine := &fakeEngine{}
	srv := newTestServer(t, engine, newFakeStore(), nil)

	rec := doChat(srv, uuid.NewString(), "user-1", `{}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, engine.calls)
}

func TestCompanion_CreateRequiresIdentity(t *testing.T) {
	srv := newTestServer(t, &fakeEngine{}, newFakeStore(), nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/companions",
		strings.NewReader(`{"name":"Willow","instructions":"be kind"}`))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCompanion_CreateIndexesBackstory(t *testing.T) {
	store := newFakeStore()
	indexer := &fakeIndexer{}
	srv := newTestServer(t, &fakeEngine{}, store, indexer)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/companions",
		strings.NewReader(`{"name":"Willow","instructions":"be kind","seed":"User: hi\n\nWillow: hello","backstory":"Willow grew up by the sea."}`))
	req.Header.Set("X-User-ID", "owner-1")
	req.Header.Set("X-User-Name", "Ada")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, store.companions, 1)
	require.Len(t, indexer.contents, 1)
	assert.Equal(t, "Willow grew up by the sea.", indexer.contents[0])

	for id := range store.companions {
		assert.Equal(t, knowledge.DocumentID(id), indexer.documentIDs[0])
	}
	assert.NotContains(t, rec.Body.String(), "backstory")
}

func TestCompanion_GetUnknown(t *testing.T) {
	srv := newTestServer(t, &fakeEngine{}, newFakeStore(), nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/companions/"+uuid.NewString(), nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCompanion_UpdateOwnerOnly(t *testing.T) {
	store := newFakeStore()
	c := &companion.Companion{UserID: "owner-1", Name: "Willow", Instructions: "be kind"}
	require.NoError(t, store.Create(context.Background(), c))

	srv := newTestServer(t, &fakeEngine{}, store, nil)

	req := httptest.NewRequest(http.MethodPatch, "/api/v1/companions/"+c.ID.String(),
		strings.NewReader(`{"name":"Willow","instructions":"be mean"}`))
	req.Header.Set("X-User-ID", "intruder")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code, "non-owner update must look like a miss")
}

func TestCompanion_Delete(t *testing.T) {
	store := newFakeStore()
	c := &companion.Companion{UserID: "owner-1", Name: "Willow", Instructions: "be kind"}
	require.NoError(t, store.Create(context.Background(), c))

	srv := newTestServer(t, &fakeEngine{}, store, nil)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/companions/"+c.ID.String(), nil)
	req.Header.Set("X-User-ID", "owner-1")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, store.companions)
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, &fakeEngine{}, newFakeStore(), nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRecovery(t *testing.T) {
	engine := &fakeEngine{fn: func(chat.Request) (*chat.Result, error) {
		panic("boom")
	}}
	srv := newTestServer(t, engine, newFakeStore(), nil)

	rec := doChat(srv, uuid.NewString(), "user-1", `{"prompt":"hi"}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
