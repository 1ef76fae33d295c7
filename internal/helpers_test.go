package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"ctf-arena/internal/attachments"
	"ctf-arena/internal/ctf"
	"ctf-arena/internal/realtime"
	"ctf-arena/internal/scoreboard"
	"ctf-arena/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

type captureMailer struct {
	mu    sync.Mutex
	links map[string]string
}

func (m *captureMailer) SendPasswordReset(_ context.Context, to, link string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.links == nil {
		m.links = map[string]string{}
	}
	m.links[to] = link
	return nil
}

func (m *captureMailer) link(to string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.links[to]
}

// countingStore records whether any store method was reached.
type countingStore struct {
	store.Store
	mu    sync.Mutex
	calls int
}

func (s *countingStore) touch() {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
}

func (s *countingStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *countingStore) GetConfig(ctx context.Context) (ctf.Config, error) {
	s.touch()
	return s.Store.GetConfig(ctx)
}

func (s *countingStore) GetChallenge(ctx context.Context, id string) (ctf.Challenge, error) {
	s.touch()
	return s.Store.GetChallenge(ctx, id)
}

func (s *countingStore) CreateSolve(ctx context.Context, sv *ctf.Solve) error {
	s.touch()
	return s.Store.CreateSolve(ctx, sv)
}

type testEnv struct {
	t      *testing.T
	store  *store.Memory
	hub    *realtime.Hub
	board  *scoreboard.Board
	mailer *captureMailer
	router *gin.Engine
}

func newTestEnv(t *testing.T) *testEnv {
	return newTestEnvWith(t, nil)
}

// newTestEnvWith builds a router over a fresh memory store. wrap, when set,
// replaces the store the handlers see.
func newTestEnvWith(t *testing.T, wrap func(store.Store) store.Store) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mem := store.NewMemory()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	files, err := attachments.NewDir(t.TempDir())
	require.NoError(t, err)

	var st store.Store = mem
	if wrap != nil {
		st = wrap(mem)
	}

	env := &testEnv{
		t:      t,
		store:  mem,
		hub:    realtime.NewHub(),
		board:  scoreboard.New(mem, time.Minute, logger),
		mailer: &captureMailer{},
	}
	env.router = Router(Deps{
		Store:     st,
		Board:     env.board,
		Publisher: env.hub,
		Files:     files,
		Mailer:    env.mailer,
		Logger:    logger,
		Auth: AuthConfig{
			Secret:   testSecret,
			TokenTTL: time.Hour,
		},
		ClientURL: "http://ctf.test",
		Checks: map[string]Checker{
			"store": CheckerFunc(mem.Ping),
		},
	})
	return env
}

// user creates an account directly in the store and returns it with a bearer token.
func (e *testEnv) user(email string, role ctf.Role) (ctf.User, string) {
	e.t.Helper()
	hash, err := HashPassword("password123")
	require.NoError(e.t, err)
	pid := store.NewPlayerID()
	u := &ctf.User{Email: email, Role: role, PlayerID: &pid}
	require.NoError(e.t, e.store.CreateUser(context.Background(), u, hash))

	tok, err := issueToken(AuthConfig{Secret: testSecret, TokenTTL: time.Hour}, u.ID, time.Now())
	require.NoError(e.t, err)
	return *u, tok
}

func (e *testEnv) challenge(title, flag string, points, difficulty int) ctf.Challenge {
	e.t.Helper()
	c := &ctf.Challenge{
		Title:      title,
		Category:   "web",
		Points:     points,
		Difficulty: difficulty,
		Flag:       flag,
		Enabled:    true,
	}
	require.NoError(e.t, e.store.CreateChallenge(context.Background(), c))
	return *c
}

func (e *testEnv) setRunning(running bool) {
	e.t.Helper()
	cfg := ctf.Config{Started: running}
	if running {
		start := time.Now().Add(-time.Hour)
		end := time.Now().Add(time.Hour)
		cfg.StartTime, cfg.EndTime = &start, &end
	}
	_, err := e.store.UpdateConfig(context.Background(), cfg)
	require.NoError(e.t, err)
}

func (e *testEnv) do(method, path, token string, body any) *httptest.ResponseRecorder {
	e.t.Helper()
	var r io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			r = strings.NewReader(b)
		default:
			data, err := json.Marshal(b)
			require.NoError(e.t, err)
			r = bytes.NewReader(data)
		}
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func errorOf(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[map[string]any](t, w)["error"].(string)
}
