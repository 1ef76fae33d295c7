package internal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ctf-arena/internal/attachments"
	"ctf-arena/internal/ctf"
	"ctf-arena/internal/scoreboard"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusIsPublic(t *testing.T) {
	env := newTestEnv(t)

	w := env.do("GET", "/api/status", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, ctf.PhaseStopped, decode[ctf.Status](t, w).Phase)

	env.setRunning(true)
	w = env.do("GET", "/api/status", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	st := decode[ctf.Status](t, w)
	assert.True(t, st.Running)
	assert.Equal(t, ctf.PhaseRunning, st.Phase)
	require.NotNil(t, st.Countdown)
	assert.Equal(t, "Time Remaining", st.Countdown.Label)
}

func TestHealth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ok", Health(map[string]Checker{
		"store": CheckerFunc(func(context.Context) error { return nil }),
	}))
	r.GET("/bad", Health(map[string]Checker{
		"store": CheckerFunc(func(context.Context) error { return nil }),
		"redis": CheckerFunc(func(context.Context) error { return errors.New("connection refused") }),
	}))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/ok", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"store":{"status":"ok"}}`, w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/bad", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"store":{"status":"ok"},"redis":{"status":"error"}}`, w.Body.String())
}

func TestScoreboardEndpoint(t *testing.T) {
	env := newTestEnv(t)
	_, tok := env.user("p@example.com", ctf.RolePlayer)
	w := env.do("POST", "/api/teams", tok, map[string]string{"name": "Solo"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = env.do("GET", "/api/scoreboard", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	snap := decode[scoreboard.Snapshot](t, w)
	require.Len(t, snap.Entries, 1)
	assert.Equal(t, "Solo", snap.Entries[0].TeamName)
	assert.False(t, snap.UpdatedAt.IsZero())
}

func TestScoreboardWebsocket(t *testing.T) {
	env := newTestEnv(t)
	_, tok := env.user("p@example.com", ctf.RolePlayer)
	w := env.do("POST", "/api/teams", tok, map[string]string{"name": "Solo"})
	require.Equal(t, http.StatusCreated, w.Code)
	require.NoError(t, env.board.Refresh(context.Background(), "test"))

	srv := httptest.NewServer(env.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/scoreboard/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var first scoreboard.Snapshot
	require.NoError(t, conn.ReadJSON(&first))
	require.Len(t, first.Entries, 1)
	assert.Equal(t, 0, first.Entries[0].TotalScore)

	c := env.challenge("Warmup", "CTF{w}", 100, 1)
	env.setRunning(true)
	w = env.do("POST", "/api/challenges/"+c.ID+"/submit", tok, map[string]string{"flag": "CTF{w}"})
	require.Equal(t, http.StatusOK, w.Code)

	// no event loop runs in tests
	require.NoError(t, env.board.Refresh(context.Background(), "test"))

	var next scoreboard.Snapshot
	require.NoError(t, conn.ReadJSON(&next))
	require.Len(t, next.Entries, 1)
	assert.Equal(t, 100, next.Entries[0].TotalScore)
}

func TestRateLimiter(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(2, 3)
	rl.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow("1.2.3.4"), "burst %d", i)
	}
	assert.False(t, rl.Allow("1.2.3.4"))
	assert.True(t, rl.Allow("5.6.7.8"), "keys are independent")

	now = now.Add(time.Minute)
	assert.True(t, rl.Allow("1.2.3.4"))
	assert.True(t, rl.Allow("1.2.3.4"))
	assert.False(t, rl.Allow("1.2.3.4"), "refill is capped by rate")

	now = now.Add(time.Hour)
	assert.True(t, rl.Allow("1.2.3.4"))
	rl.Prune(30 * time.Minute)
	assert.Len(t, rl.visitors, 1)
	_, ok := rl.visitors["5.6.7.8"]
	assert.False(t, ok)
}

func TestRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/login", RateLimit(NewRateLimiter(1, 2)), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	codes := make([]int, 3)
	for i := range codes {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest("POST", "/login", nil))
		codes[i] = w.Code
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestHTTPError(t *testing.T) {
	tests := []struct {
		err    error
		status int
		msg    string
	}{
		{fmt.Errorf("challenge x: %w", ctf.ErrNotFound), http.StatusNotFound, "Not found"},
		{ctf.ErrInvalidFlag, http.StatusBadRequest, "Flag must be in format CTF{...}"},
		{fmt.Errorf("%w: title is required", ctf.ErrInvalidInput), http.StatusBadRequest, "title is required"},
		{fmt.Errorf("solve: %w", ctf.ErrDuplicateSolve), http.StatusConflict, "You have already solved this challenge!"},
		{ctf.ErrTeamFull, http.StatusConflict, "Team is full (max 5 members)"},
		{ctf.ErrTeamsLocked, http.StatusForbidden, "Teams cannot be changed while the competition is running"},
		{attachments.ErrInvalidPath, http.StatusBadRequest, "Invalid file path"},
		{errors.New("pq: connection reset by peer"), http.StatusInternalServerError, genericError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			status, msg := httpError(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.msg, msg)
		})
	}
}

func TestUnknownRoute(t *testing.T) {
	env := newTestEnv(t)
	w := env.do("GET", "/api/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not found", errorOf(t, w))
}
