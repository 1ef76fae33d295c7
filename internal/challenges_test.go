package internal

import (
	"bytes"
	"context"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ctf-arena/internal/ctf"
	"ctf-arena/internal/realtime"
	"ctf-arena/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type listResponse struct {
	Challenges []challengeView `json:"challenges"`
	Groups     []categoryView  `json:"groups"`
	Categories []string        `json:"categories"`
	Running    bool            `json:"running"`
}

func TestListChallengesHidesFlags(t *testing.T) {
	env := newTestEnv(t)
	_, tok := env.user("p@example.com", ctf.RolePlayer)
	env.challenge("SQL basics", "CTF{sqli}", 300, 2)
	env.challenge("Warmup", "CTF{warm}", 100, 1)
	hidden := &ctf.Challenge{Title: "Hidden", Category: "misc", Points: 50, Difficulty: 1, Flag: "CTF{h}"}
	require.NoError(t, env.store.CreateChallenge(context.Background(), hidden))

	w := env.do("GET", "/api/challenges", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "CTF{")
	assert.NotContains(t, w.Body.String(), "Hidden")

	body := decode[listResponse](t, w)
	require.Len(t, body.Challenges, 2)
	assert.Equal(t, "Warmup", body.Challenges[0].Title, "ascending points")
	assert.Equal(t, []string{"web"}, body.Categories)
	require.Len(t, body.Groups, 1)
	assert.Len(t, body.Groups[0].Challenges, 2)
	assert.False(t, body.Running)

	w = env.do("GET", "/api/challenges/"+hidden.ID, tok, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListChallengesFilter(t *testing.T) {
	env := newTestEnv(t)
	_, tok := env.user("p@example.com", ctf.RolePlayer)
	env.challenge("SQL basics", "CTF{a}", 300, 2)
	env.challenge("Warmup", "CTF{b}", 100, 1)

	w := env.do("GET", "/api/challenges?search=sql&difficulty=2&category=all", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[listResponse](t, w)
	require.Len(t, body.Challenges, 1)
	assert.Equal(t, "SQL basics", body.Challenges[0].Title)

	w = env.do("GET", "/api/challenges?difficulty=9", tok, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSubmitMalformedFlagNeverTouchesStore(t *testing.T) {
	var counter *countingStore
	env := newTestEnvWith(t, func(s store.Store) store.Store {
		counter = &countingStore{Store: s}
		return counter
	})
	_, tok := env.user("p@example.com", ctf.RolePlayer)

	for _, flag := range []string{"flag{x}", "CTF{}", "ctf{x}", "CTF{x"} {
		w := env.do("POST", "/api/challenges/does-not-exist/submit", tok, map[string]string{"flag": flag})
		assert.Equal(t, http.StatusBadRequest, w.Code, flag)
		assert.Equal(t, "Flag must be in format CTF{...}", errorOf(t, w))
	}
	w := env.do("POST", "/api/challenges/does-not-exist/submit", tok, map[string]string{"flag": "   "})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.Zero(t, counter.count())
}

func TestSubmitFlagLifecycle(t *testing.T) {
	env := newTestEnv(t)
	_, tok := env.user("p@example.com", ctf.RolePlayer)
	c := env.challenge("Warmup", "CTF{hello_world}", 100, 1)
	events := env.hub.Subscribe()

	env.setRunning(false)
	w := env.do("POST", "/api/challenges/"+c.ID+"/submit", tok, map[string]string{"flag": "CTF{hello_world}"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	env.setRunning(true)

	w = env.do("POST", "/api/challenges/missing/submit", tok, map[string]string{"flag": "CTF{x}"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do("POST", "/api/challenges/"+c.ID+"/submit", tok, map[string]string{"flag": "CTF{Hello_World}"})
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[submitResponse](t, w)
	assert.Equal(t, ctf.OutcomeIncorrect, resp.Outcome)
	assert.NotContains(t, w.Body.String(), "hello_world")

	w = env.do("POST", "/api/challenges/"+c.ID+"/submit", tok, map[string]string{"flag": "  CTF{hello_world}\n"})
	require.Equal(t, http.StatusOK, w.Code)
	resp = decode[submitResponse](t, w)
	assert.Equal(t, ctf.OutcomeCorrect, resp.Outcome)
	assert.Equal(t, 100, resp.Points)

	select {
	case ev := <-events:
		assert.Equal(t, c.ID, ev.ChallengeID)
		assert.Equal(t, 100, ev.Points)
	case <-time.After(time.Second):
		t.Fatal("solve event not published")
	}

	w = env.do("POST", "/api/challenges/"+c.ID+"/submit", tok, map[string]string{"flag": "CTF{hello_world}"})
	require.Equal(t, http.StatusConflict, w.Code)
	resp = decode[submitResponse](t, w)
	assert.Equal(t, ctf.OutcomeAlreadySolved, resp.Outcome)
	assert.Equal(t, "You have already solved this challenge!", resp.Message)

	got, err := env.store.GetChallenge(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.SolveCount)

	w = env.do("GET", "/api/challenges/"+c.ID, tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[challengeView](t, w).Solved)
}

func TestSubmitDisabledChallenge(t *testing.T) {
	env := newTestEnv(t)
	_, tok := env.user("p@example.com", ctf.RolePlayer)
	c := env.challenge("Off", "CTF{off}", 10, 1)
	c.Enabled = false
	require.NoError(t, env.store.UpdateChallenge(context.Background(), c))
	env.setRunning(true)

	w := env.do("POST", "/api/challenges/"+c.ID+"/submit", tok, map[string]string{"flag": "CTF{off}"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func uploadFile(t *testing.T, env *testEnv, token, challengeID, filename, content string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = io.Copy(fw, strings.NewReader(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest("POST", "/api/admin/challenges/"+challengeID+"/file", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

func TestChallengeFileNameWithQuote(t *testing.T) {
	env := newTestEnv(t)
	_, admin := env.user("admin@example.com", ctf.RoleAdmin)
	_, player := env.user("p@example.com", ctf.RolePlayer)
	c := env.challenge("Quoted", "CTF{q}", 50, 1)

	rec := uploadFile(t, env, admin, c.ID, `notes"; x=y.txt`, "hi")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	w := env.do("GET", "/api/challenges/"+c.ID+"/file", player, nil)
	require.Equal(t, http.StatusOK, w.Code)
	disposition, params, err := mime.ParseMediaType(w.Header().Get("Content-Disposition"))
	require.NoError(t, err)
	assert.Equal(t, "attachment", disposition)
	assert.Equal(t, `notes"; x=y.txt`, params["filename"])
	assert.NotContains(t, params, "x")
}

func TestChallengeFileUploadAndDownload(t *testing.T) {
	env := newTestEnv(t)
	_, admin := env.user("admin@example.com", ctf.RoleAdmin)
	_, player := env.user("p@example.com", ctf.RolePlayer)
	c := env.challenge("Forensics", "CTF{pcap}", 200, 3)

	w := env.do("GET", "/api/challenges/"+c.ID+"/file", player, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	rec := uploadFile(t, env, admin, c.ID, "../capture.pcap", "packets")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, c.ID+"/capture.pcap", decode[map[string]any](t, rec)["file_path"])

	w = env.do("GET", "/api/challenges/"+c.ID+"/file", player, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "packets", w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Disposition"), "capture.pcap")
}

func TestSubmitPublishFailureStillSucceeds(t *testing.T) {
	env := newTestEnv(t)
	u, _ := env.user("p@example.com", ctf.RolePlayer)
	c := env.challenge("Warmup", "CTF{x}", 10, 1)
	env.setRunning(true)

	rec := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(rec)
	ctx.Request = httptest.NewRequest("POST", "/api/challenges/"+c.ID+"/submit", strings.NewReader(`{"flag":"CTF{x}"}`))
	ctx.Request.Header.Set("Content-Type", "application/json")
	ctx.Params = gin.Params{{Key: "id", Value: c.ID}}
	ctx.Set(sessionKey, &Session{User: u})

	SubmitFlag(env.store, failingPublisher{})(ctx)
	assert.Equal(t, http.StatusOK, rec.Code)

	ids, err := env.store.SolvedChallengeIDs(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{c.ID}, ids)
}

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, realtime.SolveEvent) error {
	return assert.AnError
}
