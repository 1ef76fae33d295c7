package internal

import (
	"errors"
	"io/fs"
	"mime"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"ctf-arena/internal/attachments"
	"ctf-arena/internal/ctf"
	"ctf-arena/internal/metrics"
	"ctf-arena/internal/realtime"
	"ctf-arena/internal/store"

	"github.com/gin-gonic/gin"
)

func solvedSet(ids []string) map[string]bool {
	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out
}

func filterFromQuery(c *gin.Context) (ctf.Filter, error) {
	f := ctf.Filter{Search: strings.TrimSpace(c.Query("search"))}
	if cat := c.Query("category"); cat != "" && cat != "all" {
		f.Category = cat
	}
	if d := c.Query("difficulty"); d != "" && d != "all" {
		n, err := strconv.Atoi(d)
		if err != nil || n < 1 || n > 5 {
			return f, errors.New("difficulty must be 1-5")
		}
		f.Difficulty = n
	}
	return f, nil
}

// GET /api/challenges?search=&category=&difficulty=
func ListChallenges(st store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		f, err := filterFromQuery(c)
		if err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}
		ctx := c.Request.Context()

		all, err := st.ListChallenges(ctx, true)
		if err != nil {
			respondError(c, err)
			return
		}
		ids, err := st.SolvedChallengeIDs(ctx, uid(c))
		if err != nil {
			respondError(c, err)
			return
		}
		cfg, err := st.GetConfig(ctx)
		if err != nil {
			respondError(c, err)
			return
		}
		solved := solvedSet(ids)

		filtered := ctf.FilterChallenges(all, f)
		list := make([]challengeView, 0, len(filtered))
		for _, ch := range filtered {
			list = append(list, newChallengeView(ch, solved))
		}
		groups := []categoryView{}
		for _, g := range ctf.GroupByCategory(filtered) {
			gv := categoryView{Category: g.Category}
			for _, ch := range g.Challenges {
				gv.Challenges = append(gv.Challenges, newChallengeView(ch, solved))
			}
			groups = append(groups, gv)
		}

		c.JSON(http.StatusOK, gin.H{
			"challenges": list,
			"groups":     groups,
			"categories": ctf.Categories(all),
			"solved":     ids,
			"running":    ctf.IsRunning(cfg, time.Now()),
		})
	}
}

// enabledChallenge loads a challenge players may see. Disabled ones are reported as missing.
func enabledChallenge(c *gin.Context, st store.Store) (ctf.Challenge, bool) {
	ch, err := st.GetChallenge(c.Request.Context(), c.Param("id"))
	if err == nil && !ch.Enabled {
		err = ctf.ErrNotFound
	}
	if err != nil {
		respondError(c, err)
		return ctf.Challenge{}, false
	}
	return ch, true
}

func GetChallenge(st store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		ch, ok := enabledChallenge(c, st)
		if !ok {
			return
		}
		ids, err := st.SolvedChallengeIDs(c.Request.Context(), uid(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, newChallengeView(ch, solvedSet(ids)))
	}
}

func ChallengeFile(st store.Store, files *attachments.Dir) gin.HandlerFunc {
	return func(c *gin.Context) {
		ch, ok := enabledChallenge(c, st)
		if !ok {
			return
		}
		if ch.FilePath == nil || *ch.FilePath == "" {
			c.JSON(404, gin.H{"error": "challenge has no file"})
			return
		}

		f, err := files.Open(*ch.FilePath)
		if errors.Is(err, fs.ErrNotExist) {
			c.JSON(404, gin.H{"error": "file missing"})
			return
		}
		if err != nil {
			respondError(c, err)
			return
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			respondError(c, err)
			return
		}
		c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
			"filename": path.Base(*ch.FilePath),
		}))
		http.ServeContent(c.Writer, c.Request, info.Name(), info.ModTime(), f)
	}
}

// SubmitFlag validates the format before touching the store, then checks
// the competition window, compares, and records the solve.
func SubmitFlag(st store.Store, pub realtime.Publisher) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Flag string `json:"flag"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(400, gin.H{"error": "bad json"})
			return
		}
		flag := strings.TrimSpace(req.Flag)
		if flag == "" {
			metrics.FlagSubmissions.WithLabelValues(string(ctf.OutcomeInvalid)).Inc()
			c.JSON(400, gin.H{"error": "Please enter a flag"})
			return
		}
		if !ctf.ValidFlag(flag) {
			metrics.FlagSubmissions.WithLabelValues(string(ctf.OutcomeInvalid)).Inc()
			respondError(c, ctf.ErrInvalidFlag)
			return
		}

		ctx := c.Request.Context()
		cfg, err := st.GetConfig(ctx)
		if err != nil {
			respondError(c, err)
			return
		}
		if !ctf.IsRunning(cfg, time.Now()) {
			respondError(c, ctf.ErrNotRunning)
			return
		}

		ch, ok := enabledChallenge(c, st)
		if !ok {
			return
		}

		if !ctf.CheckFlag(flag, ch.Flag) {
			metrics.FlagSubmissions.WithLabelValues(string(ctf.OutcomeIncorrect)).Inc()
			c.JSON(http.StatusOK, submitResponse{
				Outcome: ctf.OutcomeIncorrect,
				Message: "Incorrect flag. Try again!",
			})
			return
		}

		sess := session(c)
		solve := &ctf.Solve{UserID: sess.UserID(), TeamID: sess.User.TeamID, ChallengeID: ch.ID}
		err = st.CreateSolve(ctx, solve)
		if errors.Is(err, ctf.ErrDuplicateSolve) {
			metrics.FlagSubmissions.WithLabelValues(string(ctf.OutcomeAlreadySolved)).Inc()
			c.JSON(http.StatusConflict, submitResponse{
				Outcome: ctf.OutcomeAlreadySolved,
				Correct: true,
				Message: "You have already solved this challenge!",
			})
			return
		}
		if err != nil {
			respondError(c, err)
			return
		}
		metrics.FlagSubmissions.WithLabelValues(string(ctf.OutcomeCorrect)).Inc()

		logger := requestLogger(c)
		ev := realtime.SolveEvent{
			ChallengeID: ch.ID,
			UserID:      solve.UserID,
			TeamID:      solve.TeamID,
			Points:      ch.Points,
			SolvedAt:    solve.SubmittedAt,
		}
		if err := pub.Publish(ctx, ev); err != nil {
			logger.Warn("publishing solve event failed", "challenge", ch.ID, "error", err)
		}
		logAction(ctx, st, logger, &solve.UserID, "solve", "challenge_id="+ch.ID)

		c.JSON(http.StatusOK, submitResponse{
			Outcome: ctf.OutcomeCorrect,
			Correct: true,
			Message: "Correct! You earned " + ctf.FormatPoints(ch.Points) + " points.",
			Points:  ch.Points,
		})
	}
}
