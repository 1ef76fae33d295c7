package internal

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"ctf-arena/internal/attachments"
	"ctf-arena/internal/ctf"
	"ctf-arena/internal/store"

	"github.com/gin-gonic/gin"
)

const maxUploadSize = 50 << 20

// Refresher recomputes derived views after admin changes that move scores.
type Refresher interface {
	Refresh(ctx context.Context, trigger string) error
}

func refreshAfter(c *gin.Context, r Refresher) {
	if err := r.Refresh(c.Request.Context(), "admin"); err != nil {
		requestLogger(c).Warn("leaderboard refresh after admin change failed", "error", err)
	}
}

// ------------------- Admin: logs/users -------------------

func AdminLogs(st store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := 200
		if s := c.Query("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n < 1 || n > 1000 {
				c.JSON(400, gin.H{"error": "limit must be 1-1000"})
				return
			}
			limit = n
		}
		out, err := st.ListLogs(c.Request.Context(), limit)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(200, out)
	}
}

func AdminUsers(st store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		out, err := st.ListUsers(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(200, out)
	}
}

func AdminSetRole(st store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := uid(c)
		id := c.Param("id")
		var req struct {
			Role ctf.Role `json:"role"`
		}
		if err := c.ShouldBindJSON(&req); err != nil || !req.Role.Valid() {
			c.JSON(400, gin.H{"error": "role must be admin or player"})
			return
		}
		if id == actor && req.Role != ctf.RoleAdmin {
			c.JSON(400, gin.H{"error": "cannot demote yourself"})
			return
		}
		ctx := c.Request.Context()
		if err := st.SetRole(ctx, id, req.Role); err != nil {
			respondError(c, err)
			return
		}
		logAction(ctx, st, requestLogger(c), &actor, "admin_set_role", "user_id="+id+" role="+string(req.Role))
		c.JSON(200, gin.H{"ok": true})
	}
}

func AdminDeleteUser(st store.Store, board Refresher) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := uid(c)
		id := c.Param("id")
		if id == actor {
			c.JSON(400, gin.H{"error": "cannot delete yourself"})
			return
		}
		ctx := c.Request.Context()
		if err := st.DeleteUser(ctx, id); err != nil {
			respondError(c, err)
			return
		}
		logAction(ctx, st, requestLogger(c), &actor, "admin_delete_user", "user_id="+id)
		refreshAfter(c, board)
		c.JSON(200, gin.H{"ok": true})
	}
}

// ------------------- Admin: challenges -------------------

func AdminChallenges(st store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := st.ListChallenges(c.Request.Context(), false)
		if err != nil {
			respondError(c, err)
			return
		}
		out := make([]adminChallenge, 0, len(list))
		for _, ch := range list {
			out = append(out, adminChallenge{Challenge: ch, Flag: ch.Flag})
		}
		c.JSON(200, out)
	}
}

func bindChallenge(c *gin.Context) (ctf.Challenge, bool) {
	var req challengeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": "bad request"})
		return ctf.Challenge{}, false
	}
	ch := req.challenge()
	ch.Title = strings.TrimSpace(ch.Title)
	ch.Category = strings.TrimSpace(ch.Category)
	ch.Flag = strings.TrimSpace(ch.Flag)
	if err := ctf.ValidateChallenge(ch); err != nil {
		respondError(c, err)
		return ctf.Challenge{}, false
	}
	return ch, true
}

func AdminCreateChallenge(st store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := uid(c)
		ch, ok := bindChallenge(c)
		if !ok {
			return
		}
		ctx := c.Request.Context()
		if err := st.CreateChallenge(ctx, &ch); err != nil {
			respondError(c, err)
			return
		}
		logAction(ctx, st, requestLogger(c), &actor, "admin_create_challenge", "challenge_id="+ch.ID+" title="+ch.Title)
		c.JSON(http.StatusCreated, adminChallenge{Challenge: ch, Flag: ch.Flag})
	}
}

func AdminUpdateChallenge(st store.Store, board Refresher) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := uid(c)
		ch, ok := bindChallenge(c)
		if !ok {
			return
		}
		ch.ID = c.Param("id")
		ctx := c.Request.Context()
		if err := st.UpdateChallenge(ctx, ch); err != nil {
			respondError(c, err)
			return
		}
		logAction(ctx, st, requestLogger(c), &actor, "admin_update_challenge", "challenge_id="+ch.ID)
		refreshAfter(c, board)

		updated, err := st.GetChallenge(ctx, ch.ID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(200, adminChallenge{Challenge: updated, Flag: updated.Flag})
	}
}

func AdminDeleteChallenge(st store.Store, board Refresher) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := uid(c)
		id := c.Param("id")
		ctx := c.Request.Context()
		if err := st.DeleteChallenge(ctx, id); err != nil {
			respondError(c, err)
			return
		}
		logAction(ctx, st, requestLogger(c), &actor, "admin_delete_challenge", "challenge_id="+id)
		refreshAfter(c, board)
		c.JSON(200, gin.H{"ok": true})
	}
}

// AdminUploadFile stores a multipart "file" as the challenge attachment.
func AdminUploadFile(st store.Store, files *attachments.Dir) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := uid(c)
		id := c.Param("id")
		ctx := c.Request.Context()

		if _, err := st.GetChallenge(ctx, id); err != nil {
			respondError(c, err)
			return
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadSize)
		fh, err := c.FormFile("file")
		if err != nil {
			c.JSON(400, gin.H{"error": "file is required"})
			return
		}
		src, err := fh.Open()
		if err != nil {
			respondError(c, err)
			return
		}
		defer src.Close()

		name := attachments.ObjectName(id, fh.Filename)
		if err := files.Save(name, src); err != nil {
			respondError(c, err)
			return
		}
		if err := st.SetChallengeFile(ctx, id, name); err != nil {
			respondError(c, err)
			return
		}
		logAction(ctx, st, requestLogger(c), &actor, "admin_upload_file", "challenge_id="+id+" file="+name)
		c.JSON(200, gin.H{"ok": true, "file_path": name})
	}
}

// ------------------- Admin: competition -------------------

func AdminGetConfig(st store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		cfg, err := st.GetConfig(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(200, gin.H{"config": cfg, "status": ctf.StatusAt(cfg, time.Now())})
	}
}

func AdminUpdateConfig(st store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := uid(c)
		var req configRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(400, gin.H{"error": "bad request"})
			return
		}
		if req.StartTime != nil && req.EndTime != nil && !req.EndTime.After(*req.StartTime) {
			c.JSON(400, gin.H{"error": "end time must be after start time"})
			return
		}
		ctx := c.Request.Context()
		cfg, err := st.UpdateConfig(ctx, ctf.Config{
			Started:   req.Started,
			StartTime: req.StartTime,
			EndTime:   req.EndTime,
		})
		if err != nil {
			respondError(c, err)
			return
		}
		logAction(ctx, st, requestLogger(c), &actor, "admin_update_config", "started="+strconv.FormatBool(cfg.Started))
		c.JSON(200, gin.H{"config": cfg, "status": ctf.StatusAt(cfg, time.Now())})
	}
}

// AdminToggleCTF flips the started flag and keeps the time window.
func AdminToggleCTF(st store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := uid(c)
		ctx := c.Request.Context()
		cfg, err := st.GetConfig(ctx)
		if err != nil {
			respondError(c, err)
			return
		}
		cfg.Started = !cfg.Started
		cfg, err = st.UpdateConfig(ctx, cfg)
		if err != nil {
			respondError(c, err)
			return
		}
		logAction(ctx, st, requestLogger(c), &actor, "admin_toggle_ctf", "started="+strconv.FormatBool(cfg.Started))
		c.JSON(200, gin.H{"config": cfg, "status": ctf.StatusAt(cfg, time.Now())})
	}
}

func AdminStats(st store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := st.Stats(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(200, stats)
	}
}

// ------------------- Admin: report -------------------

func AdminReport(st store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		now := time.Now()

		cfg, err := st.GetConfig(ctx)
		if err != nil {
			respondError(c, err)
			return
		}
		stats, err := st.Stats(ctx)
		if err != nil {
			respondError(c, err)
			return
		}
		board, err := st.Leaderboard(ctx)
		if err != nil {
			respondError(c, err)
			return
		}
		challenges, err := st.ListChallenges(ctx, false)
		if err != nil {
			respondError(c, err)
			return
		}
		logs, err := st.ListLogs(ctx, 10)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(200, gin.H{"report": buildReport(ctf.StatusAt(cfg, now), stats, board, challenges, logs, now)})
	}
}

func buildReport(status ctf.Status, stats ctf.Stats, board []ctf.LeaderboardEntry,
	challenges []ctf.Challenge, logs []ctf.LogEntry, now time.Time) string {
	var b strings.Builder
	line := func(parts ...string) {
		b.WriteString(strings.Join(parts, ""))
		b.WriteByte('\n')
	}

	line("CTF REPORT")
	line("Generated: ", now.UTC().Format(time.RFC3339))
	line("Phase: ", string(status.Phase))
	if status.Countdown != nil {
		line(status.Countdown.Label, ": ", status.Countdown.Remaining)
	}
	line("Users: ", strconv.Itoa(stats.Users), " | Teams: ", strconv.Itoa(stats.Teams),
		" | Challenges: ", strconv.Itoa(stats.EnabledChallenges), "/", strconv.Itoa(stats.Challenges),
		" | Solves: ", strconv.Itoa(stats.Solves))
	line()

	line("Leaderboard (", strconv.Itoa(len(board)), "):")
	if len(board) == 0 {
		line("- no teams")
	}
	for i, e := range board {
		last := "never"
		if e.LastSolveTime != nil {
			last = ctf.TimeAgo(*e.LastSolveTime, now)
		}
		line("#", strconv.Itoa(i+1), " ", e.TeamName, " | ", ctf.FormatPoints(e.TotalScore), " pts | ",
			strconv.Itoa(e.SolveCount), " solves | last solve: ", last)
	}
	line()

	line("Challenges (", strconv.Itoa(len(challenges)), "):")
	if len(challenges) == 0 {
		line("- no challenges")
	}
	for _, ch := range challenges {
		state := ""
		if !ch.Enabled {
			state = " [disabled]"
		}
		line("- [", ch.Category, "] ", ch.Title, state, " | ", ctf.FormatPoints(ch.Points), " pts | ",
			ctf.DifficultyStars(ch.Difficulty), " | solved by ", strconv.Itoa(ch.SolveCount))
	}
	line()

	line("Recent activity:")
	if len(logs) == 0 {
		line("- none")
	}
	for _, l := range logs {
		line("- ", ctf.TimeAgo(l.CreatedAt, now), " | ", l.Actor, " | ", l.Action, " ", l.Details)
	}
	return b.String()
}
