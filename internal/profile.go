package internal

import (
	"errors"
	"net/http"
	"strings"

	"ctf-arena/internal/ctf"
	"ctf-arena/internal/store"

	"github.com/gin-gonic/gin"
)

const maxDisplayNameLen = 64

func Me() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, session(c).User)
	}
}

func UpdateMe(st store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			DisplayName string `json:"display_name"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(400, gin.H{"error": "bad json"})
			return
		}
		name := strings.TrimSpace(req.DisplayName)
		if name == "" || len(name) > maxDisplayNameLen {
			c.JSON(400, gin.H{"error": "display name must be 1-64 characters"})
			return
		}

		ctx := c.Request.Context()
		userID := uid(c)
		if err := st.UpdateDisplayName(ctx, userID, name); err != nil {
			respondError(c, err)
			return
		}
		u, err := st.GetUser(ctx, userID)
		if err != nil {
			respondError(c, err)
			return
		}
		logAction(ctx, st, requestLogger(c), &userID, "update_profile", "display_name="+name)
		c.JSON(http.StatusOK, u)
	}
}

// Profile returns the caller's solves, team and standing.
func Profile(st store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		u := session(c).User

		solves, err := st.UserSolves(ctx, u.ID)
		if err != nil {
			respondError(c, err)
			return
		}
		resp := profileResponse{User: u, Solves: solves}
		for _, s := range solves {
			resp.Score += s.Points
		}

		if u.TeamID != nil {
			team, err := st.GetTeam(ctx, *u.TeamID)
			switch {
			case errors.Is(err, ctf.ErrNotFound):
			case err != nil:
				respondError(c, err)
				return
			default:
				resp.Team = &team
			}

			board, err := st.Leaderboard(ctx)
			if err != nil {
				respondError(c, err)
				return
			}
			resp.Rank = ctf.RankOf(board, *u.TeamID)
			if resp.Rank > 0 {
				resp.TeamScore = board[resp.Rank-1].TotalScore
			}
		}
		c.JSON(http.StatusOK, resp)
	}
}
