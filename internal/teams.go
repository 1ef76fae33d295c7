package internal

import (
	"net/http"
	"time"

	"ctf-arena/internal/ctf"
	"ctf-arena/internal/store"

	"github.com/gin-gonic/gin"
)

// membershipOpen answers and returns false when team changes are locked.
func membershipOpen(c *gin.Context, st store.Store) bool {
	cfg, err := st.GetConfig(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return false
	}
	if err := ctf.MembershipOpen(cfg, time.Now()); err != nil {
		respondError(c, err)
		return false
	}
	return true
}

func ListTeams(st store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		teams, err := st.ListTeams(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"teams":       teams,
			"max_members": ctf.MaxTeamMembers,
		})
	}
}

func CreateTeam(st store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Name string `json:"name"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(400, gin.H{"error": "bad request"})
			return
		}
		name, err := ctf.NormalizeTeamName(req.Name)
		if err != nil {
			respondError(c, err)
			return
		}
		if !membershipOpen(c, st) {
			return
		}

		ctx := c.Request.Context()
		userID := uid(c)
		team, err := st.CreateTeam(ctx, name, userID)
		if err != nil {
			respondError(c, err)
			return
		}
		logAction(ctx, st, requestLogger(c), &userID, "create_team", "team_id="+team.ID+" name="+team.Name)
		c.JSON(http.StatusCreated, team)
	}
}

func JoinTeam(st store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !membershipOpen(c, st) {
			return
		}
		ctx := c.Request.Context()
		userID := uid(c)
		teamID := c.Param("id")

		if err := st.JoinTeam(ctx, teamID, userID); err != nil {
			respondError(c, err)
			return
		}
		logAction(ctx, st, requestLogger(c), &userID, "join_team", "team_id="+teamID)
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

func LeaveTeam(st store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !membershipOpen(c, st) {
			return
		}
		ctx := c.Request.Context()
		userID := uid(c)
		teamID := c.Param("id")

		if err := st.LeaveTeam(ctx, teamID, userID); err != nil {
			respondError(c, err)
			return
		}
		logAction(ctx, st, requestLogger(c), &userID, "leave_team", "team_id="+teamID)
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

// DeleteTeam is creator-only; every member is released.
func DeleteTeam(st store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !membershipOpen(c, st) {
			return
		}
		ctx := c.Request.Context()
		userID := uid(c)
		teamID := c.Param("id")

		if err := st.DeleteTeam(ctx, teamID, userID); err != nil {
			respondError(c, err)
			return
		}
		logAction(ctx, st, requestLogger(c), &userID, "delete_team", "team_id="+teamID)
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}
