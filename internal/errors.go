package internal

import (
	"errors"
	"net/http"
	"strings"

	"ctf-arena/internal/attachments"
	"ctf-arena/internal/ctf"

	"github.com/gin-gonic/gin"
)

const genericError = "An error occurred. Please try again."

var errorTable = []struct {
	err     error
	status  int
	message string
}{
	{ctf.ErrInvalidFlag, http.StatusBadRequest, "Flag must be in format CTF{...}"},
	{ctf.ErrInvalidInput, http.StatusBadRequest, ""},
	{ctf.ErrNotFound, http.StatusNotFound, "Not found"},
	{ctf.ErrDuplicateSolve, http.StatusConflict, "You have already solved this challenge!"},
	{ctf.ErrNotRunning, http.StatusForbidden, "The competition is not running"},
	{ctf.ErrTeamFull, http.StatusConflict, "Team is full (max 5 members)"},
	{ctf.ErrTeamsLocked, http.StatusForbidden, "Teams cannot be changed while the competition is running"},
	{ctf.ErrAlreadyInTeam, http.StatusConflict, "You are already in a team"},
	{ctf.ErrNotInTeam, http.StatusBadRequest, "You are not a member of this team"},
	{ctf.ErrNotTeamCreator, http.StatusForbidden, "Only the team creator can delete the team"},
	{ctf.ErrNameTaken, http.StatusConflict, "Team name already taken"},
	{ctf.ErrEmailTaken, http.StatusConflict, "Email already registered"},
	{attachments.ErrInvalidPath, http.StatusBadRequest, "Invalid file path"},
}

// httpError maps err to a status and user-facing message. Unknown errors
// get 500 and the generic message.
func httpError(err error) (int, string) {
	for _, e := range errorTable {
		if errors.Is(err, e.err) {
			if e.message == "" {
				return e.status, strings.TrimPrefix(err.Error(), e.err.Error()+": ")
			}
			return e.status, e.message
		}
	}
	return http.StatusInternalServerError, genericError
}

func respondError(c *gin.Context, err error) {
	status, msg := httpError(err)
	if status >= 500 {
		requestLogger(c).Error("request failed", "path", c.FullPath(), "error", err)
	}
	c.JSON(status, gin.H{"error": msg})
}

func abortError(c *gin.Context, err error) {
	respondError(c, err)
	c.Abort()
}
