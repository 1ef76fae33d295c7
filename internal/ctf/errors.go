package ctf

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrInvalidInput   = errors.New("invalid input")
	ErrInvalidFlag    = errors.New("flag must be in format CTF{...}")
	ErrDuplicateSolve = errors.New("challenge already solved")
	ErrNotRunning     = errors.New("competition is not running")
	ErrTeamFull       = errors.New("team is full")
	ErrTeamsLocked    = errors.New("team changes are locked while the competition is running")
	ErrAlreadyInTeam  = errors.New("already in a team")
	ErrNotInTeam      = errors.New("not in this team")
	ErrNotTeamCreator = errors.New("only the team creator can do this")
	ErrNameTaken      = errors.New("name already taken")
	ErrEmailTaken     = errors.New("email already registered")
)
