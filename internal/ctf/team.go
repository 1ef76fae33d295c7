package ctf

import (
	"fmt"
	"strings"
	"time"
)

const MaxTeamMembers = 5

const maxTeamNameLen = 64

// CanJoin rejects a join once the team holds MaxTeamMembers members.
func CanJoin(memberCount int) error {
	if memberCount >= MaxTeamMembers {
		return fmt.Errorf("%w (maximum %d members)", ErrTeamFull, MaxTeamMembers)
	}
	return nil
}

// MembershipOpen rejects every membership change while the competition runs.
func MembershipOpen(cfg Config, now time.Time) error {
	if IsRunning(cfg, now) {
		return ErrTeamsLocked
	}
	return nil
}

func NormalizeTeamName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: team name is required", ErrInvalidInput)
	}
	if len(name) > maxTeamNameLen {
		return "", fmt.Errorf("%w: team name is too long", ErrInvalidInput)
	}
	return name, nil
}
