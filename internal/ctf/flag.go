package ctf

import (
	"crypto/subtle"
	"regexp"
)

var flagPattern = regexp.MustCompile(`^CTF\{.+\}$`)

// ValidFlag checks the CTF{...} wrapper. The prefix is case-sensitive and the
// body must not be empty.
func ValidFlag(s string) bool {
	return flagPattern.MatchString(s)
}

// CheckFlag compares a candidate against the stored secret byte for byte.
func CheckFlag(candidate, secret string) bool {
	if secret == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(secret)) == 1
}

type Outcome string

const (
	OutcomeCorrect       Outcome = "correct"
	OutcomeIncorrect     Outcome = "incorrect"
	OutcomeAlreadySolved Outcome = "already_solved"
	OutcomeInvalid       Outcome = "invalid"
)
