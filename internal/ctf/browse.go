package ctf

import (
	"fmt"
	"strings"
)

// Filter narrows a challenge list. Zero values match everything.
type Filter struct {
	Search     string
	Category   string
	Difficulty int
}

func (f Filter) Match(c Challenge) bool {
	if f.Search != "" {
		q := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(c.Title), q) &&
			!strings.Contains(strings.ToLower(c.Description), q) {
			return false
		}
	}
	if f.Category != "" && c.Category != f.Category {
		return false
	}
	if f.Difficulty != 0 && c.Difficulty != f.Difficulty {
		return false
	}
	return true
}

func FilterChallenges(list []Challenge, f Filter) []Challenge {
	out := make([]Challenge, 0, len(list))
	for _, c := range list {
		if f.Match(c) {
			out = append(out, c)
		}
	}
	return out
}

type CategoryGroup struct {
	Category   string      `json:"category"`
	Challenges []Challenge `json:"challenges"`
}

// GroupByCategory keeps categories in first-seen order and challenges in input order.
func GroupByCategory(list []Challenge) []CategoryGroup {
	idx := map[string]int{}
	var groups []CategoryGroup
	for _, c := range list {
		i, ok := idx[c.Category]
		if !ok {
			i = len(groups)
			idx[c.Category] = i
			groups = append(groups, CategoryGroup{Category: c.Category})
		}
		groups[i].Challenges = append(groups[i].Challenges, c)
	}
	return groups
}

func Categories(list []Challenge) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, c := range list {
		if !seen[c.Category] {
			seen[c.Category] = true
			out = append(out, c.Category)
		}
	}
	return out
}

// ValidateChallenge checks the fields an admin must provide.
func ValidateChallenge(c Challenge) error {
	switch {
	case strings.TrimSpace(c.Title) == "":
		return fmt.Errorf("%w: title is required", ErrInvalidInput)
	case strings.TrimSpace(c.Category) == "":
		return fmt.Errorf("%w: category is required", ErrInvalidInput)
	case c.Points < 0:
		return fmt.Errorf("%w: points must be >= 0", ErrInvalidInput)
	case c.Difficulty < 1 || c.Difficulty > 5:
		return fmt.Errorf("%w: difficulty must be between 1 and 5", ErrInvalidInput)
	case !ValidFlag(c.Flag):
		return fmt.Errorf("%w: %v", ErrInvalidInput, ErrInvalidFlag)
	}
	return nil
}
