package ctf

import (
	"strconv"
	"strings"
	"time"
)

// FormatPoints renders n with thousands separators.
func FormatPoints(n int) string {
	s := strconv.Itoa(n)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}

func DifficultyStars(difficulty int) string {
	if difficulty < 0 {
		difficulty = 0
	}
	if difficulty > 5 {
		difficulty = 5
	}
	return strings.Repeat("★", difficulty) + strings.Repeat("☆", 5-difficulty)
}

func TimeAgo(t, now time.Time) string {
	secs := int64(now.Sub(t) / time.Second)
	switch {
	case secs < 60:
		return "Just now"
	case secs < 3600:
		return strconv.FormatInt(secs/60, 10) + " minutes ago"
	case secs < 86400:
		return strconv.FormatInt(secs/3600, 10) + " hours ago"
	}
	return strconv.FormatInt(secs/86400, 10) + " days ago"
}
