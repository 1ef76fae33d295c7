package ctf

import (
	"fmt"
	"time"
)

// IsRunning reports whether the competition accepts submissions at now.
// A missing start or end time leaves that side unbounded.
func IsRunning(cfg Config, now time.Time) bool {
	if !cfg.Started {
		return false
	}
	if cfg.StartTime != nil && now.Before(*cfg.StartTime) {
		return false
	}
	if cfg.EndTime != nil && now.After(*cfg.EndTime) {
		return false
	}
	return true
}

type Phase string

const (
	PhaseStopped  Phase = "stopped"
	PhaseUpcoming Phase = "upcoming"
	PhaseRunning  Phase = "running"
	PhaseEnded    Phase = "ended"
)

// Status is the competition state as shown to players.
type Status struct {
	Running   bool       `json:"running"`
	Phase     Phase      `json:"phase"`
	Now       time.Time  `json:"now"`
	StartTime *time.Time `json:"start_time"`
	EndTime   *time.Time `json:"end_time"`
	Countdown *Countdown `json:"countdown,omitempty"`
}

type Countdown struct {
	Label     string    `json:"label"`
	Target    time.Time `json:"target"`
	Remaining string    `json:"remaining"`
	Seconds   int64     `json:"seconds"`
}

func StatusAt(cfg Config, now time.Time) Status {
	st := Status{
		Running:   IsRunning(cfg, now),
		Now:       now,
		StartTime: cfg.StartTime,
		EndTime:   cfg.EndTime,
	}

	switch {
	case st.Running:
		st.Phase = PhaseRunning
		if cfg.EndTime != nil {
			st.Countdown = newCountdown("Time Remaining", *cfg.EndTime, now)
		}
	case !cfg.Started:
		st.Phase = PhaseStopped
	case cfg.StartTime != nil && now.Before(*cfg.StartTime):
		st.Phase = PhaseUpcoming
		st.Countdown = newCountdown("Starts in", *cfg.StartTime, now)
	default:
		st.Phase = PhaseEnded
	}
	return st
}

func newCountdown(label string, target, now time.Time) *Countdown {
	d := target.Sub(now)
	if d < 0 {
		d = 0
	}
	return &Countdown{
		Label:     label,
		Target:    target,
		Remaining: FormatCountdown(d),
		Seconds:   int64(d / time.Second),
	}
}

// FormatCountdown renders d as HH:MM:SS. Hours keep counting past 24.
func FormatCountdown(d time.Duration) string {
	if d <= 0 {
		return "00:00:00"
	}
	total := int64(d / time.Second)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
