package ctf

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return ts
}

func TestIsRunning(t *testing.T) {
	start := mustTime(t, "2024-01-01T00:00:00Z")
	end := mustTime(t, "2024-01-02T00:00:00Z")

	tests := []struct {
		name string
		cfg  Config
		now  string
		want bool
	}{
		{"inside window", Config{Started: true, StartTime: &start, EndTime: &end}, "2024-01-01T12:00:00Z", true},
		{"after end", Config{Started: true, StartTime: &start, EndTime: &end}, "2024-01-03T00:00:00Z", false},
		{"before start", Config{Started: true, StartTime: &start, EndTime: &end}, "2023-12-31T23:59:59Z", false},
		{"exactly start", Config{Started: true, StartTime: &start, EndTime: &end}, "2024-01-01T00:00:00Z", true},
		{"exactly end", Config{Started: true, StartTime: &start, EndTime: &end}, "2024-01-02T00:00:00Z", true},
		{"not started ignores window", Config{Started: false, StartTime: &start, EndTime: &end}, "2024-01-01T12:00:00Z", false},
		{"no bounds", Config{Started: true}, "1999-01-01T00:00:00Z", true},
		{"open end", Config{Started: true, StartTime: &start}, "2030-01-01T00:00:00Z", true},
		{"open start", Config{Started: true, EndTime: &end}, "2000-01-01T00:00:00Z", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRunning(tt.cfg, mustTime(t, tt.now)))
		})
	}
}

func TestStatusAt(t *testing.T) {
	start := mustTime(t, "2024-01-01T00:00:00Z")
	end := mustTime(t, "2024-01-02T00:00:00Z")
	cfg := Config{Started: true, StartTime: &start, EndTime: &end}

	st := StatusAt(cfg, mustTime(t, "2023-12-31T22:30:15Z"))
	assert.Equal(t, PhaseUpcoming, st.Phase)
	assert.False(t, st.Running)
	if assert.NotNil(t, st.Countdown) {
		assert.Equal(t, "Starts in", st.Countdown.Label)
		assert.Equal(t, "01:29:45", st.Countdown.Remaining)
	}

	st = StatusAt(cfg, mustTime(t, "2024-01-01T12:00:00Z"))
	assert.Equal(t, PhaseRunning, st.Phase)
	assert.True(t, st.Running)
	if assert.NotNil(t, st.Countdown) {
		assert.Equal(t, "Time Remaining", st.Countdown.Label)
		assert.Equal(t, "12:00:00", st.Countdown.Remaining)
		assert.Equal(t, int64(12*3600), st.Countdown.Seconds)
	}

	st = StatusAt(cfg, mustTime(t, "2024-01-03T00:00:00Z"))
	assert.Equal(t, PhaseEnded, st.Phase)
	assert.Nil(t, st.Countdown)

	st = StatusAt(Config{StartTime: &start}, start)
	assert.Equal(t, PhaseStopped, st.Phase)

	st = StatusAt(Config{Started: true}, start)
	assert.Equal(t, PhaseRunning, st.Phase)
	assert.Nil(t, st.Countdown)
}

func TestFormatCountdown(t *testing.T) {
	assert.Equal(t, "00:00:00", FormatCountdown(0))
	assert.Equal(t, "00:00:00", FormatCountdown(-time.Hour))
	assert.Equal(t, "00:00:59", FormatCountdown(59*time.Second+900*time.Millisecond))
	assert.Equal(t, "01:01:01", FormatCountdown(time.Hour+time.Minute+time.Second))
	assert.Equal(t, "49:00:00", FormatCountdown(49*time.Hour))
}
