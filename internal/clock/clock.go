// Package clock abstracts the wall clock so that queries which default to
// "now" can be tested deterministically.
package clock

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"heatmap.tricitytransit.org/internal/gtfstime"
)

// Clock provides the current time.
type Clock interface {
	Now() time.Time
}

// RealClock reads the system time.
type RealClock struct{}

func (RealClock) Now() time.Time {
	return time.Now()
}

// MockClock is a settable, thread-safe clock for tests.
type MockClock struct {
	mu          sync.Mutex
	currentTime time.Time
}

func NewMockClock(t time.Time) *MockClock {
	return &MockClock{currentTime: t}
}

func (m *MockClock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentTime
}

// Set changes the mock clock's current time.
func (m *MockClock) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.currentTime = t
}

// Advance moves the mock clock by d, which may be negative.
func (m *MockClock) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.currentTime = m.currentTime.Add(d)
}

// EnvironmentClock reads the time from an environment variable on every call
// and falls back to the system time when the variable is unset or invalid.
// It lets a demo server pretend to run at a fixed service time.
type EnvironmentClock struct {
	envVar   string
	location *time.Location
}

func NewEnvironmentClock(envVar string, location *time.Location) *EnvironmentClock {
	return &EnvironmentClock{envVar: envVar, location: location}
}

func (e *EnvironmentClock) Now() time.Time {
	t, err := e.fromEnv()
	if err == nil {
		return t
	}
	if e.envVar != "" && os.Getenv(e.envVar) != "" {
		slog.Warn("EnvironmentClock: invalid time, falling back to system time",
			slog.String("envVar", e.envVar), slog.String("error", err.Error()))
	}
	return time.Now()
}

func (e *EnvironmentClock) fromEnv() (time.Time, error) {
	if e.envVar == "" {
		return time.Time{}, errors.New("environment variable name not configured")
	}
	raw := strings.TrimSpace(os.Getenv(e.envVar))
	if raw == "" {
		return time.Time{}, fmt.Errorf("environment variable %s is empty", e.envVar)
	}
	return parseTime(raw, e.location)
}

// parseTime accepts RFC3339, or a local date-time when loc is set.
func parseTime(s string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if loc == nil {
		return time.Time{}, errors.New("timezone not configured")
	}
	for _, layout := range []string{"2006-01-02 15:04:05", "2006-01-02T15:04:05"} {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse time %q: expected RFC3339 or YYYY-MM-DD HH:MM:SS", s)
}

// ServiceTimeOfDay returns the clock time of c in loc as a schedule time of day.
// A nil loc means UTC.
func ServiceTimeOfDay(c Clock, loc *time.Location) gtfstime.TimeOfDay {
	if loc == nil {
		loc = time.UTC
	}
	now := c.Now().In(loc)
	return gtfstime.TimeOfDay(now.Hour()*3600 + now.Minute()*60 + now.Second())
}
