// Package gtfstime parses GTFS schedule timestamps and converts them between the
// "elapsed since service-day midnight" form used by stop_times.txt (hours may run
// past 23) and a wrapped time-of-day form used by the schedule graph.
package gtfstime

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	SecondsPerDay  = 24 * 60 * 60
	MinutesPerDay  = 24 * 60
	halfDaySeconds = SecondsPerDay / 2
)

var (
	// ErrMalformedTime is returned for timestamps that are not HH:MM:SS.
	ErrMalformedTime = errors.New("malformed schedule time")
	// ErrNegativeDuration is returned when an arrival precedes its departure
	// after midnight fixing. It indicates an ordering defect in the source data.
	ErrNegativeDuration = errors.New("negative travel duration")
)

// Time is a schedule timestamp as written in the source, in seconds since the
// start of the service day. Values of 24h and more mean "after midnight".
type Time int

// TimeOfDay is a wrapped clock time in seconds, always within [0, SecondsPerDay).
type TimeOfDay int

// Parse reads an HH:MM:SS (or H:MM:SS) timestamp. Hours are not capped at 23.
func Parse(raw string) (Time, error) {
	s := strings.TrimSpace(raw)
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("%w: %q", ErrMalformedTime, raw)
	}

	var fields [3]int
	for i, p := range parts {
		if p == "" || len(p) > 3 {
			return 0, fmt.Errorf("%w: %q", ErrMalformedTime, raw)
		}
		v, err := strconv.Atoi(p)
		if err != nil || v < 0 {
			return 0, fmt.Errorf("%w: %q", ErrMalformedTime, raw)
		}
		fields[i] = v
	}

	if fields[1] > 59 || fields[2] > 59 {
		return 0, fmt.Errorf("%w: %q", ErrMalformedTime, raw)
	}

	return Time(fields[0]*3600 + fields[1]*60 + fields[2]), nil
}

// MustParse is Parse for literals in tests and fixtures. It panics on bad input.
func MustParse(raw string) Time {
	t, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return t
}

// ParseClock reads a query time given as HH:MM or HH:MM:SS and wraps it into a
// time of day.
func ParseClock(raw string) (TimeOfDay, error) {
	s := strings.TrimSpace(raw)
	if strings.Count(s, ":") == 1 {
		s += ":00"
	}
	t, err := Parse(s)
	if err != nil {
		return 0, err
	}
	return t.Normalize(), nil
}

// Normalize parses raw and wraps it into a time of day, so "25:02:00" becomes
// "01:02:00".
func Normalize(raw string) (TimeOfDay, error) {
	t, err := Parse(raw)
	if err != nil {
		return 0, err
	}
	return t.Normalize(), nil
}

// Normalize subtracts whole days until the value is a time of day.
func (t Time) Normalize() TimeOfDay {
	s := int(t) % SecondsPerDay
	if s < 0 {
		s += SecondsPerDay
	}
	return TimeOfDay(s)
}

// Minutes returns the minute count used for durations: h*60 + m + s/60.
func (t Time) Minutes() int {
	return int(t) / 60
}

func (t Time) String() string {
	return formatSeconds(int(t))
}

// MinuteOfDay returns the wrapped time in minutes, within [0, MinutesPerDay).
func (t TimeOfDay) MinuteOfDay() int {
	return int(t) / 60
}

// Seconds returns the raw second count.
func (t TimeOfDay) Seconds() int {
	return int(t)
}

func (t TimeOfDay) String() string {
	return formatSeconds(int(t))
}

// FixMidnight lifts an arrival by one day when the source wrote an after-midnight
// arrival without the 24h+ notation (23:50:00 followed by 00:10:00). Backward steps
// shorter than half a day are left alone so Duration reports them.
func FixMidnight(departure, arrival Time) Time {
	if arrival < departure && departure-arrival >= halfDaySeconds {
		return arrival + SecondsPerDay
	}
	return arrival
}

// Duration returns whole minutes between departure and arrival.
func Duration(departure, arrival Time) (int, error) {
	d := arrival.Minutes() - departure.Minutes()
	if d < 0 {
		return d, fmt.Errorf("%w: %s -> %s", ErrNegativeDuration, departure, arrival)
	}
	return d, nil
}

// WaitMinutes returns whole minutes from basis until scheduled, floored at zero.
func WaitMinutes(basis, scheduled TimeOfDay) int {
	w := (int(scheduled) - int(basis)) / 60
	if w < 0 {
		return 0
	}
	return w
}

func formatSeconds(total int) string {
	sign := ""
	if total < 0 {
		sign = "-"
		total = -total
	}
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	return fmt.Sprintf("%s%02d:%02d:%02d", sign, h, m, s)
}
