// Package schedule parses human-written schedule strings and binds them onto a
// timer.Timer.
//
// Accepted formats:
//
//   - Cron expressions: 5-field (min hour dom mon dow) or 6-field with
//     optional seconds. Example: "55 * * * *" or "0 */5 * * * *".
//   - Cron descriptors: "@hourly", "@daily", "@every 55m".
//   - Interval durations: Go duration strings like "55m" or "2h30m".
//   - Interval HH:MM: a compact duration format where "00:50" means every 50
//     minutes and "02:30" means every 2 hours 30 minutes.
//
// To force interpretation, callers may prefix the string with "cron:",
// "interval:", or "every:".
//
// Interval schedules register directly on the Timer. Cron schedules are driven
// by chained one-shot registrations: each fire re-arms the next occurrence
// from inside the callback.
package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

type Kind int

const (
	KindInterval Kind = iota
	KindCron
)

// Schedule is a parsed schedule string.
type Schedule struct {
	Kind Kind
	Raw  string

	// Source tags which syntax matched: "cron", "duration" or "hhmm".
	Source string

	// Every is set for KindInterval.
	Every time.Duration

	// Cron is set for KindCron.
	Cron cron.Schedule
}

// parser accepts 5-field crontabs, 6-field with seconds, and descriptors.
var parser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Parse interprets raw as one of the supported schedule syntaxes.
func Parse(raw string) (Schedule, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Schedule{}, fmt.Errorf("empty schedule")
	}

	if rest, ok := strings.CutPrefix(s, "cron:"); ok {
		return parseCron(raw, strings.TrimSpace(rest))
	}
	for _, p := range []string{"interval:", "every:"} {
		if rest, ok := strings.CutPrefix(s, p); ok {
			return parseDurationSchedule(raw, strings.TrimSpace(rest))
		}
	}

	// Descriptors ("@hourly", "@every 55m") go through the cron parser.
	if strings.HasPrefix(s, "@") {
		return parseCron(raw, s)
	}

	if d, err := time.ParseDuration(s); err == nil {
		return intervalSchedule(raw, d, "duration")
	}
	if h, m, err := parseHHMM(s); err == nil {
		return intervalSchedule(raw, time.Duration(h)*time.Hour+time.Duration(m)*time.Minute, "hhmm")
	}
	if n := len(strings.Fields(s)); n == 5 || n == 6 {
		return parseCron(raw, s)
	}
	return Schedule{}, fmt.Errorf("unrecognized schedule %q", raw)
}

func parseCron(raw, spec string) (Schedule, error) {
	cs, err := parser.Parse(spec)
	if err != nil {
		return Schedule{}, fmt.Errorf("cron schedule %q: %w", raw, err)
	}
	return Schedule{Kind: KindCron, Raw: raw, Source: "cron", Cron: cs}, nil
}

func parseDurationSchedule(raw, spec string) (Schedule, error) {
	d, err := time.ParseDuration(spec)
	if err != nil {
		return Schedule{}, fmt.Errorf("interval schedule %q: %w", raw, err)
	}
	return intervalSchedule(raw, d, "duration")
}

func intervalSchedule(raw string, d time.Duration, source string) (Schedule, error) {
	if d <= 0 {
		return Schedule{}, fmt.Errorf("interval schedule %q: must be positive", raw)
	}
	return Schedule{Kind: KindInterval, Raw: raw, Source: source, Every: d}, nil
}

// parseHHMM reads the compact "HH:MM" interval form.
func parseHHMM(s string) (hour int, minute int, err error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	if h == 0 && m == 0 {
		return 0, 0, fmt.Errorf("zero interval in %q", s)
	}
	return h, m, nil
}
