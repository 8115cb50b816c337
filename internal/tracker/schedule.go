package tracker

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultEvery is the poll interval when no schedule is configured.
const DefaultEvery = 5 * time.Minute

// Schedule yields the next poll time after t.
type Schedule = cron.Schedule

// SpecKind describes the normalized kind of a schedule string.
type SpecKind int

const (
	SpecInterval SpecKind = iota
	SpecCron
)

// ParsedSpec represents a parsed schedule string.
//
// Supported forms:
//   - Interval duration: "5m", "90s", "1h30m"
//   - Interval HH:MM: "00:05" (5 minutes), "01:30" (1 hour 30 minutes)
//   - Cron: "*/5 * * * *", "0 */10 * * * *" (with seconds), "@hourly", "@every 5m"
//
// Optional prefixes:
//   - "cron:" forces cron parsing
//   - "interval:" or "every:" forces interval parsing
type ParsedSpec struct {
	Kind   SpecKind
	Cron   string
	Every  time.Duration
	Source string // "default" | "duration" | "hhmm" | "cron"
}

var reHHMM = regexp.MustCompile(`^\s*(\d{1,3}):(\d{2})\s*$`)

var cronParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseSchedule parses a poll schedule. An empty string means DefaultEvery.
func ParseSchedule(raw string) (ParsedSpec, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ParsedSpec{Kind: SpecInterval, Every: DefaultEvery, Source: "default"}, nil
	}

	low := strings.ToLower(s)
	switch {
	case strings.HasPrefix(low, "cron:"):
		expr := strings.TrimSpace(s[len("cron:"):])
		if expr == "" {
			return ParsedSpec{}, fmt.Errorf("cron schedule required after 'cron:'")
		}
		return parseCron(expr)
	case strings.HasPrefix(low, "interval:"):
		return parseInterval(s[len("interval:"):])
	case strings.HasPrefix(low, "every:"):
		return parseInterval(s[len("every:"):])
	}

	// Whitespace or a leading '@' means cron.
	if strings.ContainsAny(s, " \t\n\r") || strings.HasPrefix(s, "@") {
		return parseCron(s)
	}

	ps, err := parseInterval(s)
	if err != nil {
		return ParsedSpec{}, fmt.Errorf(
			"invalid schedule %q (use a duration like '5m', HH:MM like '00:05', or cron like '*/5 * * * *')",
			raw,
		)
	}
	return ps, nil
}

func parseCron(expr string) (ParsedSpec, error) {
	if _, err := cronParser.Parse(expr); err != nil {
		return ParsedSpec{}, fmt.Errorf("invalid cron schedule %q: %w", expr, err)
	}
	return ParsedSpec{Kind: SpecCron, Cron: expr, Source: "cron"}, nil
}

func parseInterval(v string) (ParsedSpec, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return ParsedSpec{}, fmt.Errorf("interval required")
	}
	if reHHMM.MatchString(v) {
		h, m, err := parseHHMM(v)
		if err != nil {
			return ParsedSpec{}, err
		}
		d := time.Duration(h)*time.Hour + time.Duration(m)*time.Minute
		if d <= 0 {
			return ParsedSpec{}, fmt.Errorf("interval must be > 0")
		}
		return ParsedSpec{Kind: SpecInterval, Every: d, Source: "hhmm"}, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return ParsedSpec{}, fmt.Errorf("invalid interval %q (use HH:MM or Go duration like '5m')", v)
	}
	if d <= 0 {
		return ParsedSpec{}, fmt.Errorf("interval must be > 0")
	}
	return ParsedSpec{Kind: SpecInterval, Every: d, Source: "duration"}, nil
}

// parseHHMM accepts hours up to 999 and minutes 0..59.
func parseHHMM(v string) (int, int, error) {
	m := reHHMM.FindStringSubmatch(v)
	if len(m) != 3 {
		return 0, 0, fmt.Errorf("invalid HH:MM %q", v)
	}
	hh, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid hours in %q", v)
	}
	mm, err := strconv.Atoi(m[2])
	if err != nil || mm > 59 {
		return 0, 0, fmt.Errorf("invalid minutes in %q", v)
	}
	return hh, mm, nil
}

// Schedule builds the runtime schedule. Cron specs are evaluated in loc
// (time.Local when nil).
func (p ParsedSpec) Schedule(loc *time.Location) (Schedule, error) {
	switch p.Kind {
	case SpecInterval:
		if p.Every <= 0 {
			return nil, fmt.Errorf("interval must be > 0")
		}
		return fixedInterval(p.Every), nil
	case SpecCron:
		sched, err := cronParser.Parse(p.Cron)
		if err != nil {
			return nil, err
		}
		if loc != nil {
			if ss, ok := sched.(*cron.SpecSchedule); ok {
				ss.Location = loc
			}
		}
		return sched, nil
	default:
		return nil, fmt.Errorf("unknown schedule kind %d", p.Kind)
	}
}

func (p ParsedSpec) String() string {
	if p.Kind == SpecCron {
		return "cron " + p.Cron
	}
	return "every " + p.Every.String()
}

// fixedInterval fires exactly every d after the previous tick.
//
// cron.Every rounds to whole seconds; this keeps sub-second intervals usable.
type fixedInterval time.Duration

func (f fixedInterval) Next(t time.Time) time.Time { return t.Add(time.Duration(f)) }
