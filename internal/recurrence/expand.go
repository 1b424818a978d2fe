// Package recurrence expands recurring rules into concrete instance
// dates. Day boundaries are computed in the rule's local timezone, then
// every produced instant is translated back to UTC.
package recurrence

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/nhle/newsroom-planning/internal/model"
)

// DefaultMaxInstances is the hard ceiling on produced instances when
// Options.Max is not set.
const DefaultMaxInstances = 200

var frequencies = map[model.Frequency]rrule.Frequency{
	model.FreqDaily:   rrule.DAILY,
	model.FreqWeekly:  rrule.WEEKLY,
	model.FreqMonthly: rrule.MONTHLY,
	model.FreqYearly:  rrule.YEARLY,
}

var weekdays = map[string]rrule.Weekday{
	"MO": rrule.MO,
	"TU": rrule.TU,
	"WE": rrule.WE,
	"TH": rrule.TH,
	"FR": rrule.FR,
	"SA": rrule.SA,
	"SU": rrule.SU,
}

var ordinalByDay = regexp.MustCompile(`^-?[1-5]`)

// Options are the inputs to a single expansion.
type Options struct {
	// Start is the first candidate instant, in UTC.
	Start time.Time

	Frequency model.Frequency

	// Interval is how often the rule repeats; values below 1 are
	// treated as 1.
	Interval int

	// Until terminates the rule after the given instant.
	Until *time.Time

	// Count is the requested number of calendar events. With a WEEKLY
	// byday of k weekdays the produced sequence holds Count*k entries.
	Count int

	// ByDay holds space-separated weekday tokens for WEEKLY rules, or
	// one ordinal weekday ("1FR", "-2MO") for MONTHLY/YEARLY rules.
	// Ignored for DAILY rules.
	ByDay string

	// Location is the timezone the rule is evaluated in; nil means the
	// rule runs directly on the UTC instants.
	Location *time.Location

	// Max caps the produced sequence regardless of Count/Until; zero
	// means DefaultMaxInstances.
	Max int
}

// Expand turns a recurrence rule into an ordered sequence of UTC
// instants. The result is deterministic for identical options and never
// exceeds the configured cap.
func Expand(opts Options) ([]time.Time, error) {
	freq, ok := frequencies[opts.Frequency]
	if !ok {
		return nil, model.Validationf("frequency", "unsupported recurrence frequency %q", opts.Frequency)
	}

	interval := opts.Interval
	if interval < 1 {
		interval = 1
	}

	max := opts.Max
	if max <= 0 {
		max = DefaultMaxInstances
	}

	start := opts.Start
	var until time.Time
	if opts.Until != nil {
		until = *opts.Until
	}

	// Recurrence arithmetic runs on naive local time so that "every
	// Friday" means Friday in the rule's zone, not Friday in UTC.
	if opts.Location != nil {
		start = asNaive(start.In(opts.Location))
		if !until.IsZero() {
			until = asNaive(until.In(opts.Location))
		}
	}

	byday := opts.ByDay
	if opts.Frequency == model.FreqDaily {
		byday = ""
	}

	byweekday, tokens, err := parseByDay(byday)
	if err != nil {
		return nil, err
	}

	// The rule fires once per byday weekday, so scale the requested
	// event count by the number of weekdays to keep "count" meaning
	// calendar events.
	count := opts.Count
	if count > 0 && tokens > 0 {
		count *= tokens
	}

	rule, err := rrule.NewRRule(rrule.ROption{
		Freq:      freq,
		Dtstart:   start,
		Interval:  interval,
		Count:     count,
		Until:     until,
		Byweekday: byweekday,
	})
	if err != nil {
		return nil, model.Validationf("recurring_rule", "invalid recurrence rule: %v", err)
	}

	var dates []time.Time
	next := rule.Iterator()
	for len(dates) < max {
		d, ok := next()
		if !ok {
			break
		}
		if opts.Location != nil {
			d = fromNaive(d, opts.Location)
		}
		dates = append(dates, d)
	}

	return dates, nil
}

// parseByDay interprets the byday token(s), returning the rrule
// weekdays and the number of tokens supplied.
func parseByDay(byday string) ([]rrule.Weekday, int, error) {
	byday = strings.TrimSpace(byday)
	if byday == "" {
		return nil, 0, nil
	}

	fields := strings.Fields(byday)

	if ordinalByDay.MatchString(byday) {
		// Monthly/yearly form: ordinal + weekday, e.g. 1FR is the
		// first Friday, -2MO the second-to-last Monday.
		var ordStr, dayStr string
		if strings.HasPrefix(byday, "-") {
			ordStr, dayStr = byday[:2], byday[2:]
		} else {
			ordStr, dayStr = byday[:1], byday[1:]
		}

		ord, err := strconv.Atoi(ordStr)
		if err != nil {
			return nil, 0, model.Validationf("byday", "invalid ordinal in %q", byday)
		}
		day, ok := weekdays[dayStr]
		if !ok {
			return nil, 0, model.Validationf("byday", "unknown weekday %q", dayStr)
		}
		return []rrule.Weekday{day.Nth(ord)}, len(fields), nil
	}

	days := make([]rrule.Weekday, 0, len(fields))
	for _, tok := range fields {
		day, ok := weekdays[tok]
		if !ok {
			return nil, 0, model.Validationf("byday", "unknown weekday %q", tok)
		}
		days = append(days, day)
	}
	return days, len(fields), nil
}

// asNaive strips the zone from a local time, keeping the wall clock.
func asNaive(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
}

// fromNaive reinterprets a naive wall clock in loc and converts to UTC.
func fromNaive(t time.Time, loc *time.Location) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, loc).UTC()
}
