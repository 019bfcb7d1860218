package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the date format used by the API query and on the command line.
const DateLayout = "2006-01-02"

// Window is the protocol set and inclusive measured-date range of one fetch.
type Window struct {
	Protocols []Protocol
	Start     time.Time
	End       time.Time
}

// Validate checks that the window names at least one known protocol and
// that Start is not after End.
func (w Window) Validate() error {
	if len(w.Protocols) == 0 {
		return errors.New("window has no protocols")
	}
	for _, p := range w.Protocols {
		if !p.Valid() {
			return fmt.Errorf("unknown protocol %q", p)
		}
	}
	if Day(w.Start).After(Day(w.End)) {
		return fmt.Errorf("start date %s is after end date %s", w.Start.Format(DateLayout), w.End.Format(DateLayout))
	}
	return nil
}

// Key identifies the window in caches, e.g. "sky_conditions,land_covers|2019-11-28|2019-12-01".
func (w Window) Key() string {
	names := make([]string, len(w.Protocols))
	for i, p := range w.Protocols {
		names[i] = string(p)
	}
	return strings.Join(names, ",") + "|" + w.Start.Format(DateLayout) + "|" + w.End.Format(DateLayout)
}

// String formats the date range the way figure titles print it.
func (w Window) String() string {
	return w.Start.Format(DateLayout) + " to " + w.End.Format(DateLayout)
}

// ParseProtocols parses a comma-separated protocol list.
func ParseProtocols(s string) ([]Protocol, error) {
	var out []Protocol
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		p, ok := ParseProtocol(part)
		if !ok {
			return nil, fmt.Errorf("unknown protocol %q", part)
		}
		out = append(out, p)
	}
	if len(out) == 0 {
		return nil, errors.New("no protocols given")
	}
	return out, nil
}

// ParseDate parses a YYYY-MM-DD date as UTC midnight.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t.UTC(), nil
}
