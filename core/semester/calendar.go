// Package semester maps points in time to academic semester windows.
//
// The default calendar follows the Nigerian convention: the HARMATTAN semester
// runs September through January and is tagged with its starting year, the
// RAIN semester runs February through August. Aggregation code never hard-codes
// these branches; it only sees the Calendar interface, so an institution with a
// different calendar swaps the implementation.
package semester

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const (
	Harmattan = "HARMATTAN"
	Rain      = "RAIN"
)

var ErrBadValue = errors.New("unrecognized semester value")

// Window is a half-open [Start, End) date range with its display forms.
// Value is the machine form ("HARMATTAN-2025"), Label the human form
// ("Harmattan 2025"), Range the date-range form ("Sep 2025 - Jan 2026").
type Window struct {
	Value string    `json:"value"`
	Label string    `json:"label"`
	Range string    `json:"range"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Calendar is a pure, deterministic mapping from time to semester windows.
type Calendar interface {
	At(t time.Time) Window
	Prev(w Window) Window
	Next(w Window) Window
	Parse(value string) (Window, error)
}

type academicCalendar struct{}

// NewAcademicCalendar returns the default Harmattan/Rain calendar.
func NewAcademicCalendar() Calendar {
	return academicCalendar{}
}

func (academicCalendar) At(t time.Time) Window {
	t = t.UTC()
	year, month := t.Year(), t.Month()
	switch {
	case month >= time.September:
		return harmattan(year)
	case month == time.January:
		return harmattan(year - 1)
	default:
		return rain(year)
	}
}

func (c academicCalendar) Prev(w Window) Window {
	return c.At(w.Start.AddDate(0, -1, 0))
}

func (c academicCalendar) Next(w Window) Window {
	return c.At(w.End)
}

func (academicCalendar) Parse(value string) (Window, error) {
	parts := strings.SplitN(strings.ToUpper(strings.TrimSpace(value)), "-", 2)
	if len(parts) != 2 {
		return Window{}, ErrBadValue
	}
	year, err := strconv.Atoi(parts[1])
	if err != nil || year < 1900 || year > 9999 {
		return Window{}, ErrBadValue
	}
	switch parts[0] {
	case Harmattan:
		return harmattan(year), nil
	case Rain:
		return rain(year), nil
	}
	return Window{}, ErrBadValue
}

func harmattan(year int) Window {
	start := time.Date(year, time.September, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(year+1, time.February, 1, 0, 0, 0, 0, time.UTC)
	return newWindow(Harmattan, year, start, end)
}

func rain(year int) Window {
	start := time.Date(year, time.February, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(year, time.September, 1, 0, 0, 0, 0, time.UTC)
	return newWindow(Rain, year, start, end)
}

func newWindow(season string, year int, start, end time.Time) Window {
	last := end.AddDate(0, -1, 0) // last month inside the window
	return Window{
		Value: fmt.Sprintf("%s-%d", season, year),
		Label: fmt.Sprintf("%s%s %d", season[:1], strings.ToLower(season[1:]), year),
		Range: fmt.Sprintf("%s %d - %s %d", start.Month().String()[:3], start.Year(), last.Month().String()[:3], last.Year()),
		Start: start,
		End:   end,
	}
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	t = t.UTC()
	return !t.Before(w.Start) && t.Before(w.End)
}
