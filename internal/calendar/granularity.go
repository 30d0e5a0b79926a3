// Package calendar computes bucket boundaries and labels for the chart and
// export windows. Everything here is pure and evaluated in the location of
// the reference instant.
package calendar

import (
	"errors"
	"fmt"
	"strings"
)

// Granularity is the unit one bucket represents.
type Granularity string

const (
	Hourly  Granularity = "hourly"
	Daily   Granularity = "daily"
	Weekly  Granularity = "weekly"
	Monthly Granularity = "monthly"
	Yearly  Granularity = "yearly"
)

var (
	ErrInvalidWindow = errors.New("invalid window")
	ErrFutureWindow  = errors.New("window lies in the future")
)

// Granularities lists the supported granularities, finest first.
var Granularities = []Granularity{Hourly, Daily, Weekly, Monthly, Yearly}

func ParseGranularity(s string) (Granularity, error) {
	g := Granularity(strings.ToLower(strings.TrimSpace(s)))
	if !g.Valid() {
		return "", fmt.Errorf("%w: unknown granularity %q", ErrInvalidWindow, s)
	}
	return g, nil
}

func (g Granularity) Valid() bool {
	switch g {
	case Hourly, Daily, Weekly, Monthly, Yearly:
		return true
	}
	return false
}

// Title is the capitalised name used in file names ("Daily", "Hourly").
func (g Granularity) Title() string {
	if g == "" {
		return ""
	}
	return strings.ToUpper(string(g[:1])) + string(g[1:])
}
