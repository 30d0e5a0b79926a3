package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrUnknownCategory = errors.New("unknown category")

	// ErrInconsistentRollover means an archive and its counter reset were not
	// applied together. It is a data-integrity alarm and must not be retried.
	ErrInconsistentRollover = errors.New("inconsistent rollover state")

	ErrCounterNotFound = errors.New("live counter not found")
)

// FetchError reports a failed read from the event or counter store together
// with what was being read, so the caller can retry the same request.
type FetchError struct {
	Op         string
	Categories []Category
	Start      time.Time
	End        time.Time
	Err        error
}

func (e *FetchError) Error() string {
	names := make([]string, len(e.Categories))
	for i, c := range e.Categories {
		names[i] = c.String()
	}
	what := e.Op + " " + strings.Join(names, ",")
	if e.Start.IsZero() && e.End.IsZero() {
		return fmt.Sprintf("%s: %v", what, e.Err)
	}
	return fmt.Sprintf("%s [%s, %s): %v", what,
		e.Start.Format(time.RFC3339), e.End.Format(time.RFC3339), e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }
