package prerender

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidPattern is returned when a blacklist or whitelist entry does
	// not compile.
	ErrInvalidPattern = errors.New("invalid pattern")
	// ErrInvalidURL is returned when the observed or configured URL cannot be parsed.
	ErrInvalidURL = errors.New("invalid url")
	// ErrUpstreamUnavailable is returned when no response could be obtained
	// from the rendering service at all.
	ErrUpstreamUnavailable = errors.New("rendering service unavailable")
)

type PatternError struct {
	List    string
	Index   int
	Pattern string
	Err     error
}

func (e *PatternError) Error() string {
	return fmt.Sprintf("%s[%d] %q: %v", e.List, e.Index, e.Pattern, e.Err)
}

func (e *PatternError) Unwrap() []error {
	return []error{ErrInvalidPattern, e.Err}
}
