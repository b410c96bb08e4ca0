package deps

import (
	"errors"
	"fmt"
)

var (
	// ErrNoTarget is returned when content is rendered without a target.
	ErrNoTarget = errors.New("deps: no render target")

	// ErrUnsupportedScheme is returned for resource URLs no fetcher handles.
	ErrUnsupportedScheme = errors.New("deps: unsupported resource URL scheme")
)

// LoadError reports a dependency that failed to load.
type LoadError struct {
	Name    string
	Version string
	URL     string
	Err     error
}

func (e *LoadError) Error() string {
	if e.URL != "" {
		return fmt.Sprintf("deps: load %s@%s (%s): %v", e.Name, e.Version, e.URL, e.Err)
	}
	return fmt.Sprintf("deps: load %s@%s: %v", e.Name, e.Version, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}
