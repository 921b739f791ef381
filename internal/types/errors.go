package types

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("not found")

	// ErrUpstream marks network or parse failures from the upstream data source. Never cached.
	ErrUpstream = errors.New("upstream data source error")
	// ErrConfig marks invalid or degenerate configuration. Fatal at startup.
	ErrConfig = errors.New("invalid config")
	// ErrRateLimitTimeout is returned when a caller gives up waiting for rate-limit capacity.
	ErrRateLimitTimeout = errors.New("rate limit wait timed out")

	ErrInvalidBackend    = errors.New("invalid backend")
	ErrSnapshotAccess    = errors.New("snapshot store read/write error")
	ErrUnknownRenderItem = errors.New("unknown content item")
)

func Err(typedError error, innerErr error, msgTemplate string, args ...any) error {
	if msgTemplate == "" {
		return errors.Join(typedError, innerErr)
	} else {
		return errors.Join(typedError, innerErr, fmt.Errorf(msgTemplate, args...))
	}
}
