package remote

import (
	"errors"
	"fmt"

	"github.com/pulseengine/component-resolver/internal/registry"
)

// ErrNotFound marks a reference no source version satisfies. It is never
// retried.
var ErrNotFound = registry.ErrNotFound

// RemoteFetchError reports a failed remote resolution. It only fails the
// compositions that reference Ref.
type RemoteFetchError struct {
	Ref    string
	Source string
	Err    error
}

func (e *RemoteFetchError) Error() string {
	return fmt.Sprintf("fetch remote component %q from source %q: %v", e.Ref, e.Source, e.Err)
}

func (e *RemoteFetchError) Unwrap() error { return e.Err }

// IsNotFound reports whether err means the reference does not exist.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
