package core

import (
	"errors"
	"fmt"

	"github.com/git-pkgs/slopguard/client"
)

// ErrNotFound is returned when a package does not exist in its registry.
var ErrNotFound = errors.New("not found")

// NotFoundError wraps ErrNotFound with ecosystem context.
type NotFoundError struct {
	Ecosystem string
	Name      string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: package %s not found", e.Ecosystem, e.Name)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// IsNotFound reports whether err means the package does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// AbsentFromRegistry reports whether an HTTP-layer error means the
// registry has nothing usable for this package: a 404/410 or a response
// body that would not decode.
func AbsentFromRegistry(err error) bool {
	return client.IsNotFound(err) || errors.Is(err, client.ErrBadPayload)
}
