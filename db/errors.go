package db

import "github.com/juju/errors"

// Sentinel engine errors. Command handlers translate ErrTypeMismatch,
// ErrNotInteger and ErrNotFloat into the typed, client-visible errors of
// command/errors.go; the others reach clients with their own text. The
// engine itself
// never formats a "ERR ..." string, since client-visible domain errors
// are a command-layer concern.
var (
	ErrKeyNotFound    = errors.New("key not found")
	ErrTypeMismatch   = errors.New("value is not a hash")
	ErrFieldTooLong   = errors.New("field length exceeds hash-max-listpack-value")
	ErrValueTooLong   = errors.New("value length exceeds hash-max-listpack-value")
	ErrNotInteger     = errors.New("value is not an integer")
	ErrNotFloat       = errors.New("value is not a valid float")
	ErrIncrOverflow   = errors.New("increment or decrement would overflow")
	ErrNaNOrInfinity  = errors.New("increment would produce NaN or Infinity")
	ErrInvalidLength  = errors.New("invalid encoded length")
	ErrCorrupt        = errors.New("listpack corruption detected")
	ErrOutOfMemory    = errors.New("out of memory")
	ErrNoConditionMet = errors.New("no condition met")
)

// annotate wraps a lower-level error with the operation that observed it,
// using juju/errors so the original cause survives errors.Cause(err).
func annotate(err error, what string) error {
	if err == nil {
		return nil
	}
	return errors.Annotate(err, what)
}
