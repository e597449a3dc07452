package command

import (
	"errors"
	"fmt"
)

// ErrEmptyCommand is returned by the client loop when it reads a
// zero-argument inline command.
var ErrEmptyCommand = errors.New("ERR empty command")

// ErrTypeMismatch mirrors Redis's WRONGTYPE reply, kept distinct from
// db.ErrTypeMismatch. translateErr (hashes.go) maps db.ErrTypeMismatch,
// db.ErrNotInteger and db.ErrNotFloat to this package's sentinels; any
// other db-level error is passed to the client with its own text.
var ErrTypeMismatch = errors.New("WRONGTYPE Operation against a key holding the wrong kind of value")

// ErrInteger mirrors Redis's "not an integer" reply.
var ErrInteger = errors.New("ERR value is not an integer or out of range")

// ErrFloat mirrors Redis's "not a valid float" reply.
var ErrFloat = errors.New("ERR value is not a valid float")

// ErrSyntax mirrors Redis's generic syntax-error reply, used whenever an
// optional clause (NX/XX/GT/LT, FIELDS, WITHVALUES) doesn't parse.
var ErrSyntax = errors.New("ERR syntax error")

// ErrUnKnownCommand reports a command name the Executor has no handler
// for.
func ErrUnKnownCommand(name string) error {
	return fmt.Errorf("ERR unknown command '%s'", name)
}

// ErrWrongNumberOfArguments reports an arity mismatch for cmd.
func ErrWrongNumberOfArguments(cmd string) error {
	return fmt.Errorf("ERR wrong number of arguments for '%s' command", cmd)
}
