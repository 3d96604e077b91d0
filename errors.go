package dsmt

import "errors"

var (
	// ErrMalformed reports a formula node that violates its kind's shape.
	ErrMalformed = errors.New("malformed formula")

	// ErrLiteral reports a literal payload that does not denote a bit pattern.
	ErrLiteral = errors.New("invalid literal")

	// ErrUnsupported is returned by backends for kinds or sorts they cannot
	// express.
	ErrUnsupported = errors.New("unsupported by backend")
)
