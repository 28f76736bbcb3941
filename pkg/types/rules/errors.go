package rules

import (
	"github.com/pkg/errors"
)

// ErrorKind classifies failures surfaced by the rule stores.
type ErrorKind string

const (
	KindNone          ErrorKind = ""
	KindAlreadyExists ErrorKind = "AlreadyExists"
	KindNotFound      ErrorKind = "NotFound"
	KindUserCancelled ErrorKind = "UserCancelled"
	KindUnknownIO     ErrorKind = "UnknownIOError"
)

var (
	// ErrAlreadyExists is returned when creating a rule file that exists.
	ErrAlreadyExists = errors.New("already exists")
	// ErrNotFound is returned when a rule file or global rule is missing.
	ErrNotFound = errors.New("not found")
	// ErrUserCancelled is returned when the user declines a confirmation.
	ErrUserCancelled = errors.New("cancelled by user")
	// ErrUnknownIO marks file system failures with no more specific kind.
	ErrUnknownIO = errors.New("unknown I/O error")
)

// KindOf classifies err. Errors that do not wrap one of the sentinels are
// reported as KindUnknownIO.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrAlreadyExists):
		return KindAlreadyExists
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrUserCancelled):
		return KindUserCancelled
	default:
		return KindUnknownIO
	}
}
