// Package apperrors classifies errors surfaced by internal/actions and
// internal/syncengine into the four user-visible exit doors spec §7 allows:
// validation, storage/network retry, conflict, or catastrophic schema
// corruption. Apart from ErrValidation it names no sentinel errors of its own — it recognizes
// the ones each owning package already defines (persistence.ErrUnavailable,
// syncengine.ErrConflict, and so on) and ranks them, the same way the
// teacher keeps error *values* local to the package that raises them but
// gives its CLI a single place that decides how to report them.
package apperrors

import (
	"errors"
	"fmt"

	"github.com/askesis/askesis/internal/cryptoworker"
	"github.com/askesis/askesis/internal/migrations"
	"github.com/askesis/askesis/internal/persistence"
	"github.com/askesis/askesis/internal/syncengine"
)

// Door is one of the four user-visible failure categories spec §7 names.
type Door int

const (
	// DoorNone means err was nil; there is nothing to report.
	DoorNone Door = iota
	// DoorValidation means "nothing happened" — the caller's input was
	// rejected before any state changed.
	DoorValidation
	// DoorRetry means "try again later" — a transient storage or network
	// failure.
	DoorRetry
	// DoorConflict means "resolve a conflict" — a 409 sync race.
	DoorConflict
	// DoorCorrupt means "your data looks corrupted, import a backup" — a
	// top-level schema parse failure past what migration could tolerate.
	DoorCorrupt
)

// ErrValidation is returned by internal/actions callers (and CLI flag
// parsing) for input-level rejections: empty name, duplicate name,
// malformed date. It carries no state change with it.
var ErrValidation = errors.New("apperrors: validation failed")

// Classify maps err to the exit door a CLI or UI collaborator should report
// through, per spec §7's propagation policy. An unrecognized error defaults
// to DoorRetry, since most unclassified failures in this codebase bubble up
// from a transient I/O boundary.
func Classify(err error) Door {
	if err == nil {
		return DoorNone
	}
	switch {
	case errors.Is(err, ErrValidation):
		return DoorValidation
	case errors.Is(err, syncengine.ErrConflict):
		return DoorConflict
	case errors.Is(err, syncengine.ErrUnauthorized):
		return DoorRetry // spec §7: 401 resets sync state, not a hard failure
	case errors.Is(err, persistence.ErrUnavailable):
		return DoorRetry
	case errors.Is(err, cryptoworker.ErrCryptoFailed):
		return DoorRetry
	case errors.Is(err, migrations.ErrSchemaCorrupt):
		return DoorCorrupt
	default:
		return DoorRetry
	}
}

// Message renders the exit door as the short user-facing text spec §7
// prescribes. Callers needing more detail should log err separately —
// this string is deliberately generic.
func Message(d Door) string {
	switch d {
	case DoorNone:
		return ""
	case DoorValidation:
		return "nothing happened"
	case DoorRetry:
		return "try again later"
	case DoorConflict:
		return "resolve a conflict"
	case DoorCorrupt:
		return "your data looks corrupted, import a backup"
	default:
		panic(fmt.Sprintf("apperrors: unhandled Door tag %d", int(d)))
	}
}
