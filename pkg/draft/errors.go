package draft

import (
	"errors"
	"fmt"
)

// Errors
var (
	ErrUninitialized    = errors.New("draft is not initialized")
	ErrUnknownSection   = errors.New("unknown section")
	ErrWrongKind        = errors.New("operation not supported for this section kind")
	ErrRecordNotFound   = errors.New("record not found in section")
	ErrDuplicateID      = errors.New("duplicate record id in section")
	ErrImmutableField   = errors.New("field cannot be changed")
	ErrBadPermutation   = errors.New("reorder ids must be a permutation of the section ids")
	ErrSchemaCycle      = errors.New("section foreign keys form a cycle")
	ErrSaveInProgress   = errors.New("a save is already in progress")
	ErrUnknownCommand   = errors.New("unknown command type")
	ErrUnresolvedTempID = errors.New("temporary id has no server id")
)

// Op names the persistence operation that failed during a publish.
type Op string

const (
	OpCreate  Op = "create"
	OpUpdate  Op = "update"
	OpDelete  Op = "delete"
	OpReorder Op = "reorder"
)

// PersistenceError is returned by Publish when a writer call fails.
// The snapshot is never advanced when a PersistenceError is returned.
type PersistenceError struct {
	Section string
	Op      Op
	ID      int64
	Err     error
}

func (e *PersistenceError) Error() string {
	if e.ID != 0 {
		return fmt.Sprintf("publish %s: %s %d: %v", e.Section, e.Op, e.ID, e.Err)
	}
	return fmt.Sprintf("publish %s: %s: %v", e.Section, e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
