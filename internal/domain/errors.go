package domain

import "errors"

var (
	// ErrBetNotFound is returned when a bet id resolves to no questions.
	ErrBetNotFound = errors.New("bet not found")
	// ErrMissingListItem is returned when a list-type solution or answer is
	// recorded without a list item id.
	ErrMissingListItem = errors.New("list value requires a list item id")
	// ErrUnknownResultType is returned when a solution is recorded against an
	// unsupported result type label.
	ErrUnknownResultType = errors.New("unknown result type")
	// ErrSequenceNotFound indicates the requested standings sequence does not
	// exist for the given scope.
	ErrSequenceNotFound = errors.New("standings sequence not found")
)
