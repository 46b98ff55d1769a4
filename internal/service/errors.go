package service

import "errors"

// Sentinel errors for the two business failure families the authority can
// return. Handlers translate them to distinct HTTP statuses so clients can
// tell a terminal business rejection from a transient failure.
var (
	// ErrInsufficientStock means applying the operation would drive an
	// (item, location) balance below zero. The whole batch was rejected;
	// nothing was written. Retrying without changing stock will not succeed.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrValidation covers bad input: unknown or inactive item, non-positive
	// quantity, identical transfer endpoints, wrong item type.
	ErrValidation = errors.New("validation failed")
)
