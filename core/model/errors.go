package model

import "errors"

var (
	// ErrInvalidTask is returned when task level data is inconsistent.
	ErrInvalidTask = errors.New("invalid task")
	// ErrInvalidContract is returned by NewContract.
	ErrInvalidContract = errors.New("invalid contract")
	// ErrInvalidStorage is returned by NewStorage.
	ErrInvalidStorage = errors.New("invalid storage")
	// ErrInvalidMovableDemand is returned by NewMovableDemand.
	ErrInvalidMovableDemand = errors.New("invalid movable demand")
	// ErrInvalidSumConstraint is returned by NewSumConstraint.
	ErrInvalidSumConstraint = errors.New("invalid sum constraint")
)
