// Package core defines the error kinds shared by the points-economy
// workflows. Every rejected operation surfaces as exactly one of these,
// wrapped with context, so handlers can map them to HTTP statuses with
// errors.Is.
package core

import "errors"

var (
	// ErrNotFound means a referenced kid, chore, reward, claim,
	// redemption, or payout does not exist.
	ErrNotFound = errors.New("not found")

	// ErrNotAssigned means a kid tried to claim a chore they are not
	// assigned to.
	ErrNotAssigned = errors.New("kid is not assigned to this chore")

	// ErrDuplicateClaim means a second claim was attempted while multiple
	// claims per day are disallowed for the chore.
	ErrDuplicateClaim = errors.New("chore already claimed")

	// ErrNotEligible means a kid tried to redeem a reward whose eligible
	// set excludes them.
	ErrNotEligible = errors.New("kid is not eligible for this reward")

	// ErrInsufficientPoints means a redemption or payout request exceeds
	// the kid's current balance.
	ErrInsufficientPoints = errors.New("insufficient points")

	// ErrBelowMinimum means a payout request is below the configured
	// minimum.
	ErrBelowMinimum = errors.New("payout below minimum")

	// ErrInvalidState means a state transition was attempted from a state
	// that does not permit it.
	ErrInvalidState = errors.New("invalid state for operation")

	// ErrValidation means malformed input.
	ErrValidation = errors.New("validation failed")
)
