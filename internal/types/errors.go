package types

import "errors"

// Domain error taxonomy. Services return these (optionally wrapped);
// pkg/response maps them to HTTP statuses at the request boundary.
var (
	ErrNotFound            = errors.New("resource not found")
	ErrForbidden           = errors.New("forbidden")
	ErrBanned              = errors.New("account is banned")
	ErrInvalidTransition   = errors.New("illegal status transition")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidPayment      = errors.New("invalid payment details")
	ErrDuplicatePending    = errors.New("a pending request already exists")
	ErrOrderFinal          = errors.New("order is in a terminal status")
	ErrAlreadyFinal        = errors.New("record is in a terminal status")
	ErrNotReady            = errors.New("order is not ready to be received")
	ErrBelowMinimum        = errors.New("amount is below the minimum")
	ErrValidation          = errors.New("validation failed")
)
