package core

import "errors"

// Sentinel errors for the ledger operations. Callers match them with
// errors.Is; every operation either fully succeeds or fails with one of
// these, leaving state untouched.
var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrUnauthorized     = errors.New("not authorized")
	ErrExpired          = errors.New("funding window expired")
	ErrPolicyViolation  = errors.New("policy violation")
	ErrAlreadyExists    = errors.New("already exists")
	ErrAlreadyProcessed = errors.New("already processed")
	ErrIndexOutOfRange  = errors.New("index out of range")
)
