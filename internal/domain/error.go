package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvalidTemplate    = errors.New("invalid message template")
	ErrRunNotFound        = errors.New("broadcast run not found")
	ErrRunAlreadyExists   = errors.New("broadcast run already registered")
	ErrRunFinished        = errors.New("broadcast run already finished")
	ErrBroadcastInFlight  = errors.New("campaign already has a broadcast in flight")
	ErrInvalidExecContext = errors.New("invalid executor context")
)
