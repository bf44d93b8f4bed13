package kms

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig rejects a proposed state at check time. Nothing is mutated.
	ErrInvalidConfig = errors.New("invalid plane configuration")
	// ErrNoMemory is returned when a plane state cannot be allocated.
	ErrNoMemory = errors.New("out of plane state memory")
	// ErrInitFailed is returned when a plane cannot be registered.
	ErrInitFailed = errors.New("plane initialization failed")
	// ErrIDOutOfRange rejects sprite registration beyond the pool size.
	ErrIDOutOfRange = errors.New("identifier out of range")
	// ErrScalerBusy rejects a second scaler user within one commit cycle.
	ErrScalerBusy = fmt.Errorf("%w: scaler already claimed in this cycle", ErrInvalidConfig)
)
