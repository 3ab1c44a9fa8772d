package vm

import "errors"

var (
	ErrStackOverflow     = errors.New("stack overflow")
	ErrStackUnderflow    = errors.New("stack underflow")
	ErrProgramTooLarge   = errors.New("program too large")
	ErrMemoryOutOfBounds = errors.New("memory access out of bounds")
	ErrInvalidConfig     = errors.New("invalid config")

	// Returned by a HAL to stop Run.
	ErrQuit   = errors.New("quit")
	ErrReboot = errors.New("reboot")
)
