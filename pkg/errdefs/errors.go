// Package errdefs defines the error taxonomy shared across the holders
// graph engine: the sentinels below (wrapped with context via fmt.Errorf's
// %w) and two structured error types, so callers can classify those
// failures with errors.Is / errors.As regardless of how deep they were
// wrapped. Other failures (filesystem I/O errors, a malformed LVM name,
// context cancellation) are returned without any of these.
package errdefs

import (
	"errors"
	"fmt"
)

var (
	// ErrNotBlockDevice is returned when a device designator does not
	// resolve to a sysfs block device node.
	ErrNotBlockDevice = errors.New("not a block device")

	// ErrMissingSysfs is returned when a sysfs attribute expected to exist
	// for a given device kind is absent.
	ErrMissingSysfs = errors.New("required sysfs attribute missing")

	// ErrAlreadyGone marks a recoverable condition: the device (or its
	// backing layer) was already torn down by a prior or sibling action.
	// Kind actions return it wrapped; the dispatcher logs it and continues.
	ErrAlreadyGone = errors.New("device already gone")

	// ErrExtendedPartitionPhantom marks the wipe-of-extended-partition
	// ENXIO condition. WipeSuperblock returns it wrapped; the dispatcher
	// logs it and continues.
	ErrExtendedPartitionPhantom = errors.New("phantom extended partition")
)

// CommandFailedError wraps an external command's unexpected non-zero exit.
type CommandFailedError struct {
	Command string
	RC      int
	Stderr  string
}

func (e *CommandFailedError) Error() string {
	return fmt.Sprintf("command %q failed with rc=%d: %s", e.Command, e.RC, e.Stderr)
}

// NotClearError is raised only by AssertClear; it carries the rendered tree
// so the caller can present the offending storage stack to the operator.
type NotClearError struct {
	Rendered string
}

func (e *NotClearError) Error() string {
	return fmt.Sprintf("storage not clear, remaining:\n%s", e.Rendered)
}

func IsNotBlockDevice(err error) bool { return errors.Is(err, ErrNotBlockDevice) }
func IsMissingSysfs(err error) bool   { return errors.Is(err, ErrMissingSysfs) }
func IsAlreadyGone(err error) bool    { return errors.Is(err, ErrAlreadyGone) }

func IsExtendedPartitionPhantom(err error) bool {
	return errors.Is(err, ErrExtendedPartitionPhantom)
}

func IsCommandFailed(err error) bool {
	var cfe *CommandFailedError
	return errors.As(err, &cfe)
}

func IsNotClear(err error) bool {
	var nce *NotClearError
	return errors.As(err, &nce)
}
