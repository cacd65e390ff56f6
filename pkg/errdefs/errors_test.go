package errdefs

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSentinelPredicates(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		checkFn func(error) bool
	}{
		{"direct not block device", ErrNotBlockDevice, IsNotBlockDevice},
		{"wrapped not block device", fmt.Errorf("canonicalize vdb9: %w", ErrNotBlockDevice), IsNotBlockDevice},
		{"direct missing sysfs", ErrMissingSysfs, IsMissingSysfs},
		{"wrapped missing sysfs", fmt.Errorf("bcache cache: %w", ErrMissingSysfs), IsMissingSysfs},
		{"direct already gone", ErrAlreadyGone, IsAlreadyGone},
		{"wrapped already gone", fmt.Errorf("lvremove rc=5: %w", ErrAlreadyGone), IsAlreadyGone},
		{"direct phantom partition", ErrExtendedPartitionPhantom, IsExtendedPartitionPhantom},
		{"wrapped phantom partition", fmt.Errorf("wipe sda5: %w", ErrExtendedPartitionPhantom), IsExtendedPartitionPhantom},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.checkFn(tt.err))
		})
	}
}

func TestSentinelPredicatesFalseForUnrelated(t *testing.T) {
	other := fmt.Errorf("some other failure")
	assert.False(t, IsNotBlockDevice(other))
	assert.False(t, IsMissingSysfs(other))
	assert.False(t, IsAlreadyGone(other))
	assert.False(t, IsExtendedPartitionPhantom(other))
	assert.False(t, IsCommandFailed(other))
	assert.False(t, IsNotClear(other))
}

func TestCommandFailedError(t *testing.T) {
	err := &CommandFailedError{Command: "lvremove", RC: 1, Stderr: "device busy"}
	assert.True(t, IsCommandFailed(err))
	wrapped := fmt.Errorf("dispatch: %w", err)
	assert.True(t, IsCommandFailed(wrapped))
	assert.Contains(t, err.Error(), "lvremove")
	assert.Contains(t, err.Error(), "device busy")
}

func TestNotClearError(t *testing.T) {
	err := &NotClearError{Rendered: "sda\n`-- sda1\n"}
	assert.True(t, IsNotClear(err))
	wrapped := fmt.Errorf("assert: %w", err)
	assert.True(t, IsNotClear(wrapped))
	assert.Contains(t, err.Error(), "sda1")
}
