package holders

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curtinfy/clearholders/pkg/devkind"
)

// countingSettler records how many times Settle was invoked, so tests can
// check the settle-after-every-action contract (spec.md §8 property 6).
type countingSettler struct {
	calls int
	err   error
}

func (s *countingSettler) Settle(ctx context.Context) error {
	s.calls++
	return s.err
}

func TestDispatchSettlesAfterEveryAction(t *testing.T) {
	root, probe := fixture(t)
	mkDisk(t, root, "sda")
	mkPartition(t, root, "sda", "sda1", 1)
	mkPartition(t, root, "sda", "sda2", 2)

	runner := newFakeRunner()
	actions := NewActions(probe, runner)
	settler := &countingSettler{}
	d := NewDispatcher(actions, settler)

	schedule := []RegistryEntry{
		{Device: filepath.Join(root, "sda", "sda1"), Level: 1, Kind: devkind.Partition},
		{Device: filepath.Join(root, "sda", "sda2"), Level: 1, Kind: devkind.Partition},
		{Device: filepath.Join(root, "sda"), Level: 0, Kind: devkind.Disk},
	}

	err := d.Dispatch(context.Background(), schedule)
	require.NoError(t, err)
	assert.Equal(t, 3, settler.calls)
}

func TestDispatchAbortsOnFirstUnrecoveredFailure(t *testing.T) {
	root, probe := fixture(t)
	mkDisk(t, root, "sda")
	mkPartition(t, root, "sda", "sda1", 1)

	runner := newFakeRunner()
	devPath := probe.DevPath("sda1")
	runner.script(1, "", "permission denied", "wipefs", "--all", devPath)

	actions := NewActions(probe, runner)
	settler := &countingSettler{}
	d := NewDispatcher(actions, settler)

	schedule := []RegistryEntry{
		{Device: filepath.Join(root, "sda", "sda1"), Level: 1, Kind: devkind.Partition},
		{Device: filepath.Join(root, "sda"), Level: 0, Kind: devkind.Disk},
	}

	err := d.Dispatch(context.Background(), schedule)
	assert.Error(t, err)
	assert.Equal(t, 0, settler.calls)
}

func TestDispatchContinuesPastRecoveredAlreadyGone(t *testing.T) {
	root, probe := fixture(t)
	mkDisk(t, root, "bcache0")
	mkDisk(t, root, "sda")

	actions := NewActions(probe, newFakeRunner())
	settler := &countingSettler{}
	d := NewDispatcher(actions, settler)

	schedule := []RegistryEntry{
		{Device: filepath.Join(root, "bcache0"), Level: 1, Kind: devkind.Bcache},
		{Device: filepath.Join(root, "sda"), Level: 0, Kind: devkind.Disk},
	}

	err := d.Dispatch(context.Background(), schedule)
	require.NoError(t, err)
	assert.Equal(t, 2, settler.calls)
}

func TestDispatchSkipsKindWithNoAction(t *testing.T) {
	root, probe := fixture(t)
	mkDisk(t, root, "sda")

	actions := &Actions{Probe: probe, Runner: newFakeRunner()}
	settler := &countingSettler{}
	d := NewDispatcher(actions, settler)

	schedule := []RegistryEntry{
		{Device: filepath.Join(root, "sda"), Level: 0, Kind: devkind.Kind("unknown")},
	}

	err := d.Dispatch(context.Background(), schedule)
	require.NoError(t, err)
	assert.Equal(t, 0, settler.calls)
}

