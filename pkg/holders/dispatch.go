package holders

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/curtinfy/clearholders/pkg/errdefs"
	"github.com/curtinfy/clearholders/pkg/log"
	"github.com/curtinfy/clearholders/pkg/runnerexec"
)

// Settler is the kernel uevent-settle barrier: it must complete before the
// next shutdown action starts (spec.md §5/§6). The real implementation
// shells out to "udevadm settle"; tests substitute a no-op or a call-
// counting fake.
type Settler interface {
	Settle(ctx context.Context) error
}

// udevadmSettler is the real Settler, backed by the injected command
// runner so it shares the same fake-substitution seam as the kind actions.
type udevadmSettler struct {
	runner runnerexec.Runner
}

// NewUdevadmSettler builds the real settle barrier.
func NewUdevadmSettler(runner runnerexec.Runner) Settler {
	return &udevadmSettler{runner: runner}
}

func (s *udevadmSettler) Settle(ctx context.Context) error {
	res, err := s.runner.Run(ctx, "udevadm", "settle")
	if err != nil {
		return fmt.Errorf("udevadm settle: %w", err)
	}
	if res.RC != 0 {
		return fmt.Errorf("udevadm settle: %w", &errdefs.CommandFailedError{
			Command: "udevadm settle", RC: res.RC, Stderr: res.Stderr,
		})
	}
	return nil
}

// Dispatcher runs the shutdown action for each scheduled entry, in order,
// settling the kernel uevent queue after every successful action (spec.md C5).
type Dispatcher struct {
	Actions *Actions
	Settler Settler
}

// NewDispatcher builds a Dispatcher over the given actions and settle
// barrier.
func NewDispatcher(actions *Actions, settler Settler) *Dispatcher {
	return &Dispatcher{Actions: actions, Settler: settler}
}

// Dispatch invokes each schedule entry's kind action in the given order,
// settling after every successful action. Entries whose kind has no
// registered action are skipped. An action error wrapping
// errdefs.ErrAlreadyGone or errdefs.ErrExtendedPartitionPhantom is a
// recovered condition, not a failure: a sibling teardown (or a prior,
// interrupted run) may already have removed the holder, so dispatch logs it
// and continues on to settle and the next entry. Any other error is the
// first unrecovered failure: it aborts the loop and is returned, since
// teardown is not transactional and a caller may retry with the same bases
// (spec.md §7).
func (d *Dispatcher) Dispatch(ctx context.Context, schedule []RegistryEntry) error {
	runID := uuid.NewString()

	for _, entry := range schedule {
		action := d.Actions.ActionFor(entry.Kind)
		if action == nil {
			log.Logger.Debugw("no shutdown action for kind, skipping", "run", runID, "device", entry.Device, "kind", entry.Kind)
			continue
		}

		log.Logger.Infow("shutdown running on holder",
			"run", runID, "device", entry.Device, "kind", entry.Kind, "level", entry.Level)

		if err := action(ctx, entry.Device); err != nil {
			if errdefs.IsAlreadyGone(err) || errdefs.IsExtendedPartitionPhantom(err) {
				log.Logger.Infow("shutdown action recovered, continuing teardown",
					"run", runID, "device", entry.Device, "kind", entry.Kind, "error", err)
			} else {
				return fmt.Errorf("run=%s device=%s kind=%s: %w", runID, entry.Device, entry.Kind, err)
			}
		}

		if err := d.Settler.Settle(ctx); err != nil {
			return fmt.Errorf("run=%s settle after device=%s: %w", runID, entry.Device, err)
		}
	}

	return nil
}
