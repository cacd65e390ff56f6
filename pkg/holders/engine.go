package holders

import (
	"context"
	"fmt"
	"time"

	"github.com/curtinfy/clearholders/pkg/holders/metrics"
	"github.com/curtinfy/clearholders/pkg/holders/report"
	"github.com/curtinfy/clearholders/pkg/log"
	"github.com/curtinfy/clearholders/pkg/runnerexec"
	"github.com/curtinfy/clearholders/pkg/sysfs"
)

// Engine wires the sysfs probe, tree builder, planner, and dispatcher into
// the named entrypoints spec.md §6 exposes to callers: ClearHolders,
// AssertClear, GenHoldersTree, PlanShutdownHolderTrees, FormatHoldersTree.
type Engine struct {
	Probe      *sysfs.Probe
	Builder    *Builder
	Dispatcher *Dispatcher
}

// NewEngine builds the default Engine over the given sysfs probe, a
// wipefs/lvremove/mdadm/bcache action table driven by runner, and an
// udevadm-settle barrier also driven by runner.
func NewEngine(probe *sysfs.Probe, runner runnerexec.Runner) *Engine {
	actions := NewActions(probe, runner)
	return &Engine{
		Probe:      probe,
		Builder:    NewBuilder(probe),
		Dispatcher: NewDispatcher(actions, NewUdevadmSettler(runner)),
	}
}

// GenHoldersTree builds the holders tree rooted at a single base device
// designator (spec.md C3 / gen_holders_tree).
func (e *Engine) GenHoldersTree(ctx context.Context, base string) (*Node, error) {
	return e.Builder.BuildTree(ctx, base)
}

// PlanShutdownHolderTrees computes the globally ordered teardown schedule
// for one or more already-built trees (spec.md C4 / plan_shutdown_holder_trees).
func PlanShutdownHolderTrees(trees []*Node) []RegistryEntry {
	schedule := Plan(trees)
	metrics.ScheduleLength.Set(float64(len(schedule)))
	return schedule
}

// FormatHoldersTree renders tree in the ascii-art style spec.md §4.7
// describes (format_holders_tree).
func FormatHoldersTree(tree *Node) string {
	return report.FormatTree(tree)
}

// ClearHolders builds the holders tree for each base, logs it, computes the
// teardown schedule, and dispatches it. It fails on the first unrecovered
// error any kind action below it raises (spec.md §6). Bases are processed
// in the order given; every base's tree is built before any dispatch
// begins, so a resolution failure on a later base never leaves an earlier
// base partially torn down.
func (e *Engine) ClearHolders(ctx context.Context, bases []string) error {
	trees := make([]*Node, 0, len(bases))
	for _, base := range bases {
		tree, err := e.GenHoldersTree(ctx, base)
		if err != nil {
			return fmt.Errorf("build holders tree for %q: %w", base, err)
		}
		trees = append(trees, tree)
	}

	for _, tree := range trees {
		log.Logger.Infow("current device storage tree", "tree", "\n"+FormatHoldersTree(tree))
	}

	schedule := PlanShutdownHolderTrees(trees)

	start := time.Now()
	err := e.Dispatcher.Dispatch(ctx, schedule)
	elapsed := time.Since(start).Seconds()

	outcome := "ok"
	if err != nil {
		outcome = "failed"
	}
	if n := len(schedule); n > 0 {
		perEntry := elapsed / float64(n)
		for _, entry := range schedule {
			metrics.ActionsTotal.WithLabelValues(string(entry.Kind), outcome).Inc()
			metrics.ActionDurationSeconds.WithLabelValues(string(entry.Kind)).Observe(perEntry)
		}
	}

	if err != nil {
		return fmt.Errorf("clear holders: %w", err)
	}
	return nil
}

// AssertClear builds the holders tree for each base and fails with
// errdefs.NotClearError if any remaining device outside the base set is not
// a disk or partition (spec.md C7 / assert_clear). It is inspection only:
// it never invokes a shutdown action.
func (e *Engine) AssertClear(ctx context.Context, bases []string) error {
	trees := make([]*Node, 0, len(bases))
	for _, base := range bases {
		tree, err := e.GenHoldersTree(ctx, base)
		if err != nil {
			return fmt.Errorf("build holders tree for %q: %w", base, err)
		}
		trees = append(trees, tree)
	}
	canonicalBases := make([]string, 0, len(bases))
	for _, tree := range trees {
		canonicalBases = append(canonicalBases, tree.Device)
	}
	return report.AssertClear(trees, canonicalBases)
}
