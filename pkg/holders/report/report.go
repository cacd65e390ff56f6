// Package report implements the holders graph engine's inspection surface
// (spec.md C7): ASCII tree rendering, pre-order kind flattening, the
// assert-clear invariant check, and a tabular schedule rendering.
package report

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/curtinfy/clearholders/pkg/devkind"
	"github.com/curtinfy/clearholders/pkg/errdefs"
	"github.com/curtinfy/clearholders/pkg/holders"
)

// FormatTree renders tree in the style of `tree --charset=ascii`: "`-- "
// for the last child of a group, "|-- " for non-last siblings, with
// continuation prefixes "    " and "|   " respectively (spec.md §4.7 /
// format_holders_tree).
func FormatTree(tree *holders.Node) string {
	lines := formatTreeLines(tree)
	return strings.Join(lines, "\n")
}

func formatTreeLines(tree *holders.Node) []string {
	result := []string{filepath.Base(tree.Device)}
	n := len(tree.Holders)
	for i, holder := range tree.Holders {
		last := i == n-1
		branch, continuation := "|-- ", "|   "
		if last {
			branch, continuation = "`-- ", "    "
		}
		sub := formatTreeLines(holder)
		for j, line := range sub {
			if j == 0 {
				result = append(result, branch+line)
			} else {
				result = append(result, continuation+line)
			}
		}
	}
	return result
}

// KindAtPath pairs a device's kind with its canonical sysfs path, as
// yielded by FlattenKinds.
type KindAtPath struct {
	Kind   devkind.Kind
	Device string
}

// FlattenKinds walks tree pre-order, yielding every node's kind and device
// path (spec.md C7 / get_holder_types).
func FlattenKinds(tree *holders.Node) []KindAtPath {
	out := []KindAtPath{{Kind: tree.Kind, Device: tree.Device}}
	for _, holder := range tree.Holders {
		out = append(out, FlattenKinds(holder)...)
	}
	return out
}

// AssertClear checks the given trees (one already built per base) and fails with
// errdefs.NotClearError if any visited node has a kind outside
// {disk, partition} AND is not itself one of the base devices (spec.md C7 /
// assert_clear). A device named directly as a base is considered clear
// regardless of its own kind; only its holders must be disk/partition.
func AssertClear(trees []*holders.Node, bases []string) error {
	baseSet := make(map[string]struct{}, len(bases))
	for _, b := range bases {
		baseSet[b] = struct{}{}
	}

	for _, tree := range trees {
		for _, kp := range FlattenKinds(tree) {
			if kp.Kind == devkind.Disk || kp.Kind == devkind.Partition {
				continue
			}
			if _, isBase := baseSet[kp.Device]; isBase {
				continue
			}
			return &errdefs.NotClearError{Rendered: FormatTree(tree)}
		}
	}
	return nil
}

// RenderScheduleTable renders a planner schedule as an ASCII table
// (level, kind, device), in the style of components/disk's checkResult
// table rendering.
func RenderScheduleTable(w *bytes.Buffer, schedule []holders.RegistryEntry) {
	table := tablewriter.NewWriter(w)
	table.SetAlignment(tablewriter.ALIGN_CENTER)
	table.SetHeader([]string{"Level", "Kind", "Device"})
	for _, entry := range schedule {
		table.Append([]string{
			fmt.Sprintf("%d", entry.Level),
			string(entry.Kind),
			filepath.Base(entry.Device),
		})
	}
	table.Render()
}
