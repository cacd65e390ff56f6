package holders

import (
	"sort"

	"github.com/curtinfy/clearholders/pkg/devkind"
)

// RegistryEntry is one device's resolved teardown level, per spec.md §3.
type RegistryEntry struct {
	Device string
	Level  int
	Kind   devkind.Kind
}

// Registry maps canonical sysfs path to its resolved teardown entry.
type Registry map[string]RegistryEntry

// Plan flattens one or more holders trees into a registry and returns the
// globally ordered teardown schedule (spec.md C4 / plan_shutdown_holder_trees).
//
// Accepts either a single tree or a sequence of trees assumed to start at a
// comparable base layer. The overwrite-then-recurse max-level reconciliation
// is the central correctness property of the planner: see the worked
// bcache-over-RAID-plus-cache-disk example in spec.md §4.4.
func Plan(trees []*Node) []RegistryEntry {
	reg := make(Registry)
	for _, tree := range trees {
		flatten(reg, tree, 0)
	}
	return reg.Schedule()
}

// flatten is the recursive core described in spec.md §4.4:
//  1. if the device is already registered, the level to use is the max of
//     the existing and incoming level;
//  2. the registry entry is (over)written unconditionally at that level;
//  3. every holder is visited at level+1, so a level increase discovered
//     via one path propagates down into every holder reachable from this
//     node, regardless of which path reached it first.
func flatten(reg Registry, tree *Node, level int) {
	device := tree.Device

	if existing, ok := reg[device]; ok && existing.Level > level {
		level = existing.Level
	}

	reg[device] = RegistryEntry{Device: device, Level: level, Kind: tree.Kind}

	for _, holder := range tree.Holders {
		flatten(reg, holder, level+1)
	}
}

// Schedule returns the registry's entries sorted by descending level
// (deepest dependents first). Ties within a level are unordered: spec.md §9
// open question 3 explicitly leaves within-level order unspecified.
func (reg Registry) Schedule() []RegistryEntry {
	entries := make([]RegistryEntry, 0, len(reg))
	for _, e := range reg {
		entries = append(entries, e)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Level > entries[j].Level
	})
	return entries
}
