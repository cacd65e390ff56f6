// Package holders implements the core of the holders graph engine: tree
// construction (C3), the teardown planner (C4), the shutdown dispatcher
// (C5), and the per-kind shutdown actions (C6). See spec.md §3-§4 and
// DESIGN.md for the grounding of each piece in
// curtin/block/clear_holders.py.
package holders

import (
	"context"
	"fmt"

	"github.com/curtinfy/clearholders/pkg/devkind"
	"github.com/curtinfy/clearholders/pkg/log"
	"github.com/curtinfy/clearholders/pkg/sysfs"
)

// Node is a holders-tree node: a device, its storage kind, and the ordered
// sequence of devices that depend on it.
type Node struct {
	Device  string
	Kind    devkind.Kind
	Holders []*Node
}

// Builder constructs holders trees by recursing over a Probe.
type Builder struct {
	Probe *sysfs.Probe
}

// NewBuilder returns a Builder backed by the given probe.
func NewBuilder(probe *sysfs.Probe) *Builder {
	return &Builder{Probe: probe}
}

// BuildTree canonicalizes designator and recursively constructs the holders
// tree rooted at it (spec.md C3 / gen_holders_tree). Termination is
// guaranteed by the acyclicity of the sysfs holders graph: a node with no
// holders and no partitions is a leaf.
func (b *Builder) BuildTree(ctx context.Context, designator string) (*Node, error) {
	path, err := b.Probe.Canonicalize(designator)
	if err != nil {
		return nil, err
	}
	return b.buildTreeForPath(ctx, path)
}

func (b *Builder) buildTreeForPath(ctx context.Context, path string) (*Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	holderNames, err := b.Probe.ListHolders(path)
	if err != nil {
		return nil, fmt.Errorf("list holders of %q: %w", path, err)
	}

	holderPaths := make([]string, 0, len(holderNames))
	for _, h := range holderNames {
		hp, err := b.Probe.Canonicalize(h)
		if err != nil {
			return nil, fmt.Errorf("canonicalize holder %q of %q: %w", h, path, err)
		}
		holderPaths = append(holderPaths, hp)
	}

	partitionPaths, err := b.Probe.ListPartitions(path)
	if err != nil {
		return nil, fmt.Errorf("list partitions of %q: %w", path, err)
	}

	// holders/ entries union partition subdirectories, holders first, in
	// the order sysfs reported them -- matches gen_holders_tree's
	// concatenation of get_holders(...) + get_sysfs_partitions(...).
	childPaths := append(holderPaths, partitionPaths...)

	kind := devkind.Classify(func(subfile string) bool {
		return b.Probe.SubfileExists(path, subfile)
	})

	children := make([]*Node, 0, len(childPaths))
	for _, cp := range childPaths {
		child, err := b.buildTreeForPath(ctx, cp)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}

	log.Logger.Debugw("built holders tree node", "device", path, "kind", kind, "holders", len(children))

	return &Node{Device: path, Kind: kind, Holders: children}, nil
}
