package holders

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/curtinfy/clearholders/pkg/devkind"
	"github.com/curtinfy/clearholders/pkg/errdefs"
	"github.com/curtinfy/clearholders/pkg/log"
	"github.com/curtinfy/clearholders/pkg/runnerexec"
	"github.com/curtinfy/clearholders/pkg/sysfs"
)

// Action is the shared shutdown-function signature for every device kind
// (spec.md §9: "shutdown actions share a single signature").
type Action func(ctx context.Context, path string) error

// Actions bundles the collaborators the C6 kind actions need: sysfs reads
// and the injected command runner.
type Actions struct {
	Probe  *sysfs.Probe
	Runner runnerexec.Runner
}

// NewActions builds the default kind-action table collaborators.
func NewActions(probe *sysfs.Probe, runner runnerexec.Runner) *Actions {
	return &Actions{Probe: probe, Runner: runner}
}

// ActionFor returns the shutdown action for a kind, or nil if the kind has
// no action. Every known kind, including disk, has an action; only a kind
// outside the devkind constants yields nil.
func (a *Actions) ActionFor(kind devkind.Kind) Action {
	switch kind {
	case devkind.Partition, devkind.Disk:
		return a.WipeSuperblock
	case devkind.LVM:
		return a.ShutdownLVM
	case devkind.RAID:
		return a.ShutdownMdadm
	case devkind.Bcache:
		return a.ShutdownBcache
	default:
		return nil
	}
}

// WipeSuperblock invokes the external superblock-wiping primitive on the
// device node corresponding to path. It recovers the "extended partition
// phantom" condition: when the wipe fails because the device node doesn't
// exist (ENXIO-class failure reported as a non-zero exit with no such
// device), and the node's attributes look like a DOS-era extended
// partition container (size is 0 or 2 sectors, a `partition` file exists,
// and the partition index is <= 4), it returns an error wrapping
// errdefs.ErrExtendedPartitionPhantom instead of swallowing the failure
// outright, so the dispatcher (and tests) can tell a recovered phantom
// apart from an ordinary clean wipe.
func (a *Actions) WipeSuperblock(ctx context.Context, path string) error {
	short := a.Probe.ShortName(path)
	devPath := a.Probe.DevPath(short)

	log.Logger.Infow("wiping superblock", "device", path, "devPath", devPath)

	res, err := a.Runner.Run(ctx, "wipefs", "--all", devPath)
	if err != nil {
		return fmt.Errorf("wipe superblock on %q: %w", devPath, err)
	}
	if res.RC == 0 {
		return nil
	}

	if !looksLikeNoSuchDevice(res.Stderr) {
		return fmt.Errorf("wipe superblock on %q: %w", devPath, &errdefs.CommandFailedError{
			Command: "wipefs", RC: res.RC, Stderr: res.Stderr,
		})
	}

	if a.isExtendedPartitionPhantom(path) {
		log.Logger.Debugw("recovered phantom extended partition wipe failure", "device", path)
		return fmt.Errorf("wipe superblock on %q: %w", devPath, errdefs.ErrExtendedPartitionPhantom)
	}

	return fmt.Errorf("wipe superblock on %q: %w", devPath, &errdefs.CommandFailedError{
		Command: "wipefs", RC: res.RC, Stderr: res.Stderr,
	})
}

// looksLikeNoSuchDevice reports whether a command's stderr indicates the
// classic "no such file or device" condition curtin's util.is_file_not_found_exc
// checks for.
func looksLikeNoSuchDevice(stderr string) bool {
	lower := strings.ToLower(stderr)
	return strings.Contains(lower, "no such file") || strings.Contains(lower, "no such device") ||
		strings.Contains(lower, "enxio") || strings.Contains(lower, "enoent")
}

// isExtendedPartitionPhantom implements the DOS-era heuristic from
// wipe_superblock: the node's `size` attribute is 0 or 2 sectors, it has a
// `partition` attribute, and the partition index is <= 4. Any error reading
// these attributes means the heuristic cannot be confirmed, so it reports
// false (the original error propagates).
func (a *Actions) isExtendedPartitionPhantom(path string) bool {
	size, err := a.Probe.ReadAttrInt(filepath.Join(path, "size"))
	if err != nil || (size != 0 && size != 2) {
		return false
	}
	if !a.Probe.Exists(filepath.Join(path, "partition")) {
		return false
	}
	idx, err := a.Probe.ReadAttrInt(filepath.Join(path, "partition"))
	if err != nil || idx > 4 {
		return false
	}
	return true
}

// ShutdownLVM reads dm/name, splits it into (vg, lv) using LVM's hyphen
// escaping convention, and invokes lvremove --force --force vg/lv. Exit
// code 5 ("already gone") is tolerated: a sibling teardown may have
// destroyed the volume group first. The tolerated case returns an error
// wrapping errdefs.ErrAlreadyGone rather than nil, so the dispatcher (and
// tests) can distinguish it from an ordinary successful removal.
func (a *Actions) ShutdownLVM(ctx context.Context, path string) error {
	name, err := a.Probe.ReadAttrString(filepath.Join(path, "dm", "name"))
	if err != nil {
		return fmt.Errorf("read dm/name of %q: %w", path, errdefs.ErrMissingSysfs)
	}

	vg, lv, err := SplitLVMName(name)
	if err != nil {
		return fmt.Errorf("split lvm name %q: %w", name, err)
	}

	target := vg + "/" + lv
	log.Logger.Infow("running lvremove", "device", path, "target", target)

	res, err := a.Runner.Run(ctx, "lvremove", "--force", "--force", target)
	if err != nil {
		return fmt.Errorf("lvremove %q: %w", target, err)
	}
	if res.RC == 0 {
		return nil
	}
	if res.RC == 5 {
		log.Logger.Debugw("lvremove reported already-gone volume group", "target", target)
		return fmt.Errorf("lvremove %q: %w", target, errdefs.ErrAlreadyGone)
	}
	return fmt.Errorf("lvremove %q: %w", target, &errdefs.CommandFailedError{
		Command: "lvremove", RC: res.RC, Stderr: res.Stderr,
	})
}

// ShutdownMdadm translates path to its device node and invokes the RAID
// stop primitive followed by the RAID remove primitive.
func (a *Actions) ShutdownMdadm(ctx context.Context, path string) error {
	devPath := a.Probe.DevPath(a.Probe.ShortName(path))

	log.Logger.Infow("stopping raid array", "device", path, "devPath", devPath)

	res, err := a.Runner.Run(ctx, "mdadm", "--stop", devPath)
	if err != nil {
		return fmt.Errorf("mdadm --stop %q: %w", devPath, err)
	}
	if res.RC != 0 {
		return fmt.Errorf("mdadm --stop %q: %w", devPath, &errdefs.CommandFailedError{
			Command: "mdadm --stop", RC: res.RC, Stderr: res.Stderr,
		})
	}

	res, err = a.Runner.Run(ctx, "mdadm", "--remove", devPath)
	if err != nil {
		return fmt.Errorf("mdadm --remove %q: %w", devPath, err)
	}
	if res.RC != 0 {
		return fmt.Errorf("mdadm --remove %q: %w", devPath, &errdefs.CommandFailedError{
			Command: "mdadm --remove", RC: res.RC, Stderr: res.Stderr,
		})
	}
	return nil
}

// ShutdownBcache locates the cache-layer sysfs node by resolving
// "<path>/bcache/cache" through any symlinks. If absent, bcache is already
// stopped; this is tolerated rather than treated as a no-op, returning an
// error wrapping errdefs.ErrAlreadyGone so the dispatcher (and tests) can
// distinguish it from an ordinary stop. Otherwise it writes '1' into that
// node's stop attribute.
func (a *Actions) ShutdownBcache(ctx context.Context, path string) error {
	cacheLink := filepath.Join(path, "bcache", "cache")
	if !a.Probe.Exists(cacheLink) {
		log.Logger.Debugw("bcache cache symlink absent, already stopped", "device", path)
		return fmt.Errorf("bcache cache link of %q: %w", path, errdefs.ErrAlreadyGone)
	}

	cacheDir, err := a.Probe.ResolveSymlink(cacheLink)
	if err != nil {
		if errdefs.IsMissingSysfs(err) {
			log.Logger.Debugw("bcache cache symlink dangling, already stopped", "device", path)
			return fmt.Errorf("resolve bcache cache link of %q: %w", path, errdefs.ErrAlreadyGone)
		}
		return err
	}

	stopPath := filepath.Join(cacheDir, "stop")
	log.Logger.Infow("stopping bcache", "device", path, "stopPath", stopPath)
	return a.Probe.WriteByte(stopPath, '1')
}

// SplitLVMName splits an LVM device-mapper name of the form
// "{volume group}-{logical volume}" into (vg, lv), honoring the LVM
// convention that a literal hyphen inside either name is escaped as a
// doubled hyphen ("--").
func SplitLVMName(name string) (vg string, lv string, err error) {
	// Walk the string looking for the first unescaped "-": a run of two
	// hyphens is a literal hyphen within a name, a single hyphen is the
	// vg/lv separator.
	var b strings.Builder
	i := 0
	for i < len(name) {
		if name[i] == '-' {
			if i+1 < len(name) && name[i+1] == '-' {
				b.WriteByte('-')
				i += 2
				continue
			}
			vg = b.String()
			lv = unescapeLVMName(name[i+1:])
			return vg, lv, nil
		}
		b.WriteByte(name[i])
		i++
	}
	return "", "", fmt.Errorf("lvm name %q has no unescaped separator", name)
}

func unescapeLVMName(s string) string {
	return strings.ReplaceAll(s, "--", "-")
}

// JoinLVMName is SplitLVMName's inverse, escaping literal hyphens in vg and
// lv before joining them with the separator, used by tests to round-trip.
func JoinLVMName(vg, lv string) string {
	escape := func(s string) string { return strings.ReplaceAll(s, "-", "--") }
	return escape(vg) + "-" + escape(lv)
}

