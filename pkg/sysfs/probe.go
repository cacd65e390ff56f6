// Package sysfs resolves device designators to canonical sysfs paths and
// reads the block-device attributes the holders graph engine depends on.
// It is the engine's only point of contact with the real kernel sysfs
// hierarchy (spec.md C1); every read is best-effort and read-only.
package sysfs

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/curtinfy/clearholders/pkg/errdefs"
)

// Probe resolves device designators against a sysfs root. Root defaults to
// "/sys/block" for production use; tests point it at a temp-dir fixture
// that mimics the kernel layout.
type Probe struct {
	// Root is the filesystem path standing in for /sys/block.
	Root string
	// DevRoot is the filesystem path standing in for /dev, used by DevPath.
	DevRoot string
}

// New returns a Probe rooted at the real kernel sysfs hierarchy.
func New() *Probe {
	return &Probe{Root: "/sys/block", DevRoot: "/dev"}
}

// NewWithRoots builds a Probe against fixture roots, for tests.
func NewWithRoots(sysBlockRoot, devRoot string) *Probe {
	return &Probe{Root: sysBlockRoot, DevRoot: devRoot}
}

// Canonicalize accepts any of the three device designator forms (a short
// kernel name like "vdb" or "vdb7", an absolute /dev node path, or an
// absolute /sys/block path) and resolves it to the canonical sysfs path
// "<Root>/<disk>[/<partition>]". It fails with ErrNotBlockDevice if the
// resolved path does not exist as a directory under Root.
func (p *Probe) Canonicalize(designator string) (string, error) {
	// A designator already rooted at our sysfs root carries its own
	// disk/partition structure verbatim (e.g. "<Root>/sda/sda1").
	if designator == p.Root || strings.HasPrefix(designator, p.Root+"/") {
		rel := strings.Trim(strings.TrimPrefix(designator, p.Root), "/")
		if rel == "" {
			return "", fmt.Errorf("canonicalize %q: %w", designator, errdefs.ErrNotBlockDevice)
		}
		path := filepath.Join(p.Root, rel)
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			return path, nil
		}
		return "", fmt.Errorf("canonicalize %q (resolved %q): %w", designator, path, errdefs.ErrNotBlockDevice)
	}

	// Otherwise this is either a short kernel name (vdb, md0, vdb7) or an
	// absolute /dev node path (/dev/vdb7): only the base name matters.
	short := filepath.Base(designator)
	if short == "" || short == "." || short == "/" {
		return "", fmt.Errorf("canonicalize %q: %w", designator, errdefs.ErrNotBlockDevice)
	}

	// Try it as a whole disk first.
	if path := filepath.Join(p.Root, short); isDir(path) {
		return path, nil
	}

	// Otherwise it names a partition: the disk is the short name with its
	// trailing partition-index digits (and a "p" separator, if the disk's
	// own name already ends in a digit, e.g. "nvme0n1p1") stripped off.
	if disk := diskNameFor(short); disk != "" {
		if path := filepath.Join(p.Root, disk, short); isDir(path) {
			return path, nil
		}
	}

	return "", fmt.Errorf("canonicalize %q: %w", designator, errdefs.ErrNotBlockDevice)
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// diskNameFor strips a kernel short name's trailing partition-index digits
// (e.g. "vdb7" -> "vdb", "nvme0n1p1" -> "nvme0n1") to guess the owning
// disk's short name. Returns "" when short has no trailing digits to strip.
func diskNameFor(short string) string {
	i := len(short)
	for i > 0 && short[i-1] >= '0' && short[i-1] <= '9' {
		i--
	}
	if i == 0 || i == len(short) {
		return ""
	}
	base := short[:i]
	if strings.HasSuffix(base, "p") && len(base) > 1 && base[len(base)-2] >= '0' && base[len(base)-2] <= '9' {
		return base[:len(base)-1]
	}
	return base
}

// ListHolders reads the holders/ directory for a canonical sysfs path. An
// absent or empty directory yields an empty sequence, never an error.
func (p *Probe) ListHolders(path string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(path, "holders"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, nil
}

// ListPartitions returns the canonical sysfs paths of the partition
// subdirectories directly under a disk. Empty for non-disks: a partition
// subdirectory is identified by the child directory name starting with the
// disk's short name and itself containing a "partition" file.
func (p *Probe) ListPartitions(path string) ([]string, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	diskName := filepath.Base(path)
	var partitions []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasPrefix(name, diskName) {
			continue
		}
		candidate := filepath.Join(path, name)
		if _, err := os.Stat(filepath.Join(candidate, "partition")); err == nil {
			partitions = append(partitions, candidate)
		}
	}
	return partitions, nil
}

// ShortName returns the kernel short name (the final path element) for a
// canonical sysfs path.
func (p *Probe) ShortName(path string) string {
	return filepath.Base(path)
}

// DevPath returns the /dev node path for a kernel short name.
func (p *Probe) DevPath(shortName string) string {
	return filepath.Join(p.DevRoot, shortName)
}

// SubfileExists reports whether subfile is present directly under path,
// used by devkind.Classify.
func (p *Probe) SubfileExists(path, subfile string) bool {
	_, err := os.Stat(filepath.Join(path, subfile))
	return err == nil
}

// ReadAttrString reads a sysfs attribute file and trims surrounding
// whitespace, matching the original's util.load_file(...).strip() idiom.
func (p *Probe) ReadAttrString(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

// ReadAttrInt reads a sysfs attribute file as a decimal integer.
func (p *Probe) ReadAttrInt(path string) (int, error) {
	s, err := p.ReadAttrString(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(s)
}

// ResolveSymlink resolves a sysfs symlink (e.g. "<dev>/bcache/cache") to its
// real target path, returning ErrMissingSysfs if it does not exist.
func (p *Probe) ResolveSymlink(path string) (string, error) {
	real, err := filepath.EvalSymlinks(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("resolve %q: %w", path, errdefs.ErrMissingSysfs)
		}
		return "", err
	}
	return real, nil
}

// Exists reports whether a path exists at all (used for the bcache
// cache-symlink already-gone check, which must not error on absence).
func (p *Probe) Exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// WriteByte writes a single byte to a sysfs attribute file, the mechanism
// ShutdownBcache uses to write '1' into a cache layer's stop attribute.
func (p *Probe) WriteByte(path string, b byte) error {
	return os.WriteFile(path, []byte{b}, 0o200)
}
