// Package devkind classifies a canonical sysfs block-device path into a
// storage kind using presence-of-subfile tests, per spec.md §3/§4.2.
package devkind

// Kind is the tagged variant identifying a storage layer's shutdown
// protocol.
type Kind string

const (
	Partition Kind = "partition"
	LVM       Kind = "lvm"
	RAID      Kind = "raid"
	Bcache    Kind = "bcache"
	Disk      Kind = "disk"
)

// identifier is a pure predicate over a device's sysfs subfiles, given as a
// subfile-presence test. The predicates themselves are exported functions
// (e.g. IsLVMIdentifier) so callers can use them directly; the ordered
// table Classify walks is unexported and cannot be changed from outside
// this package (see DESIGN.md open question 1: the `dm` subpath test
// cannot distinguish LVM from plain device-mapper devices such as dm-crypt
// or multipath, and the source explicitly declines to fix this here).
type identifier func(subfileExists func(subfile string) bool) bool

// orderedIdentifiers lists (kind, identifier) in match-priority order. The
// first predicate to return true wins; disk carries no predicate at all
// and is reached only by falling off the end of the list, mirroring the
// original's `DEV_TYPES['disk']['ident'] = lambda x: False`.
var orderedIdentifiers = []struct {
	kind Kind
	ident identifier
}{
	{Partition, IsPartitionIdentifier},
	{LVM, IsLVMIdentifier},
	{RAID, IsRAIDIdentifier},
	{Bcache, IsBcacheIdentifier},
}

// IsPartitionIdentifier reports whether the node's sysfs directory carries
// a `partition` subfile.
func IsPartitionIdentifier(subfileExists func(string) bool) bool {
	return subfileExists("partition")
}

// IsLVMIdentifier reports whether the node's sysfs directory carries a `dm`
// subdirectory. This is an acknowledged approximation: any device-mapper
// device (LVM, dm-crypt, multipath, ...) matches it.
func IsLVMIdentifier(subfileExists func(string) bool) bool {
	return subfileExists("dm")
}

// IsRAIDIdentifier reports whether the node's sysfs directory carries an
// `md` subdirectory.
func IsRAIDIdentifier(subfileExists func(string) bool) bool {
	return subfileExists("md")
}

// IsBcacheIdentifier reports whether the node's sysfs directory carries a
// `bcache` subdirectory.
func IsBcacheIdentifier(subfileExists func(string) bool) bool {
	return subfileExists("bcache")
}

// Classify returns the first kind in priority order (partition, lvm, raid,
// bcache) whose identifier matches, falling back to Disk. subfileExists
// should test for the presence of a named subpath under the device's
// canonical sysfs directory; it is injected so the classifier stays pure
// and side-effect free (spec.md §4.2).
func Classify(subfileExists func(subfile string) bool) Kind {
	for _, oi := range orderedIdentifiers {
		if oi.ident(subfileExists) {
			return oi.kind
		}
	}
	return Disk
}
