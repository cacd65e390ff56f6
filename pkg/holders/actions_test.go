package holders

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curtinfy/clearholders/pkg/errdefs"
	"github.com/curtinfy/clearholders/pkg/sysfs"
)

func mkNode(t *testing.T, root, name string) string {
	t.Helper()
	path := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(path, 0o755))
	return path
}

func writeAttr(t *testing.T, path, file, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(path, file), []byte(content), 0o644))
}

func TestSplitLVMNameRoundTrip(t *testing.T) {
	tests := []struct{ vg, lv string }{
		{"vg0", "lv0"},
		{"my-vg", "my-lv"},
		{"a--b", "c--d"},
		{"vg", "lv-with-dash"},
	}
	for _, tt := range tests {
		joined := JoinLVMName(tt.vg, tt.lv)
		vg, lv, err := SplitLVMName(joined)
		require.NoError(t, err)
		assert.Equal(t, tt.vg, vg)
		assert.Equal(t, tt.lv, lv)
	}
}

func TestSplitLVMNameSimple(t *testing.T) {
	vg, lv, err := SplitLVMName("vg0-lv0")
	require.NoError(t, err)
	assert.Equal(t, "vg0", vg)
	assert.Equal(t, "lv0", lv)
}

func TestSplitLVMNameEscapedHyphen(t *testing.T) {
	// "my--vg-my--lv" decodes to vg "my-vg", lv "my-lv"
	vg, lv, err := SplitLVMName("my--vg-my--lv")
	require.NoError(t, err)
	assert.Equal(t, "my-vg", vg)
	assert.Equal(t, "my-lv", lv)
}

func TestSplitLVMNameNoSeparator(t *testing.T) {
	_, _, err := SplitLVMName("nodash")
	assert.Error(t, err)
}

func TestShutdownLVMTolerable(t *testing.T) {
	root := t.TempDir()
	path := mkNode(t, root, "dm-0")
	require.NoError(t, os.MkdirAll(filepath.Join(path, "dm"), 0o755))
	writeAttr(t, filepath.Join(path, "dm"), "name", "vg0-lv0\n")

	runner := newFakeRunner()
	runner.script(5, "", "already gone", "lvremove", "--force", "--force", "vg0/lv0")

	a := NewActions(sysfs.NewWithRoots(root, root), runner)
	err := a.ShutdownLVM(context.Background(), path)
	require.Error(t, err)
	assert.True(t, errdefs.IsAlreadyGone(err))
	assert.Contains(t, runner.calls, "lvremove --force --force vg0/lv0")
}

func TestShutdownLVMFailurePropagates(t *testing.T) {
	root := t.TempDir()
	path := mkNode(t, root, "dm-0")
	require.NoError(t, os.MkdirAll(filepath.Join(path, "dm"), 0o755))
	writeAttr(t, filepath.Join(path, "dm"), "name", "vg0-lv0")

	runner := newFakeRunner()
	runner.script(1, "", "device busy", "lvremove", "--force", "--force", "vg0/lv0")

	a := NewActions(sysfs.NewWithRoots(root, root), runner)
	err := a.ShutdownLVM(context.Background(), path)
	assert.Error(t, err)
}

func TestShutdownMdadmStopThenRemove(t *testing.T) {
	root := t.TempDir()
	devRoot := filepath.Join(root, "dev")
	path := mkNode(t, root, "md0")

	runner := newFakeRunner()
	a := NewActions(sysfs.NewWithRoots(root, devRoot), runner)

	err := a.ShutdownMdadm(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"mdadm --stop " + filepath.Join(devRoot, "md0"),
		"mdadm --remove " + filepath.Join(devRoot, "md0"),
	}, runner.calls)
}

func TestShutdownBcacheAlreadyGone(t *testing.T) {
	root := t.TempDir()
	path := mkNode(t, root, "bcache0")

	runner := newFakeRunner()
	a := NewActions(sysfs.NewWithRoots(root, root), runner)

	err := a.ShutdownBcache(context.Background(), path)
	require.Error(t, err)
	assert.True(t, errdefs.IsAlreadyGone(err))
	assert.Empty(t, runner.calls)
}

func TestShutdownBcacheWritesStop(t *testing.T) {
	root := t.TempDir()
	path := mkNode(t, root, "bcache0")
	cacheSet := mkNode(t, root, filepath.Join("fs", "bcache", "cacheset0"))
	require.NoError(t, os.MkdirAll(filepath.Join(path, "bcache"), 0o755))
	require.NoError(t, os.Symlink(cacheSet, filepath.Join(path, "bcache", "cache")))

	a := NewActions(sysfs.NewWithRoots(root, root), newFakeRunner())
	err := a.ShutdownBcache(context.Background(), path)
	require.NoError(t, err)

	b, err := os.ReadFile(filepath.Join(cacheSet, "stop"))
	require.NoError(t, err)
	assert.Equal(t, "1", string(b))
}

func TestWipeSuperblockSuccess(t *testing.T) {
	root := t.TempDir()
	devRoot := filepath.Join(root, "dev")
	path := mkNode(t, root, "sda1")

	runner := newFakeRunner()
	a := NewActions(sysfs.NewWithRoots(root, devRoot), runner)

	err := a.WipeSuperblock(context.Background(), path)
	require.NoError(t, err)
	assert.Contains(t, runner.calls, "wipefs --all "+filepath.Join(devRoot, "sda1"))
}

func TestWipeSuperblockExtendedPartitionPhantomRecovered(t *testing.T) {
	root := t.TempDir()
	devRoot := filepath.Join(root, "dev")
	path := mkNode(t, root, "sda4")
	writeAttr(t, path, "size", "2\n")
	writeAttr(t, path, "partition", "4\n")

	runner := newFakeRunner()
	runner.script(1, "", "wipefs: error: sda4: No such file or directory", "wipefs", "--all", filepath.Join(devRoot, "sda4"))

	a := NewActions(sysfs.NewWithRoots(root, devRoot), runner)
	err := a.WipeSuperblock(context.Background(), path)
	require.Error(t, err)
	assert.True(t, errdefs.IsExtendedPartitionPhantom(err))
}

func TestWipeSuperblockExtendedPartitionHighIndexNotRecovered(t *testing.T) {
	root := t.TempDir()
	devRoot := filepath.Join(root, "dev")
	path := mkNode(t, root, "sda5")
	writeAttr(t, path, "size", "0")
	writeAttr(t, path, "partition", "5")

	runner := newFakeRunner()
	runner.script(1, "", "No such file or directory", "wipefs", "--all", filepath.Join(devRoot, "sda5"))

	a := NewActions(sysfs.NewWithRoots(root, devRoot), runner)
	err := a.WipeSuperblock(context.Background(), path)
	assert.Error(t, err)
}

func TestWipeSuperblockOtherErrorsPropagate(t *testing.T) {
	root := t.TempDir()
	devRoot := filepath.Join(root, "dev")
	path := mkNode(t, root, "sda1")

	runner := newFakeRunner()
	runner.script(1, "", "permission denied", "wipefs", "--all", filepath.Join(devRoot, "sda1"))

	a := NewActions(sysfs.NewWithRoots(root, devRoot), runner)
	err := a.WipeSuperblock(context.Background(), path)
	assert.Error(t, err)
}
