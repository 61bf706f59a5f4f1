package target

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresetLookup(t *testing.T) {
	spec, ok := Preset("x86_64-linux-gnu")
	require.True(t, ok)
	assert.Equal(t, "unix", spec.Family)
	assert.Equal(t, "linux", spec.OsName)
	assert.Equal(t, "gnu", spec.EnvName)
	assert.Equal(t, 64, spec.Arch.PointerBits)
	assert.False(t, spec.Arch.BigEndian)
	assert.Equal(t, 8, spec.Arch.Alignments.U64)
	assert.Equal(t, 16, spec.Arch.Alignments.U128)
	assert.False(t, spec.BackendC.EmulateI128)

	spec, ok = Preset("i586-linux-gnu")
	require.True(t, ok)
	assert.Equal(t, 32, spec.Arch.PointerBits)
	assert.True(t, spec.BackendC.EmulateI128)
	// u64 and u128 share u32's alignment on x86, f64 is 4-byte aligned.
	assert.Equal(t, 4, spec.Arch.Alignments.U64)
	assert.Equal(t, 4, spec.Arch.Alignments.U128)
	assert.Equal(t, 4, spec.Arch.Alignments.F64)

	spec, ok = Preset("m68k-linux-gnu")
	require.True(t, ok)
	assert.True(t, spec.Arch.BigEndian)
	assert.Equal(t, 2, spec.Arch.Alignments.U64)
}

func TestLoadSelector(t *testing.T) {
	_, err := Load("not-a-real-triple")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown target name")

	// A selector with a path separator is treated as a file.
	_, err = Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read")
}

func TestSpecFileRoundTrip(t *testing.T) {
	orig, ok := Preset("aarch64-linux-gnu")
	require.True(t, ok)

	path := filepath.Join(t.TempDir(), "aarch64.toml")
	require.NoError(t, SaveFile(path, orig))

	loaded, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, orig.Family, loaded.Family)
	assert.Equal(t, orig.OsName, loaded.OsName)
	assert.Equal(t, orig.EnvName, loaded.EnvName)
	assert.Equal(t, orig.Arch.Name, loaded.Arch.Name)
	assert.Equal(t, orig.Arch.PointerBits, loaded.Arch.PointerBits)
	assert.Equal(t, orig.Arch.Alignments, loaded.Arch.Alignments)
	assert.Equal(t, orig.Arch.Atomics, loaded.Arch.Atomics)
	assert.Equal(t, orig.BackendC.EmulateI128, loaded.BackendC.EmulateI128)
}

func TestLoadFileArchPreset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.toml")
	writeFile(t, path, `
[target]
family = "unix"
os-name = "linux"
env-name = "gnu"
arch = "x86_64"

[arch]
pointer-bits = 32
`)
	spec, err := LoadFile(path)
	require.NoError(t, err)
	// The preset supplies the record; explicit keys override it.
	assert.Equal(t, "x86_64", spec.Arch.Name)
	assert.Equal(t, 32, spec.Arch.PointerBits)
	assert.Equal(t, 8, spec.Arch.Alignments.U64)
}

func TestLoadFileArchConflict(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conflict.toml")
	writeFile(t, path, `
[target]
family = "unix"
os-name = "linux"
env-name = "gnu"
arch = "x86_64"

[arch]
name = "aarch64"
`)
	_, err := LoadFile(path)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "specified twice")
}

func TestCfgApplyLinux(t *testing.T) {
	spec, ok := Preset("x86_64-linux-gnu")
	require.True(t, ok)
	cfg := NewCfgState()
	cfg.Apply(spec)

	assert.True(t, cfg.HasFlag("unix"))
	assert.True(t, cfg.HasFlag("linux"))
	assert.False(t, cfg.HasFlag("windows"))

	expectValue(t, cfg, "target_family", "unix")
	expectValue(t, cfg, "target_os", "linux")
	expectValue(t, cfg, "target_env", "gnu")
	expectValue(t, cfg, "target_arch", "x86_64")
	expectValue(t, cfg, "target_pointer_width", "64")
	expectValue(t, cfg, "target_endian", "little")
	expectValue(t, cfg, "target_vendor", "gnu")

	atomic, ok := cfg.LookupValueFn("target_has_atomic")
	require.True(t, ok)
	assert.True(t, atomic("8"))
	assert.False(t, atomic("16")) // x86_64 leaves u16 atomics unset
	assert.True(t, atomic("32"))
	assert.True(t, atomic("64"))
	assert.True(t, atomic("ptr"))
	assert.True(t, atomic("cas"))

	feature, ok := cfg.LookupValueFn("target_feature")
	require.True(t, ok)
	assert.False(t, feature("sse2"))
}

func TestCfgApplyWindows(t *testing.T) {
	spec, ok := Preset("x86_64-pc-windows-msvc")
	require.True(t, ok)
	cfg := NewCfgState()
	cfg.Apply(spec)

	assert.True(t, cfg.HasFlag("windows"))
	assert.False(t, cfg.HasFlag("unix"))
	expectValue(t, cfg, "target_env", "msvc")
	expectValue(t, cfg, "target_family", "windows")
}

func expectValue(t *testing.T, cfg *CfgState, key, want string) {
	t.Helper()
	got, ok := cfg.LookupValue(key)
	require.True(t, ok, "missing cfg value %q", key)
	assert.Equal(t, want, got, "cfg value %q", key)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}
