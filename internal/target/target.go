// Package target provides the target descriptor, built-in target presets,
// declarative target-spec files, and the cfg flag state derived from the
// active target. The descriptor is set once before expansion begins and
// read-only afterwards.
package target

import (
	"fmt"
	"strings"
)

// CodegenMode selects the C backend dialect
type CodegenMode string

const (
	CodegenGnu  CodegenMode = "gnu"
	CodegenMsvc CodegenMode = "msvc"
)

// Alignments is the per-primitive alignment table, in bytes
type Alignments struct {
	U16  int `yaml:"u16" toml:"u16"`
	U32  int `yaml:"u32" toml:"u32"`
	U64  int `yaml:"u64" toml:"u64"`
	U128 int `yaml:"u128" toml:"u128"`
	F32  int `yaml:"f32" toml:"f32"`
	F64  int `yaml:"f64" toml:"f64"`
	Ptr  int `yaml:"ptr" toml:"ptr"`
}

// Atomics records which atomic widths the architecture supports natively
type Atomics struct {
	U8  bool `yaml:"u8"`
	U16 bool `yaml:"u16"`
	U32 bool `yaml:"u32"`
	U64 bool `yaml:"u64"`
	Ptr bool `yaml:"ptr"`
}

// Arch describes an architecture: word size, endianness, atomics, and
// the alignment table the layout engine consumes.
type Arch struct {
	Name        string
	PointerBits int
	BigEndian   bool
	Atomics     Atomics
	Alignments  Alignments
}

// PointerBytes returns the byte width of a pointer
func (a *Arch) PointerBytes() int { return a.PointerBits / 8 }

// BackendC carries C-backend options; EmulateI128 lowers i128 alignment
// to the u64 alignment.
type BackendC struct {
	Mode         CodegenMode
	Target       string
	EmulateI128  bool
	CompilerOpts []string
	LinkerOpts   []string
}

// Spec is the full target descriptor
type Spec struct {
	Family   string // "unix" / "windows" / ...
	OsName   string
	EnvName  string
	BackendC BackendC
	Arch     Arch
}

// Validate checks the descriptor for the required fields
func (s *Spec) Validate() error {
	if s.Family == "" || s.OsName == "" || s.EnvName == "" {
		return fmt.Errorf("target spec missing family/os-name/env-name")
	}
	if s.Arch.Name == "" {
		return fmt.Errorf("target spec has no architecture")
	}
	switch s.Arch.PointerBits {
	case 16, 32, 64:
	default:
		return fmt.Errorf("invalid pointer-bits %d", s.Arch.PointerBits)
	}
	return nil
}

// Load resolves a target selector: a string containing a path separator
// is loaded as a spec file, anything else must name a built-in preset.
func Load(selector string) (*Spec, error) {
	if strings.ContainsAny(selector, "/\\") {
		return LoadFile(selector)
	}
	if spec, ok := Preset(selector); ok {
		return spec, nil
	}
	return nil, fmt.Errorf("unknown target name %q", selector)
}
