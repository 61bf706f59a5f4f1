package target

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// File form of a target spec. Sections and keys follow the declarative
// format: [target] selects or overrides the platform, [backend.c] the C
// backend, [arch] the architecture record.
type fileTarget struct {
	Family  string `toml:"family"`
	OsName  string `toml:"os-name"`
	EnvName string `toml:"env-name"`
	Arch    string `toml:"arch"` // optional built-in arch preset name
}

type fileBackendC struct {
	Variant      string   `toml:"variant"`
	Target       string   `toml:"target"`
	EmulateI128  *bool    `toml:"emulate-i128"`
	CompilerOpts []string `toml:"compiler-opts"`
	LinkerOpts   []string `toml:"linker-opts"`
}

type fileBackend struct {
	C fileBackendC `toml:"c"`
}

type fileArch struct {
	Name         string      `toml:"name"`
	PointerBits  int         `toml:"pointer-bits"`
	IsBigEndian  *bool       `toml:"is-big-endian"`
	HasAtomicU8  *bool       `toml:"has-atomic-u8"`
	HasAtomicU16 *bool       `toml:"has-atomic-u16"`
	HasAtomicU32 *bool       `toml:"has-atomic-u32"`
	HasAtomicU64 *bool       `toml:"has-atomic-u64"`
	HasAtomicPtr *bool       `toml:"has-atomic-ptr"`
	Alignments   *Alignments `toml:"alignments"`
}

type specFile struct {
	Target  fileTarget  `toml:"target"`
	Backend fileBackend `toml:"backend"`
	Arch    fileArch    `toml:"arch"`
}

// LoadFile reads a declarative target spec file
func LoadFile(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read target spec: %w", err)
	}
	var f specFile
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse target spec %s: %w", path, err)
	}

	spec := &Spec{
		Family:  f.Target.Family,
		OsName:  f.Target.OsName,
		EnvName: f.Target.EnvName,
	}

	// [target] arch selects a preset; [arch] keys then override it.
	if f.Target.Arch != "" {
		arch, ok := ArchByName(f.Target.Arch)
		if !ok {
			return nil, fmt.Errorf("unknown architecture preset %q in %s", f.Target.Arch, path)
		}
		spec.Arch = arch
	}
	if f.Arch.Name != "" {
		if spec.Arch.Name != "" && spec.Arch.Name != f.Arch.Name {
			return nil, fmt.Errorf("architecture specified twice in %s (%q and %q)", path, spec.Arch.Name, f.Arch.Name)
		}
		spec.Arch.Name = f.Arch.Name
	}
	if f.Arch.PointerBits != 0 {
		spec.Arch.PointerBits = f.Arch.PointerBits
	}
	if f.Arch.IsBigEndian != nil {
		spec.Arch.BigEndian = *f.Arch.IsBigEndian
	}
	if f.Arch.HasAtomicU8 != nil {
		spec.Arch.Atomics.U8 = *f.Arch.HasAtomicU8
	}
	if f.Arch.HasAtomicU16 != nil {
		spec.Arch.Atomics.U16 = *f.Arch.HasAtomicU16
	}
	if f.Arch.HasAtomicU32 != nil {
		spec.Arch.Atomics.U32 = *f.Arch.HasAtomicU32
	}
	if f.Arch.HasAtomicU64 != nil {
		spec.Arch.Atomics.U64 = *f.Arch.HasAtomicU64
	}
	if f.Arch.HasAtomicPtr != nil {
		spec.Arch.Atomics.Ptr = *f.Arch.HasAtomicPtr
	}
	if f.Arch.Alignments != nil {
		spec.Arch.Alignments = *f.Arch.Alignments
	}

	spec.BackendC.Mode = CodegenMode(f.Backend.C.Variant)
	if spec.BackendC.Mode == "" {
		spec.BackendC.Mode = CodegenGnu
	}
	spec.BackendC.Target = f.Backend.C.Target
	if f.Backend.C.EmulateI128 != nil {
		spec.BackendC.EmulateI128 = *f.Backend.C.EmulateI128
	}
	spec.BackendC.CompilerOpts = f.Backend.C.CompilerOpts
	spec.BackendC.LinkerOpts = f.Backend.C.LinkerOpts

	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("invalid target spec %s: %w", path, err)
	}
	return spec, nil
}

// SaveFile writes the descriptor back out in the declarative format, so
// a built-in preset can be exported, edited, and reused.
func SaveFile(path string, spec *Spec) error {
	t := true
	f := specFile{
		Target: fileTarget{
			Family:  spec.Family,
			OsName:  spec.OsName,
			EnvName: spec.EnvName,
		},
		Backend: fileBackend{C: fileBackendC{
			Variant:      string(spec.BackendC.Mode),
			Target:       spec.BackendC.Target,
			EmulateI128:  &spec.BackendC.EmulateI128,
			CompilerOpts: spec.BackendC.CompilerOpts,
			LinkerOpts:   spec.BackendC.LinkerOpts,
		}},
		Arch: fileArch{
			Name:        spec.Arch.Name,
			PointerBits: spec.Arch.PointerBits,
			IsBigEndian: &spec.Arch.BigEndian,
			Alignments:  &spec.Arch.Alignments,
		},
	}
	f.Arch.HasAtomicU8 = boolPtr(spec.Arch.Atomics.U8, &t)
	f.Arch.HasAtomicU16 = boolPtr(spec.Arch.Atomics.U16, &t)
	f.Arch.HasAtomicU32 = boolPtr(spec.Arch.Atomics.U32, &t)
	f.Arch.HasAtomicU64 = boolPtr(spec.Arch.Atomics.U64, &t)
	f.Arch.HasAtomicPtr = boolPtr(spec.Arch.Atomics.Ptr, &t)

	data, err := toml.Marshal(f)
	if err != nil {
		return fmt.Errorf("failed to encode target spec: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write target spec: %w", err)
	}
	return nil
}

func boolPtr(v bool, _ *bool) *bool {
	b := v
	return &b
}
