package target

import (
	_ "embed"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed presets.yaml
var presetData []byte

type presetArch struct {
	PointerBits int  `yaml:"pointer-bits"`
	BigEndian   bool `yaml:"big-endian"`
	Atomics     Atomics
	Alignments  Alignments
}

type presetBackend struct {
	Mode        string `yaml:"mode"`
	Target      string `yaml:"target"`
	EmulateI128 bool   `yaml:"emulate-i128"`
}

type presetTriple struct {
	Family  string        `yaml:"family"`
	OsName  string        `yaml:"os-name"`
	EnvName string        `yaml:"env-name"`
	Arch    string        `yaml:"arch"`
	Backend presetBackend `yaml:"backend"`
}

type presetFile struct {
	Arches  map[string]presetArch   `yaml:"arches"`
	Triples map[string]presetTriple `yaml:"triples"`
}

var presets presetFile

func init() {
	if err := yaml.Unmarshal(presetData, &presets); err != nil {
		panic(fmt.Sprintf("target: corrupt embedded preset table: %v", err))
	}
}

// The GNU C backend option sets shared by every gnu-mode preset.
var backendCOptsGnu = []string{"-ffunction-sections", "-pthread"}
var backendLinkOptsGnu = []string{"-Wl,--gc-sections"}

// ArchByName returns a built-in architecture record
func ArchByName(name string) (Arch, bool) {
	pa, ok := presets.Arches[name]
	if !ok {
		return Arch{}, false
	}
	return Arch{
		Name:        name,
		PointerBits: pa.PointerBits,
		BigEndian:   pa.BigEndian,
		Atomics:     pa.Atomics,
		Alignments:  pa.Alignments,
	}, true
}

// Preset returns the built-in spec for a triple name
func Preset(name string) (*Spec, bool) {
	pt, ok := presets.Triples[name]
	if !ok {
		return nil, false
	}
	arch, ok := ArchByName(pt.Arch)
	if !ok {
		return nil, false
	}
	spec := &Spec{
		Family:  pt.Family,
		OsName:  pt.OsName,
		EnvName: pt.EnvName,
		BackendC: BackendC{
			Mode:        CodegenMode(pt.Backend.Mode),
			Target:      pt.Backend.Target,
			EmulateI128: pt.Backend.EmulateI128,
		},
		Arch: arch,
	}
	if spec.BackendC.Mode == CodegenGnu {
		spec.BackendC.CompilerOpts = append([]string(nil), backendCOptsGnu...)
		spec.BackendC.LinkerOpts = append([]string(nil), backendLinkOptsGnu...)
	}
	return spec, true
}

// PresetNames lists the built-in triple names, sorted
func PresetNames() []string {
	names := make([]string, 0, len(presets.Triples))
	for n := range presets.Triples {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
