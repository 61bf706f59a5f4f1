package target

import "strconv"

// CfgState holds the cfg flag set, value map, and callback map consulted
// by cfg predicate evaluation. It is filled once, before expansion, from
// the target descriptor plus any --cfg command-line additions, and read
// only thereafter.
type CfgState struct {
	Flags     map[string]bool
	Values    map[string]string
	ValueFns  map[string]func(string) bool
	multiVals map[string]map[string]bool
}

// NewCfgState creates an empty cfg state
func NewCfgState() *CfgState {
	return &CfgState{
		Flags:     map[string]bool{},
		Values:    map[string]string{},
		ValueFns:  map[string]func(string) bool{},
		multiVals: map[string]map[string]bool{},
	}
}

// SetFlag sets a bare flag (`--cfg foo`)
func (c *CfgState) SetFlag(name string) { c.Flags[name] = true }

// SetValue sets a key-value pair (`--cfg 'k="v"'`)
func (c *CfgState) SetValue(name, val string) { c.Values[name] = val }

// AddMultiValue adds one accepted value to a set-valued key, registering
// the membership callback on first use.
func (c *CfgState) AddMultiValue(name, val string) {
	set, ok := c.multiVals[name]
	if !ok {
		set = map[string]bool{}
		c.multiVals[name] = set
		c.ValueFns[name] = func(v string) bool { return set[v] }
	}
	set[val] = true
}

// SetValueFn registers a callback for a set-valued key
func (c *CfgState) SetValueFn(name string, fn func(string) bool) {
	c.ValueFns[name] = fn
}

// HasFlag reports whether the bare flag is set
func (c *CfgState) HasFlag(name string) bool { return c.Flags[name] }

// LookupValue returns the single value for a key
func (c *CfgState) LookupValue(name string) (string, bool) {
	v, ok := c.Values[name]
	return v, ok
}

// LookupValueFn returns the callback for a set-valued key
func (c *CfgState) LookupValueFn(name string) (func(string) bool, bool) {
	fn, ok := c.ValueFns[name]
	return fn, ok
}

// Apply derives the built-in cfg flags and values from a target
// descriptor. Matches the flag set the upstream toolchain defines.
func (c *CfgState) Apply(spec *Spec) {
	switch spec.Family {
	case "unix":
		c.SetFlag("unix")
	case "windows":
		c.SetFlag("windows")
	}
	c.SetValue("target_family", spec.Family)

	switch spec.OsName {
	case "linux":
		c.SetFlag("linux")
		c.SetValue("target_vendor", "gnu")
	case "freebsd", "netbsd", "openbsd", "dragonfly":
		c.SetFlag(spec.OsName)
		c.SetValue("target_vendor", "unknown")
	}

	c.SetValue("target_env", spec.EnvName)
	c.SetValue("target_os", spec.OsName)
	c.SetValue("target_pointer_width", strconv.Itoa(spec.Arch.PointerBits))
	if spec.Arch.BigEndian {
		c.SetValue("target_endian", "big")
	} else {
		c.SetValue("target_endian", "little")
	}
	c.SetValue("target_arch", spec.Arch.Name)

	if spec.Arch.Atomics.U8 {
		c.AddMultiValue("target_has_atomic", "8")
	}
	if spec.Arch.Atomics.U16 {
		c.AddMultiValue("target_has_atomic", "16")
	}
	if spec.Arch.Atomics.U32 {
		c.AddMultiValue("target_has_atomic", "32")
	}
	if spec.Arch.Atomics.U64 {
		c.AddMultiValue("target_has_atomic", "64")
	}
	if spec.Arch.Atomics.Ptr {
		c.AddMultiValue("target_has_atomic", "ptr")
		c.AddMultiValue("target_has_atomic", "cas")
	}

	// target_feature answers false until feature detection exists.
	c.SetValueFn("target_feature", func(string) bool { return false })
}
