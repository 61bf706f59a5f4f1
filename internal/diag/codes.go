// Package diag provides centralized diagnostic definitions for ferrous.
// All diagnostic codes follow a consistent taxonomy keyed by compiler phase.
package diag

// Diagnostic code constants organized by phase.
const (
	// ============================================================================
	// Expansion (EXP###)
	// ============================================================================

	// EXP001 indicates an unresolved macro in the late expansion stage
	EXP001 = "EXP001"

	// EXP002 indicates a macro expansion failed to re-parse at its invocation site
	EXP002 = "EXP002"

	// EXP003 indicates an unknown cfg() predicate function (not all/any/not)
	EXP003 = "EXP003"

	// EXP004 indicates an unknown cfg() key-value parameter (warning)
	EXP004 = "EXP004"

	// EXP005 indicates cfg(not(...)) used with an argument count other than one
	EXP005 = "EXP005"

	// EXP006 indicates malformed macro invocation input (e.g. cfg! with an identifier)
	EXP006 = "EXP006"

	// EXP007 indicates a derive of an unsupported trait
	EXP007 = "EXP007"

	// EXP008 indicates no macro_rules arm matched the invocation's tokens
	EXP008 = "EXP008"

	// ============================================================================
	// Name resolution (RES###)
	// ============================================================================

	// RES001 indicates an identifier that resolved nowhere in the scope stack
	RES001 = "RES001"

	// RES002 indicates a path used in a mode incompatible with its binding
	RES002 = "RES002"

	// RES003 indicates a name collision during module index construction
	RES003 = "RES003"

	// RES004 indicates a super path that escapes the crate root
	RES004 = "RES004"

	// RES005 indicates or-pattern alternatives binding different variable sets
	RES005 = "RES005"

	// RES006 indicates a wildcard import of a non-module, non-enum target
	RES006 = "RES006"

	// RES007 indicates an unbound lifetime outside an in-band position
	RES007 = "RES007"

	// ============================================================================
	// Type checking (TYP###)
	// ============================================================================

	// TYP001 indicates a unification clash between two concrete types
	TYP001 = "TYP001"

	// TYP002 indicates an inference variable left unresolved at the fixpoint
	TYP002 = "TYP002"

	// TYP003 indicates a method that resolved nowhere along the deref chain
	TYP003 = "TYP003"

	// TYP004 indicates multiple equally-specific method or impl candidates
	TYP004 = "TYP004"

	// TYP005 indicates an ivar class conflict (integer vs float vs concrete)
	TYP005 = "TYP005"

	// TYP006 indicates a call arity mismatch
	TYP006 = "TYP006"

	// TYP007 indicates associated-type expansion exceeding the depth cap
	TYP007 = "TYP007"

	// TYP008 indicates an invalid operator/type combination on primitives
	TYP008 = "TYP008"

	// ============================================================================
	// Layout (LAY###)
	// ============================================================================

	// LAY001 indicates an unsized field in non-final position
	LAY001 = "LAY001"

	// LAY002 indicates integer overflow during size computation
	LAY002 = "LAY002"

	// LAY003 indicates a layout query on a still-generic type where concrete was required
	LAY003 = "LAY003"

	// ============================================================================
	// Target configuration (TGT###)
	// ============================================================================

	// TGT001 indicates a selector that is neither a file path nor a built-in triple
	TGT001 = "TGT001"

	// TGT002 indicates an unparseable target configuration file
	TGT002 = "TGT002"

	// TGT003 indicates inconsistent or incomplete target configuration values
	TGT003 = "TGT003"
)
