// Package types defines the MetaFFI type-kind bitfield and the type
// descriptors used to describe entity parameters and return values.
package types

import "fmt"

// Kind identifies the shape of a single CDT cell. Primitive kinds are
// disjoint; Array is a modifier that can be ORed onto any primitive kind.
// Any is a descriptor-only wildcard (alone or as Any|Array) and never
// appears on a live CDT cell.
type Kind uint32

// Primitive kinds. Values are never persisted to disk or sent over a
// network, but they are not private: cdt's wire encoding writes each cell's
// Kind as its raw uint32 bits, and xllr passes type lists to the dispatcher
// as uint32_t values, so both sides of the ABI must agree on these bit
// positions.
const (
	Int8 Kind = 1 << iota
	Int16
	Int32
	Int64
	Uint8
	Uint16
	Uint32
	Uint64
	Float32
	Float64
	Bool
	String8
	String16
	String32
	Char8
	Char16
	Char32
	Handle
	Callable
	Null
	Any

	// Array is a modifier, ORed onto one of the kinds above. It never
	// appears alone on a live CDT cell, only in descriptors and as a flag
	// check.
	Array Kind = 1 << 31
)

// kindNames is used only for Kind.String(); it never participates in
// matching logic.
var kindNames = map[Kind]string{
	Int8: "int8", Int16: "int16", Int32: "int32", Int64: "int64",
	Uint8: "uint8", Uint16: "uint16", Uint32: "uint32", Uint64: "uint64",
	Float32: "float32", Float64: "float64", Bool: "bool",
	String8: "string8", String16: "string16", String32: "string32",
	Char8: "char8", Char16: "char16", Char32: "char32",
	Handle: "handle", Callable: "callable", Null: "null", Any: "any",
}

// IsArray reports whether k has the Array modifier set.
func (k Kind) IsArray() bool { return k&Array == Array }

// HasAny reports whether k has the Any wildcard bit set (descriptors only).
func (k Kind) HasAny() bool { return k&Any == Any }

// Base strips the Array modifier, returning the element kind.
func (k Kind) Base() Kind { return k &^ Array }

// String renders a Kind for logs and error messages. Unknown bit
// combinations render as a hex fallback rather than panicking — this is a
// diagnostic helper, not a wire-format validator.
func (k Kind) String() string {
	suffix := ""
	base := k
	if k.IsArray() {
		suffix = "[]"
		base = k.Base()
	}
	if name, ok := kindNames[base]; ok {
		return name + suffix
	}
	return fmt.Sprintf("kind(0x%x)", uint32(k))
}

// MixedOrUnknownDimensions is the sentinel FixedDimensions value meaning
// "ragged array, or rank not statically known".
const MixedOrUnknownDimensions = -1

// Info is a type descriptor: the (kind, alias, dimensions) tuple attached
// to every declared parameter and return value. Info is a value object;
// OwnsAlias is carried for parity with the native descriptor, but nothing
// in this module reads it (Equal and Matches ignore it) — in pure Go the
// Alias string itself is GC-managed regardless.
type Info struct {
	Kind            Kind
	Alias           string
	OwnsAlias       bool
	FixedDimensions int
}

// NewInfo builds a bare descriptor for kind k with no alias and unknown
// dimensions.
func NewInfo(k Kind) Info {
	return Info{Kind: k, FixedDimensions: MixedOrUnknownDimensions}
}

// NewInfoWithAlias builds a descriptor carrying a compiler-facing alias and
// a fixed rank (or MixedOrUnknownDimensions).
func NewInfoWithAlias(k Kind, alias string, ownsAlias bool, fixedDimensions int) Info {
	return Info{Kind: k, Alias: alias, OwnsAlias: ownsAlias, FixedDimensions: fixedDimensions}
}

// Equal compares two descriptors by kind, dimensions and alias. Equal is
// stricter than Matches: it is used for descriptor bookkeeping (e.g.
// dedup), never for call-site validation.
func (i Info) Equal(other Info) bool {
	return i.Kind == other.Kind &&
		i.FixedDimensions == other.FixedDimensions &&
		i.Alias == other.Alias
}

// Matches reports whether an actual CDT cell of kind actualKind (and, if an
// array, actualDims rank) satisfies the expected descriptor i, per spec
// §4.1:
//
//   - kinds equal, OR
//   - i has the Any bit and both sides agree on array-ness, OR
//   - i is the bare "array without base" pseudo-kind and actual is any array, OR
//   - both are arrays of the same base kind and either i.FixedDimensions is
//     MixedOrUnknownDimensions or equal to actualDims.
//
// Aliases never participate in matching.
func (i Info) Matches(actualKind Kind, actualDims int) bool {
	if i.Kind == Array {
		// bare array pseudo-kind: matches any array actual, regardless of base.
		return actualKind.IsArray()
	}

	if i.Kind.HasAny() {
		// any wildcard: kind is unconstrained, but array-ness must still
		// agree either way (testable property 5) — a scalar Any must not
		// match an array actual, any more than an array-of-Any matches a
		// scalar actual.
		return i.Kind.IsArray() == actualKind.IsArray()
	}

	if i.Kind.IsArray() {
		if !actualKind.IsArray() {
			return false
		}
		if i.Kind.Base() != actualKind.Base() {
			return false
		}
		if i.FixedDimensions != MixedOrUnknownDimensions && i.FixedDimensions != actualDims {
			return false
		}
		return true
	}

	return i.Kind == actualKind
}
