package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/metaffi/host/cdt"
	"github.com/metaffi/host/types"
)

// kindByName maps the CLI's lowercase type names to the bitfield Kind
// constants, so --params-types/--retvals-types can stay readable on the
// command line instead of requiring numeric bit values.
var kindByName = map[string]types.Kind{
	"int8": types.Int8, "int16": types.Int16, "int32": types.Int32, "int64": types.Int64,
	"uint8": types.Uint8, "uint16": types.Uint16, "uint32": types.Uint32, "uint64": types.Uint64,
	"float32": types.Float32, "float64": types.Float64,
	"bool":    types.Bool,
	"string8": types.String8, "string16": types.String16, "string32": types.String32,
	"char8": types.Char8, "char16": types.Char16, "char32": types.Char32,
	"handle": types.Handle, "callable": types.Callable, "any": types.Any,
}

// parseKindList parses a comma-separated type-name list (each optionally
// suffixed "[]" for an array) into type descriptors, per spec.md §4.1.
func parseKindList(s string) ([]types.Info, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]types.Info, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		isArray := strings.HasSuffix(p, "[]")
		if isArray {
			p = strings.TrimSuffix(p, "[]")
		}
		k, ok := kindByName[p]
		if !ok {
			return nil, fmt.Errorf("unknown type name %q", p)
		}
		if isArray {
			k |= types.Array
		}
		out = append(out, types.NewInfo(k))
	}
	return out, nil
}

// parseArgs builds a CDTS from declared param descriptors and a
// comma-separated list of literal values, for the "call" subcommand's
// --args flag. Array-valued parameters are not supported from the command
// line; use a scripted caller against the library for those.
func parseArgs(declared []types.Info, raw string) (*cdt.CDTS, error) {
	var literals []string
	if raw != "" {
		literals = strings.Split(raw, ",")
	}
	if len(literals) != len(declared) {
		return nil, fmt.Errorf("--args has %d value(s), entity declares %d parameter(s)", len(literals), len(declared))
	}
	s, err := cdt.NewCDTS(len(declared))
	if err != nil {
		return nil, err
	}
	for i, info := range declared {
		if err := setLiteral(&s.Cells[i], info.Kind, literals[i]); err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
	}
	return s, nil
}

func setLiteral(c *cdt.CDT, k types.Kind, lit string) error {
	switch k {
	case types.Int8, types.Int16, types.Int32, types.Int64:
		v, err := strconv.ParseInt(lit, 10, 64)
		if err != nil {
			return err
		}
		c.SetInt64(k, v)
	case types.Uint8, types.Uint16, types.Uint32, types.Uint64:
		v, err := strconv.ParseUint(lit, 10, 64)
		if err != nil {
			return err
		}
		c.SetUint64(k, v)
	case types.Float32:
		v, err := strconv.ParseFloat(lit, 32)
		if err != nil {
			return err
		}
		c.SetFloat32(float32(v))
	case types.Float64:
		v, err := strconv.ParseFloat(lit, 64)
		if err != nil {
			return err
		}
		c.SetFloat64(v)
	case types.Bool:
		v, err := strconv.ParseBool(lit)
		if err != nil {
			return err
		}
		c.SetBool(v)
	case types.String8, types.String16, types.String32:
		c.SetString(k, lit, false)
	default:
		return fmt.Errorf("type %s is not a literal CLI argument type", k)
	}
	return nil
}

// cdtsToJSON renders a CDTS as a JSON-friendly value for pretty-printing a
// call's return values, mirroring the teacher's prettyPrint(json.Marshal(..))
// pipeline in cmd/pedumper.go.
func cdtsToJSON(s *cdt.CDTS) []map[string]any {
	if s == nil {
		return nil
	}
	out := make([]map[string]any, 0, s.Len())
	for i := range s.Cells {
		out = append(out, cellToJSON(&s.Cells[i]))
	}
	return out
}

func cellToJSON(c *cdt.CDT) map[string]any {
	entry := map[string]any{"kind": c.Kind.String()}
	switch {
	case c.IsNull():
		entry["value"] = nil
	case c.Kind.IsArray():
		nested, _ := c.Array()
		entry["value"] = cdtsToJSON(nested)
	case c.Kind == types.Handle:
		entry["value"] = "<handle>"
	case c.Kind == types.Callable:
		entry["value"] = "<callable>"
	default:
		entry["value"] = c.Payload
	}
	return entry
}
