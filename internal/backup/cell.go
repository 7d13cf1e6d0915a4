// Package backup implements the whole-database export/import engine:
// the consolidated JSON document codec, the two-sheet workbook codec,
// the reconciling importer and the export orchestrator.
package backup

import (
	"math"
	"strconv"
	"strings"
)

// Kind enumerates the scalar shapes a decoded cell can take.
type Kind uint8

const (
	KindNull Kind = iota
	KindInt
	KindFloat
	KindText
	KindBool
)

// Cell is a tagged scalar value produced while decoding a document or
// workbook row. Conversions are total: a cell that cannot be read as
// the requested type degrades to the caller's default instead of
// failing, so a single bad field never aborts a batch.
type Cell struct {
	kind Kind
	i    int64
	f    float64
	s    string
	b    bool
}

func Null() Cell            { return Cell{kind: KindNull} }
func Int(v int64) Cell      { return Cell{kind: KindInt, i: v} }
func Float(v float64) Cell  { return Cell{kind: KindFloat, f: v} }
func Text(v string) Cell    { return Cell{kind: KindText, s: v} }
func Bool(v bool) Cell      { return Cell{kind: KindBool, b: v} }
func (c Cell) Kind() Kind   { return c.kind }
func (c Cell) IsNull() bool { return c.kind == KindNull }

// FromAny converts a value produced by encoding/json (nil, bool,
// float64, string) into a Cell. Unrecognized types become Null.
func FromAny(v any) Cell {
	switch t := v.(type) {
	case nil:
		return Null()
	case bool:
		return Bool(t)
	case float64:
		return Float(t)
	case int64:
		return Int(t)
	case int:
		return Int(int64(t))
	case string:
		return Text(t)
	default:
		return Null()
	}
}

// AsInt reads the cell as an integer. Floats round half away from zero.
// Strings try an integer parse first, then a float parse. Anything else
// yields def.
func (c Cell) AsInt(def int64) int64 {
	switch c.kind {
	case KindInt:
		return c.i
	case KindFloat:
		return int64(math.Round(c.f))
	case KindBool:
		if c.b {
			return 1
		}
		return 0
	case KindText:
		s := strings.TrimSpace(c.s)
		if s == "" {
			return def
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return int64(math.Round(f))
		}
		return def
	default:
		return def
	}
}

// AsText reads the cell as a string. Null yields the empty string;
// every other kind is stringified.
func (c Cell) AsText() string {
	switch c.kind {
	case KindText:
		return c.s
	case KindInt:
		return strconv.FormatInt(c.i, 10)
	case KindFloat:
		return strconv.FormatFloat(c.f, 'f', -1, 64)
	case KindBool:
		if c.b {
			return "true"
		}
		return "false"
	default:
		return ""
	}
}

// AsBool reads the cell as a boolean. Numeric 1 (including 1.0) is
// true and 0 is false; strings "TRUE"/"1" and "FALSE"/"0" map
// case-insensitively; anything else is false.
func (c Cell) AsBool() bool {
	switch c.kind {
	case KindBool:
		return c.b
	case KindInt:
		return c.i == 1
	case KindFloat:
		return int64(c.f) == 1
	case KindText:
		s := strings.TrimSpace(c.s)
		return strings.EqualFold(s, "TRUE") || s == "1"
	default:
		return false
	}
}
