package main

import (
	"math"
	"strconv"
	"strings"

	"github.com/weewasm/weewasm/internal/ir"
)

// parseValue converts one command-line argument into a dialect value,
// grounded on the original's parse_wasm_value: a trailing d/D selects
// f64, a plain decimal or 0x-prefixed hex integer selects i32, and
// anything else is carried through as an externref over the raw string.
func parseValue(s string) ir.Value {
	if strings.HasSuffix(s, "d") || strings.HasSuffix(s, "D") {
		if f, err := strconv.ParseFloat(s[:len(s)-1], 64); err == nil {
			return ir.F64Value(f)
		}
	}
	if n, err := strconv.ParseInt(s, 10, 32); err == nil {
		return ir.I32Value(int32(n))
	}
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		if n, err := strconv.ParseUint(s[2:], 16, 32); err == nil && n <= math.MaxInt32 {
			return ir.I32Value(int32(n))
		}
	}
	return ir.RefValue(s)
}

// formatValue renders a result value the way weerun prints it: a bare
// decimal for i32, Go's shortest round-trip form for f64, and the
// pointed-to string (or "null") for externref.
func formatValue(v ir.Value) string {
	switch v.Type {
	case ir.I32:
		return strconv.FormatInt(int64(v.I32), 10)
	case ir.F64:
		return strconv.FormatFloat(v.F64, 'g', -1, 64)
	default:
		if v.Ref == nil {
			return "null"
		}
		if s, ok := v.Ref.(string); ok {
			return s
		}
		return "ref"
	}
}
