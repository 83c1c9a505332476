package dataset

import (
	"math"
	"strconv"
	"strings"
)

// InferTypes assigns a storage type to every raw column and converts its cells.
//
// Rules, applied per column:
//   - a type in overrides wins (INTEGER, REAL or TEXT);
//   - all non-empty cells parse as int64: INTEGER;
//   - all non-empty cells parse as float64: REAL;
//   - otherwise, or when every cell is empty: TEXT.
//
// Empty cells become nil in every type. Columns that are already typed are left alone.
func InferTypes(f *Frame, overrides map[string]ColumnType) {
	for i, col := range f.Columns {
		if col.Type != TypeRaw {
			continue
		}

		typ, ok := overrides[col.Name]
		if !ok {
			typ = inferColumn(f.Rows, i)
		}
		convertColumn(f.Rows, i, typ)
		f.Columns[i].Type = typ
	}
}

func inferColumn(rows [][]any, idx int) ColumnType {
	nonEmpty := 0
	allInt, allReal := true, true

	for _, row := range rows {
		s, _ := row[idx].(string)
		if s == "" {
			continue
		}
		nonEmpty++
		if allInt {
			if _, ok := parseInt(s); !ok {
				allInt = false
			}
		}
		if _, ok := parseReal(s); !ok {
			allReal = false
			break
		}
	}

	switch {
	case nonEmpty == 0:
		return TypeText
	case allInt:
		return TypeInteger
	case allReal:
		return TypeReal
	default:
		return TypeText
	}
}

func convertColumn(rows [][]any, idx int, typ ColumnType) {
	for _, row := range rows {
		s, isString := row[idx].(string)
		if !isString {
			continue
		}
		if s == "" {
			row[idx] = nil
			continue
		}

		switch typ {
		case TypeInteger:
			if v, ok := parseInt(s); ok {
				row[idx] = v
			} else {
				row[idx] = nil
			}
		case TypeReal:
			if v, ok := parseReal(s); ok {
				row[idx] = v
			} else {
				row[idx] = nil
			}
		}
	}
}

func parseInt(s string) (int64, bool) {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	return v, err == nil
}

func parseReal(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
