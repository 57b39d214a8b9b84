package result

import (
	"database/sql"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// RowSet is the subset of *sql.Rows that ScanRows needs.
type RowSet interface {
	Columns() ([]string, error)
	ColumnTypes() ([]*sql.ColumnType, error)
	Next() bool
	Scan(dest ...any) error
	Err() error
}

// ScanRows reads up to maxRows rows (unbounded when maxRows <= 0). The
// payload is marked truncated when more rows were available.
func ScanRows(rows RowSet, maxRows int) (Payload, error) {
	cols, err := rows.Columns()
	if err != nil {
		return Payload{}, fmt.Errorf("failed to get columns: %w", err)
	}
	decimals := decimalColumns(rows, len(cols))

	out := []Row{}
	truncated := false
	for rows.Next() {
		if maxRows > 0 && len(out) >= maxRows {
			truncated = true
			break
		}

		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return Payload{}, fmt.Errorf("failed to scan row: %w", err)
		}

		for i, v := range values {
			values[i] = convert(v, decimals[i])
		}
		out = append(out, Row{Columns: cols, Values: values})
	}
	if err := rows.Err(); err != nil {
		return Payload{}, err
	}

	p := RowsPayload(cols, out)
	p.Truncated = truncated
	return p, nil
}

func decimalColumns(rows RowSet, n int) []bool {
	flags := make([]bool, n)
	types, err := rows.ColumnTypes()
	if err != nil {
		return flags
	}
	for i, ct := range types {
		if i >= n || ct == nil {
			break
		}
		switch strings.ToUpper(ct.DatabaseTypeName()) {
		case "DECIMAL", "NUMERIC", "MONEY", "SMALLMONEY":
			flags[i] = true
		}
	}
	return flags
}

// convert narrows driver values to JSON-friendly scalars.
func convert(v any, isDecimal bool) any {
	switch x := v.(type) {
	case nil:
		return nil
	case []byte:
		if isDecimal {
			if d, err := decimal.NewFromString(string(x)); err == nil {
				return d
			}
		}
		if utf8.Valid(x) {
			return string(x)
		}
		return "0x" + strings.ToUpper(hex.EncodeToString(x))
	case string:
		if isDecimal {
			if d, err := decimal.NewFromString(x); err == nil {
				return d
			}
		}
		return x
	case float64:
		if isDecimal {
			return decimal.NewFromFloat(x)
		}
		return x
	case time.Time:
		return x.Format(time.RFC3339Nano)
	}
	return v
}
