// Package result defines the envelope every operation returns and the
// conversion of database rows into it.
package result

import (
	"bytes"
	"encoding/json"

	"github.com/shakram02/go-mcp-mssql/internal/apperr"
)

const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Envelope wraps the outcome of one invocation.
type Envelope struct {
	Status  string     `json:"status"`
	Payload *Payload   `json:"payload,omitempty"`
	Error   *ErrorBody `json:"error,omitempty"`
}

type ErrorBody struct {
	Kind    apperr.Kind `json:"kind"`
	Message string      `json:"message"`
}

// Payload holds exactly one of rows, a count or text.
type Payload struct {
	Columns   []string `json:"columns,omitempty"`
	Rows      []Row    `json:"rows,omitempty"`
	Count     *int64   `json:"count,omitempty"`
	Text      string   `json:"text,omitempty"`
	Truncated bool     `json:"truncated,omitempty"`
}

func RowsPayload(columns []string, rows []Row) Payload {
	if rows == nil {
		rows = []Row{}
	}
	return Payload{Columns: columns, Rows: rows}
}

func CountPayload(n int64) Payload { return Payload{Count: &n} }

func TextPayload(s string) Payload { return Payload{Text: s} }

// IsRows reports whether p carries a row set, possibly empty.
func (p Payload) IsRows() bool { return p.Columns != nil || p.Rows != nil }

func Ok(p Payload) Envelope {
	return Envelope{Status: StatusOK, Payload: &p}
}

func Fail(kind apperr.Kind, msg string) Envelope {
	return Envelope{Status: StatusError, Error: &ErrorBody{Kind: kind, Message: msg}}
}

func (e Envelope) OK() bool { return e.Status == StatusOK }

// JSON renders e for transport. It never fails: values are limited to
// JSON-safe scalars by ScanRows.
func (e Envelope) JSON() string {
	b, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return `{"status":"error","error":{"kind":"QueryError","message":"failed to encode result"}}`
	}
	return string(b)
}

// Row is one result row with column order preserved.
type Row struct {
	Columns []string
	Values  []any
}

// Get returns the value of column, or nil when absent.
func (r Row) Get(column string) any {
	for i, c := range r.Columns {
		if c == column {
			return r.Values[i]
		}
	}
	return nil
}

func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range r.Columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(c)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		v, err := json.Marshal(r.Values[i])
		if err != nil {
			return nil, err
		}
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
