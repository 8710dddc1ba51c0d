package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Kind enumerates the scalar types a warehouse cell can hold.
type Kind uint8

const (
	KindNull Kind = iota
	KindInt
	KindFloat
	KindString
	KindBool
	KindTimestamp
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	case KindTimestamp:
		return "timestamp"
	default:
		return "null"
	}
}

// Value is a closed, dynamically typed scalar. The zero value is Null.
type Value struct {
	kind Kind
	i    int64
	f    float64
	s    string
	b    bool
}

func Null() Value                 { return Value{} }
func Int(v int64) Value           { return Value{kind: KindInt, i: v} }
func Float(v float64) Value       { return Value{kind: KindFloat, f: v} }
func String(v string) Value       { return Value{kind: KindString, s: v} }
func Bool(v bool) Value           { return Value{kind: KindBool, b: v} }
func Timestamp(t time.Time) Value { return Value{kind: KindTimestamp, s: t.UTC().Format(time.RFC3339)} }

func (v Value) Kind() Kind     { return v.kind }
func (v Value) IsNull() bool   { return v.kind == KindNull }
func (v Value) IsNumber() bool { return v.kind == KindInt || v.kind == KindFloat }

// Number returns the value as float64 when it is numeric.
func (v Value) Number() (float64, bool) {
	switch v.kind {
	case KindInt:
		return float64(v.i), true
	case KindFloat:
		return v.f, true
	}
	return 0, false
}

// Text renders the value for tables, CSV and chart labels.
func (v Value) Text() string {
	switch v.kind {
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'f', -1, 64)
	case KindString, KindTimestamp:
		return v.s
	case KindBool:
		return strconv.FormatBool(v.b)
	default:
		return ""
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindInt:
		return []byte(strconv.FormatInt(v.i, 10)), nil
	case KindFloat:
		return json.Marshal(v.f)
	case KindString, KindTimestamp:
		return json.Marshal(v.s)
	case KindBool:
		return []byte(strconv.FormatBool(v.b)), nil
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts any JSON scalar. Integral numbers decode as Int,
// other numbers as Float. Timestamps cannot be told apart from strings and
// decode as String.
func (v *Value) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	switch t := raw.(type) {
	case nil:
		*v = Null()
	case bool:
		*v = Bool(t)
	case string:
		*v = String(t)
	case json.Number:
		if i, err := t.Int64(); err == nil {
			*v = Int(i)
			return nil
		}
		f, err := t.Float64()
		if err != nil {
			return err
		}
		*v = Float(f)
	default:
		return fmt.Errorf("domain: unsupported JSON value %T", raw)
	}
	return nil
}

// Field is one named cell of a Record.
type Field struct {
	Name  string
	Value Value
}

// Record is an ordered column→value row as returned by the warehouse.
type Record struct {
	Fields []Field
}

// NewRecord builds a record from fields in column order.
func NewRecord(fields ...Field) Record { return Record{Fields: fields} }

// Get returns the value for column name.
func (r Record) Get(name string) (Value, bool) {
	for _, f := range r.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return Value{}, false
}

// Columns lists column names in order.
func (r Record) Columns() []string {
	out := make([]string, len(r.Fields))
	for i, f := range r.Fields {
		out[i] = f.Name
	}
	return out
}

func (r Record) Len() int { return len(r.Fields) }

// MarshalJSON writes the record as a JSON object preserving column order.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r.Fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		val, err := f.Value.MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a flat JSON object, keeping key order.
func (r *Record) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("domain: record must be a JSON object")
	}
	r.Fields = r.Fields[:0]
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, _ := tok.(string)
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		var v Value
		if err := v.UnmarshalJSON(raw); err != nil {
			return err
		}
		r.Fields = append(r.Fields, Field{Name: name, Value: v})
	}
	_, err = dec.Token()
	return err
}
