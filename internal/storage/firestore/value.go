package firestore

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Kind identifies which member of a Value is set
type Kind int

// Value kinds understood by the store
const (
	KindNull Kind = iota
	KindString
	KindInteger
	KindTimestamp
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindInteger:
		return "integer"
	case KindTimestamp:
		return "timestamp"
	default:
		return "unknown"
	}
}

// Value is one Firestore field value. Exactly one member is meaningful,
// selected by Kind; the zero Value is null.
type Value struct {
	kind Kind
	str  string
	num  int64
	ts   time.Time
}

// String returns a string value
func String(s string) Value { return Value{kind: KindString, str: s} }

// Integer returns an integer value
func Integer(n int64) Value { return Value{kind: KindInteger, num: n} }

// Timestamp returns a timestamp value
func Timestamp(t time.Time) Value { return Value{kind: KindTimestamp, ts: t.UTC()} }

// Null returns a null value
func Null() Value { return Value{} }

// Kind returns the kind of v
func (v Value) Kind() Kind { return v.kind }

// AsString returns the string member and whether v is a string
func (v Value) AsString() (string, bool) {
	return v.str, v.kind == KindString
}

// AsInteger returns the integer member and whether v is an integer
func (v Value) AsInteger() (int64, bool) {
	return v.num, v.kind == KindInteger
}

// AsTimestamp returns the timestamp member and whether v is a timestamp
func (v Value) AsTimestamp() (time.Time, bool) {
	return v.ts, v.kind == KindTimestamp
}

// wireValue is the REST encoding of a Value. Firestore sends int64 as a
// JSON string.
type wireValue struct {
	StringValue    *string          `json:"stringValue,omitempty"`
	IntegerValue   *json.RawMessage `json:"integerValue,omitempty"`
	TimestampValue *string          `json:"timestampValue,omitempty"`
}

// MarshalJSON encodes v in the Firestore REST format
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString:
		return json.Marshal(map[string]string{"stringValue": v.str})
	case KindInteger:
		return json.Marshal(map[string]string{"integerValue": strconv.FormatInt(v.num, 10)})
	case KindTimestamp:
		return json.Marshal(map[string]string{"timestampValue": v.ts.Format(time.RFC3339Nano)})
	default:
		return []byte(`{"nullValue":null}`), nil
	}
}

// UnmarshalJSON decodes a Firestore REST value. Kinds the store never
// writes are rejected.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode value: %w", err)
	}

	var w wireValue
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("decode value: %w", err)
	}

	switch {
	case w.StringValue != nil:
		*v = String(*w.StringValue)
	case w.IntegerValue != nil:
		n, err := parseInteger(*w.IntegerValue)
		if err != nil {
			return err
		}
		*v = Integer(n)
	case w.TimestampValue != nil:
		t, err := time.Parse(time.RFC3339Nano, *w.TimestampValue)
		if err != nil {
			return fmt.Errorf("decode timestampValue: %w", err)
		}
		*v = Timestamp(t)
	case hasKey(raw, "nullValue"):
		*v = Null()
	case len(raw) == 0:
		return fmt.Errorf("empty value")
	default:
		return fmt.Errorf("unsupported value kind in %s", data)
	}
	return nil
}

func hasKey(m map[string]json.RawMessage, key string) bool {
	_, ok := m[key]
	return ok
}

// parseInteger accepts both the string and the number encoding of an int64
func parseInteger(raw json.RawMessage) (int64, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("decode integerValue: %w", err)
		}
		return n, nil
	}

	var n int64
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, fmt.Errorf("decode integerValue: %w", err)
	}
	return n, nil
}
