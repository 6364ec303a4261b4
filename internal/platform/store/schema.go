package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/spf13/cast"
)

// Kind is the value type of a schema field. It decides both how inputs are
// coerced and which natural ordering applies.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindDecimal
	KindBool
	KindDateTime  // naive local wall clock, kept as a UTC time.Time
	KindDate      // calendar date, midnight UTC
	KindTimestamp // absolute instant
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindDecimal:
		return "decimal"
	case KindBool:
		return "bool"
	case KindDateTime:
		return "datetime"
	case KindDate:
		return "date"
	case KindTimestamp:
		return "timestamp"
	}
	return "unknown"
}

// System fields assigned by the store on create.
const (
	FieldID        = "id"
	FieldCreatedAt = "created_at"
)

// Field describes one named attribute of a collection.
type Field struct {
	Name     string
	Kind     Kind
	Required bool
}

// Schema describes one collection: its field set, the defaults applied on
// create, and its deletion policy.
type Schema struct {
	Collection string
	Fields     []Field
	Defaults   Record
	// SoftDeleteField names a boolean field that delete sets to false. When
	// empty, delete removes the record.
	SoftDeleteField string
}

var systemFields = []Field{
	{Name: FieldID, Kind: KindString},
	{Name: FieldCreatedAt, Kind: KindTimestamp},
}

// Lookup returns the field definition for name, system fields included.
func (s Schema) Lookup(name string) (Field, bool) {
	for _, f := range systemFields {
		if f.Name == name {
			return f, true
		}
	}
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Columns returns every field name in declaration order, system fields first.
func (s Schema) Columns() []string {
	cols := make([]string, 0, len(s.Fields)+len(systemFields))
	for _, f := range systemFields {
		cols = append(cols, f.Name)
	}
	for _, f := range s.Fields {
		cols = append(cols, f.Name)
	}
	return cols
}

func isSystemField(name string) bool {
	return name == FieldID || name == FieldCreatedAt
}

// NormalizeCreate validates a create payload, applies defaults and coerces
// every value to its field kind.
func (s Schema) NormalizeCreate(fields Record) (Record, error) {
	op := s.Collection + ".create"
	out := make(Record, len(s.Fields))
	for k, v := range s.Defaults {
		out[k] = v
	}
	norm, err := s.normalizeWritable(op, fields)
	if err != nil {
		return nil, err
	}
	for k, v := range norm {
		out[k] = v
	}
	for _, f := range s.Fields {
		if !f.Required {
			continue
		}
		v, ok := out[f.Name]
		if !ok || v == nil || v == "" {
			return nil, Invalid(op, "%s is required", f.Name)
		}
	}
	return out, nil
}

// NormalizePatch validates a partial update payload.
func (s Schema) NormalizePatch(fields Record) (Record, error) {
	op := s.Collection + ".update"
	norm, err := s.normalizeWritable(op, fields)
	if err != nil {
		return nil, err
	}
	for _, f := range s.Fields {
		if !f.Required {
			continue
		}
		if v, ok := norm[f.Name]; ok && (v == nil || v == "") {
			return nil, Invalid(op, "%s is required", f.Name)
		}
	}
	return norm, nil
}

func (s Schema) normalizeWritable(op string, fields Record) (Record, error) {
	out := make(Record, len(fields))
	for name, raw := range fields {
		if isSystemField(name) {
			return nil, Invalid(op, "field %s is read-only", name)
		}
		f, ok := s.Lookup(name)
		if !ok {
			return nil, Invalid(op, "unknown field %s", name)
		}
		v, err := Coerce(f.Kind, raw)
		if err != nil {
			return nil, Invalid(op, "field %s: %v", name, err)
		}
		out[name] = v
	}
	return out, nil
}

// NormalizeCriteria coerces equality criteria. System fields may be matched.
func (s Schema) NormalizeCriteria(criteria Record) (Record, error) {
	op := s.Collection + ".filter"
	out := make(Record, len(criteria))
	for name, raw := range criteria {
		f, ok := s.Lookup(name)
		if !ok {
			return nil, Invalid(op, "unknown field %s", name)
		}
		v, err := Coerce(f.Kind, raw)
		if err != nil {
			return nil, Invalid(op, "field %s: %v", name, err)
		}
		out[name] = v
	}
	return out, nil
}

// ParseOrder splits an order expression such as "-ordem" into its field and
// direction. An empty expression yields an empty field.
func (s Schema) ParseOrder(orderBy string) (field string, desc bool, err error) {
	orderBy = strings.TrimSpace(orderBy)
	if orderBy == "" {
		return "", false, nil
	}
	if strings.HasPrefix(orderBy, "-") {
		desc = true
		orderBy = orderBy[1:]
	} else if strings.HasPrefix(orderBy, "+") {
		orderBy = orderBy[1:]
	}
	if _, ok := s.Lookup(orderBy); !ok {
		return "", false, Invalid(s.Collection+".list", "cannot order by unknown field %s", orderBy)
	}
	return orderBy, desc, nil
}

// Load coerces a record read back from a backend. Unknown keys left behind by
// older schema versions are dropped.
func (s Schema) Load(raw Record) (Record, error) {
	out := make(Record, len(raw))
	for name, v := range raw {
		f, ok := s.Lookup(name)
		if !ok {
			continue
		}
		cv, err := Coerce(f.Kind, v)
		if err != nil {
			return nil, fmt.Errorf("load %s.%s: %w", s.Collection, name, err)
		}
		out[name] = cv
	}
	return out, nil
}

// Coerce converts v to the canonical Go representation of kind. Empty strings
// become nil for every kind except KindString.
func Coerce(kind Kind, v interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	if s, ok := v.(string); ok && kind != KindString && strings.TrimSpace(s) == "" {
		return nil, nil
	}
	switch kind {
	case KindString:
		return cast.ToStringE(v)
	case KindInt:
		if f, ok := v.(float64); ok && f != float64(int64(f)) {
			return nil, fmt.Errorf("expected an integer, got %v", f)
		}
		return cast.ToInt64E(v)
	case KindDecimal:
		return cast.ToFloat64E(v)
	case KindBool:
		return cast.ToBoolE(v)
	case KindDateTime:
		t, err := toTime(v)
		if err != nil {
			return nil, err
		}
		return wallClock(t), nil
	case KindDate:
		t, err := toTime(v)
		if err != nil {
			return nil, err
		}
		t = wallClock(t)
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
	case KindTimestamp:
		t, err := toTime(v)
		if err != nil {
			return nil, err
		}
		return t.UTC(), nil
	}
	return nil, fmt.Errorf("unsupported kind %s", kind)
}

func toTime(v interface{}) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case *time.Time:
		if t == nil {
			return time.Time{}, fmt.Errorf("nil time")
		}
		return *t, nil
	case DateTime:
		return t.Time, nil
	case Date:
		return t.Time, nil
	case string:
		parsed, err := dateparse.ParseIn(strings.TrimSpace(t), time.UTC)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid date %q", t)
		}
		return parsed, nil
	}
	return cast.ToTimeE(v)
}

// wallClock keeps the clock reading of t and drops its zone.
func wallClock(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

// Render returns a copy of rec suitable for JSON responses: datetime fields
// print without an offset, dates print as YYYY-MM-DD.
func (s Schema) Render(rec Record) Record {
	out := rec.Clone()
	for name, v := range out {
		t, ok := v.(time.Time)
		if !ok {
			continue
		}
		f, _ := s.Lookup(name)
		switch f.Kind {
		case KindDateTime:
			out[name] = t.Format(DateTimeLayout)
		case KindDate:
			out[name] = t.Format(DateLayout)
		default:
			out[name] = t.UTC().Format(time.RFC3339Nano)
		}
	}
	return out
}
