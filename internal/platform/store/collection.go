package store

import (
	"context"
	"encoding/json"
	"reflect"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/mitchellh/mapstructure"
)

// Collection is a typed view over an EntityRepository. T is a struct whose
// json tags name the collection's fields.
type Collection[T any] struct {
	repo EntityRepository
}

func NewCollection[T any](repo EntityRepository) *Collection[T] {
	return &Collection[T]{repo: repo}
}

func (c *Collection[T]) Repo() EntityRepository { return c.repo }

func (c *Collection[T]) Name() string { return c.repo.Schema().Collection }

func (c *Collection[T]) List(ctx context.Context, orderBy string, limit int) ([]*T, error) {
	recs, err := c.repo.List(ctx, orderBy, limit)
	if err != nil {
		return nil, err
	}
	return decodeAll[T](c.Name()+".list", recs)
}

func (c *Collection[T]) Filter(ctx context.Context, criteria Record, orderBy string, limit int) ([]*T, error) {
	recs, err := c.repo.Filter(ctx, criteria, orderBy, limit)
	if err != nil {
		return nil, err
	}
	return decodeAll[T](c.Name()+".filter", recs)
}

// Get returns one record by id or ErrNotFound.
func (c *Collection[T]) Get(ctx context.Context, id string) (*T, error) {
	recs, err := c.repo.Filter(ctx, Record{FieldID: id}, "", 1)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, NotFound(c.Name()+".get", id)
	}
	return decodeOne[T](c.Name()+".get", recs[0])
}

func (c *Collection[T]) Create(ctx context.Context, fields Record) (*T, error) {
	rec, err := c.repo.Create(ctx, fields)
	if err != nil {
		return nil, err
	}
	return decodeOne[T](c.Name()+".create", rec)
}

func (c *Collection[T]) Update(ctx context.Context, id string, fields Record) (*T, error) {
	rec, err := c.repo.Update(ctx, id, fields)
	if err != nil {
		return nil, err
	}
	return decodeOne[T](c.Name()+".update", rec)
}

func (c *Collection[T]) Delete(ctx context.Context, id string) error {
	return c.repo.Delete(ctx, id)
}

func decodeOne[T any](op string, rec Record) (*T, error) {
	out := new(T)
	if err := Decode(rec, out); err != nil {
		return nil, Failed(op, err)
	}
	return out, nil
}

func decodeAll[T any](op string, recs []Record) ([]*T, error) {
	items := make([]*T, 0, len(recs))
	for _, rec := range recs {
		item, err := decodeOne[T](op, rec)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// -- Decoding --

// Decode copies a stored record into out, matching keys to json tags.
func Decode(rec Record, out interface{}) error {
	dec, err := newDecoder(out, false)
	if err != nil {
		return err
	}
	return dec.Decode(map[string]interface{}(rec))
}

// DecodeStrict decodes a caller payload into out and fails with
// ErrValidationFailed on unknown fields or mistyped values.
func DecodeStrict(op string, fields Record, out interface{}) error {
	dec, err := newDecoder(out, true)
	if err != nil {
		return err
	}
	if err := dec.Decode(map[string]interface{}(fields)); err != nil {
		return Invalid(op, "%s", strings.TrimPrefix(err.Error(), "1 error(s) decoding:\n\n* "))
	}
	return nil
}

func newDecoder(out interface{}, strict bool) (*mapstructure.Decoder, error) {
	return mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       timeDecodeHook,
		ErrorUnused:      strict,
		WeaklyTypedInput: true,
		TagName:          "json",
		Result:           out,
	})
}

var (
	timeType     = reflect.TypeOf(time.Time{})
	dateTimeType = reflect.TypeOf(DateTime{})
	dateType     = reflect.TypeOf(Date{})
)

func timeDecodeHook(_ reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	switch to {
	case timeType:
		if _, ok := data.(time.Time); ok {
			return data, nil
		}
		return Coerce(KindTimestamp, data)
	case dateTimeType:
		v, err := Coerce(KindDateTime, data)
		if err != nil || v == nil {
			return DateTime{}, err
		}
		return DateTime{v.(time.Time)}, nil
	case dateType:
		v, err := Coerce(KindDate, data)
		if err != nil || v == nil {
			return Date{}, err
		}
		return Date{v.(time.Time)}, nil
	}
	return data, nil
}

// -- Civil time values --

const (
	DateTimeLayout = "2006-01-02T15:04:05"
	DateLayout     = "2006-01-02"
)

// DateTime is a timezone-naive wall-clock timestamp such as an appointment's
// scheduled time. It serializes without an offset.
type DateTime struct{ time.Time }

func (d DateTime) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.Format(DateTimeLayout))
}

func (d *DateTime) UnmarshalJSON(b []byte) error {
	t, err := unmarshalCivil(b)
	if err != nil {
		return err
	}
	d.Time = wallClock(t)
	return nil
}

func (d DateTime) MarshalCSV() (string, error) {
	if d.IsZero() {
		return "", nil
	}
	return d.Format(DateTimeLayout), nil
}

// At reinterprets the wall clock as an instant in loc.
func (d DateTime) At(loc *time.Location) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), d.Hour(), d.Minute(), d.Second(), d.Nanosecond(), loc)
}

// Date is a calendar date without time of day.
type Date struct{ time.Time }

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.Format(DateLayout))
}

func (d *Date) UnmarshalJSON(b []byte) error {
	t, err := unmarshalCivil(b)
	if err != nil {
		return err
	}
	d.Time = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return nil
}

func (d Date) MarshalCSV() (string, error) {
	if d.IsZero() {
		return "", nil
	}
	return d.Format(DateLayout), nil
}

func unmarshalCivil(b []byte) (time.Time, error) {
	var s string
	if err := json.Unmarshal(b, &s); err != nil || s == "" {
		return time.Time{}, err
	}
	return dateparse.ParseIn(s, time.UTC)
}
