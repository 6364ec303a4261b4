package store

import (
	"errors"
	"testing"
	"time"
)

var testSchema = Schema{
	Collection: "items",
	Fields: []Field{
		{Name: "nome", Kind: KindString, Required: true},
		{Name: "ordem", Kind: KindInt},
		{Name: "preco", Kind: KindDecimal},
		{Name: "ativo", Kind: KindBool},
		{Name: "data_hora", Kind: KindDateTime},
		{Name: "data", Kind: KindDate},
	},
	Defaults: Record{"ativo": true},
}

func TestCompare(t *testing.T) {
	t0 := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		a, b interface{}
		want int
	}{
		{"ints", int64(1), int64(2), -1},
		{"int vs float", int64(2), 2.0, 0},
		{"floats", 3.5, 1.25, 1},
		{"strings", "abc", "abd", -1},
		{"bools", false, true, -1},
		{"times", t0.Add(time.Hour), t0, 1},
		{"nil first", nil, int64(0), -1},
		{"nil equal", nil, nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Compare(tt.a, tt.b); got != tt.want {
				t.Errorf("Compare(%v, %v) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestApply_OrderAscendingAndDescending(t *testing.T) {
	recs := []Record{
		{"id": "a", "ordem": int64(2)},
		{"id": "b", "ordem": int64(0)},
		{"id": "c", "ordem": int64(1)},
	}

	asc := Apply(recs, Query{OrderBy: "ordem"})
	if ids(asc) != "bca" {
		t.Errorf("expected ascending bca, got %s", ids(asc))
	}
	desc := Apply(recs, Query{OrderBy: "ordem", Desc: true})
	if ids(desc) != "acb" {
		t.Errorf("expected descending acb, got %s", ids(desc))
	}
}

func TestApply_TiesKeepInsertionOrder(t *testing.T) {
	recs := []Record{
		{"id": "a", "ordem": int64(1)},
		{"id": "b", "ordem": int64(0)},
		{"id": "c", "ordem": int64(1)},
		{"id": "d", "ordem": int64(0)},
	}
	got := Apply(recs, Query{OrderBy: "ordem"})
	if ids(got) != "bdac" {
		t.Errorf("expected bdac, got %s", ids(got))
	}
}

func TestApply_FilterPreservesRelativeOrder(t *testing.T) {
	recs := []Record{
		{"id": "a", "ativo": true},
		{"id": "b", "ativo": false},
		{"id": "c", "ativo": true},
		{"id": "d"},
	}
	got := Apply(recs, Query{Criteria: Record{"ativo": true}})
	if ids(got) != "ac" {
		t.Errorf("expected ac, got %s", ids(got))
	}
}

func TestApply_Limit(t *testing.T) {
	recs := []Record{{"id": "a"}, {"id": "b"}, {"id": "c"}}
	if got := Apply(recs, Query{Limit: 2}); ids(got) != "ab" {
		t.Errorf("expected ab, got %s", ids(got))
	}
	if got := Apply(recs, Query{Limit: 10}); len(got) != 3 {
		t.Errorf("expected 3 records, got %d", len(got))
	}
}

func TestNormalizeCreate(t *testing.T) {
	rec, err := testSchema.NormalizeCreate(Record{
		"nome":      "Óleo",
		"ordem":     float64(3),
		"preco":     "50.5",
		"data_hora": "2024-03-10T14:30:00",
		"data":      "2024-03-10",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec["ordem"] != int64(3) {
		t.Errorf("expected ordem int64(3), got %#v", rec["ordem"])
	}
	if rec["preco"] != 50.5 {
		t.Errorf("expected preco 50.5, got %#v", rec["preco"])
	}
	if rec["ativo"] != true {
		t.Errorf("expected default ativo=true, got %#v", rec["ativo"])
	}
	want := time.Date(2024, 3, 10, 14, 30, 0, 0, time.UTC)
	if got := rec["data_hora"].(time.Time); !got.Equal(want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestNormalizeCreate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		fields Record
	}{
		{"unknown field", Record{"nome": "x", "cor": "azul"}},
		{"read-only id", Record{"nome": "x", "id": "123"}},
		{"missing required", Record{"ordem": 1}},
		{"mistyped int", Record{"nome": "x", "ordem": "abc"}},
		{"fractional int", Record{"nome": "x", "ordem": 1.5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := testSchema.NormalizeCreate(tt.fields)
			if !errors.Is(err, ErrValidationFailed) {
				t.Errorf("expected ErrValidationFailed, got %v", err)
			}
		})
	}
}

func TestNormalizePatch_RequiredCannotBeCleared(t *testing.T) {
	if _, err := testSchema.NormalizePatch(Record{"nome": ""}); !IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
	if _, err := testSchema.NormalizePatch(Record{"ordem": 4}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestParseOrder(t *testing.T) {
	field, desc, err := testSchema.ParseOrder("-ordem")
	if err != nil || field != "ordem" || !desc {
		t.Errorf("expected ordem desc, got %q %v %v", field, desc, err)
	}
	field, desc, err = testSchema.ParseOrder("created_at")
	if err != nil || field != "created_at" || desc {
		t.Errorf("expected created_at asc, got %q %v %v", field, desc, err)
	}
	if _, _, err := testSchema.ParseOrder("nope"); !IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestErrorKinds(t *testing.T) {
	nf := NotFound("items.update", "42")
	if !errors.Is(nf, ErrNotFound) {
		t.Error("expected NotFound to match ErrNotFound")
	}
	if errors.Is(nf, ErrOperationFailed) {
		t.Error("NotFound must not match ErrOperationFailed")
	}
	if Failed("items.update", nf) != nf {
		t.Error("expected Failed to keep an already typed error")
	}

	cause := errors.New("connection refused")
	failed := Failed("items.list", cause)
	if !errors.Is(failed, ErrOperationFailed) || !errors.Is(failed, cause) {
		t.Errorf("expected OperationFailed wrapping cause, got %v", failed)
	}
	if failed.Error() != "items.list: connection refused" {
		t.Errorf("unexpected message %q", failed.Error())
	}
}

type decoded struct {
	ID       string    `json:"id"`
	Nome     string    `json:"nome"`
	Ordem    int       `json:"ordem"`
	Preco    *float64  `json:"preco"`
	DataHora DateTime  `json:"data_hora"`
	Data     Date      `json:"data"`
	Created  time.Time `json:"created_at"`
}

func TestDecode(t *testing.T) {
	at := time.Date(2024, 3, 10, 14, 30, 0, 0, time.UTC)
	var out decoded
	err := Decode(Record{
		"id":         "x1",
		"nome":       "Óleo",
		"ordem":      int64(2),
		"preco":      50.0,
		"data_hora":  at,
		"data":       at,
		"created_at": at,
	}, &out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Ordem != 2 || out.Preco == nil || *out.Preco != 50 {
		t.Errorf("unexpected decode result %+v", out)
	}
	if !out.DataHora.Equal(at) {
		t.Errorf("expected data_hora %v, got %v", at, out.DataHora)
	}
	if out.Data.Hour() != 0 {
		t.Errorf("expected date truncated to midnight, got %v", out.Data)
	}
}

func TestDecodeStrict_RejectsUnknown(t *testing.T) {
	var out decoded
	err := DecodeStrict("items.create", Record{"nome": "x", "bogus": 1}, &out)
	if !IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestDateTime_JSON(t *testing.T) {
	d := DateTime{time.Date(2024, 3, 10, 14, 30, 0, 0, time.UTC)}
	b, err := d.MarshalJSON()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(b) != `"2024-03-10T14:30:00"` {
		t.Errorf("unexpected json %s", b)
	}
	var back DateTime
	if err := back.UnmarshalJSON(b); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !back.Equal(d.Time) {
		t.Errorf("expected %v, got %v", d, back)
	}
}

func ids(recs []Record) string {
	s := ""
	for _, r := range recs {
		s += r.ID()
	}
	return s
}

func TestSchema_Render(t *testing.T) {
	created := time.Date(2024, 12, 1, 13, 0, 0, 0, time.UTC)
	rec := Record{
		FieldID:        "a",
		FieldCreatedAt: created,
		"nome":         "Ana",
		"data_hora":    time.Date(2024, 12, 2, 9, 30, 0, 0, time.UTC),
		"data":         time.Date(2024, 12, 2, 0, 0, 0, 0, time.UTC),
	}
	out := testSchema.Render(rec)

	if out["data_hora"] != "2024-12-02T09:30:00" {
		t.Errorf("unexpected data_hora %v", out["data_hora"])
	}
	if out["data"] != "2024-12-02" {
		t.Errorf("unexpected data %v", out["data"])
	}
	if out[FieldCreatedAt] != "2024-12-01T13:00:00Z" {
		t.Errorf("unexpected created_at %v", out[FieldCreatedAt])
	}
	if _, ok := rec["data"].(time.Time); !ok {
		t.Error("Render must not modify its input")
	}
}
