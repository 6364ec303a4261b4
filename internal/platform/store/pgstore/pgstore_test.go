package pgstore

import (
	"context"
	"strings"
	"testing"

	"github.com/ozonelife/clinic/internal/platform/store"
)

var serviceSchema = store.Schema{
	Collection: "services",
	Fields: []store.Field{
		{Name: "nome_servico", Kind: store.KindString, Required: true},
		{Name: "ordem", Kind: store.KindInt},
		{Name: "ativo", Kind: store.KindBool},
	},
	SoftDeleteField: "ativo",
}

func TestBuildSelect_FilterOrderLimit(t *testing.T) {
	sql, args := buildSelect(serviceSchema, store.Query{
		Criteria: store.Record{"ativo": true, "nome_servico": nil},
		OrderBy:  "ordem",
		Limit:    5,
	})

	want := `SELECT "id", "created_at", "nome_servico", "ordem", "ativo" FROM "services" WHERE 1=1` +
		` AND "ativo" = $1 AND "nome_servico" IS NULL ORDER BY "ordem" ASC NULLS FIRST, seq ASC LIMIT $2`
	if sql != want {
		t.Errorf("unexpected sql:\n got %s\nwant %s", sql, want)
	}
	if len(args) != 2 || args[0] != true || args[1] != 5 {
		t.Errorf("unexpected args %v", args)
	}
}

func TestBuildSelect_DescendingAndNaturalOrder(t *testing.T) {
	sql, _ := buildSelect(serviceSchema, store.Query{OrderBy: "ordem", Desc: true})
	if !strings.HasSuffix(sql, `ORDER BY "ordem" DESC NULLS LAST, seq ASC`) {
		t.Errorf("expected descending order clause, got %s", sql)
	}
	sql, args := buildSelect(serviceSchema, store.Query{})
	if !strings.HasSuffix(sql, `ORDER BY seq ASC`) || len(args) != 0 {
		t.Errorf("expected insertion order without args, got %s %v", sql, args)
	}
}

func TestBuildInsert(t *testing.T) {
	rec := store.Record{"id": "x", "nome_servico": "Ozônio", "ordem": int64(1), "ativo": true}
	sql, args := buildInsert(serviceSchema, rec)
	if !strings.HasPrefix(sql, `INSERT INTO "services" ("id", "created_at", "nome_servico", "ordem", "ativo") VALUES ($1, $2, $3, $4, $5)`) {
		t.Errorf("unexpected sql %s", sql)
	}
	if len(args) != 5 || args[0] != "x" || args[1] != nil || args[4] != true {
		t.Errorf("unexpected args %v", args)
	}
}

func TestBuildUpdate(t *testing.T) {
	sql, args := buildUpdate(serviceSchema, "abc", store.Record{"ordem": int64(3), "ativo": false})
	want := `UPDATE "services" SET "ativo" = $2, "ordem" = $3 WHERE id = $1 RETURNING `
	if !strings.HasPrefix(sql, want) {
		t.Errorf("unexpected sql %s", sql)
	}
	if len(args) != 3 || args[0] != "abc" || args[1] != false || args[2] != int64(3) {
		t.Errorf("unexpected args %v", args)
	}

	sql, _ = buildUpdate(serviceSchema, "abc", store.Record{})
	if !strings.HasPrefix(sql, "SELECT ") {
		t.Errorf("expected empty patch to read the row, got %s", sql)
	}
}

func TestUpdate_InvalidIDIsNotFound(t *testing.T) {
	r := &repository{schema: serviceSchema}
	_, err := r.Update(context.Background(), "not-a-uuid", store.Record{"ordem": 1})
	if !store.IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestDelete_InvalidIDIsNoop(t *testing.T) {
	schema := serviceSchema
	schema.SoftDeleteField = ""
	r := &repository{schema: schema}
	if err := r.Delete(context.Background(), "not-a-uuid"); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}
