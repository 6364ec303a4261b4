package boltstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/ozonelife/clinic/internal/platform/store"
)

var productSchema = store.Schema{
	Collection: "products",
	Fields: []store.Field{
		{Name: "nome_produto", Kind: store.KindString, Required: true},
		{Name: "ordem", Kind: store.KindInt},
		{Name: "preco", Kind: store.KindDecimal},
		{Name: "ativo", Kind: store.KindBool},
	},
	Defaults: store.Record{"ativo": true},
}

func newTestRepo(t *testing.T, schema store.Schema) store.EntityRepository {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	repo, err := db.Repository(schema)
	if err != nil {
		t.Fatalf("repository: %v", err)
	}
	return repo
}

func TestCreate_AssignsIDAndCreatedAt(t *testing.T) {
	repo := newTestRepo(t, productSchema)
	ctx := context.Background()

	rec, err := repo.Create(ctx, store.Record{"nome_produto": "Óleo", "preco": 50})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.ID() == "" {
		t.Error("expected id to be assigned")
	}
	if rec[store.FieldCreatedAt] == nil {
		t.Error("expected created_at to be assigned")
	}

	all, err := repo.List(ctx, "", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != 1 || all[0].ID() != rec.ID() {
		t.Fatalf("expected created record in list, got %v", all)
	}
	if all[0]["nome_produto"] != "Óleo" || all[0]["preco"] != 50.0 {
		t.Errorf("expected submitted fields unchanged, got %v", all[0])
	}
}

func TestUpdate_MergesPartialFields(t *testing.T) {
	repo := newTestRepo(t, productSchema)
	ctx := context.Background()

	rec, _ := repo.Create(ctx, store.Record{"nome_produto": "Creme", "ordem": 1, "preco": 30})
	updated, err := repo.Update(ctx, rec.ID(), store.Record{"preco": 35})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated["preco"] != 35.0 {
		t.Errorf("expected preco 35, got %v", updated["preco"])
	}

	all, _ := repo.List(ctx, "", 0)
	got := all[0]
	if got["preco"] != 35.0 || got["nome_produto"] != "Creme" || got["ordem"] != int64(1) {
		t.Errorf("expected merged record, got %v", got)
	}
}

func TestUpdate_NotFound(t *testing.T) {
	repo := newTestRepo(t, productSchema)
	_, err := repo.Update(context.Background(), "missing", store.Record{"preco": 1})
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDelete_HardAndIdempotent(t *testing.T) {
	repo := newTestRepo(t, productSchema)
	ctx := context.Background()

	rec, _ := repo.Create(ctx, store.Record{"nome_produto": "Óleo"})
	if err := repo.Delete(ctx, rec.ID()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := repo.Delete(ctx, rec.ID()); err != nil {
		t.Errorf("expected second delete to succeed, got %v", err)
	}
	all, _ := repo.List(ctx, "", 0)
	if len(all) != 0 {
		t.Errorf("expected no records, got %d", len(all))
	}
}

func TestDelete_SoftClearsActiveFlag(t *testing.T) {
	schema := productSchema
	schema.Collection = "services"
	schema.SoftDeleteField = "ativo"
	repo := newTestRepo(t, schema)
	ctx := context.Background()

	rec, _ := repo.Create(ctx, store.Record{"nome_produto": "Ozônio"})
	if err := repo.Delete(ctx, rec.ID()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	active, _ := repo.Filter(ctx, store.Record{"ativo": true}, "", 0)
	if len(active) != 0 {
		t.Errorf("expected no active records, got %d", len(active))
	}
	all, _ := repo.List(ctx, "", 0)
	if len(all) != 1 || all[0]["ativo"] != false {
		t.Errorf("expected record kept with ativo=false, got %v", all)
	}
	if err := repo.Delete(ctx, "missing"); err != nil {
		t.Errorf("expected soft delete of missing id to succeed, got %v", err)
	}
}

func TestList_OrderAndLimit(t *testing.T) {
	repo := newTestRepo(t, productSchema)
	ctx := context.Background()
	for _, o := range []int{2, 0, 1} {
		if _, err := repo.Create(ctx, store.Record{"nome_produto": "p", "ordem": o}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	asc, _ := repo.List(ctx, "ordem", 0)
	desc, _ := repo.List(ctx, "-ordem", 0)
	if len(asc) != 3 || len(desc) != 3 {
		t.Fatalf("expected 3 records, got %d and %d", len(asc), len(desc))
	}
	for i := range asc {
		if asc[i].ID() != desc[len(desc)-1-i].ID() {
			t.Errorf("expected descending order to be the reverse of ascending")
		}
		if asc[i]["ordem"] != int64(i) {
			t.Errorf("expected ordem %d at %d, got %v", i, i, asc[i]["ordem"])
		}
	}

	limited, _ := repo.List(ctx, "-ordem", 2)
	if len(limited) != 2 || limited[0]["ordem"] != int64(2) {
		t.Errorf("expected top two by ordem desc, got %v", limited)
	}
}

func TestFilter_ActiveMatchesUnfilteredOrder(t *testing.T) {
	repo := newTestRepo(t, productSchema)
	ctx := context.Background()
	repo.Create(ctx, store.Record{"nome_produto": "a", "ativo": true})
	repo.Create(ctx, store.Record{"nome_produto": "b", "ativo": false})
	repo.Create(ctx, store.Record{"nome_produto": "c", "ativo": true})

	got, err := repo.Filter(ctx, store.Record{"ativo": "true"}, "", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0]["nome_produto"] != "a" || got[1]["nome_produto"] != "c" {
		t.Errorf("expected a, c in insertion order, got %v", got)
	}
}

func TestFilter_UnknownFieldRejected(t *testing.T) {
	repo := newTestRepo(t, productSchema)
	_, err := repo.Filter(context.Background(), store.Record{"cor": "azul"}, "", 0)
	if !store.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestRecordsSurviveReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	repo, _ := db.Repository(productSchema)
	rec, _ := repo.Create(context.Background(), store.Record{"nome_produto": "Óleo", "ordem": 7})
	db.Close()

	db, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()
	repo, _ = db.Repository(productSchema)
	all, _ := repo.List(context.Background(), "", 0)
	if len(all) != 1 || all[0].ID() != rec.ID() || all[0]["ordem"] != int64(7) {
		t.Errorf("expected persisted record, got %v", all)
	}
}
