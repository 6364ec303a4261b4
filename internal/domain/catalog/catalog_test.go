package catalog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/ozonelife/clinic/internal/platform/store"
	"github.com/ozonelife/clinic/internal/platform/store/storetest"
)

func newTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	p := storetest.Open(t)
	return NewCatalog(storetest.Repo(t, p, ServiceSchema), storetest.Repo(t, p, ProductSchema))
}

// -- Pricing --

func TestEffectivePrice(t *testing.T) {
	tests := []struct {
		price, discount, want string
	}{
		{"100", "20", "80"},
		{"100", "0", "100"},
		{"50", "10", "45"},
		{"99.90", "15", "84.92"},
		{"100", "100", "0"},
	}
	for _, tt := range tests {
		got := EffectivePrice(decimal.RequireFromString(tt.price), decimal.RequireFromString(tt.discount))
		if !got.Equal(decimal.RequireFromString(tt.want)) {
			t.Errorf("EffectivePrice(%s, %s) = %s, want %s", tt.price, tt.discount, got, tt.want)
		}
	}
}

func TestEffectivePriceOf_NoPrice(t *testing.T) {
	if got := EffectivePriceOf(nil, 10); got != nil {
		t.Errorf("expected nil, got %v", *got)
	}
	price := 100.0
	if got := EffectivePriceOf(&price, 20); got == nil || *got != 80 {
		t.Errorf("expected 80, got %v", got)
	}
}

// -- Repository rules --

func TestServices_DefaultsAndSoftDelete(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	rec, err := c.Services().Create(ctx, store.Record{"nome_servico": "Ozônio Local", "preco": 100, "desconto": 20})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec["ativo"] != true {
		t.Errorf("expected new service to be active, got %v", rec["ativo"])
	}

	if err := c.Services().Delete(ctx, rec.ID()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	all, _ := c.Services().List(ctx, "", 0)
	if len(all) != 1 || all[0]["ativo"] != false {
		t.Fatalf("expected service kept and deactivated, got %v", all)
	}
	active, _ := c.ActiveServices(ctx)
	if len(active) != 0 {
		t.Errorf("expected no active services, got %d", len(active))
	}
}

func TestProducts_HardDelete(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	rec, err := c.Products().Create(ctx, store.Record{"nome_produto": "Óleo Ozonizado", "preco": 50})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := c.Products().Delete(ctx, rec.ID()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := c.GetProduct(ctx, rec.ID()); !store.IsNotFound(err) {
		t.Errorf("expected NotFound, got %v", err)
	}
}

func TestPricingRules(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		fields store.Record
	}{
		{"discount above 100", store.Record{"nome_produto": "X", "desconto": 101}},
		{"negative discount", store.Record{"nome_produto": "X", "desconto": -1}},
		{"negative price", store.Record{"nome_produto": "X", "preco": "-5"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := c.Products().Create(ctx, tt.fields); !store.IsValidation(err) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}

	rec, err := c.Products().Create(ctx, store.Record{"nome_produto": "Creme", "desconto": 100})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := c.Products().Update(ctx, rec.ID(), store.Record{"desconto": 150}); !store.IsValidation(err) {
		t.Errorf("expected validation error on update, got %v", err)
	}
}

func TestActiveProducts_OrderedByOrdem(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()
	for _, r := range []store.Record{
		{"nome_produto": "C", "ordem": 2},
		{"nome_produto": "A", "ordem": 0},
		{"nome_produto": "Hidden", "ordem": 1, "ativo": false},
		{"nome_produto": "B", "ordem": 1},
	} {
		if _, err := c.Products().Create(ctx, r); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	items, err := c.ActiveProducts(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := ""
	for _, p := range items {
		got += p.Nome
	}
	if got != "ABC" {
		t.Errorf("expected ABC, got %s", got)
	}
}

// -- Seed --

func TestSeed_OnlyWhenEmpty(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	res, err := c.Seed(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Services != 3 || res.Products != 2 {
		t.Errorf("expected 3 services and 2 products, got %+v", res)
	}

	services, _ := c.ActiveServices(ctx)
	if len(services) != 3 || services[0].Nome != "Ozônioterapia Sistêmica" || services[2].Nome != "Auto-hemoterapia" {
		t.Errorf("unexpected seeded services %+v", services)
	}

	res, err = c.Seed(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Services != 0 || res.Products != 0 {
		t.Errorf("expected second seed to be a no-op, got %+v", res)
	}
}

// -- Handlers --

func TestHandler_ListPublicServices(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()
	c.Services().Create(ctx, store.Record{"nome_servico": "Ozônio Local", "preco": 100, "desconto": 20, "ordem": 1})
	c.Services().Create(ctx, store.Record{"nome_servico": "Consulta", "ordem": 0})
	c.Services().Create(ctx, store.Record{"nome_servico": "Antigo", "ativo": false})

	e := echo.New()
	h := NewHandler(c)
	h.RegisterPublicRoutes(e.Group("/api/v1"))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/public/services", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var items []Listing
	if err := json.Unmarshal(rec.Body.Bytes(), &items); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 active services, got %d", len(items))
	}
	if items[0].Nome != "Consulta" || items[0].PrecoFinal != nil {
		t.Errorf("unexpected first item %+v", items[0])
	}
	if items[1].PrecoFinal == nil || *items[1].PrecoFinal != 80 {
		t.Errorf("expected effective price 80, got %+v", items[1])
	}
}

func TestHandler_GetPublicService_Inactive(t *testing.T) {
	c := newTestCatalog(t)
	rec, _ := c.Services().Create(context.Background(), store.Record{"nome_servico": "Antigo", "ativo": false})

	e := echo.New()
	ctx := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	ctx.SetParamNames("id")
	ctx.SetParamValues(rec.ID())

	if err := NewHandler(c).GetPublicService(ctx); !store.IsNotFound(err) {
		t.Errorf("expected NotFound, got %v", err)
	}
}
