package dashboard

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ozonelife/clinic/internal/domain/appointments"
	"github.com/ozonelife/clinic/internal/domain/catalog"
	"github.com/ozonelife/clinic/internal/domain/patients"
	"github.com/ozonelife/clinic/internal/domain/sales"
	"github.com/ozonelife/clinic/internal/platform/store"
	"github.com/ozonelife/clinic/internal/platform/store/storetest"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	ctx := context.Background()
	p := storetest.Open(t)

	cat := catalog.NewCatalog(storetest.Repo(t, p, catalog.ServiceSchema), storetest.Repo(t, p, catalog.ProductSchema))
	if _, err := cat.Seed(ctx); err != nil {
		t.Fatalf("seed: %v", err)
	}
	svcs, _ := cat.ActiveServices(ctx)
	cat.Services().Delete(ctx, svcs[0].ID)

	pts := patients.NewService(storetest.Repo(t, p, patients.Schema))
	appts := appointments.NewService(storetest.Repo(t, p, appointments.Schema), pts, appointments.Options{})
	sls := sales.NewService(storetest.Repo(t, p, sales.Schema), cat, sales.Options{})

	for i, when := range []string{"2025-01-10T09:00:00", "2025-01-11T09:00:00", "2025-01-12T09:00:00"} {
		a, err := appts.Repository().Create(ctx, store.Record{
			"nome_paciente": "Paciente",
			"servico":       "Ozônio Local",
			"data_hora":     when,
			"novo_paciente": map[string]interface{}{},
		})
		if err != nil {
			t.Fatalf("book: %v", err)
		}
		if i == 0 {
			appts.SetStatus(ctx, a.ID(), "concluido")
		}
	}

	prods, _ := cat.ActiveProducts(ctx)
	cat.Products().Update(ctx, prods[0].ID, store.Record{"preco": 40})
	for _, qty := range []int64{1, 2} {
		_, err := sls.Record(ctx, sales.Input{
			NomeComprador: "Comprador",
			Celular:       "11987654321",
			ProdutoID:     prods[0].ID,
			Quantidade:    qty,
			DataCompra:    time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC),
		})
		if err != nil {
			t.Fatalf("sale: %v", err)
		}
	}
	return NewService(cat, pts, appts, sls)
}

func TestSummary(t *testing.T) {
	svc := newTestService(t)
	sum, err := svc.Summary(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sum.Services != 2 {
		t.Errorf("expected 2 active services, got %d", sum.Services)
	}
	if sum.Products != 2 {
		t.Errorf("expected 2 products, got %d", sum.Products)
	}
	if sum.Appointments != 3 || sum.PendingAppointments != 2 {
		t.Errorf("expected 3 appointments with 2 pending, got %d/%d", sum.Appointments, sum.PendingAppointments)
	}
	if sum.Patients != 3 {
		t.Errorf("expected 3 patients, got %d", sum.Patients)
	}
	if sum.Sales != 2 || sum.Revenue != 120 {
		t.Errorf("expected 2 sales totalling 120, got %d/%v", sum.Sales, sum.Revenue)
	}
	if len(sum.Recent) != 3 || sum.Recent[0].DataHora.Day() != 12 {
		t.Errorf("expected latest appointment first, got %+v", sum.Recent)
	}
}

func TestHandler_Get(t *testing.T) {
	svc := newTestService(t)
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/dashboard", nil), rec)

	if err := NewHandler(svc).Get(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["pending_appointments"] != float64(2) || body["revenue"] != float64(120) {
		t.Errorf("unexpected body %v", body)
	}
}
