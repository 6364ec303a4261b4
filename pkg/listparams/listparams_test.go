package listparams

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func newContext(target string) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	return e.NewContext(req, httptest.NewRecorder())
}

func TestFromContext_Defaults(t *testing.T) {
	p, err := FromContext(newContext("/api/v1/entities/services"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Order != "" || p.Limit != 0 || p.HasCriteria() {
		t.Errorf("expected empty params, got %+v", p)
	}
}

func TestFromContext_OrderLimitCriteria(t *testing.T) {
	p, err := FromContext(newContext("/x?order=-ordem&limit=10&ativo=true&nome_servico=Oz%C3%B4nio+Local"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Order != "-ordem" {
		t.Errorf("expected -ordem, got %q", p.Order)
	}
	if p.Limit != 10 {
		t.Errorf("expected limit 10, got %d", p.Limit)
	}
	if len(p.Criteria) != 2 || p.Criteria["ativo"] != "true" || p.Criteria["nome_servico"] != "Ozônio Local" {
		t.Errorf("unexpected criteria %v", p.Criteria)
	}
	if got := p.CriteriaMap()["ativo"]; got != "true" {
		t.Errorf("expected criteria map value, got %v", got)
	}
}

func TestFromContext_InvalidLimit(t *testing.T) {
	for _, target := range []string{"/x?limit=abc", "/x?limit=-1"} {
		if _, err := FromContext(newContext(target)); err == nil {
			t.Errorf("%s: expected error", target)
		}
	}
}

func TestFromContext_RepeatedCriterion(t *testing.T) {
	if _, err := FromContext(newContext("/x?status=pendente&status=concluido")); err == nil {
		t.Error("expected error for repeated criterion")
	}
}

func TestParams_String(t *testing.T) {
	p := Params{Order: "ordem", Limit: 3, Criteria: map[string]string{"b": "2", "a": "1"}}
	if got := p.String(); got != "a=1&b=2&order=ordem&limit=3" {
		t.Errorf("unexpected string %q", got)
	}
}

func TestNewResponse(t *testing.T) {
	resp := NewResponse([]string{"a", "b"}, 2)
	if resp.Count != 2 {
		t.Errorf("expected count 2, got %d", resp.Count)
	}
}
