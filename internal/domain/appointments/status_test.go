package appointments

import "testing"

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in      string
		want    Status
		wantErr bool
	}{
		{"pendente", StatusPending, false},
		{" PENDENTE ", StatusPending, false},
		{"concluido", StatusCompleted, false},
		{"confirmado", StatusCompleted, false},
		{"cancelado", StatusCanceled, false},
		{"faltante", StatusNoShow, false},
		{"nao_concluido", StatusNotCompleted, false},
		{"agendado", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseStatus(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseStatus(%q): unexpected error state %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseStatus(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestValidateTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		ok       bool
	}{
		{StatusPending, StatusCompleted, true},
		{StatusPending, StatusPending, true},
		{StatusCompleted, StatusPending, true},
		{StatusCanceled, StatusCompleted, true},
		{StatusNoShow, StatusNotCompleted, true},
		{StatusNotCompleted, StatusCompleted, true},
		{Status("agendado"), StatusPending, true},
		{StatusPending, Status("agendado"), false},
	}
	for _, tt := range tests {
		err := ValidateTransition(tt.from, tt.to)
		if (err == nil) != tt.ok {
			t.Errorf("%s -> %s: expected ok=%v, got %v", tt.from, tt.to, tt.ok, err)
		}
	}
}

func TestValidateAutomaticTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		ok       bool
	}{
		{StatusPending, StatusNotCompleted, true},
		{StatusPending, StatusCompleted, false},
		{StatusPending, StatusCanceled, false},
		{StatusCompleted, StatusNotCompleted, false},
		{StatusCanceled, StatusNotCompleted, false},
		{StatusNotCompleted, StatusNotCompleted, false},
	}
	for _, tt := range tests {
		err := ValidateAutomaticTransition(tt.from, tt.to)
		if (err == nil) != tt.ok {
			t.Errorf("%s -> %s: expected ok=%v, got %v", tt.from, tt.to, tt.ok, err)
		}
	}
}

func TestStatusDisplay(t *testing.T) {
	tests := map[Status][2]string{
		StatusPending:      {"Pendente", "yellow"},
		StatusCompleted:    {"Concluído", "green"},
		StatusCanceled:     {"Cancelado", "red"},
		StatusNoShow:       {"Faltante", "orange"},
		StatusNotCompleted: {"Não Concluído", "gray"},
	}
	for s, want := range tests {
		if s.Label() != want[0] || s.Color() != want[1] {
			t.Errorf("%s: got %s/%s, want %s/%s", s, s.Label(), s.Color(), want[0], want[1])
		}
	}
	if Status("x").Label() != "x" {
		t.Error("expected unknown status to display as-is")
	}
	if StatusPending.Terminal() {
		t.Error("pending must not be terminal")
	}
	for _, s := range []Status{StatusCompleted, StatusCanceled, StatusNoShow, StatusNotCompleted} {
		if !s.Terminal() {
			t.Errorf("expected %s to be terminal", s)
		}
	}
}
