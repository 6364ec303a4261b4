package appointments

import (
	"context"
	"testing"
	"time"

	"github.com/ozonelife/clinic/internal/domain/patients"
	"github.com/ozonelife/clinic/internal/platform/store"
	"github.com/ozonelife/clinic/internal/platform/store/storetest"
)

var brt = time.FixedZone("BRT", -3*60*60)

type fixture struct {
	svc      *Service
	patients *patients.Service
	swept    []int
}

func newFixture(t *testing.T, now time.Time) *fixture {
	t.Helper()
	p := storetest.Open(t)
	f := &fixture{patients: patients.NewService(storetest.Repo(t, p, patients.Schema))}
	f.svc = NewService(storetest.Repo(t, p, Schema), f.patients, Options{
		Location: brt,
		Now:      func() time.Time { return now },
		OnSweep:  func(n int) { f.swept = append(f.swept, n) },
	})
	return f
}

func (f *fixture) book(t *testing.T, fields store.Record) *Appointment {
	t.Helper()
	rec, err := f.svc.Repository().Create(context.Background(), fields)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var a Appointment
	if err := store.Decode(rec, &a); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return &a
}

func booking(dataHora string) store.Record {
	return store.Record{
		"nome_paciente": "Lúcia Ramos",
		"servico":       "Ozônio Local",
		"data_hora":     dataHora,
		"contato":       "11988887777",
	}
}

// -- Create --

func TestCreate_DefaultsToPending(t *testing.T) {
	f := newFixture(t, time.Now())
	a := f.book(t, booking("2025-01-10T14:00:00"))
	if a.Status != StatusPending {
		t.Errorf("expected pendente, got %s", a.Status)
	}
	if got := a.DataHora.Format(store.DateTimeLayout); got != "2025-01-10T14:00:00" {
		t.Errorf("expected naive wall clock to round-trip, got %s", got)
	}
}

func TestCreate_AcceptsConfirmedAlias(t *testing.T) {
	f := newFixture(t, time.Now())
	fields := booking("2025-01-10T14:00:00")
	fields["status"] = "confirmado"
	if a := f.book(t, fields); a.Status != StatusCompleted {
		t.Errorf("expected concluido, got %s", a.Status)
	}
}

func TestCreate_RejectsUnknownStatus(t *testing.T) {
	f := newFixture(t, time.Now())
	fields := booking("2025-01-10T14:00:00")
	fields["status"] = "agendado"
	if _, err := f.svc.Repository().Create(context.Background(), fields); !store.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestCreate_InlinePatient(t *testing.T) {
	f := newFixture(t, time.Now())
	ctx := context.Background()
	fields := booking("2025-01-10T14:00:00")
	fields["nome_paciente"] = "Bruno Alves"
	fields["novo_paciente"] = map[string]interface{}{"cpf": "111.222.333-44", "email": "bruno@example.com"}

	a := f.book(t, fields)
	if a.PacienteID == "" {
		t.Fatal("expected paciente_id to be set")
	}
	p, err := f.patients.Get(ctx, a.PacienteID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Nome != "Bruno Alves" || p.Celular != "11988887777" || p.CPF != "111.222.333-44" {
		t.Errorf("unexpected patient %+v", p)
	}
}

func TestCreate_InlinePatientNotRegisteredOnInvalidBooking(t *testing.T) {
	f := newFixture(t, time.Now())
	ctx := context.Background()

	fields := booking("2025-01-10T14:00:00")
	delete(fields, "servico")
	fields["novo_paciente"] = map[string]interface{}{"cpf": "111"}
	if _, err := f.svc.Repository().Create(ctx, fields); !store.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}

	fields = booking("2025-01-10T14:00:00")
	fields["novo_paciente"] = map[string]interface{}{"idade": 40}
	if _, err := f.svc.Repository().Create(ctx, fields); !store.IsValidation(err) {
		t.Fatalf("expected validation error for unknown patient field, got %v", err)
	}

	if n, _ := f.patients.Count(ctx); n != 0 {
		t.Errorf("expected no patient registered, got %d", n)
	}
}

func TestBook_TypedInput(t *testing.T) {
	f := newFixture(t, time.Now())
	ctx := context.Background()
	a, err := f.svc.Book(ctx, BookInput{
		NomePaciente: "Rita Gomes",
		Servico:      "Auto-hemoterapia",
		DataHora:     time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC),
		NovoPaciente: &patients.Input{Email: "rita@example.com"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.PacienteID == "" || a.NomePaciente != "Rita Gomes" {
		t.Errorf("unexpected appointment %+v", a)
	}
	if _, err := f.svc.Book(ctx, BookInput{NomePaciente: "X", Servico: "Y"}); !store.IsValidation(err) {
		t.Errorf("expected validation error for missing data_hora, got %v", err)
	}
}

func TestCreate_PatientReference(t *testing.T) {
	f := newFixture(t, time.Now())
	ctx := context.Background()
	p, err := f.patients.Create(ctx, patients.Input{Nome: "Carla Dias"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	fields := booking("2025-01-10T14:00:00")
	delete(fields, "nome_paciente")
	fields["paciente_id"] = p.ID
	if a := f.book(t, fields); a.NomePaciente != "Carla Dias" {
		t.Errorf("expected name snapshot, got %q", a.NomePaciente)
	}

	fields["paciente_id"] = "missing"
	if _, err := f.svc.Repository().Create(ctx, fields); !store.IsValidation(err) {
		t.Errorf("expected validation error for unknown patient, got %v", err)
	}
}

// -- Status --

func TestSetStatus_Transitions(t *testing.T) {
	f := newFixture(t, time.Now())
	ctx := context.Background()
	a := f.book(t, booking("2025-01-10T14:00:00"))

	got, err := f.svc.SetStatus(ctx, a.ID, "confirmado")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != StatusCompleted {
		t.Errorf("expected concluido, got %s", got.Status)
	}
	if got.NomePaciente != "Lúcia Ramos" {
		t.Errorf("expected other fields kept, got %+v", got)
	}

	got, err = f.svc.SetStatus(ctx, a.ID, "pendente")
	if err != nil {
		t.Fatalf("expected admin to reopen the appointment, got %v", err)
	}
	if got.Status != StatusPending {
		t.Errorf("expected pendente, got %s", got.Status)
	}
	if _, err := f.svc.SetStatus(ctx, a.ID, "agendado"); !store.IsValidation(err) {
		t.Errorf("expected unknown status to be rejected, got %v", err)
	}
	if _, err := f.svc.SetStatus(ctx, a.ID, "pendente"); err != nil {
		t.Errorf("expected same-status update to succeed, got %v", err)
	}
	if _, err := f.svc.SetStatus(ctx, "missing", "cancelado"); !store.IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestUpdate_EditsWithoutStatus(t *testing.T) {
	f := newFixture(t, time.Now())
	ctx := context.Background()
	a := f.book(t, booking("2025-01-10T14:00:00"))
	f.svc.SetStatus(ctx, a.ID, "cancelado")

	rec, err := f.svc.Repository().Update(ctx, a.ID, store.Record{"observacoes": "remarcar"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec["observacoes"] != "remarcar" || rec["status"] != "cancelado" {
		t.Errorf("unexpected record %v", rec)
	}
	if _, err := f.svc.Repository().Update(ctx, a.ID, store.Record{"novo_paciente": map[string]interface{}{}}); !store.IsValidation(err) {
		t.Errorf("expected novo_paciente to be rejected on update, got %v", err)
	}
}

// -- Day view --

func TestDay_ExactDateMatch(t *testing.T) {
	f := newFixture(t, time.Now())
	ctx := context.Background()
	f.book(t, booking("2025-01-10T16:00:00"))
	f.book(t, booking("2025-01-10T08:00:00"))
	f.book(t, booking("2025-01-11T00:00:00"))

	items, err := f.svc.Day(ctx, time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 appointments, got %d", len(items))
	}
	if items[0].DataHora.Hour() != 8 {
		t.Errorf("expected time order, got %s first", items[0].DataHora.Format(store.DateTimeLayout))
	}
}

// -- Sweep --

func TestSweep_MarksStalePending(t *testing.T) {
	now := time.Date(2025, 1, 10, 12, 0, 0, 0, brt)
	f := newFixture(t, now)
	ctx := context.Background()

	stale := f.book(t, booking("2025-01-10T09:59:00"))
	recent := f.book(t, booking("2025-01-10T10:30:00"))
	future := f.book(t, booking("2025-01-11T09:00:00"))
	done := f.book(t, booking("2025-01-09T08:00:00"))
	f.svc.SetStatus(ctx, done.ID, "concluido")

	n, err := f.svc.Sweep(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 updated, got %d", n)
	}

	want := map[string]Status{
		stale.ID:  StatusNotCompleted,
		recent.ID: StatusPending,
		future.ID: StatusPending,
		done.ID:   StatusCompleted,
	}
	for id, status := range want {
		a, _ := f.svc.Get(ctx, id)
		if a.Status != status {
			t.Errorf("%s: expected %s, got %s", id, status, a.Status)
		}
	}

	// a second sweep finds nothing left to do
	if n, _ := f.svc.Sweep(ctx); n != 0 {
		t.Errorf("expected idempotent sweep, got %d", n)
	}
	if len(f.swept) != 2 || f.swept[0] != 1 || f.swept[1] != 0 {
		t.Errorf("unexpected sweep reports %v", f.swept)
	}
}

func TestSweep_LateCorrectionAfterSweep(t *testing.T) {
	now := time.Date(2025, 1, 10, 20, 0, 0, 0, brt)
	f := newFixture(t, now)
	ctx := context.Background()
	a := f.book(t, booking("2025-01-10T14:00:00"))

	if n, err := f.svc.Sweep(ctx); err != nil || n != 1 {
		t.Fatalf("expected 1 swept, got %d (%v)", n, err)
	}
	got, err := f.svc.SetStatus(ctx, a.ID, "concluido")
	if err != nil {
		t.Fatalf("expected the patient's attendance to be recordable, got %v", err)
	}
	if got.Status != StatusCompleted {
		t.Errorf("expected concluido, got %s", got.Status)
	}

	// the sweep leaves manually settled appointments alone
	if n, _ := f.svc.Sweep(ctx); n != 0 {
		t.Errorf("expected nothing to sweep, got %d", n)
	}
	a2, _ := f.svc.Get(ctx, a.ID)
	if a2.Status != StatusCompleted {
		t.Errorf("expected concluido kept, got %s", a2.Status)
	}
}

func TestStale_UsesClinicTimezone(t *testing.T) {
	a := &Appointment{Status: StatusPending, DataHora: at("2025-01-10T10:00:00")}
	// 12:00 UTC is 09:00 in BRT, before the appointment
	now := time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)
	if Stale(a, now, brt, DefaultGrace) {
		t.Error("expected appointment not stale in BRT")
	}
	if !Stale(a, now.Add(5*time.Hour+time.Minute), brt, DefaultGrace) {
		t.Error("expected appointment stale after grace in BRT")
	}
}
