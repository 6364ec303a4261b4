package appointments

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ozonelife/clinic/internal/domain/patients"
	"github.com/ozonelife/clinic/internal/platform/store"
)

// DefaultGrace is how long a pending appointment may sit in the past before
// the sweep marks it not completed.
const DefaultGrace = 2 * time.Hour

type Options struct {
	// Location interprets the naive data_hora wall clock.
	Location *time.Location
	Grace    time.Duration
	Now      func() time.Time
	// OnSweep receives the number of appointments each sweep updated.
	OnSweep func(updated int)
}

type Service struct {
	repo         store.EntityRepository
	appointments *store.Collection[Appointment]
	opts         Options
}

func NewService(repo store.EntityRepository, pts *patients.Service, opts Options) *Service {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Grace == 0 {
		opts.Grace = DefaultGrace
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	r := rulesRepository{EntityRepository: repo, patients: pts}
	return &Service{repo: r, appointments: store.NewCollection[Appointment](r), opts: opts}
}

// Repository returns the appointments repository with booking and status
// rules applied.
func (s *Service) Repository() store.EntityRepository { return s.repo }

// Book creates an appointment, registering the patient first when the input
// carries one.
func (s *Service) Book(ctx context.Context, in BookInput) (*Appointment, error) {
	if in.DataHora.IsZero() {
		return nil, store.Invalid(Collection+".create", "data_hora is required")
	}
	return s.appointments.Create(ctx, in.Record())
}

func (s *Service) Get(ctx context.Context, id string) (*Appointment, error) {
	return s.appointments.Get(ctx, id)
}

// SetStatus moves an appointment to status, which may be the confirmado
// alias.
func (s *Service) SetStatus(ctx context.Context, id, status string) (*Appointment, error) {
	return s.appointments.Update(ctx, id, store.Record{"status": status})
}

// Calendar returns the month grid with appointments attached to their days.
// Repositories only filter by equality, so the whole collection is read and
// bucketed here.
func (s *Service) Calendar(ctx context.Context, year int, month time.Month) (Calendar, error) {
	all, err := s.appointments.List(ctx, "data_hora", 0)
	if err != nil {
		return Calendar{}, err
	}
	return BuildCalendar(year, month, all), nil
}

// Day returns the appointments scheduled on date, ordered by time.
func (s *Service) Day(ctx context.Context, date time.Time) ([]View, error) {
	all, err := s.appointments.List(ctx, "data_hora", 0)
	if err != nil {
		return nil, err
	}
	day := DateOf(date)
	out := make([]View, 0)
	for _, a := range all {
		if DateOf(a.DataHora.Time).Equal(day) {
			out = append(out, a.View())
		}
	}
	return out, nil
}

// Recent returns the appointments with the latest data_hora first.
func (s *Service) Recent(ctx context.Context, limit int) ([]View, error) {
	items, err := s.appointments.List(ctx, "-data_hora", limit)
	if err != nil {
		return nil, err
	}
	out := make([]View, 0, len(items))
	for _, a := range items {
		out = append(out, a.View())
	}
	return out, nil
}

// Counts returns the number of appointments and how many are pending.
func (s *Service) Counts(ctx context.Context) (total, pending int, err error) {
	all, err := s.repo.List(ctx, "", 0)
	if err != nil {
		return 0, 0, err
	}
	for _, rec := range all {
		if rec["status"] == string(StatusPending) {
			pending++
		}
	}
	return len(all), pending, nil
}

// Stale reports whether a is pending and scheduled more than grace before
// now, reading its wall clock in loc.
func Stale(a *Appointment, now time.Time, loc *time.Location, grace time.Duration) bool {
	if a.Status != StatusPending || a.DataHora.IsZero() {
		return false
	}
	return now.Sub(a.DataHora.At(loc)) > grace
}

// Sweep marks stale pending appointments as not completed and returns how
// many were updated. Failures on individual records do not stop the sweep.
func (s *Service) Sweep(ctx context.Context) (int, error) {
	pending, err := s.appointments.Filter(ctx, store.Record{"status": string(StatusPending)}, "data_hora", 0)
	if err != nil {
		return 0, err
	}
	now := s.opts.Now()
	logger := zerolog.Ctx(ctx)

	var (
		updated int
		errs    []error
	)
	for _, a := range pending {
		if !Stale(a, now, s.opts.Location, s.opts.Grace) {
			continue
		}
		// an admin may have set the status since the filter ran
		current, err := s.appointments.Get(ctx, a.ID)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if ValidateAutomaticTransition(current.Status, StatusNotCompleted) != nil {
			continue
		}
		if _, err := s.appointments.Update(ctx, a.ID, store.Record{"status": string(StatusNotCompleted)}); err != nil {
			errs = append(errs, err)
			continue
		}
		updated++
		logger.Debug().Str("appointment_id", a.ID).Msg("pending appointment marked not completed")
	}
	if s.opts.OnSweep != nil {
		s.opts.OnSweep(updated)
	}
	return updated, errors.Join(errs...)
}

// -- Rules --

// rulesRepository normalizes status values, rejects unknown statuses and
// resolves the patient reference of an appointment.
type rulesRepository struct {
	store.EntityRepository
	patients *patients.Service
}

func (r rulesRepository) Create(ctx context.Context, fields store.Record) (store.Record, error) {
	op := Collection + ".create"
	out := fields.Clone()
	if err := normalizeStatus(op, out); err != nil {
		return nil, err
	}

	newPatient, hasNew := out[fieldNewPatient]
	delete(out, fieldNewPatient)
	if hasNew && newPatient != nil {
		in, err := patientInput(op, newPatient, out)
		if err != nil {
			return nil, err
		}
		// validate the appointment itself before registering anyone
		probe := out.Clone()
		probe["nome_paciente"] = in.Nome
		if _, err := r.Schema().NormalizeCreate(probe); err != nil {
			return nil, err
		}
		p, err := r.patients.Create(ctx, in)
		if err != nil {
			return nil, err
		}
		out["paciente_id"] = p.ID
		out["nome_paciente"] = p.Nome
	} else if err := r.snapshotPatient(ctx, op, out); err != nil {
		return nil, err
	}
	return r.EntityRepository.Create(ctx, out)
}

func (r rulesRepository) Update(ctx context.Context, id string, fields store.Record) (store.Record, error) {
	op := Collection + ".update"
	if _, ok := fields[fieldNewPatient]; ok {
		return nil, store.Invalid(op, "%s is only accepted on create", fieldNewPatient)
	}
	out := fields.Clone()
	if err := normalizeStatus(op, out); err != nil {
		return nil, err
	}
	if to, ok := out["status"].(string); ok {
		current, err := r.current(ctx, op, id)
		if err != nil {
			return nil, err
		}
		from, _ := current["status"].(string)
		if err := ValidateTransition(Status(from), Status(to)); err != nil {
			return nil, store.Invalid(op, "%v", err)
		}
	}
	if err := r.snapshotPatient(ctx, op, out); err != nil {
		return nil, err
	}
	return r.EntityRepository.Update(ctx, id, out)
}

func (r rulesRepository) current(ctx context.Context, op, id string) (store.Record, error) {
	recs, err := r.EntityRepository.Filter(ctx, store.Record{store.FieldID: id}, "", 1)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, store.NotFound(op, id)
	}
	return recs[0], nil
}

// snapshotPatient checks a paciente_id reference and copies the patient's
// name when the payload does not name the patient itself.
func (r rulesRepository) snapshotPatient(ctx context.Context, op string, fields store.Record) error {
	id, _ := fields["paciente_id"].(string)
	if id == "" {
		return nil
	}
	p, err := r.patients.Get(ctx, id)
	if store.IsNotFound(err) {
		return store.Invalid(op, "paciente_id %s does not exist", id)
	}
	if err != nil {
		return err
	}
	if name, _ := fields["nome_paciente"].(string); name == "" {
		fields["nome_paciente"] = p.Nome
	}
	return nil
}

func normalizeStatus(op string, fields store.Record) error {
	raw, ok := fields["status"]
	if !ok {
		return nil
	}
	s, ok := raw.(string)
	if raw != nil && !ok {
		return store.Invalid(op, "status must be a string")
	}
	// a blank status keeps the stored one, or the default on create
	if strings.TrimSpace(s) == "" {
		delete(fields, "status")
		return nil
	}
	st, err := ParseStatus(s)
	if err != nil {
		return store.Invalid(op, "%v", err)
	}
	fields["status"] = string(st)
	return nil
}

// patientInput reads an inline patient, falling back to the appointment's
// name and contact phone.
func patientInput(op string, raw interface{}, fields store.Record) (patients.Input, error) {
	var in patients.Input
	switch v := raw.(type) {
	case patients.Input:
		in = v
	case *patients.Input:
		in = *v
	case map[string]interface{}:
		if err := store.DecodeStrict(op, store.Record(v), &in); err != nil {
			return in, err
		}
	case store.Record:
		if err := store.DecodeStrict(op, v, &in); err != nil {
			return in, err
		}
	default:
		return in, store.Invalid(op, "%s must be an object", fieldNewPatient)
	}
	if in.Nome == "" {
		in.Nome, _ = fields["nome_paciente"].(string)
	}
	if in.Celular == "" {
		in.Celular, _ = fields["contato"].(string)
	}
	return in, nil
}
