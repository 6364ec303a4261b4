package patients

import (
	"context"
	"strings"

	"github.com/ozonelife/clinic/internal/platform/store"
	"github.com/ozonelife/clinic/internal/platform/validation"
)

type Service struct {
	repo     store.EntityRepository
	patients *store.Collection[Patient]
}

func NewService(repo store.EntityRepository) *Service {
	r := checkedRepository{repo}
	return &Service{repo: r, patients: store.NewCollection[Patient](r)}
}

// Repository returns the patients repository with input rules applied.
func (s *Service) Repository() store.EntityRepository { return s.repo }

func (s *Service) Create(ctx context.Context, in Input) (*Patient, error) {
	if err := validation.Struct(Collection+".create", in); err != nil {
		return nil, err
	}
	return s.patients.Create(ctx, in.Record())
}

func (s *Service) Get(ctx context.Context, id string) (*Patient, error) {
	return s.patients.Get(ctx, id)
}

// Search returns patients matching query ordered by name, truncated to limit
// when limit > 0.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]*Patient, error) {
	all, err := s.patients.List(ctx, "nome", 0)
	if err != nil {
		return nil, err
	}
	out := make([]*Patient, 0)
	for _, p := range all {
		if !Match(p, query) {
			continue
		}
		out = append(out, p)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// Count returns the number of registered patients.
func (s *Service) Count(ctx context.Context) (int, error) {
	recs, err := s.repo.List(ctx, "", 0)
	if err != nil {
		return 0, err
	}
	return len(recs), nil
}

// checkedRepository trims names and validates e-mail addresses on write.
type checkedRepository struct {
	store.EntityRepository
}

type writeCheck struct {
	Nome  *string `json:"nome" validate:"omitempty,trimmed_min=2"`
	Email *string `json:"email" validate:"omitempty,email"`
}

func (r checkedRepository) Create(ctx context.Context, fields store.Record) (store.Record, error) {
	fields, err := check(Collection+".create", fields)
	if err != nil {
		return nil, err
	}
	return r.EntityRepository.Create(ctx, fields)
}

func (r checkedRepository) Update(ctx context.Context, id string, fields store.Record) (store.Record, error) {
	fields, err := check(Collection+".update", fields)
	if err != nil {
		return nil, err
	}
	return r.EntityRepository.Update(ctx, id, fields)
}

func check(op string, fields store.Record) (store.Record, error) {
	out := fields.Clone()
	var wc writeCheck
	if v, ok := out["nome"].(string); ok {
		v = strings.TrimSpace(v)
		out["nome"] = v
		if v == "" {
			return nil, store.Invalid(op, "nome is required")
		}
		wc.Nome = &v
	}
	if v, ok := out["email"].(string); ok {
		v = strings.TrimSpace(v)
		out["email"] = v
		if v != "" {
			wc.Email = &v
		}
	}
	if err := validation.Struct(op, wc); err != nil {
		return nil, err
	}
	return out, nil
}
