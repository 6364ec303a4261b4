// Package store defines the entity repository contract shared by every
// collection, the field schema that normalizes records at the repository
// boundary, and the error taxonomy surfaced to callers. Backends live in the
// boltstore and pgstore subpackages.
package store

import "context"

// EntityRepository reads and writes one named collection. Implementations
// never retry and never cache across calls.
type EntityRepository interface {
	Schema() Schema

	// List returns every record ordered by orderBy ("-field" for descending)
	// and truncated to limit when limit > 0.
	List(ctx context.Context, orderBy string, limit int) ([]Record, error)

	// Filter returns the records whose fields equal every criteria value.
	Filter(ctx context.Context, criteria Record, orderBy string, limit int) ([]Record, error)

	Create(ctx context.Context, fields Record) (Record, error)

	// Update merges fields into the record with the given id. It fails with
	// ErrNotFound when no such record exists.
	Update(ctx context.Context, id string, fields Record) (Record, error)

	// Delete removes the record or, for soft-delete schemas, clears its
	// active flag. Missing ids are not an error.
	Delete(ctx context.Context, id string) error
}

// Provider binds repositories to collections on one backend.
type Provider interface {
	Repository(schema Schema) (EntityRepository, error)
	Close() error
}

// PrepareQuery normalizes the arguments of a list or filter call.
func PrepareQuery(s Schema, criteria Record, orderBy string, limit int) (Query, error) {
	crit, err := s.NormalizeCriteria(criteria)
	if err != nil {
		return Query{}, err
	}
	field, desc, err := s.ParseOrder(orderBy)
	if err != nil {
		return Query{}, err
	}
	if limit < 0 {
		limit = 0
	}
	return Query{Criteria: crit, OrderBy: field, Desc: desc, Limit: limit}, nil
}
