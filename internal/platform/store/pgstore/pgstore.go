// Package pgstore is the relational backend of store.EntityRepository. Every
// collection maps to a table with one typed column per schema field plus a
// seq column that records insertion order.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ozonelife/clinic/internal/platform/store"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// Provider hands out repositories backed by one connection pool.
type Provider struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Provider {
	return &Provider{pool: pool}
}

func (p *Provider) Repository(schema store.Schema) (store.EntityRepository, error) {
	return &repository{conn: p.pool, schema: schema}, nil
}

func (p *Provider) Close() error {
	p.pool.Close()
	return nil
}

type repository struct {
	conn   queryable
	schema store.Schema
}

func (r *repository) Schema() store.Schema { return r.schema }

func (r *repository) op(name string) string { return r.schema.Collection + "." + name }

func (r *repository) List(ctx context.Context, orderBy string, limit int) ([]store.Record, error) {
	return r.query(ctx, "list", nil, orderBy, limit)
}

func (r *repository) Filter(ctx context.Context, criteria store.Record, orderBy string, limit int) ([]store.Record, error) {
	return r.query(ctx, "filter", criteria, orderBy, limit)
}

func (r *repository) query(ctx context.Context, name string, criteria store.Record, orderBy string, limit int) ([]store.Record, error) {
	q, err := store.PrepareQuery(r.schema, criteria, orderBy, limit)
	if err != nil {
		return nil, err
	}
	if id, ok := q.Criteria[store.FieldID].(string); ok {
		if _, err := uuid.Parse(id); err != nil {
			return []store.Record{}, nil
		}
	}

	sql, args := buildSelect(r.schema, q)
	rows, err := r.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, store.Failed(r.op(name), err)
	}
	defer rows.Close()

	items := []store.Record{}
	for rows.Next() {
		rec, err := r.scan(rows)
		if err != nil {
			return nil, store.Failed(r.op(name), err)
		}
		items = append(items, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, store.Failed(r.op(name), err)
	}
	return items, nil
}

func (r *repository) Create(ctx context.Context, fields store.Record) (store.Record, error) {
	rec, err := r.schema.NormalizeCreate(fields)
	if err != nil {
		return nil, err
	}
	rec[store.FieldID] = uuid.NewString()
	rec[store.FieldCreatedAt] = time.Now().UTC()

	sql, args := buildInsert(r.schema, rec)
	out, err := r.scan(r.conn.QueryRow(ctx, sql, args...))
	if err != nil {
		return nil, store.Failed(r.op("create"), err)
	}
	return out, nil
}

func (r *repository) Update(ctx context.Context, id string, fields store.Record) (store.Record, error) {
	patch, err := r.schema.NormalizePatch(fields)
	if err != nil {
		return nil, err
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, store.NotFound(r.op("update"), id)
	}

	sql, args := buildUpdate(r.schema, id, patch)
	out, err := r.scan(r.conn.QueryRow(ctx, sql, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.NotFound(r.op("update"), id)
	}
	if err != nil {
		return nil, store.Failed(r.op("update"), err)
	}
	return out, nil
}

func (r *repository) Delete(ctx context.Context, id string) error {
	if r.schema.SoftDeleteField != "" {
		_, err := r.Update(ctx, id, store.Record{r.schema.SoftDeleteField: false})
		if store.IsNotFound(err) {
			return nil
		}
		return err
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil
	}
	_, err := r.conn.Exec(ctx, `DELETE FROM `+ident(r.schema.Collection)+` WHERE id = $1`, id)
	return store.Failed(r.op("delete"), err)
}

// scan reads one row selected with the schema's column list.
func (r *repository) scan(row pgx.Row) (store.Record, error) {
	cols := r.schema.Columns()
	dests := make([]interface{}, len(cols))
	for i, name := range cols {
		f, _ := r.schema.Lookup(name)
		dests[i] = destFor(f.Kind)
	}
	if err := row.Scan(dests...); err != nil {
		return nil, err
	}
	rec := make(store.Record, len(cols))
	for i, name := range cols {
		rec[name] = deref(dests[i])
	}
	return rec, nil
}

func destFor(kind store.Kind) interface{} {
	switch kind {
	case store.KindInt:
		return new(*int64)
	case store.KindDecimal:
		return new(*float64)
	case store.KindBool:
		return new(*bool)
	case store.KindDateTime, store.KindDate, store.KindTimestamp:
		return new(*time.Time)
	}
	return new(*string)
}

func deref(dest interface{}) interface{} {
	switch d := dest.(type) {
	case **string:
		if *d != nil {
			return **d
		}
	case **int64:
		if *d != nil {
			return **d
		}
	case **float64:
		if *d != nil {
			return **d
		}
	case **bool:
		if *d != nil {
			return **d
		}
	case **time.Time:
		if *d != nil {
			return (**d).UTC()
		}
	}
	return nil
}

// -- SQL construction --

func ident(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func columnList(s store.Schema) string {
	cols := s.Columns()
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = ident(c)
	}
	return strings.Join(quoted, ", ")
}

func buildSelect(s store.Schema, q store.Query) (string, []interface{}) {
	var b strings.Builder
	var args []interface{}
	b.WriteString(`SELECT ` + columnList(s) + ` FROM ` + ident(s.Collection) + ` WHERE 1=1`)

	for _, name := range sortedKeys(q.Criteria) {
		v := q.Criteria[name]
		if v == nil {
			fmt.Fprintf(&b, ` AND %s IS NULL`, ident(name))
			continue
		}
		args = append(args, v)
		fmt.Fprintf(&b, ` AND %s = $%d`, ident(name), len(args))
	}

	switch {
	case q.OrderBy == "":
		b.WriteString(` ORDER BY seq ASC`)
	case q.Desc:
		fmt.Fprintf(&b, ` ORDER BY %s DESC NULLS LAST, seq ASC`, ident(q.OrderBy))
	default:
		fmt.Fprintf(&b, ` ORDER BY %s ASC NULLS FIRST, seq ASC`, ident(q.OrderBy))
	}

	if q.Limit > 0 {
		args = append(args, q.Limit)
		fmt.Fprintf(&b, ` LIMIT $%d`, len(args))
	}
	return b.String(), args
}

func buildInsert(s store.Schema, rec store.Record) (string, []interface{}) {
	cols := s.Columns()
	placeholders := make([]string, len(cols))
	args := make([]interface{}, len(cols))
	for i, c := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = rec[c]
	}
	sql := `INSERT INTO ` + ident(s.Collection) + ` (` + columnList(s) + `) VALUES (` +
		strings.Join(placeholders, ", ") + `) RETURNING ` + columnList(s)
	return sql, args
}

func buildUpdate(s store.Schema, id string, patch store.Record) (string, []interface{}) {
	args := []interface{}{id}
	if len(patch) == 0 {
		return `SELECT ` + columnList(s) + ` FROM ` + ident(s.Collection) + ` WHERE id = $1`, args
	}
	sets := make([]string, 0, len(patch))
	for _, name := range sortedKeys(patch) {
		args = append(args, patch[name])
		sets = append(sets, fmt.Sprintf("%s = $%d", ident(name), len(args)))
	}
	sql := `UPDATE ` + ident(s.Collection) + ` SET ` + strings.Join(sets, ", ") +
		` WHERE id = $1 RETURNING ` + columnList(s)
	return sql, args
}

func sortedKeys(r store.Record) []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
