// Package boltstore is the local persisted backend of store.EntityRepository.
// Each collection lives in its own bucket keyed by an insertion sequence, so a
// cursor walk yields records in insertion order.
package boltstore

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/ozonelife/clinic/internal/platform/store"
)

// DB wraps one bbolt file shared by every collection repository.
type DB struct {
	db  *bolt.DB
	now func() time.Time
}

// Open opens (or creates) the bbolt file at path.
func Open(path string) (*DB, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt file %s: %w", path, err)
	}
	return &DB{db: db, now: time.Now}, nil
}

func (d *DB) Close() error {
	return d.db.Close()
}

// Path returns the location of the underlying file.
func (d *DB) Path() string {
	return d.db.Path()
}

// Repository binds a repository to schema, creating its buckets if needed.
func (d *DB) Repository(schema store.Schema) (store.EntityRepository, error) {
	r := &repository{db: d.db, schema: schema, now: d.now}
	err := d.db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(r.dataBucket()); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(r.indexBucket())
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create buckets for %s: %w", schema.Collection, err)
	}
	return r, nil
}

type repository struct {
	db     *bolt.DB
	schema store.Schema
	now    func() time.Time
}

func (r *repository) Schema() store.Schema { return r.schema }

func (r *repository) dataBucket() []byte  { return []byte(r.schema.Collection) }
func (r *repository) indexBucket() []byte { return []byte(r.schema.Collection + ".ids") }

func (r *repository) op(name string) string { return r.schema.Collection + "." + name }

func (r *repository) List(ctx context.Context, orderBy string, limit int) ([]store.Record, error) {
	return r.query(ctx, "list", nil, orderBy, limit)
}

func (r *repository) Filter(ctx context.Context, criteria store.Record, orderBy string, limit int) ([]store.Record, error) {
	return r.query(ctx, "filter", criteria, orderBy, limit)
}

func (r *repository) query(ctx context.Context, name string, criteria store.Record, orderBy string, limit int) ([]store.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, store.Failed(r.op(name), err)
	}
	q, err := store.PrepareQuery(r.schema, criteria, orderBy, limit)
	if err != nil {
		return nil, err
	}

	var all []store.Record
	err = r.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(r.dataBucket()).ForEach(func(_, v []byte) error {
			rec, err := r.decode(v)
			if err != nil {
				return err
			}
			all = append(all, rec)
			return nil
		})
	})
	if err != nil {
		return nil, store.Failed(r.op(name), err)
	}
	return store.Apply(all, q), nil
}

func (r *repository) Create(ctx context.Context, fields store.Record) (store.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, store.Failed(r.op("create"), err)
	}
	rec, err := r.schema.NormalizeCreate(fields)
	if err != nil {
		return nil, err
	}
	rec[store.FieldID] = uuid.NewString()
	rec[store.FieldCreatedAt] = r.now().UTC()

	err = r.db.Update(func(tx *bolt.Tx) error {
		data := tx.Bucket(r.dataBucket())
		seq, err := data.NextSequence()
		if err != nil {
			return err
		}
		key := itob(seq)
		raw, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		if err := data.Put(key, raw); err != nil {
			return err
		}
		return tx.Bucket(r.indexBucket()).Put([]byte(rec.ID()), key)
	})
	if err != nil {
		return nil, store.Failed(r.op("create"), err)
	}
	return rec, nil
}

func (r *repository) Update(ctx context.Context, id string, fields store.Record) (store.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, store.Failed(r.op("update"), err)
	}
	patch, err := r.schema.NormalizePatch(fields)
	if err != nil {
		return nil, err
	}

	var updated store.Record
	err = r.db.Update(func(tx *bolt.Tx) error {
		key := tx.Bucket(r.indexBucket()).Get([]byte(id))
		if key == nil {
			return store.NotFound(r.op("update"), id)
		}
		data := tx.Bucket(r.dataBucket())
		current, err := r.decode(data.Get(key))
		if err != nil {
			return err
		}
		updated = current.Merge(patch)
		raw, err := json.Marshal(updated)
		if err != nil {
			return err
		}
		return data.Put(key, raw)
	})
	if err != nil {
		return nil, store.Failed(r.op("update"), err)
	}
	return updated, nil
}

func (r *repository) Delete(ctx context.Context, id string) error {
	if r.schema.SoftDeleteField != "" {
		_, err := r.Update(ctx, id, store.Record{r.schema.SoftDeleteField: false})
		if store.IsNotFound(err) {
			return nil
		}
		return err
	}

	if err := ctx.Err(); err != nil {
		return store.Failed(r.op("delete"), err)
	}
	err := r.db.Update(func(tx *bolt.Tx) error {
		idx := tx.Bucket(r.indexBucket())
		key := idx.Get([]byte(id))
		if key == nil {
			return nil
		}
		if err := tx.Bucket(r.dataBucket()).Delete(key); err != nil {
			return err
		}
		return idx.Delete([]byte(id))
	})
	return store.Failed(r.op("delete"), err)
}

func (r *repository) decode(raw []byte) (store.Record, error) {
	var rec store.Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode %s record: %w", r.schema.Collection, err)
	}
	return r.schema.Load(rec)
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}
