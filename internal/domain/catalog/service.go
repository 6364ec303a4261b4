package catalog

import (
	"context"

	"github.com/ozonelife/clinic/internal/platform/store"
	"github.com/ozonelife/clinic/internal/platform/validation"
)

// Catalog owns services and products.
type Catalog struct {
	servicesRepo store.EntityRepository
	productsRepo store.EntityRepository
	services     *store.Collection[Service]
	products     *store.Collection[Product]
}

func NewCatalog(services, products store.EntityRepository) *Catalog {
	sr := pricedRepository{services}
	pr := pricedRepository{products}
	return &Catalog{
		servicesRepo: sr,
		productsRepo: pr,
		services:     store.NewCollection[Service](sr),
		products:     store.NewCollection[Product](pr),
	}
}

// Services returns the services repository with catalog rules applied.
func (c *Catalog) Services() store.EntityRepository { return c.servicesRepo }

// Products returns the products repository with catalog rules applied.
func (c *Catalog) Products() store.EntityRepository { return c.productsRepo }

// ActiveServices lists active services in display order.
func (c *Catalog) ActiveServices(ctx context.Context) ([]*Service, error) {
	return c.services.Filter(ctx, store.Record{"ativo": true}, "ordem", 0)
}

// ActiveProducts lists active products in display order.
func (c *Catalog) ActiveProducts(ctx context.Context) ([]*Product, error) {
	return c.products.Filter(ctx, store.Record{"ativo": true}, "ordem", 0)
}

func (c *Catalog) GetService(ctx context.Context, id string) (*Service, error) {
	return c.services.Get(ctx, id)
}

func (c *Catalog) GetProduct(ctx context.Context, id string) (*Product, error) {
	return c.products.Get(ctx, id)
}

// pricedRepository rejects prices below zero and discounts outside [0,100].
type pricedRepository struct {
	store.EntityRepository
}

func (r pricedRepository) Create(ctx context.Context, fields store.Record) (store.Record, error) {
	if err := checkPricing(r.Schema().Collection+".create", fields); err != nil {
		return nil, err
	}
	return r.EntityRepository.Create(ctx, fields)
}

func (r pricedRepository) Update(ctx context.Context, id string, fields store.Record) (store.Record, error) {
	if err := checkPricing(r.Schema().Collection+".update", fields); err != nil {
		return nil, err
	}
	return r.EntityRepository.Update(ctx, id, fields)
}

func checkPricing(op string, fields store.Record) error {
	var p pricing
	for name, dest := range map[string]**float64{"preco": &p.Preco, "desconto": &p.Desconto} {
		raw, ok := fields[name]
		if !ok {
			continue
		}
		v, err := store.Coerce(store.KindDecimal, raw)
		if err != nil || v == nil {
			// left for the schema to report
			continue
		}
		f := v.(float64)
		*dest = &f
	}
	return validation.Struct(op, p)
}
