package sales

import (
	"context"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"

	"github.com/ozonelife/clinic/internal/domain/catalog"
	"github.com/ozonelife/clinic/internal/platform/store"
	"github.com/ozonelife/clinic/internal/platform/validation"
)

// ProductLookup resolves the product a sale refers to.
type ProductLookup interface {
	GetProduct(ctx context.Context, id string) (*catalog.Product, error)
}

type Options struct {
	// Location decides which calendar day "today" is for undated sales.
	Location *time.Location
	Now      func() time.Time
}

type Service struct {
	repo  store.EntityRepository
	sales *store.Collection[Sale]
}

func NewService(repo store.EntityRepository, products ProductLookup, opts Options) *Service {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	r := totalsRepository{EntityRepository: repo, products: products, opts: opts}
	return &Service{repo: r, sales: store.NewCollection[Sale](r)}
}

// Repository returns the sales repository with input rules and derived
// totals applied.
func (s *Service) Repository() store.EntityRepository { return s.repo }

func (s *Service) Record(ctx context.Context, in Input) (*Sale, error) {
	return s.sales.Create(ctx, in.Record())
}

func (s *Service) Get(ctx context.Context, id string) (*Sale, error) {
	return s.sales.Get(ctx, id)
}

// Revenue totals every recorded sale.
func (s *Service) Revenue(ctx context.Context) (Revenue, error) {
	all, err := s.sales.List(ctx, "data_compra", 0)
	if err != nil {
		return Revenue{}, err
	}
	return Summarize(all), nil
}

type exportRow struct {
	DataCompra    store.Date `csv:"data_compra"`
	NomeComprador string     `csv:"nome_comprador"`
	Celular       string     `csv:"celular"`
	CPF           string     `csv:"cpf"`
	NomeProduto   string     `csv:"nome_produto"`
	Quantidade    int64      `csv:"quantidade"`
	TipoPagamento string     `csv:"tipo_pagamento"`
	ValorTotal    string     `csv:"valor_total"`
}

// ExportCSV renders every sale as CSV, most recent purchase first.
func (s *Service) ExportCSV(ctx context.Context) ([]byte, error) {
	all, err := s.sales.List(ctx, "-data_compra", 0)
	if err != nil {
		return nil, err
	}
	rows := make([]*exportRow, 0, len(all))
	for _, sale := range all {
		rows = append(rows, &exportRow{
			DataCompra:    sale.DataCompra,
			NomeComprador: sale.NomeComprador,
			Celular:       sale.Celular,
			CPF:           sale.CPF,
			NomeProduto:   sale.NomeProduto,
			Quantidade:    sale.Quantidade,
			TipoPagamento: sale.TipoPagamento,
			ValorTotal:    decimal.NewFromFloat(sale.ValorTotal).StringFixed(2),
		})
	}
	out, err := gocsv.MarshalBytes(rows)
	if err != nil {
		return nil, store.Failed(Collection+".export", err)
	}
	return out, nil
}

// -- Rules --

// totalsRepository validates sale input and derives nome_produto and
// valor_total from the referenced product. Caller-supplied values for the
// derived fields are ignored.
type totalsRepository struct {
	store.EntityRepository
	products ProductLookup
	opts     Options
}

var derivedFields = []string{"nome_produto", "valor_total"}

func withoutDerived(fields store.Record) store.Record {
	out := fields.Clone()
	for _, f := range derivedFields {
		delete(out, f)
	}
	return out
}

func (r totalsRepository) Create(ctx context.Context, fields store.Record) (store.Record, error) {
	op := Collection + ".create"
	out := withoutDerived(fields)
	if v, ok := out["data_compra"]; !ok || v == nil || v == "" {
		out["data_compra"] = r.opts.Now().In(r.opts.Location)
	}
	norm, err := r.Schema().NormalizeCreate(out)
	if err != nil {
		return nil, err
	}
	if err := checkRules(op, norm); err != nil {
		return nil, err
	}
	if err := r.price(ctx, op, norm, out); err != nil {
		return nil, err
	}
	return r.EntityRepository.Create(ctx, out)
}

func (r totalsRepository) Update(ctx context.Context, id string, fields store.Record) (store.Record, error) {
	op := Collection + ".update"
	patch, err := r.Schema().NormalizePatch(withoutDerived(fields))
	if err != nil {
		return nil, err
	}
	recs, err := r.EntityRepository.Filter(ctx, store.Record{store.FieldID: id}, "", 1)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, store.NotFound(op, id)
	}
	current := recs[0]
	merged := current.Merge(patch)
	if err := checkRules(op, merged); err != nil {
		return nil, err
	}
	if changed(current, patch, "produto_id") || changed(current, patch, "quantidade") {
		if err := r.price(ctx, op, merged, patch); err != nil {
			return nil, err
		}
	}
	return r.EntityRepository.Update(ctx, id, patch)
}

func changed(current, patch store.Record, field string) bool {
	v, ok := patch[field]
	return ok && store.Compare(current[field], v) != 0
}

func checkRules(op string, rec store.Record) error {
	var sr saleRules
	if err := store.Decode(rec, &sr); err != nil {
		return store.Invalid(op, "%v", err)
	}
	return validation.Struct(op, sr)
}

// price snapshots the product name and computes the total of rec into dst.
func (r totalsRepository) price(ctx context.Context, op string, rec, dst store.Record) error {
	id, _ := rec["produto_id"].(string)
	qty, _ := rec["quantidade"].(int64)
	p, err := r.products.GetProduct(ctx, id)
	if store.IsNotFound(err) {
		return store.Invalid(op, "produto_id %s does not exist", id)
	}
	if err != nil {
		return err
	}
	dst["nome_produto"] = p.Nome
	dst["valor_total"] = LineTotal(p.Preco, p.Desconto, qty).InexactFloat64()
	return nil
}
