package catalog

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/ozonelife/clinic/internal/platform/store"
)

const (
	CollectionServices = "services"
	CollectionProducts = "products"
)

// ServiceSchema is the canonical service record. Deleting a service only
// deactivates it so that past appointments keep a meaningful reference.
var ServiceSchema = store.Schema{
	Collection: CollectionServices,
	Fields: []store.Field{
		{Name: "nome_servico", Kind: store.KindString, Required: true},
		{Name: "descricao_servico", Kind: store.KindString},
		{Name: "imagem_servico", Kind: store.KindString},
		{Name: "ordem", Kind: store.KindInt},
		{Name: "preco", Kind: store.KindDecimal},
		{Name: "desconto", Kind: store.KindDecimal},
		{Name: "ativo", Kind: store.KindBool},
	},
	Defaults:        store.Record{"ordem": int64(0), "desconto": float64(0), "ativo": true},
	SoftDeleteField: "ativo",
}

// ProductSchema is the canonical product record; products are hard-deleted.
var ProductSchema = store.Schema{
	Collection: CollectionProducts,
	Fields: []store.Field{
		{Name: "nome_produto", Kind: store.KindString, Required: true},
		{Name: "descricao_produto", Kind: store.KindString},
		{Name: "imagem_produto", Kind: store.KindString},
		{Name: "ordem", Kind: store.KindInt},
		{Name: "preco", Kind: store.KindDecimal},
		{Name: "desconto", Kind: store.KindDecimal},
		{Name: "ativo", Kind: store.KindBool},
	},
	Defaults: store.Record{"ordem": int64(0), "desconto": float64(0), "ativo": true},
}

type Service struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Nome      string    `json:"nome_servico"`
	Descricao string    `json:"descricao_servico,omitempty"`
	Imagem    string    `json:"imagem_servico,omitempty"`
	Ordem     int64     `json:"ordem"`
	Preco     *float64  `json:"preco,omitempty"`
	Desconto  float64   `json:"desconto"`
	Ativo     bool      `json:"ativo"`
}

type Product struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Nome      string    `json:"nome_produto"`
	Descricao string    `json:"descricao_produto,omitempty"`
	Imagem    string    `json:"imagem_produto,omitempty"`
	Ordem     int64     `json:"ordem"`
	Preco     *float64  `json:"preco,omitempty"`
	Desconto  float64   `json:"desconto"`
	Ativo     bool      `json:"ativo"`
}

// EffectivePrice is price × (1 − discount/100), rounded to cents.
func EffectivePrice(price, discount decimal.Decimal) decimal.Decimal {
	factor := decimal.NewFromInt(1).Sub(discount.Div(decimal.NewFromInt(100)))
	return price.Mul(factor).Round(2)
}

// EffectivePriceOf applies EffectivePrice to an optional stored price. A
// missing price yields nil.
func EffectivePriceOf(price *float64, discount float64) *float64 {
	if price == nil {
		return nil
	}
	v := EffectivePrice(decimal.NewFromFloat(*price), decimal.NewFromFloat(discount)).InexactFloat64()
	return &v
}

// Listing is a catalog entry as shown on the public site.
type Listing struct {
	ID         string   `json:"id"`
	Nome       string   `json:"nome"`
	Descricao  string   `json:"descricao,omitempty"`
	Imagem     string   `json:"imagem,omitempty"`
	Ordem      int64    `json:"ordem"`
	Preco      *float64 `json:"preco,omitempty"`
	Desconto   float64  `json:"desconto"`
	PrecoFinal *float64 `json:"preco_final,omitempty"`
}

func (s *Service) Listing() Listing {
	return Listing{
		ID: s.ID, Nome: s.Nome, Descricao: s.Descricao, Imagem: s.Imagem, Ordem: s.Ordem,
		Preco: s.Preco, Desconto: s.Desconto, PrecoFinal: EffectivePriceOf(s.Preco, s.Desconto),
	}
}

func (p *Product) Listing() Listing {
	return Listing{
		ID: p.ID, Nome: p.Nome, Descricao: p.Descricao, Imagem: p.Imagem, Ordem: p.Ordem,
		Preco: p.Preco, Desconto: p.Desconto, PrecoFinal: EffectivePriceOf(p.Preco, p.Desconto),
	}
}

// pricing carries the validated subset of a catalog write.
type pricing struct {
	Preco    *float64 `json:"preco" validate:"omitempty,gte=0"`
	Desconto *float64 `json:"desconto" validate:"omitempty,gte=0,lte=100"`
}
