package sales

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/ozonelife/clinic/internal/platform/store"
)

const Collection = "sales"

// Payment methods accepted for a sale.
const (
	PaymentPix    = "pix"
	PaymentCredit = "credito"
	PaymentDebit  = "debito"
)

// Schema keeps nome_produto and valor_total as snapshots taken when the sale
// is entered.
var Schema = store.Schema{
	Collection: Collection,
	Fields: []store.Field{
		{Name: "nome_comprador", Kind: store.KindString, Required: true},
		{Name: "data_compra", Kind: store.KindDate, Required: true},
		{Name: "celular", Kind: store.KindString},
		{Name: "cpf", Kind: store.KindString},
		{Name: "produto_id", Kind: store.KindString, Required: true},
		{Name: "nome_produto", Kind: store.KindString},
		{Name: "quantidade", Kind: store.KindInt},
		{Name: "tipo_pagamento", Kind: store.KindString},
		{Name: "valor_total", Kind: store.KindDecimal},
	},
	Defaults: store.Record{"quantidade": int64(1), "tipo_pagamento": PaymentPix},
}

type Sale struct {
	ID            string     `json:"id"`
	CreatedAt     time.Time  `json:"created_at"`
	NomeComprador string     `json:"nome_comprador"`
	DataCompra    store.Date `json:"data_compra"`
	Celular       string     `json:"celular,omitempty"`
	CPF           string     `json:"cpf,omitempty"`
	ProdutoID     string     `json:"produto_id"`
	NomeProduto   string     `json:"nome_produto"`
	Quantidade    int64      `json:"quantidade"`
	TipoPagamento string     `json:"tipo_pagamento"`
	ValorTotal    float64    `json:"valor_total"`
}

// Input is the typed form of a sale create payload. Zero values take the
// defaults: today in the clinic timezone, one unit, pix.
type Input struct {
	NomeComprador string    `json:"nome_comprador"`
	DataCompra    time.Time `json:"data_compra"`
	Celular       string    `json:"celular"`
	CPF           string    `json:"cpf,omitempty"`
	ProdutoID     string    `json:"produto_id"`
	Quantidade    int64     `json:"quantidade"`
	TipoPagamento string    `json:"tipo_pagamento"`
}

func (in Input) Record() store.Record {
	rec := store.Record{
		"nome_comprador": in.NomeComprador,
		"celular":        in.Celular,
		"produto_id":     in.ProdutoID,
	}
	if !in.DataCompra.IsZero() {
		rec["data_compra"] = in.DataCompra
	}
	if in.CPF != "" {
		rec["cpf"] = in.CPF
	}
	if in.Quantidade != 0 {
		rec["quantidade"] = in.Quantidade
	}
	if in.TipoPagamento != "" {
		rec["tipo_pagamento"] = in.TipoPagamento
	}
	return rec
}

// saleRules are checked against the full record after every write.
type saleRules struct {
	NomeComprador string `json:"nome_comprador" validate:"trimmed_min=3"`
	Celular       string `json:"celular" validate:"min=10"`
	ProdutoID     string `json:"produto_id" validate:"required"`
	Quantidade    int64  `json:"quantidade" validate:"gte=1"`
	TipoPagamento string `json:"tipo_pagamento" validate:"oneof=pix credito debito"`
}

// LineTotal is price × (1 − discount/100) × quantity, rounded to cents only
// at the end. A product without a price sells for zero.
func LineTotal(price *float64, discount float64, quantity int64) decimal.Decimal {
	if price == nil {
		return decimal.Zero
	}
	factor := decimal.NewFromInt(1).Sub(decimal.NewFromFloat(discount).Div(decimal.NewFromInt(100)))
	return decimal.NewFromFloat(*price).Mul(factor).Mul(decimal.NewFromInt(quantity)).Round(2)
}
