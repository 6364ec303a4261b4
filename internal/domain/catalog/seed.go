package catalog

import (
	"context"
	"fmt"

	"github.com/ozonelife/clinic/internal/platform/store"
)

// DefaultServices is the catalog a new installation starts with.
var DefaultServices = []store.Record{
	{
		"nome_servico":      "Ozônioterapia Sistêmica",
		"descricao_servico": "Tratamento completo que melhora oxigenação e imunidade.",
		"imagem_servico":    "https://images.unsplash.com/photo-1579684385127-1ef15d508118?auto=format&fit=crop&q=80&w=800",
		"ordem":             0,
	},
	{
		"nome_servico":      "Ozônio Local",
		"descricao_servico": "Aplicação localizada para dores e inflamações.",
		"imagem_servico":    "https://images.unsplash.com/photo-1584308666744-24d5c474f2ae?auto=format&fit=crop&q=80&w=800",
		"ordem":             1,
	},
	{
		"nome_servico":      "Auto-hemoterapia",
		"descricao_servico": "Potencializa o sistema imunológico.",
		"imagem_servico":    "https://images.unsplash.com/photo-1532938911079-1b06ac7ceec7?auto=format&fit=crop&q=80&w=800",
		"ordem":             2,
	},
}

var DefaultProducts = []store.Record{
	{
		"nome_produto":      "Óleo Ozonizado",
		"descricao_produto": "Para uso tópico em feridas e inflamações.",
		"imagem_produto":    "https://images.unsplash.com/photo-1608248597279-f99d160bfbc8?auto=format&fit=crop&q=80&w=800",
		"ordem":             0,
	},
	{
		"nome_produto":      "Creme Facial",
		"descricao_produto": "Rejuvenescimento e hidratação profunda.",
		"imagem_produto":    "https://images.unsplash.com/photo-1611930022073-b7a4ba5fcccd?auto=format&fit=crop&q=80&w=800",
		"ordem":             1,
	},
}

// SeedResult counts the records created by Seed.
type SeedResult struct {
	Services int `json:"services"`
	Products int `json:"products"`
}

// Seed fills empty service and product collections with the defaults.
// Collections that already hold any record, active or not, are left alone.
func (c *Catalog) Seed(ctx context.Context) (SeedResult, error) {
	var res SeedResult
	n, err := seedIfEmpty(ctx, c.servicesRepo, DefaultServices)
	if err != nil {
		return res, err
	}
	res.Services = n
	n, err = seedIfEmpty(ctx, c.productsRepo, DefaultProducts)
	if err != nil {
		return res, err
	}
	res.Products = n
	return res, nil
}

func seedIfEmpty(ctx context.Context, repo store.EntityRepository, defaults []store.Record) (int, error) {
	existing, err := repo.List(ctx, "", 1)
	if err != nil {
		return 0, err
	}
	if len(existing) > 0 {
		return 0, nil
	}
	for i, rec := range defaults {
		if _, err := repo.Create(ctx, rec.Clone()); err != nil {
			return i, fmt.Errorf("seed %s: %w", repo.Schema().Collection, err)
		}
	}
	return len(defaults), nil
}
