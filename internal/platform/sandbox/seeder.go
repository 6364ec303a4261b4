// Package sandbox generates reproducible demo data for a fresh installation:
// patients, appointments spread around the current date, and sales of the
// catalog's products. Records are written through the regular repositories so
// every domain rule applies to them.
package sandbox

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ozonelife/clinic/internal/platform/store"
)

// ---------------------------------------------------------------------------
// Configuration
// ---------------------------------------------------------------------------

// SeedConfig controls the volume and spread of generated data.
type SeedConfig struct {
	Patients               int   `json:"patients"`
	AppointmentsPerPatient int   `json:"appointmentsPerPatient"`
	Sales                  int   `json:"sales"`
	Days                   int   `json:"days"`
	Seed                   int64 `json:"seed"`
}

// DefaultSeedConfig returns a month of activity for a small clinic.
func DefaultSeedConfig() SeedConfig {
	return SeedConfig{
		Patients:               20,
		AppointmentsPerPatient: 2,
		Sales:                  30,
		Days:                   30,
	}
}

// SeedResult summarizes the output of a seed operation.
type SeedResult struct {
	Patients     int    `json:"patients"`
	Appointments int    `json:"appointments"`
	Sales        int    `json:"sales"`
	Duration     string `json:"duration"`
}

// ---------------------------------------------------------------------------
// Name pools
// ---------------------------------------------------------------------------

var firstNames = []string{
	"Ana", "Beatriz", "Camila", "Daniela", "Fernanda", "Gabriela", "Helena", "Isabela",
	"Júlia", "Larissa", "Mariana", "Patrícia", "Renata", "Sofia", "Vanessa",
	"André", "Bruno", "Carlos", "Diego", "Eduardo", "Felipe", "Gustavo", "João",
	"Lucas", "Marcelo", "Paulo", "Rafael", "Rodrigo", "Thiago", "Vinícius",
}

var lastNames = []string{
	"Silva", "Santos", "Oliveira", "Souza", "Rodrigues", "Ferreira", "Alves", "Pereira",
	"Lima", "Gomes", "Costa", "Ribeiro", "Martins", "Carvalho", "Araújo", "Rocha",
}

var streets = []string{
	"Rua das Flores", "Avenida Paulista", "Rua Augusta", "Rua Oscar Freire",
	"Avenida Brasil", "Rua XV de Novembro", "Rua da Consolação",
}

var notes = []string{
	"", "", "Primeira sessão", "Retorno", "Paciente prefere horário da manhã",
	"Trazer exames recentes", "Sessão de manutenção",
}

var pastStatuses = []string{"concluido", "concluido", "concluido", "faltante", "cancelado", "pendente"}

var paymentMethods = []string{"pix", "pix", "credito", "debito"}

// ---------------------------------------------------------------------------
// DataGenerator
// ---------------------------------------------------------------------------

// DataGenerator produces deterministic records for a given seed.
type DataGenerator struct {
	rng *rand.Rand
}

// NewDataGenerator returns a generator seeded for reproducibility. If seed is
// 0 a time-based seed is chosen.
func NewDataGenerator(seed int64) *DataGenerator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &DataGenerator{rng: rand.New(rand.NewSource(seed))}
}

func (g *DataGenerator) pick(pool []string) string {
	return pool[g.rng.Intn(len(pool))]
}

// randomPhone returns a São Paulo mobile number.
func (g *DataGenerator) randomPhone() string {
	return fmt.Sprintf("(11) 9%04d-%04d", g.rng.Intn(10000), g.rng.Intn(10000))
}

// randomCPF returns a formatted CPF with valid check digits.
func (g *DataGenerator) randomCPF() string {
	var d [11]int
	for i := 0; i < 9; i++ {
		d[i] = g.rng.Intn(10)
	}
	d[9] = cpfDigit(d[:9])
	d[10] = cpfDigit(d[:10])
	return fmt.Sprintf("%d%d%d.%d%d%d.%d%d%d-%d%d", d[0], d[1], d[2], d[3], d[4], d[5], d[6], d[7], d[8], d[9], d[10])
}

func cpfDigit(digits []int) int {
	sum := 0
	weight := len(digits) + 1
	for _, v := range digits {
		sum += v * weight
		weight--
	}
	r := sum * 10 % 11
	if r == 10 {
		return 0
	}
	return r
}

// GeneratePatient produces a patients record.
func (g *DataGenerator) GeneratePatient() store.Record {
	first, last := g.pick(firstNames), g.pick(lastNames)
	rec := store.Record{
		"nome":    first + " " + last,
		"celular": g.randomPhone(),
		"cpf":     g.randomCPF(),
	}
	if g.rng.Intn(3) > 0 {
		rec["email"] = fmt.Sprintf("%s.%s%d@example.com", asciiLower(first), asciiLower(last), g.rng.Intn(100))
	}
	if g.rng.Intn(2) == 0 {
		rec["endereco"] = fmt.Sprintf("%s, %d - São Paulo", g.pick(streets), 10+g.rng.Intn(2000))
	}
	return rec
}

// GenerateAppointment books patient for service on a working-hours slot
// within days of ref. Past slots mostly carry a final status.
func (g *DataGenerator) GenerateAppointment(patient store.Record, service string, ref time.Time, days int) store.Record {
	offset := g.rng.Intn(2*days+1) - days
	day := ref.AddDate(0, 0, offset)
	slot := time.Date(day.Year(), day.Month(), day.Day(), 8+g.rng.Intn(10), 30*g.rng.Intn(2), 0, 0, time.UTC)

	status := "pendente"
	if offset < 0 {
		status = g.pick(pastStatuses)
	}
	rec := store.Record{
		"paciente_id":   patient.ID(),
		"nome_paciente": patient["nome"],
		"servico":       service,
		"data_hora":     slot,
		"contato":       patient["celular"],
		"status":        status,
	}
	if n := g.pick(notes); n != "" {
		rec["observacoes"] = n
	}
	return rec
}

// GenerateSale sells one to three units of product within days before ref.
func (g *DataGenerator) GenerateSale(product store.Record, ref time.Time, days int) store.Record {
	first, last := g.pick(firstNames), g.pick(lastNames)
	rec := store.Record{
		"nome_comprador": first + " " + last,
		"data_compra":    ref.AddDate(0, 0, -g.rng.Intn(days+1)),
		"celular":        g.randomPhone(),
		"produto_id":     product.ID(),
		"quantidade":     int64(1 + g.rng.Intn(3)),
		"tipo_pagamento": g.pick(paymentMethods),
	}
	if g.rng.Intn(2) == 0 {
		rec["cpf"] = g.randomCPF()
	}
	return rec
}

func asciiLower(s string) string {
	repl := map[rune]rune{'á': 'a', 'í': 'i', 'ú': 'u', 'é': 'e', 'ó': 'o', 'ã': 'a', 'ç': 'c'}
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r >= 'A' && r <= 'Z' {
			r += 'a' - 'A'
		}
		if v, ok := repl[r]; ok {
			r = v
		}
		out = append(out, r)
	}
	return string(out)
}

// ---------------------------------------------------------------------------
// Seeder
// ---------------------------------------------------------------------------

// Targets are the repositories demo data is written to. Services and
// products are only read.
type Targets struct {
	Services     store.EntityRepository
	Products     store.EntityRepository
	Patients     store.EntityRepository
	Appointments store.EntityRepository
	Sales        store.EntityRepository
}

// Seeder writes a generated data set through the target repositories.
type Seeder struct {
	generator *DataGenerator
	config    SeedConfig
	targets   Targets
	now       func() time.Time
}

func NewSeeder(config SeedConfig, targets Targets, now func() time.Time) *Seeder {
	if now == nil {
		now = time.Now
	}
	return &Seeder{
		generator: NewDataGenerator(config.Seed),
		config:    config,
		targets:   targets,
		now:       now,
	}
}

// Run generates and stores the data set. It stops at the first failed write;
// records already written are kept.
func (s *Seeder) Run(ctx context.Context) (*SeedResult, error) {
	start := time.Now()
	result := &SeedResult{}
	days := s.config.Days
	if days <= 0 {
		days = DefaultSeedConfig().Days
	}
	ref := s.now()

	services, err := s.targets.Services.Filter(ctx, store.Record{"ativo": true}, "ordem", 0)
	if err != nil {
		return nil, err
	}
	products, err := s.targets.Products.Filter(ctx, store.Record{"ativo": true}, "ordem", 0)
	if err != nil {
		return nil, err
	}
	if len(services) == 0 && s.config.AppointmentsPerPatient > 0 {
		return nil, fmt.Errorf("no active services to book; seed the catalog first")
	}
	if len(products) == 0 && s.config.Sales > 0 {
		return nil, fmt.Errorf("no active products to sell; seed the catalog first")
	}

	for i := 0; i < s.config.Patients; i++ {
		patient, err := s.targets.Patients.Create(ctx, s.generator.GeneratePatient())
		if err != nil {
			return result, fmt.Errorf("create patient: %w", err)
		}
		result.Patients++

		for j := 0; j < s.config.AppointmentsPerPatient; j++ {
			svc := services[s.generator.rng.Intn(len(services))]
			name, _ := svc["nome_servico"].(string)
			if _, err := s.targets.Appointments.Create(ctx, s.generator.GenerateAppointment(patient, name, ref, days)); err != nil {
				return result, fmt.Errorf("create appointment: %w", err)
			}
			result.Appointments++
		}
	}

	for i := 0; i < s.config.Sales; i++ {
		product := products[s.generator.rng.Intn(len(products))]
		if _, err := s.targets.Sales.Create(ctx, s.generator.GenerateSale(product, ref, days)); err != nil {
			return result, fmt.Errorf("create sale: %w", err)
		}
		result.Sales++
	}

	result.Duration = time.Since(start).String()
	return result, nil
}

// ---------------------------------------------------------------------------
// SeedHandler
// ---------------------------------------------------------------------------

// SeedHandler exposes demo seeding over HTTP for development installs.
type SeedHandler struct {
	targets Targets
	mu      sync.Mutex
}

func NewSeedHandler(targets Targets) *SeedHandler {
	return &SeedHandler{targets: targets}
}

func (h *SeedHandler) RegisterRoutes(g *echo.Group) {
	g.POST("/sandbox/seed", h.handleSeed)
}

func (h *SeedHandler) handleSeed(c echo.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	cfg := DefaultSeedConfig()
	if err := c.Bind(&cfg); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if cfg.Patients < 0 || cfg.AppointmentsPerPatient < 0 || cfg.Sales < 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "counts must not be negative")
	}

	result, err := NewSeeder(cfg, h.targets, nil).Run(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}
