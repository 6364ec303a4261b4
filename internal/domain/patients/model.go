package patients

import (
	"time"

	"github.com/ozonelife/clinic/internal/platform/store"
)

const Collection = "patients"

var Schema = store.Schema{
	Collection: Collection,
	Fields: []store.Field{
		{Name: "nome", Kind: store.KindString, Required: true},
		{Name: "celular", Kind: store.KindString},
		{Name: "cpf", Kind: store.KindString},
		{Name: "email", Kind: store.KindString},
		{Name: "endereco", Kind: store.KindString},
	},
}

type Patient struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Nome      string    `json:"nome"`
	Celular   string    `json:"celular,omitempty"`
	CPF       string    `json:"cpf,omitempty"`
	Email     string    `json:"email,omitempty"`
	Endereco  string    `json:"endereco,omitempty"`
}

// Input is the payload for registering a patient, also accepted inline when
// an appointment is booked for someone new.
type Input struct {
	Nome     string `json:"nome" validate:"trimmed_min=2"`
	Celular  string `json:"celular,omitempty"`
	CPF      string `json:"cpf,omitempty"`
	Email    string `json:"email,omitempty" validate:"omitempty,email"`
	Endereco string `json:"endereco,omitempty"`
}

// Record converts the input to repository fields, omitting empty optionals.
func (in Input) Record() store.Record {
	rec := store.Record{"nome": in.Nome}
	for k, v := range map[string]string{
		"celular": in.Celular, "cpf": in.CPF, "email": in.Email, "endereco": in.Endereco,
	} {
		if v != "" {
			rec[k] = v
		}
	}
	return rec
}
