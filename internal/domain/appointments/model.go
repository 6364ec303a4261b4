package appointments

import (
	"time"

	"github.com/ozonelife/clinic/internal/domain/patients"
	"github.com/ozonelife/clinic/internal/platform/store"
)

const Collection = "appointments"

// Schema stores data_hora as a naive wall clock in the clinic timezone.
var Schema = store.Schema{
	Collection: Collection,
	Fields: []store.Field{
		{Name: "nome_paciente", Kind: store.KindString, Required: true},
		{Name: "paciente_id", Kind: store.KindString},
		{Name: "servico", Kind: store.KindString, Required: true},
		{Name: "data_hora", Kind: store.KindDateTime, Required: true},
		{Name: "contato", Kind: store.KindString},
		{Name: "observacoes", Kind: store.KindString},
		{Name: "status", Kind: store.KindString},
	},
	Defaults: store.Record{"status": string(StatusPending)},
}

type Appointment struct {
	ID           string         `json:"id"`
	CreatedAt    time.Time      `json:"created_at"`
	NomePaciente string         `json:"nome_paciente"`
	PacienteID   string         `json:"paciente_id,omitempty"`
	Servico      string         `json:"servico"`
	DataHora     store.DateTime `json:"data_hora"`
	Contato      string         `json:"contato,omitempty"`
	Observacoes  string         `json:"observacoes,omitempty"`
	Status       Status         `json:"status"`
}

// View is an appointment with its status display attributes.
type View struct {
	*Appointment
	StatusLabel string `json:"status_label"`
	StatusColor string `json:"status_color"`
}

func (a *Appointment) View() View {
	return View{Appointment: a, StatusLabel: a.Status.Label(), StatusColor: a.Status.Color()}
}

// fieldNewPatient carries an inline patient registration on create.
const fieldNewPatient = "novo_paciente"

// BookInput is the typed form of an appointment create payload.
type BookInput struct {
	NomePaciente string          `json:"nome_paciente"`
	PacienteID   string          `json:"paciente_id,omitempty"`
	Servico      string          `json:"servico"`
	DataHora     time.Time       `json:"data_hora"`
	Contato      string          `json:"contato,omitempty"`
	Observacoes  string          `json:"observacoes,omitempty"`
	Status       Status          `json:"status,omitempty"`
	NovoPaciente *patients.Input `json:"novo_paciente,omitempty"`
}

func (in BookInput) Record() store.Record {
	rec := store.Record{
		"nome_paciente": in.NomePaciente,
		"servico":       in.Servico,
		"data_hora":     in.DataHora,
	}
	for k, v := range map[string]string{
		"paciente_id": in.PacienteID,
		"contato":     in.Contato,
		"observacoes": in.Observacoes,
		"status":      string(in.Status),
	} {
		if v != "" {
			rec[k] = v
		}
	}
	if in.NovoPaciente != nil {
		rec[fieldNewPatient] = *in.NovoPaciente
	}
	return rec
}
