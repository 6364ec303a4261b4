package appointments

import (
	"fmt"
	"strings"
)

type Status string

const (
	StatusPending      Status = "pendente"
	StatusCompleted    Status = "concluido"
	StatusCanceled     Status = "cancelado"
	StatusNoShow       Status = "faltante"
	StatusNotCompleted Status = "nao_concluido"
)

// statusConfirmed is an older spelling of StatusCompleted still sent by some
// clients.
const statusConfirmed = "confirmado"

// Statuses lists every status in the order the back-office offers them.
var Statuses = []Status{StatusPending, StatusCompleted, StatusNoShow, StatusNotCompleted, StatusCanceled}

type display struct {
	label string
	color string
}

var statusDisplay = map[Status]display{
	StatusPending:      {"Pendente", "yellow"},
	StatusCompleted:    {"Concluído", "green"},
	StatusCanceled:     {"Cancelado", "red"},
	StatusNoShow:       {"Faltante", "orange"},
	StatusNotCompleted: {"Não Concluído", "gray"},
}

// automaticTransitions maps each status to the statuses the system may move
// it to on its own. Admins may set any status by hand.
var automaticTransitions = map[Status]map[Status]bool{
	StatusPending: {
		StatusNotCompleted: true,
	},
	StatusCompleted:    {},
	StatusCanceled:     {},
	StatusNoShow:       {},
	StatusNotCompleted: {},
}

// ParseStatus accepts a stored status or the confirmado alias.
func ParseStatus(s string) (Status, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == statusConfirmed {
		return StatusCompleted, nil
	}
	st := Status(s)
	if _, ok := statusDisplay[st]; !ok {
		return "", fmt.Errorf("unknown status %q", s)
	}
	return st, nil
}

// Label is the Portuguese display name. Unknown values display as-is.
func (s Status) Label() string {
	if d, ok := statusDisplay[s]; ok {
		return d.label
	}
	return string(s)
}

func (s Status) Color() string {
	if d, ok := statusDisplay[s]; ok {
		return d.color
	}
	return "gray"
}

// Terminal reports whether no further automatic transition is possible.
func (s Status) Terminal() bool {
	return len(automaticTransitions[s]) == 0
}

// ValidateTransition checks a status change made by an admin. Any known
// status may be set from any other, so a late correction after the sweep is
// still possible.
func ValidateTransition(from, to Status) error {
	if _, ok := statusDisplay[to]; !ok {
		return fmt.Errorf("unknown status %q", to)
	}
	return nil
}

// ValidateAutomaticTransition checks a status change made without an admin,
// such as the stale-pending sweep.
func ValidateAutomaticTransition(from, to Status) error {
	if !automaticTransitions[from][to] {
		return fmt.Errorf("status %s cannot move to %s automatically", from, to)
	}
	return nil
}
