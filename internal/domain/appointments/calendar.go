package appointments

import (
	"fmt"
	"time"

	"github.com/ozonelife/clinic/internal/platform/store"
)

const monthLayout = "2006-01"

// ParseMonth reads a YYYY-MM reference month.
func ParseMonth(s string) (int, time.Month, error) {
	t, err := time.Parse(monthLayout, s)
	if err != nil {
		return 0, 0, fmt.Errorf("month must be YYYY-MM, got %q", s)
	}
	return t.Year(), t.Month(), nil
}

// ParseDate reads a YYYY-MM-DD calendar date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(store.DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("date must be YYYY-MM-DD, got %q", s)
	}
	return t, nil
}

// DateOf drops the time of day from a wall clock.
func DateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// MonthGrid returns the dates of every calendar week intersecting the month,
// Sunday first. The result always holds whole weeks.
func MonthGrid(year int, month time.Month) []time.Time {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)
	start := first.AddDate(0, 0, -int(first.Weekday()))
	end := last.AddDate(0, 0, int(time.Saturday-last.Weekday()))

	days := make([]time.Time, 0, 42)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// GroupByDay buckets appointments by the calendar date of data_hora.
func GroupByDay(apps []*Appointment) map[time.Time][]*Appointment {
	out := make(map[time.Time][]*Appointment)
	for _, a := range apps {
		d := DateOf(a.DataHora.Time)
		out[d] = append(out[d], a)
	}
	return out
}

type CalendarDay struct {
	Date         store.Date `json:"date"`
	InMonth      bool       `json:"in_month"`
	Count        int        `json:"count"`
	Appointments []View     `json:"appointments"`
}

type Calendar struct {
	Month string          `json:"month"`
	Weeks [][]CalendarDay `json:"weeks"`
}

// BuildCalendar lays out the month grid and attaches each appointment to the
// cell of its date. Appointments outside the grid are ignored.
func BuildCalendar(year int, month time.Month, apps []*Appointment) Calendar {
	byDay := GroupByDay(apps)
	grid := MonthGrid(year, month)
	cal := Calendar{
		Month: time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).Format(monthLayout),
		Weeks: make([][]CalendarDay, 0, len(grid)/7),
	}
	for i := 0; i < len(grid); i += 7 {
		week := make([]CalendarDay, 0, 7)
		for _, d := range grid[i : i+7] {
			day := CalendarDay{
				Date:         store.Date{Time: d},
				InMonth:      d.Month() == month,
				Appointments: make([]View, 0, len(byDay[d])),
			}
			for _, a := range byDay[d] {
				day.Appointments = append(day.Appointments, a.View())
			}
			day.Count = len(day.Appointments)
			week = append(week, day)
		}
		cal.Weeks = append(cal.Weeks, week)
	}
	return cal
}
