package editor

import (
	"iter"
	"time"
)

type (
	// Alert is a message shown to the user for a while. Alerts with the same
	// non-empty Name replace each other.
	Alert struct {
		Name     string
		Priority AlertPriority
		Message  string
		Duration time.Duration
	}

	AlertPriority int

	Alerts Model
)

const (
	Info AlertPriority = iota
	Warning
	Error
)

const defaultAlertDuration = 3 * time.Second

func (p AlertPriority) String() string {
	switch p {
	case Warning:
		return "warning"
	case Error:
		return "error"
	}
	return "info"
}

func (m *Model) Alerts() *Alerts { return (*Alerts)(m) }

// Add shows a message with the default duration.
func (m *Alerts) Add(message string, priority AlertPriority) {
	m.AddAlert(Alert{Priority: priority, Message: message, Duration: defaultAlertDuration})
}

// AddNamed shows a message, replacing any earlier alert with the same name.
func (m *Alerts) AddNamed(name, message string, priority AlertPriority) {
	m.AddAlert(Alert{Name: name, Priority: priority, Message: message, Duration: defaultAlertDuration})
}

func (m *Alerts) AddAlert(a Alert) {
	if a.Name != "" {
		for i := range m.alerts {
			if m.alerts[i].Name == a.Name {
				m.alerts[i] = a
				(*Model)(m).notify(AlertChange)
				return
			}
		}
	}
	m.alerts = append(m.alerts, a)
	(*Model)(m).notify(AlertChange)
}

// Update advances the time of the alerts by d, removing the expired ones.
// Returns true if any alerts remain.
func (m *Alerts) Update(d time.Duration) bool {
	n := 0
	for _, a := range m.alerts {
		a.Duration -= d
		if a.Duration > 0 {
			m.alerts[n] = a
			n++
		}
	}
	if n != len(m.alerts) {
		m.alerts = m.alerts[:n]
		(*Model)(m).notify(AlertChange)
	}
	return n > 0
}

// Iterate yields the active alerts, oldest first.
func (m *Alerts) Iterate() iter.Seq[Alert] {
	return func(yield func(Alert) bool) {
		for _, a := range m.alerts {
			if !yield(a) {
				return
			}
		}
	}
}

func (m *Alerts) Count() int { return len(m.alerts) }
