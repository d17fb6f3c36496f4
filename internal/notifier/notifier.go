// Package notifier is the outbound event port for roster changes. Delivery
// is fire-and-forget: the core never waits for or inspects an acknowledgement.
package notifier

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Event types broadcast on assignment changes.
const (
	EventScheduleUpdated = "scheduleUpdated"
	EventAbsencePlanned  = "absencePlanned"
	EventWeekApplied     = "fullWeekApplied"
	EventWeekReverted    = "fullWeekReverted"
)

type Event struct {
	Type       string `json:"type"`
	DayKey     string `json:"day_key,omitempty"`
	WeekKey    string `json:"week_key,omitempty"`
	TellerID   string `json:"teller_id,omitempty"`
	TellerName string `json:"teller_name,omitempty"`
	Status     string `json:"status,omitempty"`
	Detail     string `json:"detail,omitempty"`
}

type Notifier interface {
	Publish(ctx context.Context, ev Event)
}

// LogNotifier writes events to the application log. It is the default sink
// when no webhook is configured.
type LogNotifier struct {
	Log *logrus.Logger
}

func (n *LogNotifier) Publish(_ context.Context, ev Event) {
	n.Log.WithFields(logrus.Fields{
		"type":    ev.Type,
		"day_key": ev.DayKey,
		"teller":  ev.TellerName,
		"status":  ev.Status,
	}).Info("broadcast")
}

// Nop discards all events.
type Nop struct{}

func (Nop) Publish(context.Context, Event) {}
