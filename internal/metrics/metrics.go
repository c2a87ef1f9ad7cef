// Package metrics exports prometheus counters derived from the case change
// event stream. Counters are labelled by community so dashboards can chart
// per-community moderation volume.
package metrics

import (
	"context"
	"log/slog"

	"github.com/RoModerate/romoderate/internal/domain"
	"github.com/RoModerate/romoderate/pkg/fp"
	"github.com/prometheus/client_golang/prometheus"
)

type collector struct {
	ChangeEventCounter *prometheus.CounterVec
	BanCounter         *prometheus.CounterVec
	AppealCounter      *prometheus.CounterVec
	TicketCounter      *prometheus.CounterVec
	ShiftCounter       *prometheus.CounterVec
}

type Metrics struct {
	collector *collector
	eb        *fp.Broadcaster[domain.EntityType, domain.ChangeEvent]
}

func New(events *fp.Broadcaster[domain.EntityType, domain.ChangeEvent]) Metrics {
	return Metrics{collector: newMetricCollector(), eb: events}
}

// Start consumes change events and updates the counters until ctx is
// cancelled.
func (u Metrics) Start(ctx context.Context) {
	eventChan := make(chan domain.ChangeEvent, 64)
	if errRegister := u.eb.Consume(eventChan); errRegister != nil {
		slog.Error("Failed to register event consumer", slog.String("error", errRegister.Error()))

		return
	}

	defer u.eb.Unregister(eventChan)

	for {
		select {
		case <-ctx.Done():
			return
		case event := <-eventChan:
			labels := prometheus.Labels{
				"community_id": event.CommunityID,
				"change_kind":  string(event.ChangeKind),
			}

			u.collector.ChangeEventCounter.With(prometheus.Labels{"community_id": event.CommunityID}).Inc()

			switch event.EntityType {
			case domain.EntityBan:
				u.collector.BanCounter.With(labels).Inc()
			case domain.EntityAppeal:
				u.collector.AppealCounter.With(labels).Inc()
			case domain.EntityTicket:
				u.collector.TicketCounter.With(labels).Inc()
			case domain.EntityShift:
				u.collector.ShiftCounter.With(labels).Inc()
			}
		}
	}
}

func newMetricCollector() *collector {
	entityLabels := []string{"community_id", "change_kind"}

	collector := &collector{
		ChangeEventCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "romoderate_change_events_total", Help: "Total case change events emitted"},
			[]string{"community_id"}),

		BanCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "romoderate_ban_changes_total", Help: "Ban case changes"},
			entityLabels),

		AppealCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "romoderate_appeal_changes_total", Help: "Appeal case changes"},
			entityLabels),

		TicketCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "romoderate_ticket_changes_total", Help: "Ticket case changes"},
			entityLabels),

		ShiftCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "romoderate_shift_changes_total", Help: "Shift changes"},
			entityLabels),
	}

	for _, metric := range []prometheus.Collector{
		collector.ChangeEventCounter,
		collector.BanCounter,
		collector.AppealCounter,
		collector.TicketCounter,
		collector.ShiftCounter,
	} {
		_ = prometheus.Register(metric)
	}

	return collector
}
