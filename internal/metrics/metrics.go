// Package metrics exposes Prometheus collectors for the room registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RoomsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "watchparty_rooms_created_total",
			Help: "Total number of rooms created",
		},
	)

	RoomsClosedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "watchparty_rooms_closed_total",
			Help: "Total number of rooms closed after the last member left",
		},
	)

	MembersJoinedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "watchparty_members_joined_total",
			Help: "Total number of members that joined a room, hosts included",
		},
	)

	MembersLeftTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "watchparty_members_left_total",
			Help: "Total number of members that left a room",
		},
	)

	// SyncEventsTotal counts accepted sync events by event type.
	SyncEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watchparty_sync_events_total",
			Help: "Total number of accepted sync events",
		},
		[]string{"event_type"},
	)

	SyncEventsRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watchparty_sync_events_rejected_total",
			Help: "Total number of rejected sync events",
		},
		[]string{"reason"},
	)

	RealtimeConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "watchparty_realtime_connections",
			Help: "Number of open realtime websocket connections",
		},
	)
)
