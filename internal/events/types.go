// Package events defines event types and the pub/sub bus that connects
// Beacon's components.
package events

import "time"

// EventType represents the type of event emitted through the EventBus.
type EventType string

const (
	// EventListRefreshed fires after each server-list refresh cycle.
	EventListRefreshed EventType = "list_refreshed"

	// EventClientSeen fires when the admission controller tracks a client
	// endpoint it has not seen before.
	EventClientSeen EventType = "client_seen"

	// EventConfigChanged fires when a configuration value is updated at runtime.
	EventConfigChanged EventType = "config_changed"

	// EventShutdown requests a graceful process shutdown.
	EventShutdown EventType = "shutdown"
)

// Event represents a single event in the system.
type Event struct {
	Type    EventType
	Source  string
	Payload interface{}
}

// ListRefreshedPayload carries the outcome of a server-list refresh.
type ListRefreshedPayload struct {
	ServerCount int           `json:"server_count"`
	Mode        string        `json:"mode"`
	Duration    time.Duration `json:"duration"`
}

// ClientSeenPayload identifies a newly tracked client endpoint.
type ClientSeenPayload struct {
	IP   string `json:"ip"`
	Port int    `json:"port"`
}

// ConfigChangedPayload is emitted when a configuration value changes.
type ConfigChangedPayload struct {
	Key   string      `json:"key"`
	Value interface{} `json:"value"`
}
