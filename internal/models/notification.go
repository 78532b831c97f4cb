package models

import "time"

// NotificationKind classifies a notification row.
type NotificationKind string

// Notification kinds emitted by the store and collaboration layers.
const (
	NotificationUnblocked      NotificationKind = "unblocked"
	NotificationImpact         NotificationKind = "impact"
	NotificationDiscovery      NotificationKind = "discovery"
	NotificationCompleted      NotificationKind = "completed"
	NotificationSync           NotificationKind = "sync"
	NotificationContextUpdated NotificationKind = "context_updated"
)

// Valid reports whether k is one of the known notification kinds.
func (k NotificationKind) Valid() bool {
	switch k {
	case NotificationUnblocked, NotificationImpact, NotificationDiscovery,
		NotificationCompleted, NotificationSync, NotificationContextUpdated:
		return true
	}
	return false
}

// Notification is a durable, pull-delivered message. An empty AgentID means
// broadcast: the first agent to watch consumes it.
type Notification struct {
	ID        int64            `json:"id"`
	AgentID   string           `json:"agent_id,omitempty"`
	TaskID    string           `json:"task_id,omitempty"`
	Kind      NotificationKind `json:"kind"`
	Message   string           `json:"message"`
	Read      bool             `json:"read"`
	CreatedAt time.Time        `json:"created_at"`
}
