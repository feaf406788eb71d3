package notify

import (
	"github.com/btouchard/scout/internal/search"
)

// Event types.
const (
	SearchResults      = "search.results"
	SearchFinished     = "search.finished"
	DriveConnected     = "drive.connected"
	DriveConnectFailed = "drive.connect_failed"
	DriveListTruncated = "drive.list_truncated"
)

// Event represents a search or drive notification.
type Event struct {
	Type      string
	RequestID int
	Provider  string
	Query     string
	Count     int
	Message   string

	// MCPSessionID targets a specific MCP client session.
	// Empty means broadcast to all.
	MCPSessionID string
}

// Notifier sends notifications.
type Notifier interface {
	Notify(event Event)
}

// Hub dispatches events to multiple notifiers.
type Hub struct {
	notifiers []Notifier
}

// NewHub creates a Hub with the given notifiers.
func NewHub(notifiers ...Notifier) *Hub {
	return &Hub{notifiers: notifiers}
}

// Add registers another notifier. Not safe to call once events flow.
func (h *Hub) Add(n Notifier) {
	h.notifiers = append(h.notifiers, n)
}

// Notify delivers an event to every registered notifier on the caller's
// goroutine, so events from one caller arrive in the order they were sent.
// Notifiers must not block.
func (h *Hub) Notify(event Event) {
	for _, n := range h.notifiers {
		n.Notify(event)
	}
}

// SearchNotifyFunc adapts n to the engine's progress callback.
func SearchNotifyFunc(n Notifier) search.NotifyFunc {
	return func(sn search.Notification) {
		n.Notify(Event{
			Type:         sn.Type,
			RequestID:    sn.RequestID,
			Provider:     sn.Provider,
			Query:        sn.Query,
			Count:        sn.Count,
			MCPSessionID: sn.SessionID,
		})
	}
}
