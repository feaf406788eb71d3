package notify

import (
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"
)

// MCPSender abstracts the mcp-go server notification methods.
// Defined consumer-side per Go convention.
type MCPSender interface {
	SendNotificationToSpecificClient(sessionID string, method string, params map[string]any) error
	SendNotificationToAllClients(method string, params map[string]any)
}

// MCPNotifier pushes search and drive updates to MCP clients.
type MCPNotifier struct {
	sender   MCPSender
	debounce time.Duration

	mu       sync.Mutex
	lastSent map[int]time.Time // request id → last progress notification time
}

// NewMCPNotifier creates an MCPNotifier with the given debounce interval
// for search progress. Finished and drive events are always sent at once.
func NewMCPNotifier(sender MCPSender, debounce time.Duration) *MCPNotifier {
	if debounce <= 0 {
		debounce = time.Second
	}
	return &MCPNotifier{
		sender:   sender,
		debounce: debounce,
		lastSent: make(map[int]time.Time),
	}
}

// Notify sends an MCP notification for the given event.
func (n *MCPNotifier) Notify(event Event) {
	switch event.Type {
	case SearchResults:
		n.sendProgress(event)
	case SearchFinished:
		n.clearDebounce(event.RequestID)
		n.sendMessage(event, "info")
	case DriveConnected:
		n.sendMessage(event, "info")
	case DriveConnectFailed:
		n.sendMessage(event, "error")
	case DriveListTruncated:
		n.sendMessage(event, "warning")
	default:
		slog.Debug("mcp notifier: unknown event type", "type", event.Type)
	}
}

func (n *MCPNotifier) sendProgress(event Event) {
	n.mu.Lock()
	last, ok := n.lastSent[event.RequestID]
	if ok && time.Since(last) < n.debounce {
		n.mu.Unlock()
		return
	}
	n.lastSent[event.RequestID] = time.Now()
	n.mu.Unlock()

	params := map[string]any{
		"progressToken": "search-" + strconv.Itoa(event.RequestID),
		"progress":      -1, // indeterminate
		"total":         1,
		"message":       fmt.Sprintf("%s: %d results for %q", event.Provider, event.Count, event.Query),
	}

	n.send(event.MCPSessionID, "notifications/progress", params)
}

func (n *MCPNotifier) sendMessage(event Event, level string) {
	data := map[string]any{
		"type": event.Type,
	}
	if event.RequestID != 0 {
		data["request_id"] = event.RequestID
		data["provider"] = event.Provider
		data["query"] = event.Query
		data["count"] = event.Count
	}
	if event.Message != "" {
		data["message"] = event.Message
	}

	params := map[string]any{
		"level":  level,
		"logger": "scout",
		"data":   data,
	}

	n.send(event.MCPSessionID, "notifications/message", params)
}

// send dispatches to a specific client or broadcasts.
func (n *MCPNotifier) send(mcpSessionID, method string, params map[string]any) {
	if mcpSessionID != "" {
		if err := n.sender.SendNotificationToSpecificClient(mcpSessionID, method, params); err != nil {
			slog.Debug("mcp notification failed, falling back to broadcast",
				"session_id", mcpSessionID,
				"method", method,
				"error", err)
			n.sender.SendNotificationToAllClients(method, params)
		}
		return
	}
	n.sender.SendNotificationToAllClients(method, params)
}

func (n *MCPNotifier) clearDebounce(requestID int) {
	n.mu.Lock()
	delete(n.lastSent, requestID)
	n.mu.Unlock()
}
