package handlers

import (
	"context"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/wanderlist/wanderlist-api/invites"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Adjust CORS as needed, e.g., check r.Header.Get("Origin")
	},
}

// EventHub tracks connected users (userId -> *websocket.Conn) and pushes
// collaboration events to them. Delivery is best effort; a user who is
// not connected simply misses the push and reads fresh state on next
// fetch.
type EventHub struct {
	clients map[string]*websocket.Conn
	mutex   sync.Mutex
}

// NewEventHub returns an empty hub
func NewEventHub() *EventHub {
	return &EventHub{clients: make(map[string]*websocket.Conn)}
}

// EventsWebSocketHandler upgrades the connection and registers the user
// for event pushes until the socket closes.
func (h *EventHub) EventsWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		zap.S().Errorf("websocket upgrade error: %v", err)
		return
	}

	userID := r.URL.Query().Get("userId")
	if userID == "" {
		conn.Close()
		return
	}

	h.mutex.Lock()
	h.clients[userID] = conn
	h.mutex.Unlock()
	zap.S().Debugf("user %s connected to /ws/events", userID)

	conn.SetCloseHandler(func(code int, text string) error {
		h.mutex.Lock()
		delete(h.clients, userID)
		h.mutex.Unlock()
		zap.S().Debugf("user %s disconnected from /ws/events", userID)
		return nil
	})

	// Keep connection alive
	for {
		if _, _, err := conn.NextReader(); err != nil {
			conn.Close()
			break
		}
	}
}

// SendToUser pushes one event envelope to a connected user
func (h *EventHub) SendToUser(userID string, event string, data interface{}) {
	h.mutex.Lock()
	conn, exists := h.clients[userID]
	h.mutex.Unlock()

	if !exists {
		return
	}
	err := conn.WriteJSON(map[string]interface{}{
		"event": event,
		"data":  data,
	})
	if err != nil {
		zap.S().Debugf("error sending %s event to user %s: %v", event, userID, err)
		h.mutex.Lock()
		delete(h.clients, userID)
		h.mutex.Unlock()
		conn.Close()
	}
}

// Broadcast pushes one event envelope to every connected user
func (h *EventHub) Broadcast(event string, data interface{}) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	for userID, conn := range h.clients {
		err := conn.WriteJSON(map[string]interface{}{
			"event": event,
			"data":  data,
		})
		if err != nil {
			zap.S().Debugf("error broadcasting %s event to user %s: %v", event, userID, err)
			delete(h.clients, userID)
			conn.Close()
		}
	}
}

// NewRedemptionEventHook returns an invite hook that pushes redemption
// events over the hub. The inviter learns their code was used; the
// redeemer's other sessions learn about the new plans.
func NewRedemptionEventHook(hub *EventHub) invites.Hook {
	return invites.Hook{
		Name: "events",
		Run: func(ctx context.Context, ev invites.Event) error {
			if ev.Kind != invites.EventInviteRedeemed {
				return nil
			}
			payload := map[string]interface{}{
				"code":         ev.Invite.Code,
				"redeemedBy":   ev.RedeemedBy.Hex(),
				"createdPlans": len(ev.CreatedPlans),
			}
			hub.SendToUser(ev.Invite.CreatedBy.Hex(), "invite_redeemed", payload)
			hub.SendToUser(ev.RedeemedBy.Hex(), "plans_created", payload)
			return nil
		},
	}
}
