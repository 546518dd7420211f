package realtime

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/proserve-app/marketplace-backend/models"
)

// Event types pushed to connected dashboards.
const (
	EventPaymentReceived = "payment_received"
	EventEscrowReleased  = "escrow_released"
	EventClosureUpdate   = "closure_update"
	EventNotification    = "notification"
)

type Message struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// Hub tracks connected websocket clients keyed by user id.
type Hub struct {
	clients map[*websocket.Conn]uint
	mutex   sync.Mutex
}

var hub = Hub{
	clients: make(map[*websocket.Conn]uint),
}

// RegisterClient adds a connection for the given user.
func RegisterClient(conn *websocket.Conn, userID uint) {
	hub.mutex.Lock()
	defer hub.mutex.Unlock()
	hub.clients[conn] = userID
}

// UnregisterClient removes and closes a connection.
func UnregisterClient(conn *websocket.Conn) {
	hub.mutex.Lock()
	defer hub.mutex.Unlock()
	delete(hub.clients, conn)
	conn.Close()
}

// BroadcastPaymentReceived notifies the payment's provider and client.
func BroadcastPaymentReceived(payment models.Payment) {
	sendTo(Message{Event: EventPaymentReceived, Data: payment}, payment.ProviderID, payment.ClientID)
}

// BroadcastEscrowReleased notifies the provider that funds moved to the
// spendable balance.
func BroadcastEscrowReleased(payment models.Payment) {
	sendTo(Message{Event: EventEscrowReleased, Data: payment}, payment.ProviderID)
}

// BroadcastClosureUpdate notifies both parties of a closure state change.
func BroadcastClosureUpdate(appointment models.Appointment) {
	sendTo(Message{Event: EventClosureUpdate, Data: appointment}, appointment.ProviderID, appointment.ClientID)
}

// BroadcastUserNotification pushes an in-app notification to its target user.
func BroadcastUserNotification(notif models.Notification) {
	if notif.UserID == nil {
		return
	}
	sendTo(Message{Event: EventNotification, Data: notif}, *notif.UserID)
}

func sendTo(msg Message, userIDs ...uint) {
	hub.mutex.Lock()
	defer hub.mutex.Unlock()

	data, err := json.Marshal(msg)
	if err != nil {
		return
	}

	targets := make(map[uint]bool, len(userIDs))
	for _, id := range userIDs {
		targets[id] = true
	}

	for conn, userID := range hub.clients {
		if !targets[userID] {
			continue
		}
		// Best effort; a dead connection gets cleaned up by its reader.
		conn.WriteMessage(websocket.TextMessage, data)
	}
}
