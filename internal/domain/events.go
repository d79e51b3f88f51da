package domain

import "time"

type SyncEventType string

const (
	SyncStart    SyncEventType = "SYNC_START"
	SyncComplete SyncEventType = "SYNC_COMPLETE"
	SyncError    SyncEventType = "SYNC_ERROR"
	PendingCount SyncEventType = "PENDING_COUNT"
)

type SyncEvent struct {
	Type   SyncEventType `json:"type"`
	Synced int           `json:"synced"`
	Failed int           `json:"failed"`
	Count  int           `json:"count,omitempty"`
	Error  string        `json:"error,omitempty"`
}

// EventOrderAccepted is the AMQP message type of OrderAcceptedEvent.
const EventOrderAccepted = "order.accepted"

// OrderAcceptedEvent публикуется в pos_events после первой записи заказа.
type OrderAcceptedEvent struct {
	OrderID          string    `json:"order_id"`
	Staff            string    `json:"staff"`
	Total            string    `json:"total"`
	ItemCount        int       `json:"item_count"`
	Offline          bool      `json:"offline"`
	CreatedAt        time.Time `json:"created_at"`
	ServerReceivedAt time.Time `json:"server_received_at"`
}
