package models

import "time"

// Event types
const (
	EventTypeReservationCreated   = "RESERVATION_CREATED"
	EventTypeReservationCompleted = "RESERVATION_COMPLETED"
	EventTypeReservationCancelled = "RESERVATION_CANCELLED"
	EventTypeReservationExpired   = "RESERVATION_EXPIRED"
	EventTypeHandoffRequested     = "HANDOFF_REQUESTED"

	// Commands sent by the order-confirmation channel
	EventTypeReservationConfirmed = "RESERVATION_CONFIRMED"
	EventTypeReservationRejected  = "RESERVATION_REJECTED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// ReservationLineData represents one reserved line in events
type ReservationLineData struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
}

// ReservationCreatedEvent published when stock is put on hold
type ReservationCreatedEvent struct {
	BaseEvent
	Token     string                `json:"token"`
	ExpiresAt time.Time             `json:"expires_at"`
	Total     int64                 `json:"total"`
	Lines     []ReservationLineData `json:"lines"`
}

// ReservationCompletedEvent published when the hold turns into sales
type ReservationCompletedEvent struct {
	BaseEvent
	Token           string                `json:"token"`
	CustomerContact string                `json:"customer_contact,omitempty"`
	Total           int64                 `json:"total"`
	Lines           []ReservationLineData `json:"lines"`
}

// ReservationCancelledEvent published when a hold is released, explicitly or by expiry
type ReservationCancelledEvent struct {
	BaseEvent
	Token string                `json:"token"`
	Lines []ReservationLineData `json:"lines"`
}

// HandoffRequestedEvent carries the order message for the messaging channel
type HandoffRequestedEvent struct {
	BaseEvent
	Token   string `json:"token"`
	Phone   string `json:"phone"`
	Message string `json:"message"`
	Link    string `json:"link"`
}

// ReservationCommandEvent confirms or rejects a pending reservation out of band
type ReservationCommandEvent struct {
	BaseEvent
	Token           string `json:"token"`
	CustomerContact string `json:"customer_contact,omitempty"`
}
