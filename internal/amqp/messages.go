package amqp

import (
	"encoding/json"
	"time"

	"ledger/internal/core"
	"ledger/internal/notify"
	"ledger/internal/sheets"
)

// ChangeMessage announces a write to a user's remote collection. It carries
// no record data: receivers pull the collection themselves.
type ChangeMessage struct {
	UserID     string          `json:"userId"`
	Collection core.Kind       `json:"collection"`
	DocumentID string          `json:"documentId"`
	Op         sheets.ChangeOp `json:"op"`
	Timestamp  time.Time       `json:"timestamp"`
}

func NewChangeMessage(c sheets.Change) *ChangeMessage {
	return &ChangeMessage{
		UserID:     c.Scope.UserID,
		Collection: c.Scope.Collection,
		DocumentID: c.DocumentID,
		Op:         c.Op,
		Timestamp:  time.Now().UTC(),
	}
}

// Scope is the collection the change applies to.
func (m *ChangeMessage) Scope() sheets.Scope {
	return sheets.Scope{UserID: m.UserID, Collection: m.Collection}
}

func (m *ChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ChangeMessageFromJSON(data []byte) (*ChangeMessage, error) {
	var msg ChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// AlertMessage is a notification queued for delivery.
type AlertMessage struct {
	Handle notify.Handle `json:"handle"`
	notify.Notification
	Timestamp time.Time `json:"timestamp"`
}

func NewAlertMessage(h notify.Handle, n notify.Notification) *AlertMessage {
	return &AlertMessage{Handle: h, Notification: n, Timestamp: time.Now().UTC()}
}

func (m *AlertMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func AlertMessageFromJSON(data []byte) (*AlertMessage, error) {
	var msg AlertMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// RoutingKey is the direct-exchange key for a collection's changes.
func RoutingKey(scope sheets.Scope) string {
	return scope.UserID + "." + string(scope.Collection)
}
