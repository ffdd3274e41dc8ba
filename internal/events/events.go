// Package events is the in-process publish/subscribe bus that carries session,
// message and sync notifications to whoever renders them (the websocket hub,
// the CLI, tests).
package events

import (
	"time"

	"leadboard/pkg/models"
)

type Kind string

// Payload per kind:
//
//	KindQR              QRData
//	KindReady           StatusData
//	KindDisconnected    DisconnectedData
//	KindLoggedOut       StatusData
//	KindError           ErrorData
//	KindMessageReceived MessageData
//	KindMessageSent     MessageData
//	KindSyncStatus      SyncData
//	KindSyncSuccess     SyncData
//	KindSyncError       SyncData
const (
	KindQR              Kind = "whatsapp.qr"
	KindReady           Kind = "whatsapp.ready"
	KindDisconnected    Kind = "whatsapp.disconnected"
	KindLoggedOut       Kind = "whatsapp.logged_out"
	KindError           Kind = "whatsapp.error"
	KindMessageReceived Kind = "message.received"
	KindMessageSent     Kind = "message.sent"
	KindSyncStatus      Kind = "sync.status"
	KindSyncSuccess     Kind = "sync.success"
	KindSyncError       Kind = "sync.error"
)

// Data is implemented by every event payload type.
type Data interface {
	eventData()
}

type Event struct {
	ID   string    `json:"id"`
	Kind Kind      `json:"kind"`
	Time time.Time `json:"time"`
	Data Data      `json:"data"`
}

// QRData carries a pairing code to be rendered as a QR image.
type QRData struct {
	Code string `json:"qr"`
}

type StatusData struct {
	State   models.SessionState `json:"status"`
	Message string              `json:"message,omitempty"`
}

type DisconnectedData struct {
	State           models.SessionState `json:"status"`
	ShouldReconnect bool                `json:"shouldReconnect"`
	Reason          string              `json:"reason,omitempty"`
}

// MessageData is one history entry together with the contact it belongs to.
type MessageData struct {
	Contact string              `json:"numero"`
	Entry   models.HistoryEntry `json:"mensagem"`
}

type ErrorData struct {
	Op      string `json:"op"`
	Message string `json:"error"`
}

type SyncData struct {
	Running bool             `json:"running"`
	Written int              `json:"written,omitempty"`
	Created int              `json:"created,omitempty"`
	Error   string           `json:"error,omitempty"`
	Stats   models.SyncStats `json:"stats"`
}

func (QRData) eventData()           {}
func (StatusData) eventData()       {}
func (DisconnectedData) eventData() {}
func (MessageData) eventData()      {}
func (ErrorData) eventData()        {}
func (SyncData) eventData()         {}
