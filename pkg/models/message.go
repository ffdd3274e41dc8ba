package models

import "time"

type Direction string

const (
	DirectionSent     Direction = "sent"
	DirectionReceived Direction = "received"
)

// MessageKind is the classification of a message payload.
type MessageKind string

const (
	KindText         MessageKind = "text"
	KindExtendedText MessageKind = "extended_text"
	KindImage        MessageKind = "image"
	KindVideo        MessageKind = "video"
	KindAudio        MessageKind = "audio"
	KindDocument     MessageKind = "document"
	KindSticker      MessageKind = "sticker"
	KindUnsupported  MessageKind = "unsupported"
)

// HistoryEntry is one message in a contact's in-memory conversation history.
type HistoryEntry struct {
	ID        string      `json:"id"`
	Direction Direction   `json:"direction"`
	FromMe    bool        `json:"fromMe"`
	Message   string      `json:"message"`
	Kind      MessageKind `json:"kind"`
	Timestamp int64       `json:"timestamp"` // unix milliseconds
}

// Time returns the entry timestamp as a time.Time.
func (e HistoryEntry) Time() time.Time {
	return time.UnixMilli(e.Timestamp)
}

// SessionState is the state of the WhatsApp connection.
type SessionState string

const (
	StateDisconnected SessionState = "disconnected"
	StateConnecting   SessionState = "connecting"
	StateConnected    SessionState = "connected"
)

// SyncStats describes the spreadsheet-to-mirror synchronization runs.
type SyncStats struct {
	SyncCount     int        `json:"syncCount"`
	ErrorCount    int        `json:"errorCount"`
	LastSyncTime  *time.Time `json:"lastSyncTime"`
	LastError     string     `json:"lastError"`
	Status        string     `json:"status"`
	LastProcessed int        `json:"lastProcessed"`
	LastCreated   int        `json:"lastCreated"`
}
