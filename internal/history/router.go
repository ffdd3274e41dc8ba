// Package history classifies WhatsApp traffic and keeps the per-contact
// conversation history in memory for the lifetime of the process.
package history

import (
	"sort"
	"strings"
	"sync"
	"time"

	"leadboard/internal/events"
	"leadboard/internal/leads"
	"leadboard/pkg/models"

	"go.uber.org/zap"
)

// StatusBroadcast is the pseudo-address status updates arrive from.
const StatusBroadcast = "status@broadcast"

// Inbound is one message delivered by the session.
type Inbound struct {
	ID        string
	Chat      string // remote address, e.g. 5511999990000@s.whatsapp.net
	FromMe    bool
	Timestamp time.Time
	Payload   *Payload
}

type Router struct {
	mu      sync.RWMutex
	history map[string][]models.HistoryEntry
	bus     *events.Bus
	log     *zap.Logger
	now     func() time.Time
}

func NewRouter(bus *events.Bus, log *zap.Logger) *Router {
	return &Router{
		history: make(map[string][]models.HistoryEntry),
		bus:     bus,
		log:     log.Named("history"),
		now:     time.Now,
	}
}

// Counterpart returns the digits of the address part before the "@".
func Counterpart(address string) string {
	if i := strings.IndexByte(address, '@'); i >= 0 {
		address = address[:i]
	}
	return leads.DigitsOnly(address)
}

// Handle records a batch of inbound messages. Status broadcasts and messages
// without content are skipped; only messages from the other side are announced.
func (r *Router) Handle(batch []Inbound) {
	for _, in := range batch {
		if in.Payload == nil || in.Chat == StatusBroadcast {
			continue
		}
		contact := Counterpart(in.Chat)
		if contact == "" {
			continue
		}

		kind, text := Classify(in.Payload)
		ts := in.Timestamp
		if ts.IsZero() {
			ts = r.now()
		}
		dir := models.DirectionReceived
		if in.FromMe {
			dir = models.DirectionSent
		}
		entry := models.HistoryEntry{
			ID:        in.ID,
			Direction: dir,
			FromMe:    in.FromMe,
			Message:   text,
			Kind:      kind,
			Timestamp: ts.UnixMilli(),
		}
		r.append(contact, entry)

		if !in.FromMe {
			r.log.Info("message received", zap.String("from", contact), zap.String("kind", string(kind)))
			r.bus.Emit(events.KindMessageReceived, events.MessageData{Contact: contact, Entry: entry})
		}
	}
}

// RecordSent appends an outgoing text to the contact's history.
func (r *Router) RecordSent(address, id, text string) models.HistoryEntry {
	entry := models.HistoryEntry{
		ID:        id,
		Direction: models.DirectionSent,
		FromMe:    true,
		Message:   text,
		Kind:      models.KindText,
		Timestamp: r.now().UnixMilli(),
	}
	r.append(Counterpart(address), entry)
	return entry
}

func (r *Router) append(contact string, entry models.HistoryEntry) {
	r.mu.Lock()
	r.history[contact] = append(r.history[contact], entry)
	r.mu.Unlock()
}

// History returns a copy of the contact's entries in arrival order.
func (r *Router) History(address string) []models.HistoryEntry {
	key := leads.DigitsOnly(address)

	r.mu.RLock()
	defer r.mu.RUnlock()
	entries := r.history[key]
	out := make([]models.HistoryEntry, len(entries))
	copy(out, entries)
	return out
}

// Contacts lists every contact with at least one entry, sorted.
func (r *Router) Contacts() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.history))
	for contact := range r.history {
		out = append(out, contact)
	}
	sort.Strings(out)
	return out
}
