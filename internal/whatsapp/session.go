// Package whatsapp owns the WhatsApp connection: pairing, reconnection,
// sending and the teardown of a session.
package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"leadboard/internal/apperr"
	"leadboard/internal/events"
	"leadboard/internal/history"
	"leadboard/pkg/models"

	"go.uber.org/zap"
)

const (
	DefaultReconnectDelay = 3 * time.Second
	DefaultCountryCode    = "55"
	DefaultMediaDir       = "media"
)

type Options struct {
	AuthFolder     string
	ReconnectDelay time.Duration
	// MaxReconnectAttempts caps consecutive reconnects; 0 retries forever.
	MaxReconnectAttempts int
	CountryCode          string
	// MediaDir is the only directory SendMedia reads from.
	MediaDir string
}

// Status is a snapshot of the session for the API.
type Status struct {
	State    models.SessionState `json:"status"`
	QR       string              `json:"qr,omitempty"`
	Attempts int                 `json:"reconnectAttempts"`
}

type Manager struct {
	dialer Dialer
	router *history.Router
	bus    *events.Bus
	opts   Options
	log    *zap.Logger

	mu        sync.Mutex
	state     models.SessionState
	conn      Conn
	stale     Conn
	gen       uint64
	epoch     uint64 // bumped by Logout and Shutdown; pending reconnects of an older epoch are void
	armed     bool
	lastQR    string
	attempts  int
	reconnect *time.Timer
	closed    bool
}

func NewManager(dialer Dialer, router *history.Router, bus *events.Bus, opts Options, log *zap.Logger) *Manager {
	if opts.AuthFolder == "" {
		opts.AuthFolder = "auth_info"
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = DefaultReconnectDelay
	}
	if opts.CountryCode == "" {
		opts.CountryCode = DefaultCountryCode
	}
	if opts.MediaDir == "" {
		opts.MediaDir = DefaultMediaDir
	}
	return &Manager{
		dialer: dialer,
		router: router,
		bus:    bus,
		opts:   opts,
		log:    log.Named("whatsapp"),
		state:  models.StateDisconnected,
	}
}

// Initialize opens a connection unless one is already open or being opened.
func (m *Manager) Initialize(ctx context.Context) error {
	return m.initialize(ctx, false, 0)
}

// initialize with reconnect set only proceeds while epoch is current, checked
// under the same lock that moves the state to connecting.
func (m *Manager) initialize(ctx context.Context, reconnect bool, epoch uint64) error {
	m.mu.Lock()
	if m.closed || (reconnect && m.epoch != epoch) {
		m.mu.Unlock()
		return nil
	}
	if m.state == models.StateConnecting || m.state == models.StateConnected {
		m.mu.Unlock()
		m.log.Info("connection already in progress or established")
		return nil
	}
	m.state = models.StateConnecting
	m.gen++
	gen := m.gen
	stale := m.stale
	m.stale = nil
	m.mu.Unlock()

	if stale != nil {
		if err := stale.Close(); err != nil {
			m.log.Debug("closing previous connection", zap.Error(err))
		}
	}

	m.log.Info("connecting to whatsapp", zap.String("auth_folder", m.opts.AuthFolder))

	conn, err := m.dial(ctx, gen)
	if err != nil {
		m.mu.Lock()
		if m.gen == gen {
			m.state = models.StateDisconnected
		}
		m.mu.Unlock()
		m.log.Error("failed to initialize connection", zap.Error(err))
		m.bus.Emit(events.KindError, events.ErrorData{Op: "initialize", Message: err.Error()})
		return err
	}

	m.mu.Lock()
	if m.gen != gen || m.closed {
		m.mu.Unlock()
		conn.Close()
		return nil
	}
	if m.state == models.StateDisconnected {
		// closed while dialing; a reconnect is already pending
		m.stale = conn
	} else {
		m.conn = conn
	}
	m.mu.Unlock()
	return nil
}

func (m *Manager) dial(ctx context.Context, gen uint64) (Conn, error) {
	creds, err := m.dialer.LoadCredentials(ctx, m.opts.AuthFolder)
	if err != nil {
		return nil, fmt.Errorf("load credentials: %w", err)
	}
	version, err := m.dialer.Version(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve protocol version: %w", err)
	}
	conn, err := m.dialer.Dial(ctx, creds, version, func(e Event) {
		m.handle(gen, creds, e)
	})
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	return conn, nil
}

func (m *Manager) handle(gen uint64, creds Credentials, e Event) {
	switch ev := e.(type) {
	case CredentialsUpdated:
		if err := creds.Save(context.Background()); err != nil {
			m.log.Error("failed to persist credentials", zap.Error(err))
			m.bus.Emit(events.KindError, events.ErrorData{Op: "save credentials", Message: err.Error()})
		}

	case PairingCode:
		m.mu.Lock()
		current := m.gen == gen
		if current {
			m.lastQR = ev.Code
		}
		m.mu.Unlock()
		if current {
			m.log.Info("pairing code received")
			m.bus.Emit(events.KindQR, events.QRData{Code: ev.Code})
		}

	case Opened:
		m.mu.Lock()
		if m.gen != gen {
			m.mu.Unlock()
			return
		}
		m.state = models.StateConnected
		m.armed = true
		m.attempts = 0
		m.lastQR = ""
		m.mu.Unlock()
		m.log.Info("connected to whatsapp")
		m.bus.Emit(events.KindReady, events.StatusData{State: models.StateConnected})

	case Closed:
		m.onClosed(gen, ev)

	case Messages:
		m.mu.Lock()
		armed := m.armed && m.gen == gen
		m.mu.Unlock()
		if armed {
			m.router.Handle(ev.Batch)
		}
	}
}

func (m *Manager) onClosed(gen uint64, ev Closed) {
	m.mu.Lock()
	if m.gen != gen || m.state == models.StateDisconnected {
		m.mu.Unlock()
		return
	}
	m.state = models.StateDisconnected
	m.armed = false
	if m.conn != nil {
		m.stale = m.conn
		m.conn = nil
	}
	shouldReconnect := !ev.LoggedOut && !m.closed
	if shouldReconnect {
		shouldReconnect = m.scheduleReconnectLocked()
	}
	m.mu.Unlock()

	m.log.Warn("connection closed",
		zap.String("reason", ev.Reason),
		zap.Bool("logged_out", ev.LoggedOut),
		zap.Bool("should_reconnect", shouldReconnect))
	m.bus.Emit(events.KindDisconnected, events.DisconnectedData{
		State:           models.StateDisconnected,
		ShouldReconnect: shouldReconnect,
		Reason:          ev.Reason,
	})
}

// scheduleReconnectLocked arms the single reconnect timer. It reports false
// once the attempt cap is reached. m.mu must be held.
func (m *Manager) scheduleReconnectLocked() bool {
	if m.opts.MaxReconnectAttempts > 0 && m.attempts >= m.opts.MaxReconnectAttempts {
		return false
	}
	m.attempts++
	if m.reconnect != nil {
		m.reconnect.Stop()
	}
	epoch := m.epoch
	m.reconnect = time.AfterFunc(m.opts.ReconnectDelay, func() {
		m.reconnectNow(epoch)
	})
	return true
}

func (m *Manager) reconnectNow(epoch uint64) {
	if err := m.initialize(context.Background(), true, epoch); err == nil {
		return
	}
	m.mu.Lock()
	if !m.closed && m.epoch == epoch && m.state == models.StateDisconnected {
		m.scheduleReconnectLocked()
	}
	m.mu.Unlock()
}

func (m *Manager) liveConn() (Conn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != models.StateConnected || m.conn == nil {
		return nil, apperr.ErrNotConnected
	}
	return m.conn, nil
}

// SendMessage sends a text message and records it in the contact's history.
func (m *Manager) SendMessage(ctx context.Context, target, text string) (models.HistoryEntry, error) {
	conn, err := m.liveConn()
	if err != nil {
		return models.HistoryEntry{}, err
	}
	to, err := FormatAddress(target, m.opts.CountryCode)
	if err != nil {
		return models.HistoryEntry{}, err
	}

	id, err := conn.SendText(ctx, to, text)
	if err != nil {
		return models.HistoryEntry{}, fmt.Errorf("send message to %s: %w", to, err)
	}

	entry := m.router.RecordSent(to, id, text)
	contact := history.Counterpart(to)
	m.log.Info("message sent", zap.String("to", contact))
	m.bus.Emit(events.KindMessageSent, events.MessageData{Contact: contact, Entry: entry})
	return entry, nil
}

// SendMedia reads a file of the media directory and sends it as an image,
// video, audio or document. path is relative to the media directory; absolute
// paths and paths leaving it are rejected with apperr.ErrInvalidInput.
func (m *Manager) SendMedia(ctx context.Context, target, path string, kind models.MessageKind, caption string) error {
	conn, err := m.liveConn()
	if err != nil {
		return err
	}
	to, err := FormatAddress(target, m.opts.CountryCode)
	if err != nil {
		return err
	}

	switch kind {
	case models.KindImage, models.KindVideo, models.KindAudio, models.KindDocument:
	default:
		return fmt.Errorf("%q: %w", kind, apperr.ErrUnsupportedMediaKind)
	}

	data, err := m.readMedia(path)
	if err != nil {
		return err
	}

	media := Media{Kind: kind, Data: data}
	switch kind {
	case models.KindImage, models.KindVideo:
		media.Caption = caption
		media.Mimetype = mediaType(path, data)
	case models.KindAudio:
		media.Mimetype = "audio/mp4"
	case models.KindDocument:
		media.Mimetype = "application/pdf"
		media.FileName = filepath.Base(path)
	}

	if _, err := conn.SendMedia(ctx, to, media); err != nil {
		return fmt.Errorf("send %s to %s: %w", kind, to, err)
	}
	m.log.Info("media sent", zap.String("to", history.Counterpart(to)), zap.String("kind", string(kind)))
	return nil
}

func (m *Manager) readMedia(name string) ([]byte, error) {
	name = filepath.Clean(filepath.FromSlash(name))
	if !filepath.IsLocal(name) {
		return nil, fmt.Errorf("media path %q outside the media directory: %w", name, apperr.ErrInvalidInput)
	}

	// os.Root also refuses symlinks that lead out of the directory
	root, err := os.OpenRoot(m.opts.MediaDir)
	if err != nil {
		return nil, fmt.Errorf("open media directory: %w", err)
	}
	defer root.Close()

	data, err := root.ReadFile(name)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("media file %q: %w", name, apperr.ErrNotFound)
	case err != nil:
		return nil, fmt.Errorf("read media file %q: %w: %w", name, apperr.ErrInvalidInput, err)
	}
	return data, nil
}

func mediaType(path string, data []byte) string {
	if t := mime.TypeByExtension(filepath.Ext(path)); t != "" {
		return t
	}
	return http.DetectContentType(data)
}

// Logout ends the session remotely and deletes the credential folder. It
// also applies while disconnected: a pending reconnect is cancelled and the
// folder removed, so no session comes back. A failed remote logout is
// published as an error event, reported as false and leaves the session as is.
func (m *Manager) Logout(ctx context.Context) bool {
	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()

	if conn != nil {
		if err := conn.Logout(ctx); err != nil {
			m.log.Error("logout failed", zap.Error(err))
			m.bus.Emit(events.KindError, events.ErrorData{Op: "logout", Message: err.Error()})
			return false
		}
	}

	m.mu.Lock()
	m.gen++
	m.epoch++
	conns := []Conn{m.conn, m.stale}
	if conn != nil && conn != m.conn {
		conns = append(conns, conn)
	}
	m.conn = nil
	m.stale = nil
	m.state = models.StateDisconnected
	m.armed = false
	m.lastQR = ""
	m.attempts = 0
	if m.reconnect != nil {
		m.reconnect.Stop()
		m.reconnect = nil
	}
	m.mu.Unlock()

	for _, c := range conns {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil {
			m.log.Debug("closing connection after logout", zap.Error(err))
		}
	}

	if err := os.RemoveAll(m.opts.AuthFolder); err != nil {
		m.log.Error("failed to remove auth folder", zap.Error(err))
		m.bus.Emit(events.KindError, events.ErrorData{Op: "logout", Message: err.Error()})
		return false
	}
	m.log.Info("logged out, auth folder removed", zap.String("auth_folder", m.opts.AuthFolder))

	m.bus.Emit(events.KindLoggedOut, events.StatusData{State: models.StateDisconnected})
	return true
}

// Shutdown cancels any pending reconnect and closes the connection without
// logging out, so the session can be resumed by the next process.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	m.closed = true
	m.gen++
	m.epoch++
	if m.reconnect != nil {
		m.reconnect.Stop()
		m.reconnect = nil
	}
	conns := []Conn{m.conn, m.stale}
	m.conn = nil
	m.stale = nil
	m.state = models.StateDisconnected
	m.armed = false
	m.mu.Unlock()

	for _, c := range conns {
		if c != nil {
			c.Close()
		}
	}
}

func (m *Manager) State() models.SessionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) IsConnected() bool {
	return m.State() == models.StateConnected
}

// LastQR returns the pending pairing code, or "" once paired.
func (m *Manager) LastQR() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastQR
}

func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Status{State: m.state, QR: m.lastQR, Attempts: m.attempts}
}
